package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notehub/internal"
	pkgconfig "github.com/starford/notehub/pkg/config"
)

type runFunc func(ctx context.Context, opts ...internal.Option) error

// loadConfig reads the --config file over the defaults. The default path may be
// absent, in which case the built-in defaults are used; an explicit path must exist.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	load := pkgconfig.LoadOptional[internal.Config]
	if cmd.IsSet("config") {
		load = pkgconfig.Load[internal.Config]
	}

	cfg := internal.NewDefaultConfig()
	if err := load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func action(run runFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
		}
		if cmd.Name == "browse" {
			opts = append(opts, internal.WithTag(cmd.String("tag")))
		}

		if err := run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "notehub",
		Usage: "Paginated, searchable, tag-filtered notes client for a remote notes service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the front server that prefetches tag routes and serves their snapshots",
				Flags:  []cli.Flag{configFlag()},
				Action: action(internal.RunServe),
			},
			{
				Name:  "browse",
				Usage: "Browse, search and create notes interactively in the terminal",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "tag",
						Aliases: []string{"t"},
						Usage:   "Tag route to open (a tag name or \"all\")",
						Value:   "all",
					},
				},
				Action: action(internal.RunBrowse),
			},
			{
				Name:   "mcp",
				Usage:  "Expose the notes service as MCP tools over stdio",
				Flags:  []cli.Flag{configFlag()},
				Action: action(internal.RunMCP),
			},
			{
				Name:   "mock",
				Usage:  "Run a local notes service backed by SQLite",
				Flags:  []cli.Flag{configFlag()},
				Action: action(internal.RunMock),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
