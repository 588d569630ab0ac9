package internal

import (
	"io"
	"os"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	tag    string
	in     io.Reader
	out    io.Writer
}

func newApplication(opts []Option) *application {
	app := &application{in: os.Stdin, out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithTag sets the tag route the browser opens on ("all" or a tag name).
func WithTag(slug string) Option {
	return func(a *application) {
		a.tag = slug
	}
}

// WithIO sets the terminal streams used by the browser.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *application) {
		a.in = in
		a.out = out
	}
}
