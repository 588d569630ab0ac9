package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Remote RemoteConfig      `yaml:"remote"`
	Sync   SyncConfig        `yaml:"sync"`
	Front  FrontConfig       `yaml:"front"`
	Mock   MockConfig        `yaml:"mock"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Remote.Validate(); err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	if err := c.Sync.Validate(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := c.Front.Validate(); err != nil {
		return fmt.Errorf("front: %w", err)
	}
	return c.Mock.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// RemoteConfig points at the notes service.
type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// SyncConfig tunes the notes view synchronization.
type SyncConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	RefetchOnMount bool          `yaml:"refetch_on_mount"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Min(time.Millisecond), validation.Max(10*time.Second)),
	)
}

// FrontConfig configures the front server and where clients load snapshots from.
type FrontConfig struct {
	// URL is the front server base URL used by browse; empty skips hydration.
	URL             string        `yaml:"url"`
	PrefetchTimeout time.Duration `yaml:"prefetch_timeout"`
}

// Validate validates the front configuration.
func (c *FrontConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.By(absoluteURL)),
		validation.Field(&c.PrefetchTimeout, validation.Required, validation.Min(100*time.Millisecond)),
	)
}

// MockConfig configures the local notes service.
type MockConfig struct {
	HTTP     HTTPConfig     `yaml:"http"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Fixtures FixturesConfig `yaml:"fixtures"`
	Auth     AuthConfig     `yaml:"auth"`
}

// Validate validates the local service configuration.
func (c *MockConfig) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("mock http: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("mock sqlite: %w", err)
	}
	return c.Auth.Validate()
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// FixturesConfig names the YAML file of notes loaded into the local service.
// An empty Path loads nothing.
type FixturesConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

func absoluteURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Remote: RemoteConfig{
			BaseURL: "http://localhost:8090",
			Timeout: 10 * time.Second,
		},
		Sync: SyncConfig{
			Debounce: 500 * time.Millisecond,
		},
		Front: FrontConfig{
			URL:             "http://localhost:8080",
			PrefetchTimeout: 5 * time.Second,
		},
		Mock: MockConfig{
			HTTP: HTTPConfig{
				Port: 8090,
			},
			SQLite: SQLiteConfig{
				Path: "./notehub.db",
			},
			Auth: AuthConfig{
				Mode: AuthModeDisabled,
			},
		},
	}
}
