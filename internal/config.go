package internal

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notelinker/internal/linker"
	"github.com/starford/notelinker/internal/linkservice"
	"github.com/starford/notelinker/internal/vault"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Linker LinkerConfig      `yaml:"linker"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Linker.Validate()
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

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds the path of the SQLite link cache.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
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
	// Normalise empty mode to "disabled" for backward compatibility.
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

// LinkerConfig controls how mentions are matched and previewed.
type LinkerConfig struct {
	CaseInsensitive bool     `yaml:"case_insensitive"`
	LinkToSelf      bool     `yaml:"link_to_self"`
	Color           string   `yaml:"color"`
	IncludePaths    []string `yaml:"include_paths"`
	ExcludePaths    []string `yaml:"exclude_paths"`
	Workers         int      `yaml:"workers"`
	ParseCacheSize  int      `yaml:"parse_cache_size"`
}

// Validate validates the linker configuration.
func (c *LinkerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Color, validation.Required, validation.By(noMarkup)),
		validation.Field(&c.Workers, validation.Min(0), validation.Max(runtime.NumCPU()*8)),
		validation.Field(&c.ParseCacheSize, validation.Min(0)),
	)
}

// noMarkup rejects colors that would break out of the preview span.
func noMarkup(value interface{}) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, "<>\"\n;") {
		return fmt.Errorf("must not contain markup characters")
	}
	return nil
}

// Settings converts the configuration into link service settings.
func (c *LinkerConfig) Settings() linkservice.Settings {
	return linkservice.Settings{
		Filter: vault.Filter{Include: c.IncludePaths, Exclude: c.ExcludePaths},
		Linker: linker.Options{
			CaseInsensitive: c.CaseInsensitive,
			LinkToSelf:      c.LinkToSelf,
		},
		Color:   c.Color,
		Workers: c.Workers,
	}
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
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./notelinker.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Linker: LinkerConfig{
			CaseInsensitive: true,
			Color:           linker.DefaultColor,
		},
	}
}
