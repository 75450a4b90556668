package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/marksync/internal/apperr"
	"github.com/starford/marksync/internal/models"
	"github.com/starford/marksync/internal/trigger"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig  `yaml:"app"`
	Vault    VaultConfig        `yaml:"vault"`
	Sync     models.SyncOptions `yaml:"sync"`
	Schedule ScheduleConfig     `yaml:"schedule"`
	SQLite   SQLiteConfig       `yaml:"sqlite"`
	Auth     AuthConfig         `yaml:"auth"`
}

// Validate validates the configuration. Every failure wraps
// apperr.ErrInvalidConfig.
func (c *Config) Validate() error {
	for _, v := range []interface{ Validate() error }{&c.App, &c.Vault, &c.Sync, &c.Schedule, &c.SQLite, &c.Auth} {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", apperr.ErrInvalidConfig, err)
		}
	}
	return nil
}

// LogLevel returns the effective log level. An enabled sync.debug section
// overrides app.log_level.
func (c *Config) LogLevel() slog.Level {
	if !c.Sync.Debug.Enabled {
		return c.App.LogLevel
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Sync.Debug.LogLevel)); err != nil {
		return c.App.LogLevel
	}
	return lvl
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
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
	// SyncRate is the number of manual sync requests allowed per second.
	SyncRate  float64 `yaml:"sync_rate"`
	SyncBurst int     `yaml:"sync_burst"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.SyncRate, validation.Min(0.0)),
		validation.Field(&c.SyncBurst, validation.Min(0)),
	)
}

// VaultConfig locates the vault, the folder holding timeline notes and the
// timeline document. Both paths are relative to the vault root.
type VaultConfig struct {
	Path         string `yaml:"path"`
	NotesFolder  string `yaml:"notes_folder"`
	TimelinePath string `yaml:"timeline_path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.NotesFolder, validation.By(relativePath)),
		validation.Field(&c.TimelinePath, validation.Required, validation.By(relativePath)),
	)
}

func relativePath(value any) error {
	s, _ := value.(string)
	if strings.HasPrefix(s, "/") || s == ".." || strings.HasPrefix(s, "../") || strings.Contains(s, "/../") {
		return fmt.Errorf("must be a path inside the vault")
	}
	return nil
}

// ScheduleConfig controls the automatic triggers.
type ScheduleConfig struct {
	// AutoSync enables the file watcher and the interval trigger.
	AutoSync bool `yaml:"auto_sync"`
	// Interval is a cron spec ("*/5 * * * *", "@hourly") or a Go duration.
	// Empty disables the interval trigger.
	Interval string `yaml:"interval"`
	// Debounce is the quiet period that collapses bursts of triggers.
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the schedule configuration.
func (c *ScheduleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.By(func(value any) error {
			s, _ := value.(string)
			if s == "" {
				return nil
			}
			_, err := trigger.ParseInterval(s)
			return err
		})),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// SQLiteConfig holds the cycle journal configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
	// Keep is the number of cycles retained; zero keeps everything.
	Keep int `yaml:"keep"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Keep, validation.Min(0)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Enabled:   true,
				Port:      8080,
				SyncRate:  1,
				SyncBurst: 3,
			},
		},
		Vault: VaultConfig{
			Path:         "./vault",
			NotesFolder:  "notes",
			TimelinePath: "timeline.mw",
		},
		Sync: models.DefaultSyncOptions(),
		Schedule: ScheduleConfig{
			AutoSync: true,
			Interval: "@every 5m",
			Debounce: 2 * time.Second,
		},
		SQLite: SQLiteConfig{
			Path: "./marksync.db",
			Keep: 500,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
