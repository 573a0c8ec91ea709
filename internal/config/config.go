// Package config loads treesync settings from a YAML file, TREESYNC_*
// environment variables and command-line flags, in increasing precedence.
// The merged settings are checked against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"

	"github.com/roach88/treesync/internal/model"
	"github.com/roach88/treesync/internal/store"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment variable, e.g. TREESYNC_DATABASE_PATH.
const EnvPrefix = "TREESYNC"

// Config is the complete treesync configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Session  SessionConfig  `mapstructure:"session" json:"session"`
	Log      LogConfig      `mapstructure:"log" json:"log"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path          string `mapstructure:"path" json:"path"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms" json:"busy_timeout_ms"`
}

// SessionConfig names the acting user and tenant.
type SessionConfig struct {
	Tenant string `mapstructure:"tenant" json:"tenant"`
	User   string `mapstructure:"user" json:"user"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// StoreOptions returns the options to open the database with.
func (c Config) StoreOptions() store.Options {
	return store.Options{BusyTimeoutMS: c.Database.BusyTimeoutMS}
}

// UserSession returns the session of the configured user and tenant.
func (c Config) UserSession() model.Session {
	return model.Session{TenantID: c.Session.Tenant, UserID: c.Session.User}
}

// New returns a viper instance with defaults and environment binding set up.
// Callers may bind flags on it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "treesync.db")
	v.SetDefault("database.busy_timeout_ms", store.DefaultBusyTimeoutMS)

	v.SetDefault("session.tenant", "")
	v.SetDefault("session.user", model.DefaultUser)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration. An empty file means defaults, environment
// and flags only; a named file must exist.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks cfg against the embedded schema.
func Validate(cfg Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := schema.Unify(ctx.Encode(cfg))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return errors.New(strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}
