package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treesync/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "treesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "treesync.db", cfg.Database.Path)
	assert.Equal(t, 5000, cfg.Database.BusyTimeoutMS)
	assert.Equal(t, model.DefaultUser, cfg.Session.User)
	assert.Empty(t, cfg.Session.Tenant)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /var/lib/treesync/data.db
  busy_timeout_ms: 250
session:
  tenant: acme
  user: alice
log:
  level: debug
  format: json
`)

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/treesync/data.db", cfg.Database.Path)
	assert.Equal(t, 250, cfg.StoreOptions().BusyTimeoutMS)
	assert.Equal(t, model.Session{TenantID: "acme", UserID: "alice"}, cfg.UserSession())
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "session:\n  user: alice\n")
	t.Setenv("TREESYNC_SESSION_USER", "bob")
	t.Setenv("TREESYNC_DATABASE_PATH", "env.db")

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "bob", cfg.Session.User)
	assert.Equal(t, "env.db", cfg.Database.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"unknown log level", "log:\n  level: loud\n", "level"},
		{"unknown log format", "log:\n  format: xml\n", "format"},
		{"empty user", "session:\n  user: \"\"\n", "user"},
		{"negative busy timeout", "database:\n  busy_timeout_ms: -1\n", "busy_timeout_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(New(), writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{Path: "x.db"},
		Session:  SessionConfig{User: "alice"},
		Log:      LogConfig{Level: "warn", Format: "text"},
	}
	require.NoError(t, Validate(cfg))

	cfg.Database.Path = ""
	assert.Error(t, Validate(cfg))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf, false)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "item", "i1")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"item":"i1"`)

	logger, err = NewLogger(LogConfig{Level: "error", Format: "text"}, &buf, true)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	_, err = NewLogger(LogConfig{Level: "info", Format: "xml"}, &buf, false)
	assert.Error(t, err)
	_, err = NewLogger(LogConfig{Level: "loud", Format: "text"}, &buf, false)
	assert.Error(t, err)
}
