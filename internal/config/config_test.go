package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("METRICLENS_LISTEN_ADDR", ":9090")
	t.Setenv("METRICLENS_SCHEMA", "/etc/metriclens/schema.yaml")
	t.Setenv("METRICLENS_LOG_LEVEL", "debug")
	t.Setenv("METRICLENS_CONNECTIONS", "primary;sqlite3;/data/app.db, analytics;duckdb;/data/analytics.duckdb")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "/etc/metriclens/schema.yaml", cfg.SchemaPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.Len(t, cfg.Connections, 2)
	assert.Equal(t, ConnectionConfig{Name: "primary", Driver: "sqlite3", DSN: "/data/app.db"}, cfg.Connections[0])
	assert.Equal(t, ConnectionConfig{Name: "analytics", Driver: "duckdb", DSN: "/data/analytics.duckdb"}, cfg.Connections[1])
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("METRICLENS_LISTEN_ADDR", "")
	t.Setenv("METRICLENS_SCHEMA", "schema.yaml")
	t.Setenv("METRICLENS_LOG_LEVEL", "")
	t.Setenv("METRICLENS_CONNECTIONS", "primary;sqlite3;:memory:")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_RequiresSchema(t *testing.T) {
	t.Setenv("METRICLENS_SCHEMA", "")
	t.Setenv("METRICLENS_CONNECTIONS", "primary;sqlite3;:memory:")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "METRICLENS_SCHEMA")
}

func TestLoad_RequiresConnections(t *testing.T) {
	t.Setenv("METRICLENS_SCHEMA", "schema.yaml")
	t.Setenv("METRICLENS_CONNECTIONS", "")

	_, err := Load()
	require.Error(t, err)
}

func TestParseConnection(t *testing.T) {
	conn, err := ParseConnection("primary;sqlite3;file::memory:?cache=shared")
	require.NoError(t, err)
	// The DSN may itself contain semicolons past the first two splits.
	assert.Equal(t, "file::memory:?cache=shared", conn.DSN)

	for _, entry := range []string{"", "primary", "primary;sqlite3", ";;x"} {
		_, err := ParseConnection(entry)
		assert.Error(t, err, "entry %q", entry)
	}
}

func TestValidate_RejectsBadInput(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SchemaPath: "schema.yaml",
			LogLevel:   "info",
			Connections: []ConnectionConfig{
				{Name: "primary", Driver: "sqlite3", DSN: ":memory:"},
			},
		}
	}

	cfg := valid()
	cfg.Connections[0].Driver = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Connections = append(cfg.Connections, cfg.Connections[0])
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())

	assert.NoError(t, valid().Validate())
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "debug"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: "info"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "warn"}).SlogLevel())
	assert.Equal(t, slog.LevelError, (&Config{LogLevel: "error"}).SlogLevel())
}
