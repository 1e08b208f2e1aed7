// Package config handles engine configuration and environment loading.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ConnectionConfig defines one named backend connection.
type ConnectionConfig struct {
	Name   string
	Driver string // sqlite3 or duckdb
	DSN    string
}

// Config holds the configuration for the query server and CLI.
type Config struct {
	ListenAddr  string // HTTP listen address (default ":8080")
	SchemaPath  string // path to the YAML schema file
	LogLevel    string // debug, info, warn, error (default "info")
	Connections []ConnectionConfig
}

// Load reads configuration from the environment:
//
//	METRICLENS_LISTEN_ADDR   HTTP listen address
//	METRICLENS_SCHEMA        path to the YAML schema file
//	METRICLENS_LOG_LEVEL     debug | info | warn | error
//	METRICLENS_CONNECTIONS   comma-separated name;driver;dsn entries
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr: envOr("METRICLENS_LISTEN_ADDR", ":8080"),
		SchemaPath: os.Getenv("METRICLENS_SCHEMA"),
		LogLevel:   envOr("METRICLENS_LOG_LEVEL", "info"),
	}

	raw := os.Getenv("METRICLENS_CONNECTIONS")
	if raw != "" {
		for _, entry := range strings.Split(raw, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			conn, err := ParseConnection(entry)
			if err != nil {
				return nil, err
			}
			cfg.Connections = append(cfg.Connections, conn)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConnection parses one name;driver;dsn entry.
func ParseConnection(entry string) (ConnectionConfig, error) {
	parts := strings.SplitN(entry, ";", 3)
	if len(parts) != 3 {
		return ConnectionConfig{}, fmt.Errorf("connection %q must be name;driver;dsn", entry)
	}
	conn := ConnectionConfig{
		Name:   strings.TrimSpace(parts[0]),
		Driver: strings.TrimSpace(parts[1]),
		DSN:    strings.TrimSpace(parts[2]),
	}
	if conn.Name == "" || conn.Driver == "" || conn.DSN == "" {
		return ConnectionConfig{}, fmt.Errorf("connection %q must be name;driver;dsn", entry)
	}
	return conn, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.SchemaPath == "" {
		return fmt.Errorf("METRICLENS_SCHEMA is required")
	}
	if len(c.Connections) == 0 {
		return fmt.Errorf("METRICLENS_CONNECTIONS must define at least one connection")
	}
	seen := map[string]bool{}
	for _, conn := range c.Connections {
		if seen[conn.Name] {
			return fmt.Errorf("connection %q defined twice", conn.Name)
		}
		seen[conn.Name] = true
		if conn.Driver != "sqlite3" && conn.Driver != "duckdb" {
			return fmt.Errorf("connection %q: driver must be sqlite3 or duckdb", conn.Name)
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("METRICLENS_LOG_LEVEL must be debug, info, warn, or error")
	}
	return nil
}

// SlogLevel converts the configured log level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
