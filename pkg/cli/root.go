// Package cli implements the metriclens command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"metriclens/internal/config"
	"metriclens/internal/db"
	"metriclens/internal/schema"
	"metriclens/internal/service/semantic"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type rootFlags struct {
	schemaPath  string
	connections []string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "metriclens",
		Short:         "Metric query engine CLI",
		Long:          "Plans and runs metric queries against the configured connections.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.schemaPath, "schema", "", "path to the YAML schema file")
	rootCmd.PersistentFlags().StringArrayVar(&flags.connections, "connection", nil, "connection as name;driver;dsn (repeatable)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newQueryCmd(flags))
	rootCmd.AddCommand(newExplainCmd(flags))
	return rootCmd
}

// buildService resolves the schema, opens connections, and wires the service.
// The returned cleanup closes the opened database handles.
func buildService(flags *rootFlags) (*semantic.Service, func(), error) {
	cfg := &config.Config{
		SchemaPath: flags.schemaPath,
		LogLevel:   flags.logLevel,
	}
	for _, entry := range flags.connections {
		conn, err := config.ParseConnection(entry)
		if err != nil {
			return nil, nil, err
		}
		cfg.Connections = append(cfg.Connections, conn)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	registry := db.NewRegistry()
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	for _, conn := range cfg.Connections {
		sqlDB, grammar, err := db.Open(conn.Driver, conn.DSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open connection %q: %w", conn.Name, err)
		}
		closers = append(closers, func() { _ = sqlDB.Close() })
		registry.Register(conn.Name, db.NewSQLAdapter(sqlDB), grammar)
	}

	provider, err := schema.LoadFile(cfg.SchemaPath)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("load schema: %w", err)
	}
	catalog, err := schema.Resolve(provider)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("resolve schema: %w", err)
	}

	return semantic.NewService(catalog, registry, logger), cleanup, nil
}
