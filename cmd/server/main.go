package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metriclens/internal/api"
	"metriclens/internal/config"
	"metriclens/internal/db"
	"metriclens/internal/schema"
	"metriclens/internal/service/semantic"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	registry := db.NewRegistry()
	for _, conn := range cfg.Connections {
		sqlDB, grammar, err := db.Open(conn.Driver, conn.DSN)
		if err != nil {
			return fmt.Errorf("open connection %q: %w", conn.Name, err)
		}
		defer sqlDB.Close()
		registry.Register(conn.Name, db.NewSQLAdapter(sqlDB), grammar)
		logger.Info("connection registered", "name", conn.Name, "driver", conn.Driver)
	}

	provider, err := schema.LoadFile(cfg.SchemaPath)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	catalog, err := schema.Resolve(provider)
	if err != nil {
		return fmt.Errorf("resolve schema: %w", err)
	}

	service := semantic.NewService(catalog, registry, logger)
	handler := api.NewHandler(service, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
