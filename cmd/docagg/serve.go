package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	corecfg "github.com/aevon-lab/docagg/internal/core/config"
	"github.com/aevon-lab/docagg/internal/core/storage"
	"github.com/aevon-lab/docagg/internal/core/storage/postgres"
	"github.com/aevon-lab/docagg/internal/engine/mongodb"
	"github.com/aevon-lab/docagg/internal/migrations"
	"github.com/aevon-lab/docagg/internal/query"
	schemaapi "github.com/aevon-lab/docagg/internal/schema/api"
	"github.com/aevon-lab/docagg/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *corecfg.Config) error {
	slog.Info("Loaded config",
		"mongo_database", cfg.Mongo.Database,
		"schema_path", cfg.Schema.Path,
		"templates", cfg.Database.Enabled)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 1. Query engine (MongoDB)
	exec, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout)
	if err != nil {
		return err
	}
	defer exec.Close(context.Background())

	checks := map[string]server.HealthChecker{"mongo": exec}

	// 2. Template store (PostgreSQL), optional
	var templates storage.TemplateStore
	if cfg.Database.Enabled {
		db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return err
		}
		if err := migrations.RunMigrations(db, cfg.Database.AutoMigrate); err != nil {
			db.Close()
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
		adapter, err := postgres.NewTemplateAdapter(db)
		if err != nil {
			db.Close()
			return err
		}
		defer adapter.Close()

		templates = adapter
		checks["database"] = adapter
	} else {
		slog.Info("Template store disabled by config")
	}

	// 3. Collection schemas
	registry := newSchemaRegistry(cfg)

	// 4. Query API
	svc := query.NewService(registry, exec, templates, query.Options{
		TenantID:      cfg.Schema.TenantID,
		MaxParallel:   cfg.Aggregation.MaxParallel,
		MaxBodySizeMB: cfg.Server.MaxBodySizeMB,
		DefaultBins:   cfg.Aggregation.DefaultBins,
	})

	srv := server.New(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), cfg.Server.Mode, checks)
	svc.RegisterRoutes(srv.Engine)
	schemaapi.NewService(registry, cfg.Schema.TenantID).RegisterRoutes(srv.Engine)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("Signal received, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}

	slog.Info("Shutdown complete")
	return nil
}
