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

	"github.com/querydesk/querydesk/internal/api"
	"github.com/querydesk/querydesk/internal/auth"
	"github.com/querydesk/querydesk/internal/catalog"
	"github.com/querydesk/querydesk/internal/config"
	"github.com/querydesk/querydesk/internal/engine"
	athenaengine "github.com/querydesk/querydesk/internal/engine/athena"
	duckdbengine "github.com/querydesk/querydesk/internal/engine/duckdb"
	"github.com/querydesk/querydesk/internal/observability"
	"github.com/querydesk/querydesk/internal/orchestrator"
	"github.com/querydesk/querydesk/internal/storage"
	"github.com/querydesk/querydesk/internal/storage/s3"
)

const serviceName = "querydesk-api"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFromEnv(serviceName)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	queryCatalog, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load named query catalog: %w", err)
	}
	logger.Info("named query catalog loaded", "entries", queryCatalog.Len(), "path", cfg.Catalog.Path)

	queryEngine, artifacts, readinessChecks, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}

	service := &orchestrator.Service{
		Engine:  queryEngine,
		Catalog: queryCatalog,
		Logger:  logger,
		Config: orchestrator.Config{
			PollInterval:    cfg.Engine.PollInterval,
			MaxPollAttempts: cfg.Engine.MaxPollAttempts,
			QueryTimeout:    cfg.Engine.QueryTimeout,
			MaxSQLBytes:     cfg.Engine.MaxSQLBytes,
		},
	}

	deps := api.Dependencies{
		Logger:          logger,
		Executor:        service,
		Catalog:         queryCatalog,
		Artifacts:       artifacts,
		ReadinessChecks: readinessChecks,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			return fmt.Errorf("parse static API keys: %w", err)
		}
		deps.Auth = auth.Middleware(logger, validator)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "address", cfg.HTTP.Address, "engine", string(cfg.Engine.Kind))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

func buildEngine(ctx context.Context, cfg config.Config, logger *slog.Logger) (engine.Engine, storage.ObjectStore, []api.ReadinessCheck, error) {
	switch cfg.Engine.Kind {
	case config.EngineAthena:
		client, err := athenaengine.New(ctx, athenaengine.Config{
			Region:          cfg.Athena.Region,
			Workgroup:       cfg.Athena.Workgroup,
			Database:        cfg.Athena.Database,
			Catalog:         cfg.Athena.Catalog,
			OutputLocation:  cfg.Athena.OutputLocation,
			ResultsPageSize: cfg.Engine.ResultsPageSize,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("build athena engine: %w", err)
		}
		return client, nil, nil, nil

	case config.EngineDuckDB:
		var (
			store  storage.ObjectStore
			checks []api.ReadinessCheck
		)
		if cfg.ObjectStore.Endpoint != "" {
			artifactStore, err := s3.New(ctx, s3.Config{
				Endpoint:         cfg.ObjectStore.Endpoint,
				Region:           cfg.ObjectStore.Region,
				Bucket:           cfg.ObjectStore.Bucket,
				AccessKeyID:      cfg.ObjectStore.AccessKeyID,
				SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
				UseSSL:           cfg.ObjectStore.UseSSL,
				Prefix:           cfg.ObjectStore.Prefix,
				AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
			})
			if err != nil {
				return nil, nil, nil, fmt.Errorf("build artifact store: %w", err)
			}
			store = artifactStore
			checks = append(checks, api.ReadinessCheck{
				Name:  "artifact_store",
				Check: artifactStore.Ping,
			})
		}
		logger.Info("using embedded duckdb engine", "artifacts", store != nil)
		eng := duckdbengine.New(duckdbengine.Config{
			ResultsPageSize: cfg.Engine.ResultsPageSize,
		}, logger, store)
		return eng, store, checks, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown engine kind %q", cfg.Engine.Kind)
	}
}
