// Command shopfloor-orchestrator is the process entrypoint: load config,
// build a zap logger, connect to Postgres and Redis, wrap the storage
// layer in resilience, validate the schema, and serve the HTTP surface
// (SPEC_FULL.md §10.5). It carries no business logic beyond wiring.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pipeworks/shopfloor-orchestrator/internal/columnmap"
	"github.com/pipeworks/shopfloor-orchestrator/internal/config"
	"github.com/pipeworks/shopfloor-orchestrator/internal/database"
	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
	"github.com/pipeworks/shopfloor-orchestrator/internal/httpapi"
	"github.com/pipeworks/shopfloor-orchestrator/internal/occupation"
	"github.com/pipeworks/shopfloor-orchestrator/internal/orchestrator"
	"github.com/pipeworks/shopfloor-orchestrator/internal/schema"
	"github.com/pipeworks/shopfloor-orchestrator/internal/store/postgres"
	"github.com/pipeworks/shopfloor-orchestrator/internal/store/redislock"
	"github.com/pipeworks/shopfloor-orchestrator/internal/store/resilient"
	"github.com/pipeworks/shopfloor-orchestrator/pkg/worker/staticdir"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	rosterPath := flag.String("roster", "", "path to the worker roster YAML file (optional)")
	flag.Parse()

	if err := run(*configPath, *rosterPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, rosterPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	handles, err := database.Connect(ctx, &cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer handles.Close(log)

	if err := postgres.Migrate(handles.SQL.DB); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	rawStore := postgres.New(handles.Pool, handles.SQL)

	cm := columnmap.New(rawStore)
	if err := schema.Validate(cm, nil); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	resilientStore := resilient.New(rawStore, "postgres", log)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	lock := redislock.New(redisClient)
	coord := occupation.NewWithTTL(resilientStore, lock, log, cfg.Occupation.TTL)
	orch := orchestrator.New(resilientStore, resilientStore, coord, log)

	var workers *staticdir.Directory
	if rosterPath != "" {
		workers, err = staticdir.Load(rosterPath)
		if err != nil {
			return fmt.Errorf("loading worker roster: %w", err)
		}
	} else {
		workers = staticdir.New()
	}

	srv := httpapi.New(orch, resilientStore, workers, log)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Router(nil),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeValidation, "invalid log level %q", cfg.Level)
	}
	zapCfg.Level = level
	return zapCfg.Build()
}
