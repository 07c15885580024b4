// Package database builds the two Postgres handles the RowStore/EventLog
// adapter needs: a pgxpool.Pool for pooled reads and a *sqlx.DB (over
// lib/pq) for the batched sqlx.NamedExec writer, mirroring the teacher's
// own coexistence of pgx and sqlx/lib/pq across services (spec.md §11.1).
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/pipeworks/shopfloor-orchestrator/internal/config"
	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
)

// Handles bundles both Postgres connections a running server needs.
type Handles struct {
	Pool *pgxpool.Pool
	SQL  *sqlx.DB
}

// Connect validates cfg and opens both the pgx pool and the sqlx/lib/pq
// handle against it, logging the outcome with log.
func Connect(ctx context.Context, cfg *config.PostgresConfig, log *zap.Logger) (*Handles, error) {
	if err := validate(cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid database configuration")
	}

	dsn := ConnectionString(cfg)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "parsing pgx pool config")
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "opening pgx pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "pinging postgres via pgx")
	}

	sqlDB, err := sqlx.Open("postgres", dsn)
	if err != nil {
		pool.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "opening sqlx/lib-pq handle")
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := sqlDB.PingContext(ctx); err != nil {
		pool.Close()
		sqlDB.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "pinging postgres via sqlx")
	}

	log.Info("postgres connections established",
		zap.String("host", cfg.Host), zap.Int("port", cfg.Port), zap.String("database", cfg.Database))
	return &Handles{Pool: pool, SQL: sqlDB}, nil
}

// Close releases both handles. Errors from the sqlx side are logged, not
// returned, since callers close this during shutdown and have nowhere
// useful to propagate a failure.
func (h *Handles) Close(log *zap.Logger) {
	if h.Pool != nil {
		h.Pool.Close()
	}
	if h.SQL != nil {
		if err := h.SQL.Close(); err != nil {
			log.Warn("closing sqlx handle", zap.Error(err))
		}
	}
}

func validate(cfg *config.PostgresConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535")
	}
	if cfg.User == "" {
		return fmt.Errorf("database user is required")
	}
	if cfg.Database == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

// ConnectionString renders cfg as a libpq key=value DSN, omitting the
// password entirely when empty rather than emitting password= with a
// blank value.
func ConnectionString(cfg *config.PostgresConfig) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Database, sslMode(cfg.SSLMode))
	if cfg.Password != "" {
		dsn += " password=" + cfg.Password
	}
	return dsn
}

func sslMode(mode string) string {
	if mode == "" {
		return "disable"
	}
	return mode
}
