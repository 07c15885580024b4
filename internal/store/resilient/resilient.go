// Package resilient wraps a store.RowStore and store.EventLog with a
// circuit breaker and bounded retry, so a failing Postgres backend fails
// fast as ErrorTypeDatabase instead of hanging every caller, a version
// conflict gets one retry, and a transient backend blip gets up to three
// attempts, instead of surfacing to the caller on the first hiccup
// (spec.md §7).
package resilient

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
	"github.com/pipeworks/shopfloor-orchestrator/internal/metrics"
	"github.com/pipeworks/shopfloor-orchestrator/internal/store"
)

// Store wraps a store.RowStore + store.EventLog pair with a shared circuit
// breaker and the retry policies spec.md §7 requires.
type Store struct {
	inner   interface {
		store.RowStore
		store.EventLog
	}
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// New wraps inner with a circuit breaker named name. log may be nil.
func New(inner interface {
	store.RowStore
	store.EventLog
}, name string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Store{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings), log: log}
}

func (s *Store) guard(ctx context.Context, op string, fn func() (any, error)) (any, error) {
	result, err := s.breaker.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		s.log.Warn("circuit breaker open, failing fast", zap.String("op", op))
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeDatabase, "%s: backend unavailable", op)
	}
	return result, err
}

// ReadRow passes straight through the breaker; reads are idempotent and
// not retried (a stale read is surfaced immediately, not masked by retry).
func (s *Store) ReadRow(ctx context.Context, table, key string) (store.Row, error) {
	result, err := s.guard(ctx, "ReadRow", func() (any, error) { return s.inner.ReadRow(ctx, table, key) })
	if err != nil {
		return nil, err
	}
	return result.(store.Row), nil
}

func (s *Store) ReadAll(ctx context.Context, table string) ([]store.Row, error) {
	result, err := s.guard(ctx, "ReadAll", func() (any, error) { return s.inner.ReadAll(ctx, table) })
	if err != nil {
		return nil, err
	}
	return result.([]store.Row), nil
}

func (s *Store) FindRowByColumn(ctx context.Context, table, column, value string) (int, bool, error) {
	type found struct {
		row int
		ok  bool
	}
	result, err := s.guard(ctx, "FindRowByColumn", func() (any, error) {
		row, ok, ferr := s.inner.FindRowByColumn(ctx, table, column, value)
		return found{row, ok}, ferr
	})
	if err != nil {
		return 0, false, err
	}
	f := result.(found)
	return f.row, f.ok, nil
}

func (s *Store) ReadHeader(table string) ([]string, error) {
	return s.inner.ReadHeader(table)
}

// UpdateCellByColumnName retries once on VersionConflict and up to three
// attempts on ErrorTypeDatabase (spec.md §7); any other failure propagates
// immediately.
func (s *Store) UpdateCellByColumnName(ctx context.Context, table string, row int, name, value string) error {
	return s.withRetry(ctx, "UpdateCellByColumnName", func() error {
		return s.inner.UpdateCellByColumnName(ctx, table, row, name, value)
	})
}

// BatchUpdateByColumnName retries the same policy as UpdateCellByColumnName.
func (s *Store) BatchUpdateByColumnName(ctx context.Context, table string, writes []store.CellWrite) error {
	return s.withRetry(ctx, "BatchUpdateByColumnName", func() error {
		return s.inner.BatchUpdateByColumnName(ctx, table, writes)
	})
}

func (s *Store) Append(ctx context.Context, events []store.EventRecord) error {
	return s.withRetry(ctx, "Append", func() error {
		return s.inner.Append(ctx, events)
	})
}

func (s *Store) LastForTag(ctx context.Context, tag string) (store.EventRecord, bool, error) {
	type found struct {
		event store.EventRecord
		ok    bool
	}
	result, err := s.guard(ctx, "LastForTag", func() (any, error) {
		event, ok, ferr := s.inner.LastForTag(ctx, tag)
		return found{event, ok}, ferr
	})
	if err != nil {
		return store.EventRecord{}, false, err
	}
	f := result.(found)
	return f.event, f.ok, nil
}

func (s *Store) ForTag(ctx context.Context, tag string) ([]store.EventRecord, error) {
	result, err := s.guard(ctx, "ForTag", func() (any, error) { return s.inner.ForTag(ctx, tag) })
	if err != nil {
		return nil, err
	}
	return result.([]store.EventRecord), nil
}

// withRetry runs fn through the breaker, retrying per spec.md §7: one
// retry on VersionConflict, up to three exponential-backoff attempts on
// TransientBackendError (ErrorTypeDatabase). Any other error type is not
// retried.
func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	operation := func() (any, error) {
		attempt++
		_, err := s.breaker.Execute(func() (any, error) { return nil, fn() })
		if err == nil {
			return nil, nil
		}
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			s.log.Warn("circuit breaker open, failing fast", zap.String("op", op))
			metrics.RecordCircuitBreakerOpen()
			return nil, backoff.Permanent(apperrors.Wrapf(err, apperrors.ErrorTypeDatabase, "%s: backend unavailable", op))
		}
		// VersionConflict gets one retry (two total attempts);
		// TransientBackendError gets three total attempts (spec.md §7).
		if apperrors.IsType(err, apperrors.ErrorTypeConflict) && attempt <= 1 {
			metrics.RecordStoreRetry(string(apperrors.ErrorTypeConflict))
			return nil, err
		}
		if apperrors.IsType(err, apperrors.ErrorTypeDatabase) && attempt <= 2 {
			metrics.RecordStoreRetry(string(apperrors.ErrorTypeDatabase))
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3))
	if err != nil {
		s.log.Warn("operation failed after retries", zap.String("op", op), zap.Error(err))
	}
	return err
}

var (
	_ store.RowStore = (*Store)(nil)
	_ store.EventLog = (*Store)(nil)
)
