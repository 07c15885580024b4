// Package occupation implements OccupationCoordinator (spec.md §4.4): the
// distributed-lock-plus-row-witness mechanism that keeps a spool owned by at
// most one worker. The lock (store.LockService) is an accelerator; the
// row columns ocupado_por/fecha_ocupacion/version remain the source of
// truth (spec.md §6.4), so every operation here re-verifies the row after
// touching the lock.
package occupation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
	"github.com/pipeworks/shopfloor-orchestrator/internal/metrics"
	"github.com/pipeworks/shopfloor-orchestrator/internal/store"
)

// TTL is the default lock lifetime, long enough to cover a multi-hour work
// session (spec.md §4.4, §5 "Shared resources"). A deployment may override
// it per Coordinator via config.OccupationConfig.TTL (SPEC_FULL.md §10.2).
const TTL = 4 * time.Hour

// Mode selects the column mutation release performs (spec.md §4.4).
type Mode int

const (
	ModePause Mode = iota
	ModeComplete
	ModeCancel
)

// Coordinator is OccupationCoordinator. It is stateless and safe for
// concurrent use; all mutable state lives in RowStore and LockService.
type Coordinator struct {
	Rows  store.RowStore
	Locks store.LockService
	Log   *zap.Logger
	TTL   time.Duration
}

// New builds a Coordinator with the default TTL. log may be nil; a nop
// logger is substituted.
func New(rows store.RowStore, locks store.LockService, log *zap.Logger) *Coordinator {
	return NewWithTTL(rows, locks, log, TTL)
}

// NewWithTTL builds a Coordinator whose lock lifetime is ttl instead of the
// package default, per config.OccupationConfig.TTL.
func NewWithTTL(rows store.RowStore, locks store.LockService, log *zap.Logger, ttl time.Duration) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = TTL
	}
	return &Coordinator{Rows: rows, Locks: locks, Log: log, TTL: ttl}
}

// Token is the ownership token returned by Acquire and required by Verify
// and Release.
type Token string

// Acquire takes the spool named by tag for worker, writing the row's
// occupation witnesses together with extra in a single batched call so a
// TOMAR transition produces exactly one RowStore write (spec.md §4.4
// acquire, §4.5 step 5), and returns a fresh ownership token.
func (c *Coordinator) Acquire(ctx context.Context, table, tag string, worker domain.WorkerRef, extra []store.CellWrite, now time.Time) (Token, error) {
	waitStart := time.Now()
	owner := worker.Canonical()
	ok, err := c.Locks.Acquire(ctx, tag, owner, c.TTL)
	if err != nil {
		metrics.RecordLockWait(time.Since(waitStart), false)
		return "", apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "lock acquire failed")
	}
	if !ok {
		metrics.RecordLockWait(time.Since(waitStart), true)
		holder, _, inspectErr := c.Locks.Inspect(ctx, tag)
		if inspectErr != nil || holder == "" {
			holder = "another worker"
		}
		return "", apperrors.NewSpoolOccupiedError(tag, holder)
	}
	metrics.RecordLockWait(time.Since(waitStart), false)

	row, err := c.Rows.ReadRow(ctx, table, tag)
	if err != nil {
		_ = c.Locks.Release(ctx, tag, owner)
		return "", err
	}
	current := row[domain.NormalizeName("ocupado_por")]
	if current != "" && current != owner {
		_ = c.Locks.Release(ctx, tag, owner)
		return "", apperrors.NewSpoolOccupiedError(tag, current)
	}

	rowNum, found, err := c.Rows.FindRowByColumn(ctx, table, "tag", tag)
	if err != nil {
		_ = c.Locks.Release(ctx, tag, owner)
		return "", err
	}
	if !found {
		_ = c.Locks.Release(ctx, tag, owner)
		return "", apperrors.NewNotFoundError("spool " + tag)
	}

	token := Token(uuid.NewString())
	writes := append([]store.CellWrite{}, extra...)
	writes = append(writes,
		store.CellWrite{Row: rowNum, Name: "ocupado_por", Value: owner},
		store.CellWrite{Row: rowNum, Name: "fecha_ocupacion", Value: now.Format(domain.TimeLayout)},
		store.CellWrite{Row: rowNum, Name: "version", Value: string(token)},
	)
	if err := c.Rows.BatchUpdateByColumnName(ctx, table, writes); err != nil {
		_ = c.Locks.Release(ctx, tag, owner)
		return "", err
	}
	return token, nil
}

// Verify confirms worker still holds tag under token, refreshing the lock's
// TTL on success (spec.md §4.4 verify, §5 "refreshed implicitly on observed
// ownership").
func (c *Coordinator) Verify(ctx context.Context, table, tag string, worker domain.WorkerRef, token Token) error {
	owner := worker.Canonical()
	lockOwner, held, err := c.Locks.Inspect(ctx, tag)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "lock inspect failed")
	}
	if !held {
		return apperrors.NewGoneError("occupation lock expired for " + tag)
	}
	if lockOwner != owner {
		return apperrors.NewForbiddenError("caller does not hold the occupation lock for " + tag)
	}

	row, err := c.Rows.ReadRow(ctx, table, tag)
	if err != nil {
		return err
	}
	if row[domain.NormalizeName("ocupado_por")] != owner {
		return apperrors.NewForbiddenError("caller does not hold spool " + tag)
	}
	if row[domain.NormalizeName("version")] != string(token) {
		return apperrors.NewVersionConflictError(tag)
	}

	if err := c.Locks.Refresh(ctx, tag, owner, c.TTL); err != nil {
		c.Log.Warn("occupation lock refresh failed", zap.String("tag", tag), zap.Error(err))
	}
	return nil
}

// Release verifies ownership then clears ocupado_por and fecha_ocupacion
// (in every mode), bumps version, and releases the lock. All
// column writes are batched into a single external call (spec.md §4.4
// release).
func (c *Coordinator) Release(ctx context.Context, table, tag string, worker domain.WorkerRef, token Token, mode Mode, extra []store.CellWrite, now time.Time) error {
	if err := c.Verify(ctx, table, tag, worker, token); err != nil {
		return err
	}

	rowNum, found, err := c.Rows.FindRowByColumn(ctx, table, "tag", tag)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.NewNotFoundError("spool " + tag)
	}

	writes := append([]store.CellWrite{}, extra...)
	switch mode {
	case ModePause, ModeCancel:
		writes = append(writes,
			store.CellWrite{Row: rowNum, Name: "ocupado_por", Value: ""},
			store.CellWrite{Row: rowNum, Name: "fecha_ocupacion", Value: ""},
		)
	case ModeComplete:
		writes = append(writes,
			store.CellWrite{Row: rowNum, Name: "ocupado_por", Value: ""},
			store.CellWrite{Row: rowNum, Name: "fecha_ocupacion", Value: ""},
		)
	}
	writes = append(writes, store.CellWrite{Row: rowNum, Name: "version", Value: uuid.NewString()})

	if err := c.Rows.BatchUpdateByColumnName(ctx, table, writes); err != nil {
		return err
	}

	owner := worker.Canonical()
	if err := c.Locks.Release(ctx, tag, owner); err != nil {
		c.Log.Warn("occupation lock release failed", zap.String("tag", tag), zap.Error(err))
	}
	return nil
}
