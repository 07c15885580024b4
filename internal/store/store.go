// Package store defines the three external collaborator contracts of
// spec.md §6: RowStore, EventLog, and LockService. The core (occupation,
// state machines, orchestrator) depends only on these interfaces; concrete
// bindings live in store/postgres, store/redislock, and store/resilient.
package store

import (
	"context"
	"time"
)

// Row is a name-addressed view of one table row, as RowStore.ReadRow
// returns it (spec.md §6.1).
type Row = map[string]string

// CellWrite names a single cell write within a batch, addressed by row
// number and logical column name (spec.md §6.1
// update_cell_by_column_name / batch_update_by_column_name).
type CellWrite struct {
	Row    int
	Name   string
	Value  string
}

// RowStore is the authoritative durable table the occupation coordinator
// and state machines read and write (spec.md §6.1). Implementations must
// never expose cell-per-cell writes for multi-cell operations — callers use
// BatchUpdateByColumnName, which maps to a single external call.
type RowStore interface {
	// ReadRow returns the named-column view of the row whose tag column
	// equals key.
	ReadRow(ctx context.Context, table, key string) (Row, error)

	// ReadAll returns every row of table. Implementations may cache this
	// and must invalidate the cache on any write to table.
	ReadAll(ctx context.Context, table string) ([]Row, error)

	// FindRowByColumn returns the 1-based row number whose named column
	// holds value, or ok=false if no row matches.
	FindRowByColumn(ctx context.Context, table, column, value string) (row int, ok bool, err error)

	// UpdateCellByColumnName writes a single cell. Reserved for
	// single-cell operations; multi-cell writes must use
	// BatchUpdateByColumnName (spec.md §6.1).
	UpdateCellByColumnName(ctx context.Context, table string, row int, name, value string) error

	// BatchUpdateByColumnName performs every write in a single external
	// call (spec.md §4.5 step 5: "a successful transition produces
	// exactly one batch write to RowStore").
	BatchUpdateByColumnName(ctx context.Context, table string, writes []CellWrite) error

	// ReadHeader returns the column names of table in physical order,
	// the minimal surface columnmap.HeaderReader needs.
	ReadHeader(table string) ([]string, error)
}

// EventLog is the append-only audit journal (spec.md §6.2). Column order is
// stable: id, timestamp, kind, tag, worker_id, worker_name, operacion,
// accion, fecha_operacion, metadata_json, n_union?.
type EventLog interface {
	// Append writes events in chunks of at most 900 rows per external
	// call (spec.md §4.6, §6.2), returning after every chunk succeeds.
	Append(ctx context.Context, events []EventRecord) error

	// LastForTag returns the most recently appended event for tag, or
	// ok=false if none exists. Used by supervisor-override detection
	// (spec.md §4.9).
	LastForTag(ctx context.Context, tag string) (EventRecord, bool, error)

	// ForTag returns every event for tag in append order, the input to
	// HistoryAggregator (spec.md §4.8).
	ForTag(ctx context.Context, tag string) ([]EventRecord, error)
}

// EventRecord is the wire shape of one EventLog row.
type EventRecord struct {
	ID             string
	Timestamp      time.Time
	Kind           string
	Tag            string
	WorkerID       int
	WorkerName     string
	Operacion      string
	Accion         string
	FechaOperacion time.Time
	MetadataJSON   string
	NUnion         *int
}

// LockService is the keyed mutual-exclusion primitive backing occupation
// (spec.md §6.3). Locks are advisory: RowStore's ocupado_por column remains
// the source of truth (spec.md §6.4).
type LockService interface {
	// Acquire takes the lock for key under owner with the given TTL,
	// returning ok=false if another owner already holds it.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (ok bool, err error)

	// Refresh extends an already-held lock's TTL. No-op error if owner
	// does not currently hold key.
	Refresh(ctx context.Context, key, owner string, ttl time.Duration) error

	// Release drops the lock for key if owner currently holds it.
	Release(ctx context.Context, key, owner string) error

	// Inspect returns the current owner of key, or ok=false if free or
	// expired.
	Inspect(ctx context.Context, key string) (owner string, ok bool, err error)
}

// EventChunkSize is the maximum number of rows per EventLog.Append external
// call (spec.md §4.6, §6.2).
const EventChunkSize = 900
