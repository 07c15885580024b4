package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
	"github.com/pipeworks/shopfloor-orchestrator/internal/store"
)

// EventStore is the sqlx/lib-pq-backed store.EventLog: an append-only
// eventos table, chunked at store.EventChunkSize per spec.md §4.6, §6.2.
type EventStore struct {
	DB *sqlx.DB
}

// NewEventStore builds an EventStore over db.
func NewEventStore(db *sqlx.DB) *EventStore {
	return &EventStore{DB: db}
}

// eventoRow is the sqlx-mapped shape of one eventos row.
type eventoRow struct {
	ID             string         `db:"id"`
	Timestamp      sql.NullTime   `db:"timestamp"`
	Kind           string         `db:"kind"`
	Tag            string         `db:"tag"`
	WorkerID       int            `db:"worker_id"`
	WorkerName     string         `db:"worker_name"`
	Operacion      sql.NullString `db:"operacion"`
	Accion         sql.NullString `db:"accion"`
	FechaOperacion sql.NullTime   `db:"fecha_operacion"`
	MetadataJSON   sql.NullString `db:"metadata_json"`
	NUnion         sql.NullInt64  `db:"n_union"`
}

const insertEventoSQL = `
INSERT INTO eventos
	(timestamp, kind, tag, worker_id, worker_name, operacion, accion, fecha_operacion, metadata_json, n_union)
VALUES
	(:timestamp, :kind, :tag, :worker_id, :worker_name, :operacion, :accion, :fecha_operacion, :metadata_json, :n_union)`

// Append writes events in chunks of at most store.EventChunkSize rows, each
// chunk in its own transaction (spec.md §4.6, §6.2).
func (s *EventStore) Append(ctx context.Context, events []store.EventRecord) error {
	for start := 0; start < len(events); start += store.EventChunkSize {
		end := start + store.EventChunkSize
		if end > len(events) {
			end = len(events)
		}
		if err := s.appendChunk(ctx, events[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *EventStore) appendChunk(ctx context.Context, chunk []store.EventRecord) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "beginning event append tx")
	}
	for _, e := range chunk {
		if _, err := tx.NamedExecContext(ctx, insertEventoSQL, toEventoRow(e)); err != nil {
			_ = tx.Rollback()
			return apperrors.Wrapf(err, apperrors.ErrorTypeDatabase, "appending event %s for %s", e.Kind, e.Tag)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "committing event append")
	}
	return nil
}

// LastForTag returns the most recently appended event for tag.
func (s *EventStore) LastForTag(ctx context.Context, tag string) (store.EventRecord, bool, error) {
	var row eventoRow
	query := s.DB.Rebind(`SELECT * FROM eventos WHERE tag = ? ORDER BY timestamp DESC LIMIT 1`)
	err := s.DB.GetContext(ctx, &row, query, tag)
	if err == sql.ErrNoRows {
		return store.EventRecord{}, false, nil
	}
	if err != nil {
		return store.EventRecord{}, false, apperrors.Wrapf(err, apperrors.ErrorTypeDatabase, "reading last event for %s", tag)
	}
	return fromEventoRow(row), true, nil
}

// ForTag returns every event for tag in append order.
func (s *EventStore) ForTag(ctx context.Context, tag string) ([]store.EventRecord, error) {
	var rows []eventoRow
	query := s.DB.Rebind(`SELECT * FROM eventos WHERE tag = ? ORDER BY timestamp ASC`)
	if err := s.DB.SelectContext(ctx, &rows, query, tag); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeDatabase, "reading events for %s", tag)
	}
	out := make([]store.EventRecord, len(rows))
	for i, r := range rows {
		out[i] = fromEventoRow(r)
	}
	return out, nil
}

func toEventoRow(e store.EventRecord) eventoRow {
	row := eventoRow{
		Timestamp:      sql.NullTime{Time: e.Timestamp, Valid: !e.Timestamp.IsZero()},
		Kind:           e.Kind,
		Tag:            e.Tag,
		WorkerID:       e.WorkerID,
		WorkerName:     e.WorkerName,
		Operacion:      sql.NullString{String: e.Operacion, Valid: e.Operacion != ""},
		Accion:         sql.NullString{String: e.Accion, Valid: e.Accion != ""},
		FechaOperacion: sql.NullTime{Time: e.FechaOperacion, Valid: !e.FechaOperacion.IsZero()},
		MetadataJSON:   sql.NullString{String: e.MetadataJSON, Valid: e.MetadataJSON != ""},
	}
	if e.NUnion != nil {
		row.NUnion = sql.NullInt64{Int64: int64(*e.NUnion), Valid: true}
	}
	return row
}

func fromEventoRow(row eventoRow) store.EventRecord {
	e := store.EventRecord{
		ID:             row.ID,
		Timestamp:      row.Timestamp.Time,
		Kind:           row.Kind,
		Tag:            row.Tag,
		WorkerID:       row.WorkerID,
		WorkerName:     row.WorkerName,
		Operacion:      row.Operacion.String,
		Accion:         row.Accion.String,
		FechaOperacion: row.FechaOperacion.Time,
		MetadataJSON:   row.MetadataJSON.String,
	}
	if row.NUnion.Valid {
		n := int(row.NUnion.Int64)
		e.NUnion = &n
	}
	return e
}
