package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
	"github.com/pipeworks/shopfloor-orchestrator/internal/store"
)

// Writer is the sqlx/lib-pq half of Store: single-cell and batched writes
// against the operaciones/uniones tables (spec.md §6.1).
type Writer struct {
	DB *sqlx.DB
}

// NewWriter builds a Writer over db.
func NewWriter(db *sqlx.DB) *Writer {
	return &Writer{DB: db}
}

// UpdateCellByColumnName writes a single cell, addressed by the row's
// 1-based ordinal position (id order), matching Reader.FindRowByColumn.
func (w *Writer) UpdateCellByColumnName(ctx context.Context, table string, row int, name, value string) error {
	return w.BatchUpdateByColumnName(ctx, table, []store.CellWrite{{Row: row, Name: name, Value: value}})
}

// BatchUpdateByColumnName performs every write in writes inside a single
// transaction, satisfying spec.md §4.5 step 5's "exactly one batch write"
// invariant at the SQL level too.
func (w *Writer) BatchUpdateByColumnName(ctx context.Context, table string, writes []store.CellWrite) error {
	if len(writes) == 0 {
		return nil
	}

	tx, err := w.DB.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrorTypeDatabase, "beginning batch update tx for %s", table)
	}

	sqlTable := pgx.Identifier{physicalTable(table)}.Sanitize()
	for _, write := range writes {
		sqlColumn := pgx.Identifier{strings.ToLower(write.Name)}.Sanitize()
		query := fmt.Sprintf(
			`UPDATE %s SET %s = $1 WHERE id = (SELECT id FROM %s ORDER BY id OFFSET $2 LIMIT 1)`,
			sqlTable, sqlColumn, sqlTable)
		if _, err := tx.ExecContext(ctx, w.DB.Rebind(query), write.Value, write.Row-1); err != nil {
			_ = tx.Rollback()
			return apperrors.Wrapf(err, apperrors.ErrorTypeDatabase,
				"writing %s row %d in %s", write.Name, write.Row, table)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrorTypeDatabase, "committing batch update for %s", table)
	}
	return nil
}
