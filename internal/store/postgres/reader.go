// Package postgres implements store.RowStore and store.EventLog against two
// tables (operaciones, uniones) and an append-only eventos table, following
// the teacher's own multi-driver layout: jackc/pgx/v5 pools the read path,
// jmoiron/sqlx over lib/pq drives the batched writer (spec.md §11.1–§11.2).
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
)

// Reader is the pgx-backed half of Store: pooled reads against the
// operaciones/uniones tables, matching spec.md §6.1's ReadRow/ReadAll/
// FindRowByColumn contract.
type Reader struct {
	Pool *pgxpool.Pool
}

// NewReader builds a Reader over pool.
func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{Pool: pool}
}

func physicalTable(table string) string {
	return strings.ToLower(table)
}

// ReadHeader returns table's column names in physical (ordinal) order, the
// minimal surface columnmap.HeaderReader needs.
func (r *Reader) ReadHeader(table string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := r.Pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position`,
		physicalTable(table))
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeDatabase, "reading header for %s", table)
	}
	defer rows.Close()

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeDatabase, "collecting header for %s", table)
	}
	if len(names) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("table %s", table))
	}
	return names, nil
}

// ReadRow returns the named-column view of the row whose tag column equals
// key.
func (r *Reader) ReadRow(ctx context.Context, table, key string) (map[string]string, error) {
	sqlTable := pgx.Identifier{physicalTable(table)}.Sanitize()
	query := fmt.Sprintf(`SELECT * FROM %s WHERE tag = $1 LIMIT 1`, sqlTable)

	rows, err := r.Pool.Query(ctx, query, key)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeDatabase, "reading row %s in %s", key, table)
	}
	defer rows.Close()

	raw, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("row %s in %s", key, table))
		}
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeDatabase, "collecting row %s in %s", key, table)
	}
	return stringifyRow(raw), nil
}

// ReadAll returns every row of table in id order.
func (r *Reader) ReadAll(ctx context.Context, table string) ([]map[string]string, error) {
	sqlTable := pgx.Identifier{physicalTable(table)}.Sanitize()
	query := fmt.Sprintf(`SELECT * FROM %s ORDER BY id`, sqlTable)

	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeDatabase, "reading all rows in %s", table)
	}
	defer rows.Close()

	raw, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeDatabase, "collecting rows in %s", table)
	}
	out := make([]map[string]string, len(raw))
	for i, row := range raw {
		out[i] = stringifyRow(row)
	}
	return out, nil
}

// FindRowByColumn returns the 1-based ordinal position (by id order) of the
// row whose column equals value.
func (r *Reader) FindRowByColumn(ctx context.Context, table, column, value string) (int, bool, error) {
	sqlTable := pgx.Identifier{physicalTable(table)}.Sanitize()
	sqlColumn := pgx.Identifier{strings.ToLower(column)}.Sanitize()
	query := fmt.Sprintf(
		`SELECT rn FROM (SELECT %s AS col, row_number() OVER (ORDER BY id) AS rn FROM %s) t WHERE t.col = $1 LIMIT 1`,
		sqlColumn, sqlTable)

	rows, err := r.Pool.Query(ctx, query, value)
	if err != nil {
		return 0, false, apperrors.Wrapf(err, apperrors.ErrorTypeDatabase, "finding row in %s by %s", table, column)
	}
	defer rows.Close()

	rn, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, apperrors.Wrapf(err, apperrors.ErrorTypeDatabase, "collecting row number in %s", table)
	}
	return int(rn), true, nil
}

// stringifyRow renders pgx's typed column values (time.Time, int64,
// float64, nil, ...) as the plain strings store.Row expects, matching the
// wire formats domain.TimeLayout/DateLayout declare, keyed by
// domain.NormalizeName of each column name as the row parsers look them up.
func stringifyRow(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[domain.NormalizeName(k)] = stringifyValue(v)
	}
	return out
}

func stringifyValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		if val.IsZero() {
			return ""
		}
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 {
			return val.Format(domain.DateLayout)
		}
		return val.Format(domain.TimeLayout)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
