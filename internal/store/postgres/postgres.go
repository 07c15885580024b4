package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/pipeworks/shopfloor-orchestrator/internal/store"
)

// Store is the concrete store.RowStore + store.EventLog binding: pgx pools
// its reads, sqlx/lib-pq drives its writes (spec.md §11.1–§11.2).
type Store struct {
	*Reader
	*Writer
	*EventStore
}

// New builds a Store over a pgx read pool and a sqlx/lib-pq write handle.
func New(pool *pgxpool.Pool, sqlDB *sqlx.DB) *Store {
	return &Store{
		Reader:     NewReader(pool),
		Writer:     NewWriter(sqlDB),
		EventStore: NewEventStore(sqlDB),
	}
}

var (
	_ store.RowStore = (*Store)(nil)
	_ store.EventLog = (*Store)(nil)
)
