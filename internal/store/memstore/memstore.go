// Package memstore is an in-process fake of store.RowStore, store.EventLog,
// and store.LockService, used by unit tests across the core and by local
// development without a database. It is not a teacher adaptation of any
// single file — it is new glue grounded on the store.* interfaces it
// implements — but its table/lock bookkeeping follows the same
// mutex-guarded-map shape the teacher uses for its miniredis-backed test
// doubles.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
	"github.com/pipeworks/shopfloor-orchestrator/internal/store"
)

// Store is an in-memory RowStore + EventLog.
type Store struct {
	mu      sync.Mutex
	headers map[string][]string
	rows    map[string][]store.Row // table -> ordered rows, 1-indexed externally
	events  []store.EventRecord
}

// New builds an empty Store with the given table headers.
func New(headers map[string][]string) *Store {
	return &Store{
		headers: headers,
		rows:    make(map[string][]store.Row),
	}
}

// SeedRow appends a row to table, keying its columns by
// domain.NormalizeName as every write does, and returns its 1-based row
// number.
func (s *Store) SeedRow(table string, row store.Row) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	normalized := make(store.Row, len(row))
	for k, v := range row {
		normalized[domain.NormalizeName(k)] = v
	}
	s.rows[table] = append(s.rows[table], normalized)
	return len(s.rows[table])
}

func (s *Store) ReadHeader(table string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.headers[table]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("table %s", table))
	}
	return h, nil
}

func (s *Store) ReadRow(_ context.Context, table, key string) (store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tagCol := domain.NormalizeName("tag")
	for _, row := range s.rows[table] {
		if row[tagCol] == key {
			return cloneRow(row), nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("row %s in %s", key, table))
}

func (s *Store) ReadAll(_ context.Context, table string) ([]store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Row, len(s.rows[table]))
	for i, row := range s.rows[table] {
		out[i] = cloneRow(row)
	}
	return out, nil
}

func (s *Store) FindRowByColumn(_ context.Context, table, column, value string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.NormalizeName(column)
	for i, row := range s.rows[table] {
		if row[key] == value {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}

func (s *Store) UpdateCellByColumnName(_ context.Context, table string, row int, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(table, row, name, value)
}

func (s *Store) BatchUpdateByColumnName(_ context.Context, table string, writes []store.CellWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writes {
		if err := s.writeLocked(table, w.Row, w.Name, w.Value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeLocked(table string, row int, name, value string) error {
	rows := s.rows[table]
	if row < 1 || row > len(rows) {
		return apperrors.NewNotFoundError(fmt.Sprintf("row %d in %s", row, table))
	}
	rows[row-1][domain.NormalizeName(name)] = value
	return nil
}

func cloneRow(row store.Row) store.Row {
	out := make(store.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// Append implements store.EventLog, chunking at store.EventChunkSize as the
// real postgres adapter does, so tests can assert chunk counts without a
// database.
func (s *Store) Append(_ context.Context, events []store.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for start := 0; start < len(events); start += store.EventChunkSize {
		end := start + store.EventChunkSize
		if end > len(events) {
			end = len(events)
		}
		s.events = append(s.events, events[start:end]...)
	}
	return nil
}

// ChunksAppended reports how many store.EventChunkSize chunks Append splits
// n events into.
func (s *Store) ChunksAppended(n int) int {
	if n <= 0 {
		return 0
	}
	chunks := n / store.EventChunkSize
	if n%store.EventChunkSize != 0 {
		chunks++
	}
	return chunks
}

func (s *Store) LastForTag(_ context.Context, tag string) (store.EventRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last store.EventRecord
	found := false
	for _, e := range s.events {
		if e.Tag == tag {
			last = e
			found = true
		}
	}
	return last, found, nil
}

func (s *Store) ForTag(_ context.Context, tag string) ([]store.EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.EventRecord
	for _, e := range s.events {
		if e.Tag == tag {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// AllEvents exposes the full log for assertions in tests.
func (s *Store) AllEvents() []store.EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.EventRecord, len(s.events))
	copy(out, s.events)
	return out
}

// Lock is an in-memory store.LockService.
type Lock struct {
	mu    sync.Mutex
	held  map[string]lockEntry
}

type lockEntry struct {
	owner   string
	expires time.Time
}

// NewLock builds an empty in-memory LockService.
func NewLock() *Lock {
	return &Lock{held: make(map[string]lockEntry)}
}

func (l *Lock) Acquire(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if entry, ok := l.held[key]; ok && entry.expires.After(now) && entry.owner != owner {
		return false, nil
	}
	l.held[key] = lockEntry{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (l *Lock) Refresh(_ context.Context, key, owner string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.held[key]
	if !ok || entry.owner != owner || entry.expires.Before(time.Now()) {
		return apperrors.NewGoneError("lock expired or not held by owner")
	}
	entry.expires = time.Now().Add(ttl)
	l.held[key] = entry
	return nil
}

func (l *Lock) Release(_ context.Context, key, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.held[key]
	if !ok || entry.owner != owner {
		return nil
	}
	delete(l.held, key)
	return nil
}

func (l *Lock) Inspect(_ context.Context, key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.held[key]
	if !ok || entry.expires.Before(time.Now()) {
		return "", false, nil
	}
	return entry.owner, true, nil
}

// Expire forces key's lock to be treated as expired, for tests exercising
// the Gone error path.
func (l *Lock) Expire(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.held[key]; ok {
		entry.expires = time.Now().Add(-time.Second)
		l.held[key] = entry
	}
}
