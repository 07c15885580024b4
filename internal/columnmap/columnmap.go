// Package columnmap resolves logical field names to physical column
// positions per table (spec.md §4.1). It is the only mechanism by which the
// rest of the core accesses RowStore columns: no package outside columnmap
// may hard-code a column index.
package columnmap

import (
	"sync"

	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
)

// HeaderReader reads the header (first) row of a table, returning the
// physical column names in order. It is the minimal slice of the RowStore
// contract (spec.md §6.1) ColumnMap needs.
type HeaderReader interface {
	ReadHeader(table string) ([]string, error)
}

// Map is a concurrency-safe, per-table cache of normalized-name -> column
// index. All writes after a schema change must call Invalidate.
type Map struct {
	mu     sync.RWMutex
	reader HeaderReader
	tables map[string]map[string]int
}

// New builds a Map backed by reader.
func New(reader HeaderReader) *Map {
	return &Map{
		reader: reader,
		tables: make(map[string]map[string]int),
	}
}

// Resolve returns the normalized-name -> column-index mapping for table,
// reading and caching the header row on first use.
func (m *Map) Resolve(table string) (map[string]int, error) {
	m.mu.RLock()
	cached, ok := m.tables[table]
	m.mu.RUnlock()
	if ok {
		return cached, nil
	}

	header, err := m.reader.ReadHeader(table)
	if err != nil {
		return nil, err
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[domain.NormalizeName(name)] = i
	}

	m.mu.Lock()
	m.tables[table] = cols
	m.mu.Unlock()
	return cols, nil
}

// ColumnIndex resolves a single logical field name to its physical column
// index within table.
func (m *Map) ColumnIndex(table, name string) (int, bool, error) {
	cols, err := m.Resolve(table)
	if err != nil {
		return 0, false, err
	}
	idx, ok := cols[domain.NormalizeName(name)]
	return idx, ok, nil
}

// Invalidate drops the cached mapping for table, forcing the next Resolve
// to re-read the header row. Callers must invoke this after any write that
// could change column layout (spec.md §4.1, §5 "Shared resources").
func (m *Map) Invalidate(table string) {
	m.mu.Lock()
	delete(m.tables, table)
	m.mu.Unlock()
}

// ValidateRequired checks that every name in names resolves to a column in
// table, returning the subset that is missing.
func (m *Map) ValidateRequired(table string, names []string) (ok bool, missing []string) {
	cols, err := m.Resolve(table)
	if err != nil {
		return false, names
	}
	for _, n := range names {
		if _, present := cols[domain.NormalizeName(n)]; !present {
			missing = append(missing, n)
		}
	}
	return len(missing) == 0, missing
}
