package domain

import (
	"fmt"
	"strings"
)

// WorkerRef identifies a worker the core consults but never owns
// (spec.md §3.1). Its canonical string form is "INITIALS(ID)".
type WorkerRef struct {
	ID       int
	Name     string
	Initials string
	Roles    map[string]struct{}
}

// Canonical renders the worker in the "INITIALS(ID)" form stored in
// ocupado_por, armador, soldador (spec.md §3.1).
func (w WorkerRef) Canonical() string {
	return fmt.Sprintf("%s(%d)", w.Initials, w.ID)
}

// HasRole reports whether the worker is permitted to act on the given role
// name. An empty Roles set is treated as "any role", matching the open
// policy spec.md §4.7 allows for REPARACION.
func (w WorkerRef) HasRole(role string) bool {
	if role == "" || len(w.Roles) == 0 {
		return true
	}
	_, ok := w.Roles[strings.ToLower(role)]
	return ok
}

// NewWorkerRef builds a WorkerRef, normalizing role names to lowercase so
// HasRole comparisons are case-insensitive.
func NewWorkerRef(id int, name, initials string, roles ...string) WorkerRef {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[strings.ToLower(r)] = struct{}{}
	}
	return WorkerRef{ID: id, Name: name, Initials: initials, Roles: set}
}

// NormalizeName normalizes a field or table-column name the way ColumnMap
// does: lowercase, whitespace-stripped, underscore-stripped (spec.md §4.1).
// This is the single function every consumer must call before comparing or
// looking up a column name — ColumnMap, the row parsers in parse.go, the
// in-memory store, and the postgres reader's row keys all route through it.
// The postgres adapter's SQL identifiers are only lowercased.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '_':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}
