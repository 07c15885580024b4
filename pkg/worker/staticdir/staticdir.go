// Package staticdir implements worker.Directory from a YAML file loaded
// once at startup, mirroring internal/config.Load's yaml.v3 parse-then-
// validate shape (SPEC_FULL.md §11.6: the worker roster is operator-
// maintained data, not a database table the core writes to).
package staticdir

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
)

// entry is one worker record as it appears in the roster YAML.
type entry struct {
	ID       int      `yaml:"id"`
	Name     string   `yaml:"name"`
	Initials string   `yaml:"initials"`
	Roles    []string `yaml:"roles"`
}

type roster struct {
	Workers []entry `yaml:"workers"`
}

// Directory is an in-memory worker.Directory, safe for concurrent use.
type Directory struct {
	mu   sync.RWMutex
	byID map[int]domain.WorkerRef
}

// New builds an empty Directory. Seed or Load populates it.
func New() *Directory {
	return &Directory{byID: make(map[int]domain.WorkerRef)}
}

// Load reads and parses a roster YAML file from path and returns a new
// Directory holding its workers.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeValidation, "reading worker roster %s", path)
	}
	var r roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeValidation, "parsing worker roster %s", path)
	}
	d := New()
	for _, e := range r.Workers {
		if e.Initials == "" {
			return nil, apperrors.NewValidationError(fmt.Sprintf("worker %d has no initials", e.ID))
		}
		d.Seed(domain.NewWorkerRef(e.ID, e.Name, e.Initials, e.Roles...))
	}
	return d, nil
}

// Seed inserts or replaces a single worker entry. Intended for tests and
// for building a roster programmatically instead of from a file.
func (d *Directory) Seed(w domain.WorkerRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[w.ID] = w
}

// Lookup implements worker.Directory.
func (d *Directory) Lookup(_ context.Context, id int) (domain.WorkerRef, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	w, ok := d.byID[id]
	return w, ok, nil
}
