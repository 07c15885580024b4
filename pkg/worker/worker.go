// Package worker defines Directory: the role-lookup contract the HTTP
// surface uses to resolve an inbound worker ID into a domain.WorkerRef
// before it reaches validation.CanTomar's RoleRequirement check (spec.md
// §4.7). The core depends on this interface only; pkg/worker/staticdir
// supplies a YAML-seeded implementation grounded on domain.NewWorkerRef.
package worker

import (
	"context"

	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
)

// Directory resolves a worker ID to its domain.WorkerRef, including the
// role set validation.EnforceRoles consults. A caller that finds no entry
// gets ok=false rather than an error: an unknown worker is a normal,
// expected outcome (a new hire not yet onboarded), not a backend failure.
type Directory interface {
	Lookup(ctx context.Context, id int) (domain.WorkerRef, bool, error)
}
