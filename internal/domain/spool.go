// Package domain holds the plain data types shared across the occupation
// coordinator, the state machines, and the orchestrator: Spool, Union,
// Event and WorkerRef, plus the normalization helpers spec.md requires
// every consumer to funnel string comparisons through.
package domain

import (
	"math"
	"strconv"
	"time"
)

// TimeLayout and DateLayout are the wire formats spec.md §6.1 mandates for
// every timestamp/date written back to the row store.
const (
	TimeLayout = "02-01-2006 15:04:05"
	DateLayout = "02-01-2006"
)

// TimeZone is the zone every timestamp in the system is rendered in.
const TimeZone = "America/Santiago"

// Spool is the row-level view of a pipe-spool assembly (spec.md §3.1).
type Spool struct {
	Tag            string
	OT             string
	TotalUniones   int
	OcupadoPor     string
	FechaOcupacion time.Time
	Version        string
	EstadoDetalle  string

	Armador       string
	FechaArmado   time.Time
	Soldador      string
	FechaSoldadura time.Time
	FechaQCMetrologia time.Time
}

// IsUnionLevel reports whether a spool tracks ARM/SOLD per union rather than
// at the spool level (spec.md §3.1, TotalUniones > 0).
func (s Spool) IsUnionLevel() bool { return s.TotalUniones > 0 }

// IsOccupied reports whether a worker currently holds the spool.
func (s Spool) IsOccupied() bool { return s.OcupadoPor != "" }

// HeldBy reports whether worker currently holds the spool, per I1.
func (s Spool) HeldBy(worker string) bool {
	return s.OcupadoPor != "" && s.OcupadoPor == worker
}

// ArmCompleted reports whether ARM has a completion witness.
func (s Spool) ArmCompleted() bool { return !s.FechaArmado.IsZero() }

// ArmInitiated reports whether ARM has been started (armador set), the
// dependency SOLD's iniciar guard checks per I4 / spec.md §4.3.2.
func (s Spool) ArmInitiated() bool { return s.Armador != "" }

// SoldCompleted reports whether SOLD has a completion witness.
func (s Spool) SoldCompleted() bool { return !s.FechaSoldadura.IsZero() }

// MetrologiaPending reports whether METROLOGIA has not yet recorded a result.
func (s Spool) MetrologiaPending() bool { return s.FechaQCMetrologia.IsZero() }

// Union is the per-joint row for a union-level spool (spec.md §3.1).
type Union struct {
	OT           string
	N            int
	DNUnion      float64
	TipoUnion    string
	ArmFechaInicio time.Time
	ArmFechaFin    time.Time
	ArmWorker      string
	SolFechaInicio time.Time
	SolFechaFin    time.Time
	SolWorker      string
	NDTFecha       time.Time
	NDTStatus      string
	Version        string
}

// ID returns the composite {ot}+{n} identifier spec.md §3.1 defines.
func (u Union) ID() string {
	return u.OT + "+" + strconv.Itoa(u.N)
}

// ArmDone reports whether this union's ARM leg has a completion witness,
// the predicate Finalizar (spec.md §4.6) aggregates over.
func (u Union) ArmDone() bool { return !u.ArmFechaFin.IsZero() }

// SolDone reports whether this union's SOLD leg has a completion witness.
func (u Union) SolDone() bool { return !u.SolFechaFin.IsZero() }

// ArmAvailable reports whether this union is eligible for ARM completion
// (spec.md §4.6: arm_fecha_fin = ∅).
func (u Union) ArmAvailable() bool { return u.ArmFechaFin.IsZero() }

// SolAvailable reports whether this union is eligible for SOLD completion
// (spec.md §4.6: arm_fecha_fin ≠ ∅ ∧ sol_fecha_fin = ∅).
func (u Union) SolAvailable() bool { return u.ArmDone() && u.SolFechaFin.IsZero() }

// UnionProgress implements I5: the count of unions whose op leg has a
// completion witness and the sum of their dn_union, rounded to 2 decimals.
func UnionProgress(unions []Union, op Operation) (completadas int, pulgadas float64) {
	var sum float64
	for _, u := range unions {
		done := u.ArmDone()
		if op == OperationSOLD {
			done = u.SolDone()
		}
		if !done {
			continue
		}
		completadas++
		sum += u.DNUnion
	}
	return completadas, math.Round(sum*100) / 100
}
