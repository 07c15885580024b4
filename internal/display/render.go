// Package display implements the pure render function spec.md §8 requires
// to exist: a function of (occupation, substate, cycle) that reproduces the
// estado_detalle value written by the same transaction that computed it.
// cyclecounter.Format does the string assembly; Render's job is picking
// which Kind applies to the current METROLOGIA/REPARACION phase.
package display

import (
	"strings"

	"github.com/pipeworks/shopfloor-orchestrator/internal/cyclecounter"
)

// Phase is the composite METROLOGIA/REPARACION phase estado_detalle carries
// (spec.md "Design notes": ARM/SOLD substates are derived from their own
// witness columns and never written into estado_detalle).
type Phase int

const (
	// PhasePendienteMetrologia is the default/initial phase: no rejection
	// has ever occurred, or a previous REPARACION cycle just completed and
	// the spool is waiting on a fresh METROLOGIA pass.
	PhasePendienteMetrologia Phase = iota
	PhaseMetrologiaAprobado
	PhaseRechazado
	PhaseBloqueado
	PhaseEnReparacion
	PhaseReparacionPausada
)

// Render reproduces estado_detalle for the given phase, cycle count, and
// (for EN_REPARACION only) the occupying worker's canonical string.
func Render(phase Phase, cycle int, worker string) string {
	switch phase {
	case PhasePendienteMetrologia:
		return cyclecounter.Format(cyclecounter.KindPendienteMetrologia, cycle, worker)
	case PhaseMetrologiaAprobado:
		return cyclecounter.Format(cyclecounter.KindMetrologiaAprobado, cycle, worker)
	case PhaseRechazado:
		return cyclecounter.Format(cyclecounter.KindRechazado, cycle, worker)
	case PhaseBloqueado:
		return cyclecounter.Format(cyclecounter.KindBloqueado, cycle, worker)
	case PhaseEnReparacion:
		return cyclecounter.Format(cyclecounter.KindEnReparacion, cycle, worker)
	case PhaseReparacionPausada:
		return cyclecounter.Format(cyclecounter.KindReparacionPausada, cycle, worker)
	default:
		return ""
	}
}

// DerivePhase parses the REPARACION/METROLOGIA phase currently encoded in
// an estado_detalle string, the inverse of Render used during hydration
// (spec.md §4.3.4: "state parsed from estado_detalle").
func DerivePhase(estadoDetalle string) Phase {
	switch {
	case strings.Contains(estadoDetalle, "BLOQUEADO"):
		return PhaseBloqueado
	case strings.Contains(estadoDetalle, "EN_REPARACION"):
		return PhaseEnReparacion
	case strings.Contains(estadoDetalle, "REPARACION_PAUSADA"):
		return PhaseReparacionPausada
	case strings.Contains(estadoDetalle, "RECHAZADO"):
		return PhaseRechazado
	case strings.Contains(estadoDetalle, "METROLOGIA_APROBADO"):
		return PhaseMetrologiaAprobado
	default:
		return PhasePendienteMetrologia
	}
}
