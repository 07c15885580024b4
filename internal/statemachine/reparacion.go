package statemachine

import (
	"time"

	"github.com/pipeworks/shopfloor-orchestrator/internal/cyclecounter"
	"github.com/pipeworks/shopfloor-orchestrator/internal/display"
	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
)

// REPARACION states (spec.md §4.3.4). BLOQUEADO is a trap state reachable
// only externally (via METROLOGIA's RECHAZADO path reaching the cycle cap)
// and admits no transitions from this machine — only the out-of-band
// supervisor override spec.md §4.9 describes can move a spool out of it.
const (
	ReparacionRechazado         State = "RECHAZADO"
	ReparacionEnReparacion      State = "EN_REPARACION"
	ReparacionPausada           State = "REPARACION_PAUSADA"
	ReparacionPendienteMetrologia State = "PENDIENTE_METROLOGIA"
	ReparacionBloqueado         State = "BLOQUEADO"
)

const (
	ActionTomar    = "tomar"
	ActionPausar   = "pausar"
)

// NewReparacion builds a request-scoped REPARACION machine in its initial
// (RECHAZADO) state. Every transition's effect re-derives the cycle count
// from the pre-transition estado_detalle and threads it through unchanged:
// REPARACION never mutates the rework-cycle counter (spec.md §4.3.4).
func NewReparacion() *Machine {
	return newMachine("REPARACION", ReparacionRechazado, []Transition{
		{
			Action: ActionTomar,
			From:   []State{ReparacionRechazado, ReparacionPausada},
			To:     ReparacionEnReparacion,
			Effect: func(snapshot domain.Spool, worker domain.WorkerRef, now time.Time) []ColumnWrite {
				c := cyclecounter.Extract(snapshot.EstadoDetalle)
				return []ColumnWrite{
					{Table: "Operaciones", Column: "ocupado_por", Value: worker.Canonical()},
					{Table: "Operaciones", Column: "fecha_ocupacion", Value: now.Format(domain.TimeLayout)},
					{Table: "Operaciones", Column: "estado_detalle", Value: display.Render(display.PhaseEnReparacion, c, worker.Canonical())},
				}
			},
		},
		{
			Action: ActionPausar,
			From:   []State{ReparacionEnReparacion},
			To:     ReparacionPausada,
			Effect: func(snapshot domain.Spool, _ domain.WorkerRef, _ time.Time) []ColumnWrite {
				c := cyclecounter.Extract(snapshot.EstadoDetalle)
				return []ColumnWrite{
					{Table: "Operaciones", Column: "ocupado_por", Value: ""},
					{Table: "Operaciones", Column: "fecha_ocupacion", Value: ""},
					{Table: "Operaciones", Column: "estado_detalle", Value: display.Render(display.PhaseReparacionPausada, c, "")},
				}
			},
		},
		{
			Action: ActionCompletar,
			From:   []State{ReparacionEnReparacion},
			To:     ReparacionPendienteMetrologia,
			Effect: func(snapshot domain.Spool, _ domain.WorkerRef, _ time.Time) []ColumnWrite {
				c := cyclecounter.Extract(snapshot.EstadoDetalle)
				return []ColumnWrite{
					{Table: "Operaciones", Column: "ocupado_por", Value: ""},
					{Table: "Operaciones", Column: "fecha_ocupacion", Value: ""},
					{Table: "Operaciones", Column: "estado_detalle", Value: display.Render(display.PhasePendienteMetrologia, c, "")},
				}
			},
		},
		{
			Action: ActionCancelar,
			From:   []State{ReparacionEnReparacion, ReparacionPausada},
			To:     ReparacionRechazado,
			Effect: func(snapshot domain.Spool, _ domain.WorkerRef, _ time.Time) []ColumnWrite {
				c := cyclecounter.Extract(snapshot.EstadoDetalle)
				return []ColumnWrite{
					{Table: "Operaciones", Column: "ocupado_por", Value: ""},
					{Table: "Operaciones", Column: "fecha_ocupacion", Value: ""},
					{Table: "Operaciones", Column: "estado_detalle", Value: display.Render(display.PhaseRechazado, c, "")},
				}
			},
		},
	})
}

// HydrateReparacion forces REPARACION's state from estado_detalle
// (spec.md §4.3 Hydration).
func HydrateReparacion(spool domain.Spool) *Machine {
	m := NewReparacion()
	switch display.DerivePhase(spool.EstadoDetalle) {
	case display.PhaseBloqueado:
		m.State = ReparacionBloqueado
	case display.PhaseEnReparacion:
		m.State = ReparacionEnReparacion
	case display.PhaseReparacionPausada:
		m.State = ReparacionPausada
	case display.PhasePendienteMetrologia:
		m.State = ReparacionPendienteMetrologia
	default:
		m.State = ReparacionRechazado
	}
	return m
}
