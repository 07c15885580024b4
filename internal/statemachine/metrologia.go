package statemachine

import (
	"time"

	"github.com/pipeworks/shopfloor-orchestrator/internal/cyclecounter"
	"github.com/pipeworks/shopfloor-orchestrator/internal/display"
	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
)

// METROLOGIA states (spec.md §4.3.3). No occupation is ever acquired for
// this machine; its preconditions are enforced by ValidationKernel before
// the orchestrator fires either terminal transition.
const (
	MetrologiaPendiente State = "PENDIENTE"
	MetrologiaAprobado  State = "APROBADO"
	MetrologiaRechazado State = "RECHAZADO"
)

const (
	ActionAprobar   = "aprobar"
	ActionRechazar  = "rechazar"
)

// NewMetrologia builds a request-scoped METROLOGIA machine in its initial
// state. Guards are intentionally nil: spec.md §4.3.3 places the
// precondition check in ValidationKernel, not the machine.
func NewMetrologia() *Machine {
	return newMachine("METROLOGIA", MetrologiaPendiente, []Transition{
		{
			Action: ActionAprobar,
			From:   []State{MetrologiaPendiente},
			To:     MetrologiaAprobado,
			Effect: func(_ domain.Spool, _ domain.WorkerRef, now time.Time) []ColumnWrite {
				return []ColumnWrite{
					{Table: "Operaciones", Column: "fecha_qc_metrologia", Value: now.Format(domain.DateLayout)},
					{Table: "Operaciones", Column: "estado_detalle", Value: display.Render(display.PhaseMetrologiaAprobado, 0, "")},
				}
			},
		},
		{
			Action: ActionRechazar,
			From:   []State{MetrologiaPendiente},
			To:     MetrologiaRechazado,
			Effect: func(snapshot domain.Spool, _ domain.WorkerRef, now time.Time) []ColumnWrite {
				next := cyclecounter.Increment(cyclecounter.Extract(snapshot.EstadoDetalle))
				phase := display.PhaseRechazado
				if cyclecounter.ShouldBlock(next) {
					phase = display.PhaseBloqueado
				}
				return []ColumnWrite{
					{Table: "Operaciones", Column: "fecha_qc_metrologia", Value: now.Format(domain.DateLayout)},
					{Table: "Operaciones", Column: "estado_detalle", Value: display.Render(phase, next, "")},
				}
			},
		},
	})
}

// HydrateMetrologia forces METROLOGIA's state from the spool's persisted
// witnesses: fecha_qc_metrologia set -> APROBADO/RECHAZADO (read from
// estado_detalle); else PENDIENTE (spec.md §4.3 Hydration).
func HydrateMetrologia(spool domain.Spool) *Machine {
	m := NewMetrologia()
	if spool.FechaQCMetrologia.IsZero() {
		m.State = MetrologiaPendiente
		return m
	}
	if display.DerivePhase(spool.EstadoDetalle) == display.PhaseMetrologiaAprobado {
		m.State = MetrologiaAprobado
	} else {
		m.State = MetrologiaRechazado
	}
	return m
}
