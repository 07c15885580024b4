package statemachine

import (
	"time"

	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
)

// SOLD states, isomorphic to ARM (spec.md §4.3.2).
const (
	SoldPendiente  State = "PENDIENTE"
	SoldEnProgreso State = "EN_PROGRESO"
	SoldCompletado State = "COMPLETADO"
)

// NewSOLD builds a request-scoped SOLD machine in its initial state, with
// the ARM-initiated guard on iniciar spec.md §4.3.2 and I4 require.
func NewSOLD() *Machine {
	return newMachine("SOLD", SoldPendiente, []Transition{
		{
			Action: ActionIniciar,
			From:   []State{SoldPendiente, SoldEnProgreso},
			To:     SoldEnProgreso,
			Guard:  guardArmInitiated,
			Effect: func(_ domain.Spool, worker domain.WorkerRef, _ time.Time) []ColumnWrite {
				return []ColumnWrite{{Table: "Operaciones", Column: "soldador", Value: worker.Canonical()}}
			},
		},
		{
			Action: ActionCompletar,
			From:   []State{SoldEnProgreso},
			To:     SoldCompletado,
			Effect: func(_ domain.Spool, _ domain.WorkerRef, now time.Time) []ColumnWrite {
				return []ColumnWrite{{Table: "Operaciones", Column: "fecha_soldadura", Value: now.Format(domain.DateLayout)}}
			},
		},
		{
			Action: ActionCancelar,
			From:   []State{SoldEnProgreso},
			To:     SoldPendiente,
			Effect: func(_ domain.Spool, _ domain.WorkerRef, _ time.Time) []ColumnWrite {
				return []ColumnWrite{{Table: "Operaciones", Column: "soldador", Value: ""}}
			},
		},
	})
}

// guardArmInitiated rejects SOLD's iniciar transition unless ARM has been
// started on the same spool (spec.md §4.3.2, I4).
func guardArmInitiated(snapshot domain.Spool) error {
	if !snapshot.ArmInitiated() {
		return apperrors.NewDependenciesNotSatisfiedError("ARM not initiated")
	}
	return nil
}

// HydrateSOLD forces SOLD's state from the spool's persisted witnesses:
// fecha_soldadura set -> COMPLETADO; else soldador set -> EN_PROGRESO; else
// PENDIENTE (spec.md §4.3 Hydration).
func HydrateSOLD(spool domain.Spool) *Machine {
	m := NewSOLD()
	switch {
	case spool.SoldCompleted():
		m.State = SoldCompletado
	case spool.Soldador != "":
		m.State = SoldEnProgreso
	default:
		m.State = SoldPendiente
	}
	return m
}
