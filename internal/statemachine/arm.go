package statemachine

import (
	"time"

	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
)

// ARM states (spec.md §4.3.1).
const (
	ArmPendiente   State = "PENDIENTE"
	ArmEnProgreso  State = "EN_PROGRESO"
	ArmCompletado  State = "COMPLETADO"
)

const (
	ActionIniciar  = "iniciar"
	ActionCompletar = "completar"
	ActionCancelar  = "cancelar"
)

// NewARM builds a request-scoped ARM machine in its initial state. Callers
// almost always want HydrateARM instead, which forces the state from the
// spool's persisted witnesses.
func NewARM() *Machine {
	return newMachine("ARM", ArmPendiente, []Transition{
		{
			Action: ActionIniciar,
			From:   []State{ArmPendiente, ArmEnProgreso},
			To:     ArmEnProgreso,
			Effect: func(_ domain.Spool, worker domain.WorkerRef, _ time.Time) []ColumnWrite {
				return []ColumnWrite{{Table: "Operaciones", Column: "armador", Value: worker.Canonical()}}
			},
		},
		{
			Action: ActionCompletar,
			From:   []State{ArmEnProgreso},
			To:     ArmCompletado,
			Effect: func(_ domain.Spool, _ domain.WorkerRef, now time.Time) []ColumnWrite {
				return []ColumnWrite{{Table: "Operaciones", Column: "fecha_armado", Value: now.Format(domain.DateLayout)}}
			},
		},
		{
			Action: ActionCancelar,
			From:   []State{ArmEnProgreso},
			To:     ArmPendiente,
			Effect: func(_ domain.Spool, _ domain.WorkerRef, _ time.Time) []ColumnWrite {
				return []ColumnWrite{{Table: "Operaciones", Column: "armador", Value: ""}}
			},
		},
	})
}

// HydrateARM forces ARM's state from the spool's persisted witnesses
// (spec.md §4.3 Hydration): fecha_armado set -> COMPLETADO; else armador
// set -> EN_PROGRESO; else PENDIENTE.
func HydrateARM(spool domain.Spool) *Machine {
	m := NewARM()
	switch {
	case spool.ArmCompleted():
		m.State = ArmCompletado
	case spool.ArmInitiated():
		m.State = ArmEnProgreso
	default:
		m.State = ArmPendiente
	}
	return m
}
