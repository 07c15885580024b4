// Package statemachine implements the four per-operation lifecycles of
// spec.md §4.3: ARM, SOLD, METROLOGIA, REPARACION. Each is a small finite
// machine with labeled transitions, an optional guard, and an on-entry
// side-effect callback that the orchestrator batches into one RowStore
// write per successful transition (spec.md §4.5 step 5).
package statemachine

import (
	"time"

	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
)

// State is a single machine's current lifecycle value.
type State string

// ColumnWrite names one cell the on-entry callback wants written. The
// orchestrator merges these with its own estado_detalle/version write into
// a single batch (spec.md §4.5).
type ColumnWrite struct {
	Table  string
	Column string
	Value  string
}

// Guard is a pure predicate over the pre-transition spool snapshot. A
// non-nil error aborts the transition before any effect runs.
type Guard func(snapshot domain.Spool) error

// Effect is the on-entry side effect of a transition: it observes the
// pre-transition snapshot, the acting worker, and the current time, and
// returns the column writes that transition commits.
type Effect func(snapshot domain.Spool, worker domain.WorkerRef, now time.Time) []ColumnWrite

// Transition is one labeled edge of a Machine.
type Transition struct {
	Action string
	From   []State
	To     State
	Guard  Guard
	Effect Effect
}

func (t Transition) allows(from State) bool {
	for _, s := range t.From {
		if s == from {
			return true
		}
	}
	return false
}

// Machine is a request-scoped finite state machine instance, hydrated fresh
// from persisted witnesses on every request (spec.md §4.3, §4.5: "Hydration
// performed fresh every request: state-machine instances are request-scoped
// and never cached").
type Machine struct {
	Name        string
	State       State
	transitions map[string][]Transition
}

func newMachine(name string, initial State, transitions []Transition) *Machine {
	m := &Machine{Name: name, State: initial, transitions: make(map[string][]Transition)}
	for _, t := range transitions {
		m.transitions[t.Action] = append(m.transitions[t.Action], t)
	}
	return m
}

// Fire runs action against the machine's current state: it locates a
// transition whose From set contains the current state, evaluates its
// guard, advances State, and returns the effect's column writes. Guard and
// "no such transition" failures return the domain errors spec.md §7 names;
// the caller is the orchestrator, which never retries these.
func (m *Machine) Fire(action string, snapshot domain.Spool, worker domain.WorkerRef, now time.Time) ([]ColumnWrite, error) {
	candidates, ok := m.transitions[action]
	if !ok {
		return nil, errNoSuchAction(m.Name, action)
	}
	var matched *Transition
	for i := range candidates {
		if candidates[i].allows(m.State) {
			matched = &candidates[i]
			break
		}
	}
	if matched == nil {
		return nil, errNoTransitionFromState(m.Name, action, m.State)
	}
	if matched.Guard != nil {
		if err := matched.Guard(snapshot); err != nil {
			return nil, err
		}
	}
	var writes []ColumnWrite
	if matched.Effect != nil {
		writes = matched.Effect(snapshot, worker, now)
	}
	m.State = matched.To
	return writes, nil
}

// CanFire reports whether action would succeed from the machine's current
// state and guard, without mutating State.
func (m *Machine) CanFire(action string, snapshot domain.Spool) bool {
	candidates, ok := m.transitions[action]
	if !ok {
		return false
	}
	for _, t := range candidates {
		if t.allows(m.State) {
			if t.Guard != nil && t.Guard(snapshot) != nil {
				return false
			}
			return true
		}
	}
	return false
}
