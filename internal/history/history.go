// Package history implements HistoryAggregator (spec.md §4.8): a pure fold
// over a tag's event log that reconstructs TOMAR/PAUSAR/COMPLETAR/CANCELAR
// sessions per (worker, operation).
package history

import (
	"fmt"
	"time"

	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
	"github.com/pipeworks/shopfloor-orchestrator/internal/store"
)

// Session is one (worker, operation) occupation span folded from the event
// log. End is the zero time for sessions still open at the end of the fold.
type Session struct {
	WorkerID   int
	WorkerName string
	Operacion  domain.Operation
	Start      time.Time
	End        time.Time
	Duration   string
}

type sessionKey struct {
	workerID int
	op       domain.Operation
}

// Aggregate folds events (already ordered by timestamp, as
// store.EventLog.ForTag returns them) into closed and still-open sessions.
// Kind selects participation (TOMAR_*/PAUSAR_*/COMPLETAR_*/CANCELAR_* only;
// UNION_*_REGISTRADA, SPOOL_CANCELADO, SUPERVISOR_OVERRIDE and
// COMPLETAR_METROLOGIA never open or close a session); the event's own
// Operacion/Accion columns — not a kind-name parse — identify which
// (worker, operation) session a TOMAR/PAUSAR/COMPLETAR/CANCELAR event
// belongs to, since TOMAR_SPOOL and PAUSAR_SPOOL are shared across ARM and
// SOLD (spec.md §6.5).
func Aggregate(events []store.EventRecord) []Session {
	open := make(map[sessionKey]store.EventRecord)
	order := make([]sessionKey, 0)
	var closed []Session

	for _, e := range events {
		if !isSessionKind(e.Kind) {
			continue
		}
		op := domain.Operation(e.Operacion)
		key := sessionKey{workerID: e.WorkerID, op: op}
		switch domain.Accion(e.Accion) {
		case domain.AccionTomar:
			if _, exists := open[key]; !exists {
				order = append(order, key)
			}
			open[key] = e
		default: // PAUSAR, COMPLETAR, CANCELAR all close the open session
			start, ok := open[key]
			if !ok {
				continue
			}
			closed = append(closed, Session{
				WorkerID:   start.WorkerID,
				WorkerName: start.WorkerName,
				Operacion:  op,
				Start:      start.Timestamp,
				End:        e.Timestamp,
				Duration:   FormatDuration(e.Timestamp.Sub(start.Timestamp)),
			})
			delete(open, key)
		}
	}

	for _, key := range order {
		e, stillOpen := open[key]
		if !stillOpen {
			continue
		}
		closed = append(closed, Session{
			WorkerID:   e.WorkerID,
			WorkerName: e.WorkerName,
			Operacion:  key.op,
			Start:      e.Timestamp,
		})
	}
	return closed
}

// FormatDuration renders d as "Xh Ym" when it spans at least an hour, else
// "Ym"; seconds are dropped (spec.md §4.8).
func FormatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	hours := minutes / 60
	minutes -= hours * 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

func isSessionKind(kind string) bool {
	switch kind {
	case string(domain.EventTomarSpool), string(domain.EventPausarSpool),
		string(domain.EventCompletarArm), string(domain.EventCompletarSold),
		string(domain.EventTomarReparacion), string(domain.EventPausarReparacion),
		string(domain.EventCompletarReparacion), string(domain.EventCancelarReparacion):
		return true
	default:
		return false
	}
}
