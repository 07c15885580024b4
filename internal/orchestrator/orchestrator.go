// Package orchestrator implements StateOrchestrator (spec.md §4.5): the
// single entry point that reads a spool, validates the request, hydrates
// the relevant state machine, coordinates occupation, fires the transition,
// and emits the audit event — all from one row observation.
package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
	"github.com/pipeworks/shopfloor-orchestrator/internal/metrics"
	"github.com/pipeworks/shopfloor-orchestrator/internal/occupation"
	"github.com/pipeworks/shopfloor-orchestrator/internal/statemachine"
	"github.com/pipeworks/shopfloor-orchestrator/internal/store"
	"github.com/pipeworks/shopfloor-orchestrator/internal/validation"
)

const operacionesTable = "Operaciones"

// Request is one inbound (T, W, op, accion, payload) operation (spec.md
// §4.5).
type Request struct {
	Tag       string
	Worker    domain.WorkerRef
	Operacion domain.Operation
	Accion    domain.Accion
	Resultado validation.Resultado // only meaningful for Operacion == METROLOGIA
	Token     occupation.Token     // required for PAUSAR/COMPLETAR/CANCELAR
}

// Result is what the orchestrator returns to the caller: the composite
// display string plus, for a TOMAR, the token the caller must echo back on
// subsequent PAUSAR/COMPLETAR/CANCELAR calls for the same session.
type Result struct {
	EstadoDetalle string
	Token         occupation.Token
}

// Orchestrator is StateOrchestrator. now is injected so tests control time
// without depending on wall-clock behavior.
type Orchestrator struct {
	Rows   store.RowStore
	Events store.EventLog
	Coord  *occupation.Coordinator
	Log    *zap.Logger
	Now    func() time.Time
}

// New builds an Orchestrator. log may be nil; a nop logger is substituted.
func New(rows store.RowStore, events store.EventLog, coord *occupation.Coordinator, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{Rows: rows, Events: events, Coord: coord, Log: log, Now: time.Now}
}

// Execute runs the seven steps of spec.md §4.5 for a single spool-scoped
// request.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (result Result, err error) {
	start := time.Now()
	label := string(req.Operacion) + ":" + string(req.Accion)
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(apperrors.GetType(err))
		}
		metrics.RecordTransition(label, outcome, time.Since(start))
	}()

	now := o.Now()

	// Step 1: single row observation.
	row, err := o.Rows.ReadRow(ctx, operacionesTable, req.Tag)
	if err != nil {
		return Result{}, err
	}
	spool := domain.RowToSpool(req.Tag, row)

	// Step 2: validate.
	if err := o.validate(spool, req); err != nil {
		return Result{}, err
	}

	if req.Operacion == domain.OperationMetrologia {
		return o.executeMetrologia(ctx, spool, req, now)
	}

	// Step 3: hydrate.
	machine := hydrate(req.Operacion, spool)
	action := actionFor(req.Operacion, req.Accion)

	rowNum, found, err := o.Rows.FindRowByColumn(ctx, operacionesTable, "tag", req.Tag)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, apperrors.NewNotFoundError("spool " + req.Tag)
	}

	// Step 4 + 5: acquire-or-verify occupation, fire the transition, and
	// batch its column writes into the same external call as the
	// occupation write (spec.md §4.5 step 5: "exactly one batch write").
	var token occupation.Token
	writes, fireErr := machine.Fire(action, spool, req.Worker, now)
	if fireErr != nil {
		return Result{}, fireErr
	}
	cellWrites := toCellWrites(rowNum, writes)

	if req.Accion == domain.AccionTomar {
		token, err = o.Coord.Acquire(ctx, operacionesTable, req.Tag, req.Worker, cellWrites, now)
		if err != nil {
			return Result{}, err
		}
	} else {
		if err := o.Coord.Verify(ctx, operacionesTable, req.Tag, req.Worker, req.Token); err != nil {
			return Result{}, err
		}
		mode := releaseMode(req.Accion)
		if err := o.Coord.Release(ctx, operacionesTable, req.Tag, req.Worker, req.Token, mode, cellWrites, now); err != nil {
			return Result{}, err
		}
		token = req.Token
	}

	// Step 7: the composite display string. ARM/SOLD transitions never
	// touch estado_detalle (their substates live in armador/soldador/
	// fecha_* witnesses instead, per spec.md "Design notes"), so it is
	// unchanged from the pre-transition read in that case.
	estadoDetalle := estadoDetalleValue(writes)
	if estadoDetalle == "" {
		estadoDetalle = spool.EstadoDetalle
	}

	// Step 6: detect an out-of-band supervisor override against the state
	// this request actually observed, before this request's own event
	// becomes "the last event for tag" — then emit that event.
	o.DetectSupervisorOverride(ctx, req.Tag, spool.EstadoDetalle)
	o.emitEvent(ctx, req, estadoDetalle, now)

	return Result{EstadoDetalle: estadoDetalle, Token: token}, nil
}

func (o *Orchestrator) validate(spool domain.Spool, req Request) error {
	switch req.Operacion {
	case domain.OperationMetrologia:
		return validation.CanMetrologia(spool, req.Worker, req.Resultado)
	default:
		op := validationOperation(req.Operacion)
		switch req.Accion {
		case domain.AccionTomar:
			return validation.CanTomar(spool, req.Worker, op)
		case domain.AccionPausar, domain.AccionCompletar:
			return validation.CanPausarOCompletar(spool, req.Worker)
		case domain.AccionCancelar:
			return validation.CanCancelar(spool, req.Worker, spool.IsOccupied())
		}
	}
	return nil
}

func (o *Orchestrator) executeMetrologia(ctx context.Context, spool domain.Spool, req Request, now time.Time) (Result, error) {
	machine := statemachine.HydrateMetrologia(spool)
	action := statemachine.ActionAprobar
	if req.Resultado == validation.ResultadoRechazado {
		action = statemachine.ActionRechazar
	}
	writes, err := machine.Fire(action, spool, req.Worker, now)
	if err != nil {
		return Result{}, err
	}

	rowNum, found, err := o.Rows.FindRowByColumn(ctx, operacionesTable, "tag", req.Tag)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, apperrors.NewNotFoundError("spool " + req.Tag)
	}
	cellWrites := toCellWrites(rowNum, writes)
	if err := o.Rows.BatchUpdateByColumnName(ctx, operacionesTable, cellWrites); err != nil {
		return Result{}, err
	}

	estadoDetalle := estadoDetalleValue(writes)
	o.DetectSupervisorOverride(ctx, req.Tag, spool.EstadoDetalle)
	o.emitEvent(ctx, req, estadoDetalle, now)

	return Result{EstadoDetalle: estadoDetalle}, nil
}

func (o *Orchestrator) emitEvent(ctx context.Context, req Request, estadoDetalle string, now time.Time) {
	kind := eventKindFor(req.Operacion, req.Accion, req.Resultado)
	metadata, _ := json.Marshal(eventMetadata{Tag: req.Tag, EstadoDetalle: estadoDetalle})
	event := store.EventRecord{
		Timestamp:      now,
		Kind:           string(kind),
		Tag:            req.Tag,
		WorkerID:       req.Worker.ID,
		WorkerName:     req.Worker.Name,
		Operacion:      string(req.Operacion),
		Accion:         string(req.Accion),
		FechaOperacion: now,
		MetadataJSON:   string(metadata),
	}
	if err := o.Events.Append(ctx, []store.EventRecord{event}); err != nil {
		o.Log.Warn("event append failed after successful row write",
			zap.String("tag", req.Tag), zap.String("kind", string(kind)), zap.Error(err))
	}
}

func hydrate(op domain.Operation, spool domain.Spool) *statemachine.Machine {
	switch op {
	case domain.OperationARM:
		return statemachine.HydrateARM(spool)
	case domain.OperationSOLD:
		return statemachine.HydrateSOLD(spool)
	case domain.OperationReparacion:
		return statemachine.HydrateReparacion(spool)
	default:
		return statemachine.HydrateARM(spool)
	}
}

func actionFor(op domain.Operation, accion domain.Accion) string {
	if op == domain.OperationReparacion {
		switch accion {
		case domain.AccionTomar:
			return statemachine.ActionTomar
		case domain.AccionPausar:
			return statemachine.ActionPausar
		case domain.AccionCompletar:
			return statemachine.ActionCompletar
		case domain.AccionCancelar:
			return statemachine.ActionCancelar
		}
	}
	switch accion {
	case domain.AccionTomar:
		return statemachine.ActionIniciar
	case domain.AccionCompletar:
		return statemachine.ActionCompletar
	case domain.AccionCancelar:
		return statemachine.ActionCancelar
	}
	return statemachine.ActionIniciar
}

func validationOperation(op domain.Operation) validation.Operation {
	switch op {
	case domain.OperationARM:
		return validation.OpARM
	case domain.OperationSOLD:
		return validation.OpSOLD
	case domain.OperationReparacion:
		return validation.OpReparacion
	default:
		return validation.OpARM
	}
}

func releaseMode(accion domain.Accion) occupation.Mode {
	switch accion {
	case domain.AccionCompletar:
		return occupation.ModeComplete
	case domain.AccionCancelar:
		return occupation.ModeCancel
	default:
		return occupation.ModePause
	}
}

func eventKindFor(op domain.Operation, accion domain.Accion, resultado validation.Resultado) domain.EventKind {
	switch op {
	case domain.OperationARM:
		if accion == domain.AccionCompletar {
			return domain.EventCompletarArm
		}
		if accion == domain.AccionTomar {
			return domain.EventTomarSpool
		}
		return domain.EventPausarSpool
	case domain.OperationSOLD:
		if accion == domain.AccionCompletar {
			return domain.EventCompletarSold
		}
		if accion == domain.AccionTomar {
			return domain.EventTomarSpool
		}
		return domain.EventPausarSpool
	case domain.OperationReparacion:
		switch accion {
		case domain.AccionTomar:
			return domain.EventTomarReparacion
		case domain.AccionPausar:
			return domain.EventPausarReparacion
		case domain.AccionCompletar:
			return domain.EventCompletarReparacion
		case domain.AccionCancelar:
			return domain.EventCancelarReparacion
		}
	case domain.OperationMetrologia:
		return domain.EventCompletarMetrologia
	}
	return domain.EventCompletarMetrologia
}

func toCellWrites(rowNum int, writes []statemachine.ColumnWrite) []store.CellWrite {
	out := make([]store.CellWrite, 0, len(writes))
	for _, w := range writes {
		out = append(out, store.CellWrite{Row: rowNum, Name: w.Column, Value: w.Value})
	}
	return out
}

func estadoDetalleValue(writes []statemachine.ColumnWrite) string {
	for _, w := range writes {
		if w.Column == "estado_detalle" {
			return w.Value
		}
	}
	return ""
}

