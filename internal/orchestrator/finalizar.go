package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pipeworks/shopfloor-orchestrator/internal/display"
	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
	"github.com/pipeworks/shopfloor-orchestrator/internal/occupation"
	"github.com/pipeworks/shopfloor-orchestrator/internal/store"
)

const unionesTable = "Uniones"

// FinalizarRequest is the union-level batch action of spec.md §4.6: a
// single owner registering completion of a set of unions' ARM or SOLD leg
// in one call.
type FinalizarRequest struct {
	Tag       string
	Worker    domain.WorkerRef
	Operacion domain.Operation // OperationARM or OperationSOLD
	Token     occupation.Token
	UnionN    []int
}

// FinalizarResult reports what the batch actually did, including the
// per-item warnings for any union dropped from the request (spec.md §4.6:
// "Invalid members are dropped with per-item warnings; processing continues
// with the survivors").
type FinalizarResult struct {
	EstadoDetalle      string
	SpoolAccion        domain.Accion
	Accepted           []int
	Warnings           []string
	UnionesCompletadas int
	Pulgadas           float64
}

// Finalizar implements spec.md §4.6. It validates every requested union
// against its precondition, writes the survivors' completion witnesses in
// one batched Uniones update, auto-determines the resulting spool-level
// action from how many of the operation's available unions were included,
// and releases occupation (clearing ocupado_por) for every resulting action.
func (o *Orchestrator) Finalizar(ctx context.Context, req FinalizarRequest) (FinalizarResult, error) {
	now := o.Now()

	row, err := o.Rows.ReadRow(ctx, operacionesTable, req.Tag)
	if err != nil {
		return FinalizarResult{}, err
	}
	spool := domain.RowToSpool(req.Tag, row)
	if !spool.IsUnionLevel() {
		return FinalizarResult{}, apperrors.NewValidationError("FINALIZAR requires a union-level spool")
	}
	if err := o.Coord.Verify(ctx, operacionesTable, req.Tag, req.Worker, req.Token); err != nil {
		return FinalizarResult{}, err
	}

	allRows, err := o.Rows.ReadAll(ctx, unionesTable)
	if err != nil {
		return FinalizarResult{}, err
	}
	var all []unionRow
	for _, r := range allRows {
		if r[domain.NormalizeName("ot")] != spool.OT {
			continue
		}
		n := parseUnionN(r)
		all = append(all, unionRow{union: domain.RowToUnion(spool.OT, n, r), row: r})
	}

	available := 0
	for _, u := range all {
		if req.Operacion == domain.OperationARM && u.union.ArmAvailable() {
			available++
		}
		if req.Operacion == domain.OperationSOLD && u.union.SolAvailable() {
			available++
		}
	}

	var accepted []int
	var warnings []string
	var writes []store.CellWrite
	rowNumByN := make(map[int]int)
	seen := make(map[int]bool, len(req.UnionN))
	for _, n := range req.UnionN {
		if seen[n] {
			warnings = append(warnings, fmt.Sprintf("union %d duplicated in request for %s", n, req.Tag))
			continue
		}
		seen[n] = true

		ur, ok := findByN(all, n)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("union %d not found for %s", n, req.Tag))
			continue
		}
		eligible := ur.union.ArmAvailable()
		if req.Operacion == domain.OperationSOLD {
			eligible = ur.union.SolAvailable()
		}
		if !eligible {
			warnings = append(warnings, fmt.Sprintf("union %d not eligible for %s completion", n, req.Operacion))
			continue
		}

		rowNum, found, ferr := o.Rows.FindRowByColumn(ctx, unionesTable, "id", ur.union.ID())
		if ferr != nil {
			return FinalizarResult{}, ferr
		}
		if !found {
			warnings = append(warnings, fmt.Sprintf("union %d row vanished for %s", n, req.Tag))
			continue
		}
		prefix := "arm"
		if req.Operacion == domain.OperationSOLD {
			prefix = "sol"
		}
		writes = append(writes,
			store.CellWrite{Row: rowNum, Name: prefix + "_fecha_fin", Value: now.Format(domain.TimeLayout)},
			store.CellWrite{Row: rowNum, Name: prefix + "_worker", Value: req.Worker.Canonical()},
		)
		rowNumByN[n] = rowNum
		accepted = append(accepted, n)
	}

	if len(writes) > 0 {
		if err := o.Rows.BatchUpdateByColumnName(ctx, unionesTable, writes); err != nil {
			return FinalizarResult{}, err
		}
	}
	for _, w := range warnings {
		o.Log.Warn("finalizar dropped union", zap.String("tag", req.Tag), zap.String("reason", w))
	}

	applyAcceptedCompletion(all, accepted, req.Operacion, now)
	completadas, pulgadas := domain.UnionProgress(unionsOf(all), req.Operacion)

	spoolAccion := finalizarSpoolAccion(len(accepted), available)
	result := FinalizarResult{
		SpoolAccion:        spoolAccion,
		Accepted:           accepted,
		Warnings:           warnings,
		UnionesCompletadas: completadas,
		Pulgadas:           pulgadas,
	}

	var extra []store.CellWrite
	rowNum, found, err := o.Rows.FindRowByColumn(ctx, operacionesTable, "tag", req.Tag)
	if err != nil {
		return FinalizarResult{}, err
	}
	if !found {
		return FinalizarResult{}, apperrors.NewNotFoundError("spool " + req.Tag)
	}

	switch spoolAccion {
	case domain.AccionCompletar:
		if req.Operacion == domain.OperationSOLD && allArmComplete(all, rowNumByN, writes) {
			estado := display.Render(display.PhasePendienteMetrologia, 0, "")
			extra = append(extra, store.CellWrite{Row: rowNum, Name: "estado_detalle", Value: estado})
			result.EstadoDetalle = estado
		}
		if err := o.Coord.Release(ctx, operacionesTable, req.Tag, req.Worker, req.Token, occupation.ModeComplete, extra, now); err != nil {
			return FinalizarResult{}, err
		}
	case domain.AccionCancelar:
		if err := o.Coord.Release(ctx, operacionesTable, req.Tag, req.Worker, req.Token, occupation.ModeCancel, extra, now); err != nil {
			return FinalizarResult{}, err
		}
	case domain.AccionPausar:
		if err := o.Coord.Release(ctx, operacionesTable, req.Tag, req.Worker, req.Token, occupation.ModePause, extra, now); err != nil {
			return FinalizarResult{}, err
		}
	}

	o.emitFinalizarEvents(ctx, req, accepted, spoolAccion, now)
	return result, nil
}

type unionRow struct {
	union domain.Union
	row   store.Row
}

func findByN(all []unionRow, n int) (unionRow, bool) {
	for _, u := range all {
		if u.union.N == n {
			return u, true
		}
	}
	return unionRow{}, false
}

// applyAcceptedCompletion reflects this call's just-batched completion
// witnesses into all's in-memory unions so UnionProgress (I5) counts them
// without a second read.
func applyAcceptedCompletion(all []unionRow, accepted []int, op domain.Operation, now time.Time) {
	acceptedSet := make(map[int]bool, len(accepted))
	for _, n := range accepted {
		acceptedSet[n] = true
	}
	for i := range all {
		if !acceptedSet[all[i].union.N] {
			continue
		}
		if op == domain.OperationSOLD {
			all[i].union.SolFechaFin = now
		} else {
			all[i].union.ArmFechaFin = now
		}
	}
}

func unionsOf(all []unionRow) []domain.Union {
	out := make([]domain.Union, len(all))
	for i, u := range all {
		out[i] = u.union
	}
	return out
}

func parseUnionN(row store.Row) int {
	n, err := strconv.Atoi(row[domain.NormalizeName("n")])
	if err != nil {
		return 0
	}
	return n
}

// finalizarSpoolAccion auto-determines the spool-level action from how many
// of the operation's available unions were accepted (spec.md §4.6).
func finalizarSpoolAccion(accepted, available int) domain.Accion {
	switch {
	case accepted == 0:
		return domain.AccionCancelar
	case accepted < available:
		return domain.AccionPausar
	default:
		return domain.AccionCompletar
	}
}

// allArmComplete reports whether every union's ARM leg is done, accounting
// for the ARM writes just batched in this same call (spec.md §4.6: "if
// op = SOLD and ARM also 100% complete, transition to
// PENDIENTE_METROLOGIA").
func allArmComplete(all []unionRow, rowNumByN map[int]int, writes []store.CellWrite) bool {
	justCompleted := make(map[int]bool)
	for _, w := range writes {
		if w.Name == "arm_fecha_fin" {
			justCompleted[w.Row] = true
		}
	}
	for _, u := range all {
		if u.union.ArmDone() || justCompleted[rowNumByN[u.union.N]] {
			continue
		}
		return false
	}
	return true
}

func (o *Orchestrator) emitFinalizarEvents(ctx context.Context, req FinalizarRequest, accepted []int, spoolAccion domain.Accion, now time.Time) {
	kind := domain.EventUnionArmRegistrada
	if req.Operacion == domain.OperationSOLD {
		kind = domain.EventUnionSoldRegistrada
	}
	events := make([]store.EventRecord, 0, len(accepted)+1)
	for _, n := range accepted {
		n := n
		events = append(events, store.EventRecord{
			Timestamp:      now,
			Kind:           string(kind),
			Tag:            req.Tag,
			WorkerID:       req.Worker.ID,
			WorkerName:     req.Worker.Name,
			Operacion:      string(req.Operacion),
			Accion:         string(domain.AccionCompletar),
			FechaOperacion: now,
			NUnion:         &n,
		})
	}
	if spoolAccion == domain.AccionCancelar {
		events = append(events, store.EventRecord{
			Timestamp:      now,
			Kind:           string(domain.EventSpoolCancelado),
			Tag:            req.Tag,
			WorkerID:       req.Worker.ID,
			WorkerName:     req.Worker.Name,
			Operacion:      string(req.Operacion),
			Accion:         string(domain.AccionCancelar),
			FechaOperacion: now,
		})
	}
	if len(events) == 0 {
		return
	}
	if err := o.Events.Append(ctx, events); err != nil {
		o.Log.Warn("finalizar event append failed after successful row write",
			zap.String("tag", req.Tag), zap.Error(err))
	}
}
