package orchestrator

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
	"github.com/pipeworks/shopfloor-orchestrator/internal/metrics"
	"github.com/pipeworks/shopfloor-orchestrator/internal/store"
)

type eventMetadata struct {
	Tag           string `json:"tag,omitempty"`
	EstadoDetalle string `json:"estado_detalle,omitempty"`
	Previous      string `json:"previous,omitempty"`
	Current       string `json:"current,omitempty"`
	DetectedAt    string `json:"detected_at,omitempty"`
}

// DetectSupervisorOverride implements spec.md §4.9: on every read of
// estado_detalle, if the last logged event for tag recorded a BLOQUEADO
// value and the value just read does not contain it, a supervisor has
// cleared the block out-of-band (direct row edit, admin tool) without going
// through REPARACION. A synthetic SUPERVISOR_OVERRIDE event captures the
// transition. Detection failures are logged and never block the caller.
func (o *Orchestrator) DetectSupervisorOverride(ctx context.Context, tag, currentEstadoDetalle string) {
	last, found, err := o.Events.LastForTag(ctx, tag)
	if err != nil {
		o.Log.Warn("supervisor override detection failed", zap.String("tag", tag), zap.Error(err))
		return
	}
	if !found || last.Kind == string(domain.EventSupervisorOverride) {
		return
	}

	var meta eventMetadata
	_ = json.Unmarshal([]byte(last.MetadataJSON), &meta)
	previous := meta.EstadoDetalle
	if previous == "" || !strings.Contains(previous, "BLOQUEADO") {
		return
	}
	if strings.Contains(currentEstadoDetalle, "BLOQUEADO") {
		return
	}

	now := o.Now()
	payload, _ := json.Marshal(eventMetadata{
		Previous:   previous,
		Current:    currentEstadoDetalle,
		DetectedAt: now.Format(domain.TimeLayout),
	})
	event := store.EventRecord{
		Timestamp:      now,
		Kind:           string(domain.EventSupervisorOverride),
		Tag:            tag,
		WorkerID:       domain.SystemWorkerID,
		WorkerName:     domain.SystemWorkerName,
		FechaOperacion: now,
		MetadataJSON:   string(payload),
	}
	if err := o.Events.Append(ctx, []store.EventRecord{event}); err != nil {
		o.Log.Warn("supervisor override event append failed", zap.String("tag", tag), zap.Error(err))
		return
	}
	metrics.RecordSupervisorOverride()
}
