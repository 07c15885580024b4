// Package httpapi is the thin chi HTTP surface over the orchestrator core
// (SPEC_FULL.md §10.5): decode a request, resolve the worker, call the
// orchestrator, encode the result. It carries no business logic of its own
// — every invariant lives in internal/orchestrator, internal/occupation,
// and internal/statemachine. Grounded on the teacher's hand-written
// gateway-service chi routes rather than its generated ai-service ogen
// routes (SPEC_FULL.md §11.7).
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pipeworks/shopfloor-orchestrator/internal/domain"
	apperrors "github.com/pipeworks/shopfloor-orchestrator/internal/errors"
	"github.com/pipeworks/shopfloor-orchestrator/internal/history"
	"github.com/pipeworks/shopfloor-orchestrator/internal/occupation"
	"github.com/pipeworks/shopfloor-orchestrator/internal/orchestrator"
	"github.com/pipeworks/shopfloor-orchestrator/internal/store"
	"github.com/pipeworks/shopfloor-orchestrator/internal/validation"
	"github.com/pipeworks/shopfloor-orchestrator/pkg/worker"
)

// Server wires the orchestrator core to an HTTP mux.
type Server struct {
	Orchestrator *orchestrator.Orchestrator
	Events       store.EventLog
	Workers      worker.Directory
	Log          *zap.Logger
	validate     *validator.Validate
}

// New builds a Server and its chi router.
func New(o *orchestrator.Orchestrator, events store.EventLog, workers worker.Directory, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{Orchestrator: o, Events: events, Workers: workers, Log: log, validate: validator.New()}
}

// Router builds the chi mux. allowedOrigins configures go-chi/cors.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Route("/api/v1/spools/{tag}", func(r chi.Router) {
		r.Post("/transitions", s.handleTransition)
		r.Post("/finalizar", s.handleFinalizar)
		r.Get("/history", s.handleHistory)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// transitionRequest is the wire shape for POST /transitions. Resultado is
// only meaningful when Operacion == "METROLOGIA".
type transitionRequest struct {
	WorkerID  int    `json:"worker_id" validate:"required"`
	Operacion string `json:"operacion" validate:"required,oneof=ARM SOLD METROLOGIA REPARACION"`
	Accion    string `json:"accion" validate:"required,oneof=TOMAR PAUSAR COMPLETAR CANCELAR"`
	Resultado string `json:"resultado,omitempty" validate:"omitempty,oneof=APROBADO RECHAZADO"`
	Token     string `json:"token,omitempty"`
}

type transitionResponse struct {
	EstadoDetalle string `json:"estado_detalle"`
	Token         string `json:"token,omitempty"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")

	var payload transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apperrors.NewValidationError("malformed request body"))
		return
	}
	if err := s.validate.Struct(payload); err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid transition request"))
		return
	}

	wref, err := s.resolveWorker(r.Context(), payload.WorkerID)
	if err != nil {
		writeError(w, err)
		return
	}

	req := orchestrator.Request{
		Tag:       tag,
		Worker:    wref,
		Operacion: domain.Operation(payload.Operacion),
		Accion:    domain.Accion(payload.Accion),
		Resultado: validation.Resultado(payload.Resultado),
		Token:     occupation.Token(payload.Token),
	}

	result, err := s.Orchestrator.Execute(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{EstadoDetalle: result.EstadoDetalle, Token: string(result.Token)})
}

type finalizarRequest struct {
	WorkerID  int    `json:"worker_id" validate:"required"`
	Operacion string `json:"operacion" validate:"required,oneof=ARM SOLD"`
	Token     string `json:"token" validate:"required"`
	UnionN    []int  `json:"union_n" validate:"required,min=1"`
}

type finalizarResponse struct {
	EstadoDetalle      string   `json:"estado_detalle"`
	SpoolAccion        string   `json:"spool_accion"`
	Accepted           []int    `json:"accepted"`
	Warnings           []string `json:"warnings,omitempty"`
	UnionesCompletadas int      `json:"uniones_completadas"`
	Pulgadas           float64  `json:"pulgadas"`
}

func (s *Server) handleFinalizar(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")

	var payload finalizarRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apperrors.NewValidationError("malformed request body"))
		return
	}
	if err := s.validate.Struct(payload); err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid finalizar request"))
		return
	}

	wref, err := s.resolveWorker(r.Context(), payload.WorkerID)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.Orchestrator.Finalizar(r.Context(), orchestrator.FinalizarRequest{
		Tag:       tag,
		Worker:    wref,
		Operacion: domain.Operation(payload.Operacion),
		Token:     occupation.Token(payload.Token),
		UnionN:    payload.UnionN,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, finalizarResponse{
		EstadoDetalle:      result.EstadoDetalle,
		SpoolAccion:        string(result.SpoolAccion),
		Accepted:           result.Accepted,
		Warnings:           result.Warnings,
		UnionesCompletadas: result.UnionesCompletadas,
		Pulgadas:           result.Pulgadas,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	events, err := s.Events.ForTag(r.Context(), tag)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history.Aggregate(events))
}

func (s *Server) resolveWorker(ctx context.Context, id int) (domain.WorkerRef, error) {
	if s.Workers == nil {
		return domain.NewWorkerRef(id, "", ""), nil
	}
	w, ok, err := s.Workers.Lookup(ctx, id)
	if err != nil {
		return domain.WorkerRef{}, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "resolving worker")
	}
	if !ok {
		return domain.WorkerRef{}, apperrors.NewNotFoundError("worker")
	}
	return w, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.GetStatusCode(err), errorResponse{
		Error: apperrors.SafeErrorMessage(err),
		Type:  string(apperrors.GetType(err)),
	})
}
