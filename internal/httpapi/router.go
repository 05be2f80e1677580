// Package httpapi exposes a running courier over a small local HTTP API,
// used by the CLI subcommands to talk to the daemon.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gojson "github.com/goccy/go-json"

	"github.com/bft-labs/courier/pkg/courier"
	"github.com/bft-labs/courier/pkg/log"
)

// Service is the part of *courier.Courier the API drives.
type Service interface {
	State() courier.State
	Status() courier.Status
	Pending() []courier.QueuedOperation
	Enqueue(ctx context.Context, kind courier.Kind, data any) (courier.QueuedOperation, error)
	Cancel(ctx context.Context, id string) error
	SyncNow(ctx context.Context) (courier.SyncResult, error)
	Sweep(ctx context.Context) courier.SweepResult
	SetOnline(online bool)
}

// Server holds dependencies for HTTP handlers
type Server struct {
	svc    Service
	logger log.Logger
}

// NewServer creates a Server. logger may be nil.
func NewServer(svc Service, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Server{svc: svc, logger: logger}
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	State string `json:"state"`
	courier.Status
}

// EnqueueRequest is the body of POST /queue.
type EnqueueRequest struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// OnlineRequest is the body of POST /online.
type OnlineRequest struct {
	Online bool `json:"online"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code
func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := gojson.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode json response", log.Err(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), ErrorResponse{Error: err.Error()})
}

// statusFor maps courier errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, courier.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, courier.ErrOperationNotFound):
		return http.StatusNotFound
	case errors.Is(err, courier.ErrInFlight), errors.Is(err, courier.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, courier.ErrOffline):
		return http.StatusServiceUnavailable
	case errors.Is(err, courier.ErrOfflineModeDisabled):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Routes creates the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationMiddleware)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/status", s.getStatus)
	r.Post("/online", s.setOnline)
	r.Post("/sync", s.syncNow)
	r.Post("/sweep", s.sweep)

	r.Route("/queue", func(r chi.Router) {
		r.Get("/", s.listQueue)
		r.Post("/", s.enqueue)
		r.Delete("/{id}", s.cancel)
	})

	return r
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StatusResponse{
		State:  s.svc.State().String(),
		Status: s.svc.Status(),
	})
}

func (s *Server) setOnline(w http.ResponseWriter, r *http.Request) {
	var req OnlineRequest
	if err := gojson.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	s.svc.SetOnline(req.Online)
	s.getStatus(w, r)
}

func (s *Server) syncNow(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.SyncNow(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) sweep(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Sweep(r.Context()))
}

func (s *Server) listQueue(w http.ResponseWriter, r *http.Request) {
	items := s.svc.Pending()
	if items == nil {
		items = []courier.QueuedOperation{}
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := gojson.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	kind, err := courier.ParseKind(req.Kind)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var data any
	if len(req.Data) > 0 {
		data = req.Data
	}
	op, err := s.svc.Enqueue(r.Context(), kind, data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, op)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Cancel(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
