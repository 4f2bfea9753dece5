package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hperssn/pulse/internal/display"
	"github.com/hperssn/pulse/internal/domain"
	"github.com/hperssn/pulse/internal/runner"
)

// Controller is the command surface of the session state machine.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Toggle(ctx context.Context) error
	Snapshot(ctx context.Context) (domain.Session, error)
}

// PanelSource is what the display endpoints read from.
type PanelSource interface {
	Current() display.Panel
	Subscribe() (<-chan display.Panel, func())
}

type Server struct {
	ctrl    Controller
	panels  PanelSource
	metrics http.Handler
	log     *slog.Logger

	defaultWearer string
	origins       []string
}

func NewServer(ctrl Controller, panels PanelSource, metrics http.Handler) *Server {
	return &Server{
		ctrl:    ctrl,
		panels:  panels,
		metrics: metrics,
		log:     slog.Default().With("component", "http"),
	}
}

// WithDefaultWearer sets the wearer used when a command request names none.
func (s *Server) WithDefaultWearer(id string) *Server {
	s.defaultWearer = id
	return s
}

// WithAllowedOrigins limits the browser origins that may open /ws.
func (s *Server) WithAllowedOrigins(origins ...string) *Server {
	s.origins = origins
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(WearerMiddleware, DefaultWearer(s.defaultWearer))

		r.Post("/session/start", s.startSession)
		r.Post("/session/stop", s.stopSession)
		r.Post("/session/toggle", s.toggleSession)
	})
	r.Get("/session", s.getSession)

	r.Get("/display", s.getDisplay)
	r.Get("/display/events", s.streamDisplay)
	r.Get("/ws", s.serveWS)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	return r
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Start(r.Context()); err != nil {
		s.respondCommandError(w, err)
		return
	}
	s.respondSnapshot(w, r, http.StatusCreated)
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(r.Context()); err != nil {
		s.respondCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleSession(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Toggle(r.Context()); err != nil {
		s.respondCommandError(w, err)
		return
	}
	s.respondSnapshot(w, r, http.StatusOK)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.respondSnapshot(w, r, http.StatusOK)
}

func (s *Server) getDisplay(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.panels.Current(), http.StatusOK)
}

func (s *Server) respondSnapshot(w http.ResponseWriter, r *http.Request, status int) {
	session, err := s.ctrl.Snapshot(r.Context())
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	respondJSON(w, session, status)
}

func (s *Server) respondCommandError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, runner.ErrAlreadyRunning):
		status = http.StatusConflict
	case errors.Is(err, runner.ErrSensorUnavailable),
		errors.Is(err, runner.ErrAuthorizationDenied),
		errors.Is(err, runner.ErrMachineStopped):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}

	if status == http.StatusInternalServerError {
		s.log.Error("command failed", "error", err)
	}
	respondError(w, err.Error(), status)
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
