// Package httpapi exposes the operator intents (run, save options, switch
// profile, toggle triggers, reorder and hide menu entries) over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/application/service"
	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/infrastructure/metrics"
	"carvana-workflows/internal/usecase/engine"
	"carvana-workflows/internal/usecase/preferences"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
)

type Deps struct {
	Engine   *engine.Engine
	Registry *service.Registry
	RunPrefs *preferences.RunPrefsStore
	Menus    *preferences.MenuStore
	Profiles *preferences.ProfileStore
	// Metrics is optional; without it /metrics is not mounted.
	Metrics *metrics.Recorder
	Logger  output.LoggerPort
	// RequestLog enables httplog request logging.
	RequestLog bool
}

type Server struct {
	deps   Deps
	router chi.Router

	// base outlives requests; auto-run passes triggered by an intent run
	// on it.
	base   context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup
}

func NewServer(deps Deps) *Server {
	base, cancel := context.WithCancel(context.Background())
	s := &Server{deps: deps, base: base, cancel: cancel}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.deps.RequestLog {
		r.Use(httplog.RequestLogger(httplog.NewLogger("autoflow", httplog.Options{JSON: true, Concise: true})))
	}
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Get("/page", s.handlePage)
	r.Route("/workflows/{id}", func(r chi.Router) {
		r.Post("/run", s.handleRun)
		r.Put("/options", s.handleSaveOptions)
		r.Put("/profile", s.handleSwitchProfile)
		r.Put("/run-prefs", s.handleRunPrefs)
	})
	r.Route("/pages/{pageId}", func(r chi.Router) {
		r.Post("/order", s.handleMove)
		r.Put("/hidden/{id}", s.handleHidden)
	})
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Drain waits for background passes to finish on their own.
func (s *Server) Drain() {
	s.bg.Wait()
}

// Close cancels background passes and waits for them.
func (s *Server) Close() {
	s.cancel()
	s.bg.Wait()
}

// background runs fn detached from the request that caused it.
func (s *Server) background(fn func(ctx context.Context)) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn(s.base)
	}()
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.deps.Logger.Error("Intent failed", "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	var stepErr *entity.StepError
	switch {
	case errors.Is(err, entity.ErrWorkflowNotFound), errors.Is(err, entity.ErrPageNotDetected):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrBusy), errors.Is(err, entity.ErrWorkflowDisabled):
		return http.StatusConflict
	case errors.Is(err, entity.ErrInvalidProfile), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &stepErr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
