package httpapi

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/daemon"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/graph"
)

// Server is the admin HTTP surface of one daemon process (spec.md 6).
type Server struct {
	router *chi.Mux
	orch   *daemon.Orchestrator
	build  graph.Builder
	logger *log.Logger
}

// New builds the router with every route mounted. build is the same
// node factory the orchestrator's graph was constructed with; it is
// needed again here so POST /api/config can apply a hot-reload.
func New(orch *daemon.Orchestrator, build graph.Builder, logger *log.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		orch:   orch,
		build:  build,
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/graph", s.handleGraph)
		r.Post("/config", s.handleConfigReload)
		r.Get("/computing/state", s.handleComputingState)
		r.Get("/thermal/current", s.handleThermalCurrent)
		r.Post("/thermal/regulators/{id}/tune", s.handleThermalTune)
		r.Get("/action/drivers", s.handleActionDrivers)
		r.Get("/audio/stream/{nodeID}", s.handleAudioStream)
	})
}

// recoverer mirrors the structured-error convention of the rest of the
// surface instead of writing a plain-text 500.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "panic", rec, "path", r.URL.Path)
				writeErrorStatus(w, http.StatusInternalServerError, "internal", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
