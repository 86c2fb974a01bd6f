package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Server struct{ mux *chi.Mux }

// New builds the router. timeout bounds a whole request, remote calls
// included, so it should exceed the store's client timeout.
func New(timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	m := chi.NewRouter()

	// Metrics and Logger sit outside Timeout so timed-out requests are
	// counted and logged with the 503 the client actually got.
	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(Metrics)
	m.Use(Logger(log.Logger))
	m.Use(chimw.Recoverer)
	m.Use(Timeout(timeout))

	return &Server{mux: m}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
