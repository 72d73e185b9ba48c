package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// HealthCheck reports one dependency's availability.
type HealthCheck func(ctx context.Context) error

// Server serves /metrics and /health. An optional websocket handler can be
// mounted at /ws for the broadcast relay.
type Server struct {
	addr   string
	router *mux.Router
	checks map[string]HealthCheck
}

// NewServer creates the observability server.
func NewServer(addr string) *Server {
	s := &Server{
		addr:   addr,
		router: mux.NewRouter(),
		checks: map[string]HealthCheck{},
	}
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return s
}

// AddCheck registers a named dependency health check.
func (s *Server) AddCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// Mount attaches an extra handler, e.g. the websocket relay.
func (s *Server) Mount(path string, handler http.Handler) {
	s.router.Handle(path, handler)
}

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status":       http.StatusText(status),
		"dependencies": deps,
		"time":         time.Now().UTC(),
	})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("Metrics server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }
