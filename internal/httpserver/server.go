package httpserver

import (
	"context"
	"errors"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"entitymigrate/internal/migrate"
	"entitymigrate/internal/storage"
)

var versionParam = regexp.MustCompile(`^[a-z0-9_]+$`)

// Server exposes a read-only JSON view of the migration state: applied and
// pending units, unit manifests and their scripts. All mutating workflows
// stay on the CLI.
type Server struct {
	addr   string
	runner *migrate.Runner
	units  *storage.Store
	logger requestLogger
}

type requestLogger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

func New(addr string, runner *migrate.Runner, units *storage.Store, logger requestLogger) *Server {
	return &Server{addr: addr, runner: runner, units: units, logger: logger}
}

// Start serves until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogging(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/units", s.handleUnits)
		r.Get("/units/{version}", s.handleUnit)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.runner.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", "error", err)
		writeError(w, http.StatusInternalServerError, "status_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleUnits(w http.ResponseWriter, _ *http.Request) {
	units, err := s.units.List()
	if err != nil {
		s.logger.Error("list units failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	if units == nil {
		units = []storage.Unit{}
	}
	writeJSON(w, http.StatusOK, units)
}

func (s *Server) handleUnit(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")
	if !versionParam.MatchString(version) {
		writeError(w, http.StatusBadRequest, "bad_version", "invalid unit version")
		return
	}
	unit, err := s.units.Load(version)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "not_found", "unknown unit "+version)
			return
		}
		writeError(w, http.StatusInternalServerError, "load_failed", err.Error())
		return
	}
	forward, rollback, err := s.units.LoadScripts(version)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, unitDTO{
		Unit:     unit,
		Forward:  forward,
		Rollback: rollback,
	})
}

type unitDTO struct {
	storage.Unit
	Forward  string `json:"forward"`
	Rollback string `json:"rollback"`
}
