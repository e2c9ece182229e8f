package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/preflight-agent/internal/db"
	"github.com/jonathan/preflight-agent/internal/jobs"
	"github.com/jonathan/preflight-agent/internal/report"
	"github.com/jonathan/preflight-agent/internal/types"
	"github.com/jonathan/preflight-agent/internal/wizard"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxUploadBytes caps multipart uploads.
const DefaultMaxUploadBytes = 100 << 20

// ComplianceChecker validates a document against several standards.
type ComplianceChecker interface {
	Run(ctx context.Context, doc types.Document, standards []string) (types.MultiStandardResult, error)
}

// JobHistory lists persisted job snapshots.
type JobHistory interface {
	ListJobs(ctx context.Context, filters db.JobFilters) ([]db.JobRecord, error)
}

// SessionAuditor records wizard session events.
type SessionAuditor interface {
	RecordSessionEvent(ctx context.Context, sessionID uuid.UUID, input *db.SessionEventInput) (*db.SessionEvent, error)
}

// Config holds server configuration
type Config struct {
	Addr           string
	CORSOrigins    []string
	WorkDir        string
	PollInterval   time.Duration
	JobTimeout     time.Duration
	MaxUploadBytes int64
}

// Deps are the collaborators the server drives. Orchestrator and Processor are
// required; the rest switch features on when set.
type Deps struct {
	Orchestrator *jobs.Orchestrator
	Processor    wizard.Processor
	Compliance   ComplianceChecker
	History      JobHistory
	Audit        SessionAuditor
	Logger       *slog.Logger
}

// Server represents the HTTP server
type Server struct {
	cfg        Config
	logger     *slog.Logger
	orch       *jobs.Orchestrator
	processor  wizard.Processor
	compliance ComplianceChecker
	history    JobHistory
	audit      SessionAuditor
	exporter   *report.Exporter
	httpServer *http.Server

	// baseCtx outlives requests; background steps run under it.
	baseCtx context.Context
	stop    context.CancelFunc
	steps   sync.WaitGroup

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Orchestrator == nil {
		return nil, errors.New("server: orchestrator is required")
	}
	if deps.Processor == nil {
		return nil, errors.New("server: processor is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	baseCtx, stop := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		logger:     deps.Logger,
		orch:       deps.Orchestrator,
		processor:  deps.Processor,
		compliance: deps.Compliance,
		history:    deps.History,
		audit:      deps.Audit,
		exporter:   report.NewExporter(deps.Logger),
		baseCtx:    baseCtx,
		stop:       stop,
		sessions:   make(map[uuid.UUID]*session),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler with logging and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// Wizard sessions
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /sessions/{id}/steps/{step}", s.handleExecuteStep)
	mux.HandleFunc("POST /sessions/{id}/steps/{step}/skip", s.handleSkipStep)
	mux.HandleFunc("POST /sessions/{id}/goto/{step}", s.handleGoToStep)
	mux.HandleFunc("POST /sessions/{id}/reset", s.handleResetSession)
	mux.HandleFunc("POST /sessions/{id}/finish", s.handleFinishSession)
	mux.HandleFunc("GET /sessions/{id}/overlays", s.handleSessionOverlays)
	mux.HandleFunc("GET /sessions/{id}/report.xlsx", s.handleSessionReport)

	// Jobs
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("DELETE /jobs/{id}", s.handleCancelJob)
	mux.HandleFunc("GET /jobs/{id}/events", s.handleJobEvents)

	// Compliance
	mux.HandleFunc("POST /compliance", s.handleCompliance)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.withLogging(mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully and waits for
// background steps to stop.
func (s *Server) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		s.Close()
		return err
	})

	return g.Wait()
}

// Close cancels background steps and waits for them to return.
func (s *Server) Close() {
	s.stop()
	s.steps.Wait()
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "elapsed", time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// errorFrom writes err with the status HTTPStatus picks for it.
func (s *Server) errorFrom(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.errorResponse(w, status, err.Error())
}
