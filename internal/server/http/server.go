// Package httpserver provides the HTTP REST API server for the paper digest
// service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/scholardigest/paper-digest-service/internal/database"
	"github.com/scholardigest/paper-digest-service/internal/domain"
	"github.com/scholardigest/paper-digest-service/internal/generator"
	"github.com/scholardigest/paper-digest-service/internal/observability"
	"github.com/scholardigest/paper-digest-service/internal/repository"
)

// GenerationService is the orchestration surface the API exposes.
// *generator.Generator implements it.
type GenerationService interface {
	Run(ctx context.Context, req generator.RunRequest) *generator.RunSnapshot
	Status() *generator.StatusStore
	AnalyzePDF(ctx context.Context, arxivID string) (*domain.PDFAnalysis, error)
	FetchPaper(ctx context.Context, arxivID string) (*domain.Paper, bool, error)
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	generation GenerationService
	paperRepo  repository.PaperRepository
	categories []domain.Category
	db         *database.DB
	logger     zerolog.Logger
	validate   *validator.Validate
}

// Config holds HTTP server configuration.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(
	cfg Config,
	generation GenerationService,
	paperRepo repository.PaperRepository,
	categories []domain.Category,
	db *database.DB,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		generation: generation,
		paperRepo:  paperRepo,
		categories: categories,
		db:         db,
		logger:     logger.With().Str("component", "http-server").Logger(),
		validate:   validator.New(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(jsonContentTypeMiddleware)

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/generate", s.triggerGeneration)
		r.Get("/generation-status", s.getGenerationStatus)

		r.Get("/categories", s.listCategories)
		r.Get("/categories/{categorySlug}/papers", s.listCategoryPapers)

		r.Get("/papers", s.listPapers)
		r.Get("/papers/{slug}", s.getPaperBySlug)
		r.Post("/papers/{arxivID}", s.fetchPaper)
		r.Post("/papers/{arxivID}/analysis", s.analyzePaperPDF)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler reports whether the service can serve traffic.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response. The correlation ID assigned by
// the middleware is included so callers can quote it when reporting failures.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	body := map[string]string{
		"error": message,
	}
	if id := observability.RequestIDFromContext(r.Context()); id != "" {
		body["correlation_id"] = id
	}
	writeJSON(w, statusCode, body)
}
