package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/scholardigest/paper-digest-service/internal/domain"
	"github.com/scholardigest/paper-digest-service/internal/generator"
)

// Pagination and validation constants.
const (
	defaultPerPage     = 20
	maxPerPage         = 100
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// generateRequest is the optional JSON request body for triggering a
// generation run.
type generateRequest struct {
	Categories []string `json:"categories" validate:"omitempty,max=32,dive,min=2,max=32"`
	MaxPapers  int      `json:"max_papers" validate:"omitempty,min=1,max=50"`
}

// triggerGeneration handles POST /generate. It starts a fire-and-forget
// generation run and returns 202 with the immediate status snapshot;
// categories already in progress are reported as rejected in the snapshot.
func (s *Server) triggerGeneration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req generateRequest
	if r.ContentLength != 0 {
		defer r.Body.Close()
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "failed to read request body")
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, "invalid JSON request body")
				return
			}
			if err := s.validate.Struct(&req); err != nil {
				writeError(w, r, http.StatusBadRequest, "invalid generate request: "+err.Error())
				return
			}
		}
	}

	snapshot := s.generation.Run(ctx, generator.RunRequest{
		Categories: req.Categories,
		MaxPapers:  req.MaxPapers,
	})

	writeJSON(w, http.StatusAccepted, snapshot)
}

// getGenerationStatus handles GET /generation-status. Without a query
// parameter it returns every category's status; ?category= narrows the
// response to one category.
func (s *Server) getGenerationStatus(w http.ResponseWriter, r *http.Request) {
	store := s.generation.Status()

	if code := r.URL.Query().Get("category"); code != "" {
		status, ok := store.Get(code)
		if !ok {
			writeError(w, r, http.StatusNotFound, "unknown category")
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": store.Snapshot(),
	})
}

// listCategories handles GET /categories. It returns the configured
// categories annotated with their lifetime stored paper counts.
func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := s.paperRepo.CountByCategory(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to count papers by category")
		writeDomainError(w, r, err)
		return
	}

	categories := make([]categoryResponse, len(s.categories))
	for i, cat := range s.categories {
		categories[i] = categoryResponse{
			Code:       cat.Code,
			Name:       cat.Name,
			Slug:       cat.Slug,
			PaperCount: counts[cat.Code],
		}
	}

	writeJSON(w, http.StatusOK, listCategoriesResponse{Categories: categories})
}

// writeDomainError maps domain errors to appropriate HTTP status codes and
// writes a JSON error response. Internal error details are not leaked to
// clients.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, r, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, r, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrConcurrentRun):
		writeError(w, r, http.StatusConflict, "a generation run is already in progress")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrCatalogUnavailable):
		writeError(w, r, http.StatusBadGateway, "paper catalog unavailable")
	case errors.Is(err, domain.ErrDownloadFailed), errors.Is(err, domain.ErrUnreadablePDF):
		writeError(w, r, http.StatusUnprocessableEntity, "paper PDF could not be processed")
	case errors.Is(err, domain.ErrSummarizationFailed):
		writeError(w, r, http.StatusBadGateway, "summarization failed")
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "storage unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

// parsePagination extracts page and per_page query parameters, applying
// default and maximum bounds. Pages are 1-based.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = defaultPerPage
	if perPageStr := r.URL.Query().Get("per_page"); perPageStr != "" {
		if parsed, err := strconv.Atoi(perPageStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPerPage {
		limit = maxPerPage
	}

	page := 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil && parsed > 0 {
			page = parsed
		}
	}

	return limit, (page - 1) * limit
}
