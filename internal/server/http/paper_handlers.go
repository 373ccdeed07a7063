package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scholardigest/paper-digest-service/internal/domain"
	"github.com/scholardigest/paper-digest-service/internal/repository"
)

// listPapers handles GET /papers. Supports category, date, sort and
// pagination query parameters.
func (s *Server) listPapers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, ok := parsePaperFilter(w, r)
	if !ok {
		return
	}

	var (
		papers []*domain.Paper
		total  int64
		err    error
	)
	if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
		papers, total, err = s.paperRepo.ListByCategory(ctx, category, filter)
	} else {
		papers, total, err = s.paperRepo.List(ctx, filter)
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writePaperList(w, papers, filter, total)
}

// listCategoryPapers handles GET /categories/{categorySlug}/papers.
func (s *Server) listCategoryPapers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categorySlug := chi.URLParam(r, "categorySlug")
	filter, ok := parsePaperFilter(w, r)
	if !ok {
		return
	}

	papers, total, err := s.paperRepo.ListByCategory(ctx, categorySlug, filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writePaperList(w, papers, filter, total)
}

// getPaperBySlug handles GET /papers/{slug}.
func (s *Server) getPaperBySlug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slug := chi.URLParam(r, "slug")
	paper, err := s.paperRepo.GetBySlug(ctx, slug)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, domainPaperToDetail(paper))
}

// fetchPaper handles POST /papers/{arxivID}. It returns the stored record or
// digests the paper on the fly, reporting which happened via the status code
// (200 existing, 201 created).
func (s *Server) fetchPaper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	arxivID := chi.URLParam(r, "arxivID")
	paper, created, err := s.generation.FetchPaper(ctx, arxivID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, fetchPaperResponse{
		Created:             created,
		paperDetailResponse: domainPaperToDetail(paper),
	})
}

// analyzePaperPDF handles POST /papers/{arxivID}/analysis. The operation is
// idempotent: a repeat request returns the stored analysis unchanged.
func (s *Server) analyzePaperPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	arxivID := chi.URLParam(r, "arxivID")
	analysis, err := s.generation.AnalyzePDF(ctx, arxivID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, domainAnalysisToResponse(analysis))
}

// parsePaperFilter builds a repository filter from listing query parameters,
// writing a 400 response for an unparseable date.
func parsePaperFilter(w http.ResponseWriter, r *http.Request) (repository.PaperFilter, bool) {
	limit, offset := parsePagination(r)
	filter := repository.PaperFilter{
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: strings.ToLower(r.URL.Query().Get("sort_order")),
		Limit:     limit,
		Offset:    offset,
	}

	if date := r.URL.Query().Get("date"); date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid date format: expected YYYY-MM-DD")
			return repository.PaperFilter{}, false
		}
		filter.ProcessedDate = date
	}

	return filter, true
}

func writePaperList(w http.ResponseWriter, papers []*domain.Paper, filter repository.PaperFilter, total int64) {
	responses := make([]paperResponse, len(papers))
	for i, p := range papers {
		responses[i] = domainPaperToResponse(p)
	}

	writeJSON(w, http.StatusOK, listPapersResponse{
		Papers:     responses,
		Page:       filter.Offset/filter.Limit + 1,
		PerPage:    filter.Limit,
		TotalCount: int(total),
	})
}
