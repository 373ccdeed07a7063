package repository

import (
	"context"

	"github.com/scholardigest/paper-digest-service/internal/domain"
)

// Paper sort orders accepted by PaperFilter.SortBy. Anything else falls back
// to SortByPublishedDate.
const (
	SortByPublishedDate  = "published_date"
	SortByTitle          = "title"
	SortByGenerationDate = "generation_date"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// PaperRepository handles digested paper persistence and deduplication.
// Papers are keyed by their version-stripped arXiv identifier.
type PaperRepository interface {
	// Upsert inserts a new paper or updates the existing row with the same
	// arxiv_id in a single atomic statement. Database-generated fields (ID,
	// CreatedAt, UpdatedAt) are populated on the passed paper. The slug and
	// any stored PDF analysis of an existing row are preserved.
	// Reports whether a new row was created.
	// Returns domain.ErrInvalidInput if the paper has no arXiv ID.
	Upsert(ctx context.Context, paper *domain.Paper) (bool, error)

	// GetByArxivID retrieves a paper by its version-stripped arXiv identifier.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByArxivID(ctx context.Context, arxivID string) (*domain.Paper, error)

	// GetBySlug retrieves a paper by its URL slug.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetBySlug(ctx context.Context, slug string) (*domain.Paper, error)

	// List retrieves papers matching the filter criteria across all
	// categories. Returns the matching papers and the total count for
	// pagination; the total reflects all matching records regardless of
	// limit/offset.
	List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, int64, error)

	// ListByCategory retrieves papers for one category. The categoryRef
	// matches either the category code ("cs.LG") or its slug
	// ("machine-learning"). Returns the papers and the total count.
	ListByCategory(ctx context.Context, categoryRef string, filter PaperFilter) ([]*domain.Paper, int64, error)

	// ArxivIDsByCategory returns the set of stored arXiv IDs for a category.
	// The generation pipeline uses it to skip already digested papers.
	ArxivIDsByCategory(ctx context.Context, categoryCode string) (map[string]struct{}, error)

	// CountByCategory returns the number of stored papers per category code.
	// Categories with no papers are absent from the result.
	CountByCategory(ctx context.Context) (map[string]int64, error)

	// SetPDFAnalysis attaches a full-text analysis to an existing paper.
	// The first stored analysis wins: when the paper already carries one,
	// the incoming analysis is discarded and the stored one is returned, so
	// concurrent callers converge on a single record.
	// Returns domain.ErrNotFound if the paper does not exist.
	SetPDFAnalysis(ctx context.Context, arxivID string, analysis *domain.PDFAnalysis) (*domain.PDFAnalysis, error)
}

// PaperFilter specifies criteria for listing papers.
type PaperFilter struct {
	// ProcessedDate restricts results to one run date in YYYY-MM-DD form
	// (optional, empty means no date filtering).
	ProcessedDate string

	// SortBy selects the result ordering. One of SortByPublishedDate,
	// SortByTitle, or SortByGenerationDate; unrecognized values fall back
	// to SortByPublishedDate.
	SortBy string

	// SortOrder is SortAsc or SortDesc; unrecognized values fall back to
	// the field's natural direction (newest first for dates, A-Z for title).
	SortOrder string

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate normalizes pagination values.
func (f *PaperFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
