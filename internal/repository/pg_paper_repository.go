package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/scholardigest/paper-digest-service/internal/database"
	"github.com/scholardigest/paper-digest-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

// paperColumns is the canonical SELECT column list, kept in sync with
// paperScanDest.destinations.
const paperColumns = `id, arxiv_id, slug, title, abstract, authors,
		category_code, category_name, category_slug,
		published_at, url, pdf_url, summary, pdf_analysis,
		generated_at, processed_date, created_at, updated_at`

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

// Upsert inserts a new paper or updates an existing one based on arxiv_id.
// The existing slug and stored PDF analysis win on conflict so that paper
// URLs stay stable and on-demand analyses survive re-runs.
func (r *PgPaperRepository) Upsert(ctx context.Context, paper *domain.Paper) (bool, error) {
	if paper == nil {
		return false, domain.NewValidationError("paper", "paper cannot be nil")
	}
	if paper.ArxivID == "" {
		return false, domain.NewValidationError("arxiv_id", "arXiv ID is required")
	}
	if paper.Slug == "" {
		return false, domain.NewValidationError("slug", "slug is required")
	}

	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return false, fmt.Errorf("failed to marshal authors: %w", err)
	}

	summaryJSON, err := json.Marshal(paper.Summary)
	if err != nil {
		return false, fmt.Errorf("failed to marshal summary: %w", err)
	}

	var analysisJSON []byte
	if paper.PDFAnalysis != nil {
		analysisJSON, err = json.Marshal(paper.PDFAnalysis)
		if err != nil {
			return false, fmt.Errorf("failed to marshal pdf analysis: %w", err)
		}
	}

	now := time.Now().UTC()
	if paper.ID == uuid.Nil {
		paper.ID = uuid.New()
	}
	if paper.GeneratedAt.IsZero() {
		paper.GeneratedAt = now
	}

	query := `
		INSERT INTO papers (
			id, arxiv_id, slug, title, abstract, authors,
			category_code, category_name, category_slug,
			published_at, url, pdf_url, summary, pdf_analysis,
			generated_at, processed_date, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
		ON CONFLICT (arxiv_id) DO UPDATE SET
			title = EXCLUDED.title,
			abstract = EXCLUDED.abstract,
			authors = EXCLUDED.authors,
			category_code = EXCLUDED.category_code,
			category_name = EXCLUDED.category_name,
			category_slug = EXCLUDED.category_slug,
			published_at = COALESCE(EXCLUDED.published_at, papers.published_at),
			url = EXCLUDED.url,
			pdf_url = EXCLUDED.pdf_url,
			summary = EXCLUDED.summary,
			pdf_analysis = COALESCE(papers.pdf_analysis, EXCLUDED.pdf_analysis),
			generated_at = EXCLUDED.generated_at,
			processed_date = EXCLUDED.processed_date,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS created`

	var created bool
	err = r.db.QueryRow(ctx, query,
		paper.ID,
		paper.ArxivID,
		paper.Slug,
		paper.Title,
		paper.Abstract,
		authorsJSON,
		paper.CategoryCode,
		paper.CategoryName,
		paper.CategorySlug,
		paper.PublishedAt,
		paper.URL,
		paper.PDFURL,
		summaryJSON,
		analysisJSON,
		paper.GeneratedAt,
		paper.ProcessedDate,
		now,
		now,
	).Scan(&paper.ID, &paper.CreatedAt, &paper.UpdatedAt, &created)

	if err != nil {
		return false, storeErr("failed to upsert paper", err)
	}

	return created, nil
}

// GetByArxivID retrieves a paper by its version-stripped arXiv identifier.
func (r *PgPaperRepository) GetByArxivID(ctx context.Context, arxivID string) (*domain.Paper, error) {
	if arxivID == "" {
		return nil, domain.NewValidationError("arxiv_id", "arXiv ID is required")
	}

	query := fmt.Sprintf(`SELECT %s FROM papers WHERE arxiv_id = $1`, paperColumns)

	row := r.db.QueryRow(ctx, query, arxivID)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", arxivID)
		}
		return nil, storeErr("failed to get paper by arXiv ID", err)
	}

	return paper, nil
}

// GetBySlug retrieves a paper by its URL slug.
func (r *PgPaperRepository) GetBySlug(ctx context.Context, slug string) (*domain.Paper, error) {
	if slug == "" {
		return nil, domain.NewValidationError("slug", "slug is required")
	}

	query := fmt.Sprintf(`SELECT %s FROM papers WHERE slug = $1`, paperColumns)

	row := r.db.QueryRow(ctx, query, slug)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", slug)
		}
		return nil, storeErr("failed to get paper by slug", err)
	}

	return paper, nil
}

// List retrieves papers matching the filter criteria across all categories.
func (r *PgPaperRepository) List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, int64, error) {
	return r.list(ctx, "", filter)
}

// ListByCategory retrieves papers for one category. The categoryRef matches
// either the category code or its slug.
func (r *PgPaperRepository) ListByCategory(ctx context.Context, categoryRef string, filter PaperFilter) ([]*domain.Paper, int64, error) {
	if categoryRef == "" {
		return nil, 0, domain.NewValidationError("category", "category reference is required")
	}
	return r.list(ctx, categoryRef, filter)
}

func (r *PgPaperRepository) list(ctx context.Context, categoryRef string, filter PaperFilter) ([]*domain.Paper, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	whereClause := ""
	var args []interface{}
	argIndex := 1

	appendCond := func(cond string, arg interface{}) {
		if whereClause == "" {
			whereClause = "WHERE " + cond
		} else {
			whereClause += " AND " + cond
		}
		args = append(args, arg)
		argIndex++
	}

	if categoryRef != "" {
		appendCond(fmt.Sprintf("(category_code = $%d OR category_slug = $%d)", argIndex, argIndex), categoryRef)
	}
	if filter.ProcessedDate != "" {
		appendCond(fmt.Sprintf("processed_date = $%d", argIndex), filter.ProcessedDate)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM papers %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, storeErr("failed to count papers", err)
	}

	selectQuery := fmt.Sprintf(`SELECT %s FROM papers %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		paperColumns, whereClause, sortClause(filter.SortBy, filter.SortOrder), argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, storeErr("failed to list papers", err)
	}
	defer rows.Close()

	papers := make([]*domain.Paper, 0, filter.Limit)
	for rows.Next() {
		paper, err := scanPaperFromRows(rows)
		if err != nil {
			return nil, 0, storeErr("failed to scan paper", err)
		}
		papers = append(papers, paper)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("error iterating papers", err)
	}

	return papers, totalCount, nil
}

// sortClause maps PaperFilter sort values to a whitelisted ORDER BY
// expression. Unrecognized fields fall back to published date; an
// unrecognized order falls back to the field's natural direction.
func sortClause(sortBy, sortOrder string) string {
	var column, direction string
	switch sortBy {
	case SortByTitle:
		column, direction = "title", "ASC"
	case SortByGenerationDate:
		column, direction = "generated_at", "DESC"
	default:
		column, direction = "published_at", "DESC"
	}

	switch sortOrder {
	case SortAsc:
		direction = "ASC"
	case SortDesc:
		direction = "DESC"
	}

	if column == "published_at" {
		return "published_at " + direction + " NULLS LAST"
	}
	return column + " " + direction
}

// ArxivIDsByCategory returns the set of stored arXiv IDs for a category.
func (r *PgPaperRepository) ArxivIDsByCategory(ctx context.Context, categoryCode string) (map[string]struct{}, error) {
	if categoryCode == "" {
		return nil, domain.NewValidationError("category_code", "category code is required")
	}

	rows, err := r.db.Query(ctx, `SELECT arxiv_id FROM papers WHERE category_code = $1`, categoryCode)
	if err != nil {
		return nil, storeErr("failed to query arXiv IDs", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("failed to scan arXiv ID", err)
		}
		ids[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("error iterating arXiv IDs", err)
	}

	return ids, nil
}

// CountByCategory returns the number of stored papers per category code.
func (r *PgPaperRepository) CountByCategory(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT category_code, COUNT(*) FROM papers GROUP BY category_code`)
	if err != nil {
		return nil, storeErr("failed to count papers by category", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var code string
		var count int64
		if err := rows.Scan(&code, &count); err != nil {
			return nil, storeErr("failed to scan category count", err)
		}
		counts[code] = count
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("error iterating category counts", err)
	}

	return counts, nil
}

// SetPDFAnalysis attaches a full-text analysis to an existing paper. The row
// is locked for the duration of the transaction, so when two callers race the
// first committed analysis wins and both observe the same stored record.
func (r *PgPaperRepository) SetPDFAnalysis(ctx context.Context, arxivID string, analysis *domain.PDFAnalysis) (*domain.PDFAnalysis, error) {
	if arxivID == "" {
		return nil, domain.NewValidationError("arxiv_id", "arXiv ID is required")
	}
	if analysis == nil {
		return nil, domain.NewValidationError("analysis", "analysis cannot be nil")
	}

	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pdf analysis: %w", err)
	}

	stored := analysis
	err = database.RunInTx(ctx, r.db, func(tx pgx.Tx) error {
		var existingJSON []byte
		err := tx.QueryRow(ctx,
			`SELECT pdf_analysis FROM papers WHERE arxiv_id = $1 FOR UPDATE`,
			arxivID,
		).Scan(&existingJSON)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("paper", arxivID)
		}
		if err != nil {
			return storeErr("failed to load pdf analysis", err)
		}

		if len(existingJSON) > 0 {
			existing := &domain.PDFAnalysis{}
			if err := json.Unmarshal(existingJSON, existing); err != nil {
				return fmt.Errorf("failed to unmarshal pdf analysis: %w", err)
			}
			stored = existing
			return nil
		}

		_, err = tx.Exec(ctx,
			`UPDATE papers SET pdf_analysis = $1, updated_at = $2 WHERE arxiv_id = $3`,
			analysisJSON, time.Now().UTC(), arxivID,
		)
		if err != nil {
			return storeErr("failed to set pdf analysis", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stored, nil
}

// paperScanDest holds the destination pointers for scanning a Paper row.
type paperScanDest struct {
	paper         domain.Paper
	authorsJSON   []byte
	summaryJSON   []byte
	analysisJSON  []byte
	processedDate time.Time
}

// destinations returns the slice of pointers for Scan operations.
func (d *paperScanDest) destinations() []interface{} {
	return []interface{}{
		&d.paper.ID, &d.paper.ArxivID, &d.paper.Slug, &d.paper.Title, &d.paper.Abstract, &d.authorsJSON,
		&d.paper.CategoryCode, &d.paper.CategoryName, &d.paper.CategorySlug,
		&d.paper.PublishedAt, &d.paper.URL, &d.paper.PDFURL, &d.summaryJSON, &d.analysisJSON,
		&d.paper.GeneratedAt, &d.processedDate, &d.paper.CreatedAt, &d.paper.UpdatedAt,
	}
}

// finalize performs post-scan processing: unmarshals JSON fields and formats
// the processed date.
func (d *paperScanDest) finalize() (*domain.Paper, error) {
	if len(d.authorsJSON) > 0 {
		if err := json.Unmarshal(d.authorsJSON, &d.paper.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}

	if len(d.summaryJSON) > 0 {
		if err := json.Unmarshal(d.summaryJSON, &d.paper.Summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
		}
	}

	if len(d.analysisJSON) > 0 {
		var analysis domain.PDFAnalysis
		if err := json.Unmarshal(d.analysisJSON, &analysis); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pdf analysis: %w", err)
		}
		d.paper.PDFAnalysis = &analysis
	}

	if !d.processedDate.IsZero() {
		d.paper.ProcessedDate = d.processedDate.Format("2006-01-02")
	}

	return &d.paper, nil
}

// scanPaper scans a single row into a Paper.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanPaperFromRows scans the current row from pgx.Rows into a Paper.
func scanPaperFromRows(rows pgx.Rows) (*domain.Paper, error) {
	var dest paperScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
