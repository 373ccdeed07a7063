// Package generator coordinates digest generation runs for the Paper Digest
// Service.
//
// A run fans out over categories with bounded concurrency. Each category
// worker fetches fresh candidates from the catalog, drops papers that are
// already stored, selects the top candidates, and pushes each one through
// PDF extraction, summarization, and an atomic upsert. Progress is published
// through a StatusStore that clients can poll at any time.
//
// Failure isolation rules:
//
//   - catalog unavailable: the category completes degraded with zero papers
//   - download or parse failure: the paper degrades to an abstract-only summary
//   - summarization failure: the paper is skipped and counted as failed
//   - store failure: the paper is skipped and stays outside the dedup set,
//     so the next run retries it
//
// No failure in one paper or category ever aborts another.
package generator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/scholardigest/paper-digest-service/internal/domain"
	"github.com/scholardigest/paper-digest-service/internal/llm"
	"github.com/scholardigest/paper-digest-service/internal/observability"
	"github.com/scholardigest/paper-digest-service/internal/pdfextract"
	"github.com/scholardigest/paper-digest-service/internal/repository"
)

// Catalog is the paper source consumed by the generator.
type Catalog interface {
	// FetchCategory returns candidate papers for a category published since
	// the given time, newest first.
	FetchCategory(ctx context.Context, categoryCode string, since time.Time, maxResults int) ([]*domain.Paper, error)

	// GetByID returns a single paper's catalog metadata.
	GetByID(ctx context.Context, id string) (*domain.Paper, error)
}

// Selector picks the papers worth digesting from a candidate list.
type Selector interface {
	Select(candidates []*domain.Paper, max int) []*domain.Paper
}

// Extractor turns a paper's PDF into page-level text.
type Extractor interface {
	Extract(ctx context.Context, arxivID, pdfURL string) (*pdfextract.Extraction, error)
}

// Config holds the generation pipeline tuning knobs.
type Config struct {
	// PapersPerCategory is the default number of papers digested per
	// category per run.
	PapersPerCategory int

	// OverfetchFactor multiplies PapersPerCategory when querying the
	// catalog, giving the selection policy a candidate pool to rank.
	OverfetchFactor int

	// LookbackDays bounds how far back the catalog query reaches.
	LookbackDays int

	// CategoryConcurrency bounds simultaneous category workers.
	CategoryConcurrency int

	// PaperConcurrency bounds simultaneous papers within one category.
	PaperConcurrency int

	// Categories are the configured subject areas.
	Categories []domain.Category
}

func (c *Config) applyDefaults() {
	if c.PapersPerCategory <= 0 {
		c.PapersPerCategory = 5
	}
	if c.OverfetchFactor <= 0 {
		c.OverfetchFactor = 5
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = 7
	}
	if c.CategoryConcurrency <= 0 {
		c.CategoryConcurrency = 3
	}
	if c.PaperConcurrency <= 0 {
		c.PaperConcurrency = 2
	}
	if len(c.Categories) == 0 {
		c.Categories = domain.DefaultCategories()
	}
}

// Deps are the collaborators a Generator drives.
type Deps struct {
	Catalog    Catalog
	Selector   Selector
	Extractor  Extractor
	Summarizer llm.Summarizer
	Repo       repository.PaperRepository
	Status     *StatusStore
	Metrics    *observability.Metrics
	Logger     zerolog.Logger

	// FetchRetry overrides the catalog retry policy (optional).
	FetchRetry *RetryPolicy
}

// Generator is the generation orchestrator.
type Generator struct {
	cfg        Config
	catalog    Catalog
	selector   Selector
	extractor  Extractor
	summarizer llm.Summarizer
	repo       repository.PaperRepository
	status     *StatusStore
	metrics    *observability.Metrics
	logger     zerolog.Logger
	fetchRetry RetryPolicy

	byCode map[string]domain.Category
	catSem chan struct{}
	wg     sync.WaitGroup
}

// New creates a generator.
func New(cfg Config, deps Deps) *Generator {
	cfg.applyDefaults()

	fetchRetry := DefaultCatalogRetryPolicy()
	if deps.FetchRetry != nil {
		fetchRetry = *deps.FetchRetry
	}

	byCode := make(map[string]domain.Category, len(cfg.Categories))
	for _, cat := range cfg.Categories {
		byCode[cat.Code] = cat
	}

	return &Generator{
		cfg:        cfg,
		catalog:    deps.Catalog,
		selector:   deps.Selector,
		extractor:  deps.Extractor,
		summarizer: deps.Summarizer,
		repo:       deps.Repo,
		status:     deps.Status,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		fetchRetry: fetchRetry,
		byCode:     byCode,
		catSem:     make(chan struct{}, cfg.CategoryConcurrency),
	}
}

// Status exposes the generator's status store.
func (g *Generator) Status() *StatusStore {
	return g.status
}

// Wait blocks until all in-flight category workers have finished. Used for
// graceful shutdown.
func (g *Generator) Wait() {
	g.wg.Wait()
}

// RunRequest selects what a generation run covers.
type RunRequest struct {
	// Categories are category codes to process; empty means all configured.
	Categories []string

	// MaxPapers bounds papers per category; <= 0 uses the configured default.
	MaxPapers int
}

// CategoryRun is one category's entry in a run snapshot.
type CategoryRun struct {
	domain.GenerationStatus

	// Rejected is set when this run could not acquire the category because
	// another run was already in progress. The in-flight run's status is
	// still reported.
	Rejected bool `json:"rejected,omitempty"`
}

// RunSnapshot is the immediate response to a run trigger.
type RunSnapshot struct {
	RunToken   uuid.UUID     `json:"run_token"`
	StartedAt  time.Time     `json:"started_at"`
	Categories []CategoryRun `json:"categories"`
}

// Run triggers a generation run and returns immediately with a snapshot.
// Category workers keep running in the background after the caller's context
// is released; per-category mutual exclusion is enforced by the StatusStore,
// and rejected categories are reported in the snapshot rather than as errors.
func (g *Generator) Run(ctx context.Context, req RunRequest) *RunSnapshot {
	token := uuid.New()
	maxPapers := req.MaxPapers
	if maxPapers <= 0 {
		maxPapers = g.cfg.PapersPerCategory
	}

	snapshot := &RunSnapshot{
		RunToken:  token,
		StartedAt: time.Now().UTC(),
	}

	// The run outlives the triggering request.
	bg := context.WithoutCancel(ctx)

	for _, cat := range g.resolveCategories(req.Categories) {
		if err := g.status.Begin(cat.Code, cat.Name, token); err != nil {
			g.metrics.RecordRunRejected()
			st, _ := g.status.Get(cat.Code)
			snapshot.Categories = append(snapshot.Categories, CategoryRun{GenerationStatus: st, Rejected: true})
			continue
		}

		st, _ := g.status.Get(cat.Code)
		snapshot.Categories = append(snapshot.Categories, CategoryRun{GenerationStatus: st})

		g.wg.Add(1)
		go func(cat domain.Category) {
			defer g.wg.Done()
			g.catSem <- struct{}{}
			defer func() { <-g.catSem }()
			g.runCategory(bg, token, cat, maxPapers)
		}(cat)
	}

	return snapshot
}

// resolveCategories maps requested codes to configured categories; an empty
// request means all configured categories. Unknown codes are skipped.
func (g *Generator) resolveCategories(codes []string) []domain.Category {
	if len(codes) == 0 {
		return g.cfg.Categories
	}

	cats := make([]domain.Category, 0, len(codes))
	for _, code := range codes {
		cat, ok := g.byCode[code]
		if !ok {
			g.logger.Warn().Str("category", code).Msg("ignoring unconfigured category")
			continue
		}
		cats = append(cats, cat)
	}
	return cats
}

func (g *Generator) runCategory(ctx context.Context, token uuid.UUID, cat domain.Category, maxPapers int) {
	start := time.Now()
	logger := observability.WithRunContext(g.logger, token.String(), cat.Code)
	g.metrics.RecordRunStarted(cat.Code)
	logger.Info().Int("max_papers", maxPapers).Msg("category run started")

	complete := func(degraded bool) {
		g.refreshTotal(ctx, cat.Code)
		g.status.Complete(cat.Code)
		elapsed := time.Since(start).Seconds()
		if degraded {
			g.metrics.RecordRunDegraded(cat.Code, elapsed)
		} else {
			g.metrics.RecordRunCompleted(cat.Code, elapsed)
		}
	}

	since := time.Now().UTC().AddDate(0, 0, -g.cfg.LookbackDays)
	var candidates []*domain.Paper
	err := g.fetchRetry.Do(ctx, func(ctx context.Context) error {
		var ferr error
		candidates, ferr = g.catalog.FetchCategory(ctx, cat.Code, since, maxPapers*g.cfg.OverfetchFactor)
		return ferr
	})
	if err != nil {
		logger.Warn().Err(err).Msg("catalog fetch failed, completing run without papers")
		complete(true)
		return
	}

	seen, err := g.repo.ArxivIDsByCategory(ctx, cat.Code)
	if err != nil {
		logger.Error().Err(err).Msg("dedup set load failed, completing run without papers")
		complete(true)
		return
	}

	// The feed itself can list the same paper twice (revised versions
	// normalize to one ID), so every accepted candidate joins the seen set.
	fresh := make([]*domain.Paper, 0, len(candidates))
	for _, p := range candidates {
		if p.Title == "" {
			continue
		}
		if _, dup := seen[p.ArxivID]; dup {
			g.metrics.RecordPaperSkipped()
			continue
		}
		seen[p.ArxivID] = struct{}{}
		fresh = append(fresh, p)
	}

	selected := g.selector.Select(fresh, maxPapers)
	logger.Info().
		Int("candidates", len(candidates)).
		Int("fresh", len(fresh)).
		Int("selected", len(selected)).
		Msg("candidates selected")

	sem := make(chan struct{}, g.cfg.PaperConcurrency)
	var wg sync.WaitGroup
	for _, candidate := range selected {
		wg.Add(1)
		go func(candidate *domain.Paper) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			g.processPaper(ctx, logger, cat, candidate)
		}(candidate)
	}
	wg.Wait()

	complete(false)
	logger.Info().Msg("category run completed")
}

func (g *Generator) processPaper(ctx context.Context, logger zerolog.Logger, cat domain.Category, candidate *domain.Paper) {
	plog := observability.WithPaperContext(logger, candidate.ArxivID, candidate.Title)

	paper, err := g.buildPaper(ctx, plog, cat, candidate)
	if err != nil {
		plog.Warn().Err(err).Msg("summarization failed, skipping paper")
		g.status.MarkProgress(cat.Code, 0, 1)
		g.metrics.RecordPaperFailed(cat.Code, "summarize")
		return
	}

	if err := g.upsert(ctx, paper); err != nil {
		// Not counted as generated: the paper stays outside the dedup set
		// and the next run retries it.
		plog.Error().Err(err).Msg("persist failed, paper deferred to next run")
		g.status.MarkProgress(cat.Code, 0, 1)
		g.metrics.RecordPaperFailed(cat.Code, "store")
		return
	}

	g.status.MarkProgress(cat.Code, 1, 0)
	g.metrics.RecordPaperGenerated(cat.Code)
	plog.Info().Str("slug", paper.Slug).Msg("paper digested")
}

// buildPaper runs extraction (best effort) and summarization (required) for
// one candidate and returns the record ready to persist.
func (g *Generator) buildPaper(ctx context.Context, logger zerolog.Logger, cat domain.Category, candidate *domain.Paper) (*domain.Paper, error) {
	var extraction *pdfextract.Extraction
	if candidate.PDFURL != "" {
		ex, err := g.extractor.Extract(ctx, candidate.ArxivID, candidate.PDFURL)
		if err != nil {
			logger.Warn().Err(err).Msg("pdf extraction failed, summarizing from abstract")
		} else {
			extraction = ex
		}
	}

	summaryReq := llm.SummaryRequest{
		Title:    candidate.Title,
		Authors:  domain.JoinAuthors(candidate.Authors),
		Abstract: candidate.Abstract,
	}
	if extraction != nil {
		summaryReq.FullText = extraction.FullText
		summaryReq.Pages = extraction.PageCount
	}

	sections, err := g.summarizer.Summarize(ctx, summaryReq)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	paper := *candidate
	paper.Slug = makeSlug(candidate.Title, candidate.ArxivID)
	paper.CategoryCode = cat.Code
	paper.CategoryName = cat.Name
	paper.CategorySlug = cat.Slug
	paper.Summary = *sections
	paper.GeneratedAt = now
	paper.ProcessedDate = now.Format("2006-01-02")
	return &paper, nil
}

// upsert persists the paper, retrying once with an ID-suffixed slug when the
// slug collides with a different paper.
func (g *Generator) upsert(ctx context.Context, paper *domain.Paper) error {
	_, err := g.repo.Upsert(ctx, paper)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		paper.Slug = paper.Slug + "-" + slugSuffix(paper.ArxivID)
		_, err = g.repo.Upsert(ctx, paper)
	}
	return err
}

// AnalyzePDF produces the on-demand full-text analysis for a stored paper.
// The operation is idempotent: when an analysis already exists it is returned
// unchanged, with its original timestamp.
func (g *Generator) AnalyzePDF(ctx context.Context, arxivID string) (*domain.PDFAnalysis, error) {
	id := domain.NormalizeArxivID(arxivID)
	if id == "" {
		return nil, domain.NewValidationError("arxiv_id", "arXiv ID is required")
	}

	paper, err := g.repo.GetByArxivID(ctx, id)
	if err != nil {
		return nil, err
	}
	if paper.PDFAnalysis != nil {
		return paper.PDFAnalysis, nil
	}

	extraction, err := g.extractor.Extract(ctx, paper.ArxivID, paper.PDFURL)
	if err != nil {
		return nil, err
	}

	summary, err := g.summarizer.SummarizeFullText(ctx, llm.SummaryRequest{
		Title:    paper.Title,
		Authors:  domain.JoinAuthors(paper.Authors),
		Abstract: paper.Abstract,
		FullText: extraction.FullText,
		Pages:    extraction.PageCount,
	})
	if err != nil {
		return nil, err
	}

	analysis := &domain.PDFAnalysis{
		ArtifactPath:    extraction.ArtifactPath,
		PageCount:       extraction.PageCount,
		FullTextSummary: summary,
		AnalyzedAt:      time.Now().UTC(),
	}

	// A concurrent request may have stored its analysis first; the store
	// keeps the earlier one and both callers see the same record.
	stored, err := g.repo.SetPDFAnalysis(ctx, id, analysis)
	if err != nil {
		return nil, err
	}

	return stored, nil
}

// FetchPaper returns the stored record for an arXiv ID, digesting the paper
// on the fly when it has not been processed yet. Reports whether a new record
// was produced.
func (g *Generator) FetchPaper(ctx context.Context, arxivID string) (*domain.Paper, bool, error) {
	id := domain.NormalizeArxivID(arxivID)
	if id == "" {
		return nil, false, domain.NewValidationError("arxiv_id", "arXiv ID is required")
	}

	stored, err := g.repo.GetByArxivID(ctx, id)
	if err == nil {
		return stored, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	candidate, err := g.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	cat := g.categoryFor(candidate)
	logger := observability.WithPaperContext(g.logger, candidate.ArxivID, candidate.Title)
	paper, err := g.buildPaper(ctx, logger, cat, candidate)
	if err != nil {
		return nil, false, err
	}
	if err := g.upsert(ctx, paper); err != nil {
		return nil, false, err
	}

	return paper, true, nil
}

// categoryFor resolves a catalog candidate's primary category against the
// configured set, falling back to a synthetic category for cross-listed
// papers outside the configured areas.
func (g *Generator) categoryFor(candidate *domain.Paper) domain.Category {
	for _, code := range candidate.Categories {
		if cat, ok := g.byCode[code]; ok {
			return cat
		}
	}

	code := "unknown"
	if len(candidate.Categories) > 0 {
		code = candidate.Categories[0]
	}
	return domain.Category{Code: code, Name: code, Slug: domain.Slugify(code)}
}

func (g *Generator) refreshTotal(ctx context.Context, code string) {
	counts, err := g.repo.CountByCategory(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Str("category", code).Msg("failed to refresh stored paper count")
		return
	}
	g.status.SetTotal(code, int(counts[code]))
}

func makeSlug(title, arxivID string) string {
	slug := domain.Slugify(title)
	if slug == "" {
		slug = "paper-" + slugSuffix(arxivID)
	}
	return slug
}

func slugSuffix(arxivID string) string {
	return strings.ReplaceAll(strings.ReplaceAll(arxivID, "/", "-"), ".", "-")
}
