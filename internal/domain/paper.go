// Package domain provides domain models and business logic for the paper digest service.
package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// versionSuffixRegex matches a trailing arXiv version marker such as "v2".
var versionSuffixRegex = regexp.MustCompile(`v\d+$`)

// slugInvalidRegex matches characters that are not allowed in a slug.
var slugInvalidRegex = regexp.MustCompile(`[^a-z0-9\-]`)

// slugDashRegex collapses runs of dashes.
var slugDashRegex = regexp.MustCompile(`-+`)

// NormalizeArxivID converts any arXiv identifier form into the stable,
// versionless identifier used as the idempotency key for storage and caching.
// Accepts bare IDs ("2301.12345v2"), abs URLs ("http://arxiv.org/abs/2301.12345v1"),
// and old-style IDs ("hep-th/9901001v3").
func NormalizeArxivID(id string) string {
	id = strings.TrimSpace(id)
	if idx := strings.Index(id, "arxiv.org/abs/"); idx >= 0 {
		id = id[idx+len("arxiv.org/abs/"):]
	}
	id = strings.TrimSuffix(id, "/")
	return versionSuffixRegex.ReplaceAllString(id, "")
}

// Slugify converts text into a URL-friendly slug: lowercase, spaces to
// dashes, non-alphanumerics stripped, dash runs collapsed.
func Slugify(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.Join(strings.Fields(s), "-")
	s = slugInvalidRegex.ReplaceAllString(s, "")
	s = slugDashRegex.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Author represents a paper author.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// JoinAuthors returns the ordered author list joined for display.
func JoinAuthors(authors []Author) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

// SummarySections is the structured summary produced by the Summarizer.
// All fields must be non-empty for the summary to be considered valid.
type SummarySections struct {
	Overview         string `json:"overview"`
	Methodology      string `json:"methodology"`
	Findings         string `json:"findings"`
	TechnicalDetails string `json:"technical_details"`
	Impact           string `json:"impact"`
}

// IsComplete reports whether every summary section is non-empty.
func (s SummarySections) IsComplete() bool {
	return strings.TrimSpace(s.Overview) != "" &&
		strings.TrimSpace(s.Methodology) != "" &&
		strings.TrimSpace(s.Findings) != "" &&
		strings.TrimSpace(s.TechnicalDetails) != "" &&
		strings.TrimSpace(s.Impact) != ""
}

// PDFAnalysis is the lazily-produced full-text analysis attached to a paper.
// At most one analysis exists per paper; repeat requests return the cached
// record with the original AnalyzedAt timestamp.
type PDFAnalysis struct {
	ArtifactPath    string    `json:"artifact_path"`
	PageCount       int       `json:"page_count"`
	FullTextSummary string    `json:"full_text_summary"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}

// Paper represents one processed paper in the store.
type Paper struct {
	ID       uuid.UUID
	ArxivID  string // version-stripped catalog identifier, the idempotency key
	Slug     string
	Title    string
	Abstract string
	Authors  []Author

	// Categories lists every catalog category the paper is cross-listed in.
	// Transient catalog metadata; not persisted.
	Categories []string

	CategoryCode  string
	CategoryName  string
	CategorySlug  string
	PublishedAt   *time.Time
	URL           string
	PDFURL        string
	Summary       SummarySections
	PDFAnalysis   *PDFAnalysis
	GeneratedAt   time.Time
	ProcessedDate string // run date, YYYY-MM-DD
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Category is a configured subject area. Static configuration; the pipeline
// reads it and never writes it.
type Category struct {
	Code string `mapstructure:"code" json:"code"`
	Name string `mapstructure:"name" json:"name"`
	Slug string `mapstructure:"-" json:"slug"`
}

// DefaultCategories returns the built-in arXiv category table used when the
// configuration does not override it.
func DefaultCategories() []Category {
	cats := []Category{
		{Code: "cs.LG", Name: "Machine Learning"},
		{Code: "cs.CL", Name: "Natural Language Processing"},
		{Code: "cs.CV", Name: "Computer Vision"},
		{Code: "stat.ML", Name: "Statistical ML"},
		{Code: "quant-ph", Name: "Quantum Physics"},
		{Code: "nucl-th", Name: "Nuclear Theory"},
		{Code: "nucl-ex", Name: "Nuclear Experiment"},
		{Code: "cond-mat.mtrl-sci", Name: "Materials Science"},
		{Code: "astro-ph.GA", Name: "Galaxy Astrophysics"},
		{Code: "q-bio.NC", Name: "Neurons & Cognition"},
		{Code: "cs.CR", Name: "Crypto & Security"},
	}
	for i := range cats {
		cats[i].Slug = Slugify(cats[i].Name)
	}
	return cats
}
