// Package llm produces structured paper summaries for the Paper Digest Service.
//
// The package defines the Summarizer abstraction and the prompt engineering
// needed to turn a paper's metadata and extracted PDF text into the
// five-section digest stored alongside each paper. The only shipped
// implementation talks to the OpenAI Chat Completions API.
//
// Example usage:
//
//	summarizer := llm.NewOpenAISummarizer(cfg, 0.3, 60*time.Second, 2, 8000)
//	sections, err := summarizer.Summarize(ctx, llm.SummaryRequest{
//		Title:    paper.Title,
//		Authors:  domain.JoinAuthors(paper.Authors),
//		Abstract: paper.Abstract,
//		FullText: extraction.FullText,
//		Pages:    extraction.PageCount,
//	})
package llm

import (
	"context"

	"github.com/scholardigest/paper-digest-service/internal/domain"
)

// SummaryRequest contains everything the Summarizer needs about one paper.
type SummaryRequest struct {
	// Title is the paper title.
	Title string

	// Authors is the comma-joined author list.
	Authors string

	// Abstract is the catalog abstract.
	Abstract string

	// FullText is the extracted PDF text. Empty means the PDF could not be
	// obtained and the summary is produced from the abstract alone.
	FullText string

	// Pages is the number of pages text was extracted from (0 when unknown).
	Pages int
}

// HasFullText reports whether PDF text is available for the request.
func (r SummaryRequest) HasFullText() bool {
	return r.FullText != ""
}

// Summarizer turns paper content into structured summaries.
//
// Implementations should respect context cancellation, retry transient
// provider errors, and report unrecoverable failures by wrapping
// domain.ErrSummarizationFailed.
type Summarizer interface {
	// Summarize produces the five-section digest for a paper. All sections
	// of the returned value are non-empty.
	Summarize(ctx context.Context, req SummaryRequest) (*domain.SummarySections, error)

	// SummarizeFullText produces the single free-form analysis used for the
	// on-demand PDF analysis of an already digested paper.
	SummarizeFullText(ctx context.Context, req SummaryRequest) (string, error)

	// Model returns the model identifier being used (e.g., "gpt-4o-mini").
	Model() string
}

// summaryResponse is the JSON structure the model is instructed to return.
type summaryResponse struct {
	Overview         string `json:"overview"`
	Methodology      string `json:"methodology"`
	Findings         string `json:"findings"`
	TechnicalDetails string `json:"technical_details"`
	Impact           string `json:"impact"`
}
