// Package selection ranks catalog candidates and picks the papers worth
// summarizing. Scoring is a pure function of paper metadata; no network or
// storage access happens here.
package selection

import (
	"sort"
	"strings"
	"time"

	"github.com/scholardigest/paper-digest-service/internal/domain"
)

// Scorer assigns a relevance score to a candidate paper. Higher is better.
// Implementations must be pure: same paper, same score.
type Scorer func(p *domain.Paper) float64

// Keyword groups feeding the default composite score.
var (
	noveltyKeywords = []string{
		"novel", "new", "first", "breakthrough", "state-of-the-art",
		"sota", "outperform", "surpass", "unprecedented",
	}
	impactKeywords = []string{
		"benchmark", "large-scale", "real-world", "open-source",
		"efficient", "scalable", "practical", "deployment",
	}
	technicalKeywords = []string{
		"theorem", "proof", "convergence", "complexity", "optimal",
		"algorithm", "framework", "architecture",
	}
)

// Abstract length band considered a clarity signal. Very short abstracts
// carry too little information; very long ones tend to be unfocused.
const (
	clarityMinChars = 400
	clarityMaxChars = 2000
)

// DefaultScorer returns the built-in metadata heuristic. The reference time
// anchors the recency signal so a run scores all candidates against the same
// clock.
func DefaultScorer(reference time.Time) Scorer {
	return func(p *domain.Paper) float64 {
		if p == nil {
			return 0
		}

		title := strings.ToLower(p.Title)
		abstract := strings.ToLower(p.Abstract)
		var score float64

		score += 2.0 * countMatches(title, noveltyKeywords)
		score += 1.0 * countMatches(abstract, noveltyKeywords)
		score += 1.5 * countMatches(abstract, impactKeywords)
		score += 1.0 * countMatches(abstract, technicalKeywords)

		if n := len(p.Abstract); n >= clarityMinChars && n <= clarityMaxChars {
			score += 2.0
		}

		// Cross-listing suggests interest beyond a single community.
		if extra := len(p.Categories) - 1; extra > 0 {
			score += 0.5 * float64(min(extra, 4))
		}

		// Recency decays linearly over the lookback horizon.
		if p.PublishedAt != nil {
			ageDays := reference.Sub(*p.PublishedAt).Hours() / 24
			if ageDays < 0 {
				ageDays = 0
			}
			if ageDays < 7 {
				score += 3.0 * (7 - ageDays) / 7
			}
		}

		return score
	}
}

// countMatches counts how many keywords from the group appear in the text.
func countMatches(text string, keywords []string) float64 {
	var n float64
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

// Policy selects the top candidates under an injected scoring function.
type Policy struct {
	scorer Scorer
}

// NewPolicy creates a selection policy. A nil scorer falls back to
// DefaultScorer anchored at construction time.
func NewPolicy(scorer Scorer) *Policy {
	if scorer == nil {
		scorer = DefaultScorer(time.Now())
	}
	return &Policy{scorer: scorer}
}

// Select returns up to max papers ranked by descending score. The input
// slice is not modified. Ordering is fully deterministic: ties break on
// earliest published date, then ascending arXiv ID.
func (p *Policy) Select(candidates []*domain.Paper, max int) []*domain.Paper {
	if max <= 0 || len(candidates) == 0 {
		return nil
	}

	type scored struct {
		paper *domain.Paper
		score float64
	}

	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if c == nil {
			continue
		}
		ranked = append(ranked, scored{paper: c, score: p.scorer(c)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		ti, tj := ranked[i].paper.PublishedAt, ranked[j].paper.PublishedAt
		switch {
		case ti != nil && tj != nil && !ti.Equal(*tj):
			return ti.Before(*tj)
		case ti == nil && tj != nil:
			return false
		case ti != nil && tj == nil:
			return true
		}
		return ranked[i].paper.ArxivID < ranked[j].paper.ArxivID
	})

	if max > len(ranked) {
		max = len(ranked)
	}
	out := make([]*domain.Paper, 0, max)
	for _, r := range ranked[:max] {
		out = append(out, r.paper)
	}
	return out
}
