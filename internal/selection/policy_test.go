package selection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholardigest/paper-digest-service/internal/domain"
)

func paperAt(id string, published time.Time) *domain.Paper {
	return &domain.Paper{
		ArxivID:     id,
		Title:       "A Paper",
		Abstract:    "Plain abstract.",
		PublishedAt: &published,
	}
}

func TestSelect_TopNByScore(t *testing.T) {
	// Fixed scorer keyed off the arXiv ID so ranking is explicit.
	scores := map[string]float64{"a": 1, "b": 3, "c": 2}
	policy := NewPolicy(func(p *domain.Paper) float64 { return scores[p.ArxivID] })

	now := time.Now()
	candidates := []*domain.Paper{
		paperAt("a", now),
		paperAt("b", now),
		paperAt("c", now),
	}

	selected := policy.Select(candidates, 2)
	require.Len(t, selected, 2)
	assert.Equal(t, "b", selected[0].ArxivID)
	assert.Equal(t, "c", selected[1].ArxivID)
}

func TestSelect_TieBreaksDeterministic(t *testing.T) {
	policy := NewPolicy(func(p *domain.Paper) float64 { return 1 })

	early := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)

	candidates := []*domain.Paper{
		paperAt("2401.2", late),
		paperAt("2401.3", early),
		paperAt("2401.1", early),
	}

	selected := policy.Select(candidates, 3)
	require.Len(t, selected, 3)
	// Equal scores: earliest published first, then ascending ID.
	assert.Equal(t, "2401.1", selected[0].ArxivID)
	assert.Equal(t, "2401.3", selected[1].ArxivID)
	assert.Equal(t, "2401.2", selected[2].ArxivID)
}

func TestSelect_MaxLargerThanInput(t *testing.T) {
	policy := NewPolicy(nil)
	candidates := []*domain.Paper{paperAt("a", time.Now())}

	selected := policy.Select(candidates, 10)
	assert.Len(t, selected, 1)
}

func TestSelect_EmptyAndZero(t *testing.T) {
	policy := NewPolicy(nil)

	assert.Nil(t, policy.Select(nil, 5))
	assert.Nil(t, policy.Select([]*domain.Paper{paperAt("a", time.Now())}, 0))
}

func TestSelect_DoesNotModifyInput(t *testing.T) {
	policy := NewPolicy(func(p *domain.Paper) float64 {
		if p.ArxivID == "z" {
			return 10
		}
		return 0
	})

	now := time.Now()
	candidates := []*domain.Paper{paperAt("a", now), paperAt("z", now)}

	_ = policy.Select(candidates, 2)
	assert.Equal(t, "a", candidates[0].ArxivID)
	assert.Equal(t, "z", candidates[1].ArxivID)
}

func TestDefaultScorer_Signals(t *testing.T) {
	ref := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	scorer := DefaultScorer(ref)

	recent := ref.Add(-24 * time.Hour)
	stale := ref.Add(-30 * 24 * time.Hour)

	longAbstract := make([]byte, 600)
	for i := range longAbstract {
		longAbstract[i] = 'x'
	}

	strong := &domain.Paper{
		ArxivID:     "strong",
		Title:       "A Novel State-of-the-Art Method",
		Abstract:    "We present a scalable framework with proof of convergence on a large-scale benchmark. " + string(longAbstract),
		Categories:  []string{"cs.LG", "cs.AI", "stat.ML"},
		PublishedAt: &recent,
	}
	weak := &domain.Paper{
		ArxivID:     "weak",
		Title:       "Notes",
		Abstract:    "Short.",
		Categories:  []string{"cs.LG"},
		PublishedAt: &stale,
	}

	assert.Greater(t, scorer(strong), scorer(weak))
	assert.Equal(t, float64(0), scorer(nil))
}

func TestDefaultScorer_IsPure(t *testing.T) {
	scorer := DefaultScorer(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	p := paperAt("a", time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC))

	first := scorer(p)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, scorer(p))
	}
}
