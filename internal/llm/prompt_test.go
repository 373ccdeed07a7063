package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSummaryPrompt(t *testing.T) {
	t.Run("full text is embedded and truncated", func(t *testing.T) {
		req := SummaryRequest{
			Title:    "A Paper",
			Authors:  "A. Author",
			Abstract: "An abstract.",
			FullText: strings.Repeat("x", 500),
			Pages:    3,
		}

		system, user := BuildSummaryPrompt(req, 100)

		assert.NotContains(t, system, "Only the abstract is available")
		assert.Contains(t, user, "(3 pages)")
		assert.Contains(t, user, strings.Repeat("x", 100))
		assert.NotContains(t, user, strings.Repeat("x", 101))
	})

	t.Run("abstract-only when full text missing", func(t *testing.T) {
		req := SummaryRequest{Title: "A Paper", Authors: "A. Author", Abstract: "An abstract."}

		system, user := BuildSummaryPrompt(req, 100)

		assert.Contains(t, system, "Only the abstract is available")
		assert.NotContains(t, user, "Full text extracted")
		assert.Contains(t, user, "An abstract.")
	})

	t.Run("names every summary field", func(t *testing.T) {
		_, user := BuildSummaryPrompt(SummaryRequest{Title: "t"}, 100)

		for _, field := range []string{"overview", "methodology", "findings", "technical_details", "impact"} {
			assert.Contains(t, user, field)
		}
	})
}

func TestBuildFullTextPrompt(t *testing.T) {
	req := SummaryRequest{
		Title:    "A Paper",
		Authors:  "A. Author",
		FullText: "introduction and methods",
	}

	system, user := BuildFullTextPrompt(req, 8000)

	assert.Contains(t, system, "markdown")
	assert.Contains(t, user, "A Paper")
	assert.Contains(t, user, "introduction and methods")
	assert.Contains(t, user, "only available")
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxChars int
		want     string
	}{
		{"shorter than budget", "hello", 10, "hello"},
		{"exact budget", "hello", 5, "hello"},
		{"over budget", "hello world", 5, "hello"},
		{"zero budget means unlimited", "hello", 0, "hello"},
		{"multibyte rune not split", "héllo", 2, "h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateText(tt.input, tt.maxChars))
		})
	}
}
