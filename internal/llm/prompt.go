package llm

import (
	"fmt"
	"strings"
)

// BuildSummaryPrompt builds the system and user prompts for the five-section
// digest. When req.FullText is empty the prompt degrades to an abstract-only
// analysis; otherwise the full text is truncated to maxChars before it is
// embedded in the prompt.
func BuildSummaryPrompt(req SummaryRequest, maxChars int) (systemPrompt, userPrompt string) {
	return buildSummarySystemPrompt(req), buildSummaryUserPrompt(req, maxChars)
}

func buildSummarySystemPrompt(req SummaryRequest) string {
	var sb strings.Builder

	sb.WriteString("You are a research expert who provides detailed analysis of academic papers. ")
	sb.WriteString("You respond only with a JSON object containing exactly these string fields: ")
	sb.WriteString(`"overview", "methodology", "findings", "technical_details", "impact". `)
	sb.WriteString("Every field must be a non-empty, self-contained paragraph.")

	if !req.HasFullText() {
		sb.WriteString(" Only the abstract is available, so base the analysis on the abstract ")
		sb.WriteString("and clearly qualify statements about implementation details.")
	}

	return sb.String()
}

func buildSummaryUserPrompt(req SummaryRequest, maxChars int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Title: %s\n", req.Title)
	fmt.Fprintf(&sb, "Authors: %s\n", req.Authors)
	fmt.Fprintf(&sb, "Abstract: %s\n", req.Abstract)

	if req.HasFullText() {
		sb.WriteString("\nFull text extracted from the paper PDF")
		if req.Pages > 0 {
			fmt.Fprintf(&sb, " (%d pages)", req.Pages)
		}
		sb.WriteString(":\n")
		sb.WriteString(truncateText(req.FullText, maxChars))
		sb.WriteString("\n")
	}

	sb.WriteString("\nAnalyze this research paper and respond with a JSON object covering:\n")
	sb.WriteString("- overview: main objective, motivation, and research question\n")
	sb.WriteString("- methodology: key technical approach")
	if req.HasFullText() {
		sb.WriteString(" as described in the full text, not just the abstract")
	}
	sb.WriteString("\n")
	sb.WriteString("- findings: most significant results and contributions\n")
	sb.WriteString("- technical_details: algorithms, models, datasets, and implementation insights\n")
	sb.WriteString("- impact: potential applications and significance for the field\n")

	return sb.String()
}

// BuildFullTextPrompt builds the system and user prompts for the single-string
// PDF analysis. The full text is truncated to maxChars.
func BuildFullTextPrompt(req SummaryRequest, maxChars int) (systemPrompt, userPrompt string) {
	systemPrompt = "You are a research expert who analyzes academic papers in detail. " +
		"Respond as a well-structured essay with markdown section headings."

	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", req.Title)
	fmt.Fprintf(&sb, "Authors: %s\n", req.Authors)
	sb.WriteString("\nPDF content:\n")
	sb.WriteString(truncateText(req.FullText, maxChars))
	sb.WriteString("\n\nProvide a comprehensive analysis covering the research question, ")
	sb.WriteString("the methodology as described in the full text, the significant findings, ")
	sb.WriteString("technical details (algorithms, models, datasets), evaluation methods, ")
	sb.WriteString("and potential applications. Focus on details that are only available ")
	sb.WriteString("in the full paper text and not in the abstract.")

	return systemPrompt, sb.String()
}

// truncateText caps s at maxChars without splitting a UTF-8 sequence.
func truncateText(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	cut := maxChars
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
