package httpserver

import (
	"time"

	"github.com/scholardigest/paper-digest-service/internal/domain"
)

// Response types for JSON serialization.

type summaryResponse struct {
	Overview         string `json:"overview"`
	Methodology      string `json:"methodology"`
	Findings         string `json:"findings"`
	TechnicalDetails string `json:"technical_details"`
	Impact           string `json:"impact"`
}

type authorResponse struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

type analysisResponse struct {
	PageCount       int       `json:"page_count"`
	FullTextSummary string    `json:"full_text_summary"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}

type paperResponse struct {
	ID            string           `json:"id"`
	ArxivID       string           `json:"arxiv_id"`
	Slug          string           `json:"slug"`
	Title         string           `json:"title"`
	Abstract      string           `json:"abstract,omitempty"`
	Authors       []authorResponse `json:"authors,omitempty"`
	CategoryCode  string           `json:"category_code"`
	CategoryName  string           `json:"category_name"`
	CategorySlug  string           `json:"category_slug"`
	PublishedAt   *time.Time       `json:"published_at,omitempty"`
	URL           string           `json:"url,omitempty"`
	PdfURL        string           `json:"pdf_url,omitempty"`
	Summary       summaryResponse  `json:"summary"`
	HasAnalysis   bool             `json:"has_pdf_analysis"`
	GeneratedAt   time.Time        `json:"generated_at"`
	ProcessedDate string           `json:"processed_date"`
}

type paperDetailResponse struct {
	paperResponse
	Analysis *analysisResponse `json:"pdf_analysis,omitempty"`
}

type listPapersResponse struct {
	Papers     []paperResponse `json:"papers"`
	Page       int             `json:"page"`
	PerPage    int             `json:"per_page"`
	TotalCount int             `json:"total_count"`
}

type categoryResponse struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	PaperCount int64  `json:"paper_count"`
}

type listCategoriesResponse struct {
	Categories []categoryResponse `json:"categories"`
}

type fetchPaperResponse struct {
	Created bool `json:"created"`
	paperDetailResponse
}

// Converter functions

func domainPaperToResponse(p *domain.Paper) paperResponse {
	authors := make([]authorResponse, len(p.Authors))
	for i, a := range p.Authors {
		authors[i] = authorResponse{
			Name:        a.Name,
			Affiliation: a.Affiliation,
		}
	}
	return paperResponse{
		ID:           p.ID.String(),
		ArxivID:      p.ArxivID,
		Slug:         p.Slug,
		Title:        p.Title,
		Abstract:     p.Abstract,
		Authors:      authors,
		CategoryCode: p.CategoryCode,
		CategoryName: p.CategoryName,
		CategorySlug: p.CategorySlug,
		PublishedAt:  p.PublishedAt,
		URL:          p.URL,
		PdfURL:       p.PDFURL,
		Summary: summaryResponse{
			Overview:         p.Summary.Overview,
			Methodology:      p.Summary.Methodology,
			Findings:         p.Summary.Findings,
			TechnicalDetails: p.Summary.TechnicalDetails,
			Impact:           p.Summary.Impact,
		},
		HasAnalysis:   p.PDFAnalysis != nil,
		GeneratedAt:   p.GeneratedAt,
		ProcessedDate: p.ProcessedDate,
	}
}

func domainPaperToDetail(p *domain.Paper) paperDetailResponse {
	resp := paperDetailResponse{paperResponse: domainPaperToResponse(p)}
	if p.PDFAnalysis != nil {
		resp.Analysis = domainAnalysisToResponse(p.PDFAnalysis)
	}
	return resp
}

func domainAnalysisToResponse(a *domain.PDFAnalysis) *analysisResponse {
	return &analysisResponse{
		PageCount:       a.PageCount,
		FullTextSummary: a.FullTextSummary,
		AnalyzedAt:      a.AnalyzedAt,
	}
}
