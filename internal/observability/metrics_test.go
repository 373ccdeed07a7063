package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_paper_digest_new")

	assert.NotNil(t, m.RunsStarted)
	assert.NotNil(t, m.RunsCompleted)
	assert.NotNil(t, m.RunsDegraded)
	assert.NotNil(t, m.RunsRejected)
	assert.NotNil(t, m.RunDuration)
	assert.NotNil(t, m.PapersGenerated)
	assert.NotNil(t, m.PapersSkipped)
	assert.NotNil(t, m.PapersFailed)
	assert.NotNil(t, m.CatalogRequestsTotal)
	assert.NotNil(t, m.CatalogRequestsFailed)
	assert.NotNil(t, m.PDFDownloads)
	assert.NotNil(t, m.LLMRequestsTotal)
	assert.NotNil(t, m.LLMTokensUsed)
}

func TestRecordRunStarted(t *testing.T) {
	m := NewMetrics("test_run_started")

	m.RecordRunStarted("cs.LG")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RunsStarted.WithLabelValues("cs.LG")))
}

func TestRecordRunCompleted(t *testing.T) {
	m := NewMetrics("test_run_completed")

	m.RecordRunCompleted("cs.LG", 12.5)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RunsCompleted.WithLabelValues("cs.LG")))
}

func TestRecordRunDegraded(t *testing.T) {
	m := NewMetrics("test_run_degraded")

	m.RecordRunDegraded("cs.CR", 3.0)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RunsDegraded.WithLabelValues("cs.CR")))
}

func TestRecordRunRejected(t *testing.T) {
	m := NewMetrics("test_run_rejected")

	initial := testutil.ToFloat64(m.RunsRejected)
	m.RecordRunRejected()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.RunsRejected))
}

func TestRecordPaperGenerated(t *testing.T) {
	m := NewMetrics("test_paper_generated")

	m.RecordPaperGenerated("cs.AI")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PapersGenerated.WithLabelValues("cs.AI")))
}

func TestRecordPaperSkipped(t *testing.T) {
	m := NewMetrics("test_paper_skipped")

	initial := testutil.ToFloat64(m.PapersSkipped)
	m.RecordPaperSkipped()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.PapersSkipped))
}

func TestRecordPaperFailed(t *testing.T) {
	m := NewMetrics("test_paper_failed")

	m.RecordPaperFailed("cs.LG", "summarize")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PapersFailed.WithLabelValues("cs.LG", "summarize")))
}

func TestRecordCatalogRequest(t *testing.T) {
	m := NewMetrics("test_catalog_request")

	m.RecordCatalogRequest("query", 0.5)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CatalogRequestsTotal.WithLabelValues("query")))
}

func TestRecordCatalogRequestFailed(t *testing.T) {
	m := NewMetrics("test_catalog_request_failed")

	m.RecordCatalogRequestFailed("query", "timeout")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CatalogRequestsFailed.WithLabelValues("query", "timeout")))
}

func TestRecordCatalogRateLimited(t *testing.T) {
	m := NewMetrics("test_catalog_rate_limited")

	initial := testutil.ToFloat64(m.CatalogRateLimited)
	m.RecordCatalogRateLimited()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.CatalogRateLimited))
}

func TestRecordPDFDownload(t *testing.T) {
	m := NewMetrics("test_pdf_download")

	m.RecordPDFDownload(2048)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PDFDownloads))
	assert.Equal(t, float64(2048), testutil.ToFloat64(m.PDFBytesDownloaded))
}

func TestRecordPDFDownloadFailed(t *testing.T) {
	m := NewMetrics("test_pdf_download_failed")

	initial := testutil.ToFloat64(m.PDFDownloadsFailed)
	m.RecordPDFDownloadFailed()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.PDFDownloadsFailed))
}

func TestRecordPDFExtractionFailed(t *testing.T) {
	m := NewMetrics("test_pdf_extraction_failed")

	initial := testutil.ToFloat64(m.PDFExtractionsFailed)
	m.RecordPDFExtractionFailed()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.PDFExtractionsFailed))
}

func TestRecordPDFCacheHit(t *testing.T) {
	m := NewMetrics("test_pdf_cache_hit")

	initial := testutil.ToFloat64(m.PDFCacheHits)
	m.RecordPDFCacheHit()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.PDFCacheHits))
}

func TestRecordLLMRequest(t *testing.T) {
	m := NewMetrics("test_llm_request")

	m.RecordLLMRequest("summarize", "gpt-4o-mini", 2.5, 100, 50)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("summarize", "gpt-4o-mini")))
	assert.Equal(t, float64(100), testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("summarize", "gpt-4o-mini", "input")))
	assert.Equal(t, float64(50), testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("summarize", "gpt-4o-mini", "output")))
}

func TestRecordLLMRequestFailed(t *testing.T) {
	m := NewMetrics("test_llm_request_failed")

	m.RecordLLMRequestFailed("summarize", "gpt-4o-mini", "rate_limit")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsFailed.WithLabelValues("summarize", "gpt-4o-mini", "rate_limit")))
}
