package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper digest service.
// Metrics are organized by subsystem: generation runs, catalog queries, paper
// processing, PDF handling, and LLM operations. All counters and histograms
// are registered via promauto for automatic registration with the default
// Prometheus registry.
type Metrics struct {
	// RunsStarted counts generation runs started, labeled by category.
	RunsStarted *prometheus.CounterVec

	// RunsCompleted counts generation runs that finished, labeled by category.
	RunsCompleted *prometheus.CounterVec

	// RunsDegraded counts runs that completed with a catalog failure, labeled by category.
	RunsDegraded *prometheus.CounterVec

	// RunsRejected counts run requests rejected because one was already in progress.
	RunsRejected prometheus.Counter

	// RunDuration observes end-to-end duration of category runs in seconds.
	RunDuration *prometheus.HistogramVec

	// PapersGenerated counts papers fully summarized and stored, labeled by category.
	PapersGenerated *prometheus.CounterVec

	// PapersSkipped counts papers skipped because their identifier was already stored.
	PapersSkipped prometheus.Counter

	// PapersFailed counts papers that failed processing, labeled by category and stage.
	PapersFailed *prometheus.CounterVec

	// CatalogRequestsTotal counts HTTP requests to the paper catalog, labeled by endpoint.
	CatalogRequestsTotal *prometheus.CounterVec

	// CatalogRequestsFailed counts failed catalog requests, labeled by endpoint and error type.
	CatalogRequestsFailed *prometheus.CounterVec

	// CatalogRequestDuration observes catalog request duration in seconds.
	CatalogRequestDuration *prometheus.HistogramVec

	// CatalogRateLimited counts rate-limited responses from the catalog.
	CatalogRateLimited prometheus.Counter

	// PDFDownloads counts PDF download attempts.
	PDFDownloads prometheus.Counter

	// PDFDownloadsFailed counts failed PDF downloads.
	PDFDownloadsFailed prometheus.Counter

	// PDFExtractionsFailed counts PDFs that downloaded but could not be parsed.
	PDFExtractionsFailed prometheus.Counter

	// PDFCacheHits counts extraction requests served from the on-disk cache.
	PDFCacheHits prometheus.Counter

	// PDFBytesDownloaded counts total bytes of PDF content downloaded.
	PDFBytesDownloaded prometheus.Counter

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed by LLM operations, labeled by operation, model, and token type.
	LLMTokensUsed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Generation runs
		RunsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of generation runs started by category",
		}, []string{"category"}),
		RunsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of generation runs completed by category",
		}, []string{"category"}),
		RunsDegraded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_degraded_total",
			Help:      "Total number of generation runs completed degraded by category",
		}, []string{"category"}),
		RunsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_rejected_total",
			Help:      "Total number of run requests rejected while a run was in progress",
		}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of category generation runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		}, []string{"category"}),

		// Papers
		PapersGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_generated_total",
			Help:      "Total number of papers summarized and stored by category",
		}, []string{"category"}),
		PapersSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_skipped_total",
			Help:      "Total number of papers skipped as already stored",
		}),
		PapersFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_failed_total",
			Help:      "Total number of papers that failed processing by category and stage",
		}, []string{"category", "stage"}),

		// Catalog
		CatalogRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "Total number of requests to the paper catalog",
		}, []string{"endpoint"}),
		CatalogRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_failed_total",
			Help:      "Total number of failed requests to the paper catalog",
		}, []string{"endpoint", "error_type"}),
		CatalogRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_request_duration_seconds",
			Help:      "Duration of catalog requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		CatalogRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_rate_limited_total",
			Help:      "Total number of rate limit responses from the catalog",
		}),

		// PDF
		PDFDownloads: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_downloads_total",
			Help:      "Total number of PDF download attempts",
		}),
		PDFDownloadsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_downloads_failed_total",
			Help:      "Total number of failed PDF downloads",
		}),
		PDFExtractionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_extractions_failed_total",
			Help:      "Total number of PDFs that could not be parsed",
		}),
		PDFCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_cache_hits_total",
			Help:      "Total number of extractions served from the disk cache",
		}),
		PDFBytesDownloaded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_bytes_downloaded_total",
			Help:      "Total bytes of PDF content downloaded",
		}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by operation",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by operation",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation", "model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used by LLM operations",
		}, []string{"operation", "model", "token_type"}),
	}
}

// RecordRunStarted records that a category generation run has started.
func (m *Metrics) RecordRunStarted(category string) {
	m.RunsStarted.WithLabelValues(category).Inc()
}

// RecordRunCompleted records that a category generation run has completed.
func (m *Metrics) RecordRunCompleted(category string, durationSeconds float64) {
	m.RunsCompleted.WithLabelValues(category).Inc()
	m.RunDuration.WithLabelValues(category).Observe(durationSeconds)
}

// RecordRunDegraded records a run that completed after a catalog failure.
func (m *Metrics) RecordRunDegraded(category string, durationSeconds float64) {
	m.RunsDegraded.WithLabelValues(category).Inc()
	m.RunDuration.WithLabelValues(category).Observe(durationSeconds)
}

// RecordRunRejected records a run request rejected as already in progress.
func (m *Metrics) RecordRunRejected() {
	m.RunsRejected.Inc()
}

// RecordPaperGenerated records a paper summarized and stored.
func (m *Metrics) RecordPaperGenerated(category string) {
	m.PapersGenerated.WithLabelValues(category).Inc()
}

// RecordPaperSkipped records a paper skipped as a duplicate.
func (m *Metrics) RecordPaperSkipped() {
	m.PapersSkipped.Inc()
}

// RecordPaperFailed records a paper that failed at a processing stage.
func (m *Metrics) RecordPaperFailed(category, stage string) {
	m.PapersFailed.WithLabelValues(category, stage).Inc()
}

// RecordCatalogRequest records a request to the paper catalog.
func (m *Metrics) RecordCatalogRequest(endpoint string, durationSeconds float64) {
	m.CatalogRequestsTotal.WithLabelValues(endpoint).Inc()
	m.CatalogRequestDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}

// RecordCatalogRequestFailed records a failed request to the paper catalog.
func (m *Metrics) RecordCatalogRequestFailed(endpoint, errorType string) {
	m.CatalogRequestsFailed.WithLabelValues(endpoint, errorType).Inc()
}

// RecordCatalogRateLimited records a rate limit response from the catalog.
func (m *Metrics) RecordCatalogRateLimited() {
	m.CatalogRateLimited.Inc()
}

// RecordPDFDownload records a PDF download attempt and its size.
func (m *Metrics) RecordPDFDownload(bytes int64) {
	m.PDFDownloads.Inc()
	m.PDFBytesDownloaded.Add(float64(bytes))
}

// RecordPDFDownloadFailed records a failed PDF download.
func (m *Metrics) RecordPDFDownloadFailed() {
	m.PDFDownloadsFailed.Inc()
}

// RecordPDFExtractionFailed records a PDF that could not be parsed.
func (m *Metrics) RecordPDFExtractionFailed() {
	m.PDFExtractionsFailed.Inc()
}

// RecordPDFCacheHit records an extraction served from the disk cache.
func (m *Metrics) RecordPDFCacheHit() {
	m.PDFCacheHits.Inc()
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64, inputTokens, outputTokens int) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
	m.LLMTokensUsed.WithLabelValues(operation, model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(operation, model, "output").Add(float64(outputTokens))
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}
