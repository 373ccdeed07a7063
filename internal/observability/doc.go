// Package observability provides logging and metrics support for the paper
// digest service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for generation runs, catalog queries, PDF
//     processing, and LLM operations
//   - Context helpers for propagating request and run identifiers
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("category", code).Msg("generation started")
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("paper_digest")
//
// Record metrics:
//
//	metrics.RecordRunStarted("cs.LG")
//	metrics.RecordPaperGenerated("cs.LG")
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - run_id: Generation run identifier
//   - category: arXiv category code (cs.LG, cs.CR, ...)
//   - arxiv_id: Normalized paper identifier
//   - model: LLM model name
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
