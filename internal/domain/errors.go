package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions. The pipeline's propagation
// policy is keyed off these: per-paper failures (download, summarization) are
// isolated and counted; catalog and store failures end at the category
// boundary without aborting other categories.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCatalogUnavailable indicates the upstream catalog query failed after
	// bounded retries. The category's run completes degraded with zero papers.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrDownloadFailed indicates a PDF could not be fetched. Non-fatal; the
	// paper degrades to abstract-only summarization.
	ErrDownloadFailed = errors.New("download failed")

	// ErrUnreadablePDF indicates a fetched PDF could not be parsed. Non-fatal,
	// same degradation as ErrDownloadFailed.
	ErrUnreadablePDF = errors.New("unreadable pdf")

	// ErrSummarizationFailed indicates the LLM produced no valid summary after
	// retries. The paper is skipped for this run, never stored blank.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrStoreUnavailable indicates a persistence failure. Fatal to the current
	// paper only; it stays outside the dedup set and is retried next run.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConcurrentRun indicates a generation run was requested for a category
	// that already has one in progress. Reported to the caller, not an
	// internal failure.
	ErrConcurrentRun = errors.New("generation already in progress")

	// ErrRateLimited indicates the request was rate limited by an upstream API.
	ErrRateLimited = errors.New("rate limited")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Source: source, RetryAfter: retryAfter}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
