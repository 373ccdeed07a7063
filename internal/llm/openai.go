package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scholardigest/paper-digest-service/internal/domain"
	"github.com/scholardigest/paper-digest-service/internal/observability"
)

// Default values for the OpenAI summarizer.
const (
	defaultOpenAIBaseURL       = "https://api.openai.com/v1"
	defaultOpenAIModel         = "gpt-4o-mini"
	defaultSummaryMaxTokens    = 1024
	defaultFullTextMaxTokens   = 2048
	defaultOpenAIRetryDelay    = 2 * time.Second
	defaultOpenAIMaxInputChars = 8000
)

// Operation labels for request metrics.
const (
	opSummary  = "summary"
	opFullText = "full_text"
)

// chatRequest represents the OpenAI Chat Completions API request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// chatMessage represents a single message in the chat conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat specifies the output format for the API response.
type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse represents the OpenAI Chat Completions API response body.
type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// chatChoice represents a single completion choice.
type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// chatUsage contains token usage information.
type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// openAIErrorResponse represents an error response from the OpenAI API.
type openAIErrorResponse struct {
	Error openAIErrorDetail `json:"error"`
}

// openAIErrorDetail contains error details from the OpenAI API.
type openAIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// OpenAIConfig holds the parameters needed to create an OpenAI summarizer.
// This is defined in the llm package to avoid importing the config package.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the model identifier (e.g., "gpt-4o-mini").
	Model string
	// BaseURL is the API base URL (empty means default).
	BaseURL string
	// Metrics records request durations and token usage (optional).
	Metrics *observability.Metrics
}

// OpenAISummarizer implements Summarizer using the OpenAI Chat Completions API.
type OpenAISummarizer struct {
	httpClient    *http.Client
	apiKey        string
	model         string
	baseURL       string
	temperature   float64
	maxRetries    int
	retryDelay    time.Duration
	maxInputChars int
	metrics       *observability.Metrics
}

// NewOpenAISummarizer creates a new OpenAI-backed summarizer.
//
// The summarizer uses the Chat Completions API with JSON response format for
// the structured digest and plain text for the full-text analysis. Transient
// API errors are retried up to maxRetries times; everything else is reported
// as domain.ErrSummarizationFailed.
func NewOpenAISummarizer(cfg OpenAIConfig, temperature float64, timeout time.Duration, maxRetries, maxInputChars int) *OpenAISummarizer {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	if maxInputChars <= 0 {
		maxInputChars = defaultOpenAIMaxInputChars
	}

	return &OpenAISummarizer{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:        cfg.APIKey,
		model:         model,
		baseURL:       baseURL,
		temperature:   temperature,
		maxRetries:    maxRetries,
		retryDelay:    defaultOpenAIRetryDelay,
		maxInputChars: maxInputChars,
		metrics:       cfg.Metrics,
	}
}

// Summarize produces the five-section digest for a paper.
//
// The full text is truncated to the configured character budget before it is
// embedded in the prompt; when no full text is available the prompt degrades
// to an abstract-only analysis. Transient errors (5xx, 429, network) are
// retried with linear backoff. Exhausted retries, non-transient API errors,
// and malformed or incomplete model output all wrap ErrSummarizationFailed.
func (s *OpenAISummarizer) Summarize(ctx context.Context, req SummaryRequest) (*domain.SummarySections, error) {
	systemPrompt, userPrompt := BuildSummaryPrompt(req, s.maxInputChars)

	content, err := s.complete(ctx, opSummary, systemPrompt, userPrompt, defaultSummaryMaxTokens, true)
	if err != nil {
		return nil, err
	}

	var parsed summaryResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: openai: malformed summary JSON: %v", domain.ErrSummarizationFailed, err)
	}

	sections := &domain.SummarySections{
		Overview:         strings.TrimSpace(parsed.Overview),
		Methodology:      strings.TrimSpace(parsed.Methodology),
		Findings:         strings.TrimSpace(parsed.Findings),
		TechnicalDetails: strings.TrimSpace(parsed.TechnicalDetails),
		Impact:           strings.TrimSpace(parsed.Impact),
	}
	if !sections.IsComplete() {
		return nil, fmt.Errorf("%w: openai: summary has empty sections", domain.ErrSummarizationFailed)
	}

	return sections, nil
}

// SummarizeFullText produces the single free-form PDF analysis.
func (s *OpenAISummarizer) SummarizeFullText(ctx context.Context, req SummaryRequest) (string, error) {
	if !req.HasFullText() {
		return "", fmt.Errorf("%w: openai: no full text to analyze", domain.ErrSummarizationFailed)
	}

	systemPrompt, userPrompt := BuildFullTextPrompt(req, s.maxInputChars)

	content, err := s.complete(ctx, opFullText, systemPrompt, userPrompt, defaultFullTextMaxTokens, false)
	if err != nil {
		return "", err
	}

	analysis := strings.TrimSpace(content)
	if analysis == "" {
		return "", fmt.Errorf("%w: openai: empty analysis", domain.ErrSummarizationFailed)
	}

	return analysis, nil
}

// Model returns the model identifier being used.
func (s *OpenAISummarizer) Model() string {
	return s.model
}

// complete runs the retry loop around a single Chat Completions call and
// returns the assistant message content.
func (s *OpenAISummarizer) complete(ctx context.Context, op, systemPrompt, userPrompt string, maxTokens int, jsonMode bool) (string, error) {
	chatReq := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: s.temperature,
		MaxTokens:   maxTokens,
	}
	if jsonMode {
		chatReq.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("openai: context cancelled during retry wait: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		content, err := s.doRequest(ctx, op, chatReq)
		if err == nil {
			return content, nil
		}

		// Only retry on transient errors (5xx, 429, network).
		if !isTransientError(err) {
			return "", fmt.Errorf("%w: %v", domain.ErrSummarizationFailed, err)
		}
		lastErr = err
	}

	return "", fmt.Errorf("%w: openai: exhausted %d retries: %v", domain.ErrSummarizationFailed, s.maxRetries, lastErr)
}

// doRequest performs a single API request to the Chat Completions endpoint.
// Each attempt is recorded against the request metrics, including the token
// usage the API reports on success.
func (s *OpenAISummarizer) doRequest(ctx context.Context, op string, chatReq chatRequest) (string, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return "", fmt.Errorf("openai: failed to marshal request: %w", err)
	}

	endpoint := s.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	start := time.Now()
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		s.recordFailure(op, &APIError{StatusCode: 0})
		return "", &APIError{Provider: "openai", StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		s.recordFailure(op, nil)
		return "", fmt.Errorf("openai: failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := parseOpenAIAPIError(resp.StatusCode, respBody)
		s.recordFailure(op, apiErr)
		return "", apiErr
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		s.recordFailure(op, nil)
		return "", fmt.Errorf("openai: failed to unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		s.recordFailure(op, nil)
		return "", fmt.Errorf("openai: empty choices in response")
	}

	if s.metrics != nil {
		s.metrics.RecordLLMRequest(op, s.model, time.Since(start).Seconds(),
			chatResp.Usage.PromptTokens, chatResp.Usage.CompletionTokens)
	}
	return chatResp.Choices[0].Message.Content, nil
}

// recordFailure classifies a failed attempt for the request metrics. A nil
// apiErr means the HTTP exchange succeeded but the payload was unusable.
func (s *OpenAISummarizer) recordFailure(op string, apiErr *APIError) {
	if s.metrics == nil {
		return
	}

	errorType := "invalid_response"
	if apiErr != nil {
		switch {
		case apiErr.StatusCode == 0:
			errorType = "network"
		case apiErr.StatusCode == http.StatusTooManyRequests:
			errorType = "rate_limited"
		case apiErr.StatusCode >= 500:
			errorType = "server_error"
		default:
			errorType = "api_error"
		}
	}
	s.metrics.RecordLLMRequestFailed(op, s.model, errorType)
}

// parseOpenAIAPIError parses an OpenAI API error from the response status code and body.
func parseOpenAIAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   "openai",
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp openAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
		apiErr.Code = errResp.Error.Code
	}

	return apiErr
}
