package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholardigest/paper-digest-service/internal/domain"
	"github.com/scholardigest/paper-digest-service/internal/observability"
)

// Compile-time check that OpenAISummarizer implements Summarizer.
var _ Summarizer = (*OpenAISummarizer)(nil)

// newOpenAITestServer creates an httptest server that responds with the given handler.
func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// newOpenAITestSummarizer creates an OpenAISummarizer pointed at the test server.
func newOpenAITestSummarizer(t *testing.T, serverURL string, maxRetries int) *OpenAISummarizer {
	t.Helper()
	cfg := OpenAIConfig{
		APIKey:  "test-api-key",
		Model:   "gpt-4o-mini",
		BaseURL: serverURL,
	}
	s := NewOpenAISummarizer(cfg, 0.3, 10*time.Second, maxRetries, 8000)
	s.retryDelay = time.Millisecond
	return s
}

// writeChatResponse writes a one-choice chat completion with the given content.
func writeChatResponse(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := chatResponse{
		ID: "chatcmpl-test",
		Choices: []chatChoice{
			{Message: chatMessage{Role: "assistant", Content: content}, FinishReason: "stop"},
		},
		Usage: chatUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

const validSummaryJSON = `{
	"overview": "Studies transformer scaling behavior.",
	"methodology": "Trains a family of models across compute budgets.",
	"findings": "Loss follows a power law in model size.",
	"technical_details": "Uses 12 to 96 layer decoder-only models on C4.",
	"impact": "Informs compute-optimal training strategies."
}`

func TestOpenAISummarizer_Summarize(t *testing.T) {
	testReq := SummaryRequest{
		Title:    "Scaling Laws for Neural Language Models",
		Authors:  "Jane Doe, John Smith",
		Abstract: "We study empirical scaling laws for language model performance.",
		FullText: "1 Introduction\nLanguage models have been shown to scale...",
		Pages:    12,
	}

	t.Run("successful summary returns all sections", func(t *testing.T) {
		var receivedReq chatRequest
		var receivedAuthHeader string

		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			receivedAuthHeader = r.Header.Get("Authorization")

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &receivedReq))

			writeChatResponse(t, w, validSummaryJSON)
		})

		s := newOpenAITestSummarizer(t, server.URL, 0)
		sections, err := s.Summarize(context.Background(), testReq)

		require.NoError(t, err)
		require.NotNil(t, sections)
		assert.Equal(t, "Studies transformer scaling behavior.", sections.Overview)
		assert.Equal(t, "Informs compute-optimal training strategies.", sections.Impact)
		assert.True(t, sections.IsComplete())

		assert.Equal(t, "Bearer test-api-key", receivedAuthHeader)
		assert.Equal(t, "gpt-4o-mini", receivedReq.Model)
		assert.Equal(t, 0.3, receivedReq.Temperature)
		require.NotNil(t, receivedReq.ResponseFormat)
		assert.Equal(t, "json_object", receivedReq.ResponseFormat.Type)

		require.Len(t, receivedReq.Messages, 2)
		assert.Equal(t, "system", receivedReq.Messages[0].Role)
		assert.Contains(t, receivedReq.Messages[0].Content, "research expert")
		assert.Equal(t, "user", receivedReq.Messages[1].Role)
		assert.Contains(t, receivedReq.Messages[1].Content, testReq.Title)
		assert.Contains(t, receivedReq.Messages[1].Content, "Full text extracted")
		assert.Contains(t, receivedReq.Messages[1].Content, "(12 pages)")
	})

	t.Run("abstract-only request produces degraded prompt", func(t *testing.T) {
		var receivedReq chatRequest

		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &receivedReq))
			writeChatResponse(t, w, validSummaryJSON)
		})

		s := newOpenAITestSummarizer(t, server.URL, 0)
		degraded := testReq
		degraded.FullText = ""
		degraded.Pages = 0

		_, err := s.Summarize(context.Background(), degraded)

		require.NoError(t, err)
		assert.Contains(t, receivedReq.Messages[0].Content, "Only the abstract is available")
		assert.NotContains(t, receivedReq.Messages[1].Content, "Full text extracted")
	})

	t.Run("transient server error is retried until success", func(t *testing.T) {
		var calls atomic.Int32

		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= 2 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			writeChatResponse(t, w, validSummaryJSON)
		})

		s := newOpenAITestSummarizer(t, server.URL, 3)
		sections, err := s.Summarize(context.Background(), testReq)

		require.NoError(t, err)
		assert.True(t, sections.IsComplete())
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("exhausted retries wrap ErrSummarizationFailed", func(t *testing.T) {
		var calls atomic.Int32

		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		})

		s := newOpenAITestSummarizer(t, server.URL, 2)
		_, err := s.Summarize(context.Background(), testReq)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSummarizationFailed)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("non-transient API error fails without retry", func(t *testing.T) {
		var calls atomic.Int32

		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`)
		})

		s := newOpenAITestSummarizer(t, server.URL, 3)
		_, err := s.Summarize(context.Background(), testReq)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSummarizationFailed)
		assert.Contains(t, err.Error(), "invalid api key")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("malformed JSON content wraps ErrSummarizationFailed", func(t *testing.T) {
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeChatResponse(t, w, "this is not JSON")
		})

		s := newOpenAITestSummarizer(t, server.URL, 0)
		_, err := s.Summarize(context.Background(), testReq)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSummarizationFailed)
	})

	t.Run("empty section wraps ErrSummarizationFailed", func(t *testing.T) {
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeChatResponse(t, w, `{"overview": "x", "methodology": "", "findings": "y", "technical_details": "z", "impact": "w"}`)
		})

		s := newOpenAITestSummarizer(t, server.URL, 0)
		_, err := s.Summarize(context.Background(), testReq)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSummarizationFailed)
		assert.Contains(t, err.Error(), "empty sections")
	})

	t.Run("context cancellation stops retry wait", func(t *testing.T) {
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		s := newOpenAITestSummarizer(t, server.URL, 5)
		s.retryDelay = time.Minute

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := s.Summarize(ctx, testReq)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestOpenAISummarizer_SummarizeFullText(t *testing.T) {
	testReq := SummaryRequest{
		Title:    "Scaling Laws for Neural Language Models",
		Authors:  "Jane Doe",
		FullText: "1 Introduction\nLanguage models...",
		Pages:    12,
	}

	t.Run("returns trimmed analysis text", func(t *testing.T) {
		var receivedReq chatRequest

		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &receivedReq))
			writeChatResponse(t, w, "\n## Research Question\nThe paper asks...\n")
		})

		s := newOpenAITestSummarizer(t, server.URL, 0)
		analysis, err := s.SummarizeFullText(context.Background(), testReq)

		require.NoError(t, err)
		assert.Equal(t, "## Research Question\nThe paper asks...", analysis)

		// Full-text analysis is free-form markdown, not JSON mode.
		assert.Nil(t, receivedReq.ResponseFormat)
		assert.Contains(t, receivedReq.Messages[1].Content, "PDF content:")
	})

	t.Run("missing full text fails immediately", func(t *testing.T) {
		s := newOpenAITestSummarizer(t, "http://unused.invalid", 0)

		_, err := s.SummarizeFullText(context.Background(), SummaryRequest{Title: "t", Abstract: "a"})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSummarizationFailed)
	})

	t.Run("empty model output wraps ErrSummarizationFailed", func(t *testing.T) {
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeChatResponse(t, w, "   ")
		})

		s := newOpenAITestSummarizer(t, server.URL, 0)
		_, err := s.SummarizeFullText(context.Background(), testReq)

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSummarizationFailed)
	})
}

var metricsSeq atomic.Int64

func newTestMetrics() *observability.Metrics {
	// promauto registers globally; each test set needs its own namespace.
	return observability.NewMetrics(fmt.Sprintf("llmtest%d", metricsSeq.Add(1)))
}

func TestOpenAISummarizer_RecordsMetrics(t *testing.T) {
	req := SummaryRequest{
		Title:    "Scaling Laws for Neural Language Models",
		Authors:  "Jane Doe",
		Abstract: "We study scaling laws.",
		FullText: "1 Introduction\nLanguage models...",
		Pages:    12,
	}

	t.Run("successful summary records duration and token usage", func(t *testing.T) {
		m := newTestMetrics()
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeChatResponse(t, w, validSummaryJSON)
		})

		s := NewOpenAISummarizer(OpenAIConfig{APIKey: "k", Model: "gpt-4o-mini", BaseURL: server.URL, Metrics: m}, 0.3, 10*time.Second, 0, 8000)
		_, err := s.Summarize(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("summary", "gpt-4o-mini")))
		assert.Equal(t, float64(100), testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("summary", "gpt-4o-mini", "input")))
		assert.Equal(t, float64(50), testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("summary", "gpt-4o-mini", "output")))
	})

	t.Run("full-text analysis uses its own operation label", func(t *testing.T) {
		m := newTestMetrics()
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeChatResponse(t, w, "analysis text")
		})

		s := NewOpenAISummarizer(OpenAIConfig{APIKey: "k", Model: "gpt-4o-mini", BaseURL: server.URL, Metrics: m}, 0.3, 10*time.Second, 0, 8000)
		_, err := s.SummarizeFullText(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("full_text", "gpt-4o-mini")))
	})

	t.Run("failed attempts are classified", func(t *testing.T) {
		m := newTestMetrics()
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`)
		})

		s := NewOpenAISummarizer(OpenAIConfig{APIKey: "bad", Model: "gpt-4o-mini", BaseURL: server.URL, Metrics: m}, 0.3, 10*time.Second, 3, 8000)
		_, err := s.Summarize(context.Background(), req)
		require.Error(t, err)

		assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsFailed.WithLabelValues("summary", "gpt-4o-mini", "api_error")))
	})

	t.Run("each retried rate limit is counted per attempt", func(t *testing.T) {
		m := newTestMetrics()
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		s := NewOpenAISummarizer(OpenAIConfig{APIKey: "k", Model: "gpt-4o-mini", BaseURL: server.URL, Metrics: m}, 0.3, 10*time.Second, 2, 8000)
		s.retryDelay = time.Millisecond
		_, err := s.Summarize(context.Background(), req)
		require.Error(t, err)

		assert.Equal(t, float64(3), testutil.ToFloat64(m.LLMRequestsFailed.WithLabelValues("summary", "gpt-4o-mini", "rate_limited")))
	})
}

func TestNewOpenAISummarizer_Defaults(t *testing.T) {
	s := NewOpenAISummarizer(OpenAIConfig{APIKey: "k"}, 0.3, 0, -1, 0)

	assert.Equal(t, defaultOpenAIBaseURL, s.baseURL)
	assert.Equal(t, defaultOpenAIModel, s.model)
	assert.Equal(t, defaultOpenAIModel, s.Model())
	assert.Equal(t, 0, s.maxRetries)
	assert.Equal(t, defaultOpenAIMaxInputChars, s.maxInputChars)
	assert.Equal(t, 60*time.Second, s.httpClient.Timeout)
}

func TestAPIError(t *testing.T) {
	t.Run("transient classification", func(t *testing.T) {
		tests := []struct {
			name       string
			statusCode int
			transient  bool
		}{
			{"network error", 0, true},
			{"rate limited", http.StatusTooManyRequests, true},
			{"server error", http.StatusInternalServerError, true},
			{"bad gateway", http.StatusBadGateway, true},
			{"bad request", http.StatusBadRequest, false},
			{"unauthorized", http.StatusUnauthorized, false},
			{"not found", http.StatusNotFound, false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := &APIError{Provider: "openai", StatusCode: tt.statusCode, Message: "m"}
				assert.Equal(t, tt.transient, err.IsTransient())
			})
		}
	})

	t.Run("isTransientError unwraps", func(t *testing.T) {
		wrapped := errors.Join(errors.New("outer"), &APIError{StatusCode: 503})
		assert.True(t, isTransientError(wrapped))
		assert.False(t, isTransientError(errors.New("plain")))
	})

	t.Run("error string includes type when present", func(t *testing.T) {
		err := &APIError{Provider: "openai", StatusCode: 429, Message: "slow down", Type: "rate_limit_error"}
		assert.True(t, strings.Contains(err.Error(), "rate_limit_error"))
		assert.True(t, strings.Contains(err.Error(), "slow down"))
	})
}
