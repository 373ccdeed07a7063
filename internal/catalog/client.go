package catalog

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/scholardigest/paper-digest-service/internal/domain"
	"github.com/scholardigest/paper-digest-service/internal/observability"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit is the default rate limit (3 requests per second).
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 100

	// sourceName is the human-readable name for this catalog.
	sourceName = "arXiv"

	// queryEndpoint labels catalog metrics; every call goes through /query.
	queryEndpoint = "query"
)

// Config holds configuration for the catalog client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the maximum results to return per request.
	MaxResults int

	// MaxRetries is the maximum number of retry attempts per request.
	MaxRetries int

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// Metrics records request outcomes (optional).
	Metrics *observability.Metrics
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client queries the arXiv Atom API for recently submitted papers.
type Client struct {
	config     Config
	httpClient *HTTPClient
	metrics    *observability.Metrics
}

// New creates a new catalog client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := NewHTTPClient(HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Metrics:    cfg.Metrics,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
	}
}

// NewWithHTTPClient creates a new catalog client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
	}
}

// FetchCategory queries the catalog for papers submitted to the given
// category since the given time, newest first. maxResults of 0 uses the
// configured default. Failures after the client's bounded retries are
// reported as domain.ErrCatalogUnavailable.
func (c *Client) FetchCategory(ctx context.Context, categoryCode string, since time.Time, maxResults int) ([]*domain.Paper, error) {
	searchURL, err := c.buildCategoryURL(categoryCode, since, maxResults)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	feed, err := c.fetchFeed(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("fetching category %s: %w", categoryCode, err)
	}

	papers := make([]*domain.Paper, 0, len(feed.Entries))
	for i := range feed.Entries {
		paper := entryToPaper(&feed.Entries[i])
		if paper != nil {
			papers = append(papers, paper)
		}
	}

	return papers, nil
}

// GetByID retrieves a specific paper by its arXiv ID. The ID may carry a
// version suffix; the returned paper's identifier is normalized.
// Returns domain.ErrNotFound if the catalog has no entry for the ID.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"
	query := url.Values{}
	query.Set("id_list", id)
	baseURL.RawQuery = query.Encode()

	feed, err := c.fetchFeed(ctx, baseURL.String())
	if err != nil {
		return nil, fmt.Errorf("fetching paper %s: %w", id, err)
	}

	if len(feed.Entries) == 0 {
		return nil, domain.NewNotFoundError("paper", id)
	}

	paper := entryToPaper(&feed.Entries[0])
	if paper == nil {
		return nil, domain.NewNotFoundError("paper", id)
	}

	return paper, nil
}

// Name returns the human-readable name for this catalog.
func (c *Client) Name() string {
	return sourceName
}

// fetchFeed executes a GET request and decodes the Atom feed response.
func (c *Client) fetchFeed(ctx context.Context, requestURL string) (*Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure("unreachable")
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.recordFailure("status_" + strconv.Itoa(resp.StatusCode))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(
			sourceName,
			resp.StatusCode,
			string(body),
			domain.ErrCatalogUnavailable,
		)
	}

	// Parse the Atom XML response (limit body to 10MB).
	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&feed); err != nil {
		c.recordFailure("malformed_feed")
		return nil, fmt.Errorf("%w: decoding response: %v", domain.ErrCatalogUnavailable, err)
	}

	if c.metrics != nil {
		c.metrics.RecordCatalogRequest(queryEndpoint, time.Since(start).Seconds())
	}
	return &feed, nil
}

func (c *Client) recordFailure(errorType string) {
	if c.metrics != nil {
		c.metrics.RecordCatalogRequestFailed(queryEndpoint, errorType)
	}
}

// buildCategoryURL constructs the arXiv search API URL for a category query.
func (c *Client) buildCategoryURL(categoryCode string, since time.Time, maxResults int) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	searchQuery := "cat:" + categoryCode
	if !since.IsZero() {
		searchQuery = searchQuery + " AND " + buildDateFilter(since)
	}

	query := url.Values{}
	query.Set("search_query", searchQuery)

	if maxResults == 0 {
		maxResults = c.config.MaxResults
	}
	query.Set("max_results", strconv.Itoa(maxResults))

	// Sort by submission date (newest first)
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// buildDateFilter constructs the arXiv submittedDate filter string, open
// ended on the upper bound.
func buildDateFilter(from time.Time) string {
	return fmt.Sprintf("submittedDate:[%s0000 TO *]", from.Format("20060102"))
}

// entryToPaper converts an arXiv Atom entry to a domain Paper. Returns nil
// for entries without a recognizable identifier.
func entryToPaper(entry *Entry) *domain.Paper {
	if entry == nil {
		return nil
	}

	arxivID := domain.NormalizeArxivID(entry.ID)
	if arxivID == "" || !strings.Contains(entry.ID, "arxiv.org/abs/") {
		return nil
	}

	// Parse publication date
	var pubDate *time.Time
	if entry.Published != "" {
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			pubDate = &t
		}
	}

	// Extract authors
	authors := make([]domain.Author, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		authors = append(authors, domain.Author{
			Name:        name,
			Affiliation: strings.TrimSpace(a.Affiliation),
		})
	}

	// Normalize title and abstract (arXiv includes leading/trailing whitespace and newlines)
	title := normalizeWhitespace(entry.Title)
	abstract := normalizeWhitespace(entry.Summary)

	// Extract PDF URL from links
	pdfURL := ""
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			pdfURL = link.Href
			break
		}
	}
	if pdfURL == "" {
		pdfURL = "https://arxiv.org/pdf/" + arxivID
	}

	// Extract cross-listed categories
	categories := make([]string, 0, len(entry.Categories))
	for _, cat := range entry.Categories {
		if cat.Term != "" {
			categories = append(categories, cat.Term)
		}
	}

	return &domain.Paper{
		ArxivID:     arxivID,
		Title:       title,
		Abstract:    abstract,
		Authors:     authors,
		Categories:  categories,
		PublishedAt: pubDate,
		URL:         "https://arxiv.org/abs/" + arxivID,
		PDFURL:      pdfURL,
	}
}

// normalizeWhitespace trims and collapses multiple whitespace characters.
func normalizeWhitespace(s string) string {
	s = strings.TrimSpace(s)
	// Collapse multiple whitespace (including newlines) into single spaces
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
