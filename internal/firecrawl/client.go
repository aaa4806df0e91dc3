package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autorag/harvester/internal/crawl"
)

const (
	// DefaultBaseURL is the production Firecrawl endpoint.
	DefaultBaseURL = "https://api.firecrawl.dev"

	// DefaultTimeout bounds each HTTP request when no client is supplied.
	DefaultTimeout = 30 * time.Second

	// maxResponseBytes caps how much of a reply is read. Completed-job
	// payloads carry raw HTML for every page, so they are large but must not
	// be unbounded.
	maxResponseBytes = 32 << 20
)

// Client talks to the Firecrawl API. It implements crawl.JobClient and never
// retries; callers own failure policy.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ crawl.JobClient = (*Client)(nil)

// Config carries the client settings.
type Config struct {
	// APIKey authenticates every request. Required.
	APIKey string
	// BaseURL overrides the production endpoint, mainly for tests.
	BaseURL string
	// Timeout bounds each request when HTTPClient is nil. Defaults to 30s.
	Timeout time.Duration
	// HTTPClient overrides the default client when non-nil.
	HTTPClient *http.Client
}

// New creates a Firecrawl API client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("firecrawl api key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Submit starts an asynchronous crawl of targetURL and returns the remote
// job id.
func (c *Client) Submit(ctx context.Context, targetURL string, params crawl.Params) (string, error) {
	if targetURL == "" {
		return "", fmt.Errorf("target url is required")
	}
	body, err := json.Marshal(crawlRequest{URL: targetURL, Params: params})
	if err != nil {
		return "", fmt.Errorf("encode crawl request: %w", err)
	}

	c.logger.Info("submitting crawl job",
		zap.String("url", targetURL),
		zap.Int("limit", params.Limit),
		zap.Int("max_depth", params.MaxDepth),
	)

	var resp crawlResponse
	if err := c.do(ctx, http.MethodPost, "/v1/crawl", bytes.NewReader(body), &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("crawl response carries no job id: %w", ErrMalformedResponse)
	}

	c.logger.Info("crawl job accepted", zap.String("job_id", resp.ID))
	return resp.ID, nil
}

// FetchStatus returns a fresh snapshot of the job's remote state. Completed
// jobs include their page records.
func (c *Client) FetchStatus(ctx context.Context, jobID string) (crawl.Snapshot, error) {
	if jobID == "" {
		return crawl.Snapshot{}, fmt.Errorf("job id is required")
	}

	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/crawl/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return crawl.Snapshot{}, err
	}
	return resp.toSnapshot()
}

// do performs one API request and decodes the 2xx reply into result.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{StatusCode: resp.StatusCode, Message: excerpt(payload), Endpoint: path}
	}
	if err := json.Unmarshal(payload, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// excerpt trims an error body down to something loggable.
func excerpt(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
