package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/catalog"
)

// ClientConfig controls the scrape-API client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements catalog.Fetcher against a scrape API that returns
// markdown body text plus metadata for a URL. Calls are rate limited per
// domain and retried on transient errors only.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *Limiter
	retry   *ExponentialRetryPolicy
	logger  *zap.Logger
}

// NewClient builds a Client.
func NewClient(cfg ClientConfig, limiter *Limiter, retry *ExponentialRetryPolicy, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("scrape api base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if retry == nil {
		retry = NewExponentialRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		retry:   retry,
		logger:  logger,
	}, nil
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title string `json:"title"`
		} `json:"metadata"`
	} `json:"data"`
	Error string `json:"error"`
}

// Fetch retrieves title and body text for a URL, retrying transient
// failures with backoff.
func (c *Client) Fetch(ctx context.Context, rawURL string) (catalog.Page, error) {
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, rawURL); err != nil {
				return catalog.Page{}, err
			}
		}

		page, err := c.scrapeOnce(ctx, rawURL)
		if err == nil {
			return page, nil
		}

		if !c.retry.ShouldRetry(err, attempt) {
			return catalog.Page{}, err
		}
		backoff := c.retry.Backoff(attempt)
		c.logger.Warn("fetch retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return catalog.Page{}, fmt.Errorf("fetch %s: %w", rawURL, ctx.Err())
		case <-time.After(backoff):
		}
	}
}

func (c *Client) scrapeOnce(ctx context.Context, rawURL string) (catalog.Page, error) {
	body, err := json.Marshal(scrapeRequest{URL: rawURL, Formats: []string{"markdown"}})
	if err != nil {
		return catalog.Page{}, fmt.Errorf("marshal scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return catalog.Page{}, fmt.Errorf("build scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("scrape %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return catalog.Page{}, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	var decoded scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return catalog.Page{}, fmt.Errorf("decode scrape response for %s: %w", rawURL, err)
	}
	if !decoded.Success {
		return catalog.Page{}, fmt.Errorf("scrape %s: api error: %s", rawURL, decoded.Error)
	}

	return catalog.Page{
		URL:   rawURL,
		Title: decoded.Data.Metadata.Title,
		Body:  decoded.Data.Markdown,
	}, nil
}
