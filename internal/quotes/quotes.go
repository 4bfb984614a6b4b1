// Package quotes fetches short calming quotes for frustrated users.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DefaultURL is the ZenQuotes endpoint returning a batch of quotes.
const DefaultURL = "https://zenquotes.io/api/quotes"

// Fallback sentences used when no quote can be fetched.
const (
	FallbackEmpty = "Take a deep breath. Everything will be okay."
	FallbackError = "Take a deep breath. We're here to help you."
)

// Provider returns a calming quote. It never fails.
type Provider interface {
	Quote(ctx context.Context) string
}

// Client fetches quotes from a ZenQuotes-compatible endpoint.
type Client struct {
	url     string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a quote client. Zero values select the defaults.
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:     url,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type quote struct {
	Text   string `json:"q"`
	Author string `json:"a"`
}

// Quote returns the first quote formatted as "text" - author, or a fallback
// sentence when the provider returns nothing or cannot be reached.
func (c *Client) Quote(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("quote fetch failed, using fallback", "error", err)
		return FallbackError
	}
	if len(results) == 0 {
		return FallbackEmpty
	}
	q := results[0]
	if q.Text == "" {
		q.Text = "Stay positive!"
	}
	if q.Author == "" {
		q.Author = "Unknown"
	}
	return fmt.Sprintf("\"%s\" - %s", q.Text, q.Author)
}

func (c *Client) fetch(ctx context.Context) ([]quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request quotes: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close quote response body", "error", closeErr)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quotes returned status %d", resp.StatusCode)
	}

	var results []quote
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode quotes: %w", err)
	}
	return results, nil
}

// Static always returns the same sentence. It is used when quote fetching is disabled.
type Static string

// Quote implements Provider.
func (s Static) Quote(context.Context) string {
	return string(s)
}
