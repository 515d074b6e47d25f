// internal/sheets/client.go
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/clubforge/fantrack/internal/stats"
	"github.com/clubforge/fantrack/internal/store"
)

// Client fetches named tabular datasets from the primary remote store.
// The store speaks a values-style JSON API: one named range per club
// dataset, rows of string cells.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	retry   *RetryPolicy
	logger  *zap.Logger
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithLogger adds logging.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a primary-store client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   NewRetryPolicy(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// valuesResponse mirrors the store's wire format.
type valuesResponse struct {
	Values [][]string `json:"values"`
}

// FetchRaw fetches and parses one dataset. Transient faults are retried
// internally; fatal faults (auth, malformed payload, missing columns)
// propagate on the first attempt.
func (c *Client) FetchRaw(ctx context.Context, club, dataset string) ([]stats.RawObservation, error) {
	var rows []stats.RawObservation

	err := c.retry.Execute(ctx, func() error {
		table, err := c.fetchValues(ctx, club, dataset)
		if err != nil {
			return err
		}
		parsed, err := ParseTable(club+"/"+dataset, table)
		if err != nil {
			return err
		}
		rows = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("primary fetch complete",
		zap.String("club", club),
		zap.String("dataset", dataset),
		zap.Int("rows", len(rows)))
	return rows, nil
}

// fetchValues performs one HTTP attempt.
func (c *Client) fetchValues(ctx context.Context, club, dataset string) ([][]string, error) {
	const op = "sheets.fetch"

	u := fmt.Sprintf("%s/v1/sheets/%s/values/%s",
		c.baseURL, url.PathEscape(club), url.PathEscape(dataset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, store.FatalError(op, 0, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		// Network-level failures carry no status; classify by signature.
		if store.IsRetryable(err) {
			return nil, store.RetryableError(op, 0, err)
		}
		return nil, store.FatalError(op, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, store.FromStatus(op, resp.StatusCode,
			fmt.Errorf("unexpected response: %s", string(body)))
	}

	var payload valuesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, store.FatalError(op, 0, fmt.Errorf("malformed payload: %w", err))
	}
	return payload.Values, nil
}
