package heavens

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/skywatch/internal/metrics"
)

// maxBodyBytes caps how much of a response is read into memory.
const maxBodyBytes = 50 * 1024 * 1024

// Client performs table fetches with options from an OptionBuilder.
type Client struct {
	builder    OptionBuilder
	httpClient *http.Client
	logger     *slog.Logger
	maxBody    int64
}

// NewClient creates a Client. Per-request timeouts come from the built
// options, so the underlying http.Client has none of its own.
func NewClient(builder OptionBuilder, logger *slog.Logger) *Client {
	return &Client{
		builder:    builder,
		httpClient: &http.Client{},
		logger:     logger,
		maxBody:    maxBodyBytes,
	}
}

// GetTable performs one GET for target and parses the result with schema.
// Every failure is returned as a *FetchError; a nil table is never returned
// without an error.
func (c *Client) GetTable(ctx context.Context, schema Schema, target string) (*Table, error) {
	opts := c.builder.GetOptions(target)
	start := time.Now()

	table, err := c.getTable(ctx, schema, opts)
	metrics.ObserveFetch(schema.Source, time.Since(start), err)
	if err != nil {
		c.logger.Warn("table fetch failed", "source", schema.Source, "url", opts.URL, "error", err)
		return nil, &FetchError{Source: schema.Source, URL: opts.URL, Err: err}
	}

	metrics.SetTableRows(schema.Source, len(table.Rows))
	c.logger.Info("fetched table",
		"source", schema.Source,
		"rows", len(table.Rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return table, nil
}

func (c *Client) getTable(ctx context.Context, schema Schema, opts RequestOptions) (*Table, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := opts.NewRequest(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("response exceeds %d byte limit", c.maxBody)
	}

	rows, err := schema.Parse(bytes.NewReader(body), opts.URL, c.logger)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyTable
	}

	return &Table{
		Source:    schema.Source,
		URL:       opts.URL,
		FetchedAt: time.Now().UTC(),
		Columns:   schema.ColumnNames(),
		Rows:      rows,
	}, nil
}
