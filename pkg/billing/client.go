package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client talks to the external billing collaborator over HTTP.
//
// The collaborator answers 201 on acceptance and 409 when a submission for
// the same period already exists; 409 maps to ErrDuplicateSubmission. The
// client performs no retries: delivery is fire-and-observe, and the
// collaborator owns its own retry semantics.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// Config configures the billing client.
type Config struct {
	// BaseURL is the collaborator's API root, without trailing slash.
	BaseURL string

	// APIKey is sent in the Ocp-Apim-Subscription-Key header.
	APIKey string

	// Timeout bounds each HTTP request. Default: 10s.
	Timeout time.Duration

	// Logger receives delivery outcomes. Defaults to slog.Default.
	Logger *slog.Logger
}

// NewClient creates a billing client with a pooled HTTP transport.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		config: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger: cfg.Logger.With("component", "billing"),
	}
}

// SendUsageEvent reports a single usage tick.
func (c *Client) SendUsageEvent(ctx context.Context, event UsageEvent) error {
	if err := c.post(ctx, "/UsageEvent", event); err != nil {
		return err
	}
	c.logger.Debug("sent usage event", "job_number", event.JobNumber)
	return nil
}

// SendUsageSummary reports a chargeable usage summary for an elapsed period.
func (c *Client) SendUsageSummary(ctx context.Context, summary UsageSummary) error {
	if err := c.post(ctx, "/UsageSummary", summary); err != nil {
		return err
	}
	c.logger.Debug("sent usage summary",
		"job_number", summary.JobNumber,
		"cost", summary.Cost,
	)
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if c.config.APIKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusConflict:
		return ErrDuplicateSubmission
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, detail)
	}
}
