// Package events provides fire-and-forget product telemetry capture.
//
// Events are keyed by a distinct (actor) identifier and delivered to a
// PostHog-compatible capture endpoint. Capture never blocks the caller:
// events are queued on a bounded buffer and sent by a background worker;
// when the buffer is full, events are dropped and counted. The engine uses
// this for trial-start, charge-confirmed, and charge-refused notifications.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Client captures telemetry events asynchronously.
//
// A nil *Client is valid and drops all events, so callers need no
// enabled/disabled branching.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger

	queue    chan payload
	dropped  atomic.Int64
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Config configures the telemetry events client.
type Config struct {
	// Endpoint is the capture API root (e.g. "https://posthog.example.com").
	Endpoint string

	// APIKey authenticates capture calls.
	APIKey string

	// BufferSize is the queued-event capacity. Default: 1000.
	BufferSize int

	// Timeout bounds each HTTP request. Default: 5s.
	Timeout time.Duration

	// Logger receives delivery failures. Defaults to slog.Default.
	Logger *slog.Logger
}

type payload struct {
	APIKey     string         `json:"api_key"`
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// NewClient creates a telemetry client and starts its delivery worker.
func NewClient(cfg Config) *Client {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Logger.With("component", "events"),
		queue:  make(chan payload, cfg.BufferSize),
		stopCh: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.deliverLoop()

	return c
}

// Capture enqueues an event for delivery. It never blocks; when the buffer
// is full the event is dropped and counted.
func (c *Client) Capture(event, distinctID string, properties map[string]any) {
	if c == nil {
		return
	}
	p := payload{
		APIKey:     c.config.APIKey,
		Event:      event,
		DistinctID: distinctID,
		Properties: properties,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	select {
	case c.queue <- p:
	default:
		c.dropped.Add(1)
	}
}

// Dropped reports the number of events dropped due to a full buffer.
func (c *Client) Dropped() int64 {
	if c == nil {
		return 0
	}
	return c.dropped.Load()
}

// Close stops the delivery worker after draining queued events.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.wg.Wait()
	})
}

func (c *Client) deliverLoop() {
	defer c.wg.Done()
	for {
		select {
		case p := <-c.queue:
			c.send(p)
		case <-c.stopCh:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case p := <-c.queue:
					c.send(p)
				default:
					return
				}
			}
		}
	}
}

func (c *Client) send(p payload) {
	body, err := json.Marshal(p)
	if err != nil {
		c.logger.Error("failed to encode telemetry event", "event", p.Event, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.Endpoint+"/capture", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to build telemetry request", "event", p.Event, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("telemetry delivery failed", "event", p.Event, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.logger.Warn("telemetry delivery rejected",
			"event", p.Event,
			"status", resp.StatusCode,
		)
	}
}
