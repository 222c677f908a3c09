package request

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"trafficviewer/pkg/tracker"
	"trafficviewer/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("TrafficViewer/%s", version.Version)

// ErrBackingOff is returned when a provider is skipped because it failed recently.
var ErrBackingOff = errors.New("provider backing off")

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status %d from %s", e.Code, e.URL)
}

// ClientConfig holds the request behavior of a Client.
type ClientConfig struct {
	Timeout   time.Duration // per attempt
	Retries   int           // attempts per Get, at least 1
	BaseDelay time.Duration // between attempts and for provider backoff
	MaxDelay  time.Duration
	UserAgent string
}

// Client performs feed GETs with gzip transport, tracking and backoff.
type Client struct {
	httpClient *http.Client
	tracker    *tracker.Tracker
	backoff    *ProviderBackoff
	cfg        ClientConfig
}

// New creates a new Client.
func New(t *tracker.Tracker, cfg ClientConfig) *Client {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if t == nil {
		t = tracker.New()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: gzhttp.Transport(http.DefaultTransport),
		},
		tracker: t,
		backoff: NewProviderBackoff(cfg.BaseDelay, cfg.MaxDelay),
		cfg:     cfg,
	}
}

// Tracker returns the statistics tracker the client reports to.
func (c *Client) Tracker() *tracker.Tracker {
	return c.tracker
}

// Get fetches u and returns the response body.
func (c *Client) Get(ctx context.Context, u string) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	provider := parsedURL.Host

	if d := c.backoff.Remaining(provider); d > 0 {
		return nil, fmt.Errorf("%w: %s for another %v", ErrBackingOff, provider, d.Round(time.Second))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	body, err := c.executeWithBackoff(req)
	if err != nil {
		// Our own cancellation says nothing about the provider.
		if ctx.Err() == nil {
			c.tracker.TrackFailure(provider)
			c.backoff.RecordFailure(provider)
		}
		return nil, err
	}

	c.tracker.TrackSuccess(provider, len(body))
	c.backoff.RecordSuccess(provider)
	return body, nil
}

// executeWithBackoff attempts the request up to Retries times on retryable errors.
func (c *Client) executeWithBackoff(req *http.Request) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.cfg.Retries; attempt++ {
		if attempt > 0 {
			sleepDur := time.Duration(math.Pow(2, float64(attempt-1))) * c.cfg.BaseDelay
			if sleepDur > c.cfg.MaxDelay {
				sleepDur = c.cfg.MaxDelay
			}
			timer := time.NewTimer(sleepDur)
			select {
			case <-timer.C:
			case <-req.Context().Done():
				timer.Stop()
				return nil, req.Context().Err()
			}
		}

		slog.Debug("Network Request", "host", req.URL.Host, "path", req.URL.Path, "attempt", attempt+1)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			slog.Warn("Request failed", "url", req.URL, "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			drain(resp)
			slog.Warn("API Backoff", "status", resp.StatusCode, "url", req.URL, "attempt", attempt+1)
			lastErr = &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
			continue
		}

		if resp.StatusCode >= 400 {
			drain(resp)
			return nil, &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return body, nil
	}

	return nil, fmt.Errorf("request to %s failed after %d attempt(s): %w", req.URL.Host, c.cfg.Retries, lastErr)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
