// Package teachable talks to the Teachable public API: a rate-limited,
// apiKey-authenticated client plus the course content traversal built on it.
package teachable

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"teachable-dl/internal/retry"
)

// maxErrorBodyBytes bounds how much of an error response body is kept for
// diagnostics.
const maxErrorBodyBytes = 2048

// Config configures the API client. All limits come from the run
// configuration, not from constants inside the client.
type Config struct {
	APIKey        string
	BaseURL       string
	AdminDomain   string
	MaxConcurrent int
	PerPage       int
	Retry         retry.Policy
	Timeout       time.Duration
	Logger        *logrus.Logger
}

// Client issues authenticated GET requests against the API, bounding total
// in-flight calls and absorbing 429 responses. The platform enforces a
// global request-rate ceiling, so the bound is shared by every caller.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sem        chan struct{}
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://developers.teachable.com/v1"
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 20
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sem:        make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Get fetches endpoint with the given query parameters and decodes the JSON
// response into out. 429 responses are absorbed with backoff up to the retry
// budget; transport errors are retried the same way. Any other status >= 400
// is terminal and returned as *APIError.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, out any) error {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return ctx.Err()
	}

	reqURL := c.cfg.BaseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var body []byte
	var lastErr error
	for attempt := 0; attempt < c.cfg.Retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		body, lastErr = c.doOnce(ctx, endpoint, reqURL)
		if lastErr == nil {
			break
		}
		if _, terminal := lastErr.(*APIError); terminal {
			return lastErr
		}
		if attempt == c.cfg.Retry.MaxAttempts-1 {
			// no attempt left to wait for
			break
		}

		switch e := lastErr.(type) {
		case *rateLimitedError:
			delay := c.cfg.Retry.Delay(attempt)
			if e.reset > delay {
				delay = e.reset
			}
			c.cfg.Logger.WithFields(logrus.Fields{
				"endpoint": endpoint,
				"delay":    delay,
			}).Warn("rate limit reached, backing off")
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		default:
			// transport level failure, retry with plain backoff
			delay := c.cfg.Retry.Delay(attempt)
			c.cfg.Logger.WithFields(logrus.Fields{
				"endpoint": endpoint,
				"delay":    delay,
			}).Warnf("request failed, retrying: %v", lastErr)
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	if lastErr != nil {
		if _, ok := lastErr.(*rateLimitedError); ok {
			return fmt.Errorf("%w: %s", ErrRateLimited, endpoint)
		}
		return fmt.Errorf("get %s: %w", endpoint, lastErr)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// rateLimitedError carries the server-provided reset delay for one 429.
type rateLimitedError struct {
	reset time.Duration
}

func (e *rateLimitedError) Error() string { return "teachable: rate limited (429)" }

func (c *Client) doOnce(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("apiKey", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		var reset time.Duration
		if v := resp.Header.Get("RateLimit-Reset"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				reset = time.Duration(secs) * time.Second
			}
		}
		return nil, &rateLimitedError{reset: reset}
	}

	// read everything before decoding; chunked responses may otherwise be
	// handed to the parser half-delivered
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if len(body) > maxErrorBodyBytes {
			body = body[:maxErrorBodyBytes]
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Endpoint:   endpoint,
			Body:       string(body),
		}
	}

	return body, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if c.cfg.Retry.Sleep != nil {
		return c.cfg.Retry.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AdminLectureURL builds the human-followable school admin URL for a
// lecture, or "" when no admin domain is configured.
func AdminLectureURL(adminDomain string, courseID, lectureID int64) string {
	if adminDomain == "" {
		return ""
	}
	return fmt.Sprintf("https://%s/admin-app/courses/%d/curriculum/lessons/%d", adminDomain, courseID, lectureID)
}
