package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rickgao/market-gateway/internal/model"
)

// StatusError is a non-2xx response from an upstream.
type StatusError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Message)
}

// IsRateLimit reports whether the upstream signalled rate limiting.
func (e *StatusError) IsRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Fetch performs a GET and returns the raw body.
func (c *Client) Fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.doWithRetry(ctx, path, query)
}

// doRequest performs a single GET attempt.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return body, nil
}

// doWithRetry retries only on 429, with exponential backoff, for at most
// maxAttempts total attempts. Every other failure is classified and
// returned immediately.
func (c *Client) doWithRetry(ctx context.Context, path string, query url.Values) ([]byte, error) {
	op := "GET " + path
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			// Add jitter: backoff * (0.5 to 1.5)
			wait := backoff
			if backoff > 0 {
				wait = backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			}
			c.logger.Debug("upstream rate limited, retrying",
				"attempt", attempt,
				"backoff", wait,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, classify(op, ctx.Err())
			case <-time.After(wait):
			}

			backoff *= 2
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, classify(op, fmt.Errorf("wait for pacing: %w", err))
			}
		}

		body, err := c.doRequest(ctx, path, query)
		if err == nil {
			return body, nil
		}

		var statusErr *StatusError
		if !errors.As(err, &statusErr) || !statusErr.IsRateLimit() {
			return nil, classify(op, err)
		}
		lastErr = err
	}

	c.logger.Warn("upstream rate limit retries exhausted",
		"path", path,
		"attempts", c.maxAttempts,
	)
	return nil, model.NewError(model.KindUpstreamRateLimitExhausted, op,
		fmt.Errorf("%d attempts: %w", c.maxAttempts, lastErr))
}

// getJSON performs a GET and decodes the JSON body into result.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, result any) error {
	body, err := c.doWithRetry(ctx, path, query)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return model.NewError(model.KindUpstreamFailed, "GET "+path, fmt.Errorf("decode response: %w", err))
	}

	return nil
}

// classify maps a transport or status failure to a gateway error kind.
func classify(op string, err error) error {
	if isTimeout(err) {
		return model.NewError(model.KindUpstreamTimeout, op, err)
	}
	return model.NewError(model.KindUpstreamFailed, op, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
