// Package results talks to competition results sites: it fetches event index
// pages, finds the judges-details protocols and downloads them.
package results

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"skatescore/internal/config"
)

const (
	maxAttempts = 5
	userAgent   = "skatescore/1.0 (+protocol importer)"
)

var ErrStatus = errors.New("unexpected http status")

type Client struct {
	httpClient *http.Client
	limiter    *RateLimiter
	backoff    func(attempt int) time.Duration
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: time.Duration(cfg.ResultsTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.ResultsRateLimitRPS),
		backoff:    jitteredBackoff,
	}
}

// Fetch GETs url and returns the body. 429 and 5xx answers and transport
// errors are retried with exponential backoff.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if err := sleepCtx(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			if attempt < maxAttempts {
				if err := sleepCtx(ctx, c.backoff(attempt)); err != nil {
					return nil, err
				}
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("%w: %d from %s", ErrStatus, resp.StatusCode, url)
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				if err := sleepCtx(ctx, c.backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}
		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("request failed")
	}
	return nil, lastErr
}

// Download stores the body of url at dest. The file appears only once the
// whole body has been written.
func (c *Client) Download(ctx context.Context, url, dest string) error {
	body, err := c.Fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := dest + ".part"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func jitteredBackoff(attempt int) time.Duration {
	return time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
}
