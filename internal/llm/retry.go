package llm

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/finlens-ai/invoice-engine/internal/domain"
)

const (
	defaultMaxRetries = 5
	defaultRetryBase  = 1 * time.Second
	maxBackoff        = 60 * time.Second
)

// RetryConfig holds retry configuration for the completion endpoint.
type RetryConfig struct {
	MaxRetries int
	Base       time.Duration
	Max        time.Duration
}

func (rc RetryConfig) withDefaults() RetryConfig {
	if rc.MaxRetries <= 0 {
		rc.MaxRetries = defaultMaxRetries
	}
	if rc.Base <= 0 {
		rc.Base = defaultRetryBase
	}
	if rc.Max <= 0 {
		rc.Max = maxBackoff
	}
	return rc
}

// backoffDelay returns the exponential backoff for an attempt, capped at Max.
func (rc RetryConfig) backoffDelay(attempt int) time.Duration {
	d := float64(rc.Base) * math.Pow(2, float64(attempt))
	if d > float64(rc.Max) {
		d = float64(rc.Max)
	}
	return time.Duration(d)
}

// retryAfterDelay reads a Retry-After header expressed in seconds. Returns 0
// when absent or unparseable.
func retryAfterDelay(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// retryWithBackoff wraps an HTTP request with the rate-limit retry policy:
// 429 and network errors are retried up to MaxRetries times (MaxRetries+1
// attempts total), honoring Retry-After when the server provides one. Any
// other non-2xx status is fatal for the call and never retried.
func (c *Client) retryWithBackoff(ctx context.Context, send func() (*http.Response, error)) (*http.Response, error) {
	cfg := c.retry.withDefaults()
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := send()
		if err == nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}

			if resp.StatusCode != http.StatusTooManyRequests {
				body, _ := io.ReadAll(resp.Body)
				resp.Body.Close()
				return nil, domain.APIError(
					"completion endpoint returned "+resp.Status+": "+snippet(body), nil)
			}

			// Rate limited: prefer the server's own delay hint.
			delay := retryAfterDelay(resp)
			resp.Body.Close()
			lastErr = domain.APIError("completion endpoint rate limited (429)", nil)

			if attempt == cfg.MaxRetries {
				break
			}
			if delay == 0 {
				delay = cfg.backoffDelay(attempt)
			}

			c.logger.Warn().
				Int("attempt", attempt+1).
				Int("max_retries", cfg.MaxRetries).
				Dur("delay", delay).
				Msg("Rate limited, backing off")

			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		// Network-level failure: same bounded retry policy.
		lastErr = err
		if attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.backoffDelay(attempt)
		c.logger.Warn().
			Int("attempt", attempt+1).
			Int("max_retries", cfg.MaxRetries).
			Dur("delay", delay).
			Err(err).
			Msg("Completion request failed, retrying")

		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, domain.APIError("completion request failed after retries", lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
