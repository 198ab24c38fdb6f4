package clients

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig defines retry behavior for idempotent platform reads
type RetryConfig struct {
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffFactor   float64
	Jitter          float64
	RetryableStatus []int
}

// DefaultRetryConfig keeps retries short: a merchant is waiting on the
// response
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryableStatus: []int{
			http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// Retrier retries an HTTP call with exponential backoff
type Retrier struct {
	config *RetryConfig
}

func NewRetrier(config *RetryConfig) *Retrier {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &Retrier{config: config}
}

func (r *Retrier) shouldRetry(statusCode int, err error) bool {
	if err != nil {
		return true
	}
	for _, code := range r.config.RetryableStatus {
		if statusCode == code {
			return true
		}
	}
	return false
}

func (r *Retrier) backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return min(retryAfter, r.config.MaxBackoff)
	}

	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffFactor, float64(attempt))
	if r.config.Jitter > 0 {
		backoff += backoff * r.config.Jitter * (rand.Float64()*2 - 1)
	}
	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		return time.Until(t)
	}
	return 0
}

// Do runs fn until it returns a non-retryable outcome, retries are used up
// or ctx ends. The last response is returned with its body unread; earlier
// retried responses are closed.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) (*http.Response, error)) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := fn(ctx)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}

		if (err == nil && !r.shouldRetry(status, nil)) || attempt >= r.config.MaxRetries || ctx.Err() != nil {
			return resp, err
		}

		wait := r.backoff(attempt, parseRetryAfter(resp))
		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}
