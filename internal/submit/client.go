// Package submit hands finished uploads and import plans to the storage
// service.
//
// Every call is cancellable through its context, rate limited by a limiter
// shared across the client, bounded by a per-attempt timeout and retried on
// transient failures (network errors, 408, 429 and 5xx) with exponential
// backoff and jitter. A call keeps one Idempotency-Key across its retries so
// the service can collapse duplicates.
package submit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"sheetintake/internal/metrics"
)

// Logger is the minimal logging interface used by the client.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Options tunes retries and pacing. Zero values use defaults; MaxRetries of
// zero disables retries.
type Options struct {
	MaxRetries     int
	RequestTimeout time.Duration

	// RateLimitRPS is shared by all calls on the client. <= 0 disables it.
	RateLimitRPS float64

	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackoffJitterFrac float64
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 250 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 5 * time.Second
	}
	if o.BackoffJitterFrac <= 0 {
		o.BackoffJitterFrac = 0.2
	}
	return o
}

// StatusError is a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string

	// RetryAfter is the server's Retry-After hint, zero when absent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// Client talks to the storage service at BaseURL.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Token   string
	Logger  Logger

	opts    Options
	limiter *rate.Limiter
	newKey  func() string
}

// NewClient returns a client for baseURL. token is sent as a bearer token
// when non-empty.
func NewClient(baseURL, token string, opts Options) *Client {
	opts = opts.withDefaults()
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{},
		Token:   token,
		opts:    opts,
		newKey:  uuid.NewString,
	}
	if opts.RateLimitRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	return c
}

func (c *Client) logger() func(format string, v ...any) {
	if c.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return c.Logger.Printf
}

// request is one logical call; body is replayed on every attempt.
type request struct {
	op          string
	method      string
	path        string
	contentType string
	body        []byte
}

// do runs r with retries and returns the body of the first 2xx response.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	logf := c.logger()
	key := c.newKey()

	var lastErr error
	attempts := 1 + c.opts.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		body, err := c.attempt(ctx, r, key)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !isTransient(err) || attempt == attempts-1 {
			break
		}

		sleep := backoffSleep(c.opts.BackoffInitial, c.opts.BackoffMax, c.opts.BackoffJitterFrac, attempt)
		var se *StatusError
		if errors.As(err, &se) && se.RetryAfter > sleep {
			sleep = min(se.RetryAfter, c.opts.BackoffMax)
		}
		logf("submit: %s attempt %d/%d failed: %v; retrying in %s", r.op, attempt+1, attempts, err, sleep.Truncate(time.Millisecond))

		t := time.NewTimer(sleep)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, r request, key string) ([]byte, error) {
	actx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, r.method, c.BaseURL+r.path, bytes.NewReader(r.body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	req.Header.Set("Content-Type", r.contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", key)
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		observe("error", start)
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	observe(strconv.Itoa(resp.StatusCode), start)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", r.op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Op:         r.op,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: parseRetryAfter(resp.Header),
		}
	}
	return body, nil
}

func observe(status string, start time.Time) {
	labels := metrics.Labels{"status": status}
	metrics.IncCounter(metrics.HTTPRequestsTotal, 1, labels)
	metrics.ObserveHistogram(metrics.HTTPRequestDurationSecs, time.Since(start).Seconds(), labels)
}

func isTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Transport failures from http.Client arrive as *url.Error, a net.Error.
	var ne net.Error
	return errors.As(err, &ne)
}

func backoffSleep(initial, ceiling time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < ceiling; i++ {
		sleep *= 2
	}
	sleep = min(sleep, ceiling)
	if jitterFrac <= 0 {
		return sleep
	}
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}

func parseRetryAfter(h http.Header) time.Duration {
	ra := strings.TrimSpace(h.Get("Retry-After"))
	if ra == "" {
		return 0
	}
	if secs, err := strconv.Atoi(ra); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(ra); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
