// Package upstream is the HTTP plumbing shared by the platform adapters: bounded
// timeouts, a token-bucket rate limiter, a circuit breaker, retries for identity
// calls and classification of failures into the engine's error taxonomy.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"rateKit/internal/domain"
	"rateKit/internal/infrastructure/metrics"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRatePerSec = 5
	defaultBurst      = 5
	defaultMaxRetries = 3
	defaultRetryBase  = 200 * time.Millisecond
	maxBodyBytes      = 1 << 20
	logBodyBytes      = 256
)

type Config struct {
	Platform   domain.Platform
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	MaxRetries uint64
	RetryBase  time.Duration
	HTTPClient *http.Client
	Metrics    *metrics.Registry
}

type Client struct {
	platform   domain.Platform
	httpCli    *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries uint64
	retryBase  time.Duration
	metrics    *metrics.Registry
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = defaultRatePerSec
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}

	httpCli := cfg.HTTPClient
	if httpCli == nil {
		httpCli = &http.Client{}
	}
	if httpCli.Timeout == 0 || httpCli.Timeout > timeout {
		cp := *httpCli
		cp.Timeout = timeout
		httpCli = &cp
	}

	platform := string(cfg.Platform)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     platform,
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A rejected token says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrUpstreamAuth)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("platform", name).Str("from", from.String()).Str("to", to.String()).Msg("upstream breaker state change")
		},
	})

	return &Client{
		platform:   cfg.Platform,
		httpCli:    httpCli,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		breaker:    breaker,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		metrics:    cfg.Metrics,
	}
}

type Request struct {
	Op     string
	Method string
	URL    string
	Query  url.Values
	Bearer string
	Form   url.Values
	JSON   any
}

// Do performs one call and decodes a 2xx JSON answer into out (when non-nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.unavailable(req.Op, 0, fmt.Errorf("rate limiter: %w", err))
	}

	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, req, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = c.unavailable(req.Op, 0, err)
	}

	c.metrics.ObserveUpstream(string(c.platform), req.Op, resultLabel(err), time.Since(start))
	return err
}

// DoWithRetry retries UpstreamUnavailableError with exponential backoff. Auth
// failures return immediately.
func (c *Client) DoWithRetry(ctx context.Context, req Request, out any) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.WithJitterPercent(10, retry.NewExponential(c.retryBase)))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.Do(ctx, req, out)
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			log.Debug().Str("platform", string(c.platform)).Str("op", req.Op).Err(err).Msg("retrying upstream call")
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) roundTrip(ctx context.Context, req Request, out any) error {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.JSON != nil:
		raw, err := json.Marshal(req.JSON)
		if err != nil {
			return fmt.Errorf("upstream: encode %s body: %w", req.Op, err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("upstream: build %s request: %w", req.Op, err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Bearer)
	}

	resp, err := c.httpCli.Do(httpReq)
	if err != nil {
		return c.unavailable(req.Op, 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return c.unavailable(req.Op, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug().
			Str("platform", string(c.platform)).
			Str("op", req.Op).
			Int("status", resp.StatusCode).
			Str("body", truncate(raw, logBodyBytes)).
			Msg("upstream error response")
		return c.classifyStatus(req.Op, resp.StatusCode)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return c.unavailable(req.Op, resp.StatusCode, fmt.Errorf("decode body: %w", err))
	}
	return nil
}

func (c *Client) classifyStatus(op string, status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return &domain.UpstreamAuthError{Platform: c.platform, Op: op, Status: status}
	default:
		return c.unavailable(op, status, nil)
	}
}

func (c *Client) unavailable(op string, status int, err error) error {
	return &domain.UpstreamUnavailableError{Platform: c.platform, Op: op, Status: status, Err: err}
}

// AuthError builds an UpstreamAuthError for answers that are 2xx but identify
// no account.
func (c *Client) AuthError(op, reason string) error {
	return &domain.UpstreamAuthError{Platform: c.platform, Op: op, Reason: reason}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUpstreamAuth):
		return "auth_error"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
