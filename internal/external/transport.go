// Package external holds GymDesk's clients for its two upstream services:
// the AI inference service and the auth token-introspection service. Both
// upstreams speak JSON over POST, so the shared plumbing is a single
// postJSON call path guarded by a per-upstream circuit breaker and a short
// bounded retry loop.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"gymdesk/internal/types"
)

const (
	defaultUserAgent = "GymDesk/1.0"

	// maxBackoff caps the pause between attempts, whatever the upstream's
	// Retry-After asks for.
	maxBackoff = 5 * time.Second
)

// reply is a fully drained upstream response. Bodies are read and closed
// inside the call path so callers never hold a live connection.
type reply struct {
	status     int
	body       []byte
	retryAfter time.Duration // parsed integer Retry-After, zero when absent
}

// retryable reports whether a status is worth another attempt. Anything
// else, including every other 4xx, is a terminal answer from the upstream.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// upstream is the shared transport for the AI and auth clients. Compared
// to a general-purpose HTTP client it is deliberately narrow: JSON POST
// only, drained bounded bodies, a small retry budget, and one breaker per
// upstream so a dead AI service cannot open the auth path.
type upstream struct {
	name      string
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*reply]
	retries   int
	backoff   time.Duration
	maxBody   int64
	userAgent string
	sleep     func(time.Duration)
}

type upstreamOption func(*upstream)

// withRetryProfile overrides the retry budget and base backoff. Tests use
// it to keep retry loops fast.
func withRetryProfile(retries int, backoff time.Duration) upstreamOption {
	return func(u *upstream) {
		u.retries = retries
		u.backoff = backoff
	}
}

// withSleep overrides the inter-attempt sleep.
func withSleep(fn func(time.Duration)) upstreamOption {
	return func(u *upstream) {
		u.sleep = fn
	}
}

// newUpstream builds the transport for one named upstream. maxBody bounds
// how much of any response is read; the rest is discarded with the
// connection.
func newUpstream(name string, timeout time.Duration, maxBody int64, opts ...upstreamOption) *upstream {
	u := &upstream{
		name:      name,
		client:    &http.Client{Timeout: timeout},
		retries:   2,
		backoff:   250 * time.Millisecond,
		maxBody:   maxBody,
		userAgent: defaultUserAgent,
		sleep:     time.Sleep,
	}
	for _, opt := range opts {
		opt(u)
	}

	u.breaker = gobreaker.NewCircuitBreaker[*reply](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 4
		},
	})
	return u
}

// postJSON sends the payload to url and returns the drained response.
// Transport errors, 429s, and 5xx answers are retried with a doubling
// backoff that honors integer Retry-After values; terminal 4xx answers are
// returned to the caller as-is for domain-specific mapping.
//
// Exhausted retries and an open breaker surface as AppErrors: rate
// limiting maps to upstream_rate_limited, everything else to
// upstream_unavailable.
func (u *upstream) postJSON(ctx context.Context, url string, header http.Header, payload any) (*reply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode upstream request", err)
	}

	var last *reply
	var lastErr error
	for attempt := 0; attempt <= u.retries; attempt++ {
		if attempt > 0 {
			u.sleep(u.wait(attempt, last))
		}

		rep, err := u.attempt(ctx, url, header, body)
		if err == nil {
			return rep, nil
		}
		last, lastErr = rep, err

		// An open breaker will refuse every attempt; stop immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
	}

	return nil, u.fail(last, lastErr)
}

// attempt runs one request through the breaker. Replies with retryable
// statuses come back alongside a non-nil error so the breaker counts them
// as failures; the drained reply still carries Retry-After for the backoff.
func (u *upstream) attempt(ctx context.Context, url string, header http.Header, body []byte) (*reply, error) {
	return u.breaker.Execute(func() (*reply, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", u.userAgent)
		if traceID := types.GetRequestID(ctx); traceID != "" {
			req.Header.Set("X-B3-TraceId", traceID)
		}
		for name, values := range header {
			for _, v := range values {
				req.Header.Add(name, v)
			}
		}

		resp, err := u.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, u.maxBody))
		if err != nil {
			return nil, err
		}

		rep := &reply{status: resp.StatusCode, body: data}
		if secs, atoiErr := strconv.Atoi(resp.Header.Get("Retry-After")); atoiErr == nil && secs > 0 {
			rep.retryAfter = time.Duration(secs) * time.Second
		}

		if retryable(resp.StatusCode) {
			return rep, fmt.Errorf("%s answered %d", u.name, resp.StatusCode)
		}
		return rep, nil
	})
}

// wait computes the pause before the given attempt: the base backoff
// doubled per attempt, stretched to the upstream's Retry-After when it
// asks for more, and capped at maxBackoff.
func (u *upstream) wait(attempt int, last *reply) time.Duration {
	d := u.backoff << (attempt - 1)
	if last != nil && last.retryAfter > d {
		d = last.retryAfter
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// fail maps a terminal transport failure to an AppError.
func (u *upstream) fail(last *reply, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			u.name+" circuit open; request not attempted",
			err,
		)
	}
	if last != nil && last.status == http.StatusTooManyRequests {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, u.name+" rate limit exceeded", err)
	}
	if last != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s answered %d after retries", u.name, last.status),
			err,
		)
	}
	return types.NewAppError(types.ErrCodeUpstreamUnavailable, u.name+" unreachable", err)
}
