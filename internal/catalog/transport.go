// file: internal/catalog/transport.go
// version: 1.0.0
// guid: 8bc8bd2c-4cdd-450c-98b3-84aa1be198c5

package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRetryAfter = time.Second
	maxDrainBytes     = 64 << 10
)

// rateLimitTransport paces outgoing requests and absorbs HTTP 429 responses
// by sleeping for the server's Retry-After before re-issuing the request.
// These waits do not consume the caller's retry budget. After max429
// consecutive 429s the response is handed back to the caller.
type rateLimitTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
	maxWait time.Duration
	max429  int
	sleep   func(context.Context, time.Duration) error
	now     func() time.Time
	log     *slog.Logger
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil || resp.StatusCode != http.StatusTooManyRequests || attempt >= t.max429 {
			return resp, err
		}

		wait := parseRetryAfter(resp.Header.Get("Retry-After"), t.now())
		if t.maxWait > 0 && wait > t.maxWait {
			wait = t.maxWait
		}
		_, _ = io.CopyN(io.Discard, resp.Body, maxDrainBytes)
		resp.Body.Close()

		t.log.Debug("catalog rate limited", "url", req.URL.Path, "wait", wait, "attempt", attempt+1)
		if err := t.sleep(ctx, wait); err != nil {
			return nil, err
		}

		if req, err = rewind(req); err != nil {
			return nil, err
		}
	}
}

// rewind prepares a request to be sent again.
func rewind(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("cannot retry %s %s: request body is not replayable", req.Method, req.URL.Path)
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Missing or
// malformed values fall back to one second.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return defaultRetryAfter
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return defaultRetryAfter
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
