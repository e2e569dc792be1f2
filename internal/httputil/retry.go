// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil downloads registry exports over HTTP.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/facility-match/pkg/types"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// MaxBodyBytes caps a downloaded export.
var MaxBodyBytes int64 = 256 << 20

const defaultMaxRetries = 5

// DoWithRetry executes req and retries on HTTP 429 (Too Many Requests).
// A Retry-After header given in seconds takes precedence; otherwise the
// delay starts at RetryBaseDelay and doubles each attempt.
//
// When maxRetries is 0 the default (5) is used. After exhausting retries
// the last 429 response is returned so the caller can inspect it. If ctx
// is cancelled during a wait the function returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		wait := retryAfter(resp.Header.Get("Retry-After"))
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Fetch downloads url and returns the body and its Content-Type. Non-2xx
// responses are errors that quote the start of the body.
func Fetch(ctx context.Context, client *http.Client, url string, cfg types.HTTPConfig) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request for %s: %w", url, err)
	}
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := DoWithRetry(ctx, client, req, cfg.MaxRetries)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		return nil, "", fmt.Errorf("fetching %s: HTTP %d: %s", url, resp.StatusCode, snippet)
	}
	if int64(len(body)) > MaxBodyBytes {
		return nil, "", fmt.Errorf("fetching %s: body exceeds %d bytes", url, MaxBodyBytes)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

func retryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
