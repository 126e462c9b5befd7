// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/citecheck/internal/httputil"
	"github.com/pdiddy/citecheck/pkg/types"
)

// maxBodyBytes bounds a provider response.
const maxBodyBytes = 16 << 20

// client is the HTTP side of one adapter: a token bucket, a bounded pool
// of in-flight slots, and a retry policy. It is never shared between
// adapters.
type client struct {
	name      types.SourceName
	http      *http.Client
	limiter   *rate.Limiter
	slots     chan struct{}
	policy    httputil.RetryPolicy
	userAgent string
	header    http.Header
}

func newClient(name types.SourceName, cfg types.SourceConfig, shared types.SourcesConfig, opts Options) *client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := shared.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := max(cfg.Burst, 1)
	slots := max(cfg.MaxConcurrent, 1)

	ua := shared.UserAgent
	if ua == "" {
		ua = "citecheck"
	}
	if cfg.Mailto != "" {
		ua = fmt.Sprintf("%s (mailto:%s)", ua, cfg.Mailto)
	}

	return &client{
		name:    name,
		http:    hc,
		limiter: rate.NewLimiter(limit, burst),
		slots:   make(chan struct{}, slots),
		policy: httputil.RetryPolicy{
			MaxAttempts:   cfg.MaxAttempts,
			BaseDelay:     cfg.BaseDelay,
			MaxDelay:      cfg.MaxDelay,
			MaxWait:       cfg.MaxWait,
			JitterPercent: 20,
			Diag:          opts.Diag,
		},
		userAgent: ua,
		header:    make(http.Header),
	}
}

// response is a fetched body with the metadata web pages need.
type response struct {
	body        []byte
	contentType string

	// finalURL is the address after redirects.
	finalURL string
}

// get fetches rawURL and returns the body. A 404 returns found=false
// with no error. Every other failure is an UnavailableError.
func (c *client) get(ctx context.Context, rawURL string) ([]byte, bool, error) {
	resp, found, err := c.fetch(ctx, rawURL)
	return resp.body, found, err
}

// fetch is get with the response metadata. 404 and 410 both report
// found=false.
func (c *client) fetch(ctx context.Context, rawURL string) (response, bool, error) {
	select {
	case c.slots <- struct{}{}:
		defer func() { <-c.slots }()
	case <-ctx.Done():
		return response{}, false, unavailable(c.name, ctx.Err())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return response{}, false, unavailable(c.name, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range c.header {
		req.Header[k] = v
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.policy, c.limiter.Wait)
	if err != nil {
		return response{}, false, unavailable(c.name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		io.Copy(io.Discard, resp.Body)
		return response{}, false, nil
	case resp.StatusCode != http.StatusOK:
		return response{}, false, unavailable(c.name, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, false, unavailable(c.name, fmt.Errorf("reading response: %w", err))
	}
	out := response{
		body:        body,
		contentType: resp.Header.Get("Content-Type"),
		finalURL:    rawURL,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		out.finalURL = resp.Request.URL.String()
	}
	return out, true, nil
}
