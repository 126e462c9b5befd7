// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the source adapters.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryBaseDelay is the first backoff interval used when a policy leaves
// BaseDelay unset. Tests override this to avoid real sleeps.
var RetryBaseDelay = time.Second

const defaultMaxAttempts = 5

// ErrRetriesExhausted is returned when every attempt of a request failed
// with a transient error.
var ErrRetriesExhausted = errors.New("retries exhausted")

// TransientError reports a failure worth retrying: HTTP 429, any 5xx, or
// a transport error. It does not leave the adapter that produced it.
type TransientError struct {
	// StatusCode is zero for transport errors.
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RetryPolicy bounds retries of one request.
type RetryPolicy struct {
	// MaxAttempts counts the first try. Zero means 5.
	MaxAttempts int

	// BaseDelay is the first backoff interval; it doubles per retry.
	// Zero means RetryBaseDelay.
	BaseDelay time.Duration

	// MaxDelay caps one backoff interval. Zero means no cap.
	MaxDelay time.Duration

	// MaxWait caps the total time spent backing off. Zero means no cap.
	MaxWait time.Duration

	// JitterPercent randomizes each interval by up to this percentage.
	JitterPercent uint64

	// Diag receives one line per retry. Nil discards them.
	Diag io.Writer
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = RetryBaseDelay
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	b := retry.NewExponential(base)
	if p.JitterPercent > 0 {
		b = retry.WithJitterPercent(p.JitterPercent, b)
	}
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	if p.MaxWait > 0 {
		b = retry.WithMaxDuration(p.MaxWait, b)
	}
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

// IsTransient reports whether status is worth retrying.
func IsTransient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry executes req and retries transient failures with
// exponential backoff and jitter. Before each attempt, before (when
// non-nil) is called; adapters use it to wait on their rate limiter.
//
// Non-transient responses, including 4xx, are returned to the caller
// unread. When the attempts or the wait budget run out, the error wraps
// both ErrRetriesExhausted and the last TransientError. Context
// cancellation returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy, before func(context.Context) error) (*http.Response, error) {
	var (
		resp    *http.Response
		attempt int
	)
	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attempt++
		if before != nil {
			if err := before(ctx); err != nil {
				return err
			}
		}

		r, err := client.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return retryable(policy.Diag, req, attempt, &TransientError{Err: err})
		}
		if IsTransient(r.StatusCode) {
			io.Copy(io.Discard, r.Body)
			r.Body.Close()
			return retryable(policy.Diag, req, attempt, &TransientError{
				StatusCode: r.StatusCode,
				Err:        errors.New(http.StatusText(r.StatusCode)),
			})
		}
		resp = r
		return nil
	})
	if err != nil {
		var te *TransientError
		if errors.As(err, &te) {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, te)
		}
		return nil, err
	}
	return resp, nil
}

func retryable(w io.Writer, req *http.Request, attempt int, err *TransientError) error {
	if w != nil {
		fmt.Fprintf(w, "retry: %s %s attempt %d: %v\n", req.Method, req.URL.Host, attempt, err)
	}
	return retry.RetryableError(err)
}
