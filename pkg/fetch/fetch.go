//go:generate mockgen -destination=./mocks/doer.go . Doer

// Package fetch performs single-URL downloads with bounded retries. Every
// attempt is independent: there is no resumption of partial bodies.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/glorpus-work/mcbundle/pkg/auth"
	pkgerrors "github.com/glorpus-work/mcbundle/pkg/errors"
)

// Doer is the transport used by the Fetcher. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Fetcher.
type Options struct {
	// MaxAttempts is the total number of attempts per URL, including the first.
	// Default: 5
	MaxAttempts int

	// RetryDelay is the flat delay between attempts.
	// Default: 1s (DefaultOptions); zero means no delay.
	RetryDelay time.Duration

	// Timeout bounds a single attempt, connect through reading the body.
	// Default: 30s
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// Auth, if set, applies credentials to every request.
	Auth auth.Authenticator
}

// DefaultOptions returns options with the defaults listed on Options.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 5,
		RetryDelay:  time.Second,
		Timeout:     30 * time.Second,
		UserAgent:   "mcbundle/1.0",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}
	return o
}

// Fetcher downloads URLs into memory, retrying transport failures.
type Fetcher struct {
	client Doer
	opts   Options
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Fetcher over client. A nil client uses a fresh *http.Client;
// per-attempt timeouts are applied through the request context either way.
func New(client Doer, opts Options) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{
		client: client,
		opts:   opts.withDefaults(),
		sleep:  sleepContext,
	}
}

// Options returns the effective options after defaults were applied.
func (f *Fetcher) Options() Options {
	return f.opts
}

// Fetch returns the full body of rawURL. Transport failures are retried up to
// MaxAttempts. onRetry, if non-nil, is called before every re-attempt with the
// number of the attempt about to run (2 for the first retry) and the error that
// caused it. When all attempts fail the returned *ExhaustedError wraps the last
// *TransportError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, onRetry func(attempt int, err error)) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= f.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if onRetry != nil {
				onRetry(attempt, lastErr)
			}
			if err := f.sleep(ctx, f.opts.RetryDelay); err != nil {
				return nil, err
			}
		}

		body, err := f.attempt(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, &ExhaustedError{URL: rawURL, Attempts: f.opts.MaxAttempts, Err: lastErr}
}

// FetchJSON fetches rawURL with retries and decodes the body into v.
func (f *Fetcher) FetchJSON(ctx context.Context, rawURL string, v any) error {
	body, err := f.Fetch(ctx, rawURL, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return pkgerrors.Wrapf(err, "failed to decode %s", rawURL)
	}
	return nil
}

func (f *Fetcher) attempt(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, &RequestBuildError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	if f.opts.Auth != nil {
		if err := f.opts.Auth.Apply(req); err != nil {
			return nil, &RequestBuildError{URL: rawURL, Err: err}
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

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
