package fetch

import (
	"errors"
	"fmt"
)

// ErrTransport is matched by every *TransportError.
var ErrTransport = errors.New("transport failure")

// ErrExhausted is matched by every *ExhaustedError.
var ErrExhausted = errors.New("retries exhausted")

// TransportError is a retryable failure of a single attempt: connection
// error, timeout, or a non-success status code.
type TransportError struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ExhaustedError is returned once every attempt for a URL has failed.
type ExhaustedError struct {
	URL      string
	Attempts int
	Err      error // last transport error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrExhausted) match.
func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// RequestBuildError means no request could be built for the URL, either from a
// malformed URL or failed credentials. It is never retried.
type RequestBuildError struct {
	URL string
	Err error
}

func (e *RequestBuildError) Error() string {
	return fmt.Sprintf("build request for %q: %v", e.URL, e.Err)
}

func (e *RequestBuildError) Unwrap() error { return e.Err }

func isRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
