package download

import (
	"context"
	"errors"
	"fmt"

	"github.com/glorpus-work/mcbundle/pkg/fetch"
	"github.com/glorpus-work/mcbundle/pkg/hash"
)

// RequestError is the terminal failure of one request in a batch.
type RequestError struct {
	Request Request
	Err     error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Request, Kind(e.Err), e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ErrorKind classifies a download failure for diagnostics.
type ErrorKind string

// Error kinds reported by Kind.
const (
	KindConfig    ErrorKind = "config"
	KindTransport ErrorKind = "transport"
	KindIntegrity ErrorKind = "integrity"
	KindCanceled  ErrorKind = "canceled"
	KindUnknown   ErrorKind = "unknown"
)

// Kind reports which class of failure err belongs to.
func Kind(err error) ErrorKind {
	var buildErr *fetch.RequestBuildError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, hash.ErrUnknownAlgorithm),
		errors.Is(err, hash.ErrNoAcceptedValues),
		errors.As(err, &buildErr):
		return KindConfig
	case errors.Is(err, hash.ErrIntegrity):
		return KindIntegrity
	// Exhaustion wraps per-attempt deadline errors, so check it first.
	case errors.Is(err, fetch.ErrExhausted), errors.Is(err, fetch.ErrTransport):
		return KindTransport
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}
