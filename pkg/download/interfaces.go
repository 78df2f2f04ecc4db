//go:generate mockgen -destination=./mocks/download.go . Fetcher,Observer

package download

import (
	"context"

	"github.com/glorpus-work/mcbundle/pkg/hash"
)

// Fetcher performs one network fetch with bounded retries. onRetry must be
// called before every re-attempt. *fetch.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, onRetry func(attempt int, err error)) ([]byte, error)
}

// Observer receives lifecycle events. OnEvent is called synchronously from
// the goroutine processing the request, so implementations must be safe for
// concurrent use and should return quickly.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Request is one file to download. Sink is opaque to the coordinator; the
// caller maps it to wherever the payload should end up.
type Request struct {
	URL         string
	Sink        string
	Constraints []hash.Constraint
}

func (r Request) String() string {
	if r.Sink != "" {
		return r.Sink
	}
	return r.URL
}

// EventType is the kind of lifecycle event.
type EventType string

// Lifecycle events emitted for every request.
const (
	EventStart    EventType = "start"
	EventRetry    EventType = "retry"
	EventComplete EventType = "complete"
	EventFailed   EventType = "failed"
)

// Event is a lifecycle notification for a single request.
//
// Start precedes every other event of the same request and retry events are
// ordered by Attempt. Complete carries the verified Payload, the 0-based
// completion Ordinal and the batch Total; Failed carries the terminal Err.
type Event struct {
	Type    EventType
	Request Request
	Ordinal int
	Total   int
	Payload []byte
	Attempt int
	Err     error
}

// Config holds coordinator settings.
type Config struct {
	// Concurrency is used when Download is called with a non-positive bound.
	// Default: 10
	Concurrency int

	// CheckHashes enables integrity verification.
	// Default: true (DefaultConfig)
	CheckHashes bool
}

// DefaultConfig returns the default coordinator settings.
func DefaultConfig() Config {
	return Config{Concurrency: 10, CheckHashes: true}
}
