package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/glorpus-work/mcbundle/internal/logger"
	"github.com/glorpus-work/mcbundle/pkg/download"
	"github.com/glorpus-work/mcbundle/pkg/errors"
	"github.com/glorpus-work/mcbundle/pkg/fsutil"
)

// sinkWriter stores every completed payload at its sink under root. The
// first write error cancels the batch through cancel and is kept for the
// caller, since observers cannot fail a download themselves.
type sinkWriter struct {
	root   string
	step   string
	hooks  Hooks
	cancel context.CancelFunc

	mu      sync.Mutex
	err     error
	written int
}

func newSinkWriter(root, step string, hooks Hooks, cancel context.CancelFunc) *sinkWriter {
	return &sinkWriter{root: root, step: step, hooks: hooks, cancel: cancel}
}

func (s *sinkWriter) OnEvent(e download.Event) {
	logEvent(s.step, e)

	switch e.Type {
	case download.EventComplete:
		if err := s.write(e.Request.Sink, e.Payload); err != nil {
			s.mu.Lock()
			if s.err == nil {
				s.err = err
			}
			s.mu.Unlock()
			s.cancel()
			return
		}
		emit(s.hooks, Event{Phase: s.step, ID: e.Request.Sink, Msg: fmt.Sprintf("%d/%d", e.Ordinal+1, e.Total)})
	case download.EventRetry:
		emit(s.hooks, Event{Phase: s.step, ID: e.Request.Sink, Msg: fmt.Sprintf("retry %d: %v", e.Attempt, e.Err)})
	}
}

func (s *sinkWriter) write(sink string, payload []byte) error {
	target, err := fsutil.SafeJoin(s.root, sink)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errors.ErrSinkWrite, sink, err)
	}
	if err := fsutil.WriteFileAtomic(target, payload, fsutil.FileModeDefault); err != nil {
		return fmt.Errorf("%w: %s: %w", errors.ErrSinkWrite, sink, err)
	}
	s.mu.Lock()
	s.written++
	s.mu.Unlock()
	return nil
}

// Err returns the first write failure.
func (s *sinkWriter) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Written returns the number of payloads stored.
func (s *sinkWriter) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// logEvent logs download lifecycle events; retries are logged as warnings.
func logEvent(step string, e download.Event) {
	fields := logger.Fields{"step": step, "file": e.Request.String()}
	switch e.Type {
	case download.EventStart:
		logger.Debug("Download started", logger.Fields{"step": step, "file": e.Request.String(), "url": e.Request.URL})
	case download.EventRetry:
		fields["attempt"] = e.Attempt
		fields["error"] = e.Err.Error()
		logger.Warn("Retrying download", fields)
	case download.EventComplete:
		fields["progress"] = fmt.Sprintf("%d/%d", e.Ordinal+1, e.Total)
		fields["size"] = len(e.Payload)
		logger.Debug("Download complete", fields)
	case download.EventFailed:
		fields["kind"] = string(download.Kind(e.Err))
		fields["error"] = e.Err.Error()
		logger.Error("Download failed", fields)
	}
}

// logObserver logs events of batches whose payloads are consumed elsewhere.
func logObserver(step string) download.Observer {
	return download.ObserverFunc(func(e download.Event) { logEvent(step, e) })
}
