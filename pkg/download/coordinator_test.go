package download_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glorpus-work/mcbundle/pkg/download"
	"github.com/glorpus-work/mcbundle/pkg/download/mocks"
	"github.com/glorpus-work/mcbundle/pkg/fetch"
	"github.com/glorpus-work/mcbundle/pkg/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// recorder collects events from concurrent workers.
type recorder struct {
	mu     sync.Mutex
	events []download.Event
}

func (r *recorder) OnEvent(e download.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t download.EventType) []download.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []download.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) forSink(sink string) []download.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []download.Event
	for _, e := range r.events {
		if e.Request.Sink == sink {
			out = append(out, e)
		}
	}
	return out
}

// fakeFetcher serves payloads from memory and tracks how many fetches overlap.
type fakeFetcher struct {
	payloads map[string][]byte
	delay    time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string, _ func(int, error)) ([]byte, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(f.delay):
	}

	body, ok := f.payloads[rawURL]
	if !ok {
		return nil, &fetch.ExhaustedError{URL: rawURL, Attempts: 1, Err: errors.New("not found")}
	}
	return body, nil
}

func sha1Of(t *testing.T, b []byte) string {
	t.Helper()
	d, err := hash.Digest(hash.SHA1, b)
	require.NoError(t, err)
	return d
}

func makeBatch(t *testing.T, n int) ([]download.Request, map[string][]byte) {
	t.Helper()
	payloads := make(map[string][]byte, n)
	batch := make([]download.Request, 0, n)
	for i := 0; i < n; i++ {
		url := fmt.Sprintf("https://cdn.example.com/mods/mod-%03d.jar", i)
		body := []byte(fmt.Sprintf("mod %d contents", i))
		payloads[url] = body
		batch = append(batch, download.Request{
			URL:         url,
			Sink:        fmt.Sprintf("mods/mod-%03d.jar", i),
			Constraints: []hash.Constraint{hash.NewConstraint(hash.SHA1, sha1Of(t, body))},
		})
	}
	return batch, payloads
}

func TestNew_Defaults(t *testing.T) {
	c := download.New(&fakeFetcher{}, download.Config{})
	assert.Equal(t, 10, c.Config().Concurrency)
	assert.Equal(t, download.Config{Concurrency: 10, CheckHashes: true}, download.DefaultConfig())
}

func TestDownload_EmptyBatch(t *testing.T) {
	c := download.New(&fakeFetcher{}, download.DefaultConfig())
	assert.NoError(t, c.Download(context.Background(), nil, 4))
}

func TestDownload_AllComplete(t *testing.T) {
	batch, payloads := makeBatch(t, 25)
	rec := &recorder{}
	c := download.New(&fakeFetcher{payloads: payloads, delay: time.Millisecond}, download.DefaultConfig(), rec)

	require.NoError(t, c.Download(context.Background(), batch, 4))

	completes := rec.ofType(download.EventComplete)
	require.Len(t, completes, len(batch))
	assert.Len(t, rec.ofType(download.EventStart), len(batch))

	for i, e := range completes {
		assert.Equal(t, i, e.Ordinal, "ordinals must be observed in strictly increasing order")
		assert.Equal(t, len(batch), e.Total)
		require.NoError(t, hash.VerifyAll(e.Payload, e.Request.Constraints))
	}
}

func TestDownload_ConcurrencyBound(t *testing.T) {
	for _, limit := range []int{1, 2, 5, 16} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			batch, payloads := makeBatch(t, 40)
			f := &fakeFetcher{payloads: payloads, delay: 2 * time.Millisecond}
			c := download.New(f, download.DefaultConfig())

			require.NoError(t, c.Download(context.Background(), batch, limit))
			assert.LessOrEqual(t, int(f.maxInFlight.Load()), limit)
			assert.Equal(t, int32(len(batch)), f.calls.Load())
		})
	}
}

func TestDownload_DefaultConcurrencyFromConfig(t *testing.T) {
	batch, payloads := makeBatch(t, 20)
	f := &fakeFetcher{payloads: payloads, delay: 2 * time.Millisecond}
	c := download.New(f, download.Config{Concurrency: 3, CheckHashes: true})

	require.NoError(t, c.Download(context.Background(), batch, 0))
	assert.LessOrEqual(t, int(f.maxInFlight.Load()), 3)
}

func TestDownload_FailingRequestDoesNotLoseSiblings(t *testing.T) {
	var hits sync.Map
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := hits.LoadOrStore(r.URL.Path, new(atomic.Int32))
		n.(*atomic.Int32).Add(1)
		if r.URL.Path == "/two.jar" {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		_, _ = w.Write([]byte("payload " + r.URL.Path))
	}))
	defer server.Close()

	f := fetch.New(server.Client(), fetch.Options{MaxAttempts: 5, Timeout: 40 * time.Millisecond})
	rec := &recorder{}
	c := download.New(f, download.DefaultConfig(), rec)

	batch := []download.Request{
		{URL: server.URL + "/one.jar", Sink: "one"},
		{URL: server.URL + "/two.jar", Sink: "two"},
		{URL: server.URL + "/three.jar", Sink: "three"},
	}

	err := c.Download(context.Background(), batch, 2)
	require.Error(t, err)

	var reqErr *download.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "two", reqErr.Request.Sink)
	assert.Equal(t, download.KindTransport, download.Kind(err))

	var exhausted *fetch.ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 5, exhausted.Attempts)

	completed := map[string]bool{}
	for _, e := range rec.ofType(download.EventComplete) {
		completed[e.Request.Sink] = true
	}
	assert.Equal(t, map[string]bool{"one": true, "three": true}, completed)

	var attempts []int
	for _, e := range rec.forSink("two") {
		if e.Type == download.EventRetry {
			attempts = append(attempts, e.Attempt)
			assert.ErrorIs(t, e.Err, fetch.ErrTransport)
		}
	}
	assert.Equal(t, []int{2, 3, 4, 5}, attempts)

	v, _ := hits.Load("/two.jar")
	assert.Equal(t, int32(5), v.(*atomic.Int32).Load())
}

func TestDownload_EventOrderPerRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	observer := mocks.NewMockObserver(ctrl)

	body := []byte("forge installer")
	req := download.Request{
		URL:         "https://maven.example.com/forge-installer.jar",
		Sink:        "forge-installer.jar",
		Constraints: []hash.Constraint{hash.NewConstraint(hash.SHA1, sha1Of(t, body))},
	}
	transient := &fetch.TransportError{URL: req.URL, StatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")}

	fetcher.EXPECT().Fetch(gomock.Any(), req.URL, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, onRetry func(int, error)) ([]byte, error) {
			onRetry(2, transient)
			onRetry(3, transient)
			return body, nil
		},
	).Times(1)

	gomock.InOrder(
		observer.EXPECT().OnEvent(download.Event{Type: download.EventStart, Request: req, Total: 1}),
		observer.EXPECT().OnEvent(download.Event{Type: download.EventRetry, Request: req, Total: 1, Attempt: 2, Err: transient}),
		observer.EXPECT().OnEvent(download.Event{Type: download.EventRetry, Request: req, Total: 1, Attempt: 3, Err: transient}),
		observer.EXPECT().OnEvent(download.Event{Type: download.EventComplete, Request: req, Total: 1, Ordinal: 0, Payload: body}),
	)

	c := download.New(fetcher, download.DefaultConfig(), observer)
	require.NoError(t, c.Download(context.Background(), []download.Request{req}, 1))
}

func TestDownload_IntegrityMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)

	req := download.Request{
		URL:         "https://cdn.example.com/server.jar",
		Sink:        "server.jar",
		Constraints: []hash.Constraint{hash.NewConstraint(hash.SHA1, "abc123")},
	}
	fetcher.EXPECT().Fetch(gomock.Any(), req.URL, gomock.Any()).Return([]byte("tampered"), nil).Times(1)

	rec := &recorder{}
	c := download.New(fetcher, download.DefaultConfig(), rec)

	err := c.Download(context.Background(), []download.Request{req}, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, hash.ErrIntegrity)
	assert.Equal(t, download.KindIntegrity, download.Kind(err))
	assert.Empty(t, rec.ofType(download.EventComplete))

	failed := rec.ofType(download.EventFailed)
	require.Len(t, failed, 1)
	assert.Nil(t, failed[0].Payload)
}

func TestDownload_UnknownAlgorithmSkipsFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl) // no Fetch expected

	req := download.Request{
		URL:         "https://cdn.example.com/mod.jar",
		Sink:        "mods/mod.jar",
		Constraints: []hash.Constraint{hash.NewConstraint("crc64", "1234")},
	}

	rec := &recorder{}
	c := download.New(fetcher, download.DefaultConfig(), rec)

	err := c.Download(context.Background(), []download.Request{req}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, hash.ErrUnknownAlgorithm)
	assert.Equal(t, download.KindConfig, download.Kind(err))
	assert.Empty(t, rec.ofType(download.EventRetry))
	assert.Len(t, rec.ofType(download.EventStart), 1)
}

func TestDownload_CheckHashesDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)

	req := download.Request{
		URL:  "https://cdn.example.com/mod.jar",
		Sink: "mods/mod.jar",
		Constraints: []hash.Constraint{
			hash.NewConstraint(hash.SHA1, "abc123"),
			hash.NewConstraint("crc64", "1234"),
		},
	}
	fetcher.EXPECT().Fetch(gomock.Any(), req.URL, gomock.Any()).Return([]byte("anything"), nil)

	rec := &recorder{}
	c := download.New(fetcher, download.Config{Concurrency: 1, CheckHashes: false}, rec)

	require.NoError(t, c.Download(context.Background(), []download.Request{req}, 1))
	assert.Len(t, rec.ofType(download.EventComplete), 1)
}

func TestDownload_StopsDispatchAfterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)

	bad := download.Request{URL: "https://cdn.example.com/bad.jar", Sink: "bad"}
	fetcher.EXPECT().Fetch(gomock.Any(), bad.URL, gomock.Any()).
		Return(nil, &fetch.ExhaustedError{URL: bad.URL, Attempts: 5, Err: errors.New("timeout")}).Times(1)

	batch := []download.Request{
		bad,
		{URL: "https://cdn.example.com/queued-1.jar", Sink: "queued-1"},
		{URL: "https://cdn.example.com/queued-2.jar", Sink: "queued-2"},
	}

	c := download.New(fetcher, download.DefaultConfig())
	err := c.Download(context.Background(), batch, 1)

	var reqErr *download.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "bad", reqErr.Request.Sink)
	assert.Contains(t, err.Error(), "bad: transport error")
}

func TestDownload_CanceledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, _ := makeBatch(t, 3)
	c := download.New(fetcher, download.DefaultConfig())
	assert.ErrorIs(t, c.Download(ctx, batch, 2), context.Canceled)
}

func TestDownload_Idempotent(t *testing.T) {
	batch, payloads := makeBatch(t, 12)
	delete(payloads, batch[4].URL)
	delete(payloads, batch[9].URL)

	outcome := func() (completed []string, err error) {
		rec := &recorder{}
		c := download.New(&fakeFetcher{payloads: payloads}, download.DefaultConfig(), rec)
		// Concurrency 1 walks the batch in order, so both runs stop at the same request.
		err = c.Download(context.Background(), batch, 1)
		for _, e := range rec.ofType(download.EventComplete) {
			completed = append(completed, e.Request.Sink)
		}
		sort.Strings(completed)
		return completed, err
	}

	first, err1 := outcome()
	second, err2 := outcome()
	assert.Equal(t, first, second)
	require.Error(t, err1)
	require.Error(t, err2)
	assert.Equal(t, err1.Error(), err2.Error())
	assert.Len(t, first, 4)
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want download.ErrorKind
	}{
		{"nil", nil, ""},
		{"unknown algorithm", fmt.Errorf("wrap: %w", hash.ErrUnknownAlgorithm), download.KindConfig},
		{"bad url", &fetch.RequestBuildError{URL: "::", Err: errors.New("parse")}, download.KindConfig},
		{"integrity", &hash.IntegrityError{Algorithm: hash.SHA1, Got: "a", Accepted: []string{"b"}}, download.KindIntegrity},
		{"exhausted timeout", &fetch.ExhaustedError{URL: "u", Attempts: 5, Err: &fetch.TransportError{URL: "u", Err: context.DeadlineExceeded}}, download.KindTransport},
		{"canceled", context.Canceled, download.KindCanceled},
		{"other", errors.New("disk full"), download.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, download.Kind(tt.err))
		})
	}
}
