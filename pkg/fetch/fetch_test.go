package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glorpus-work/mcbundle/pkg/auth"
	authmocks "github.com/glorpus-work/mcbundle/pkg/auth/mocks"
	pkgerrors "github.com/glorpus-work/mcbundle/pkg/errors"
	"github.com/glorpus-work/mcbundle/pkg/fetch/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func fastOptions(attempts int) Options {
	return Options{MaxAttempts: attempts, Timeout: time.Second, UserAgent: "test-agent/1.0"}
}

func TestNew_Defaults(t *testing.T) {
	f := New(nil, Options{})
	opts := f.Options()
	assert.Equal(t, 5, opts.MaxAttempts)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, time.Duration(0), opts.RetryDelay)
	assert.Equal(t, "mcbundle/1.0", opts.UserAgent)

	d := DefaultOptions()
	assert.Equal(t, time.Second, d.RetryDelay)
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte("server jar"))
	}))
	defer server.Close()

	opts := fastOptions(3)
	opts.Auth = auth.APIKey{Header: "x-api-key", Key: "secret"}
	f := New(server.Client(), opts)

	body, err := f.Fetch(context.Background(), server.URL, func(int, error) {
		t.Fatal("unexpected retry")
	})
	require.NoError(t, err)
	assert.Equal(t, "server jar", string(body))
}

func TestFetch_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := New(server.Client(), fastOptions(5))

	var attempts []int
	body, err := f.Fetch(context.Background(), server.URL, func(attempt int, err error) {
		attempts = append(attempts, attempt)
		var te *TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, []int{2, 3}, attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_Exhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := New(server.Client(), fastOptions(5))

	retries := 0
	_, err := f.Fetch(context.Background(), server.URL+"/missing.jar", func(int, error) { retries++ })
	require.Error(t, err)

	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, 5, ex.Attempts)
	assert.Equal(t, server.URL+"/missing.jar", ex.URL)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "unexpected status code: 404")

	assert.Equal(t, 4, retries)
	assert.Equal(t, int32(5), calls.Load())
}

func TestFetch_TimeoutIsPerAttempt(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte("late but fine"))
	}))
	defer server.Close()

	f := New(server.Client(), Options{MaxAttempts: 2, Timeout: 100 * time.Millisecond})

	body, err := f.Fetch(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "late but fine", string(body))
}

func TestFetch_WaitsBetweenAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).Return(nil, errors.New("connection refused")).Times(3)

	f := New(doer, Options{MaxAttempts: 3, RetryDelay: time.Second})
	var slept []time.Duration
	f.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, err := f.Fetch(context.Background(), "https://example.com/a.jar", nil)
	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, slept)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFetch_ContextCanceledDuringDelay(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).Return(nil, errors.New("reset by peer")).Times(1)

	f := New(doer, Options{MaxAttempts: 5, RetryDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	_, err := f.Fetch(ctx, "https://example.com/a.jar", func(int, error) { cancel() })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetch_InvalidURLIsNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)

	f := New(doer, fastOptions(5))
	_, err := f.Fetch(context.Background(), "http://[::1", func(int, error) {
		t.Fatal("unexpected retry")
	})

	var be *RequestBuildError
	assert.True(t, errors.As(err, &be))
}

func TestFetch_AuthFailureIsNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	authenticator := authmocks.NewMockAuthenticator(ctrl)
	authenticator.EXPECT().Apply(gomock.Any()).Return(pkgerrors.ErrMissingAPIKey).Times(1)
	doer := mocks.NewMockDoer(ctrl)

	opts := fastOptions(3)
	opts.Auth = authenticator
	f := New(doer, opts)

	_, err := f.Fetch(context.Background(), "https://api.curseforge.com/v1/mods/1/files/2", func(int, error) {
		t.Fatal("unexpected retry")
	})
	require.Error(t, err)
	var buildErr *RequestBuildError
	require.True(t, errors.As(err, &buildErr))
	assert.ErrorIs(t, err, pkgerrors.ErrMissingAPIKey)
}

func TestFetch_MockedResponseBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "/maven/forge.jar", req.URL.Path)
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("installer")),
		}, nil
	})

	f := New(doer, fastOptions(1))
	body, err := f.Fetch(context.Background(), "https://example.com/maven/forge.jar", nil)
	require.NoError(t, err)
	assert.Equal(t, "installer", string(body))
}

func TestFetchJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			_, _ = w.Write([]byte("{not json"))
			return
		}
		_, _ = w.Write([]byte(`{"id":"1.20.1","type":"release"}`))
	}))
	defer server.Close()

	f := New(server.Client(), fastOptions(1))

	var v struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	require.NoError(t, f.FetchJSON(context.Background(), server.URL+"/version.json", &v))
	assert.Equal(t, "1.20.1", v.ID)
	assert.Equal(t, "release", v.Type)

	err := f.FetchJSON(context.Background(), server.URL+"/bad", &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name  string
		conns int
		want  int
	}{
		{name: "concurrency", conns: 8, want: 8},
		{name: "clamped", conns: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewHTTPClient(tt.conns)
			transport, ok := client.Transport.(*http.Transport)
			require.True(t, ok)
			assert.Equal(t, tt.want, transport.MaxIdleConnsPerHost)
			assert.Zero(t, client.Timeout)
		})
	}
}
