package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(retries int) Config {
	return Config{
		Timeout: 2 * time.Second,
		Retry:   RetryPolicy{MaxRetries: retries, Delay: time.Millisecond},
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{})
	cfg := c.Config()
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.Delay)
}

func TestNew_NegativeDelayRetriesImmediately(t *testing.T) {
	c := New(Config{Retry: RetryPolicy{Delay: -1}})
	assert.Equal(t, time.Duration(0), c.Config().Retry.Delay)
	assert.Equal(t, 2, c.Config().Retry.MaxRetries)
}

func TestNew_NegativeRetriesDisablesRetry(t *testing.T) {
	c := New(Config{Retry: RetryPolicy{MaxRetries: -1}})
	assert.Equal(t, 0, c.Config().Retry.MaxRetries)
}

func TestSend_PostsBodyAndHeaders(t *testing.T) {
	var gotBody, gotAuth, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("Authorization", "Bearer tok")
	resp, err := New(fastConfig(2)).Send(context.Background(), &Request{
		Method: http.MethodPost,
		URL:    srv.URL + "/models/x",
		Header: h,
		Body:   []byte(`{"inputs":"hi"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, `{"inputs":"hi"}`, gotBody)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.True(t, resp.Successful())
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, srv.URL+"/models/x", resp.URL)
	assert.Equal(t, http.MethodPost, resp.Method)

	var v struct{ OK bool }
	require.NoError(t, resp.JSON(&v))
	assert.True(t, v.OK)
	assert.Equal(t, `{"ok":true}`, resp.String())
}

func TestSend_RetriesRetryableStatusThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("done"))
	}))
	defer srv.Close()

	var retried []int
	cfg := fastConfig(2)
	cfg.Retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}

	resp, err := New(cfg).Send(context.Background(), &Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestSend_ReturnsLastResponseWhenRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	resp, err := New(fastConfig(2)).Send(context.Background(), &Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, int32(3), calls.Load())
	assert.False(t, resp.Successful())
}

func TestSend_DoesNotRetryClientErrors(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound} {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(status)
		}))

		resp, err := New(fastConfig(2)).Send(context.Background(), &Request{URL: srv.URL})
		srv.Close()

		require.NoError(t, err)
		assert.Equal(t, status, resp.Status)
		assert.Equal(t, int32(1), calls.Load(), "status %d should not be retried", status)
	}
}

func TestSend_NetworkErrorAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	var retries int
	cfg := fastConfig(2)
	cfg.Retry.OnRetry = func(int, error, time.Duration) { retries++ }

	resp, err := New(cfg).Send(context.Background(), &Request{URL: url})
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.Equal(t, 2, retries)
}

func TestSend_PerAttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := Config{Timeout: 20 * time.Millisecond, Retry: RetryPolicy{MaxRetries: -1}}
	_, err := New(cfg).Send(context.Background(), &Request{URL: srv.URL})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestSend_CanceledContextStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{Timeout: time.Second, Retry: RetryPolicy{MaxRetries: 5, Delay: time.Hour}}
	cfg.Retry.OnRetry = func(int, error, time.Duration) { cancel() }

	_, err := New(cfg).Send(ctx, &Request{URL: srv.URL})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(http.StatusTooManyRequests))
	assert.True(t, ShouldRetry(http.StatusRequestTimeout))
	assert.True(t, ShouldRetry(http.StatusInternalServerError))
	assert.True(t, ShouldRetry(http.StatusBadGateway))
	assert.False(t, ShouldRetry(http.StatusOK))
	assert.False(t, ShouldRetry(http.StatusBadRequest))
	assert.False(t, ShouldRetry(http.StatusUnauthorized))
	assert.False(t, ShouldRetry(http.StatusNotFound))
}
