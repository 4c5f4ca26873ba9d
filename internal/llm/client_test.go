package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, maxRetries int) *Client {
	return NewClient(ClientConfig{
		BaseURL:    url,
		APIKey:     "test-key",
		Model:      "test-model",
		MaxRetries: maxRetries,
		RetryBase:  time.Millisecond,
	}, nil)
}

func TestClient_Complete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","choices":[{"message":{"role":"assistant","content":"  {\"a\":1}  "}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 2)
	text, err := client.Complete(context.Background(), "system", "user")

	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)
}

func TestClient_Complete_RetryBoundOnPersistent429(t *testing.T) {
	var attempts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	maxRetries := 3
	client := newTestClient(srv.URL, maxRetries)
	_, err := client.Complete(context.Background(), "system", "user")

	require.Error(t, err)
	assert.Equal(t, int64(maxRetries+1), atomic.LoadInt64(&attempts))
}

func TestClient_Complete_HonorsRetryAfter(t *testing.T) {
	var attempts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&attempts, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 3)
	text, err := client.Complete(context.Background(), "system", "user")

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int64(2), atomic.LoadInt64(&attempts))
}

func TestClient_Complete_NonRetryableStatusIsFatal(t *testing.T) {
	var attempts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad prompt"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5)
	_, err := client.Complete(context.Background(), "system", "user")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int64(1), atomic.LoadInt64(&attempts), "4xx must not be retried")
}

func TestClient_Complete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 1)
	_, err := client.Complete(context.Background(), "system", "user")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestClient_Complete_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(srv.URL, 5)
	_, err := client.Complete(ctx, "system", "user")

	require.Error(t, err)
}
