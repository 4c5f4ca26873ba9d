package parse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(ClientConfig{
		BaseURL:   url,
		APIKey:    "test-key",
		ProjectID: "proj-1",
	}, nil)
}

func TestClient_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/parsing/upload", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "invoice.pdf", header.Filename)

		w.Write([]byte(`{"id": "job-123"}`))
	}))
	defer srv.Close()

	jobID, err := newTestClient(srv.URL).Upload(context.Background(), []byte("%PDF-1.4"), "invoice.pdf")

	require.NoError(t, err)
	assert.Equal(t, "job-123", jobID)
}

func TestClient_Upload_MissingJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Upload(context.Background(), []byte("x"), "a.pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "job id")
}

func TestClient_PollStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/parsing/job/job-123", r.URL.Path)
		w.Write([]byte(`{"status": "PENDING"}`))
	}))
	defer srv.Close()

	status, err := newTestClient(srv.URL).PollStatus(context.Background(), "job-123")

	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)
}

func TestClient_PollStatus_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).PollStatus(context.Background(), "job-123")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_FetchResult_Direct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/parsing/job/job-123/result/markdown", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "proj-1", r.Header.Get("X-Project-ID"))
		w.Write([]byte("# Invoice INV-42\n| item | amount |"))
	}))
	defer srv.Close()

	md, err := newTestClient(srv.URL).FetchResult(context.Background(), "job-123")

	require.NoError(t, err)
	assert.Contains(t, md, "INV-42")
}

func TestClient_FetchResult_PresignedRedirect(t *testing.T) {
	presigned := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The presigned URL must be fetched without credentials.
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte("redirected markdown"))
	}))
	defer presigned.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", presigned.URL+"/signed")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	md, err := newTestClient(srv.URL).FetchResult(context.Background(), "job-123")

	require.NoError(t, err)
	assert.Equal(t, "redirected markdown", md)
}

func TestClient_FetchResult_FailureIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"detail": "invalid project"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchResult(context.Background(), "job-123")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "invalid project")
}
