package yandex

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/snaptrace/snaptrace-api/internal/config"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCreds() config.YandexConfig {
	return config.YandexConfig{FolderID: "b1gfolder", IAMToken: "t1.iam-token"}
}

func testHTTPConfig() config.HTTPClientConfig {
	return config.HTTPClientConfig{
		Timeout: 2 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
		},
	}
}

func newTestClient(t *testing.T, creds config.YandexConfig) *Client {
	t.Helper()
	client, err := NewClient(creds, testHTTPConfig(), setupTestLogger())
	require.NoError(t, err)
	return client
}

// recordedRequest is what a fake backend saw
type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

// recorder collects requests made against a fake backend
type recorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (r *recorder) record(t *testing.T, req *http.Request) {
	t.Helper()
	rec := recordedRequest{Method: req.Method, Path: req.URL.Path, Header: req.Header.Clone()}
	if req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		if len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &rec.Body))
		}
	}
	r.mu.Lock()
	r.requests = append(r.requests, rec)
	r.mu.Unlock()
}

func (r *recorder) count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.requests {
		if req.Method == method {
			n++
		}
	}
	return n
}

func (r *recorder) first(method string) recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req.Method == method {
			return req
		}
	}
	return recordedRequest{}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
