package yandex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/snaptrace/snaptrace-api/internal/config"
	"github.com/snaptrace/snaptrace-api/internal/generation"
	"github.com/snaptrace/snaptrace-api/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// artBackend fakes the image start endpoint and the operations endpoint.
type artBackend struct {
	rec   *recorder
	start func(hit int) (int, string)
	poll  func(hit int) (int, string)

	startHits atomic.Int32
	pollHits  atomic.Int32
}

func newArtBackend(t *testing.T) (*artBackend, *httptest.Server) {
	b := &artBackend{
		rec: &recorder{},
		start: func(int) (int, string) {
			return http.StatusOK, `{"id":"op-1","done":false}`
		},
		poll: func(int) (int, string) {
			return http.StatusOK, `{"id":"op-1","done":true,"response":{"image":"aGVsbG8="}}`
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.rec.record(t, r)
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/imageGenerationAsync":
			status, body := b.start(int(b.startHits.Add(1)))
			writeJSON(w, status, body)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/operations/"):
			status, body := b.poll(int(b.pollHits.Add(1)))
			writeJSON(w, status, body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return b, srv
}

func testArtConfig(srv *httptest.Server) config.ArtConfig {
	return config.ArtConfig{
		Endpoint:           srv.URL + "/imageGenerationAsync",
		OperationsEndpoint: srv.URL + "/operations",
		Model:              "yandex-art/latest",
		Seed:               1863,
		AspectWidth:        2,
		AspectHeight:       1,
		PollInterval:       5 * time.Millisecond,
		PollTimeout:        2 * time.Second,
	}
}

func newTestArt(t *testing.T, cfg config.ArtConfig, creds config.YandexConfig) (*ArtGenerator, *metrics.Registry) {
	t.Helper()
	registry := metrics.NewRegistry()
	gen, err := NewArtGenerator(newTestClient(t, creds), cfg, registry, setupTestLogger())
	require.NoError(t, err)
	return gen, registry
}

func TestArtGenerator_HappyPath(t *testing.T) {
	t.Parallel()

	backend, srv := newArtBackend(t)
	backend.poll = func(hit int) (int, string) {
		if hit == 1 {
			return http.StatusOK, `{"id":"op-1","done":false}`
		}
		return http.StatusOK, `{"id":"op-1","done":true,"response":{"image":"aGVsbG8="}}`
	}
	gen, registry := newTestArt(t, testArtConfig(srv), testCreds())

	result, err := gen.Generate(context.Background(), "a lighthouse at dusk")
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", result.URL)

	start := backend.rec.first(http.MethodPost)
	assert.Equal(t, "Bearer t1.iam-token", start.Header.Get("Authorization"))
	assert.Equal(t, "b1gfolder", start.Header.Get("x-folder-id"))
	assert.Equal(t, "art://b1gfolder/yandex-art/latest", start.Body["modelUri"])

	options := start.Body["generationOptions"].(map[string]any)
	assert.EqualValues(t, 1863, options["seed"])
	aspect := options["aspectRatio"].(map[string]any)
	assert.EqualValues(t, 2, aspect["widthRatio"])
	assert.EqualValues(t, 1, aspect["heightRatio"])

	messages := start.Body["messages"].([]any)
	require.Len(t, messages, 1)
	message := messages[0].(map[string]any)
	assert.Equal(t, "1", message["weight"])
	assert.Equal(t, "a lighthouse at dusk", message["text"])

	poll := backend.rec.first(http.MethodGet)
	assert.Equal(t, "/operations/op-1", poll.Path)
	assert.Equal(t, "b1gfolder", poll.Header.Get("x-folder-id"))

	snap := registry.Snapshot()
	assert.EqualValues(t, 1, snap.ImageStartAttempts)
	assert.EqualValues(t, 1, snap.ImageStartSuccesses)
	assert.EqualValues(t, 2, snap.ImagePollAttempts)
	assert.EqualValues(t, 2, snap.ImagePollSuccesses)
}

func TestArtGenerator_StartAlreadyDoneSkipsPolling(t *testing.T) {
	t.Parallel()

	backend, srv := newArtBackend(t)
	backend.start = func(int) (int, string) {
		return http.StatusOK, `{"id":"op-1","done":true,"response":{"image":"aW1n"}}`
	}
	gen, _ := newTestArt(t, testArtConfig(srv), testCreds())

	result, err := gen.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,aW1n", result.URL)
	assert.EqualValues(t, 0, backend.pollHits.Load())
}

func TestArtGenerator_StartRetriesServerErrors(t *testing.T) {
	t.Parallel()

	backend, srv := newArtBackend(t)
	backend.start = func(hit int) (int, string) {
		if hit == 1 {
			return http.StatusInternalServerError, `{"error":"internal"}`
		}
		return http.StatusOK, `{"id":"op-1","done":false}`
	}
	gen, registry := newTestArt(t, testArtConfig(srv), testCreds())

	_, err := gen.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.EqualValues(t, 2, backend.startHits.Load())

	snap := registry.Snapshot()
	assert.EqualValues(t, 1, snap.ImageStartAttempts, "one sample covers the retried call")
	assert.EqualValues(t, 1, snap.ImageStartSuccesses)
}

func TestArtGenerator_StartClientErrorIsFatal(t *testing.T) {
	t.Parallel()

	backend, srv := newArtBackend(t)
	backend.start = func(int) (int, string) {
		return http.StatusBadRequest, `{"error":"bad prompt"}`
	}
	gen, registry := newTestArt(t, testArtConfig(srv), testCreds())

	_, err := gen.Generate(context.Background(), "prompt")
	require.Error(t, err)

	var statusErr *generation.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
	assert.Equal(t, actionArtStart, statusErr.Action)
	assert.EqualValues(t, 1, backend.startHits.Load())
	assert.EqualValues(t, 0, backend.pollHits.Load())

	snap := registry.Snapshot()
	assert.EqualValues(t, 1, snap.ImageStartAttempts)
	assert.EqualValues(t, 0, snap.ImageStartSuccesses)
}

func TestArtGenerator_DoneWithoutImage(t *testing.T) {
	t.Parallel()

	backend, srv := newArtBackend(t)
	backend.poll = func(int) (int, string) {
		return http.StatusOK, `{"id":"op-1","done":true,"response":{}}`
	}
	gen, _ := newTestArt(t, testArtConfig(srv), testCreds())

	_, err := gen.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, generation.ErrEmptyImage)
}

func TestArtGenerator_DoneWithOperationError(t *testing.T) {
	t.Parallel()

	backend, srv := newArtBackend(t)
	backend.poll = func(int) (int, string) {
		return http.StatusOK, `{"id":"op-1","done":true,"error":{"code":3,"message":"prompt rejected"}}`
	}
	gen, _ := newTestArt(t, testArtConfig(srv), testCreds())

	_, err := gen.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt rejected")
	assert.EqualValues(t, 1, backend.pollHits.Load())
}

func TestArtGenerator_PollTimeout(t *testing.T) {
	t.Parallel()

	backend, srv := newArtBackend(t)
	backend.poll = func(int) (int, string) {
		return http.StatusOK, `{"id":"op-1","done":false}`
	}
	cfg := testArtConfig(srv)
	cfg.PollTimeout = 60 * time.Millisecond
	gen, _ := newTestArt(t, cfg, testCreds())

	_, err := gen.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, generation.ErrPollTimeout)
	assert.Greater(t, backend.pollHits.Load(), int32(1))
}

func TestArtGenerator_PollRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	backend, srv := newArtBackend(t)
	backend.poll = func(hit int) (int, string) {
		if hit == 1 {
			return http.StatusServiceUnavailable, `{"error":"busy"}`
		}
		return http.StatusOK, `{"id":"op-1","done":true,"response":{"image":"aGVsbG8="}}`
	}
	gen, registry := newTestArt(t, testArtConfig(srv), testCreds())

	_, err := gen.Generate(context.Background(), "prompt")
	require.NoError(t, err)

	snap := registry.Snapshot()
	assert.EqualValues(t, 2, snap.ImagePollAttempts, "each poll attempt is sampled")
	assert.EqualValues(t, 1, snap.ImagePollSuccesses)
}

func TestArtGenerator_PollKeepsGoingAfterExhaustedRetries(t *testing.T) {
	t.Parallel()

	backend, srv := newArtBackend(t)
	backend.poll = func(hit int) (int, string) {
		// the first poll burns its whole retry budget
		if hit <= 3 {
			return http.StatusBadGateway, `{"error":"gateway"}`
		}
		return http.StatusOK, `{"id":"op-1","done":true,"response":{"image":"aGVsbG8="}}`
	}
	gen, _ := newTestArt(t, testArtConfig(srv), testCreds())

	_, err := gen.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.EqualValues(t, 4, backend.pollHits.Load())
}

func TestArtGenerator_PollClientErrorIsFatal(t *testing.T) {
	t.Parallel()

	backend, srv := newArtBackend(t)
	backend.poll = func(int) (int, string) {
		return http.StatusNotFound, `{"error":"no such operation"}`
	}
	gen, _ := newTestArt(t, testArtConfig(srv), testCreds())

	_, err := gen.Generate(context.Background(), "prompt")
	var statusErr *generation.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, actionArtPoll, statusErr.Action)
	assert.NotErrorIs(t, err, generation.ErrPollTimeout)
	assert.EqualValues(t, 1, backend.pollHits.Load())
}

func TestArtGenerator_ParentCancellationIsNotATimeout(t *testing.T) {
	t.Parallel()

	backend, srv := newArtBackend(t)
	backend.poll = func(int) (int, string) {
		return http.StatusOK, `{"id":"op-1","done":false}`
	}
	gen, _ := newTestArt(t, testArtConfig(srv), testCreds())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := gen.Generate(ctx, "prompt")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, generation.ErrPollTimeout)
}

func TestArtGenerator_APIKeyAuthorization(t *testing.T) {
	t.Parallel()

	backend, srv := newArtBackend(t)
	gen, _ := newTestArt(t, testArtConfig(srv), config.YandexConfig{FolderID: "b1gfolder", APIKey: "AQVN-secret"})

	_, err := gen.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Api-Key AQVN-secret", backend.rec.first(http.MethodPost).Header.Get("Authorization"))
	assert.Equal(t, "Api-Key AQVN-secret", backend.rec.first(http.MethodGet).Header.Get("Authorization"))
}

func TestNewArtGenerator_Validation(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, testCreds())
	valid := config.ArtConfig{
		Endpoint:           "https://art.example/start",
		OperationsEndpoint: "https://art.example/operations",
		Model:              "yandex-art/latest",
		PollInterval:       time.Second,
		PollTimeout:        time.Minute,
	}

	tests := []struct {
		name   string
		client *Client
		mutate func(*config.ArtConfig)
	}{
		{"nil client", nil, func(*config.ArtConfig) {}},
		{"missing endpoint", client, func(c *config.ArtConfig) { c.Endpoint = "" }},
		{"missing operations endpoint", client, func(c *config.ArtConfig) { c.OperationsEndpoint = "" }},
		{"missing model", client, func(c *config.ArtConfig) { c.Model = "" }},
		{"zero poll interval", client, func(c *config.ArtConfig) { c.PollInterval = 0 }},
		{"zero poll timeout", client, func(c *config.ArtConfig) { c.PollTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := NewArtGenerator(tt.client, cfg, nil, nil)
			assert.ErrorIs(t, err, generation.ErrInvalidConfig)
		})
	}

	gen, err := NewArtGenerator(client, valid, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, gen.metrics)
}
