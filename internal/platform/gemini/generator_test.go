package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/snaptrace/snaptrace-api/internal/config"
	"github.com/snaptrace/snaptrace-api/internal/generation"
	"github.com/snaptrace/snaptrace-api/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() config.RetryConfig {
	return config.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

// fakeModels replays scripted responses and records each request.
type fakeModels struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     []fakeCall
}

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{model: model, contents: contents, config: config})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx].resp, f.responses[idx].err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func newFakeGenerator(models *fakeModels) (*CaptionGenerator, *metrics.Registry) {
	registry := metrics.NewRegistry()
	gen := newCaptionGenerator(models, "gemini-2.0-flash", fastRetry(), Options{
		SystemText:  "You write short photo captions.",
		Temperature: 0.4,
	}, registry, setupTestLogger())
	return gen, registry
}

func TestCaptionGenerator_LinkImage(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []fakeResponse{{resp: textResponse("  A quiet harbour at dawn. ")}}}
	gen, registry := newFakeGenerator(models)

	caption, err := gen.Caption(context.Background(), "https://cdn.example/harbour.jpg", "harbour")
	require.NoError(t, err)
	assert.Equal(t, "A quiet harbour at dawn.", caption)

	require.Len(t, models.calls, 1)
	call := models.calls[0]
	assert.Equal(t, "gemini-2.0-flash", call.model)
	require.NotNil(t, call.config.SystemInstruction)
	assert.Equal(t, "You write short photo captions.", call.config.SystemInstruction.Parts[0].Text)
	require.NotNil(t, call.config.Temperature)
	assert.InDelta(t, 0.4, *call.config.Temperature, 0.0001)

	require.Len(t, call.contents, 1)
	require.Len(t, call.contents[0].Parts, 1)
	assert.Equal(t, "Image link: https://cdn.example/harbour.jpg\nPrompt: harbour\nGenerate a caption.",
		call.contents[0].Parts[0].Text)

	snap := registry.Snapshot()
	assert.EqualValues(t, 1, snap.CaptionAttempts)
	assert.EqualValues(t, 1, snap.CaptionSuccesses)
}

func TestCaptionGenerator_InlineImage(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []fakeResponse{{resp: textResponse("hello")}}}
	gen, _ := newFakeGenerator(models)

	_, err := gen.Caption(context.Background(), "data:image/jpeg;base64,aGVsbG8=", "greeting")
	require.NoError(t, err)

	parts := models.calls[0].contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/jpeg", parts[0].InlineData.MIMEType)
	assert.Equal(t, []byte("hello"), parts[0].InlineData.Data)
	assert.Equal(t, "Prompt: greeting\nGenerate a caption.", parts[1].Text)
}

func TestCaptionGenerator_MalformedDataURI(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []fakeResponse{{resp: textResponse("x")}}}
	gen, _ := newFakeGenerator(models)

	_, err := gen.Caption(context.Background(), "data:image/jpeg;base64,@@@", "p")
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)
	assert.Empty(t, models.calls)
}

func TestCaptionGenerator_EmptyResponse(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []fakeResponse{{resp: &genai.GenerateContentResponse{}}}}
	gen, _ := newFakeGenerator(models)

	caption, err := gen.Caption(context.Background(), "https://cdn.example/a.jpg", "p")
	require.NoError(t, err)
	assert.Empty(t, caption)
}

func TestCaptionGenerator_FirstNonBlankCandidate(t *testing.T) {
	t.Parallel()

	blank := textResponse("   ").Candidates[0]
	blocked := &genai.Candidate{FinishReason: genai.FinishReasonSafety}
	second := textResponse(" Lanterns over the river. ").Candidates[0]

	models := &fakeModels{responses: []fakeResponse{{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{nil, blank, blocked, second},
	}}}}
	gen, _ := newFakeGenerator(models)

	caption, err := gen.Caption(context.Background(), "https://cdn.example/river.jpg", "river")
	require.NoError(t, err)
	assert.Equal(t, "Lanterns over the river.", caption)
}

func TestCaptionGenerator_AllCandidatesBlank(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []fakeResponse{{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{textResponse("").Candidates[0], {FinishReason: genai.FinishReasonStop}},
	}}}}
	gen, _ := newFakeGenerator(models)

	caption, err := gen.Caption(context.Background(), "https://cdn.example/a.jpg", "p")
	require.NoError(t, err)
	assert.Empty(t, caption)
}

func TestCaptionGenerator_SafetyBlock(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []fakeResponse{{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
	}}}}
	gen, registry := newFakeGenerator(models)

	_, err := gen.Caption(context.Background(), "https://cdn.example/a.jpg", "p")
	assert.ErrorIs(t, err, generation.ErrContentBlocked)
	assert.Len(t, models.calls, 1, "blocked content is not retried")
	assert.EqualValues(t, 0, registry.Snapshot().CaptionSuccesses)
}

func TestCaptionGenerator_RetriesUnavailable(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []fakeResponse{
		{err: genai.APIError{Code: http.StatusServiceUnavailable, Message: "overloaded", Status: "UNAVAILABLE"}},
		{err: &genai.APIError{Code: http.StatusTooManyRequests, Message: "quota", Status: "RESOURCE_EXHAUSTED"}},
		{resp: textResponse("third time lucky")},
	}}
	gen, registry := newFakeGenerator(models)

	caption, err := gen.Caption(context.Background(), "https://cdn.example/a.jpg", "p")
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", caption)
	assert.Len(t, models.calls, 3)
	assert.EqualValues(t, 1, registry.Snapshot().CaptionAttempts)
}

func TestCaptionGenerator_ClientErrorIsFatal(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []fakeResponse{
		{err: genai.APIError{Code: http.StatusBadRequest, Message: "API key not valid", Status: "INVALID_ARGUMENT"}},
	}}
	gen, _ := newFakeGenerator(models)

	_, err := gen.Caption(context.Background(), "https://cdn.example/a.jpg", "p")
	var statusErr *generation.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
	assert.Equal(t, actionCaption, statusErr.Action)
	assert.Len(t, models.calls, 1)
}

func TestMapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, mapError(nil))

	plain := errors.New("boom")
	assert.Same(t, plain, mapError(plain))

	mapped := mapError(genai.APIError{Code: 500, Message: "internal"})
	var statusErr *generation.StatusError
	require.True(t, errors.As(mapped, &statusErr))
	assert.True(t, statusErr.Temporary())
	assert.Equal(t, "internal", statusErr.Body)
}

func TestNewCaptionGenerator_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	httpCfg := config.HTTPClientConfig{Timeout: time.Second, Retry: fastRetry()}

	_, err := NewCaptionGenerator(ctx, config.GeminiConfig{APIKey: "k", Model: "m"}, httpCfg, Options{}, nil, nil)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = NewCaptionGenerator(ctx, config.GeminiConfig{Model: "m"}, httpCfg, Options{}, nil, setupTestLogger())
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = NewCaptionGenerator(ctx, config.GeminiConfig{APIKey: "k"}, httpCfg, Options{}, nil, setupTestLogger())
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestNewCaptionGenerator_AgainstFakeServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Waves on rocks."}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	gen, err := NewCaptionGenerator(context.Background(),
		config.GeminiConfig{APIKey: "test-key", Model: "gemini-2.0-flash", BaseURL: srv.URL + "/"},
		config.HTTPClientConfig{Timeout: 2 * time.Second, Retry: fastRetry()},
		Options{SystemText: "caption it"},
		nil, setupTestLogger())
	require.NoError(t, err)

	caption, err := gen.Caption(context.Background(), "https://cdn.example/rocks.jpg", "rocks")
	require.NoError(t, err)
	assert.Equal(t, "Waves on rocks.", caption)
}
