package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/snaptrace/snaptrace-api/internal/config"
	"github.com/snaptrace/snaptrace-api/internal/generation"
	"github.com/snaptrace/snaptrace-api/internal/metrics"
	"github.com/snaptrace/snaptrace-api/internal/retry"
	"google.golang.org/genai"
)

const actionCaption = "gemini caption"

// promptTemplate is the text part of the user turn.
var promptTemplate = template.Must(template.New("caption").Parse(
	"{{if .ImageLink}}Image link: {{.ImageLink}}\n{{end}}Prompt: {{.Prompt}}\nGenerate a caption."))

type promptData struct {
	ImageLink string
	Prompt    string
}

// contentGenerator is the subset of *genai.Models used by CaptionGenerator.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// CaptionGenerator implements generation.CaptionGenerator using Gemini.
type CaptionGenerator struct {
	models      contentGenerator
	model       string
	systemText  string
	temperature float64
	retry       *retry.Executor
	metrics     *metrics.Registry
	logger      *slog.Logger
}

var _ generation.CaptionGenerator = (*CaptionGenerator)(nil)

// Options carries the caption settings shared with the default caption
// backend.
type Options struct {
	SystemText  string
	Temperature float64
}

// NewCaptionGenerator creates a CaptionGenerator with a Gemini API client.
//
// Parameters:
//   - ctx: Context for client initialization
//   - cfg: API key, model name and an optional base URL override
//   - httpCfg: per-request timeout and retry policy
//   - opts: system instruction and sampling temperature
//   - registry: caption metrics sink; a nil registry gets a private one
//   - logger: A structured logger for operation logging
//
// Returns:
//   - A ready CaptionGenerator or an error wrapping generation.ErrInvalidConfig
func NewCaptionGenerator(
	ctx context.Context,
	cfg config.GeminiConfig,
	httpCfg config.HTTPClientConfig,
	opts Options,
	registry *metrics.Registry,
	logger *slog.Logger,
) (*CaptionGenerator, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: gemini model cannot be empty", generation.ErrInvalidConfig)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: httpCfg.Timeout},
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newCaptionGenerator(client.Models, cfg.Model, httpCfg.Retry, opts, registry, logger), nil
}

func newCaptionGenerator(
	models contentGenerator,
	model string,
	retryCfg config.RetryConfig,
	opts Options,
	registry *metrics.Registry,
	logger *slog.Logger,
) *CaptionGenerator {
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	logger = logger.With("component", "gemini_caption_generator")

	return &CaptionGenerator{
		models:      models,
		model:       model,
		systemText:  opts.SystemText,
		temperature: opts.Temperature,
		retry: retry.NewExecutor(retry.Policy{
			MaxAttempts: retryCfg.MaxAttempts,
			BaseDelay:   retryCfg.BaseDelay,
			MaxDelay:    retryCfg.MaxDelay,
		}, logger),
		metrics: registry,
		logger:  logger,
	}
}

// Caption asks Gemini for a caption of the image at imageURL. A response
// without text yields an empty caption.
func (g *CaptionGenerator) Caption(ctx context.Context, imageURL, prompt string) (string, error) {
	contents, err := buildContents(imageURL, prompt)
	if err != nil {
		return "", err
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(g.temperature)),
	}
	if g.systemText != "" {
		genConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: g.systemText}},
		}
	}

	begin := time.Now()
	caption, err := retry.Run(ctx, g.retry, actionCaption, func(ctx context.Context) (string, error) {
		resp, err := g.models.GenerateContent(ctx, g.model, contents, genConfig)
		if err != nil {
			return "", mapError(err)
		}
		return extractCaption(resp)
	})
	g.metrics.RecordCaption(time.Since(begin), err == nil)
	if err != nil {
		return "", fmt.Errorf("gemini caption: %w", err)
	}

	if caption == "" {
		g.logger.WarnContext(ctx, "gemini returned no caption text, using empty caption")
	}
	return caption, nil
}

// buildContents renders the single user turn. A data URI image is attached
// as an inline part; any other reference is passed as a link in the text.
func buildContents(imageURL, prompt string) ([]*genai.Content, error) {
	data := promptData{Prompt: prompt}
	var parts []*genai.Part

	if blob, ok, err := decodeDataURI(imageURL); err != nil {
		return nil, err
	} else if ok {
		parts = append(parts, &genai.Part{InlineData: blob})
	} else {
		data.ImageLink = imageURL
	}

	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render caption prompt: %w", err)
	}
	parts = append(parts, &genai.Part{Text: buf.String()})

	return []*genai.Content{{Role: "user", Parts: parts}}, nil
}

// decodeDataURI parses a base64 data URI. ok is false when uri is not one.
func decodeDataURI(uri string) (*genai.Blob, bool, error) {
	rest, found := strings.CutPrefix(uri, "data:")
	if !found {
		return nil, false, nil
	}

	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return nil, false, fmt.Errorf("%w: malformed data URI", generation.ErrInvalidResponse)
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, false, fmt.Errorf("%w: data URI is not base64 encoded", generation.ErrInvalidResponse)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, false, fmt.Errorf("%w: decode data URI: %v", generation.ErrInvalidResponse, err)
	}
	return &genai.Blob{MIMEType: mimeType, Data: raw}, true, nil
}

// extractCaption returns the trimmed text of the first candidate that has
// any. Safety blocking is an error only when no candidate carries text.
func extractCaption(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}

	blocked := false
	for _, candidate := range resp.Candidates {
		if candidate == nil {
			continue
		}
		if candidate.FinishReason == genai.FinishReasonSafety {
			blocked = true
			continue
		}
		if caption := candidateText(candidate); caption != "" {
			return caption, nil
		}
	}

	if blocked {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	return "", nil
}

func candidateText(candidate *genai.Candidate) string {
	if candidate.Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(text.String())
}
