package yandex

import (
	"bytes"
	"context"
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
)

const actionGPTCompletion = "gpt completion"

// captionTemplate is the single user turn sent to the completion endpoint.
var captionTemplate = template.Must(template.New("caption").Parse(
	"{{.SystemText}}\n\nImage link: {{.ImageRef}}\nPrompt: {{.Prompt}}\nGenerate a caption."))

type captionData struct {
	SystemText string
	ImageRef   string
	Prompt     string
}

type completionRequest struct {
	ModelURI          string            `json:"modelUri"`
	CompletionOptions completionOptions `json:"completionOptions"`
	Messages          []chatMessage     `json:"messages"`
}

type completionOptions struct {
	Stream           bool             `json:"stream"`
	Temperature      float64          `json:"temperature"`
	MaxTokens        int              `json:"maxTokens"`
	ReasoningOptions reasoningOptions `json:"reasoningOptions"`
}

type reasoningOptions struct {
	Mode string `json:"mode"`
}

type chatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message chatMessage `json:"message"`
		} `json:"alternatives"`
	} `json:"result"`
}

// GPTGenerator implements generation.CaptionGenerator with YandexGPT.
type GPTGenerator struct {
	client  *Client
	cfg     config.GPTConfig
	metrics *metrics.Registry
	logger  *slog.Logger
}

var _ generation.CaptionGenerator = (*GPTGenerator)(nil)

// NewGPTGenerator creates a GPTGenerator. A nil registry gets a private one.
func NewGPTGenerator(
	client *Client,
	cfg config.GPTConfig,
	registry *metrics.Registry,
	logger *slog.Logger,
) (*GPTGenerator, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: gpt endpoint cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: gpt model cannot be empty", generation.ErrInvalidConfig)
	}
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	if logger == nil {
		logger = client.logger
	}

	return &GPTGenerator{
		client:  client,
		cfg:     cfg,
		metrics: registry,
		logger:  logger.With("component", "gpt_generator"),
	}, nil
}

// Caption asks the completion model for a caption. The first alternative with
// non-blank text wins; a response without one yields an empty caption.
func (g *GPTGenerator) Caption(ctx context.Context, imageURL, prompt string) (string, error) {
	text, err := buildCaptionMessage(g.cfg.SystemText, imageURL, prompt)
	if err != nil {
		return "", err
	}

	req := completionRequest{
		ModelURI: g.client.modelURI("gpt", g.cfg.Model),
		CompletionOptions: completionOptions{
			Stream:           false,
			Temperature:      g.cfg.Temperature,
			MaxTokens:        g.cfg.MaxTokens,
			ReasoningOptions: reasoningOptions{Mode: "DISABLED"},
		},
		Messages: []chatMessage{{Role: "user", Text: text}},
	}

	begin := time.Now()
	resp, err := retry.Run(ctx, g.client.retry, actionGPTCompletion, func(ctx context.Context) (completionResponse, error) {
		var resp completionResponse
		err := g.client.doJSON(ctx, actionGPTCompletion, http.MethodPost, g.cfg.Endpoint, req, &resp)
		return resp, err
	})
	g.metrics.RecordCaption(time.Since(begin), err == nil)
	if err != nil {
		return "", fmt.Errorf("caption completion: %w", err)
	}

	for _, alt := range resp.Result.Alternatives {
		if caption := strings.TrimSpace(alt.Message.Text); caption != "" {
			return caption, nil
		}
	}

	g.logger.WarnContext(ctx, "completion returned no usable alternative, using empty caption",
		"alternatives", len(resp.Result.Alternatives))
	return "", nil
}

// buildCaptionMessage renders the user turn. Data URIs are replaced by a
// placeholder.
func buildCaptionMessage(systemText, imageURL, prompt string) (string, error) {
	ref := imageURL
	if strings.HasPrefix(imageURL, "data:") {
		ref = "(inline image)"
	}

	var buf bytes.Buffer
	if err := captionTemplate.Execute(&buf, captionData{
		SystemText: systemText,
		ImageRef:   ref,
		Prompt:     prompt,
	}); err != nil {
		return "", fmt.Errorf("render caption message: %w", err)
	}
	return buf.String(), nil
}
