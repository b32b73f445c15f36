package yandex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/snaptrace/snaptrace-api/internal/config"
	"github.com/snaptrace/snaptrace-api/internal/generation"
	"github.com/snaptrace/snaptrace-api/internal/metrics"
	"github.com/snaptrace/snaptrace-api/internal/retry"
)

const (
	actionArtStart = "art start"
	actionArtPoll  = "art poll"

	imageDataURIPrefix = "data:image/jpeg;base64,"
)

type artRequest struct {
	ModelURI          string               `json:"modelUri"`
	GenerationOptions artGenerationOptions `json:"generationOptions"`
	Messages          []artMessage         `json:"messages"`
}

type artGenerationOptions struct {
	Seed        int64          `json:"seed"`
	AspectRatio artAspectRatio `json:"aspectRatio"`
}

type artAspectRatio struct {
	WidthRatio  int `json:"widthRatio"`
	HeightRatio int `json:"heightRatio"`
}

type artMessage struct {
	Weight string `json:"weight"`
	Text   string `json:"text"`
}

// operation is the long-running operation resource returned by both the
// start and the poll endpoints.
type operation struct {
	ID       string             `json:"id"`
	Done     bool               `json:"done"`
	Response *operationResponse `json:"response,omitempty"`
	Error    *operationError    `json:"error,omitempty"`
}

type operationResponse struct {
	Image string `json:"image"`
}

type operationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ArtGenerator implements generation.ImageGenerator with YandexART.
type ArtGenerator struct {
	client  *Client
	cfg     config.ArtConfig
	metrics *metrics.Registry
	logger  *slog.Logger
}

var _ generation.ImageGenerator = (*ArtGenerator)(nil)

// NewArtGenerator creates an ArtGenerator. A nil registry gets a private one.
func NewArtGenerator(
	client *Client,
	cfg config.ArtConfig,
	registry *metrics.Registry,
	logger *slog.Logger,
) (*ArtGenerator, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.Endpoint == "" || cfg.OperationsEndpoint == "" {
		return nil, fmt.Errorf("%w: art endpoints cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: art model cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.PollInterval <= 0 || cfg.PollTimeout <= 0 {
		return nil, fmt.Errorf("%w: poll interval and timeout must be positive", generation.ErrInvalidConfig)
	}
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	if logger == nil {
		logger = client.logger
	}

	return &ArtGenerator{
		client:  client,
		cfg:     cfg,
		metrics: registry,
		logger:  logger.With("component", "art_generator"),
	}, nil
}

// Generate starts an image operation for prompt and polls it to completion.
// The result URL is a data URI holding the JPEG bytes.
func (g *ArtGenerator) Generate(ctx context.Context, prompt string) (generation.ImageResult, error) {
	op, err := g.start(ctx, prompt)
	if err != nil {
		return generation.ImageResult{}, err
	}

	if !op.Done {
		op, err = g.poll(ctx, op.ID)
		if err != nil {
			return generation.ImageResult{}, err
		}
	}

	image, err := finishedImage(op)
	if err != nil {
		return generation.ImageResult{}, err
	}
	return generation.ImageResult{URL: imageDataURIPrefix + image}, nil
}

// start submits the generation request. The whole retried call counts as one
// start sample.
func (g *ArtGenerator) start(ctx context.Context, prompt string) (operation, error) {
	req := artRequest{
		ModelURI: g.client.modelURI("art", g.cfg.Model),
		GenerationOptions: artGenerationOptions{
			Seed: g.cfg.Seed,
			AspectRatio: artAspectRatio{
				WidthRatio:  g.cfg.AspectWidth,
				HeightRatio: g.cfg.AspectHeight,
			},
		},
		Messages: []artMessage{{Weight: "1", Text: prompt}},
	}

	begin := time.Now()
	op, err := retry.Run(ctx, g.client.retry, actionArtStart, func(ctx context.Context) (operation, error) {
		var op operation
		err := g.client.doJSON(ctx, actionArtStart, http.MethodPost, g.cfg.Endpoint, req, &op)
		return op, err
	})
	g.metrics.RecordImageStart(time.Since(begin), err == nil)
	if err != nil {
		return operation{}, fmt.Errorf("start image operation: %w", err)
	}

	if op.ID == "" && !op.Done {
		return operation{}, fmt.Errorf("%w: start response carries no operation id", generation.ErrInvalidResponse)
	}

	g.logger.DebugContext(ctx, "image operation started", "operation_id", op.ID, "done", op.Done)
	return op, nil
}

// poll fetches the operation until it is done or the poll deadline passes.
// Each fetch is retried on transient errors; a fetch that still fails after
// its retries is logged and polling continues until the deadline.
func (g *ArtGenerator) poll(ctx context.Context, operationID string) (operation, error) {
	pollCtx, cancel := context.WithTimeout(ctx, g.cfg.PollTimeout)
	defer cancel()

	opURL := strings.TrimRight(g.cfg.OperationsEndpoint, "/") + "/" + url.PathEscape(operationID)
	logger := g.logger.With("operation_id", operationID)

	for polls := 1; ; polls++ {
		op, err := retry.Run(pollCtx, g.client.retry, actionArtPoll, func(ctx context.Context) (operation, error) {
			begin := time.Now()
			var op operation
			err := g.client.doJSON(ctx, actionArtPoll, http.MethodGet, opURL, nil, &op)
			g.metrics.RecordImagePoll(time.Since(begin), err == nil)
			return op, err
		})

		switch {
		case err == nil && op.Done:
			logger.DebugContext(ctx, "image operation finished", "polls", polls)
			return op, nil
		case ctx.Err() != nil:
			return operation{}, fmt.Errorf("poll image operation: %w", ctx.Err())
		case pollCtx.Err() != nil:
			return operation{}, g.timeoutError(err)
		case err != nil && !retry.IsRetriable(err):
			return operation{}, fmt.Errorf("poll image operation: %w", err)
		case err != nil:
			logger.WarnContext(ctx, "image operation poll failed, will poll again",
				"poll", polls,
				"error", err)
		}

		timer := time.NewTimer(g.cfg.PollInterval)
		select {
		case <-pollCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return operation{}, fmt.Errorf("poll image operation: %w", ctx.Err())
			}
			return operation{}, g.timeoutError(nil)
		case <-timer.C:
		}
	}
}

func (g *ArtGenerator) timeoutError(last error) error {
	if last != nil && !errors.Is(last, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s (last error: %v)", generation.ErrPollTimeout, g.cfg.PollTimeout, last)
	}
	return fmt.Errorf("%w after %s", generation.ErrPollTimeout, g.cfg.PollTimeout)
}

// finishedImage extracts the base64 image from a done operation.
func finishedImage(op operation) (string, error) {
	if op.Error != nil {
		return "", fmt.Errorf("image operation failed with code %d: %s", op.Error.Code, op.Error.Message)
	}
	if op.Response == nil || op.Response.Image == "" {
		return "", generation.ErrEmptyImage
	}
	return op.Response.Image, nil
}
