package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/snaptrace/snaptrace-api/internal/config"
	"github.com/snaptrace/snaptrace-api/internal/generation"
	"github.com/snaptrace/snaptrace-api/internal/metrics"
	"github.com/snaptrace/snaptrace-api/internal/platform/gemini"
	"github.com/snaptrace/snaptrace-api/internal/platform/yandex"
)

// buildGenerators chooses the generator pair for new jobs. Stubs are used
// unless real backends are enabled and credentials are present. Secrets are
// never logged, only whether they are set.
func buildGenerators(
	ctx context.Context,
	cfg *config.Config,
	registry *metrics.Registry,
	logger *slog.Logger,
) (generation.Pair, error) {
	useReal, reason := cfg.UseRealClients()
	if !useReal {
		logger.Info("using stub generators",
			"reason", reason,
			"use_real", cfg.Generation.UseReal,
			"folder_set", cfg.Yandex.FolderID != "",
			"iam_token_set", cfg.Yandex.IAMToken != "",
			"api_key_set", cfg.Yandex.APIKey != "")
		return generation.StubPair(), nil
	}

	client, err := yandex.NewClient(cfg.Yandex, cfg.HTTPClient, logger)
	if err != nil {
		return generation.Pair{}, fmt.Errorf("yandex client: %w", err)
	}

	art, err := yandex.NewArtGenerator(client, cfg.Art, registry, logger)
	if err != nil {
		return generation.Pair{}, fmt.Errorf("image generator: %w", err)
	}

	caption, err := buildCaptionGenerator(ctx, cfg, client, registry, logger)
	if err != nil {
		return generation.Pair{}, err
	}

	logger.Info("using real generators",
		"image_model", cfg.Art.Model,
		"caption_backend", cfg.Generation.CaptionBackend,
		"auth", authKind(cfg.Yandex))
	return generation.Pair{Image: art, Caption: caption}, nil
}

func buildCaptionGenerator(
	ctx context.Context,
	cfg *config.Config,
	client *yandex.Client,
	registry *metrics.Registry,
	logger *slog.Logger,
) (generation.CaptionGenerator, error) {
	if cfg.Generation.CaptionBackend == "gemini" {
		caption, err := gemini.NewCaptionGenerator(ctx, cfg.Gemini, cfg.HTTPClient, gemini.Options{
			SystemText:  cfg.GPT.SystemText,
			Temperature: cfg.GPT.Temperature,
		}, registry, logger)
		if err != nil {
			return nil, fmt.Errorf("gemini caption generator: %w", err)
		}
		return caption, nil
	}

	caption, err := yandex.NewGPTGenerator(client, cfg.GPT, registry, logger)
	if err != nil {
		return nil, fmt.Errorf("caption generator: %w", err)
	}
	return caption, nil
}

func authKind(creds config.YandexConfig) string {
	if creds.IAMToken != "" {
		return "iam_token"
	}
	return "api_key"
}
