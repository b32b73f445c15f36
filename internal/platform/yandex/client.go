package yandex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/snaptrace/snaptrace-api/internal/config"
	"github.com/snaptrace/snaptrace-api/internal/generation"
	"github.com/snaptrace/snaptrace-api/internal/redact"
	"github.com/snaptrace/snaptrace-api/internal/retry"
)

const (
	// maxResponseBytes bounds how much of a response body is read. Finished
	// image operations carry the whole image base64-encoded.
	maxResponseBytes = 32 << 20

	// maxErrorBodyBytes bounds the body excerpt kept on a StatusError.
	maxErrorBodyBytes = 256

	folderHeader = "x-folder-id"
)

// Client performs authenticated JSON calls against the Yandex cloud APIs.
type Client struct {
	http   *http.Client
	creds  config.YandexConfig
	retry  *retry.Executor
	logger *slog.Logger
}

// NewClient creates a Client. A folder id and either an IAM token or an API
// key are required; the IAM token wins when both are set.
//
// Parameters:
//   - creds: folder and credentials; never logged
//   - httpCfg: per-request timeout and retry policy
//   - logger: a structured logger for request diagnostics
func NewClient(creds config.YandexConfig, httpCfg config.HTTPClientConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", generation.ErrInvalidConfig)
	}
	if creds.FolderID == "" {
		return nil, fmt.Errorf("%w: folder id cannot be empty", generation.ErrInvalidConfig)
	}
	if creds.IAMToken == "" && creds.APIKey == "" {
		return nil, fmt.Errorf("%w: an IAM token or an API key is required", generation.ErrInvalidConfig)
	}

	logger = logger.With("component", "yandex_client")
	policy := retry.Policy{
		MaxAttempts: httpCfg.Retry.MaxAttempts,
		BaseDelay:   httpCfg.Retry.BaseDelay,
		MaxDelay:    httpCfg.Retry.MaxDelay,
	}

	return &Client{
		http:   &http.Client{Timeout: httpCfg.Timeout},
		creds:  creds,
		retry:  retry.NewExecutor(policy, logger),
		logger: logger,
	}, nil
}

// authorization returns the Authorization header value.
func (c *Client) authorization() string {
	if c.creds.IAMToken != "" {
		return "Bearer " + c.creds.IAMToken
	}
	return "Api-Key " + c.creds.APIKey
}

// modelURI builds a model reference such as art://<folder>/<model>.
func (c *Client) modelURI(scheme, model string) string {
	return fmt.Sprintf("%s://%s/%s", scheme, c.creds.FolderID, model)
}

// doJSON sends one request and decodes a 2xx JSON response into out.
// Non-2xx responses become *generation.StatusError; undecodable bodies wrap
// generation.ErrInvalidResponse. It does not retry.
func (c *Client) doJSON(ctx context.Context, action, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", action, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", action, err)
	}
	req.Header.Set("Authorization", c.authorization())
	req.Header.Set(folderHeader, c.creds.FolderID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.DebugContext(ctx, "failed to close response body", "action", action, "error", cerr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", action, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &generation.StatusError{
			Action: action,
			Code:   resp.StatusCode,
			Body:   redact.Truncate(redact.String(string(raw)), maxErrorBodyBytes),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", generation.ErrInvalidResponse, action, err)
	}
	return nil
}
