package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Upload     UploadConfig     `mapstructure:"upload" validate:"required"`
	Worker     WorkerConfig     `mapstructure:"worker" validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client" validate:"required"`
	Yandex     YandexConfig     `mapstructure:"yandex"`
	Art        ArtConfig        `mapstructure:"art" validate:"required"`
	GPT        GPTConfig        `mapstructure:"gpt" validate:"required"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// UploadConfig limits accepted photo uploads.
type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes" validate:"gt=0"`
}

// WorkerConfig sizes the background worker pool.
type WorkerConfig struct {
	Count     int  `mapstructure:"count" validate:"gt=0,lte=64"`
	AutoStart bool `mapstructure:"autostart"`
}

// GenerationConfig selects the generator implementations.
type GenerationConfig struct {
	UseReal        bool   `mapstructure:"use_real"`
	CaptionBackend string `mapstructure:"caption_backend" validate:"required,oneof=yandex gemini"`
}

// HTTPClientConfig applies to every outbound call to a generation backend.
type HTTPClientConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Retry   RetryConfig   `mapstructure:"retry" validate:"required"`
}

// RetryConfig configures the retry executor.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gte=0"`
	MaxDelay    time.Duration `mapstructure:"max_delay" validate:"gte=0,gtefield=BaseDelay"`
}

// YandexConfig carries the cloud credentials. Values are secrets and must
// never be logged.
type YandexConfig struct {
	FolderID string `mapstructure:"folder_id"`
	IAMToken string `mapstructure:"iam_token"`
	APIKey   string `mapstructure:"api_key"`
}

// ArtConfig configures the asynchronous image generation backend.
type ArtConfig struct {
	Endpoint           string        `mapstructure:"endpoint" validate:"required,url"`
	OperationsEndpoint string        `mapstructure:"operations_endpoint" validate:"required,url"`
	Model              string        `mapstructure:"model" validate:"required"`
	Seed               int64         `mapstructure:"seed"`
	AspectWidth        int           `mapstructure:"aspect_width" validate:"gt=0"`
	AspectHeight       int           `mapstructure:"aspect_height" validate:"gt=0"`
	PollInterval       time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	PollTimeout        time.Duration `mapstructure:"poll_timeout" validate:"gt=0,gtefield=PollInterval"`
}

// GPTConfig configures the completion backend used for captions.
type GPTConfig struct {
	Endpoint    string  `mapstructure:"endpoint" validate:"required,url"`
	Model       string  `mapstructure:"model" validate:"required"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=1"`
	MaxTokens   int     `mapstructure:"max_tokens" validate:"gt=0"`
	SystemText  string  `mapstructure:"system_text" validate:"required"`
}

// GeminiConfig configures the alternative caption backend.
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

// HasYandexCredentials reports whether a folder id and at least one credential
// are configured.
func (c *Config) HasYandexCredentials() bool {
	return c.Yandex.FolderID != "" && (c.Yandex.IAMToken != "" || c.Yandex.APIKey != "")
}

// UseRealClients reports whether real generation backends should be used and,
// when they should not, a human-readable reason that contains no secrets.
func (c *Config) UseRealClients() (bool, string) {
	switch {
	case !c.Generation.UseReal:
		return false, "generation.use_real is disabled"
	case c.Yandex.FolderID == "":
		return false, "folder id is not configured"
	case c.Yandex.IAMToken == "" && c.Yandex.APIKey == "":
		return false, "neither an IAM token nor an API key is configured"
	default:
		return true, ""
	}
}
