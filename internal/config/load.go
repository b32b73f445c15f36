package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key when read from the environment.
const EnvPrefix = "SNAPTRACE"

// legacyEnv maps configuration keys to additional, unprefixed variable names
// that deployments already use.
var legacyEnv = map[string][]string{
	"yandex.iam_token":    {"YANDEX_IAM_TOKEN"},
	"yandex.api_key":      {"YANDEX_API_KEY"},
	"yandex.folder_id":    {"YANDEX_FOLDER_ID"},
	"generation.use_real": {"SNAPTRACE_USE_REAL"},
	"gemini.api_key":      {"GEMINI_API_KEY"},
}

// Options controls where Load looks for configuration.
type Options struct {
	// EnvFile is merged into the process environment first. A missing file is ignored.
	EnvFile string
	// ConfigPaths are searched for config.yaml.
	ConfigPaths []string
}

// DefaultOptions returns the options used by Load.
func DefaultOptions() Options {
	return Options{
		EnvFile:     ".env",
		ConfigPaths: []string{".", "./config"},
	}
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadWithOptions(DefaultOptions())
}

// LoadWithOptions is Load with explicit file locations.
func LoadWithOptions(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		// Existing environment variables win over the file.
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range opts.ConfigPaths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		// BindEnv with explicit names skips the prefix, so list the prefixed name first.
		envNames := append([]string{envName(key)}, names...)
		if err := v.BindEnv(append([]string{key}, envNames...)...); err != nil {
			return nil, fmt.Errorf("error binding env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the rules that span several fields.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Generation.UseReal && cfg.Generation.CaptionBackend == "gemini" && cfg.Gemini.APIKey == "" {
		return errors.New("config validation failed: gemini.api_key is required when generation.caption_backend is gemini")
	}
	return nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("upload.max_bytes", 15*1024*1024)

	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.autostart", true)

	v.SetDefault("generation.use_real", false)
	v.SetDefault("generation.caption_backend", "yandex")

	v.SetDefault("http_client.timeout", "15s")
	v.SetDefault("http_client.retry.max_attempts", 3)
	v.SetDefault("http_client.retry.base_delay", "200ms")
	v.SetDefault("http_client.retry.max_delay", "2s")

	v.SetDefault("yandex.folder_id", "")
	v.SetDefault("yandex.iam_token", "")
	v.SetDefault("yandex.api_key", "")

	v.SetDefault("art.endpoint", "https://llm.api.cloud.yandex.net/foundationModels/v1/imageGenerationAsync")
	v.SetDefault("art.operations_endpoint", "https://llm.api.cloud.yandex.net/operations")
	v.SetDefault("art.model", "yandex-art/latest")
	v.SetDefault("art.seed", 1863)
	v.SetDefault("art.aspect_width", 2)
	v.SetDefault("art.aspect_height", 1)
	v.SetDefault("art.poll_interval", "1s")
	v.SetDefault("art.poll_timeout", "60s")

	v.SetDefault("gpt.endpoint", "https://llm.api.cloud.yandex.net/foundationModels/v1/completion")
	v.SetDefault("gpt.model", "yandexgpt")
	v.SetDefault("gpt.temperature", 0.6)
	v.SetDefault("gpt.max_tokens", 2000)
	v.SetDefault("gpt.system_text", "Generate a short caption for the image based on the prompt")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.base_url", "")
}
