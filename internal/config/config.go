// Package config provides centralized configuration for the philoflow
// server. All configurable values are loaded from environment variables
// with sensible defaults; nothing else in the program reads the
// environment.
package config

import (
	"os"
	"time"
)

// Provider kind constants for both remote ports.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai" // any OpenAI-compatible endpoint
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string

	// DBPath is the path to the SQLite library database file.
	DBPath string

	// TextProvider selects the analysis backend: "gemini" or "openai".
	TextProvider string

	// TextAPIKey is the credential for the analysis provider.
	TextAPIKey string

	// TextModel is the model identifier for analysis calls.
	TextModel string

	// TextBaseURL overrides the endpoint for OpenAI-compatible analysis.
	TextBaseURL string

	// ImageProvider selects the illustration backend: "gemini" or "openai".
	ImageProvider string

	// ImageAPIKey is the credential for the illustration provider.
	ImageAPIKey string

	// ImageModel is the standard-quality image model identifier.
	ImageModel string

	// ImageModelHD is the high-quality image model identifier (Gemini only;
	// the OpenAI port maps HD to a quality tier instead).
	ImageModelHD string

	// ImageBaseURL overrides the endpoint for OpenAI-compatible images.
	ImageBaseURL string

	// InterRequestDelay is the fixed wait between queue records,
	// independent of retry backoff.
	InterRequestDelay time.Duration

	// PausePollInterval is how often the pause flag is polled.
	PausePollInterval time.Duration

	// RetryBaseDelay is the first retry backoff wait.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the retry backoff wait.
	RetryMaxDelay time.Duration

	// HTTPTimeout is the timeout for outgoing HTTP requests.
	HTTPTimeout time.Duration

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string
}

// Load reads configuration from environment variables, applying defaults.
func Load() Config {
	return Config{
		Port:              envOr("PORT", "8080"),
		DBPath:            envOr("DB_PATH", "philoflow.db"),
		TextProvider:      envOr("TEXT_PROVIDER", ProviderGemini),
		TextAPIKey:        os.Getenv("TEXT_API_KEY"),
		TextModel:         os.Getenv("TEXT_MODEL"),
		TextBaseURL:       os.Getenv("TEXT_BASE_URL"),
		ImageProvider:     envOr("IMAGE_PROVIDER", ProviderGemini),
		ImageAPIKey:       os.Getenv("IMAGE_API_KEY"),
		ImageModel:        os.Getenv("IMAGE_MODEL"),
		ImageModelHD:      os.Getenv("IMAGE_MODEL_HD"),
		ImageBaseURL:      os.Getenv("IMAGE_BASE_URL"),
		InterRequestDelay: envDuration("INTER_REQUEST_DELAY", 10*time.Second),
		PausePollInterval: envDuration("PAUSE_POLL_INTERVAL", 500*time.Millisecond),
		RetryBaseDelay:    envDuration("RETRY_BASE_DELAY", 5*time.Second),
		RetryMaxDelay:     envDuration("RETRY_MAX_DELAY", 60*time.Second),
		HTTPTimeout:       envDuration("HTTP_TIMEOUT", 120*time.Second),
		CORSOrigin:        envOr("CORS_ORIGIN", "*"),
	}
}

// UseStubs returns true when no API key is configured for either port, so
// the server runs with deterministic stub providers.
func (c Config) UseStubs() bool {
	return c.TextAPIKey == "" && c.ImageAPIKey == ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
