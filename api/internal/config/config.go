// Package config holds process configuration for the server and the bot.
package config

import (
	"strings"
	"time"
)

// Config is filled from defaults, an optional YAML file and the environment.
// The Gemini API key is not part of Config; see package credential.
type Config struct {
	// Port is the HTTP listen port (health, metrics, API, webhook).
	Port string `koanf:"port"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	GeminiModel string `koanf:"gemini_model"`

	// RequestTimeoutSec bounds one analysis when the caller sets no deadline.
	RequestTimeoutSec int `koanf:"request_timeout_sec"`

	// MaxImageBytes caps a single decoded photo.
	MaxImageBytes int `koanf:"max_image_bytes"`

	// MessagesFile optionally overrides the user-facing failure messages.
	MessagesFile string `koanf:"messages_file"`

	TelegramBotToken string `koanf:"telegram_bot_token"`
	WebhookURL       string `koanf:"webhook_url"`

	// DatabaseURL enables the attempt journal when set.
	DatabaseURL string `koanf:"database_url"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		Port:              "8000",
		LogLevel:          "info",
		GeminiModel:       "gemini-2.5-flash",
		RequestTimeoutSec: 180,
		MaxImageBytes:     10 << 20,
		CORSOrigins:       []string{"*"},
	}
}

// Addr is the listen address for Port on all interfaces.
func (c *Config) Addr() string {
	return "0.0.0.0:" + strings.TrimPrefix(c.Port, ":")
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}
