package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EnvConfigFile = "FACEMATCH_CONFIG"
	envPrefix     = "FACEMATCH_"
)

// platformEnv are the unprefixed names hosting platforms and compose files already set.
var platformEnv = map[string]string{
	"PORT":               "port",
	"GEMINI_MODEL":       "gemini_model",
	"TELEGRAM_BOT_TOKEN": "telegram_bot_token",
	"WEBHOOK_URL":        "webhook_url",
	"DATABASE_URL":       "database_url",
}

// Load layers, low to high:
//  1. defaults (New)
//  2. YAML file if FACEMATCH_CONFIG is set
//  3. platform env (PORT, DATABASE_URL, ...)
//  4. env with prefix FACEMATCH_ (FACEMATCH_MAX_IMAGE_BYTES -> max_image_bytes)
func Load(_ context.Context) (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	platform := env.Provider("", ".", func(s string) string {
		return platformEnv[s] // unknown names map to "" and are skipped
	})
	if err := k.Load(platform, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	prefixed := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Port) == "":
		return fmt.Errorf("%w: port must not be empty", ErrInvalidConfig)
	case c.RequestTimeoutSec <= 0:
		return fmt.Errorf("%w: request_timeout_sec must be positive", ErrInvalidConfig)
	case c.MaxImageBytes <= 0:
		return fmt.Errorf("%w: max_image_bytes must be positive", ErrInvalidConfig)
	}
	return nil
}
