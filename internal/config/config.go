package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Transport adapter selected at startup. Only "memory" ships with the
	// server itself; production adapters register under their own names.
	Transport string `env:"TRANSPORT" envDefault:"memory"`

	// Session lifecycle tuning.
	MaxReconnectAttempts int `env:"MAX_RECONNECT_ATTEMPTS" envDefault:"3"`
	SessionExpiryDays    int `env:"SESSION_EXPIRY_DAYS" envDefault:"30"`
	ReconnectDelayMs     int `env:"RECONNECT_DELAY_MS" envDefault:"3000"`
	PairingTTLSeconds    int `env:"PAIRING_TTL_S" envDefault:"60"`

	// Auto-reply pipeline tuning.
	AutoReplyDelaySeconds  int    `env:"AUTO_REPLY_DEFAULT_DELAY_S" envDefault:"2"`
	ContextWindowMessages  int    `env:"CONTEXT_WINDOW_MESSAGES" envDefault:"5"`
	MaxAutoReplyRetries    int    `env:"MAX_AUTOREPLY_RETRIES" envDefault:"2"`
	ProviderTimeoutSeconds int    `env:"PROVIDER_TIMEOUT_S" envDefault:"15"`
	GeminiAPIKey           string `env:"GEMINI_API_KEY"`
	GeminiModel            string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}

func (c *Config) SessionExpiry() time.Duration {
	return time.Duration(c.SessionExpiryDays) * 24 * time.Hour
}

func (c *Config) PairingTTL() time.Duration {
	return time.Duration(c.PairingTTLSeconds) * time.Second
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

func (c *Config) Validate(isProduction bool) error {
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("MAX_RECONNECT_ATTEMPTS must not be negative")
	}
	if c.ReconnectDelayMs < 1000 || c.ReconnectDelayMs > 60000 {
		return fmt.Errorf("RECONNECT_DELAY_MS must be between 1000 and 60000")
	}
	if c.AutoReplyDelaySeconds < 0 || c.AutoReplyDelaySeconds > MaxAutoReplyDelaySeconds {
		return fmt.Errorf("AUTO_REPLY_DEFAULT_DELAY_S must be between 0 and %d", MaxAutoReplyDelaySeconds)
	}
	if c.ContextWindowMessages < 1 {
		return fmt.Errorf("CONTEXT_WINDOW_MESSAGES must be at least 1")
	}

	if isProduction {
		if c.Transport == "memory" {
			log.Warn().Msg("TRANSPORT=memory in production: sessions will not reach a real network")
		}
		if c.GeminiAPIKey == "" {
			log.Warn().Msg("GEMINI_API_KEY is empty in production: auto-reply will stay disabled")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
