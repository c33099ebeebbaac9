package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	apperrors "github.com/open-builders/exmatrikulator-bot/internal/common/errors"
)

const (
	SourcePolling = "polling"
	SourceWebhook = "webhook"
	SourceRedis   = "redis"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Debug    bool   `env:"DEBUG" envDefault:"false"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080" validate:"required"`

	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty" validate:"required"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	// Redis is optional; an empty address disables the member cache, challenge expiry and the stream source.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0" validate:"gte=0"`

	Telegram struct {
		BotToken     string        `env:"TELEGRAM_BOT_TOKEN,required,notEmpty" validate:"required"`
		APIURL       string        `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org" validate:"required,url"`
		RPS          float64       `env:"TELEGRAM_RPS" envDefault:"25" validate:"gt=0"`
		UpdateSource string        `env:"UPDATE_SOURCE" envDefault:"polling" validate:"oneof=polling webhook redis"`
		PollTimeout  time.Duration `env:"POLL_TIMEOUT" envDefault:"30s" validate:"gt=0"`
		// Telegram echoes it in X-Telegram-Bot-Api-Secret-Token on webhook calls.
		WebhookSecret string `env:"WEBHOOK_SECRET" validate:"required_if=UpdateSource webhook"`
	}

	Verification struct {
		ConfirmationTTL time.Duration `env:"CONFIRMATION_TTL" envDefault:"10s" validate:"gt=0"`
		// Zero disables expiry of unanswered challenges.
		ChallengeTTL   time.Duration `env:"CHALLENGE_TTL" envDefault:"5m" validate:"gte=0"`
		SweepInterval  time.Duration `env:"CHALLENGE_SWEEP_INTERVAL" envDefault:"30s" validate:"gt=0"`
		MemberCacheTTL time.Duration `env:"MEMBER_CACHE_TTL" envDefault:"24h" validate:"gt=0"`
	}
}

var validate = validator.New()

// Load reads .env (if present) and environment variables into Config.
// Missing DATABASE_URL or TELEGRAM_BOT_TOKEN is an error.
func Load() (*Config, error) {
	// .env is optional; production sets variables directly
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, apperrors.NewConfigError(err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, apperrors.NewConfigError(err)
	}
	if cfg.Telegram.UpdateSource == SourceRedis && !cfg.RedisEnabled() {
		return nil, apperrors.NewConfigError(errors.New("UPDATE_SOURCE=redis requires REDIS_ADDR"))
	}
	return cfg, nil
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}
