package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	BrandID   string `env:"BRAND_ID" envDefault:"lawsons-studio" validate:"required"`
	BrandName string `env:"BRAND_NAME" envDefault:"Lawsons Studio" validate:"required"`
	BaseURL   string `env:"BASE_URL,required" validate:"required,url"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY,required" validate:"required"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required" validate:"required"`

	FulfillmentAPIURL  string `env:"FULFILLMENT_API_URL" envDefault:"https://api.inkthreadable.co.uk/v1" validate:"required,url"`
	FulfillmentAppID   string `env:"FULFILLMENT_APP_ID,required" validate:"required"`
	FulfillmentSecret  string `env:"FULFILLMENT_SECRET,required" validate:"required"`
	FulfillmentSandbox bool   `env:"FULFILLMENT_SANDBOX" envDefault:"false"`

	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"" validate:"omitempty,oneof=resend"`
	EmailAPIKey   string `env:"EMAIL_API_KEY"`
	EmailFrom     string `env:"EMAIL_FROM" validate:"omitempty,email"`

	IdentityJWTSecret string `env:"IDENTITY_JWT_SECRET,required" validate:"required,min=32"`
	IdentityIssuer    string `env:"IDENTITY_ISSUER" envDefault:"https://auth.lawsonsstudio.co.uk/"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`

	ShippingRatesFile string `env:"SHIPPING_RATES_FILE"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	LogFile   string     `env:"LOG_FILE"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if c.EmailProvider != "" {
		if strings.TrimSpace(c.EmailAPIKey) == "" {
			return fmt.Errorf("EMAIL_API_KEY is required when EMAIL_PROVIDER is set")
		}
		if strings.TrimSpace(c.EmailFrom) == "" {
			return fmt.Errorf("EMAIL_FROM is required when EMAIL_PROVIDER is set")
		}
	}

	baseURL := strings.TrimSpace(c.BaseURL)
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Hostname() == "" {
		return fmt.Errorf("BASE_URL must be a valid absolute URL")
	}
	if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("BASE_URL must use https outside local development")
	}

	return nil
}

func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
