// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig carries the verification secret for bearer tokens. Token
// minting lives in the session service, so there is no TTL here.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// MMGConfig holds merchant credentials and endpoints for the MMG gateway.
// Secrets may be supplied via environment (MMG_PASSWORD, MMG_MERCHANT_SECRET)
// instead of the config file.
type MMGConfig struct {
	BaseURL        string `yaml:"base_url"`
	CheckoutURL    string `yaml:"checkout_url"`
	MerchantID     string `yaml:"merchant_id"`
	MerchantKey    string `yaml:"merchant_key"`
	MerchantSecret string `yaml:"merchant_secret"`
	APIKey         string `yaml:"api_key"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`

	// PEM paths: gateway public key encrypts checkout payloads, merchant
	// private key decrypts callback tokens.
	GatewayPublicKeyFile   string `yaml:"gateway_public_key_file"`
	MerchantPrivateKeyFile string `yaml:"merchant_private_key_file"`

	SuccessRedirectURL string `yaml:"success_redirect_url"`
	FailureRedirectURL string `yaml:"failure_redirect_url"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type RateLimitConfig struct {
	ConfirmPerMinute int `yaml:"confirm_per_minute"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	MMG        MMGConfig        `yaml:"mmg"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 10 * time.Minute
	}
	if cfg.RateLimit.ConfirmPerMinute <= 0 {
		cfg.RateLimit.ConfirmPerMinute = 10
	}

	// env overrides for secrets
	if v := os.Getenv("MMG_PASSWORD"); v != "" {
		cfg.MMG.Password = v
	}
	if v := os.Getenv("MMG_MERCHANT_SECRET"); v != "" {
		cfg.MMG.MerchantSecret = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.MMG.MerchantID == "" {
		return nil, errors.New("mmg.merchant_id is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
