// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
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
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type APIConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type RazorpayConfig struct {
	KeyID         string        `yaml:"key_id"`
	KeySecret     string        `yaml:"key_secret"`
	WebhookSecret string        `yaml:"webhook_secret"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	Demo          bool          `yaml:"demo"` // serve locally generated orders, no remote calls
}

type PaymentConfig struct {
	Currency string         `yaml:"currency"`
	Razorpay RazorpayConfig `yaml:"razorpay"`
}

type ReconcilerConfig struct {
	Interval       time.Duration `yaml:"interval"`        // stale-pending sweep cadence
	PendingMaxAge  time.Duration `yaml:"pending_max_age"` // how old a Pending record must be before probing
	ReplayInterval time.Duration `yaml:"replay_interval"` // webhook replay cadence
	EventRetention time.Duration `yaml:"event_retention"` // stored webhook event expiry
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	API        APIConfig        `yaml:"api"`
	Payment    PaymentConfig    `yaml:"payment"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(configPath string, dev bool) (*Config, error) {
	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.API.Port <= 0 {
		cfg.API.Port = 8080
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "INR"
	}
	if cfg.Payment.Razorpay.BaseURL == "" {
		cfg.Payment.Razorpay.BaseURL = "https://api.razorpay.com/v1"
	}
	if cfg.Payment.Razorpay.Timeout <= 0 {
		cfg.Payment.Razorpay.Timeout = 10 * time.Second
	}
	if cfg.Payment.Razorpay.MaxRetries <= 0 {
		cfg.Payment.Razorpay.MaxRetries = 3
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = 5 * time.Minute
	}
	if cfg.Reconciler.PendingMaxAge <= 0 {
		cfg.Reconciler.PendingMaxAge = 15 * time.Minute
	}
	if cfg.Reconciler.ReplayInterval <= 0 {
		cfg.Reconciler.ReplayInterval = time.Minute
	}
	if cfg.Reconciler.EventRetention <= 0 {
		cfg.Reconciler.EventRetention = 7 * 24 * time.Hour
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if cfg.API.JWTSecret == "" {
		return errors.New("api.jwt_secret is required")
	}
	if !cfg.Payment.Razorpay.Demo {
		if cfg.Payment.Razorpay.KeyID == "" || cfg.Payment.Razorpay.KeySecret == "" {
			return errors.New("payment.razorpay key_id/key_secret are required outside demo mode")
		}
		if placeholderCredential(cfg.Payment.Razorpay.KeyID) || placeholderCredential(cfg.Payment.Razorpay.KeySecret) {
			return errors.New("payment.razorpay credentials look like placeholders; set real keys or enable demo mode")
		}
		if cfg.Payment.Razorpay.WebhookSecret == "" {
			return errors.New("payment.razorpay.webhook_secret is required outside demo mode")
		}
	}
	return nil
}

// placeholderCredential catches config that was copied from a sample file and
// never filled in. Demo behavior is opt-in, never inferred from key contents.
func placeholderCredential(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, p := range []string{"changeme", "your_key", "your-key", "placeholder", "xxxx", "demo"} {
		if strings.Contains(v, p) {
			return true
		}
	}
	return false
}
