package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full tracking-service configuration loaded from config.yaml.
type Config struct {
	Server struct {
		Port int `yaml:"port" validate:"gt=0,lte=65535"`
	} `yaml:"server"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" validate:"gt=0,lte=65535"`
		User     string `yaml:"user" validate:"required"`
		Password string `yaml:"password" validate:"required"`
		Name     string `yaml:"database" validate:"required"`
	} `yaml:"database"`

	RabbitMQ struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" validate:"gt=0,lte=65535"`
		User     string `yaml:"user" validate:"required"`
		Password string `yaml:"password" validate:"required"`
	} `yaml:"rabbitmq"`

	JWT struct {
		SecretKey string `yaml:"secret_key"`
	} `yaml:"jwt"`

	WebSocket struct {
		RequireAuth         bool `yaml:"require_auth"`
		StrictReceiverMatch bool `yaml:"strict_receiver_match"`
	} `yaml:"websocket"`

	Routing struct {
		ProviderURL     string  `yaml:"provider_url" validate:"omitempty,url"`
		TimeoutSeconds  int     `yaml:"timeout_seconds" validate:"gte=0"`
		AssumedSpeedKmh float64 `yaml:"assumed_speed_kmh" validate:"gte=0"`
		FallbackPoints  int     `yaml:"fallback_points" validate:"gte=0"`
	} `yaml:"routing"`

	Tracking struct {
		BaseLinkURL           string `yaml:"base_link_url" validate:"omitempty,url"`
		TokenTTLHours         int    `yaml:"token_ttl_hours" validate:"gte=0"`
		UpdateThrottleSeconds int    `yaml:"update_throttle_seconds" validate:"gte=0"`
	} `yaml:"tracking"`
}

// LoadFromFile loads config from a YAML file, applies defaults, and validates.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}

	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Routing provider
	if cfg.Routing.ProviderURL == "" {
		cfg.Routing.ProviderURL = "https://router.project-osrm.org"
	}
	if cfg.Routing.TimeoutSeconds == 0 {
		cfg.Routing.TimeoutSeconds = 10
	}
	if cfg.Routing.AssumedSpeedKmh == 0 {
		cfg.Routing.AssumedSpeedKmh = 30
	}
	if cfg.Routing.FallbackPoints == 0 {
		cfg.Routing.FallbackPoints = 10
	}

	// Tracking links and throttles
	if cfg.Tracking.BaseLinkURL == "" {
		cfg.Tracking.BaseLinkURL = "https://localhost/t"
	}
	if cfg.Tracking.TokenTTLHours == 0 {
		cfg.Tracking.TokenTTLHours = 24
	}
	if cfg.Tracking.UpdateThrottleSeconds == 0 {
		cfg.Tracking.UpdateThrottleSeconds = 3
	}

	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}
}

// RoutingTimeout returns the provider timeout as a duration.
func (c *Config) RoutingTimeout() time.Duration {
	return time.Duration(c.Routing.TimeoutSeconds) * time.Second
}

// TokenTTL returns the tracking-token lifetime as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Tracking.TokenTTLHours) * time.Hour
}

// UpdateThrottle returns the minimum interval between accepted position updates.
func (c *Config) UpdateThrottle() time.Duration {
	return time.Duration(c.Tracking.UpdateThrottleSeconds) * time.Second
}
