// Package config содержит логику чтения конфигурации сервиса coursemart.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress     = "localhost:8080"
	defaultGatewayAddress = "https://api.razorpay.com"
)

// Config содержит параметры конфигурации сервиса coursemart.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	GatewayAddress string `env:"GATEWAY_ADDRESS"`

	GatewayKeyID     string        `env:"GATEWAY_KEY_ID"`
	GatewayKeySecret string        `env:"GATEWAY_KEY_SECRET"`
	WebhookSecret    string        `env:"GATEWAY_WEBHOOK_SECRET"`
	Currency         string        `env:"CURRENCY" envDefault:"INR"`
	GatewayTimeout   time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`

	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"JWT_TTL" envDefault:"168h"`

	RedisAddr       string   `env:"REDIS_ADDR"`
	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	EnrollmentTopic string   `env:"KAFKA_ENROLLMENT_TOPIC" envDefault:"course.enrolled"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1m"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envGatewayAddress := cfg.GatewayAddress

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.GatewayAddress, "g", defaultGatewayAddress, "payment gateway base URL")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envGatewayAddress != "" {
		cfg.GatewayAddress = envGatewayAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.GatewayAddress == "" {
		cfg.GatewayAddress = defaultGatewayAddress
	}

	if cfg.GatewayTimeout <= 0 {
		return nil, fmt.Errorf("gateway timeout must be positive, got %s", cfg.GatewayTimeout)
	}

	return cfg, nil
}
