// Package config содержит логику чтения конфигурации сервиса контроля уровней продавцов.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress   = "localhost:8080"
	defaultScanInterval = 24 * time.Hour
	defaultScanTimeout  = 30 * time.Minute
	defaultScanWorkers  = 8
)

// ErrDatabaseURIRequired возвращается, если адрес базы данных не задан ни флагом, ни окружением.
var ErrDatabaseURIRequired = errors.New("database URI is required (-d or DATABASE_URI)")

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress     string        `env:"RUN_ADDRESS"`
	DatabaseURI    string        `env:"DATABASE_URI"`
	RedisURL       string        `env:"REDIS_URL"`
	AMQPURL        string        `env:"AMQP_URL"`
	TierWebhookURL string        `env:"TIER_WEBHOOK_URL"`
	TriggerSecret  string        `env:"TRIGGER_SECRET"`
	ScanInterval   time.Duration `env:"SCAN_INTERVAL"`
	ScanTimeout    time.Duration `env:"SCAN_TIMEOUT"`
	ScanWorkers    int           `env:"SCAN_WORKERS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	envCfg := Config{}
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisURL, "r", "", "redis address for distributed seller locks")
	flag.StringVar(&cfg.AMQPURL, "q", "", "rabbitmq URL for tier change events")
	flag.StringVar(&cfg.TierWebhookURL, "w", "", "marketplace webhook base URL for tier change events")
	flag.StringVar(&cfg.TriggerSecret, "s", "", "secret for signing trigger tokens")
	flag.DurationVar(&cfg.ScanInterval, "i", defaultScanInterval, "late shipment scan interval")
	flag.DurationVar(&cfg.ScanTimeout, "t", defaultScanTimeout, "late shipment scan timeout")
	flag.IntVar(&cfg.ScanWorkers, "n", defaultScanWorkers, "parallel store operations per scan")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.RedisURL != "" {
		cfg.RedisURL = envCfg.RedisURL
	}
	if envCfg.AMQPURL != "" {
		cfg.AMQPURL = envCfg.AMQPURL
	}
	if envCfg.TierWebhookURL != "" {
		cfg.TierWebhookURL = envCfg.TierWebhookURL
	}
	if envCfg.TriggerSecret != "" {
		cfg.TriggerSecret = envCfg.TriggerSecret
	}
	if envCfg.ScanInterval > 0 {
		cfg.ScanInterval = envCfg.ScanInterval
	}
	if envCfg.ScanTimeout > 0 {
		cfg.ScanTimeout = envCfg.ScanTimeout
	}
	if envCfg.ScanWorkers > 0 {
		cfg.ScanWorkers = envCfg.ScanWorkers
	}

	if cfg.DatabaseURI == "" {
		return nil, ErrDatabaseURIRequired
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.ScanWorkers <= 0 {
		cfg.ScanWorkers = defaultScanWorkers
	}

	return cfg, nil
}
