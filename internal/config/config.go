// Package config содержит логику чтения конфигурации кафетерия льгот.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации кафетерия льгот.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	SMTPAddress string `env:"SMTP_ADDRESS"`
	SMTPFrom    string `env:"SMTP_FROM"`
	SMTPUser    string `env:"SMTP_USER"`
	SMTPPass    string `env:"SMTP_PASS"`
	Domain      string `env:"DOMAIN"`
}

// Parse считывает конфигурацию из .env-файла (если есть), переменных
// окружения и флагов командной строки. Переменные окружения имеют приоритет
// над флагами.
func Parse() (*Config, error) {
	// .env подхватывается для локального запуска; отсутствие файла не ошибка.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envSMTPAddress := cfg.SMTPAddress
	envDomain := cfg.Domain

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.SMTPAddress, "m", "", "SMTP server address for notifications")
	flag.StringVar(&cfg.Domain, "domain", "localhost", "public domain used in notification links")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envSMTPAddress != "" {
		cfg.SMTPAddress = envSMTPAddress
	}
	if envDomain != "" {
		cfg.Domain = envDomain
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = "noreply@" + cfg.Domain
	}

	return cfg, nil
}
