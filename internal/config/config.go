package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Config is read from the environment; .env is loaded by main beforehand.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	GinMode  string `env:"GIN_MODE" envDefault:"debug"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	DBPath   string `env:"DB_PATH" envDefault:"portfolio.db"`

	GitHubAccount string `env:"GITHUB_ACCOUNT" envDefault:"Zachkp"`
	GitHubAPIURL  string `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`
	ProjectCount  int    `env:"PROJECT_COUNT" envDefault:"6"`

	SMTP SMTP

	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

type SMTP struct {
	Host    string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	Port    string `env:"SMTP_PORT" envDefault:"587"`
	User    string `env:"SMTP_USER"`
	Pass    string `env:"SMTP_PASS"`
	ToEmail string `env:"TO_EMAIL" envDefault:"zachkordaspotter@gmail.com"`
}

// Configured reports whether credentials are present to send mail.
func (s SMTP) Configured() bool {
	return s.User != "" && s.Pass != ""
}

// Load parses the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("parse env: LOG_LEVEL: %w", err)
	}
	if cfg.ProjectCount <= 0 {
		return Config{}, fmt.Errorf("parse env: PROJECT_COUNT must be positive, got %d", cfg.ProjectCount)
	}
	return cfg, nil
}

// Logger builds the process logger the way every entrypoint uses it.
func (c Config) Logger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	return l
}
