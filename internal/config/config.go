package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	TelegramToken      string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramDebug      bool   `env:"TELEGRAM_DEBUG"`
	PollTimeoutSeconds int    `env:"TELEGRAM_POLL_TIMEOUT" envDefault:"60"`
	Locale             string `env:"BOT_LOCALE" envDefault:"en"`
	Workers            int    `env:"BOT_WORKERS" envDefault:"8"`

	MaxJoinAttempts int `env:"MAX_JOIN_ATTEMPTS" envDefault:"3"`
	MatchAttempts   int `env:"MATCH_ATTEMPTS" envDefault:"100"`
	PasscodeCost    int `env:"PASSCODE_BCRYPT_COST" envDefault:"10"`

	DatabaseURL              string `env:"DATABASE_URL"`
	DBMaxOpenConns           int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns           int    `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeSeconds int    `env:"DB_CONN_MAX_LIFETIME_SECONDS" envDefault:"300"`
	DBConnMaxIdleTimeSeconds int    `env:"DB_CONN_MAX_IDLE_SECONDS" envDefault:"60"`

	RedisURL   string        `env:"REDIS_URL"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	StatusAddr  string `env:"STATUS_ADDR"`
	StatusToken string `env:"STATUS_TOKEN"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Default returns the configuration with every variable unset.
func Default() Config {
	var cfg Config
	_ = env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}})
	return cfg
}

// Load reads the configuration from the process environment. Values that
// parse but make no sense fall back to their defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	def := Default()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxJoinAttempts <= 0 {
		cfg.MaxJoinAttempts = def.MaxJoinAttempts
	}
	if cfg.MatchAttempts <= 0 {
		cfg.MatchAttempts = def.MatchAttempts
	}
	if cfg.PollTimeoutSeconds <= 0 {
		cfg.PollTimeoutSeconds = def.PollTimeoutSeconds
	}
	if cfg.DBMaxOpenConns <= 0 {
		cfg.DBMaxOpenConns = def.DBMaxOpenConns
	}
	if cfg.DBMaxIdleConns <= 0 {
		cfg.DBMaxIdleConns = def.DBMaxIdleConns
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	if c.StatusAddr != "" && c.StatusToken == "" {
		return errors.New("STATUS_ADDR is set but STATUS_TOKEN is empty")
	}
	return nil
}

func (c Config) DBConnMaxLifetime() time.Duration {
	return time.Duration(c.DBConnMaxLifetimeSeconds) * time.Second
}

func (c Config) DBConnMaxIdleTime() time.Duration {
	return time.Duration(c.DBConnMaxIdleTimeSeconds) * time.Second
}
