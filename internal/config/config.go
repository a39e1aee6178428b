package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv   string `env:"APP_ENV"   envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Server    ServerConfig
	Store     StoreConfig
	Redis     RedisConfig
	Ingest    IngestConfig
	Broker    BrokerConfig
	Relay     RelayConfig
	Send      SendConfig
	Broadcast BroadcastConfig
}

type ServerConfig struct {
	Address        string   `env:"SERVER_ADDRESS" envDefault:":3001"`
	AllowedOrigins []string `env:"CLIENT_URL"     envDefault:"http://localhost:3000" envSeparator:","`
}

type StoreConfig struct {
	DSN string `env:"STORE_DSN,required,notEmpty"`
}

type RedisConfig struct {
	Enabled    bool   `env:"-"`
	Address    string `env:"REDIS_ADDR"`
	Password   string `env:"REDIS_PASSWORD"`
	DB         int    `env:"REDIS_DB"          envDefault:"0"`
	TTLSeconds int    `env:"REDIS_TTL_SECONDS" envDefault:"300"`
}

func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

type IngestConfig struct {
	Dir             string `env:"PAYLOAD_DIR"             envDefault:"payloads"`
	Workers         int    `env:"INGEST_WORKERS"          envDefault:"1"`
	IntervalSeconds int    `env:"INGEST_INTERVAL_SECONDS" envDefault:"0"`
}

// Interval is zero when periodic rescans are off.
func (i IngestConfig) Interval() time.Duration {
	return time.Duration(i.IntervalSeconds) * time.Second
}

type BrokerConfig struct {
	URL      string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE" envDefault:"wa-inbox.events"`
}

type RelayConfig struct {
	URL            string `env:"RELAY_URL"`
	TimeoutSeconds int    `env:"RELAY_TIMEOUT_SECONDS" envDefault:"10"`
}

type SendConfig struct {
	RatePerSecond float64 `env:"SEND_RATE_PER_SECOND" envDefault:"5"`
	Burst         int     `env:"SEND_BURST"           envDefault:"10"`
	ContentMax    int     `env:"SEND_MAX_CHARS"       envDefault:"4096"`
}

type BroadcastConfig struct {
	QueueSize       int `env:"BROADCAST_QUEUE_SIZE" envDefault:"256"`
	ClientQueueSize int `env:"WS_CLIENT_QUEUE_SIZE" envDefault:"64"`
}

func LoadAll() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}

	cfg.Redis.Address = strings.TrimSpace(cfg.Redis.Address)
	cfg.Redis.Enabled = cfg.Redis.Address != ""

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) Level() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.TrimSpace(s)))
	return level, err
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Ingest.Workers <= 0 {
		errs = append(errs, errors.New("INGEST_WORKERS must be > 0"))
	}
	if cfg.Ingest.IntervalSeconds < 0 {
		errs = append(errs, errors.New("INGEST_INTERVAL_SECONDS must be >= 0"))
	}
	if cfg.Redis.Enabled && cfg.Redis.TTLSeconds <= 0 {
		errs = append(errs, errors.New("REDIS_TTL_SECONDS must be > 0"))
	}
	if cfg.Send.RatePerSecond <= 0 {
		errs = append(errs, errors.New("SEND_RATE_PER_SECOND must be > 0"))
	}
	if cfg.Send.Burst <= 0 {
		errs = append(errs, errors.New("SEND_BURST must be > 0"))
	}
	if cfg.Send.ContentMax <= 0 {
		errs = append(errs, errors.New("SEND_MAX_CHARS must be > 0"))
	}
	if cfg.Relay.URL != "" && cfg.Relay.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("RELAY_TIMEOUT_SECONDS must be > 0"))
	}
	if cfg.Broker.URL != "" && strings.TrimSpace(cfg.Broker.Exchange) == "" {
		errs = append(errs, errors.New("AMQP_EXCHANGE must not be empty when AMQP_URL is set"))
	}
	if cfg.Broadcast.QueueSize <= 0 || cfg.Broadcast.ClientQueueSize <= 0 {
		errs = append(errs, errors.New("BROADCAST_QUEUE_SIZE and WS_CLIENT_QUEUE_SIZE must be > 0"))
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
