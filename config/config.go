package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cwrk-planet/ijara-chat/internal/badgerdb"
	"github.com/cwrk-planet/ijara-chat/internal/postgres"
	"github.com/cwrk-planet/ijara-chat/internal/realtime"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CHAT"

// GRPC - внутренний транспорт для сервисов платформы. Пустой Addr отключает сервер.
type GRPC struct {
	Addr           string        `yaml:"addr" split_words:"true"`
	RequestTimeout time.Duration `yaml:"requestTimeout" split_words:"true"`
}

func (g GRPC) Enabled() bool { return g.Addr != "" }

type HTTP struct {
	Addr            string        `yaml:"addr" split_words:"true"`
	RequestTimeout  time.Duration `yaml:"requestTimeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
	AllowedOrigins  []string      `yaml:"allowedOrigins" split_words:"true"`
}

type Logging struct {
	Env       string `yaml:"env" split_words:"true"`       // dev|stage|prod
	Service   string `yaml:"service" split_words:"true"`   // chat-service
	Version   string `yaml:"version" split_words:"true"`   // v0.1.0
	Backend   string `yaml:"backend" split_words:"true"`   // std|zap
	Level     string `yaml:"level" split_words:"true"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource" split_words:"true"` // false|true
	Debug     bool   `yaml:"debug" split_words:"true"`     // false|true
}

type Postgres struct {
	DSN               string        `yaml:"dsn" split_words:"true"`
	MaxConns          int32         `yaml:"maxConns" split_words:"true"`
	MinConns          int32         `yaml:"minConns" split_words:"true"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime" split_words:"true"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime" split_words:"true"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod" split_words:"true"`
	ApplicationName   string        `yaml:"applicationName" split_words:"true"`
}

func (p Postgres) ToPGConfig() postgres.Config {
	return postgres.Config{
		DSN:               p.DSN,
		MaxConns:          p.MaxConns,
		MinConns:          p.MinConns,
		MaxConnLifetime:   p.MaxConnLifetime,
		MaxConnIdleTime:   p.MaxConnIdleTime,
		HealthCheckPeriod: p.HealthCheckPeriod,
		ApplicationName:   p.ApplicationName,
	}
}

type Badger struct {
	Path     string `yaml:"path" split_words:"true"`
	InMemory bool   `yaml:"inMemory" split_words:"true"`
	Debug    bool   `yaml:"debug" split_words:"true"`
}

func (b Badger) ToBadgerConfig() badgerdb.Config {
	return badgerdb.Config{Path: b.Path, InMemory: b.InMemory, Debug: b.Debug}
}

// Redis - мост уведомлений между инстансами; пустой address - один инстанс.
type Redis struct {
	Address  string `yaml:"address" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	DB       int    `yaml:"db" split_words:"true"`
	Channel  string `yaml:"channel" split_words:"true"`
}

func (r Redis) Enabled() bool { return r.Address != "" }

func (r Redis) ToRedisConfig() realtime.RedisConfig {
	return realtime.RedisConfig{Address: r.Address, Password: r.Password, DB: r.DB, Channel: r.Channel}
}

// Auth - проверка токенов identity-провайдера. Без publicKeyPath - dev-режим с X-User-ID.
type Auth struct {
	PublicKeyPath string        `yaml:"publicKeyPath" split_words:"true"`
	Issuer        string        `yaml:"issuer" split_words:"true"`
	Audience      string        `yaml:"audience" split_words:"true"`
	ClockSkew     time.Duration `yaml:"clockSkew" split_words:"true"`
}

type Chat struct {
	MaxMessageLength int `yaml:"maxMessageLength" split_words:"true"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Badger   Badger   `yaml:"badger"`
	Redis    Redis    `yaml:"redis"`
	Auth     Auth     `yaml:"auth"`
	Chat     Chat     `yaml:"chat"`
}

// LoadConfig читает YAML из CONFIG_PATH, поверх накладывает переменные CHAT_*.
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if !c.Badger.InMemory && c.Badger.Path == "" {
		return errors.New("badger.path is required unless badger.inMemory is set")
	}
	if c.Chat.MaxMessageLength < 0 {
		return errors.New("chat.maxMessageLength must be >= 0")
	}
	// установка дефолтов, если значения не указаны
	if c.HTTP.RequestTimeout == 0 {
		c.HTTP.RequestTimeout = 30 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.GRPC.RequestTimeout == 0 {
		c.GRPC.RequestTimeout = 10 * time.Second
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "chat:changes"
	}
	if c.Auth.ClockSkew == 0 {
		c.Auth.ClockSkew = 30 * time.Second
	}
	if c.Chat.MaxMessageLength == 0 {
		c.Chat.MaxMessageLength = 4000
	}
	return nil
}
