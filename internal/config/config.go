package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "MARKET_"
	defaultConfigFile = "configs/base.yaml"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		RequestTimeout  time.Duration `koanf:"request_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
		MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	} `koanf:"http"`

	Store struct {
		Driver     string `koanf:"driver"`
		SQLitePath string `koanf:"sqlite_path"`
		Postgres   struct {
			Host     string `koanf:"host"`
			Port     int    `koanf:"port"`
			User     string `koanf:"user"`
			Password string `koanf:"password"`
			DBName   string `koanf:"dbname"`
			SSLMode  string `koanf:"sslmode"`
		} `koanf:"postgres"`
	} `koanf:"store"`

	Mongo struct {
		URI            string        `koanf:"uri"`
		Database       string        `koanf:"database"`
		ConnectTimeout time.Duration `koanf:"connect_timeout"`
		MaxPoolSize    uint64        `koanf:"max_pool_size"`
	} `koanf:"mongo"`

	// Redis backs the cart cache and idempotency keys. Empty Addr disables both.
	Redis struct {
		Addr     string        `koanf:"addr"`
		Password string        `koanf:"password"`
		DB       int           `koanf:"db"`
		CartTTL  time.Duration `koanf:"cart_ttl"`
	} `koanf:"redis"`

	Kafka struct {
		Brokers []string `koanf:"brokers"`
		Topic   string   `koanf:"topic"`
	} `koanf:"kafka"`

	Rabbit struct {
		URL      string `koanf:"url"`
		Exchange string `koanf:"exchange"`
	} `koanf:"rabbitmq"`

	Notify struct {
		Driver  string `koanf:"driver"` // kafka, rabbitmq or none
		Breaker struct {
			Failures         uint32        `koanf:"failures"`
			OpenTimeout      time.Duration `koanf:"open_timeout"`
			HalfOpenRequests uint32        `koanf:"half_open_requests"`
		} `koanf:"breaker"`
	} `koanf:"notify"`

	Checkout struct {
		Workers        int           `koanf:"workers"`
		Currency       string        `koanf:"currency"`
		IdempotencyTTL time.Duration `koanf:"idempotency_ttl"`
	} `koanf:"checkout"`

	Auth struct {
		JWTSecret string `koanf:"jwt_secret"`
		Issuer    string `koanf:"issuer"`
	} `koanf:"auth"`

	Log struct {
		Level string `koanf:"level"`
		File  string `koanf:"file"`
	} `koanf:"log"`
}

// Default returns the built-in configuration: SQLite store, no broker.
func Default() Config {
	var c Config
	c.App.Name = "marketplace-checkout"
	c.App.HTTPAddr = ":8080"

	c.HTTP.ReadTimeout = 10 * time.Second
	c.HTTP.WriteTimeout = 30 * time.Second
	c.HTTP.IdleTimeout = 60 * time.Second
	c.HTTP.RequestTimeout = 20 * time.Second
	c.HTTP.ShutdownTimeout = 10 * time.Second
	c.HTTP.MaxBodyBytes = 1 << 20 // 1MB

	c.Store.Driver = "sqlite"
	c.Store.SQLitePath = "data/marketplace.db"
	c.Store.Postgres.Host = "localhost"
	c.Store.Postgres.Port = 5432
	c.Store.Postgres.DBName = "marketplace"
	c.Store.Postgres.SSLMode = "disable"

	c.Mongo.URI = "mongodb://localhost:27017"
	c.Mongo.Database = "marketplace"
	c.Mongo.ConnectTimeout = 10 * time.Second
	c.Mongo.MaxPoolSize = 100

	c.Redis.CartTTL = 15 * time.Minute

	c.Kafka.Topic = "seller-notifications"
	c.Rabbit.Exchange = "seller.notifications"

	c.Notify.Driver = "none"
	c.Notify.Breaker.Failures = 5
	c.Notify.Breaker.OpenTimeout = 30 * time.Second
	c.Notify.Breaker.HalfOpenRequests = 1

	c.Checkout.Workers = 4
	c.Checkout.Currency = "USD"
	c.Checkout.IdempotencyTTL = 24 * time.Hour

	c.Auth.Issuer = "marketplace"
	c.Log.Level = "info"
	return c
}

// Load layers defaults, an optional YAML file and MARKET_ environment
// variables, in that order. An empty path falls back to $CONFIG_FILE and then
// configs/base.yaml; only an explicitly named file has to exist.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		if p := os.Getenv("CONFIG_FILE"); p != "" {
			path, explicit = p, true
		} else {
			path = defaultConfigFile
		}
	}

	k := koanf.New(".")

	// 1) file
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// 2) environment variables override (prefix MARKET_, nested with __)
	// e.g. MARKET_STORE__POSTGRES__PASSWORD, MARKET_KAFKA__BROKERS=a:9092,b:9092
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(key, envPrefix)
		key = strings.ToLower(strings.ReplaceAll(key, "__", "."))
		if key == "kafka.brokers" {
			return key, strings.Split(value, ",")
		}
		return key, value
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	switch c.Store.Driver {
	case "postgres":
		if c.Store.Postgres.Host == "" || c.Store.Postgres.DBName == "" {
			return fmt.Errorf("store.postgres host and dbname required")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path required")
		}
	default:
		return fmt.Errorf("store.driver %q: want postgres or sqlite", c.Store.Driver)
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri required")
	}
	switch c.Notify.Driver {
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers required for notify.driver kafka")
		}
	case "rabbitmq":
		if c.Rabbit.URL == "" {
			return fmt.Errorf("rabbitmq.url required for notify.driver rabbitmq")
		}
	case "none":
	default:
		return fmt.Errorf("notify.driver %q: want kafka, rabbitmq or none", c.Notify.Driver)
	}
	if c.Checkout.Workers <= 0 {
		return fmt.Errorf("checkout.workers must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret required")
	}
	return nil
}
