package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "base.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  http_addr: ":9090"
store:
  driver: postgres
  postgres:
    host: db
    user: market
    password: secret
notify:
  driver: kafka
kafka:
  brokers: ["k1:9092", "k2:9092"]
checkout:
  workers: 8
mongo:
  connect_timeout: 3s
auth:
  jwt_secret: s3cret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.App.HTTPAddr)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "db", cfg.Store.Postgres.Host)
	assert.Equal(t, 5432, cfg.Store.Postgres.Port, "default kept")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 8, cfg.Checkout.Workers)
	assert.Equal(t, "USD", cfg.Checkout.Currency, "default kept")
	assert.Equal(t, 15*time.Minute, cfg.Redis.CartTTL)
	assert.Equal(t, 3*time.Second, cfg.Mongo.ConnectTimeout)
	assert.Equal(t, uint64(100), cfg.Mongo.MaxPoolSize, "default kept")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: from-file
checkout:
  workers: 2
`)
	t.Setenv("MARKET_AUTH__JWT_SECRET", "from-env")
	t.Setenv("MARKET_CHECKOUT__WORKERS", "6")
	t.Setenv("MARKET_CHECKOUT__IDEMPOTENCY_TTL", "2h")
	t.Setenv("MARKET_NOTIFY__DRIVER", "kafka")
	t.Setenv("MARKET_KAFKA__BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 6, cfg.Checkout.Workers)
	assert.Equal(t, 2*time.Hour, cfg.Checkout.IdempotencyTTL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_MissingDefaultFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MARKET_AUTH__JWT_SECRET", "x")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "none", cfg.Notify.Driver)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Auth.JWTSecret = "x"
		return c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no http addr", func(c *Config) { c.App.HTTPAddr = "" }},
		{"unknown store", func(c *Config) { c.Store.Driver = "mysql" }},
		{"sqlite without path", func(c *Config) { c.Store.SQLitePath = "" }},
		{"unknown notifier", func(c *Config) { c.Notify.Driver = "email" }},
		{"kafka without brokers", func(c *Config) { c.Notify.Driver = "kafka" }},
		{"rabbit without url", func(c *Config) { c.Notify.Driver = "rabbitmq" }},
		{"zero workers", func(c *Config) { c.Checkout.Workers = 0 }},
		{"no jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
