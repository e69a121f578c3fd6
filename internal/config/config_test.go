package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "log", cfg.Broker.Kind)
	assert.Equal(t, 5, cfg.LowStockThreshold)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
http_addr: ":9090"
low_stock_threshold: 3
seed: true
storage:
  driver: sqlite
  dsn: /tmp/books.db
broker:
  kind: kafka
  brokers: ["k1:9092", "k2:9092"]
  topic_prefix: "bookorder."
outbox:
  poll_interval: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, ":50051", cfg.GRPCAddr)
	assert.Equal(t, 3, cfg.LowStockThreshold)
	assert.True(t, cfg.Seed)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Broker.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
	assert.Equal(t, 10, cfg.Outbox.BatchSize)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"BOOKORDER_HTTP_ADDR":             ":7070",
		"BOOKORDER_LOW_STOCK_THRESHOLD":   "8",
		"BOOKORDER_SEED":                  "true",
		"BOOKORDER_STORAGE_DRIVER":        "postgres",
		"BOOKORDER_STORAGE_DSN":           "postgres://localhost/books",
		"BOOKORDER_REDIS_IDEMPOTENCY_TTL": "1h",
		"BOOKORDER_BROKER_BROKERS":        "a:9092, b:9092,",
		"BOOKORDER_TRACING_SAMPLE_RATIO":  "0.25",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, 8, cfg.LowStockThreshold)
	assert.True(t, cfg.Seed)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/books", cfg.Storage.DSN)
	assert.Equal(t, time.Hour, cfg.Redis.IdempotencyTTL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Broker.Brokers)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRatio)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"BOOKORDER_LOW_STOCK_THRESHOLD":  "many",
		"BOOKORDER_OUTBOX_POLL_INTERVAL": "soon",
		"BOOKORDER_SEED":                 "perhaps",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOOKORDER_LOW_STOCK_THRESHOLD")
	assert.Contains(t, err.Error(), "BOOKORDER_OUTBOX_POLL_INTERVAL")
	assert.Contains(t, err.Error(), "BOOKORDER_SEED")
	assert.Equal(t, 5, cfg.LowStockThreshold)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "oracle" }},
		{"sql driver without dsn", func(c *Config) { c.Storage.Driver = "mysql" }},
		{"unknown broker", func(c *Config) { c.Broker.Kind = "nats" }},
		{"rabbitmq without url", func(c *Config) { c.Broker.Kind = "rabbitmq" }},
		{"kafka without brokers", func(c *Config) { c.Broker.Kind = "kafka" }},
		{"redis broker without redis", func(c *Config) { c.Broker.Kind = "redis" }},
		{"otlp without endpoint", func(c *Config) { c.Tracing.Exporter = "otlp" }},
		{"unknown exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }},
		{"negative threshold", func(c *Config) { c.LowStockThreshold = -1 }},
		{"zero batch size", func(c *Config) { c.Outbox.BatchSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
