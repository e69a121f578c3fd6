package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ServiceName    = "book-order"
	ServiceVersion = "0.1.0"
	envPrefix      = "BOOKORDER_"
)

type Config struct {
	HTTPAddr          string `yaml:"http_addr"`
	GRPCAddr          string `yaml:"grpc_addr"`
	LogMode           string `yaml:"log_mode"`
	LowStockThreshold int    `yaml:"low_stock_threshold"`
	Seed              bool   `yaml:"seed"`

	Storage Storage `yaml:"storage"`
	Redis   Redis   `yaml:"redis"`
	Broker  Broker  `yaml:"broker"`
	Outbox  Outbox  `yaml:"outbox"`
	Tracing Tracing `yaml:"tracing"`
}

type Storage struct {
	// Driver is one of memory, mysql, postgres, sqlite.
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Redis is optional; without an address idempotency keys are kept in memory.
type Redis struct {
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	PoolSize       int           `yaml:"pool_size"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

type Broker struct {
	// Kind is one of log, rabbitmq, kafka, redis.
	Kind          string   `yaml:"kind"`
	URL           string   `yaml:"url"`
	Queue         string   `yaml:"queue"`
	Brokers       []string `yaml:"brokers"`
	TopicPrefix   string   `yaml:"topic_prefix"`
	ChannelPrefix string   `yaml:"channel_prefix"`
}

type Outbox struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
}

type Tracing struct {
	// Exporter is one of none, stdout, otlp.
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

func Default() *Config {
	return &Config{
		HTTPAddr:          ":8080",
		GRPCAddr:          ":50051",
		LogMode:           "development",
		LowStockThreshold: 5,
		Storage: Storage{
			Driver:          "memory",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: Redis{
			PoolSize:       100,
			IdempotencyTTL: 24 * time.Hour,
		},
		Broker: Broker{
			Kind:          "log",
			Queue:         "order_events",
			ChannelPrefix: "bookorder:events:",
		},
		Outbox: Outbox{
			PollInterval: time.Second,
			BatchSize:    10,
		},
		Tracing: Tracing{
			Exporter:    "none",
			SampleRatio: 1,
		},
	}
}

// Load applies, in order: defaults, the YAML file at path (skipped when
// path is empty), BOOKORDER_* environment variables. The result is
// validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(envPrefix + name); ok {
			i, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = i
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(envPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("HTTP_ADDR", &c.HTTPAddr)
	str("GRPC_ADDR", &c.GRPCAddr)
	str("LOG_MODE", &c.LogMode)
	num("LOW_STOCK_THRESHOLD", &c.LowStockThreshold)
	flag("SEED", &c.Seed)

	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_DSN", &c.Storage.DSN)
	num("STORAGE_MAX_OPEN_CONNS", &c.Storage.MaxOpenConns)
	num("STORAGE_MAX_IDLE_CONNS", &c.Storage.MaxIdleConns)
	dur("STORAGE_CONN_MAX_LIFETIME", &c.Storage.ConnMaxLifetime)

	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	num("REDIS_DB", &c.Redis.DB)
	num("REDIS_POOL_SIZE", &c.Redis.PoolSize)
	dur("REDIS_IDEMPOTENCY_TTL", &c.Redis.IdempotencyTTL)

	str("BROKER_KIND", &c.Broker.Kind)
	str("BROKER_URL", &c.Broker.URL)
	str("BROKER_QUEUE", &c.Broker.Queue)
	str("BROKER_TOPIC_PREFIX", &c.Broker.TopicPrefix)
	str("BROKER_CHANNEL_PREFIX", &c.Broker.ChannelPrefix)
	if v, ok := lookup(envPrefix + "BROKER_BROKERS"); ok {
		c.Broker.Brokers = splitList(v)
	}

	dur("OUTBOX_POLL_INTERVAL", &c.Outbox.PollInterval)
	num("OUTBOX_BATCH_SIZE", &c.Outbox.BatchSize)

	str("TRACING_EXPORTER", &c.Tracing.Exporter)
	str("TRACING_ENDPOINT", &c.Tracing.Endpoint)
	flag("TRACING_INSECURE", &c.Tracing.Insecure)
	if v, ok := lookup(envPrefix + "TRACING_SAMPLE_RATIO"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTRACING_SAMPLE_RATIO: %w", envPrefix, err))
		} else {
			c.Tracing.SampleRatio = f
		}
	}

	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "memory":
	case "mysql", "postgres", "sqlite":
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	switch c.Broker.Kind {
	case "log":
	case "rabbitmq":
		if c.Broker.URL == "" || c.Broker.Queue == "" {
			errs = append(errs, errors.New("broker.url and broker.queue are required for rabbitmq"))
		}
	case "kafka":
		if len(c.Broker.Brokers) == 0 {
			errs = append(errs, errors.New("broker.brokers is required for kafka"))
		}
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis broker"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown broker.kind %q", c.Broker.Kind))
	}

	switch c.Tracing.Exporter {
	case "none", "stdout":
	case "otlp":
		if c.Tracing.Endpoint == "" {
			errs = append(errs, errors.New("tracing.endpoint is required for the otlp exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown tracing.exporter %q", c.Tracing.Exporter))
	}

	if c.LowStockThreshold < 0 {
		errs = append(errs, errors.New("low_stock_threshold cannot be negative"))
	}
	if c.Outbox.PollInterval <= 0 || c.Outbox.BatchSize <= 0 {
		errs = append(errs, errors.New("outbox.poll_interval and outbox.batch_size must be positive"))
	}

	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
