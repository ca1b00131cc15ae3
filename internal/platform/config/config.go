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

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HMDAMART_"

// Config is the full process configuration. Values come from Default, then
// an optional YAML file, then environment variables.
type Config struct {
	Server      Server            `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Source      SourceConfig      `yaml:"source"`
	Derived     DerivedConfig     `yaml:"derived"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Materialize MaterializeConfig `yaml:"materialize"`
}

// Server captures ops HTTP server configuration.
type Server struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	// RequestTimeout bounds API request contexts, including synchronous
	// runs triggered with ?wait=true.
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// SourceConfig points at the read-only LAR table.
type SourceConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

type DerivedConfig struct {
	DSN          string `yaml:"dsn"`
	EnsureSchema bool   `yaml:"ensure_schema"`
}

// RedisConfig is optional; an empty URL disables the distributed run lock.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

// KafkaConfig is optional; no brokers disables partition events.
type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	Topic             string   `yaml:"topic"`
	ClientID          string   `yaml:"client_id"`
	Partitions        int32    `yaml:"partitions"`
	ReplicationFactor int16    `yaml:"replication_factor"`
}

type MaterializeConfig struct {
	FloorYear      int           `yaml:"floor_year"`
	Workers        int           `yaml:"workers"`
	ChunkSize      int           `yaml:"chunk_size"`
	BatchSize      int           `yaml:"batch_size"`
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// Default returns a configuration suitable for local development.
func Default() Config {
	return Config{
		Server: Server{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			RequestTimeout:    30 * time.Minute,
			ShutdownTimeout:   15 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Source: SourceConfig{
			Table: "hmda_lar",
		},
		Derived: DerivedConfig{EnsureSchema: true},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			LockTTL:      2 * time.Minute,
		},
		Kafka: KafkaConfig{
			Topic:             "hmda.partitions",
			ClientID:          "hmdamart",
			Partitions:        1,
			ReplicationFactor: 1,
		},
		Materialize: MaterializeConfig{
			FloorYear:      2017,
			Workers:        4,
			ChunkSize:      512,
			BatchSize:      5000,
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), and HMDAMART_* environment variables, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("HTTP_ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("SOURCE_DSN", &c.Source.DSN)
	str("SOURCE_TABLE", &c.Source.Table)
	str("DERIVED_DSN", &c.Derived.DSN)
	str("REDIS_URL", &c.Redis.URL)
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	if v, ok := os.LookupEnv(EnvPrefix + "KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}

	return errors.Join(
		integer("FLOOR_YEAR", &c.Materialize.FloorYear),
		integer("WORKERS", &c.Materialize.Workers),
		integer("BATCH_SIZE", &c.Materialize.BatchSize),
		integer("MAX_ATTEMPTS", &c.Materialize.MaxAttempts),
	)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks values that would otherwise fail deep inside a run.
func (c Config) Validate() error {
	var errs []error
	m := c.Materialize
	if m.Workers < 1 {
		errs = append(errs, fmt.Errorf("materialize.workers must be at least 1, got %d", m.Workers))
	}
	if m.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("materialize.batch_size must be at least 1, got %d", m.BatchSize))
	}
	if m.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("materialize.chunk_size must be at least 1, got %d", m.ChunkSize))
	}
	if m.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("materialize.max_attempts must be at least 1, got %d", m.MaxAttempts))
	}
	if m.FloorYear < 1990 || m.FloorYear > 9999 {
		errs = append(errs, fmt.Errorf("materialize.floor_year out of range: %d", m.FloorYear))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}
