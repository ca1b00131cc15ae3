package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hmdamart.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
source:
  dsn: postgres://ro@lar/hmda
derived:
  dsn: postgres://rw@mart/hmda
kafka:
  brokers: [k1:9092, k2:9092]
materialize:
  floor_year: 2018
  workers: 8
  initial_backoff: 250ms
`), 0o600))

	t.Setenv("HMDAMART_WORKERS", "2")
	t.Setenv("HMDAMART_REDIS_URL", "redis://cache:6379/0")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres://ro@lar/hmda", cfg.Source.DSN)
	assert.Equal(t, "hmda_lar", cfg.Source.Table, "unset keys keep defaults")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2018, cfg.Materialize.FloorYear)
	assert.Equal(t, 2, cfg.Materialize.Workers, "env wins over file")
	assert.Equal(t, 250*time.Millisecond, cfg.Materialize.InitialBackoff)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("HMDAMART_KAFKA_BROKERS", " a:1, ,b:2 ")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2017, cfg.Materialize.FloorYear)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "read config")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("materialize: [1, 2"), 0o600))
		_, err := Load(path)
		assert.ErrorContains(t, err, "parse config")
	})

	t.Run("bad integer env", func(t *testing.T) {
		t.Setenv("HMDAMART_BATCH_SIZE", "lots")
		_, err := Load("")
		assert.ErrorContains(t, err, "HMDAMART_BATCH_SIZE")
	})
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Materialize.Workers = 0
	cfg.Materialize.BatchSize = -1
	cfg.Log.Format = "xml"
	cfg.Kafka.Brokers = []string{"k:9092"}
	cfg.Kafka.Topic = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "materialize.workers")
	assert.ErrorContains(t, err, "materialize.batch_size")
	assert.ErrorContains(t, err, "log.format")
	assert.ErrorContains(t, err, "kafka.topic")
}
