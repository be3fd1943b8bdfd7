package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	assert.NilError(t, err)

	assert.Equal(t, cfg.HTTPPort, "8080")
	assert.Equal(t, cfg.StorageBackend, BackendMemory)
	assert.Equal(t, cfg.CartBackend, BackendMemory)
	assert.Equal(t, cfg.Postgres.Port, 5432)
	assert.Equal(t, cfg.OutboxPollInterval, 2*time.Second)
	assert.Equal(t, cfg.OutboxRecoveryInterval, 30*time.Second)
	assert.Check(t, is.Len(cfg.KafkaBrokers, 0))
	assert.Equal(t, cfg.RedisAddr, "")
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("CART_BACKEND", "mongo")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("SUPPLIERS", "x=Tools Inc, y")

	cfg, err := Load("")
	assert.NilError(t, err)

	assert.Equal(t, cfg.StorageBackend, BackendPostgres)
	assert.Equal(t, cfg.CartBackend, BackendMongo)
	assert.Equal(t, cfg.Postgres.Port, 6543)
	assert.DeepEqual(t, cfg.KafkaBrokers, []string{"k1:9092", "k2:9092"})
	assert.Equal(t, cfg.OutboxPollInterval, 500*time.Millisecond)
	assert.Assert(t, cfg.LogPretty)
	assert.Check(t, is.Len(cfg.Suppliers, 2))
	assert.Equal(t, cfg.Suppliers[0].Name, "Tools Inc")
	assert.Equal(t, cfg.Suppliers[1].ID, "y")
	assert.Equal(t, cfg.Suppliers[1].Name, "y")
}

func TestLoad_EnvFile(t *testing.T) {
	// godotenv does not override variables already present
	t.Setenv("REDIS_ADDR", "")
	os.Unsetenv("REDIS_ADDR")

	path := filepath.Join(t.TempDir(), ".env")
	assert.NilError(t, os.WriteFile(path, []byte("REDIS_ADDR=cache:6379\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("REDIS_ADDR") })

	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.RedisAddr, "cache:6379")
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NilError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"STORAGE_BACKEND":          "sqlite",
		"CART_BACKEND":             "redis",
		"DB_PORT":                  "five",
		"REQUEST_TIMEOUT":          "soon",
		"OUTBOX_POLL_INTERVAL":     "-1s",
		"OUTBOX_RECOVERY_INTERVAL": "0s",
		"SUPPLIERS":                "=Nameless",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load("")
			assert.Assert(t, err != nil)
		})
	}
}
