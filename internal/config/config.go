// Package config reads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
	"github.com/tamoykinden/Final-project-auto-purch/internal/storage/postgres"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type Config struct {
	ServiceName string
	LogLevel    string
	LogPretty   bool

	HTTPPort        string
	GRPCPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	// StorageBackend selects the catalog, order and outbox store: memory or postgres.
	StorageBackend string
	Postgres       postgres.Credentials

	// CartBackend selects the cart repository: memory or mongo.
	CartBackend string
	MongoURI    string
	MongoDB     string

	// RedisAddr enables the cart cache when set.
	RedisAddr string

	// KafkaBrokers empty means events are only logged.
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaGroupID       string
	OutboxPollInterval time.Duration

	// OutboxRecoveryInterval is how often, and after how long, lost events are emitted again.
	OutboxRecoveryInterval time.Duration

	// Suppliers are registered at startup, parsed from SUPPLIERS="id=Name,id=Name".
	Suppliers []domain.Supplier
}

// Load reads an optional .env file and the environment. A missing file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "autopurch"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		HTTPPort: getEnv("HTTP_PORT", "8080"),
		GRPCPort: getEnv("GRPC_PORT", "50051"),

		StorageBackend: getEnv("STORAGE_BACKEND", BackendMemory),
		Postgres: postgres.Credentials{
			Host:              getEnv("DB_HOST", "localhost"),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", "postgres"),
			DBName:            getEnv("DB_NAME", "autopurch"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/storage/postgres/migrations"),
		},

		CartBackend: getEnv("CART_BACKEND", BackendMemory),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getEnv("MONGO_DB", "autopurch"),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "order-events"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "notifier"),
	}

	suppliers, err := parseSuppliers(os.Getenv("SUPPLIERS"))
	if err != nil {
		return nil, err
	}
	cfg.Suppliers = suppliers

	if cfg.LogPretty, err = strconv.ParseBool(getEnv("LOG_PRETTY", "false")); err != nil {
		return nil, fmt.Errorf("invalid LOG_PRETTY: %w", err)
	}
	if cfg.Postgres.Port, err = strconv.Atoi(getEnv("DB_PORT", "5432")); err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	if cfg.RequestTimeout, err = time.ParseDuration(getEnv("REQUEST_TIMEOUT", "30s")); err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	if cfg.OutboxPollInterval, err = time.ParseDuration(getEnv("OUTBOX_POLL_INTERVAL", "2s")); err != nil {
		return nil, fmt.Errorf("invalid OUTBOX_POLL_INTERVAL: %w", err)
	}
	if cfg.OutboxRecoveryInterval, err = time.ParseDuration(getEnv("OUTBOX_RECOVERY_INTERVAL", "30s")); err != nil {
		return nil, fmt.Errorf("invalid OUTBOX_RECOVERY_INTERVAL: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.CartBackend {
	case BackendMemory, BackendMongo:
	default:
		return fmt.Errorf("unknown CART_BACKEND %q", c.CartBackend)
	}
	if c.OutboxPollInterval <= 0 {
		return errors.New("OUTBOX_POLL_INTERVAL must be positive")
	}
	if c.OutboxRecoveryInterval <= 0 {
		return errors.New("OUTBOX_RECOVERY_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseSuppliers(value string) ([]domain.Supplier, error) {
	var out []domain.Supplier
	for _, entry := range splitList(value) {
		id, name, _ := strings.Cut(entry, "=")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if id == "" {
			return nil, fmt.Errorf("invalid SUPPLIERS entry %q", entry)
		}
		if name == "" {
			name = id
		}
		out = append(out, domain.Supplier{ID: id, Name: name})
	}
	return out, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
