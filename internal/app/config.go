package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// StorageDriver выбирает реализацию хранилищ.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	MetricsAddr          string
	LogLevel             string
	StorageDriver        StorageDriver
	PostgresDSN          string
	PostgresAutoMigrate  bool
	KafkaBrokers         string
	PipelinePollInterval time.Duration
	EventRetentionMaxAge time.Duration
}

// DefaultConfig возвращает настройки по умолчанию: in-memory хранилища,
// метрики на :9090, опрос конвейера дважды в секунду.
func DefaultConfig() Config {
	return Config{
		MetricsAddr:          ":9090",
		LogLevel:             "info",
		StorageDriver:        StorageDriverMemory,
		PostgresAutoMigrate:  true,
		PipelinePollInterval: 500 * time.Millisecond,
		EventRetentionMaxAge: 72 * time.Hour,
	}
}

// LoadConfig читает настройки из окружения поверх значений по умолчанию.
// Файл .env, если он есть, подхватывается до чтения переменных.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to load .env file")
	}

	cfg := DefaultConfig()
	if v := os.Getenv("SCOMS_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("SCOMS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("SCOMS_STORAGE_DRIVER"))); v != "" {
		cfg.StorageDriver = StorageDriver(v)
	}
	if v := os.Getenv("SCOMS_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("SCOMS_POSTGRES_AUTO_MIGRATE"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.PostgresAutoMigrate = parsed
		}
	}
	if v := os.Getenv("SCOMS_KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = v
	}
	if v := os.Getenv("SCOMS_PIPELINE_POLL_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			cfg.PipelinePollInterval = parsed
		}
	}
	if v := os.Getenv("SCOMS_EVENT_RETENTION_MAX_AGE"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			cfg.EventRetentionMaxAge = parsed
		}
	}
	return cfg
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
		return nil
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errPostgresDSNRequired
		}
		return nil
	default:
		return errUnknownStorageDriver
	}
}
