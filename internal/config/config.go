package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Address     string
	StoreDriver string
	SQLitePath  string
	DatabaseURL string
	SeedPath    string
	WeightsPath string
	CORSOrigins []string
	// Redis match cache, disabled when RedisURL is empty
	RedisURL string
	CacheTTL time.Duration
	// Kafka change-event worker, disabled when KafkaBrokers is empty
	KafkaBrokers []string
	KafkaGroupID string
	ChangesTopic string
	MatchesTopic string

	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	cfg := Config{
		Address:      getenv("API_ADDRESS", ":8080"),
		StoreDriver:  strings.ToLower(getenv("STORE_DRIVER", DriverSQLite)),
		SQLitePath:   getenv("SQLITE_PATH", "data/units.db"),
		DatabaseURL:  getenv("DATABASE_URL", ""),
		SeedPath:     getenv("SEED_PATH", "data/seed.json"),
		WeightsPath:  getenv("WEIGHTS_PATH", "configs/weights.yaml"),
		CORSOrigins:  getenvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		RedisURL:     getenv("REDIS_URL", ""),
		CacheTTL:     getenvDuration("CACHE_TTL", 10*time.Minute),
		KafkaBrokers: getenvList("KAFKA_BROKERS", nil),
		KafkaGroupID: getenv("KAFKA_GROUP_ID", "unit-matching"),
		ChangesTopic: getenv("CHANGES_TOPIC", "crm.changes"),
		MatchesTopic: getenv("MATCHES_TOPIC", "crm.lead-matches"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFormat:    getenv("LOG_FORMAT", "text"),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want sqlite or postgres)", c.StoreDriver)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	return nil
}

func (c Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// bare numbers are seconds
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getenvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
