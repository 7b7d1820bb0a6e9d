package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store modes supported by the messaging core.
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreScylla = "scylla"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env       string
	HTTPAddr  string
	StoreMode string

	MongoURI string
	MongoDB  string

	ScyllaHosts       []string
	ScyllaKeyspace    string
	ScyllaTimeout     time.Duration
	ScyllaUsername    string
	ScyllaPassword    string
	ReplicationFactor int

	KafkaBrokers []string
	KafkaTopic   string

	RedisAddr         string
	PresenceKeyPrefix string
}

// Load parses configuration from the current environment. Backend-specific
// values are required only for the selected store mode.
func Load() (Config, error) {
	cfg := Config{
		Env:               getEnv("APP_ENV", "dev"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		StoreMode:         strings.ToLower(getEnv("STORE_MODE", StoreMemory)),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDB:           getEnv("MONGO_DB", "tradepost"),
		ScyllaKeyspace:    getEnv("SCYLLA_KEYSPACE", "tradepost_messaging"),
		ScyllaUsername:    os.Getenv("SCYLLA_USERNAME"),
		ScyllaPassword:    os.Getenv("SCYLLA_PASSWORD"),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "messaging.events"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		PresenceKeyPrefix: getEnv("PRESENCE_KEY_PREFIX", "presence"),
	}

	if hosts := getEnv("SCYLLA_HOSTS", ""); hosts != "" {
		cfg.ScyllaHosts = splitList(hosts)
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = splitList(brokers)
	}

	timeout, err := parseDurationEnv("SCYLLA_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.ScyllaTimeout = timeout

	factor, err := parseIntEnv("SCYLLA_REPLICATION_FACTOR", 1)
	if err != nil {
		return Config{}, err
	}
	cfg.ReplicationFactor = factor

	switch cfg.StoreMode {
	case StoreMemory:
	case StoreMongo:
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORE_MODE=%s", StoreMongo)
		}
	case StoreScylla:
		if len(cfg.ScyllaHosts) == 0 {
			return Config{}, fmt.Errorf("SCYLLA_HOSTS is required when STORE_MODE=%s", StoreScylla)
		}
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORE_MODE=%s (user directory)", StoreScylla)
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_MODE %q", cfg.StoreMode)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}
