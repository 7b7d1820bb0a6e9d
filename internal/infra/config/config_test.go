package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, StoreMemory, cfg.StoreMode)
	require.Equal(t, 5*time.Second, cfg.ScyllaTimeout)
	require.Equal(t, "messaging.events", cfg.KafkaTopic)
}

func TestLoad_MongoModeRequiresURI(t *testing.T) {
	t.Setenv("STORE_MODE", "mongo")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StoreMongo, cfg.StoreMode)
}

func TestLoad_ScyllaModeRequiresHostsAndDirectory(t *testing.T) {
	t.Setenv("STORE_MODE", "scylla")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("SCYLLA_HOSTS", "node1:9042, node2:9042")
	_, err = Load()
	require.Error(t, err) // directory still needs Mongo

	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"node1:9042", "node2:9042"}, cfg.ScyllaHosts)
}

func TestLoad_UnknownStoreMode(t *testing.T) {
	t.Setenv("STORE_MODE", "postgres")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("SCYLLA_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_KafkaBrokerList(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,,broker2:9092")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
}
