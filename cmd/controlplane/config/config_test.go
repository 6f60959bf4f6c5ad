package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, envs map[string]string) {
	t.Helper()

	original := make(map[string]string)
	for k := range envs {
		original[k] = os.Getenv(k)
	}

	for k, v := range envs {
		_ = os.Setenv(k, v)
	}

	t.Cleanup(func() {
		for k, v := range original {
			if v == "" {
				_ = os.Unsetenv(k)
			} else {
				_ = os.Setenv(k, v)
			}
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	withEnv(t, map[string]string{})

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sql", cfg.DatabaseBackend)
	require.Equal(t, "localhost", cfg.DatabaseHost)
	require.Equal(t, 5432, cfg.DatabasePort)
	require.Equal(t, "localhost:6379", cfg.KvStoreAddress)
	require.Equal(t, "zun-controlplane", cfg.ServiceBinary)
	require.Equal(t, 10, cfg.HeartbeatInterval)
	require.Empty(t, cfg.ContainerNameScope)
	require.Empty(t, cfg.MessagingBootstrapServers)
}

func TestLoadFromEnvironment(t *testing.T) {
	withEnv(t, map[string]string{
		"ZUN_DATABASE_BACKEND":            "kv",
		"ZUN_KV_STORE_ADDRESS":            "redis-1:6379",
		"ZUN_KV_STORE_DATABASE":           "3",
		"ZUN_CONTAINER_NAME_SCOPE":        "project",
		"ZUN_HEARTBEAT_INTERVAL":          "30",
		"ZUN_MESSAGING_BOOTSTRAP_SERVERS": "kafka-1:9092",
	})

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "kv", cfg.DatabaseBackend)
	require.Equal(t, "redis-1:6379", cfg.KvStoreAddress)
	require.Equal(t, 3, cfg.KvStoreDatabase)
	require.Equal(t, "project", cfg.ContainerNameScope)
	require.Equal(t, 30, cfg.HeartbeatInterval)
	require.Equal(t, "kafka-1:9092", cfg.MessagingBootstrapServers)
}
