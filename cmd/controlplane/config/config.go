package config

import (
	"github.com/openstack/zun-sub002/pkg/configuration"
	"github.com/openstack/zun-sub002/pkg/logger"
	"github.com/spf13/viper"
)

var log = logger.NewLogger("zun.controlplane.config")

type Config struct {
	DatabaseBackend           string
	DatabaseHost              string
	DatabasePort              int
	DatabaseUsername          string
	DatabasePassword          string
	DatabaseName              string
	DatabaseSslMode           bool
	KvStoreAddress            string
	KvStoreUsername           string
	KvStorePassword           string
	KvStoreDatabase           int
	ContainerNameScope        string
	ServiceBinary             string
	HeartbeatInterval         int
	MessagingBootstrapServers string
}

func Load() (*Config, error) {
	var config Config

	// automatically load environment variables that match
	viper.AutomaticEnv()
	viper.SetEnvPrefix("ZUN")

	// loading the values from the environment or use default values
	configuration.LoadOrDefault("DatabaseBackend", "ZUN_DATABASE_BACKEND", "sql")
	configuration.LoadOrDefault("DatabaseHost", "ZUN_DATABASE_HOST", "localhost")
	configuration.LoadOrDefault("DatabasePort", "ZUN_DATABASE_PORT", 5432)
	configuration.LoadOrDefault("DatabaseUsername", "ZUN_DATABASE_USERNAME", "zun")
	configuration.LoadOrDefault("DatabasePassword", "ZUN_DATABASE_PASSWORD", "zun")
	configuration.LoadOrDefault("DatabaseName", "ZUN_DATABASE_NAME", "zun")
	configuration.LoadOrDefault("DatabaseSslMode", "ZUN_DATABASE_SSL_MODE", false)
	configuration.LoadOrDefault("KvStoreAddress", "ZUN_KV_STORE_ADDRESS", "localhost:6379")
	configuration.LoadOrDefault("KvStoreUsername", "ZUN_KV_STORE_USERNAME", "")
	configuration.LoadOrDefault("KvStorePassword", "ZUN_KV_STORE_PASSWORD", "")
	configuration.LoadOrDefault("KvStoreDatabase", "ZUN_KV_STORE_DATABASE", 0)
	configuration.LoadOrDefault("ContainerNameScope", "ZUN_CONTAINER_NAME_SCOPE", "")
	configuration.LoadOrDefault("ServiceBinary", "ZUN_SERVICE_BINARY", "zun-controlplane")
	configuration.LoadOrDefault("HeartbeatInterval", "ZUN_HEARTBEAT_INTERVAL", 10)
	configuration.LoadOrDefault("MessagingBootstrapServers", "ZUN_MESSAGING_BOOTSTRAP_SERVERS", "")

	// unmarshalling the Config struct
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("unable to unmarshal config: %v", err)
		return nil, err
	}

	return &config, nil
}
