package app

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/openstack/zun-sub002/cmd/controlplane/config"
	"github.com/openstack/zun-sub002/internal/app/controlplane"
	"github.com/openstack/zun-sub002/internal/pkg/db/kvdb"
	"github.com/openstack/zun-sub002/internal/pkg/db/sqldb"
	"github.com/openstack/zun-sub002/pkg/logger"
	"github.com/openstack/zun-sub002/pkg/signals"
)

var log = logger.NewLogger("zun.controlplane")

func Run() {
	// load environment variables from .env file for local development
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log.Infof("starting zun controlplane -- version %s", logger.Version)
	log.Infof("log level set to: %s", log.LogLevel())

	ctx := signals.Context()
	cp, err := controlplane.New(ctx, controlplane.Options{
		DatabaseBackend: cfg.DatabaseBackend,
		SQL: sqldb.Options{
			Host:     cfg.DatabaseHost,
			Port:     cfg.DatabasePort,
			Username: cfg.DatabaseUsername,
			Password: cfg.DatabasePassword,
			Database: cfg.DatabaseName,
			SslMode:  cfg.DatabaseSslMode,
		},
		KV: kvdb.Options{
			Address:  cfg.KvStoreAddress,
			Username: cfg.KvStoreUsername,
			Password: cfg.KvStorePassword,
			Database: cfg.KvStoreDatabase,
		},
		ContainerNameScope:        cfg.ContainerNameScope,
		ServiceBinary:             cfg.ServiceBinary,
		HeartbeatInterval:         time.Duration(cfg.HeartbeatInterval) * time.Second,
		MessagingBootstrapServers: cfg.MessagingBootstrapServers,
	})
	if err != nil {
		log.Fatalf("error while creating controlplane: %v", err)
	}

	if err := cp.Run(ctx); err != nil {
		log.Fatalf("error while running controlplane: %v", err)
	}

	log.Info("controlplane shut down gracefully")
}
