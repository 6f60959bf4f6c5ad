package controlplane

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openstack/zun-sub002/internal/app/audit"
	"github.com/openstack/zun-sub002/internal/app/placement"
	"github.com/openstack/zun-sub002/internal/app/quota"
	"github.com/openstack/zun-sub002/internal/app/service"
	"github.com/openstack/zun-sub002/internal/pkg/concurrency/runner"
	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/db/factory"
	"github.com/openstack/zun-sub002/internal/pkg/db/kvdb"
	"github.com/openstack/zun-sub002/internal/pkg/db/sqldb"
	"github.com/openstack/zun-sub002/internal/pkg/metrics"
	"github.com/openstack/zun-sub002/pkg/logger"
	"github.com/openstack/zun-sub002/pkg/messaging"
)

var log = logger.NewLogger("zun.controlplane")

type Options struct {
	DatabaseBackend           string
	SQL                       sqldb.Options
	KV                        kvdb.Options
	ContainerNameScope        string
	ServiceBinary             string
	HeartbeatInterval         time.Duration
	MessagingBootstrapServers string
}

// Controlplane owns the persistence layer and the domain engines built on
// top of it. Run keeps the service liveness record fresh until shutdown.
type Controlplane interface {
	Run(ctx context.Context) error
	Connection() db.Connection
	Placement() placement.Engine
	Quota() quota.Engine
	Audit() audit.Recorder
}

type controlplane struct {
	conn            db.Connection
	placementEngine placement.Engine
	quotaEngine     quota.Engine
	auditRecorder   audit.Recorder
	producer        messaging.Producer
	heartbeat       service.Heartbeat
}

// New builds the full persistence stack: the configured backend, the domain
// engines and the liveness reporter.
func New(ctx context.Context, opts Options) (Controlplane, error) {
	nameScope, err := db.ParseNameScope(opts.ContainerNameScope)
	if err != nil {
		return nil, fmt.Errorf("invalid container name scope: %w", err)
	}
	opts.SQL.NameScope = nameScope
	opts.KV.NameScope = nameScope

	conn, err := factory.New(factory.Options{
		Backend: opts.DatabaseBackend,
		SQL:     opts.SQL,
		KV:      opts.KV,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating database connection: %w", err)
	}
	if err := db.Init(conn); err != nil {
		return nil, fmt.Errorf("error while initializing database: %w", err)
	}

	var producer messaging.Producer
	if opts.MessagingBootstrapServers != "" {
		producer, err = messaging.NewProducer(ctx, messaging.Options{
			BootstrapServers: opts.MessagingBootstrapServers,
		})
		if err != nil {
			return nil, fmt.Errorf("error while creating messaging producer: %w", err)
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("error while resolving hostname: %w", err)
	}

	return &controlplane{
		conn:            conn,
		placementEngine: placement.NewEngine(conn),
		quotaEngine:     quota.NewEngine(conn),
		auditRecorder:   audit.NewRecorder(conn, producer),
		producer:        producer,
		heartbeat: service.NewHeartbeat(conn, service.Options{
			Host:     hostname,
			Binary:   opts.ServiceBinary,
			Interval: opts.HeartbeatInterval,
			Sampler:  metrics.NewSampler(),
		}),
	}, nil
}

func (c *controlplane) Connection() db.Connection {
	return c.conn
}

func (c *controlplane) Placement() placement.Engine {
	return c.placementEngine
}

func (c *controlplane) Quota() quota.Engine {
	return c.quotaEngine
}

func (c *controlplane) Audit() audit.Recorder {
	return c.auditRecorder
}

func (c *controlplane) Run(ctx context.Context) error {
	caps := c.conn.Capabilities()
	log.Infof("database backend ready -- atomic updates: %t", caps.AtomicUpdate)

	runnerManager := runner.NewRunnerManager(
		c.heartbeat.Run,
	)
	if c.producer != nil {
		runnerManager.Add(func(ctx context.Context) error {
			<-ctx.Done()
			log.Info("closing messaging producer")
			c.producer.Close()
			return ctx.Err()
		})
	}
	return runnerManager.Run(ctx)
}
