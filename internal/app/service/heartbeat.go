// Package service maintains the liveness record of a control plane process.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/metrics"
	"github.com/openstack/zun-sub002/internal/pkg/models"
	"github.com/openstack/zun-sub002/pkg/logger"
)

var log = logger.NewLogger("zun.service")

type Options struct {
	// Host and Binary identify the service record.
	Host   string
	Binary string

	// Interval between liveness reports.
	Interval time.Duration

	// Sampler, when set, keeps the compute node record for Host supplied
	// with current capacity counters.
	Sampler metrics.Sampler
}

type Heartbeat interface {
	Run(ctx context.Context) error
}

type heartbeat struct {
	conn     db.Connection
	host     string
	binary   string
	interval time.Duration
	sampler  metrics.Sampler
}

// NewHeartbeat creates a heartbeat that reports liveness for the given
// (host, binary) pair on the given connection.
func NewHeartbeat(conn db.Connection, opts Options) Heartbeat {
	return &heartbeat{
		conn:     conn,
		host:     opts.Host,
		binary:   opts.Binary,
		interval: opts.Interval,
		sampler:  opts.Sampler,
	}
}

// Run registers the service record if necessary and refreshes it until the
// context is cancelled.
func (h *heartbeat) Run(ctx context.Context) error {
	if err := h.register(ctx); err != nil {
		return fmt.Errorf("failed to register service record: %w", err)
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infof("stopping liveness reports for %s on %s", h.binary, h.host)
			return ctx.Err()
		case <-ticker.C:
			if err := h.report(ctx); err != nil {
				log.Errorf("failed to report liveness: %v", err)
			}
		}
	}
}

func (h *heartbeat) register(ctx context.Context) error {
	_, err := h.conn.GetZunService(ctx, h.host, h.binary)
	if err == nil {
		return h.syncNode(ctx)
	}
	if !errdefs.IsNotFound(err) {
		return err
	}

	log.Infof("registering service record for %s on %s", h.binary, h.host)
	_, err = h.conn.CreateZunService(ctx, &models.ZunService{
		Host:   h.host,
		Binary: h.binary,
	})
	if err != nil && !errdefs.IsAlreadyExists(err) {
		return err
	}
	return h.syncNode(ctx)
}

func (h *heartbeat) report(ctx context.Context) error {
	current, err := h.conn.GetZunService(ctx, h.host, h.binary)
	if err != nil {
		return err
	}
	_, err = h.conn.UpdateZunService(ctx, h.host, h.binary, map[string]interface{}{
		"report_count": current.ReportCount + 1,
	})
	if err != nil {
		return err
	}
	return h.syncNode(ctx)
}

// syncNode upserts the compute node record for the host with the latest
// capacity sample. A nil sampler means this process does not manage a
// compute host.
func (h *heartbeat) syncNode(ctx context.Context) error {
	if h.sampler == nil {
		return nil
	}
	sample, err := h.sampler.Sample()
	if err != nil {
		return fmt.Errorf("failed to sample host capacity: %w", err)
	}

	node, err := h.conn.GetComputeNodeByHostname(ctx, h.host)
	if errdefs.IsNotFound(err) {
		log.Infof("registering compute node record for %s", h.host)
		_, err = h.conn.CreateComputeNode(ctx, &models.ComputeNode{
			Hostname: h.host,
			MemTotal: sample.MemTotal,
			MemFree:  sample.MemFree,
			CPUs:     sample.CPUs,
			CPUUsed:  sample.CPUUsed,
		})
		if err != nil && !errdefs.IsAlreadyExists(err) {
			return err
		}
		return nil
	}
	if err != nil {
		return err
	}

	_, err = h.conn.UpdateComputeNode(ctx, node.UUID, map[string]interface{}{
		"mem_total": sample.MemTotal,
		"mem_free":  sample.MemFree,
		"cpus":      sample.CPUs,
		"cpu_used":  sample.CPUUsed,
	})
	return err
}
