package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/db/sqldb"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/metrics"
	"github.com/stretchr/testify/require"
)

type fakeSampler struct {
	sample metrics.NodeSample
}

func (f *fakeSampler) Sample() (*metrics.NodeSample, error) {
	sample := f.sample
	return &sample, nil
}

func newTestConn(t *testing.T) db.Connection {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := sqldb.NewWithDialector(sqlite.Open(dsn), db.NameScopeNone)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func TestRegisterIsIdempotent(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()

	h := NewHeartbeat(conn, Options{Host: "host-1", Binary: "zun-controlplane", Interval: time.Second}).(*heartbeat)
	require.NoError(t, h.register(ctx))
	require.NoError(t, h.register(ctx))

	svc, err := conn.GetZunService(ctx, "host-1", "zun-controlplane")
	require.NoError(t, err)
	require.Zero(t, svc.ReportCount)
	require.Nil(t, svc.LastSeenUp)
}

func TestReportAdvancesLiveness(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()

	h := NewHeartbeat(conn, Options{Host: "host-1", Binary: "zun-controlplane", Interval: time.Second}).(*heartbeat)
	require.NoError(t, h.register(ctx))

	require.NoError(t, h.report(ctx))
	require.NoError(t, h.report(ctx))

	svc, err := conn.GetZunService(ctx, "host-1", "zun-controlplane")
	require.NoError(t, err)
	require.Equal(t, int64(2), svc.ReportCount)
	require.NotNil(t, svc.LastSeenUp)
}

func TestHeartbeatKeepsComputeNodeFresh(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()

	sampler := &fakeSampler{sample: metrics.NodeSample{
		MemTotal: 16384,
		MemFree:  12288,
		CPUs:     8,
		CPUUsed:  1.5,
	}}
	h := NewHeartbeat(conn, Options{
		Host:     "host-1",
		Binary:   "zun-controlplane",
		Interval: time.Second,
		Sampler:  sampler,
	}).(*heartbeat)

	require.NoError(t, h.register(ctx))

	node, err := conn.GetComputeNodeByHostname(ctx, "host-1")
	require.NoError(t, err)
	require.Equal(t, int64(16384), node.MemTotal)
	require.Equal(t, int64(12288), node.MemFree)
	require.Equal(t, 8, node.CPUs)
	require.Equal(t, 1.5, node.CPUUsed)

	sampler.sample.MemFree = 8192
	sampler.sample.CPUUsed = 4.0
	require.NoError(t, h.report(ctx))

	refreshed, err := conn.GetComputeNodeByHostname(ctx, "host-1")
	require.NoError(t, err)
	require.Equal(t, node.UUID, refreshed.UUID)
	require.Equal(t, int64(8192), refreshed.MemFree)
	require.Equal(t, 4.0, refreshed.CPUUsed)
}

func TestHeartbeatWithoutSamplerSkipsComputeNode(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()

	h := NewHeartbeat(conn, Options{Host: "host-1", Binary: "zun-controlplane", Interval: time.Second}).(*heartbeat)
	require.NoError(t, h.register(ctx))
	require.NoError(t, h.report(ctx))

	_, err := conn.GetComputeNodeByHostname(ctx, "host-1")
	require.True(t, errdefs.IsNotFound(err))
}

func TestRunReportsUntilCancelled(t *testing.T) {
	conn := newTestConn(t)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	h := NewHeartbeat(conn, Options{Host: "host-1", Binary: "zun-controlplane", Interval: 10 * time.Millisecond})
	err := h.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	svc, err := conn.GetZunService(context.Background(), "host-1", "zun-controlplane")
	require.NoError(t, err)
	require.Positive(t, svc.ReportCount)
	require.NotNil(t, svc.LastSeenUp)
}
