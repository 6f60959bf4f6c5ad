package quota

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/db/sqldb"
	"github.com/openstack/zun-sub002/internal/pkg/models"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) Engine {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := sqldb.NewWithDialector(sqlite.Open(dsn), db.NameScopeNone)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return NewEngine(conn)
}

func TestEffectiveLimitResolutionOrder(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.SetClassQuota(ctx, DefaultClassName, "containers", 40)
	require.NoError(t, err)
	_, err = engine.SetClassQuota(ctx, "gold", "containers", 100)
	require.NoError(t, err)
	_, err = engine.SetProjectQuota(ctx, "p1", "containers", 10)
	require.NoError(t, err)

	tests := []struct {
		name      string
		projectID string
		className string
		resource  string
		limit     int64
		limited   bool
	}{
		{
			name:      "project row wins over class",
			projectID: "p1",
			className: "gold",
			resource:  "containers",
			limit:     10,
			limited:   true,
		},
		{
			name:      "assigned class applies without project row",
			projectID: "p2",
			className: "gold",
			resource:  "containers",
			limit:     100,
			limited:   true,
		},
		{
			name:      "default class applies without assigned class",
			projectID: "p2",
			resource:  "containers",
			limit:     40,
			limited:   true,
		},
		{
			name:      "unknown class falls back to default class",
			projectID: "p2",
			className: "silver",
			resource:  "containers",
			limit:     40,
			limited:   true,
		},
		{
			name:      "no row anywhere means unrestricted",
			projectID: "p2",
			className: "gold",
			resource:  "disk",
			limit:     models.UnlimitedQuota,
			limited:   false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			limit, limited, err := engine.EffectiveLimit(ctx, tt.projectID, tt.className, tt.resource)
			require.NoError(t, err)
			require.Equal(t, tt.limit, limit)
			require.Equal(t, tt.limited, limited)
		})
	}
}

func TestUnlimitedSentinelIsNotALimit(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.SetProjectQuota(ctx, "p1", "memory", models.UnlimitedQuota)
	require.NoError(t, err)

	limit, limited, err := engine.EffectiveLimit(ctx, "p1", "", "memory")
	require.NoError(t, err)
	require.Equal(t, models.UnlimitedQuota, limit)
	require.False(t, limited)
}

func TestSetProjectQuotaUpserts(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	created, err := engine.SetProjectQuota(ctx, "p1", "containers", 10)
	require.NoError(t, err)
	require.Equal(t, int64(10), created.HardLimit)

	updated, err := engine.SetProjectQuota(ctx, "p1", "containers", 20)
	require.NoError(t, err)
	require.Equal(t, int64(20), updated.HardLimit)
	require.Equal(t, created.ID, updated.ID)
}

func TestProjectLimitsOverlay(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.SetClassQuota(ctx, "gold", "containers", 100)
	require.NoError(t, err)
	_, err = engine.SetClassQuota(ctx, "gold", "memory", 4096)
	require.NoError(t, err)
	_, err = engine.SetProjectQuota(ctx, "p1", "containers", 10)
	require.NoError(t, err)

	limits, err := engine.ProjectLimits(ctx, "p1", "gold")
	require.NoError(t, err)
	require.Equal(t, "gold", limits.ClassName)
	require.Equal(t, map[string]int64{
		"containers": 10,
		"memory":     4096,
	}, limits.Resources)
}

func TestClassAggregates(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.SetClassQuota(ctx, DefaultClassName, "containers", 40)
	require.NoError(t, err)
	_, err = engine.SetClassQuota(ctx, DefaultClassName, "memory", 2048)
	require.NoError(t, err)

	defaults, err := engine.DefaultClass(ctx)
	require.NoError(t, err)
	require.Equal(t, DefaultClassName, defaults.ClassName)
	require.Len(t, defaults.Resources, 2)

	empty, err := engine.GetAllByName(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, empty.Resources)
}
