package kvdb

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/models"
	"github.com/openstack/zun-sub002/internal/pkg/scope"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, nameScope db.NameScope) db.Connection {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	conn := NewWithClient(rdb, nameScope)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func createContainer(t *testing.T, conn db.Connection, projectID string, name string) *models.Container {
	t.Helper()

	created, err := conn.CreateContainer(context.Background(), &models.Container{
		ProjectID: projectID,
		UserID:    "u-" + projectID,
		Name:      name,
		Memory:    256,
	})
	require.NoError(t, err)
	return created
}

func TestCapabilities(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	require.False(t, conn.Capabilities().AtomicUpdate)
}

func TestContainerLifecycle(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()

	created := createContainer(t, conn, "p1", "web")
	require.NotEmpty(t, created.UUID)
	require.NotZero(t, created.ID)
	require.False(t, created.CreatedAt.IsZero())

	byID, err := conn.GetContainer(ctx, fmt.Sprintf("%d", created.ID))
	require.NoError(t, err)
	require.Equal(t, created.UUID, byID.UUID)

	byUUID, err := conn.GetContainer(ctx, created.UUID)
	require.NoError(t, err)
	require.Equal(t, created.ID, byUUID.ID)

	byName, err := conn.GetContainerByName(ctx, "web")
	require.NoError(t, err)
	require.Equal(t, created.UUID, byName.UUID)

	updated, err := conn.UpdateContainer(ctx, created.UUID, map[string]interface{}{
		"memory": 512,
		"labels": map[string]string{"tier": "web"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(512), updated.Memory)
	require.Equal(t, map[string]string{"tier": "web"}, updated.Labels)
	require.True(t, updated.UpdatedAt.After(created.CreatedAt) || updated.UpdatedAt.Equal(created.CreatedAt))

	require.NoError(t, conn.DestroyContainer(ctx, created.UUID))
	_, err = conn.GetContainer(ctx, created.UUID)
	require.True(t, errdefs.IsNotFound(err))
}

func TestSurrogateIDsAreSequential(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)

	first := createContainer(t, conn, "p1", "one")
	second := createContainer(t, conn, "p1", "two")
	require.Equal(t, first.ID+1, second.ID)
}

func TestGetContainerRejectsMalformedIdentity(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)

	_, err := conn.GetContainer(context.Background(), "not-an-identity")
	require.True(t, errdefs.IsInvalidIdentity(err))
}

func TestGetContainerByNameAmbiguity(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()

	_, err := conn.GetContainerByName(ctx, "missing")
	require.True(t, errdefs.IsNotFound(err))

	createContainer(t, conn, "p1", "dup")
	createContainer(t, conn, "p2", "dup")
	_, err = conn.GetContainerByName(ctx, "dup")
	require.True(t, errdefs.IsConflict(err))
}

func TestContainerNameScopes(t *testing.T) {
	t.Run("project scope", func(t *testing.T) {
		conn := newTestClient(t, db.NameScopeProject)
		ctx := context.Background()

		createContainer(t, conn, "p1", "web")
		_, err := conn.CreateContainer(ctx, &models.Container{ProjectID: "p1", Name: "web"})
		require.True(t, errdefs.IsAlreadyExists(err))
		createContainer(t, conn, "p2", "web")
	})

	t.Run("global scope", func(t *testing.T) {
		conn := newTestClient(t, db.NameScopeGlobal)

		createContainer(t, conn, "p1", "web")
		_, err := conn.CreateContainer(context.Background(), &models.Container{ProjectID: "p2", Name: "web"})
		require.True(t, errdefs.IsAlreadyExists(err))
	})

	t.Run("rename into taken name", func(t *testing.T) {
		conn := newTestClient(t, db.NameScopeProject)

		createContainer(t, conn, "p1", "web")
		other := createContainer(t, conn, "p1", "db")

		_, err := conn.UpdateContainer(context.Background(), other.UUID, map[string]interface{}{"name": "web"})
		require.True(t, errdefs.IsAlreadyExists(err))
	})
}

func TestUpdateContainerValidation(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()
	created := createContainer(t, conn, "p1", "web")

	for name, values := range map[string]map[string]interface{}{
		"identity is immutable": {"uuid": "other"},
		"unknown field":         {"flavor": "m1.small"},
	} {
		values := values
		t.Run(name, func(t *testing.T) {
			_, err := conn.UpdateContainer(ctx, created.UUID, values)
			require.True(t, errdefs.IsInvalidParameter(err))
		})
	}
}

func TestListContainers(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()

	createContainer(t, conn, "p1", "alpha")
	createContainer(t, conn, "p2", "beta")
	createContainer(t, conn, "p1", "gamma")

	t.Run("filter by project", func(t *testing.T) {
		result, err := conn.ListContainers(ctx, db.ListOptions{
			Filters: map[string]interface{}{"project_id": "p1"},
		})
		require.NoError(t, err)
		require.Len(t, result, 2)
	})

	t.Run("filter by integer field", func(t *testing.T) {
		result, err := conn.ListContainers(ctx, db.ListOptions{
			Filters: map[string]interface{}{"memory": 256},
		})
		require.NoError(t, err)
		require.Len(t, result, 3)
	})

	t.Run("filter with slice matches any member", func(t *testing.T) {
		result, err := conn.ListContainers(ctx, db.ListOptions{
			Filters: map[string]interface{}{"name": []string{"alpha", "beta"}},
		})
		require.NoError(t, err)
		require.Len(t, result, 2)
	})

	t.Run("sort by name descending", func(t *testing.T) {
		result, err := conn.ListContainers(ctx, db.ListOptions{
			SortKey: "name",
			SortDir: db.SortDesc,
		})
		require.NoError(t, err)
		require.Len(t, result, 3)
		require.Equal(t, "gamma", result[0].Name)
		require.Equal(t, "alpha", result[2].Name)
	})

	t.Run("default sort is by uuid", func(t *testing.T) {
		result, err := conn.ListContainers(ctx, db.ListOptions{})
		require.NoError(t, err)
		require.True(t, sort.SliceIsSorted(result, func(i, j int) bool {
			return result[i].UUID < result[j].UUID
		}))
	})

	t.Run("marker pagination covers every record once", func(t *testing.T) {
		seen := map[string]bool{}
		marker := ""
		for {
			page, err := conn.ListContainers(ctx, db.ListOptions{Limit: 1, Marker: marker})
			require.NoError(t, err)
			if len(page) == 0 {
				break
			}
			require.False(t, seen[page[0].UUID])
			seen[page[0].UUID] = true
			marker = page[0].UUID
		}
		require.Len(t, seen, 3)
	})

	t.Run("marker accepts the surrogate id form", func(t *testing.T) {
		all, err := conn.ListContainers(ctx, db.ListOptions{})
		require.NoError(t, err)
		require.Len(t, all, 3)

		rest, err := conn.ListContainers(ctx, db.ListOptions{
			Marker: fmt.Sprintf("%d", all[0].ID),
		})
		require.NoError(t, err)
		require.Len(t, rest, 2)
		require.Equal(t, all[1].UUID, rest[0].UUID)
	})

	t.Run("marker must exist", func(t *testing.T) {
		_, err := conn.ListContainers(ctx, db.ListOptions{Marker: uuid.NewString()})
		require.True(t, errdefs.IsNotFound(err))
	})

	t.Run("unknown sort key", func(t *testing.T) {
		_, err := conn.ListContainers(ctx, db.ListOptions{SortKey: "flavor"})
		require.True(t, errdefs.IsInvalidParameter(err))
	})

	t.Run("unknown filter field", func(t *testing.T) {
		_, err := conn.ListContainers(ctx, db.ListOptions{
			Filters: map[string]interface{}{"flavor": "m1.small"},
		})
		require.True(t, errdefs.IsInvalidParameter(err))
	})
}

func TestTenantScoping(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)

	mine := createContainer(t, conn, "p1", "mine")
	other := createContainer(t, conn, "p2", "other")

	tenant := scope.NewContext(context.Background(), &scope.Context{ProjectID: "p1", UserID: "u-p1"})
	admin := scope.NewContext(context.Background(), scope.Admin())

	listed, err := conn.ListContainers(tenant, db.ListOptions{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, mine.UUID, listed[0].UUID)

	_, err = conn.GetContainer(tenant, other.UUID)
	require.True(t, errdefs.IsNotFound(err))

	listed, err = conn.ListContainers(admin, db.ListOptions{})
	require.NoError(t, err)
	require.Len(t, listed, 2)
}

func TestComputeNodeUniqueness(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()

	node := &models.ComputeNode{UUID: uuid.NewString(), Hostname: "node-1"}
	_, err := conn.CreateComputeNode(ctx, node)
	require.NoError(t, err)

	_, err = conn.CreateComputeNode(ctx, &models.ComputeNode{UUID: uuid.NewString(), Hostname: "node-1"})
	require.True(t, errdefs.IsAlreadyExists(err))
}

func TestInventoryUniquePerProviderAndClass(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()

	_, err := conn.CreateInventory(ctx, &models.Inventory{ResourceProviderID: 1, ResourceClassID: 2, Total: 8})
	require.NoError(t, err)

	_, err = conn.CreateInventory(ctx, &models.Inventory{ResourceProviderID: 1, ResourceClassID: 2, Total: 16})
	require.True(t, errdefs.IsAlreadyExists(err))
}

func TestQuotaPairUniqueness(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()

	_, err := conn.CreateQuota(ctx, &models.Quota{ProjectID: "p1", Resource: "containers", HardLimit: 10})
	require.NoError(t, err)
	_, err = conn.CreateQuota(ctx, &models.Quota{ProjectID: "p1", Resource: "containers", HardLimit: 20})
	require.True(t, errdefs.IsAlreadyExists(err))

	_, err = conn.CreateQuota(ctx, &models.Quota{ProjectID: "p2", Resource: "containers", HardLimit: 10})
	require.NoError(t, err)
}

func TestZunServiceLivenessGuard(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()

	created, err := conn.CreateZunService(ctx, &models.ZunService{Host: "host-1", Binary: "zun-controlplane"})
	require.NoError(t, err)
	require.Nil(t, created.LastSeenUp)

	_, err = conn.CreateZunService(ctx, &models.ZunService{Host: "host-1", Binary: "zun-controlplane"})
	require.True(t, errdefs.IsAlreadyExists(err))

	updated, err := conn.UpdateZunService(ctx, "host-1", "zun-controlplane", map[string]interface{}{
		"report_count": 1,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.LastSeenUp)
	firstSeen := *updated.LastSeenUp

	updated, err = conn.UpdateZunService(ctx, "host-1", "zun-controlplane", map[string]interface{}{
		"report_count": 1,
	})
	require.NoError(t, err)
	require.Equal(t, firstSeen, *updated.LastSeenUp)

	updated, err = conn.UpdateZunService(ctx, "host-1", "zun-controlplane", map[string]interface{}{
		"forced_down": true,
	})
	require.NoError(t, err)
	require.True(t, updated.ForcedDown)
	require.Equal(t, firstSeen, *updated.LastSeenUp)
}

func TestContainerActionEvents(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()

	containerUUID := uuid.NewString()
	action, err := conn.CreateContainerAction(ctx, &models.ContainerAction{
		Action:        "container_create",
		ContainerUUID: containerUUID,
		RequestID:     "req-1",
	})
	require.NoError(t, err)

	for _, name := range []string{"pull_image", "create_sandbox", "start"} {
		_, err := conn.CreateContainerActionEvent(ctx, action.ID, &models.ContainerActionEvent{Event: name})
		require.NoError(t, err)
	}

	events, err := conn.ListContainerActionEvents(ctx, action.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "start", events[0].Event)
	require.Equal(t, "pull_image", events[2].Event)

	finished, err := conn.UpdateContainerActionEvent(ctx, action.ID, "start", map[string]interface{}{
		"result": "Success",
	})
	require.NoError(t, err)
	require.Equal(t, "Success", finished.Result)

	resolved, err := conn.GetContainerActionByRequestID(ctx, containerUUID, "req-1")
	require.NoError(t, err)
	require.Equal(t, action.UUID, resolved.UUID)

	_, err = conn.GetContainerActionByRequestID(ctx, containerUUID, "req-unknown")
	require.True(t, errdefs.IsNotFound(err))
}
