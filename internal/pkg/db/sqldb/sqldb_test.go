package sqldb

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/models"
	"github.com/openstack/zun-sub002/internal/pkg/scope"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, nameScope db.NameScope) db.Connection {
	t.Helper()

	// a uniquely named shared in-memory database per test
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := NewWithDialector(sqlite.Open(dsn), nameScope)
	require.NoError(t, err)
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
	require.True(t, conn.Capabilities().AtomicUpdate)
}

func TestContainerLifecycle(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()

	created := createContainer(t, conn, "p1", "web")
	require.NotEmpty(t, created.UUID)
	require.NotZero(t, created.ID)

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

	require.NoError(t, conn.DestroyContainer(ctx, created.UUID))

	_, err = conn.GetContainer(ctx, created.UUID)
	require.True(t, errdefs.IsNotFound(err))
	err = conn.DestroyContainer(ctx, created.UUID)
	require.True(t, errdefs.IsNotFound(err))
}

func TestGetContainerRejectsMalformedIdentity(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)

	_, err := conn.GetContainer(context.Background(), "not-an-identity")
	require.True(t, errdefs.IsInvalidIdentity(err))
}

func TestGetContainerByName(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()

	_, err := conn.GetContainerByName(ctx, "missing")
	require.True(t, errdefs.IsNotFound(err))

	// without a name scope duplicate names can be stored; looking one up
	// by name is then ambiguous
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

		// the same name in another project is fine
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

func TestCreateContainerDuplicateUUID(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()

	created := createContainer(t, conn, "p1", "web")
	_, err := conn.CreateContainer(ctx, &models.Container{UUID: created.UUID, ProjectID: "p1", Name: "other"})
	require.True(t, errdefs.IsAlreadyExists(err))
}

func TestUpdateContainerValidation(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()
	created := createContainer(t, conn, "p1", "web")

	tests := []struct {
		name   string
		values map[string]interface{}
	}{
		{"identity is immutable", map[string]interface{}{"uuid": "other"}},
		{"surrogate key is immutable", map[string]interface{}{"id": 99}},
		{"timestamps are immutable", map[string]interface{}{"created_at": "2001-01-01T00:00:00Z"}},
		{"unknown field", map[string]interface{}{"flavor": "m1.small"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := conn.UpdateContainer(ctx, created.UUID, tt.values)
			require.True(t, errdefs.IsInvalidParameter(err))
		})
	}
}

func TestListContainers(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()

	a := createContainer(t, conn, "p1", "alpha")
	b := createContainer(t, conn, "p2", "beta")
	c := createContainer(t, conn, "p1", "gamma")

	t.Run("filter by project", func(t *testing.T) {
		result, err := conn.ListContainers(ctx, db.ListOptions{
			Filters: map[string]interface{}{"project_id": "p1"},
		})
		require.NoError(t, err)
		require.Len(t, result, 2)
	})

	t.Run("filter with slice matches any member", func(t *testing.T) {
		result, err := conn.ListContainers(ctx, db.ListOptions{
			Filters: map[string]interface{}{"name": []string{"alpha", "beta"}},
		})
		require.NoError(t, err)
		require.Len(t, result, 2)
	})

	t.Run("sort descending", func(t *testing.T) {
		result, err := conn.ListContainers(ctx, db.ListOptions{
			SortKey: "name",
			SortDir: db.SortDesc,
		})
		require.NoError(t, err)
		require.Len(t, result, 3)
		require.Equal(t, "gamma", result[0].Name)
		require.Equal(t, "alpha", result[2].Name)
	})

	t.Run("marker pagination", func(t *testing.T) {
		page1, err := conn.ListContainers(ctx, db.ListOptions{
			SortKey: "name",
			Limit:   2,
		})
		require.NoError(t, err)
		require.Len(t, page1, 2)
		require.Equal(t, a.UUID, page1[0].UUID)
		require.Equal(t, b.UUID, page1[1].UUID)

		page2, err := conn.ListContainers(ctx, db.ListOptions{
			SortKey: "name",
			Limit:   2,
			Marker:  page1[1].UUID,
		})
		require.NoError(t, err)
		require.Len(t, page2, 1)
		require.Equal(t, c.UUID, page2[0].UUID)
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

	t.Run("invalid sort direction", func(t *testing.T) {
		_, err := conn.ListContainers(ctx, db.ListOptions{SortDir: "sideways"})
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

	byHostname, err := conn.GetComputeNodeByHostname(ctx, "node-1")
	require.NoError(t, err)
	require.Equal(t, node.UUID, byHostname.UUID)
}

func TestInventoryUniquePerProviderAndClass(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()

	inventory := &models.Inventory{ResourceProviderID: 1, ResourceClassID: 2, Total: 8}
	_, err := conn.CreateInventory(ctx, inventory)
	require.NoError(t, err)

	_, err = conn.CreateInventory(ctx, &models.Inventory{ResourceProviderID: 1, ResourceClassID: 2, Total: 16})
	require.True(t, errdefs.IsAlreadyExists(err))
}

func TestDestroyProviderLeavesDependents(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()

	provider, err := conn.CreateResourceProvider(ctx, &models.ResourceProvider{
		UUID: uuid.NewString(),
		Name: "compute-1",
	})
	require.NoError(t, err)

	inventory, err := conn.CreateInventory(ctx, &models.Inventory{
		ResourceProviderID: provider.ID,
		ResourceClassID:    1,
		Total:              8,
	})
	require.NoError(t, err)

	require.NoError(t, conn.DestroyResourceProvider(ctx, provider.UUID))

	// dependent records are not cascaded; cleanup is the caller's duty
	orphan, err := conn.GetInventory(ctx, inventory.ID)
	require.NoError(t, err)
	require.Equal(t, provider.ID, orphan.ResourceProviderID)
}

func TestQuotaPairUniqueness(t *testing.T) {
	conn := newTestClient(t, db.NameScopeNone)
	ctx := context.Background()

	_, err := conn.CreateQuota(ctx, &models.Quota{ProjectID: "p1", Resource: "containers", HardLimit: 10})
	require.NoError(t, err)
	_, err = conn.CreateQuota(ctx, &models.Quota{ProjectID: "p1", Resource: "containers", HardLimit: 20})
	require.True(t, errdefs.IsAlreadyExists(err))

	// a different project may use the same resource name
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

	// a strictly increasing report refreshes liveness
	updated, err := conn.UpdateZunService(ctx, "host-1", "zun-controlplane", map[string]interface{}{
		"report_count": 1,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.LastSeenUp)
	firstSeen := *updated.LastSeenUp

	// a stale report must not move liveness
	updated, err = conn.UpdateZunService(ctx, "host-1", "zun-controlplane", map[string]interface{}{
		"report_count": 1,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.LastSeenUp)
	require.Equal(t, firstSeen.Unix(), updated.LastSeenUp.Unix())

	// updates that do not report at all keep liveness untouched too
	updated, err = conn.UpdateZunService(ctx, "host-1", "zun-controlplane", map[string]interface{}{
		"disabled":        true,
		"disabled_reason": "maintenance",
	})
	require.NoError(t, err)
	require.True(t, updated.Disabled)
	require.Equal(t, firstSeen.Unix(), updated.LastSeenUp.Unix())
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
	// most recent first
	require.Equal(t, "start", events[0].Event)
	require.Equal(t, "create_sandbox", events[1].Event)
	require.Equal(t, "pull_image", events[2].Event)

	finished, err := conn.UpdateContainerActionEvent(ctx, action.ID, "start", map[string]interface{}{
		"result": "Success",
	})
	require.NoError(t, err)
	require.Equal(t, "Success", finished.Result)

	_, err = conn.GetContainerActionByRequestID(ctx, containerUUID, "req-unknown")
	require.True(t, errdefs.IsNotFound(err))

	actions, err := conn.ListContainerActions(ctx, containerUUID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Equal(t, action.UUID, actions[0].UUID)
}
