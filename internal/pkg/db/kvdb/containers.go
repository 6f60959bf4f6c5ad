package kvdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/identity"
	"github.com/openstack/zun-sub002/internal/pkg/models"
	"github.com/openstack/zun-sub002/internal/pkg/scope"
)

var containerListSpec = newListSpec("container", models.Container{}, "uuid")

// tenantKeep builds the implicit tenant predicate for the scope carried by
// ctx, or nil when the caller may see all tenants.
func tenantKeep(ctx context.Context) func(*models.Container) bool {
	sc := scope.FromContext(ctx)
	if sc == nil {
		return nil
	}
	field, value, ok := sc.TenantFilter()
	if !ok {
		return nil
	}
	return func(container *models.Container) bool {
		if field == "project_id" {
			return container.ProjectID == value
		}
		return container.UserID == value
	}
}

// checkContainerName enforces the configured name uniqueness scope with a
// namespace scan. The scan and the following write are not covered by any
// transaction, so a concurrent create can slip between them; that race is
// inherent to this backend.
func (c *client) checkContainerName(ctx context.Context, name string, projectID string, excludeUUID string) error {
	if name == "" || c.nameScope == db.NameScopeNone {
		return nil
	}
	filters := map[string]interface{}{"name": name}
	if c.nameScope == db.NameScopeProject {
		filters["project_id"] = projectID
	}
	matched, err := runList[models.Container](ctx, c, containersNS, containerListSpec, db.ListOptions{Filters: filters}, nil)
	if err != nil {
		return err
	}
	for _, existing := range matched {
		if existing.UUID != excludeUUID {
			return errdefs.NewAlreadyExists("container", "name", name)
		}
	}
	return nil
}

// CreateContainer creates a new container, assigning a uuid when absent.
func (c *client) CreateContainer(ctx context.Context, container *models.Container) (*models.Container, error) {
	if container.UUID == "" {
		container.UUID = identity.New()
	}
	if err := c.checkContainerName(ctx, container.Name, container.ProjectID, ""); err != nil {
		return nil, err
	}
	found, err := c.exists(ctx, containersNS, container.UUID)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, errdefs.NewAlreadyExists("container", "uuid", container.UUID)
	}
	id, err := c.nextID(ctx, containersNS)
	if err != nil {
		return nil, err
	}
	container.ID = id
	container.CreatedAt = now()
	container.UpdatedAt = container.CreatedAt
	if err := c.put(ctx, containersNS, container.UUID, container); err != nil {
		return nil, err
	}
	return container, nil
}

// GetContainer retrieves a container by its integer id or uuid.
func (c *client) GetContainer(ctx context.Context, ident string) (*models.Container, error) {
	resolved, err := identity.Parse(ident)
	if err != nil {
		return nil, err
	}
	keep := tenantKeep(ctx)
	if resolved.Kind == identity.KindID {
		container, err := findOne[models.Container](ctx, c, containersNS, containerListSpec, "id", resolved.ID, keep)
		if err != nil {
			return nil, err
		}
		return container, nil
	}

	raw, found, err := c.getRaw(ctx, containersNS, resolved.UUID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errdefs.NewNotFound("container", ident)
	}
	var container models.Container
	if err := json.Unmarshal(raw, &container); err != nil {
		return nil, fmt.Errorf("failed to deserialize container: %w", err)
	}
	if keep != nil && !keep(&container) {
		return nil, errdefs.NewNotFound("container", ident)
	}
	return &container, nil
}

// GetContainerByName retrieves a container by its name. More than one live
// record with the same name means the uniqueness scoping was bypassed and
// is surfaced as a conflict.
func (c *client) GetContainerByName(ctx context.Context, name string) (*models.Container, error) {
	return findOne[models.Container](ctx, c, containersNS, containerListSpec, "name", name, tenantKeep(ctx))
}

// ListContainers retrieves containers matching the given options, scoped
// to the tenant carried by ctx.
func (c *client) ListContainers(ctx context.Context, opts db.ListOptions) ([]*models.Container, error) {
	return runList[models.Container](ctx, c, containersNS, containerListSpec, opts, tenantKeep(ctx))
}

// UpdateContainer applies the given field values to a container. The write
// is a read-modify-write; see the package comment for its guarantees.
func (c *client) UpdateContainer(ctx context.Context, ident string, values map[string]interface{}) (*models.Container, error) {
	if err := models.CheckImmutable(values, "id", "uuid", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	container, err := c.GetContainer(ctx, ident)
	if err != nil {
		return nil, err
	}
	if name, ok := values["name"].(string); ok && name != container.Name {
		projectID := container.ProjectID
		if p, ok := values["project_id"].(string); ok {
			projectID = p
		}
		if err := c.checkContainerName(ctx, name, projectID, container.UUID); err != nil {
			return nil, err
		}
	}
	if err := models.Apply(container, values); err != nil {
		return nil, err
	}
	container.UpdatedAt = now()
	if err := c.put(ctx, containersNS, container.UUID, container); err != nil {
		return nil, err
	}
	return container, nil
}

// DestroyContainer deletes a container.
func (c *client) DestroyContainer(ctx context.Context, ident string) error {
	container, err := c.GetContainer(ctx, ident)
	if err != nil {
		return err
	}
	found, err := c.del(ctx, containersNS, container.UUID)
	if err != nil {
		return err
	}
	if !found {
		return errdefs.NewNotFound("container", ident)
	}
	return nil
}
