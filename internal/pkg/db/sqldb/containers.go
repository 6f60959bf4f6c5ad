package sqldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/identity"
	"github.com/openstack/zun-sub002/internal/pkg/models"
	"github.com/openstack/zun-sub002/internal/pkg/scope"
	"gorm.io/gorm"
)

var containerSpec = newQuerySpec(models.Container{}, "id")

// scoped restricts a container query to the tenant carried by ctx.
func scoped(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if sc := scope.FromContext(ctx); sc != nil {
		if field, value, ok := sc.TenantFilter(); ok {
			tx = tx.Where(fmt.Sprintf("%s = ?", field), value)
		}
	}
	return tx
}

// checkContainerName enforces the configured name uniqueness scope. It runs
// inside the caller's transaction so the check and the following write are
// covered by one lock scope.
func (c *client) checkContainerName(tx *gorm.DB, name string, projectID string, excludeID int64) error {
	if name == "" || c.nameScope == db.NameScopeNone {
		return nil
	}
	query := tx.Model(&models.Container{}).Where("name = ?", name)
	if c.nameScope == db.NameScopeProject {
		query = query.Where("project_id = ?", projectID)
	}
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check container name: %w", err)
	}
	if count > 0 {
		return errdefs.NewAlreadyExists("container", "name", name)
	}
	return nil
}

// CreateContainer creates a new container, assigning a uuid when absent.
func (c *client) CreateContainer(ctx context.Context, container *models.Container) (*models.Container, error) {
	if container.UUID == "" {
		container.UUID = identity.New()
	}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := c.checkContainerName(tx, container.Name, container.ProjectID, 0); err != nil {
			return err
		}
		if err := tx.Create(container).Error; err != nil {
			if duplicated(err) {
				return errdefs.NewAlreadyExists("container", "uuid", container.UUID)
			}
			return fmt.Errorf("failed to create container: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return container, nil
}

func (c *client) getContainer(ctx context.Context, tx *gorm.DB, ident string) (*models.Container, error) {
	resolved, err := identity.Parse(ident)
	if err != nil {
		return nil, err
	}
	query := scoped(ctx, tx)
	if resolved.Kind == identity.KindID {
		query = query.Where("id = ?", resolved.ID)
	} else {
		query = query.Where("uuid = ?", resolved.UUID)
	}
	var container models.Container
	if err := query.First(&container).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errdefs.NewNotFound("container", ident)
		}
		return nil, fmt.Errorf("failed to get container: %w", err)
	}
	return &container, nil
}

// GetContainer retrieves a container by its integer id or uuid.
func (c *client) GetContainer(ctx context.Context, ident string) (*models.Container, error) {
	return c.getContainer(ctx, c.db.WithContext(ctx), ident)
}

// GetContainerByName retrieves a container by its name. More than one match
// means the stored data violates the uniqueness scoping and is surfaced as
// a conflict.
func (c *client) GetContainerByName(ctx context.Context, name string) (*models.Container, error) {
	var containers []models.Container
	if err := scoped(ctx, c.db.WithContext(ctx)).Where("name = ?", name).Find(&containers).Error; err != nil {
		return nil, fmt.Errorf("failed to get container by name: %w", err)
	}
	switch len(containers) {
	case 0:
		return nil, errdefs.NewNotFound("container", name)
	case 1:
		return &containers[0], nil
	default:
		return nil, errdefs.NewConflict("container", "name", name, len(containers))
	}
}

// ListContainers retrieves containers matching the given options, scoped to
// the tenant carried by ctx.
func (c *client) ListContainers(ctx context.Context, opts db.ListOptions) ([]*models.Container, error) {
	var marker interface{}
	if opts.Marker != "" {
		rec, err := c.GetContainer(ctx, opts.Marker)
		if err != nil {
			return nil, err
		}
		marker = rec
	}
	query, err := c.buildList(scoped(ctx, c.db.WithContext(ctx).Model(&models.Container{})), containerSpec, opts, marker)
	if err != nil {
		return nil, err
	}
	var containers []*models.Container
	if err := query.Find(&containers).Error; err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return containers, nil
}

// UpdateContainer applies the given field values to a container. Identity
// fields are immutable.
func (c *client) UpdateContainer(ctx context.Context, ident string, values map[string]interface{}) (*models.Container, error) {
	if err := models.CheckImmutable(values, "id", "uuid", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	var updated *models.Container
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		container, err := c.getContainer(ctx, c.forUpdate(tx), ident)
		if err != nil {
			return err
		}
		if name, ok := values["name"].(string); ok && name != container.Name {
			projectID := container.ProjectID
			if p, ok := values["project_id"].(string); ok {
				projectID = p
			}
			if err := c.checkContainerName(tx, name, projectID, container.ID); err != nil {
				return err
			}
		}
		if err := models.Apply(container, values); err != nil {
			return err
		}
		if err := tx.Save(container).Error; err != nil {
			return fmt.Errorf("failed to update container: %w", err)
		}
		updated = container
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DestroyContainer deletes a container.
func (c *client) DestroyContainer(ctx context.Context, ident string) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		container, err := c.getContainer(ctx, tx, ident)
		if err != nil {
			return err
		}
		result := tx.Delete(&models.Container{}, "id = ?", container.ID)
		if result.Error != nil {
			return fmt.Errorf("failed to destroy container: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errdefs.NewNotFound("container", ident)
		}
		return nil
	})
}
