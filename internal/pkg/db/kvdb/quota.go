package kvdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/models"
)

var (
	quotaListSpec      = newListSpec("quota", models.Quota{}, "id")
	quotaClassListSpec = newListSpec("quota class", models.QuotaClass{}, "id")
)

func quotaKey(projectID string, resource string) string {
	return projectID + "_" + resource
}

func quotaClassKey(className string, resource string) string {
	return className + "_" + resource
}

// CreateQuota creates a per-project quota record.
func (c *client) CreateQuota(ctx context.Context, quota *models.Quota) (*models.Quota, error) {
	k := quotaKey(quota.ProjectID, quota.Resource)
	found, err := c.exists(ctx, quotasNS, k)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, errdefs.NewAlreadyExists("quota", "project_id", quota.ProjectID, "resource", quota.Resource)
	}
	id, err := c.nextID(ctx, quotasNS)
	if err != nil {
		return nil, err
	}
	quota.ID = id
	quota.CreatedAt = now()
	quota.UpdatedAt = quota.CreatedAt
	if err := c.put(ctx, quotasNS, k, quota); err != nil {
		return nil, err
	}
	return quota, nil
}

// GetQuota retrieves the quota record for one project and resource.
func (c *client) GetQuota(ctx context.Context, projectID string, resource string) (*models.Quota, error) {
	raw, found, err := c.getRaw(ctx, quotasNS, quotaKey(projectID, resource))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errdefs.NewNotFound("quota", projectID+"/"+resource)
	}
	var quota models.Quota
	if err := json.Unmarshal(raw, &quota); err != nil {
		return nil, fmt.Errorf("failed to deserialize quota: %w", err)
	}
	return &quota, nil
}

// ListQuotas retrieves quota records matching the options.
func (c *client) ListQuotas(ctx context.Context, opts db.ListOptions) ([]*models.Quota, error) {
	return runList[models.Quota](ctx, c, quotasNS, quotaListSpec, opts, nil)
}

// UpdateQuota applies the given field values to a quota record.
func (c *client) UpdateQuota(ctx context.Context, projectID string, resource string, values map[string]interface{}) (*models.Quota, error) {
	if err := models.CheckImmutable(values, "id", "project_id", "resource", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	quota, err := c.GetQuota(ctx, projectID, resource)
	if err != nil {
		return nil, err
	}
	if err := models.Apply(quota, values); err != nil {
		return nil, err
	}
	quota.UpdatedAt = now()
	if err := c.put(ctx, quotasNS, quotaKey(projectID, resource), quota); err != nil {
		return nil, err
	}
	return quota, nil
}

// DestroyQuota deletes a per-project quota record.
func (c *client) DestroyQuota(ctx context.Context, projectID string, resource string) error {
	found, err := c.del(ctx, quotasNS, quotaKey(projectID, resource))
	if err != nil {
		return err
	}
	if !found {
		return errdefs.NewNotFound("quota", projectID+"/"+resource)
	}
	return nil
}

// CreateQuotaClass creates a quota class record.
func (c *client) CreateQuotaClass(ctx context.Context, class *models.QuotaClass) (*models.QuotaClass, error) {
	k := quotaClassKey(class.ClassName, class.Resource)
	found, err := c.exists(ctx, quotaClassesNS, k)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, errdefs.NewAlreadyExists("quota class", "class_name", class.ClassName, "resource", class.Resource)
	}
	id, err := c.nextID(ctx, quotaClassesNS)
	if err != nil {
		return nil, err
	}
	class.ID = id
	class.CreatedAt = now()
	class.UpdatedAt = class.CreatedAt
	if err := c.put(ctx, quotaClassesNS, k, class); err != nil {
		return nil, err
	}
	return class, nil
}

// GetQuotaClass retrieves the quota class record for one class and resource.
func (c *client) GetQuotaClass(ctx context.Context, className string, resource string) (*models.QuotaClass, error) {
	raw, found, err := c.getRaw(ctx, quotaClassesNS, quotaClassKey(className, resource))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errdefs.NewNotFound("quota class", className+"/"+resource)
	}
	var class models.QuotaClass
	if err := json.Unmarshal(raw, &class); err != nil {
		return nil, fmt.Errorf("failed to deserialize quota class: %w", err)
	}
	return &class, nil
}

// ListQuotaClasses retrieves quota class records matching the options.
func (c *client) ListQuotaClasses(ctx context.Context, opts db.ListOptions) ([]*models.QuotaClass, error) {
	return runList[models.QuotaClass](ctx, c, quotaClassesNS, quotaClassListSpec, opts, nil)
}

// UpdateQuotaClass applies the given field values to a quota class record.
func (c *client) UpdateQuotaClass(ctx context.Context, className string, resource string, values map[string]interface{}) (*models.QuotaClass, error) {
	if err := models.CheckImmutable(values, "id", "class_name", "resource", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	class, err := c.GetQuotaClass(ctx, className, resource)
	if err != nil {
		return nil, err
	}
	if err := models.Apply(class, values); err != nil {
		return nil, err
	}
	class.UpdatedAt = now()
	if err := c.put(ctx, quotaClassesNS, quotaClassKey(className, resource), class); err != nil {
		return nil, err
	}
	return class, nil
}
