package sqldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/models"
	"gorm.io/gorm"
)

var (
	quotaSpec      = newQuerySpec(models.Quota{}, "id")
	quotaClassSpec = newQuerySpec(models.QuotaClass{}, "id")
)

// CreateQuota creates a per-project quota row.
func (c *client) CreateQuota(ctx context.Context, quota *models.Quota) (*models.Quota, error) {
	if err := c.db.WithContext(ctx).Create(quota).Error; err != nil {
		if duplicated(err) {
			return nil, errdefs.NewAlreadyExists("quota", "project_id", quota.ProjectID, "resource", quota.Resource)
		}
		return nil, fmt.Errorf("failed to create quota: %w", err)
	}
	return quota, nil
}

func (c *client) getQuota(tx *gorm.DB, projectID string, resource string) (*models.Quota, error) {
	var quota models.Quota
	if err := tx.Where("project_id = ? AND resource = ?", projectID, resource).First(&quota).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errdefs.NewNotFound("quota", projectID+"/"+resource)
		}
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}
	return &quota, nil
}

// GetQuota retrieves the quota row for one project and resource.
func (c *client) GetQuota(ctx context.Context, projectID string, resource string) (*models.Quota, error) {
	return c.getQuota(c.db.WithContext(ctx), projectID, resource)
}

// ListQuotas retrieves quota rows matching the options.
func (c *client) ListQuotas(ctx context.Context, opts db.ListOptions) ([]*models.Quota, error) {
	query, err := c.buildList(c.db.WithContext(ctx).Model(&models.Quota{}), quotaSpec, opts, nil)
	if err != nil {
		return nil, err
	}
	var quotas []*models.Quota
	if err := query.Find(&quotas).Error; err != nil {
		return nil, fmt.Errorf("failed to list quotas: %w", err)
	}
	return quotas, nil
}

// UpdateQuota applies the given field values to a quota row.
func (c *client) UpdateQuota(ctx context.Context, projectID string, resource string, values map[string]interface{}) (*models.Quota, error) {
	if err := models.CheckImmutable(values, "id", "project_id", "resource", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	var updated *models.Quota
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quota, err := c.getQuota(c.forUpdate(tx), projectID, resource)
		if err != nil {
			return err
		}
		if err := models.Apply(quota, values); err != nil {
			return err
		}
		if err := tx.Save(quota).Error; err != nil {
			return fmt.Errorf("failed to update quota: %w", err)
		}
		updated = quota
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DestroyQuota deletes a per-project quota row.
func (c *client) DestroyQuota(ctx context.Context, projectID string, resource string) error {
	result := c.db.WithContext(ctx).Delete(&models.Quota{}, "project_id = ? AND resource = ?", projectID, resource)
	if result.Error != nil {
		return fmt.Errorf("failed to destroy quota: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errdefs.NewNotFound("quota", projectID+"/"+resource)
	}
	return nil
}

// CreateQuotaClass creates a quota class row.
func (c *client) CreateQuotaClass(ctx context.Context, class *models.QuotaClass) (*models.QuotaClass, error) {
	if err := c.db.WithContext(ctx).Create(class).Error; err != nil {
		if duplicated(err) {
			return nil, errdefs.NewAlreadyExists("quota class", "class_name", class.ClassName, "resource", class.Resource)
		}
		return nil, fmt.Errorf("failed to create quota class: %w", err)
	}
	return class, nil
}

func (c *client) getQuotaClass(tx *gorm.DB, className string, resource string) (*models.QuotaClass, error) {
	var class models.QuotaClass
	if err := tx.Where("class_name = ? AND resource = ?", className, resource).First(&class).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errdefs.NewNotFound("quota class", className+"/"+resource)
		}
		return nil, fmt.Errorf("failed to get quota class: %w", err)
	}
	return &class, nil
}

// GetQuotaClass retrieves the quota class row for one class and resource.
func (c *client) GetQuotaClass(ctx context.Context, className string, resource string) (*models.QuotaClass, error) {
	return c.getQuotaClass(c.db.WithContext(ctx), className, resource)
}

// ListQuotaClasses retrieves quota class rows matching the options.
func (c *client) ListQuotaClasses(ctx context.Context, opts db.ListOptions) ([]*models.QuotaClass, error) {
	query, err := c.buildList(c.db.WithContext(ctx).Model(&models.QuotaClass{}), quotaClassSpec, opts, nil)
	if err != nil {
		return nil, err
	}
	var classes []*models.QuotaClass
	if err := query.Find(&classes).Error; err != nil {
		return nil, fmt.Errorf("failed to list quota classes: %w", err)
	}
	return classes, nil
}

// UpdateQuotaClass applies the given field values to a quota class row.
func (c *client) UpdateQuotaClass(ctx context.Context, className string, resource string, values map[string]interface{}) (*models.QuotaClass, error) {
	if err := models.CheckImmutable(values, "id", "class_name", "resource", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	var updated *models.QuotaClass
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		class, err := c.getQuotaClass(c.forUpdate(tx), className, resource)
		if err != nil {
			return err
		}
		if err := models.Apply(class, values); err != nil {
			return err
		}
		if err := tx.Save(class).Error; err != nil {
			return fmt.Errorf("failed to update quota class: %w", err)
		}
		updated = class
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
