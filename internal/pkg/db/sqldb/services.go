package sqldb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/models"
	"gorm.io/gorm"
)

var zunServiceSpec = newQuerySpec(models.ZunService{}, "id")

// CreateZunService creates the liveness record for one service process.
func (c *client) CreateZunService(ctx context.Context, service *models.ZunService) (*models.ZunService, error) {
	if err := c.db.WithContext(ctx).Create(service).Error; err != nil {
		if duplicated(err) {
			return nil, errdefs.NewAlreadyExists("service", "host", service.Host, "binary", service.Binary)
		}
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return service, nil
}

func (c *client) getZunService(tx *gorm.DB, host string, binary string) (*models.ZunService, error) {
	var service models.ZunService
	if err := tx.Where("host = ? AND binary = ?", host, binary).First(&service).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errdefs.NewNotFound("service", host+"/"+binary)
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &service, nil
}

// GetZunService retrieves the liveness record keyed by (host, binary).
func (c *client) GetZunService(ctx context.Context, host string, binary string) (*models.ZunService, error) {
	return c.getZunService(c.db.WithContext(ctx), host, binary)
}

// ListZunServices retrieves liveness records matching the options.
func (c *client) ListZunServices(ctx context.Context, opts db.ListOptions) ([]*models.ZunService, error) {
	query, err := c.buildList(c.db.WithContext(ctx).Model(&models.ZunService{}), zunServiceSpec, opts, nil)
	if err != nil {
		return nil, err
	}
	var services []*models.ZunService
	if err := query.Find(&services).Error; err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

// UpdateZunService applies the given field values to a liveness record.
// LastSeenUp is refreshed only when the reported count strictly increases,
// which keeps out-of-order heartbeats from moving liveness backwards. The
// check and the write share one row lock.
func (c *client) UpdateZunService(ctx context.Context, host string, binary string, values map[string]interface{}) (*models.ZunService, error) {
	if err := models.CheckImmutable(values, "id", "host", "binary", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	var updated *models.ZunService
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		service, err := c.getZunService(c.forUpdate(tx), host, binary)
		if err != nil {
			return err
		}
		previousCount := service.ReportCount
		if err := models.Apply(service, values); err != nil {
			return err
		}
		if service.ReportCount > previousCount {
			now := time.Now().UTC()
			service.LastSeenUp = &now
		}
		if err := tx.Save(service).Error; err != nil {
			return fmt.Errorf("failed to update service: %w", err)
		}
		updated = service
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DestroyZunService removes a liveness record.
func (c *client) DestroyZunService(ctx context.Context, host string, binary string) error {
	result := c.db.WithContext(ctx).Delete(&models.ZunService{}, "host = ? AND binary = ?", host, binary)
	if result.Error != nil {
		return fmt.Errorf("failed to destroy service: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errdefs.NewNotFound("service", host+"/"+binary)
	}
	return nil
}
