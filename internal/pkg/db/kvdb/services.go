package kvdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/models"
)

var zunServiceListSpec = newListSpec("service", models.ZunService{}, "id")

func zunServiceKey(host string, binary string) string {
	return host + "_" + binary
}

// CreateZunService creates the liveness record for one service process.
func (c *client) CreateZunService(ctx context.Context, service *models.ZunService) (*models.ZunService, error) {
	k := zunServiceKey(service.Host, service.Binary)
	found, err := c.exists(ctx, zunServicesNS, k)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, errdefs.NewAlreadyExists("service", "host", service.Host, "binary", service.Binary)
	}
	id, err := c.nextID(ctx, zunServicesNS)
	if err != nil {
		return nil, err
	}
	service.ID = id
	service.CreatedAt = now()
	service.UpdatedAt = service.CreatedAt
	if err := c.put(ctx, zunServicesNS, k, service); err != nil {
		return nil, err
	}
	return service, nil
}

// GetZunService retrieves the liveness record keyed by (host, binary).
func (c *client) GetZunService(ctx context.Context, host string, binary string) (*models.ZunService, error) {
	raw, found, err := c.getRaw(ctx, zunServicesNS, zunServiceKey(host, binary))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errdefs.NewNotFound("service", host+"/"+binary)
	}
	var service models.ZunService
	if err := json.Unmarshal(raw, &service); err != nil {
		return nil, fmt.Errorf("failed to deserialize service: %w", err)
	}
	return &service, nil
}

// ListZunServices retrieves liveness records matching the options.
func (c *client) ListZunServices(ctx context.Context, opts db.ListOptions) ([]*models.ZunService, error) {
	return runList[models.ZunService](ctx, c, zunServicesNS, zunServiceListSpec, opts, nil)
}

// UpdateZunService applies the given field values to a liveness record.
// LastSeenUp is refreshed only when the reported count strictly increases,
// which keeps out-of-order heartbeats from moving liveness backwards. The
// guard runs inside the same read-modify-write as the rest of the update,
// so it shares that sequence's last-writer-wins property.
func (c *client) UpdateZunService(ctx context.Context, host string, binary string, values map[string]interface{}) (*models.ZunService, error) {
	if err := models.CheckImmutable(values, "id", "host", "binary", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	service, err := c.GetZunService(ctx, host, binary)
	if err != nil {
		return nil, err
	}
	previousCount := service.ReportCount
	if err := models.Apply(service, values); err != nil {
		return nil, err
	}
	if service.ReportCount > previousCount {
		ts := now()
		service.LastSeenUp = &ts
	}
	service.UpdatedAt = now()
	if err := c.put(ctx, zunServicesNS, zunServiceKey(host, binary), service); err != nil {
		return nil, err
	}
	return service, nil
}

// DestroyZunService removes a liveness record.
func (c *client) DestroyZunService(ctx context.Context, host string, binary string) error {
	found, err := c.del(ctx, zunServicesNS, zunServiceKey(host, binary))
	if err != nil {
		return err
	}
	if !found {
		return errdefs.NewNotFound("service", host+"/"+binary)
	}
	return nil
}
