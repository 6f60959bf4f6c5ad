package sqldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/identity"
	"github.com/openstack/zun-sub002/internal/pkg/models"
	"gorm.io/gorm"
)

var computeNodeSpec = newQuerySpec(models.ComputeNode{}, "uuid")

// CreateComputeNode registers a compute host.
func (c *client) CreateComputeNode(ctx context.Context, node *models.ComputeNode) (*models.ComputeNode, error) {
	if node.UUID == "" {
		node.UUID = identity.New()
	}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ComputeNode{}).Where("hostname = ?", node.Hostname).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check hostname: %w", err)
		}
		if count > 0 {
			return errdefs.NewAlreadyExists("compute node", "hostname", node.Hostname)
		}
		if err := tx.Create(node).Error; err != nil {
			if duplicated(err) {
				return errdefs.NewAlreadyExists("compute node", "uuid", node.UUID)
			}
			return fmt.Errorf("failed to create compute node: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (c *client) getComputeNode(tx *gorm.DB, nodeUUID string) (*models.ComputeNode, error) {
	var node models.ComputeNode
	if err := tx.Where("uuid = ?", nodeUUID).First(&node).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errdefs.NewNotFound("compute node", nodeUUID)
		}
		return nil, fmt.Errorf("failed to get compute node: %w", err)
	}
	return &node, nil
}

// GetComputeNode retrieves a compute node by its uuid.
func (c *client) GetComputeNode(ctx context.Context, nodeUUID string) (*models.ComputeNode, error) {
	return c.getComputeNode(c.db.WithContext(ctx), nodeUUID)
}

// GetComputeNodeByHostname retrieves a compute node by its hostname.
func (c *client) GetComputeNodeByHostname(ctx context.Context, hostname string) (*models.ComputeNode, error) {
	var nodes []models.ComputeNode
	if err := c.db.WithContext(ctx).Where("hostname = ?", hostname).Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("failed to get compute node by hostname: %w", err)
	}
	switch len(nodes) {
	case 0:
		return nil, errdefs.NewNotFound("compute node", hostname)
	case 1:
		return &nodes[0], nil
	default:
		return nil, errdefs.NewConflict("compute node", "hostname", hostname, len(nodes))
	}
}

// ListComputeNodes retrieves compute nodes matching the given options.
func (c *client) ListComputeNodes(ctx context.Context, opts db.ListOptions) ([]*models.ComputeNode, error) {
	var marker interface{}
	if opts.Marker != "" {
		rec, err := c.GetComputeNode(ctx, opts.Marker)
		if err != nil {
			return nil, err
		}
		marker = rec
	}
	query, err := c.buildList(c.db.WithContext(ctx).Model(&models.ComputeNode{}), computeNodeSpec, opts, marker)
	if err != nil {
		return nil, err
	}
	var nodes []*models.ComputeNode
	if err := query.Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("failed to list compute nodes: %w", err)
	}
	return nodes, nil
}

// UpdateComputeNode applies the given field values to a compute node.
func (c *client) UpdateComputeNode(ctx context.Context, nodeUUID string, values map[string]interface{}) (*models.ComputeNode, error) {
	if err := models.CheckImmutable(values, "uuid", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	var updated *models.ComputeNode
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		node, err := c.getComputeNode(c.forUpdate(tx), nodeUUID)
		if err != nil {
			return err
		}
		if err := models.Apply(node, values); err != nil {
			return err
		}
		if err := tx.Save(node).Error; err != nil {
			if duplicated(err) {
				return errdefs.NewAlreadyExists("compute node", "hostname", node.Hostname)
			}
			return fmt.Errorf("failed to update compute node: %w", err)
		}
		updated = node
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DestroyComputeNode removes a decommissioned compute host.
func (c *client) DestroyComputeNode(ctx context.Context, nodeUUID string) error {
	result := c.db.WithContext(ctx).Delete(&models.ComputeNode{}, "uuid = ?", nodeUUID)
	if result.Error != nil {
		return fmt.Errorf("failed to destroy compute node: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errdefs.NewNotFound("compute node", nodeUUID)
	}
	return nil
}
