package kvdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/identity"
	"github.com/openstack/zun-sub002/internal/pkg/models"
)

var computeNodeListSpec = newListSpec("compute node", models.ComputeNode{}, "uuid")

// CreateComputeNode registers a compute host.
func (c *client) CreateComputeNode(ctx context.Context, node *models.ComputeNode) (*models.ComputeNode, error) {
	if node.UUID == "" {
		node.UUID = identity.New()
	}
	matched, err := runList[models.ComputeNode](ctx, c, computeNodesNS, computeNodeListSpec,
		db.ListOptions{Filters: map[string]interface{}{"hostname": node.Hostname}}, nil)
	if err != nil {
		return nil, err
	}
	if len(matched) > 0 {
		return nil, errdefs.NewAlreadyExists("compute node", "hostname", node.Hostname)
	}
	found, err := c.exists(ctx, computeNodesNS, node.UUID)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, errdefs.NewAlreadyExists("compute node", "uuid", node.UUID)
	}
	node.CreatedAt = now()
	node.UpdatedAt = node.CreatedAt
	if err := c.put(ctx, computeNodesNS, node.UUID, node); err != nil {
		return nil, err
	}
	return node, nil
}

// GetComputeNode retrieves a compute node by its uuid.
func (c *client) GetComputeNode(ctx context.Context, nodeUUID string) (*models.ComputeNode, error) {
	raw, found, err := c.getRaw(ctx, computeNodesNS, nodeUUID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errdefs.NewNotFound("compute node", nodeUUID)
	}
	var node models.ComputeNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("failed to deserialize compute node: %w", err)
	}
	return &node, nil
}

// GetComputeNodeByHostname retrieves a compute node by its hostname.
func (c *client) GetComputeNodeByHostname(ctx context.Context, hostname string) (*models.ComputeNode, error) {
	return findOne[models.ComputeNode](ctx, c, computeNodesNS, computeNodeListSpec, "hostname", hostname, nil)
}

// ListComputeNodes retrieves compute nodes matching the given options.
func (c *client) ListComputeNodes(ctx context.Context, opts db.ListOptions) ([]*models.ComputeNode, error) {
	return runList[models.ComputeNode](ctx, c, computeNodesNS, computeNodeListSpec, opts, nil)
}

// UpdateComputeNode applies the given field values to a compute node.
func (c *client) UpdateComputeNode(ctx context.Context, nodeUUID string, values map[string]interface{}) (*models.ComputeNode, error) {
	if err := models.CheckImmutable(values, "uuid", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	node, err := c.GetComputeNode(ctx, nodeUUID)
	if err != nil {
		return nil, err
	}
	if err := models.Apply(node, values); err != nil {
		return nil, err
	}
	node.UpdatedAt = now()
	if err := c.put(ctx, computeNodesNS, node.UUID, node); err != nil {
		return nil, err
	}
	return node, nil
}

// DestroyComputeNode removes a decommissioned compute host.
func (c *client) DestroyComputeNode(ctx context.Context, nodeUUID string) error {
	found, err := c.del(ctx, computeNodesNS, nodeUUID)
	if err != nil {
		return err
	}
	if !found {
		return errdefs.NewNotFound("compute node", nodeUUID)
	}
	return nil
}
