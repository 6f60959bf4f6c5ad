package sqldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/identity"
	"github.com/openstack/zun-sub002/internal/pkg/models"
	"gorm.io/gorm"
)

// CreateContainerAction records the start of an operation on a container.
func (c *client) CreateContainerAction(ctx context.Context, action *models.ContainerAction) (*models.ContainerAction, error) {
	if action.UUID == "" {
		action.UUID = identity.New()
	}
	if err := c.db.WithContext(ctx).Create(action).Error; err != nil {
		if duplicated(err) {
			return nil, errdefs.NewAlreadyExists("container action", "uuid", action.UUID)
		}
		return nil, fmt.Errorf("failed to create container action: %w", err)
	}
	return action, nil
}

func (c *client) getContainerAction(tx *gorm.DB, containerUUID string, requestID string) (*models.ContainerAction, error) {
	var action models.ContainerAction
	err := tx.Where("container_uuid = ? AND request_id = ?", containerUUID, requestID).
		Order("created_at DESC, id DESC").First(&action).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errdefs.NewNotFound("container action", containerUUID+"/"+requestID)
		}
		return nil, fmt.Errorf("failed to get container action: %w", err)
	}
	return &action, nil
}

// GetContainerActionByRequestID retrieves the most recent action recorded
// for a container under the given request id.
func (c *client) GetContainerActionByRequestID(ctx context.Context, containerUUID string, requestID string) (*models.ContainerAction, error) {
	return c.getContainerAction(c.db.WithContext(ctx), containerUUID, requestID)
}

// ListContainerActions retrieves all actions recorded for a container,
// most recent first.
func (c *client) ListContainerActions(ctx context.Context, containerUUID string) ([]*models.ContainerAction, error) {
	var actions []*models.ContainerAction
	err := c.db.WithContext(ctx).Where("container_uuid = ?", containerUUID).
		Order("created_at DESC, id DESC").Find(&actions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list container actions: %w", err)
	}
	return actions, nil
}

// UpdateContainerAction applies the given field values to the action
// resolved by (container uuid, request id).
func (c *client) UpdateContainerAction(ctx context.Context, containerUUID string, requestID string, values map[string]interface{}) (*models.ContainerAction, error) {
	if err := models.CheckImmutable(values, "id", "uuid", "container_uuid", "request_id", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	var updated *models.ContainerAction
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		action, err := c.getContainerAction(c.forUpdate(tx), containerUUID, requestID)
		if err != nil {
			return err
		}
		if err := models.Apply(action, values); err != nil {
			return err
		}
		if err := tx.Save(action).Error; err != nil {
			return fmt.Errorf("failed to update container action: %w", err)
		}
		updated = action
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CreateContainerActionEvent records the start of one sub-step of an action.
func (c *client) CreateContainerActionEvent(ctx context.Context, actionID int64, event *models.ContainerActionEvent) (*models.ContainerActionEvent, error) {
	event.ActionID = actionID
	if err := c.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, fmt.Errorf("failed to create container action event: %w", err)
	}
	return event, nil
}

// ListContainerActionEvents retrieves the events of an action ordered by
// creation time descending. Diagnostic displays rely on this ordering.
func (c *client) ListContainerActionEvents(ctx context.Context, actionID int64) ([]*models.ContainerActionEvent, error) {
	var events []*models.ContainerActionEvent
	err := c.db.WithContext(ctx).Where("action_id = ?", actionID).
		Order("created_at DESC, id DESC").Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list container action events: %w", err)
	}
	return events, nil
}

// UpdateContainerActionEvent applies the given field values to the named
// event of an action.
func (c *client) UpdateContainerActionEvent(ctx context.Context, actionID int64, event string, values map[string]interface{}) (*models.ContainerActionEvent, error) {
	if err := models.CheckImmutable(values, "id", "action_id", "event", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	var updated *models.ContainerActionEvent
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.ContainerActionEvent
		err := c.forUpdate(tx).Where("action_id = ? AND event = ?", actionID, event).
			Order("created_at DESC, id DESC").First(&rec).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errdefs.NewNotFound("container action event", event)
			}
			return fmt.Errorf("failed to get container action event: %w", err)
		}
		if err := models.Apply(&rec, values); err != nil {
			return err
		}
		if err := tx.Save(&rec).Error; err != nil {
			return fmt.Errorf("failed to update container action event: %w", err)
		}
		updated = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
