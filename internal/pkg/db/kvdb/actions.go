package kvdb

import (
	"context"
	"sort"
	"strconv"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/openstack/zun-sub002/internal/pkg/identity"
	"github.com/openstack/zun-sub002/internal/pkg/models"
)

var (
	actionListSpec = newListSpec("container action", models.ContainerAction{}, "uuid")
	eventListSpec  = newListSpec("container action event", models.ContainerActionEvent{}, "id")
)

// CreateContainerAction records the start of an operation on a container.
func (c *client) CreateContainerAction(ctx context.Context, action *models.ContainerAction) (*models.ContainerAction, error) {
	if action.UUID == "" {
		action.UUID = identity.New()
	}
	found, err := c.exists(ctx, containerActionsNS, action.UUID)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, errdefs.NewAlreadyExists("container action", "uuid", action.UUID)
	}
	id, err := c.nextID(ctx, containerActionsNS)
	if err != nil {
		return nil, err
	}
	action.ID = id
	action.CreatedAt = now()
	action.UpdatedAt = action.CreatedAt
	if err := c.put(ctx, containerActionsNS, action.UUID, action); err != nil {
		return nil, err
	}
	return action, nil
}

func (c *client) findContainerAction(ctx context.Context, containerUUID string, requestID string) (*models.ContainerAction, error) {
	matched, err := runList[models.ContainerAction](ctx, c, containerActionsNS, actionListSpec, db.ListOptions{
		Filters: map[string]interface{}{
			"container_uuid": containerUUID,
			"request_id":     requestID,
		},
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, errdefs.NewNotFound("container action", containerUUID+"/"+requestID)
	}
	// The most recent action wins when a request id was reused.
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched[0], nil
}

// GetContainerActionByRequestID retrieves the most recent action recorded
// for a container under the given request id.
func (c *client) GetContainerActionByRequestID(ctx context.Context, containerUUID string, requestID string) (*models.ContainerAction, error) {
	return c.findContainerAction(ctx, containerUUID, requestID)
}

// ListContainerActions retrieves all actions recorded for a container,
// most recent first.
func (c *client) ListContainerActions(ctx context.Context, containerUUID string) ([]*models.ContainerAction, error) {
	actions, err := runList[models.ContainerAction](ctx, c, containerActionsNS, actionListSpec, db.ListOptions{
		Filters: map[string]interface{}{"container_uuid": containerUUID},
	}, nil)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].CreatedAt.Equal(actions[j].CreatedAt) {
			return actions[i].ID > actions[j].ID
		}
		return actions[i].CreatedAt.After(actions[j].CreatedAt)
	})
	return actions, nil
}

// UpdateContainerAction applies the given field values to the action
// resolved by (container uuid, request id).
func (c *client) UpdateContainerAction(ctx context.Context, containerUUID string, requestID string, values map[string]interface{}) (*models.ContainerAction, error) {
	if err := models.CheckImmutable(values, "id", "uuid", "container_uuid", "request_id", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	action, err := c.findContainerAction(ctx, containerUUID, requestID)
	if err != nil {
		return nil, err
	}
	if err := models.Apply(action, values); err != nil {
		return nil, err
	}
	action.UpdatedAt = now()
	if err := c.put(ctx, containerActionsNS, action.UUID, action); err != nil {
		return nil, err
	}
	return action, nil
}

// CreateContainerActionEvent records the start of one sub-step of an action.
func (c *client) CreateContainerActionEvent(ctx context.Context, actionID int64, event *models.ContainerActionEvent) (*models.ContainerActionEvent, error) {
	id, err := c.nextID(ctx, containerActionEventsNS)
	if err != nil {
		return nil, err
	}
	event.ID = id
	event.ActionID = actionID
	event.CreatedAt = now()
	event.UpdatedAt = event.CreatedAt
	if err := c.put(ctx, containerActionEventsNS, strconv.FormatInt(id, 10), event); err != nil {
		return nil, err
	}
	return event, nil
}

// ListContainerActionEvents retrieves the events of an action ordered by
// creation time descending. Diagnostic displays rely on this ordering.
func (c *client) ListContainerActionEvents(ctx context.Context, actionID int64) ([]*models.ContainerActionEvent, error) {
	events, err := runList[models.ContainerActionEvent](ctx, c, containerActionEventsNS, eventListSpec, db.ListOptions{
		Filters: map[string]interface{}{"action_id": actionID},
	}, nil)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID > events[j].ID
		}
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

// UpdateContainerActionEvent applies the given field values to the named
// event of an action.
func (c *client) UpdateContainerActionEvent(ctx context.Context, actionID int64, event string, values map[string]interface{}) (*models.ContainerActionEvent, error) {
	if err := models.CheckImmutable(values, "id", "action_id", "event", "created_at", "updated_at"); err != nil {
		return nil, err
	}
	matched, err := runList[models.ContainerActionEvent](ctx, c, containerActionEventsNS, eventListSpec, db.ListOptions{
		Filters: map[string]interface{}{
			"action_id": actionID,
			"event":     event,
		},
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, errdefs.NewNotFound("container action event", event)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	rec := matched[0]
	if err := models.Apply(rec, values); err != nil {
		return nil, err
	}
	rec.UpdatedAt = now()
	if err := c.put(ctx, containerActionEventsNS, strconv.FormatInt(rec.ID, 10), rec); err != nil {
		return nil, err
	}
	return rec, nil
}
