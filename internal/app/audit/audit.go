// Package audit records the operator-visible history of operations on
// containers: one action per invoked operation and zero or more events for
// its sub-steps. Events for an action are returned most recent first.
package audit

import (
	"context"
	"time"

	"github.com/openstack/zun-sub002/internal/pkg/db"
	"github.com/openstack/zun-sub002/internal/pkg/models"
	"github.com/openstack/zun-sub002/internal/pkg/scope"
	"github.com/openstack/zun-sub002/pkg/logger"
	"github.com/openstack/zun-sub002/pkg/messaging"
)

var log = logger.NewLogger("zun.audit")

// Topic is the broker topic action lifecycle notifications are published
// to when a producer is configured.
const Topic = "zun.audit"

const (
	// EventResultSuccess marks an event that finished cleanly.
	EventResultSuccess = "Success"

	// EventResultError marks an event that finished with an error.
	EventResultError = "Error"

	// errorMessage is recorded on an action that concluded abnormally.
	errorMessage = "Error"
)

type Recorder interface {
	ActionStart(ctx context.Context, containerUUID string, action string, requestID string) (*models.ContainerAction, error)
	ActionFinish(ctx context.Context, containerUUID string, requestID string, actionErr error) (*models.ContainerAction, error)
	ActionsGet(ctx context.Context, containerUUID string) ([]*models.ContainerAction, error)
	ActionGetByRequestID(ctx context.Context, containerUUID string, requestID string) (*models.ContainerAction, error)
	EventStart(ctx context.Context, containerUUID string, requestID string, event string) (*models.ContainerActionEvent, error)
	EventFinish(ctx context.Context, containerUUID string, requestID string, event string, eventErr error, traceback string) (*models.ContainerActionEvent, error)
	EventsGet(ctx context.Context, actionID int64) ([]*models.ContainerActionEvent, error)
}

type recorder struct {
	conn     db.Connection
	producer messaging.Producer
}

// NewRecorder creates a new audit recorder on the given connection. The
// producer is optional; when set, action lifecycle records are published
// as notifications.
func NewRecorder(conn db.Connection, producer messaging.Producer) Recorder {
	return &recorder{
		conn:     conn,
		producer: producer,
	}
}

func (r *recorder) notify(ctx context.Context, phase string, action *models.ContainerAction) {
	if r.producer == nil {
		return
	}
	r.producer.Publish(ctx, Topic, map[string]interface{}{
		"phase":          phase,
		"action":         action.Action,
		"container_uuid": action.ContainerUUID,
		"request_id":     action.RequestID,
		"message":        action.Message,
	})
}

// ActionStart records the start of an operation on a container. The
// action's finish time stays unset until ActionFinish concludes it.
func (r *recorder) ActionStart(ctx context.Context, containerUUID string, action string, requestID string) (*models.ContainerAction, error) {
	rec := &models.ContainerAction{
		Action:        action,
		ContainerUUID: containerUUID,
		RequestID:     requestID,
		StartTime:     time.Now().UTC(),
	}
	if sc := scope.FromContext(ctx); sc != nil {
		rec.ProjectID = sc.ProjectID
		rec.UserID = sc.UserID
	}
	created, err := r.conn.CreateContainerAction(ctx, rec)
	if err != nil {
		return nil, err
	}
	r.notify(ctx, "start", created)
	return created, nil
}

// ActionFinish concludes an action. An abnormal conclusion records the
// error marker as the action's message.
func (r *recorder) ActionFinish(ctx context.Context, containerUUID string, requestID string, actionErr error) (*models.ContainerAction, error) {
	values := map[string]interface{}{
		"finish_time": time.Now().UTC(),
	}
	if actionErr != nil {
		values["message"] = errorMessage
		log.Debugf("action on container %s finished with error: %v", containerUUID, actionErr)
	}
	updated, err := r.conn.UpdateContainerAction(ctx, containerUUID, requestID, values)
	if err != nil {
		return nil, err
	}
	r.notify(ctx, "finish", updated)
	return updated, nil
}

// ActionsGet retrieves the actions recorded for a container, most recent
// first.
func (r *recorder) ActionsGet(ctx context.Context, containerUUID string) ([]*models.ContainerAction, error) {
	return r.conn.ListContainerActions(ctx, containerUUID)
}

// ActionGetByRequestID retrieves one action by its correlation key.
func (r *recorder) ActionGetByRequestID(ctx context.Context, containerUUID string, requestID string) (*models.ContainerAction, error) {
	return r.conn.GetContainerActionByRequestID(ctx, containerUUID, requestID)
}

// EventStart records the start of one sub-step. It fails with the action's
// not-found error when no action matches (container uuid, request id).
func (r *recorder) EventStart(ctx context.Context, containerUUID string, requestID string, event string) (*models.ContainerActionEvent, error) {
	action, err := r.conn.GetContainerActionByRequestID(ctx, containerUUID, requestID)
	if err != nil {
		return nil, err
	}
	return r.conn.CreateContainerActionEvent(ctx, action.ID, &models.ContainerActionEvent{
		Event:     event,
		StartTime: time.Now().UTC(),
	})
}

// EventFinish concludes one sub-step with a success or error result. It
// fails with the action's not-found error when no action matches.
func (r *recorder) EventFinish(ctx context.Context, containerUUID string, requestID string, event string, eventErr error, traceback string) (*models.ContainerActionEvent, error) {
	action, err := r.conn.GetContainerActionByRequestID(ctx, containerUUID, requestID)
	if err != nil {
		return nil, err
	}
	values := map[string]interface{}{
		"finish_time": time.Now().UTC(),
		"result":      EventResultSuccess,
	}
	if eventErr != nil {
		values["result"] = EventResultError
		values["traceback"] = traceback
	}
	return r.conn.UpdateContainerActionEvent(ctx, action.ID, event, values)
}

// EventsGet retrieves the events of an action ordered by creation time
// descending.
func (r *recorder) EventsGet(ctx context.Context, actionID int64) ([]*models.ContainerActionEvent, error) {
	return r.conn.ListContainerActionEvents(ctx, actionID)
}
