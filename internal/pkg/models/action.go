package models

import "time"

// ContainerAction is one invoked operation on a container. FinishTime stays
// unset until the operation concludes; Message carries "Error" when it
// concluded abnormally.
type ContainerAction struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID          string     `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Action        string     `json:"action"`
	ContainerUUID string     `gorm:"index;size:36" json:"container_uuid"`
	RequestID     string     `gorm:"index" json:"request_id"`
	UserID        string     `json:"user_id"`
	ProjectID     string     `json:"project_id"`
	StartTime     time.Time  `json:"start_time"`
	FinishTime    *time.Time `json:"finish_time"`
	Message       string     `json:"message"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ContainerActionEvent is one sub-step of a ContainerAction. Events for an
// action are returned most-recent-first.
type ContainerActionEvent struct {
	ID         int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ActionID   int64            `gorm:"index;not null" json:"action_id"`
	Action     *ContainerAction `gorm:"foreignKey:ActionID;constraint:OnDelete:CASCADE" json:"-"`
	Event      string           `json:"event"`
	StartTime  time.Time        `json:"start_time"`
	FinishTime *time.Time       `json:"finish_time"`
	Result     string           `json:"result"`
	Traceback  string           `json:"traceback"`
	Details    string           `json:"details"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}
