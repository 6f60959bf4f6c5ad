package models

import "time"

// PortMapping describes a single exposed container port.
type PortMapping struct {
	Port     int32  `json:"port"`
	HostPort int32  `json:"host_port"`
	Protocol string `json:"protocol"`
}

// RestartPolicy describes how a container is restarted on exit.
type RestartPolicy struct {
	Name          string `json:"name"`
	MaxRetryCount int32  `json:"max_retry_count"`
}

// Container is a managed container as known to the control plane.
type Container struct {
	ID             int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID           string            `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	ProjectID      string            `gorm:"index" json:"project_id"`
	UserID         string            `gorm:"index" json:"user_id"`
	Name           string            `gorm:"index" json:"name"`
	Image          string            `json:"image"`
	Status         string            `json:"status"`
	TaskState      string            `json:"task_state"`
	CPU            float64           `json:"cpu"`
	Memory         int64             `json:"memory"`
	Disk           int64             `json:"disk"`
	Host           string            `gorm:"index" json:"host"`
	Environment    map[string]string `gorm:"serializer:json" json:"environment"`
	Labels         map[string]string `gorm:"serializer:json" json:"labels"`
	Ports          []PortMapping     `gorm:"serializer:json" json:"ports"`
	RestartPolicy  *RestartPolicy    `gorm:"serializer:json" json:"restart_policy"`
	SecurityGroups []string          `gorm:"serializer:json" json:"security_groups"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
