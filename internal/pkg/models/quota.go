package models

import "time"

// UnlimitedQuota is the sentinel hard limit denoting "no restriction".
const UnlimitedQuota int64 = -1

// Quota is a per-project limit for one resource.
type Quota struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID string    `gorm:"uniqueIndex:uniq_quota0" json:"project_id"`
	Resource  string    `gorm:"uniqueIndex:uniq_quota0" json:"resource"`
	HardLimit int64     `json:"hard_limit"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuotaClass is a named set of per-resource limits used as a fallback when
// no project-specific quota exists.
type QuotaClass struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ClassName string    `gorm:"uniqueIndex:uniq_quota_class0" json:"class_name"`
	Resource  string    `gorm:"uniqueIndex:uniq_quota_class0" json:"resource"`
	HardLimit int64     `json:"hard_limit"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
