package models

import "time"

// ZunService is the liveness record of one control plane service process,
// keyed by (host, binary). ReportCount only ever moves forward; a report
// that does not strictly increase it must not refresh LastSeenUp.
type ZunService struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Host           string     `gorm:"uniqueIndex:uniq_zun_service0" json:"host"`
	Binary         string     `gorm:"uniqueIndex:uniq_zun_service0" json:"binary"`
	Disabled       bool       `json:"disabled"`
	DisabledReason string     `json:"disabled_reason"`
	ForcedDown     bool       `json:"forced_down"`
	LastSeenUp     *time.Time `json:"last_seen_up"`
	ReportCount    int64      `json:"report_count"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
