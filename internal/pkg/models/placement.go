package models

import "time"

// ResourceProvider is a node in the provider tree that can supply capacity.
// RootProvider and ParentProvider reference providers by uuid; a provider
// may be its own root, and only a root may lack a parent.
type ResourceProvider struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID           string    `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Name           string    `gorm:"uniqueIndex;not null" json:"name"`
	RootProvider   string    `gorm:"size:36" json:"root_provider"`
	ParentProvider string    `gorm:"size:36" json:"parent_provider"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ResourceClass is a named capacity dimension.
type ResourceClass struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID      string    `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Inventory is the capacity envelope for one (provider, class) pair. At most
// one inventory record exists per pair.
type Inventory struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ResourceProviderID int64     `gorm:"uniqueIndex:uniq_inventory0" json:"resource_provider_id"`
	ResourceClassID    int64     `gorm:"uniqueIndex:uniq_inventory0" json:"resource_class_id"`
	Total              int64     `json:"total" validate:"gte=0"`
	Reserved           int64     `json:"reserved" validate:"gte=0"`
	MinUnit            int64     `json:"min_unit" validate:"gte=1"`
	MaxUnit            int64     `json:"max_unit" validate:"gte=1"`
	StepSize           int64     `json:"step_size" validate:"gte=1"`
	AllocationRatio    float64   `json:"allocation_ratio" validate:"gt=0"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Allocation is one consumer's claim against a (provider, class) pair.
type Allocation struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ResourceProviderID int64     `gorm:"index" json:"resource_provider_id"`
	ResourceClassID    int64     `json:"resource_class_id"`
	ConsumerID         string    `gorm:"index;size:36" json:"consumer_id"`
	Used               int64     `json:"used" validate:"gte=0"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
