package models

import "time"

// NUMANode describes one NUMA cell of a compute host.
type NUMANode struct {
	ID           int   `json:"id"`
	CPUSet       []int `json:"cpuset"`
	PinnedCPUs   []int `json:"pinned_cpus"`
	MemTotal     int64 `json:"mem_total"`
	MemAvailable int64 `json:"mem_available"`
}

// NUMATopology is the NUMA layout reported by a compute host.
type NUMATopology struct {
	Nodes []NUMANode `json:"nodes"`
}

// ComputeNode is a compute host registered with the control plane. The uuid
// is the primary identity, the hostname a secondary unique lookup key.
type ComputeNode struct {
	UUID         string            `gorm:"primaryKey;size:36" json:"uuid"`
	Hostname     string            `gorm:"uniqueIndex;not null" json:"hostname"`
	MemTotal     int64             `json:"mem_total"`
	MemFree      int64             `json:"mem_free"`
	CPUs         int               `json:"cpus"`
	CPUUsed      float64           `json:"cpu_used"`
	DiskTotal    int64             `json:"disk_total"`
	DiskUsed     int64             `json:"disk_used"`
	NUMATopology *NUMATopology     `gorm:"serializer:json" json:"numa_topology"`
	Labels       map[string]string `gorm:"serializer:json" json:"labels"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
