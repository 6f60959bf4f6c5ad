// Package metrics samples host capacity counters for compute node records.
package metrics

import (
	"fmt"
	"math"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// NodeSample holds the capacity counters of a compute host at one point in
// time. Memory counters are in megabytes; CPUUsed is the number of cores
// currently busy.
type NodeSample struct {
	MemTotal int64
	MemFree  int64
	CPUs     int
	CPUUsed  float64
}

// Sampler produces capacity samples for the local host.
type Sampler interface {
	Sample() (*NodeSample, error)
}

type sampler struct{}

// NewSampler creates a Sampler reading from the local host.
func NewSampler() Sampler {
	return &sampler{}
}

// Sample reads the current memory and cpu counters of the host.
func (s *sampler) Sample() (*NodeSample, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory stats: %w", err)
	}
	cpus, err := cpu.Counts(true)
	if err != nil {
		return nil, fmt.Errorf("failed to get cpu count: %w", err)
	}
	percent, err := cpu.Percent(0, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get cpu usage: %w", err)
	}
	cpuUsed := 0.0
	if len(percent) > 0 {
		cpuUsed = math.Round(percent[0]*float64(cpus)) / 100
	}
	return &NodeSample{
		MemTotal: int64(stat.Total / (1 << 20)),
		MemFree:  int64(stat.Available / (1 << 20)),
		CPUs:     cpus,
		CPUUsed:  cpuUsed,
	}, nil
}
