package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSampleReportsHostCapacity(t *testing.T) {
	sample, err := NewSampler().Sample()
	require.NoError(t, err)
	require.Positive(t, sample.MemTotal)
	require.Positive(t, sample.CPUs)
	require.GreaterOrEqual(t, sample.MemTotal, sample.MemFree)
	require.GreaterOrEqual(t, sample.CPUUsed, 0.0)
	require.LessOrEqual(t, sample.CPUUsed, float64(sample.CPUs))
}
