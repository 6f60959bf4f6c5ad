package factory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(Options{Backend: "etcd"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown database backend")
}

func TestNewKVBackend(t *testing.T) {
	// the key-value client connects lazily, so construction succeeds
	// without a reachable store
	conn, err := New(Options{Backend: BackendKV})
	require.NoError(t, err)
	require.False(t, conn.Capabilities().AtomicUpdate)
	_ = conn.Close()
}
