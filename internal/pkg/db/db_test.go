package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	Connection
}

func resetInstance() {
	instanceLock.Lock()
	defer instanceLock.Unlock()
	instance = nil
}

func TestInitAndInstance(t *testing.T) {
	resetInstance()
	t.Cleanup(resetInstance)

	_, err := Instance()
	require.ErrorIs(t, err, ErrNotInitialized)

	conn := &fakeConn{}
	require.NoError(t, Init(conn))

	got, err := Instance()
	require.NoError(t, err)
	require.Same(t, Connection(conn), got)

	require.ErrorIs(t, Init(&fakeConn{}), ErrAlreadyInitialized)
}

func TestParseNameScope(t *testing.T) {
	tests := []struct {
		value    string
		expected NameScope
		invalid  bool
	}{
		{value: "", expected: NameScopeNone},
		{value: "project", expected: NameScopeProject},
		{value: "global", expected: NameScopeGlobal},
		{value: "tenant", invalid: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run("scope "+tt.value, func(t *testing.T) {
			parsed, err := ParseNameScope(tt.value)
			if tt.invalid {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, parsed)
		})
	}
}
