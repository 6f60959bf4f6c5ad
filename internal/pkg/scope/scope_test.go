package scope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTenantFilter(t *testing.T) {
	tests := []struct {
		name          string
		sc            *Context
		expectedField string
		expectedValue string
		unrestricted  bool
	}{
		{
			name:          "project member filters by project",
			sc:            &Context{ProjectID: "p1", UserID: "u1"},
			expectedField: "project_id",
			expectedValue: "p1",
		},
		{
			name:          "user without project filters by user",
			sc:            &Context{UserID: "u1"},
			expectedField: "user_id",
			expectedValue: "u1",
		},
		{
			name:         "admin requesting all projects is unrestricted",
			sc:           Admin(),
			unrestricted: true,
		},
		{
			name:          "admin without all-projects stays in own project",
			sc:            &Context{ProjectID: "p1", IsAdmin: true},
			expectedField: "project_id",
			expectedValue: "p1",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			field, value, ok := tt.sc.TenantFilter()
			if tt.unrestricted {
				require.False(t, ok)
				return
			}
			require.True(t, ok)
			require.Equal(t, tt.expectedField, field)
			require.Equal(t, tt.expectedValue, value)
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	sc := &Context{ProjectID: "p1", UserID: "u1"}
	ctx := NewContext(context.Background(), sc)
	require.Same(t, sc, FromContext(ctx))
}

func TestFromContextWithoutScope(t *testing.T) {
	require.Nil(t, FromContext(context.Background()))
}
