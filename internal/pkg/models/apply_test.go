package models

import (
	"testing"

	"github.com/openstack/zun-sub002/internal/pkg/errdefs"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]interface{}
		check   func(t *testing.T, c *Container)
		invalid bool
	}{
		{
			name:   "updates named fields only",
			values: map[string]interface{}{"name": "renamed", "memory": 512},
			check: func(t *testing.T, c *Container) {
				require.Equal(t, "renamed", c.Name)
				require.Equal(t, int64(512), c.Memory)
				require.Equal(t, "p1", c.ProjectID)
			},
		},
		{
			name:   "updates serialized maps",
			values: map[string]interface{}{"labels": map[string]string{"tier": "web"}},
			check: func(t *testing.T, c *Container) {
				require.Equal(t, map[string]string{"tier": "web"}, c.Labels)
			},
		},
		{
			name:    "unknown field is rejected",
			values:  map[string]interface{}{"flavor": "m1.small"},
			invalid: true,
		},
		{
			name:    "wrong value type is rejected",
			values:  map[string]interface{}{"memory": "a-lot"},
			invalid: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			container := &Container{Name: "web", ProjectID: "p1", Memory: 256}
			err := Apply(container, tt.values)
			if tt.invalid {
				require.Error(t, err)
				require.True(t, errdefs.IsInvalidParameter(err))
				// the record must stay untouched
				require.Equal(t, "web", container.Name)
				require.Equal(t, int64(256), container.Memory)
				return
			}
			require.NoError(t, err)
			tt.check(t, container)
		})
	}
}

func TestCheckImmutable(t *testing.T) {
	err := CheckImmutable(map[string]interface{}{"uuid": "x"}, "id", "uuid")
	require.Error(t, err)
	require.True(t, errdefs.IsInvalidParameter(err))

	require.NoError(t, CheckImmutable(map[string]interface{}{"name": "x"}, "id", "uuid"))
}

func TestFieldNames(t *testing.T) {
	names := FieldNames(Container{})
	require.Contains(t, names, "uuid")
	require.Contains(t, names, "project_id")
	require.NotContains(t, names, "UUID")

	// fields excluded from the document form must not be addressable
	eventNames := FieldNames(ContainerActionEvent{})
	require.NotContains(t, eventNames, "action")
}

func TestFieldValue(t *testing.T) {
	container := &Container{UUID: "u", Memory: 128}
	require.Equal(t, "u", FieldValue(container, "uuid"))
	require.Equal(t, int64(128), FieldValue(container, "memory"))
	require.Nil(t, FieldValue(container, "no_such_field"))
}

func TestDocument(t *testing.T) {
	doc, err := Document(&Container{UUID: "u", Name: "web"})
	require.NoError(t, err)
	require.Equal(t, "u", doc["uuid"])
	require.Equal(t, "web", doc["name"])
}
