package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_CreateInstance(t *testing.T) {
	c := NewContext()
	a := c.CreateInstance("A")
	b := c.CreateInstance("B")

	assert.NotEmpty(t, c.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Same(t, c, a.Context())
	assert.Equal(t, 2, c.Len())

	instances := c.Instances()
	require.Len(t, instances, 2)
	assert.Equal(t, "A", instances[0].Name())
	assert.Equal(t, "B", instances[1].Name())

	found, ok := c.Instance(b.ID())
	require.True(t, ok)
	assert.Same(t, b, found)

	_, ok = c.Instance("missing")
	assert.False(t, ok)
}

func TestContext_FreshIdentity(t *testing.T) {
	assert.NotEqual(t, NewContext().ID(), NewContext().ID())
}

func TestContext_Data(t *testing.T) {
	c := NewContext()
	c.SetData("user", "marcus")

	v, ok := c.Data("user")
	require.True(t, ok)
	assert.Equal(t, "marcus", v)

	copied := c.DataMap()
	copied["user"] = "changed"
	v, _ = c.Data("user")
	assert.Equal(t, "marcus", v, "DataMap must return a copy")
}

func TestInstance_Families(t *testing.T) {
	tests := []struct {
		name     string
		family   any
		families any
		want     []string
	}{
		{name: "none", want: nil},
		{name: "primary only", family: "model", want: []string{"model"}},
		{name: "string list", family: "model", families: []string{"rig", "model"}, want: []string{"model", "rig"}},
		{name: "any list", families: []any{"rig", 3, "look"}, want: []string{"rig", "look"}},
		{name: "non-string family", family: 42, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := NewContext().CreateInstance("x")
			if tt.family != nil {
				inst.SetData("family", tt.family)
			}
			if tt.families != nil {
				inst.SetData("families", tt.families)
			}
			assert.Equal(t, tt.want, inst.Families())
		})
	}
}

func TestContext_Targets(t *testing.T) {
	c := NewContext()
	a := c.CreateInstance("A")
	a.SetData("family", "F")
	c.CreateInstance("B")

	refs, err := c.Targets(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, TargetRef{InstanceID: a.ID(), Name: "A", Families: []string{"F"}}, refs[0])
	assert.False(t, refs[1].IsContext())
	assert.True(t, ContextTarget.IsContext())
}
