package plugin

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/gauntlet/errors"
	"github.com/teranos/gauntlet/pipeline"
	"go.uber.org/zap/zaptest"
)

// =============================================================================
// Test Plugins
// =============================================================================

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry("1.4.0", pipeline.DefaultCollectionBoundary, zaptest.NewLogger(t).Sugar())
}

func noop(ctx context.Context, target *pipeline.Target) error { return nil }

func newPlugin(name string, order float64, families ...string) *pipeline.Plugin {
	return &pipeline.Plugin{Name: name, Order: order, Families: families, Process: noop}
}

func creator(name string, instances ...string) *pipeline.Plugin {
	return &pipeline.Plugin{
		Name:  name,
		Order: pipeline.CollectorOrder,
		Process: func(ctx context.Context, target *pipeline.Target) error {
			for _, n := range instances {
				target.Context.CreateInstance(n).SetData("family", "F")
			}
			return nil
		},
	}
}

// brokenValidator fails until fixed is set by its repair body.
type brokenValidator struct {
	mu       sync.Mutex
	fixed    bool
	repaired int
}

func (b *brokenValidator) plugin(families ...string) *pipeline.Plugin {
	return &pipeline.Plugin{
		Name:     "ValidateBroken",
		Order:    pipeline.ValidatorOrder,
		Families: families,
		Process: func(ctx context.Context, target *pipeline.Target) error {
			b.mu.Lock()
			defer b.mu.Unlock()
			if !b.fixed {
				return errors.New("broken")
			}
			return nil
		},
		Repair: func(ctx context.Context, target *pipeline.Target) error {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.fixed = true
			b.repaired++
			return nil
		},
	}
}

// =============================================================================
// Registration Tests
// =============================================================================

func TestRegistry_Register(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		registry := newTestRegistry(t)
		p := newPlugin("Collect", pipeline.CollectorOrder)

		require.NoError(t, registry.Register(p))

		got, ok := registry.Plugin("Collect")
		assert.True(t, ok)
		assert.Same(t, p, got)
	})

	t.Run("id defaults to name", func(t *testing.T) {
		registry := newTestRegistry(t)
		p := newPlugin("Collect", pipeline.CollectorOrder)
		require.NoError(t, registry.Register(p))
		assert.Equal(t, "Collect", p.ID)
	})

	t.Run("id conflict", func(t *testing.T) {
		registry := newTestRegistry(t)
		require.NoError(t, registry.Register(newPlugin("test", 0)))

		dup := newPlugin("test", 1)
		err := registry.Register(dup)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConflict))
		assert.Contains(t, err.Error(), "already registered")
		assert.Empty(t, dup.ID, "rejected plugin must be left untouched")
	})

	t.Run("name defaults to id", func(t *testing.T) {
		registry := newTestRegistry(t)
		p := &pipeline.Plugin{ID: "collect.files", Process: noop}
		require.NoError(t, registry.Register(p))
		assert.Equal(t, "collect.files", p.Name)
	})

	t.Run("missing process body", func(t *testing.T) {
		registry := newTestRegistry(t)
		err := registry.Register(&pipeline.Plugin{Name: "empty"})
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	})

	t.Run("missing identity", func(t *testing.T) {
		registry := newTestRegistry(t)
		err := registry.Register(&pipeline.Plugin{Process: noop})
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	})
}

func TestRegistry_validateVersion(t *testing.T) {
	tests := []struct {
		name       string
		framework  string
		constraint string
		wantErr    bool
	}{
		{name: "no constraint", framework: "1.0.0", constraint: "", wantErr: false},
		{name: "exact match", framework: "1.0.0", constraint: "1.0.0", wantErr: false},
		{name: "caret constraint - compatible", framework: "1.5.2", constraint: "^1.0.0", wantErr: false},
		{name: "caret constraint - incompatible", framework: "2.0.0", constraint: "^1.0.0", wantErr: true},
		{name: "tilde constraint - compatible", framework: "1.2.5", constraint: "~1.2.0", wantErr: false},
		{name: "tilde constraint - incompatible", framework: "1.3.0", constraint: "~1.2.0", wantErr: true},
		{name: "range constraint - compatible", framework: "1.5.0", constraint: ">=1.0.0 <2.0.0", wantErr: false},
		{name: "invalid framework version", framework: "invalid", constraint: "^1.0.0", wantErr: true},
		{name: "invalid constraint syntax", framework: "1.0.0", constraint: "not-a-version", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry(tt.framework, pipeline.DefaultCollectionBoundary, nil)
			p := newPlugin("test", 0)
			p.Requires = tt.constraint

			err := registry.Register(p)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrIncompatible))
				_, ok := registry.Plugin("test")
				assert.False(t, ok)
				assert.Empty(t, p.ID)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry_Deregister(t *testing.T) {
	registry := newTestRegistry(t)
	require.NoError(t, registry.Register(newPlugin("a", 0)))
	require.NoError(t, registry.Register(newPlugin("b", 1)))

	assert.True(t, registry.Deregister("a"))
	assert.False(t, registry.Deregister("a"))
	assert.Len(t, registry.Discover(), 1)

	registry.DeregisterAll()
	assert.Empty(t, registry.Discover())

	// The id is free again.
	assert.NoError(t, registry.Register(newPlugin("a", 0)))
}

func TestRegistry_Paths(t *testing.T) {
	registry := newTestRegistry(t)
	registry.RegisterPath("/a")
	registry.RegisterPath("/b")
	registry.RegisterPath("/a")

	assert.Equal(t, []string{"/a", "/b"}, registry.Paths())

	registry.DeregisterPath("/a")
	assert.Equal(t, []string{"/b"}, registry.Paths())

	registry.DeregisterAllPaths()
	assert.Empty(t, registry.Paths())
}

func TestRegistry_Discover(t *testing.T) {
	registry := newTestRegistry(t)
	for _, p := range []*pipeline.Plugin{
		newPlugin("Extract", pipeline.ExtractorOrder),
		newPlugin("ValidateB", pipeline.ValidatorOrder),
		newPlugin("Collect", pipeline.CollectorOrder),
		newPlugin("ValidateA", pipeline.ValidatorOrder),
	} {
		require.NoError(t, registry.Register(p))
	}

	var ids []string
	for _, d := range registry.Discover() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"Collect", "ValidateB", "ValidateA", "Extract"}, ids)
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestRegistry_Reset(t *testing.T) {
	registry := newTestRegistry(t)
	require.NoError(t, registry.Register(creator("Collect", "A")))
	registry.RegisterPath("/plugins")
	_, err := registry.RegisterCallback("e", Callback{Fn: func(context.Context, Args) error { return nil }})
	require.NoError(t, err)

	_, err = registry.Process(context.Background(), "Collect", "")
	require.NoError(t, err)
	before := registry.Context()
	require.Equal(t, 1, before.Len())

	registry.Reset()

	assert.Empty(t, registry.Discover())
	assert.Empty(t, registry.Paths())
	assert.Zero(t, registry.Callbacks("e"))
	assert.NotEqual(t, before.ID(), registry.Context().ID())
	assert.Zero(t, registry.Context().Len())
}

func TestRegistry_Begin(t *testing.T) {
	registry := newTestRegistry(t)
	require.NoError(t, registry.Register(creator("Collect", "A")))
	registry.RegisterPath("/plugins")

	_, err := registry.Process(context.Background(), "Collect", "")
	require.NoError(t, err)
	before := registry.Context()

	fresh := registry.Begin()

	assert.Same(t, fresh, registry.Context())
	assert.NotEqual(t, before.ID(), fresh.ID())
	assert.Zero(t, fresh.Len())
	assert.Len(t, registry.Discover(), 1)
	assert.Equal(t, []string{"/plugins"}, registry.Paths())
}

// =============================================================================
// Process / Repair Tests
// =============================================================================

func TestRegistry_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown plugin", func(t *testing.T) {
		registry := newTestRegistry(t)
		_, err := registry.Process(ctx, "missing", "")
		assert.True(t, errors.IsResolutionError(err))
	})

	t.Run("unknown instance", func(t *testing.T) {
		registry := newTestRegistry(t)
		require.NoError(t, registry.Register(newPlugin("Validate", pipeline.ValidatorOrder, "F")))
		_, err := registry.Process(ctx, "Validate", "nope")
		assert.True(t, errors.IsResolutionError(err))
	})

	t.Run("instance for a context plugin", func(t *testing.T) {
		registry := newTestRegistry(t)
		require.NoError(t, registry.Register(creator("Collect", "A")))
		_, err := registry.Process(ctx, "Collect", "")
		require.NoError(t, err)

		id := registry.Context().Instances()[0].ID()
		_, err = registry.Process(ctx, "Collect", id)
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	})

	t.Run("runs against live instance", func(t *testing.T) {
		registry := newTestRegistry(t)
		require.NoError(t, registry.Register(creator("Collect", "A")))
		require.NoError(t, registry.Register(&pipeline.Plugin{
			Name:     "Tag",
			Order:    pipeline.ValidatorOrder,
			Families: []string{"F"},
			Process: func(ctx context.Context, target *pipeline.Target) error {
				target.Instance.SetData("tagged", true)
				return nil
			},
		}))

		_, err := registry.Process(ctx, "Collect", "")
		require.NoError(t, err)
		inst := registry.Context().Instances()[0]

		result, err := registry.Process(ctx, "Tag", inst.ID())
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "A", result.InstanceName)

		v, ok := inst.Data("tagged")
		assert.True(t, ok)
		assert.Equal(t, true, v)
	})
}

func TestRegistry_Repair(t *testing.T) {
	ctx := context.Background()

	t.Run("without capability", func(t *testing.T) {
		registry := newTestRegistry(t)
		require.NoError(t, registry.Register(&pipeline.Plugin{
			Name:  "Validate",
			Order: pipeline.ValidatorOrder,
			Process: func(ctx context.Context, target *pipeline.Target) error {
				return errors.New("fail")
			},
		}))
		_, err := registry.Process(ctx, "Validate", "")
		require.NoError(t, err)

		_, err = registry.Repair(ctx, "Validate", "")
		assert.True(t, errors.IsCapabilityError(err))
	})

	t.Run("without prior failure", func(t *testing.T) {
		registry := newTestRegistry(t)
		broken := &brokenValidator{}
		require.NoError(t, registry.Register(broken.plugin()))

		_, err := registry.Repair(ctx, "ValidateBroken", "")
		assert.True(t, errors.IsCapabilityError(err))
		assert.Zero(t, broken.repaired, "repair body must not run")
	})

	t.Run("after a passing result", func(t *testing.T) {
		registry := newTestRegistry(t)
		broken := &brokenValidator{fixed: true}
		require.NoError(t, registry.Register(broken.plugin()))

		result, err := registry.Process(ctx, "ValidateBroken", "")
		require.NoError(t, err)
		require.True(t, result.Success)

		_, err = registry.Repair(ctx, "ValidateBroken", "")
		assert.True(t, errors.IsCapabilityError(err))
		assert.Zero(t, broken.repaired)
	})

	t.Run("context target", func(t *testing.T) {
		registry := newTestRegistry(t)
		broken := &brokenValidator{}
		require.NoError(t, registry.Register(broken.plugin()))

		result, err := registry.Process(ctx, "ValidateBroken", "")
		require.NoError(t, err)
		require.False(t, result.Success)

		result, err = registry.Repair(ctx, "ValidateBroken", "")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, pipeline.ModeRepair, result.Mode)
		assert.Equal(t, 1, broken.repaired)

		result, err = registry.Process(ctx, "ValidateBroken", "")
		require.NoError(t, err)
		assert.True(t, result.Success)
	})

	t.Run("instance target", func(t *testing.T) {
		registry := newTestRegistry(t)
		broken := &brokenValidator{}
		require.NoError(t, registry.Register(creator("Collect", "A", "B")))
		require.NoError(t, registry.Register(broken.plugin("F")))

		_, err := registry.Process(ctx, "Collect", "")
		require.NoError(t, err)
		instances := registry.Context().Instances()

		result, err := registry.Process(ctx, "ValidateBroken", instances[0].ID())
		require.NoError(t, err)
		require.False(t, result.Success)

		_, err = registry.Repair(ctx, "ValidateBroken", instances[1].ID())
		assert.True(t, errors.IsCapabilityError(err), "B was never processed")

		_, err = registry.Repair(ctx, "ValidateBroken", instances[0].ID())
		assert.NoError(t, err)
	})

	t.Run("begin clears history", func(t *testing.T) {
		registry := newTestRegistry(t)
		broken := &brokenValidator{}
		require.NoError(t, registry.Register(broken.plugin()))

		_, err := registry.Process(ctx, "ValidateBroken", "")
		require.NoError(t, err)

		registry.Begin()
		_, err = registry.Repair(ctx, "ValidateBroken", "")
		assert.True(t, errors.IsCapabilityError(err))
	})
}

// =============================================================================
// Executor Integration
// =============================================================================

func TestRegistry_Execute(t *testing.T) {
	registry := newTestRegistry(t)
	var validated []string
	require.NoError(t, registry.Register(creator("Collect", "A", "B")))
	require.NoError(t, registry.Register(&pipeline.Plugin{
		Name:     "Validate",
		Order:    pipeline.ValidatorOrder,
		Families: []string{"F"},
		Process: func(ctx context.Context, target *pipeline.Target) error {
			validated = append(validated, target.Instance.Name())
			return nil
		},
	}))

	seq := pipeline.Execute(context.Background(), registry.Discover(), registry, registry, registry.Boundary())
	results, err := pipeline.Collect(seq)
	require.NoError(t, err)

	assert.Len(t, results, 3)
	assert.Equal(t, []string{"A", "B"}, validated)
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestRegistry_Concurrency(t *testing.T) {
	t.Run("concurrent registration", func(t *testing.T) {
		registry := newTestRegistry(t)
		var wg sync.WaitGroup
		const workers = 10

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				_ = registry.Register(newPlugin(fmt.Sprintf("plugin%d", id), float64(id)))
			}(i)
		}

		wg.Wait()
		assert.Len(t, registry.Discover(), workers)
	})

	t.Run("reset during reads", func(t *testing.T) {
		registry := newTestRegistry(t)
		var wg sync.WaitGroup

		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					registry.Discover()
					registry.Paths()
					registry.Context().Instances()
				}
			}()
		}

		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					_ = registry.Register(newPlugin(fmt.Sprintf("writer%d-%d", id, j), 0))
					registry.RegisterPath(fmt.Sprintf("/p%d", j))
					if j%5 == 0 {
						registry.Reset()
					}
				}
			}(i)
		}

		wg.Wait()
	})
}
