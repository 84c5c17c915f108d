package pipeline

import (
	"context"
	"slices"
	"sort"
)

// Func is the body of a plugin. It receives the target it is run against;
// returning an error marks the Result as a failure.
type Func func(ctx context.Context, target *Target) error

// Target is what a plugin body sees for one execution.
type Target struct {
	// Context is the active run; always set.
	Context *Context
	// Instance is the Instance being processed, nil when the plugin targets the Context.
	Instance *Instance
	// Log collects Records for the Result.
	Log *Log
}

// Plugin is a unit of pipeline logic.
//
// Repair capability is structural: a plugin can repair exactly when Repair
// is non-nil.
type Plugin struct {
	// ID is unique within a Registry. Defaults to Name when empty.
	ID string
	// Name is the human-readable label
	Name string
	// Order determines phase and sequencing; lower runs first.
	Order float64
	// Families restricts processing-phase plugins to matching Instances.
	// Empty means the plugin targets the whole Context. "*" matches every Instance.
	Families []string
	// Requires is an optional semver constraint on the framework version.
	Requires string
	// Process is always required.
	Process Func
	// Repair is optional.
	Repair Func
}

// CanRepair reports whether the plugin declares repair capability.
func (p *Plugin) CanRepair() bool {
	return p.Repair != nil
}

// Descriptor returns the boundary-safe description of the plugin.
func (p *Plugin) Descriptor() Descriptor {
	return Descriptor{
		ID:        p.ID,
		Name:      p.Name,
		Order:     p.Order,
		Families:  slices.Clone(p.Families),
		Requires:  p.Requires,
		CanRepair: p.CanRepair(),
	}
}

// Descriptor is the passive description of a plugin: everything the
// executor needs to sequence it, none of its behaviour.
type Descriptor struct {
	ID        string
	Name      string
	Order     float64
	Families  []string
	Requires  string
	CanRepair bool
}

// Phase returns the phase of the plugin for the given boundary.
func (d Descriptor) Phase(boundary float64) Phase {
	return PhaseOf(d.Order, boundary)
}

// TargetsContext reports whether the plugin runs once against the whole
// Context rather than once per matching Instance.
func (d Descriptor) TargetsContext(boundary float64) bool {
	return d.Phase(boundary) == PhaseCollection || len(d.Families) == 0
}

// Matches reports whether the plugin supports any of the target's families.
func (d Descriptor) Matches(target TargetRef) bool {
	for _, family := range d.Families {
		if family == "*" {
			return true
		}
		if slices.Contains(target.Families, family) {
			return true
		}
	}
	return false
}

// TargetRef identifies an execution target without holding it. The zero
// value is the Context.
type TargetRef struct {
	InstanceID string
	Name       string
	Families   []string
}

// ContextTarget is the TargetRef for the whole Context.
var ContextTarget = TargetRef{}

// IsContext reports whether the ref denotes the Context itself.
func (t TargetRef) IsContext() bool {
	return t.InstanceID == ""
}

// SortByOrder returns a copy of plugins sorted ascending by Order,
// keeping the given order for ties.
func SortByOrder(plugins []Descriptor) []Descriptor {
	out := slices.Clone(plugins)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}
