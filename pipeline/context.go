// Package pipeline holds the data model a plugin run operates on and the
// ordered executor that drives plugins against it.
//
// A run owns exactly one Context. Collection-phase plugins populate it with
// Instances; processing-phase plugins then act on the Context as a whole or
// on each Instance whose family they support. Results are produced one per
// (plugin, target) pair, in plugin order and then Context order.
//
// Nothing here knows about the network. The same Execute loop runs against
// a local Registry or against a remote Proxy; both satisfy Invoker and
// TargetSource.
package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Context is the shared, ordered collection of Instances for one run plus
// run-level data. It is safe for concurrent use.
type Context struct {
	mu        sync.RWMutex
	id        string
	instances []*Instance
	byID      map[string]*Instance
	data      map[string]any
}

// NewContext creates an empty Context with a fresh identifier.
func NewContext() *Context {
	return &Context{
		id:   uuid.NewString(),
		byID: make(map[string]*Instance),
		data: make(map[string]any),
	}
}

// ID returns the Context identifier.
func (c *Context) ID() string {
	return c.id
}

// CreateInstance appends a new Instance to the Context and returns it.
func (c *Context) CreateInstance(name string) *Instance {
	inst := &Instance{
		id:      uuid.NewString(),
		name:    name,
		data:    make(map[string]any),
		context: c,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances = append(c.instances, inst)
	c.byID[inst.id] = inst
	return inst
}

// Instances returns the Instances in insertion order.
func (c *Context) Instances() []*Instance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Instance, len(c.instances))
	copy(out, c.instances)
	return out
}

// Instance looks up an Instance by identifier.
func (c *Context) Instance(id string) (*Instance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.byID[id]
	return inst, ok
}

// Len returns the number of Instances.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.instances)
}

// Data returns a run-level value.
func (c *Context) Data(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

// SetData stores a run-level value.
func (c *Context) SetData(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// DataMap returns a shallow copy of the run-level data.
func (c *Context) DataMap() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

// Targets lists every Instance as a TargetRef, in Context order.
func (c *Context) Targets(ctx context.Context) ([]TargetRef, error) {
	instances := c.Instances()
	refs := make([]TargetRef, 0, len(instances))
	for _, inst := range instances {
		refs = append(refs, inst.Ref())
	}
	return refs, nil
}

// Instance is one unit of work inside a Context, classified by family.
type Instance struct {
	mu      sync.RWMutex
	id      string
	name    string
	data    map[string]any
	context *Context
}

// ID returns the Instance identifier, stable for the lifetime of its Context.
func (i *Instance) ID() string {
	return i.id
}

// Name returns the human-readable name.
func (i *Instance) Name() string {
	return i.name
}

// Context returns the owning Context.
func (i *Instance) Context() *Context {
	return i.context
}

// Data returns a value from the Instance data.
func (i *Instance) Data(key string) (any, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	v, ok := i.data[key]
	return v, ok
}

// SetData stores a value in the Instance data.
func (i *Instance) SetData(key string, value any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.data[key] = value
}

// DataMap returns a shallow copy of the Instance data.
func (i *Instance) DataMap() map[string]any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[string]any, len(i.data))
	for k, v := range i.data {
		out[k] = v
	}
	return out
}

// Family returns the primary family, or "" when none is set.
func (i *Instance) Family() string {
	v, _ := i.Data("family")
	family, _ := v.(string)
	return family
}

// Families returns the primary family followed by any extra families
// listed under the "families" key, without duplicates.
func (i *Instance) Families() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(f string) {
		if f != "" && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}

	add(i.Family())
	v, _ := i.Data("families")
	switch extra := v.(type) {
	case []string:
		for _, f := range extra {
			add(f)
		}
	case []any:
		for _, f := range extra {
			if s, ok := f.(string); ok {
				add(s)
			}
		}
	}
	return out
}

// Ref returns the enumeration view of the Instance used by the executor.
func (i *Instance) Ref() TargetRef {
	return TargetRef{
		InstanceID: i.id,
		Name:       i.name,
		Families:   i.Families(),
	}
}
