package plugin

import (
	"github.com/teranos/gauntlet/errors"
	"github.com/teranos/gauntlet/pipeline"
)

// Kind is the entity kind an identifier refers to.
type Kind string

const (
	KindInstance Kind = "instance"
	KindContext  Kind = "context"
	KindPlugin   Kind = "plugin"
)

// Valid reports whether k is a known entity kind.
func (k Kind) Valid() bool {
	switch k {
	case KindInstance, KindContext, KindPlugin:
		return true
	}
	return false
}

// Ref is a typed identifier received at the boundary.
type Ref struct {
	Kind Kind
	ID   string
}

// Resolve maps ref to the live object it names in the active Context or the
// plugin set: *pipeline.Instance, *pipeline.Context or *pipeline.Plugin.
// A context ref with an empty ID names the active Context.
// Unknown identifiers return ErrResolution.
func (r *Registry) Resolve(ref Ref) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(ref)
}

func (r *Registry) resolveLocked(ref Ref) (any, error) {
	switch ref.Kind {
	case KindInstance:
		if inst, ok := r.context.Instance(ref.ID); ok {
			return inst, nil
		}
		return nil, errors.NewResolutionError("no instance with id %q in context %s", ref.ID, r.context.ID())

	case KindContext:
		if ref.ID == "" || ref.ID == r.context.ID() {
			return r.context, nil
		}
		return nil, errors.WithHint(
			errors.NewResolutionError("context %q is not the active context", ref.ID),
			"contexts are superseded by begin and reset",
		)

	case KindPlugin:
		if p, ok := r.byID[ref.ID]; ok {
			return p, nil
		}
		return nil, errors.NewResolutionError("no plugin with id %q", ref.ID)
	}
	return nil, errors.NewResolutionError("unknown entity kind %q", ref.Kind)
}

// ResolveInstance resolves an Instance identifier in the active Context.
func (r *Registry) ResolveInstance(id string) (*pipeline.Instance, error) {
	v, err := r.Resolve(Ref{Kind: KindInstance, ID: id})
	if err != nil {
		return nil, err
	}
	return v.(*pipeline.Instance), nil
}
