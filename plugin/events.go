package plugin

import (
	"context"
	"runtime/debug"

	"github.com/teranos/gauntlet/errors"
	"github.com/teranos/gauntlet/logger"
	"github.com/teranos/gauntlet/pipeline"
)

// Param declares one named argument a callback accepts. Arguments whose
// Kind is an entity kind are resolved to live objects before the callback
// runs; an empty Kind receives the raw value unchanged.
type Param struct {
	Name string
	Kind Kind
}

// Callback is a handler for a named event.
type Callback struct {
	Params []Param
	Fn     func(ctx context.Context, args Args) error
}

// CallbackID identifies a registered callback for deregistration.
type CallbackID uint64

type registeredCallback struct {
	id CallbackID
	cb Callback
}

// Args are the arguments delivered to a callback.
type Args map[string]any

// Instance returns the named argument as a live Instance.
func (a Args) Instance(name string) (*pipeline.Instance, bool) {
	v, ok := a[name].(*pipeline.Instance)
	return v, ok
}

// Context returns the named argument as a live Context.
func (a Args) Context(name string) (*pipeline.Context, bool) {
	v, ok := a[name].(*pipeline.Context)
	return v, ok
}

// Plugin returns the named argument as a registered Plugin.
func (a Args) Plugin(name string) (*pipeline.Plugin, bool) {
	v, ok := a[name].(*pipeline.Plugin)
	return v, ok
}

// String returns the named argument if it is a string.
func (a Args) String(name string) (string, bool) {
	v, ok := a[name].(string)
	return v, ok
}

// RegisterCallback appends cb to the callbacks of event. Callbacks for one
// event run in registration order.
func (r *Registry) RegisterCallback(event string, cb Callback) (CallbackID, error) {
	if cb.Fn == nil {
		return 0, errors.NewInvalidRequestError("callback for %q has no function", event)
	}
	for _, p := range cb.Params {
		if p.Kind != "" && !p.Kind.Valid() {
			return 0, errors.NewInvalidRequestError("callback for %q declares unknown kind %q for %q", event, p.Kind, p.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextCB++
	r.callbacks[event] = append(r.callbacks[event], registeredCallback{id: r.nextCB, cb: cb})
	return r.nextCB, nil
}

// DeregisterCallback removes one callback. It reports whether it was registered.
func (r *Registry) DeregisterCallback(event string, id CallbackID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.callbacks[event]
	for i, rc := range list {
		if rc.id == id {
			r.callbacks[event] = append(list[:i:i], list[i+1:]...)
			if len(r.callbacks[event]) == 0 {
				delete(r.callbacks, event)
			}
			return true
		}
	}
	return false
}

// DeregisterAllCallbacks removes every callback for every event.
func (r *Registry) DeregisterAllCallbacks() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = make(map[string][]registeredCallback)
}

// Callbacks returns the number of callbacks registered for event.
func (r *Registry) Callbacks(event string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks[event])
}

// Emit invokes every callback registered for event, in registration order,
// on the calling goroutine.
//
// Arguments for parameters declared with an entity kind are resolved first,
// for all callbacks, before any of them runs. A string value is treated as
// an identifier; a value that is already a live object of the right type is
// kept. A context parameter with no value receives the active Context.
// Any resolution failure returns ErrResolution and no callback runs.
//
// The first callback error stops the remaining callbacks and is returned
// marked with ErrCallback.
func (r *Registry) Emit(ctx context.Context, event string, args map[string]any) error {
	r.mu.RLock()
	registered := append([]registeredCallback(nil), r.callbacks[event]...)
	resolved := make([]Args, len(registered))
	var resolveErr error
	for i, rc := range registered {
		resolved[i], resolveErr = r.resolveArgsLocked(rc.cb.Params, args)
		if resolveErr != nil {
			break
		}
	}
	r.mu.RUnlock()

	if resolveErr != nil {
		return errors.Wrapf(resolveErr, "emit %q", event)
	}

	for i, rc := range registered {
		if err := callSafely(ctx, rc.cb.Fn, resolved[i]); err != nil {
			r.logger.Debugw("Callback failed", logger.FieldEvent, event, logger.FieldCallback, int(rc.id), logger.FieldError, err)
			return errors.Mark(errors.Wrapf(err, "callback %d for event %q", rc.id, event), errors.ErrCallback)
		}
	}
	return nil
}

func (r *Registry) resolveArgsLocked(params []Param, raw map[string]any) (Args, error) {
	out := make(Args, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	for _, p := range params {
		if p.Kind == "" {
			continue
		}
		v, present := raw[p.Name]
		if live, ok := liveOfKind(v, p.Kind); ok {
			out[p.Name] = live
			continue
		}

		var id string
		switch x := v.(type) {
		case string:
			id = x
		case nil:
			if p.Kind != KindContext {
				if present {
					return nil, errors.NewResolutionError("argument %q: empty %s identifier", p.Name, p.Kind)
				}
				continue
			}
		default:
			return nil, errors.NewResolutionError("argument %q: %T is not a %s identifier", p.Name, v, p.Kind)
		}

		obj, err := r.resolveLocked(Ref{Kind: p.Kind, ID: id})
		if err != nil {
			return nil, errors.Wrapf(err, "argument %q", p.Name)
		}
		out[p.Name] = obj
	}
	return out, nil
}

func liveOfKind(v any, kind Kind) (any, bool) {
	switch kind {
	case KindInstance:
		x, ok := v.(*pipeline.Instance)
		return x, ok && x != nil
	case KindContext:
		x, ok := v.(*pipeline.Context)
		return x, ok && x != nil
	case KindPlugin:
		x, ok := v.(*pipeline.Plugin)
		return x, ok && x != nil
	}
	return nil, false
}

func callSafely(ctx context.Context, fn func(context.Context, Args) error, args Args) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WithDetail(
				errors.Newf("callback panicked: %s", pipeline.Render(r)),
				string(debug.Stack()),
			)
		}
	}()
	return fn(ctx, args)
}
