package pipeline

import (
	"context"
	"iter"

	"github.com/teranos/gauntlet/errors"
)

// Invoker runs one plugin against one target and returns its Result.
// A returned error is call-level (abort, transport, resolution); unit
// failures come back as a failed Result.
type Invoker interface {
	Invoke(ctx context.Context, plugin Descriptor, target TargetRef) (*Result, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, plugin Descriptor, target TargetRef) (*Result, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, plugin Descriptor, target TargetRef) (*Result, error) {
	return f(ctx, plugin, target)
}

// TargetSource enumerates the Instances of the active Context in order.
// It is consulted afresh for every per-instance plugin, so Instances added
// by earlier plugins are visible to later ones.
type TargetSource interface {
	Targets(ctx context.Context) ([]TargetRef, error)
}

// Execute returns a lazy sequence of Results, one per (plugin, target) pair.
//
// Plugins run ascending by Order (ties keep the given order). Collection
// plugins and plugins without families run once against the Context; the
// others run once per matching Instance in Context order. Each Result is
// yielded as soon as it is produced.
//
// After a processing-phase plugin has visited its targets, the sequence
// ends if any of them failed. Collection failures never end it.
//
// A call-level error from the invoker or the source, or cancellation of
// ctx between units, ends the sequence with a final (nil, err) pair.
// Cancellation and ErrAbort both satisfy errors.Is(err, errors.ErrAbort).
//
// Each range over the returned sequence starts a new run from the first
// plugin.
func Execute(ctx context.Context, plugins []Descriptor, source TargetSource, invoker Invoker, boundary float64) iter.Seq2[*Result, error] {
	ordered := SortByOrder(plugins)

	return func(yield func(*Result, error) bool) {
		for _, plugin := range ordered {
			targets, err := targetsFor(ctx, plugin, source, boundary)
			if err != nil {
				yield(nil, err)
				return
			}

			failed := false
			for _, target := range targets {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(nil, errors.Mark(errors.Wrap(ctxErr, "run cancelled"), errors.ErrAbort))
					return
				}

				result, err := invoker.Invoke(ctx, plugin, target)
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(result, nil) {
					return
				}
				if result.Failed() && plugin.Phase(boundary) == PhaseProcessing {
					failed = true
				}
			}

			if failed {
				return
			}
		}
	}
}

func targetsFor(ctx context.Context, plugin Descriptor, source TargetSource, boundary float64) ([]TargetRef, error) {
	if plugin.TargetsContext(boundary) {
		return []TargetRef{ContextTarget}, nil
	}

	all, err := source.Targets(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to enumerate targets for %s", plugin.ID)
	}

	var matched []TargetRef
	for _, target := range all {
		if plugin.Matches(target) {
			matched = append(matched, target)
		}
	}
	return matched, nil
}

// Collect drains seq into a slice, returning the Results seen before the
// first error together with that error.
func Collect(seq iter.Seq2[*Result, error]) ([]*Result, error) {
	var results []*Result
	for result, err := range seq {
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}
