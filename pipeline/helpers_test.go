package pipeline

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"
)

// localInvoker runs plugins in-process against a single Context.
type localInvoker struct {
	runner  *Runner
	context *Context
	plugins map[string]*Plugin
	calls   []string
}

func newLocalInvoker(t *testing.T, c *Context, plugins ...*Plugin) *localInvoker {
	t.Helper()
	inv := &localInvoker{
		runner:  NewRunner(DefaultCollectionBoundary, zaptest.NewLogger(t).Sugar()),
		context: c,
		plugins: make(map[string]*Plugin),
	}
	for _, p := range plugins {
		if p.ID == "" {
			p.ID = p.Name
		}
		inv.plugins[p.ID] = p
	}
	return inv
}

func (l *localInvoker) Invoke(ctx context.Context, d Descriptor, target TargetRef) (*Result, error) {
	var inst *Instance
	if !target.IsContext() {
		inst, _ = l.context.Instance(target.InstanceID)
	}
	l.calls = append(l.calls, d.ID+"/"+target.Name)
	return l.runner.Run(ctx, l.plugins[d.ID], l.context, inst, ModeProcess)
}

func descriptorsOf(plugins ...*Plugin) []Descriptor {
	out := make([]Descriptor, 0, len(plugins))
	for _, p := range plugins {
		if p.ID == "" {
			p.ID = p.Name
		}
		out = append(out, p.Descriptor())
	}
	return out
}
