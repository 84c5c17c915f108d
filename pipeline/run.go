package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/teranos/gauntlet/errors"
	"github.com/teranos/gauntlet/logger"
	"go.uber.org/zap"
)

// Runner executes single plugin bodies against live objects and captures
// the outcome into a Result.
type Runner struct {
	// Boundary is the collection/processing order boundary.
	Boundary float64
	// Logger receives mirrored Records; nil disables mirroring.
	Logger *zap.SugaredLogger
}

// NewRunner creates a Runner for the given phase boundary.
func NewRunner(boundary float64, log *zap.SugaredLogger) *Runner {
	return &Runner{Boundary: boundary, Logger: log}
}

// Run executes plugin against inst (or the Context when inst is nil).
//
// Failures raised by the plugin are captured into the Result and never
// returned. The returned error is reserved for call-level conditions:
// ErrCapability when mode is ModeRepair and the plugin cannot repair,
// ErrAbort when the body asked for the whole run to stop.
func (r *Runner) Run(ctx context.Context, plugin *Plugin, c *Context, inst *Instance, mode Mode) (*Result, error) {
	body := plugin.Process
	if mode == ModeRepair {
		if !plugin.CanRepair() {
			return nil, errors.NewCapabilityError("plugin %q has no repair capability", plugin.ID)
		}
		body = plugin.Repair
	}
	if body == nil {
		return nil, errors.NewInvalidRequestError("plugin %q has no process body", plugin.ID)
	}

	var mirror *zap.SugaredLogger
	if r.Logger != nil {
		mirror = r.Logger.With(logger.FieldPlugin, plugin.ID)
	}
	log := NewLog(mirror)
	target := &Target{Context: c, Instance: inst, Log: log}

	result := &Result{
		PluginID:   plugin.ID,
		PluginName: plugin.Name,
		Phase:      PhaseOf(plugin.Order, r.Boundary),
		Mode:       mode,
	}
	if inst != nil {
		result.InstanceID = inst.ID()
		result.InstanceName = inst.Name()
	}

	start := time.Now()
	unitErr := invoke(ctx, body, target)
	result.Duration = time.Since(start)
	result.Records = log.Records()

	if unitErr != nil {
		if unitErr.abort != nil {
			return nil, unitErr.abort
		}
		result.Error = &unitErr.UnitError
		return result, nil
	}
	result.Success = true
	return result, nil
}

type captured struct {
	UnitError
	abort error
}

// invoke calls body, converting returned errors and panics into a captured
// UnitError.
func invoke(ctx context.Context, body Func, target *Target) (out *captured) {
	defer func() {
		if r := recover(); r != nil {
			out = &captured{UnitError: UnitError{
				Kind:    ErrorKindUnexpected,
				Message: Render(r),
				Trace:   string(debug.Stack()),
			}}
		}
	}()

	err := body(ctx, target)
	if err == nil {
		return nil
	}
	if errors.IsAbort(err) {
		return &captured{UnitError: UnitError{Kind: ErrorKindFailure, Message: err.Error()}, abort: err}
	}
	return &captured{UnitError: UnitError{
		Kind:    ErrorKindFailure,
		Message: err.Error(),
		Trace:   fmt.Sprintf("%+v", err),
	}}
}
