// Package plugin holds the process-wide state a pipeline run is driven
// against: registered plugins, paths and event callbacks, the active
// Context, and the history repair decisions are made from.
//
// A Registry is an explicit value. The RPC layer owns one and passes it
// around; nothing in this package is global.
package plugin

import (
	"context"
	"slices"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/teranos/gauntlet/errors"
	"github.com/teranos/gauntlet/logger"
	"github.com/teranos/gauntlet/pipeline"
	"go.uber.org/zap"
)

type historyKey struct {
	pluginID   string
	instanceID string
}

// Registry manages plugins, paths, callbacks and the active Context.
type Registry struct {
	mu        sync.RWMutex
	plugins   []*pipeline.Plugin
	byID      map[string]*pipeline.Plugin
	paths     []string
	callbacks map[string][]registeredCallback
	nextCB    CallbackID
	context   *pipeline.Context
	failed    map[historyKey]bool

	version string
	runner  *pipeline.Runner
	logger  *zap.SugaredLogger
}

// NewRegistry creates an empty registry. frameworkVersion is checked
// against each plugin's Requires constraint; boundary is the
// collection/processing order boundary.
func NewRegistry(frameworkVersion string, boundary float64, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry{
		byID:      make(map[string]*pipeline.Plugin),
		callbacks: make(map[string][]registeredCallback),
		context:   pipeline.NewContext(),
		failed:    make(map[historyKey]bool),
		version:   frameworkVersion,
		runner:    pipeline.NewRunner(boundary, log),
		logger:    log,
	}
}

// Boundary returns the collection/processing order boundary.
func (r *Registry) Boundary() float64 {
	return r.runner.Boundary
}

// Register adds a plugin. The ID defaults to the Name and the Name to the
// ID; p is only updated once registration succeeds.
// Returns ErrConflict for a duplicate ID and ErrIncompatible when the
// plugin's Requires constraint rejects the framework version.
func (r *Registry) Register(p *pipeline.Plugin) error {
	if p == nil {
		return errors.NewInvalidRequestError("nil plugin")
	}
	id, name := p.ID, p.Name
	if id == "" {
		id = name
	}
	if name == "" {
		name = id
	}
	if id == "" {
		return errors.NewInvalidRequestError("plugin has neither id nor name")
	}
	if p.Process == nil {
		return errors.NewInvalidRequestError("plugin %q has no process body", id)
	}

	if err := r.validateVersion(p); err != nil {
		return errors.Mark(errors.Wrapf(err, "version incompatible for %s", id), errors.ErrIncompatible)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; exists {
		return errors.Wrapf(errors.ErrConflict, "plugin already registered: %s", id)
	}
	p.ID, p.Name = id, name
	r.plugins = append(r.plugins, p)
	r.byID[id] = p

	r.logger.Debugw("Registered plugin", logger.FieldPlugin, p.ID, logger.FieldOrder, p.Order, logger.FieldFamilies, p.Families)
	return nil
}

// Deregister removes a plugin by ID. It reports whether the plugin was registered.
func (r *Registry) Deregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	r.plugins = slices.DeleteFunc(r.plugins, func(p *pipeline.Plugin) bool { return p.ID == id })
	return true
}

// DeregisterAll removes every plugin.
func (r *Registry) DeregisterAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = nil
	r.byID = make(map[string]*pipeline.Plugin)
}

// Plugin looks up a registered plugin by ID.
func (r *Registry) Plugin(id string) (*pipeline.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// RegisterPath records a path for collectors that read from disk.
// Registering the same path twice is a no-op.
func (r *Registry) RegisterPath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.paths, path) {
		r.paths = append(r.paths, path)
	}
}

// DeregisterPath removes a registered path.
func (r *Registry) DeregisterPath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = slices.DeleteFunc(r.paths, func(p string) bool { return p == path })
}

// DeregisterAllPaths removes every registered path.
func (r *Registry) DeregisterAllPaths() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = nil
}

// Paths returns the registered paths in registration order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.paths)
}

// Discover returns the descriptors of all registered plugins, ascending by
// Order with registration order breaking ties.
func (r *Registry) Discover() []pipeline.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]pipeline.Descriptor, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p.Descriptor())
	}
	return pipeline.SortByOrder(out)
}

// Context returns the active Context.
func (r *Registry) Context() *pipeline.Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.context
}

// Targets enumerates the active Context. Registry satisfies
// pipeline.TargetSource.
func (r *Registry) Targets(ctx context.Context) ([]pipeline.TargetRef, error) {
	return r.Context().Targets(ctx)
}

// Reset clears plugins, paths, callbacks, result history and the active
// Context in one step. Readers never observe a partially cleared registry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins = nil
	r.byID = make(map[string]*pipeline.Plugin)
	r.paths = nil
	r.callbacks = make(map[string][]registeredCallback)
	r.context = pipeline.NewContext()
	r.failed = make(map[historyKey]bool)

	r.logger.Debug("Registry reset")
}

// Begin starts a new run: a fresh Context and an empty result history.
// Registered plugins, paths and callbacks are kept.
func (r *Registry) Begin() *pipeline.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.context = pipeline.NewContext()
	r.failed = make(map[historyKey]bool)

	r.logger.Debugw("Began run", logger.FieldContextID, r.context.ID())
	return r.context
}

// Process runs a plugin against an Instance of the active Context, or
// against the Context itself when instanceID is empty.
func (r *Registry) Process(ctx context.Context, pluginID, instanceID string) (*pipeline.Result, error) {
	return r.execute(ctx, pluginID, instanceID, pipeline.ModeProcess)
}

// Repair runs a plugin's repair body. It is allowed only when the plugin
// can repair and its most recent processing Result for the same target
// failed; otherwise it returns ErrCapability without running anything.
// Repair does not change the history.
func (r *Registry) Repair(ctx context.Context, pluginID, instanceID string) (*pipeline.Result, error) {
	return r.execute(ctx, pluginID, instanceID, pipeline.ModeRepair)
}

// Invoke satisfies pipeline.Invoker by running the plugin locally.
func (r *Registry) Invoke(ctx context.Context, plugin pipeline.Descriptor, target pipeline.TargetRef) (*pipeline.Result, error) {
	return r.Process(ctx, plugin.ID, target.InstanceID)
}

func (r *Registry) execute(ctx context.Context, pluginID, instanceID string, mode pipeline.Mode) (*pipeline.Result, error) {
	r.mu.RLock()
	p, ok := r.byID[pluginID]
	c := r.context
	lastFailed := r.failed[historyKey{pluginID, instanceID}]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.NewResolutionError("no plugin with id %q", pluginID)
	}

	var inst *pipeline.Instance
	if instanceID != "" {
		if p.Descriptor().TargetsContext(r.runner.Boundary) {
			return nil, errors.NewInvalidRequestError("plugin %q targets the context, got instance %q", pluginID, instanceID)
		}
		inst, ok = c.Instance(instanceID)
		if !ok {
			return nil, errors.NewResolutionError("no instance with id %q in context %s", instanceID, c.ID())
		}
	}

	if mode == pipeline.ModeRepair {
		if !p.CanRepair() {
			return nil, errors.NewCapabilityError("plugin %q has no repair capability", pluginID)
		}
		if !lastFailed {
			return nil, errors.WithHint(
				errors.NewCapabilityError("plugin %q has no failing result to repair for target %q", pluginID, instanceID),
				"run process first; repair only follows a failed processing result",
			)
		}
	}

	result, err := r.runner.Run(ctx, p, c, inst, mode)
	if err != nil {
		return nil, err
	}

	if mode == pipeline.ModeProcess && result.Phase == pipeline.PhaseProcessing {
		r.mu.Lock()
		if r.context == c {
			r.failed[historyKey{pluginID, instanceID}] = result.Failed()
		}
		r.mu.Unlock()
	}

	r.logger.Debugw("Executed plugin",
		logger.FieldPlugin, pluginID,
		logger.FieldInstance, result.InstanceName,
		logger.FieldMode, string(mode),
		logger.FieldSuccess, result.Success,
		logger.FieldDurationMS, result.Duration.Milliseconds(),
	)
	return result, nil
}

func (r *Registry) validateVersion(p *pipeline.Plugin) error {
	if p.Requires == "" {
		return nil
	}

	current, err := semver.NewVersion(r.version)
	if err != nil {
		return errors.Wrapf(err, "invalid framework version %s", r.version)
	}

	constraint, err := semver.NewConstraint(p.Requires)
	if err != nil {
		return errors.Wrapf(err, "invalid version constraint %s", p.Requires)
	}

	if !constraint.Check(current) {
		return errors.Newf("plugin requires framework %s, but running %s", p.Requires, r.version)
	}
	return nil
}
