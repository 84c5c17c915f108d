// Package grpc exposes a plugin Registry over gRPC and provides the Proxy
// that drives it from another process.
//
// The serving side converts every live object to a protocol snapshot before
// it leaves the process and resolves identifiers back to live objects before
// any plugin or callback sees them. The Proxy satisfies the executor's
// Invoker and TargetSource, so pipeline.Execute runs unchanged against a
// remote Registry.
package grpc

import (
	"context"
	"sync"

	"github.com/teranos/gauntlet/errors"
	"github.com/teranos/gauntlet/logger"
	"github.com/teranos/gauntlet/plugin"
	"github.com/teranos/gauntlet/plugin/grpc/protocol"
	"go.uber.org/zap"
)

// PingMessage is the liveness reply.
const PingMessage = "pong"

// PipelineServer serves a Registry over the pipeline protocol.
type PipelineServer struct {
	protocol.UnimplementedPipelineServiceServer

	registry *plugin.Registry
	stats    *Stats
	logger   *zap.SugaredLogger

	// execMu serializes calls that run plugin or callback code, so no two
	// units ever touch the Context at once.
	execMu sync.Mutex
}

// NewPipelineServer creates a server for registry.
func NewPipelineServer(registry *plugin.Registry, stats *Stats, log *zap.SugaredLogger) *PipelineServer {
	return &PipelineServer{
		registry: registry,
		stats:    stats,
		logger:   log,
	}
}

// Ping reports liveness.
func (s *PipelineServer) Ping(ctx context.Context, _ *protocol.Empty) (*protocol.PingResponse, error) {
	return &protocol.PingResponse{Message: PingMessage}, nil
}

// Reset clears the registry and the active Context.
func (s *PipelineServer) Reset(ctx context.Context, _ *protocol.Empty) (*protocol.Empty, error) {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	s.registry.Reset()
	s.logger.Infow("Registry reset")
	return &protocol.Empty{}, nil
}

// Begin starts a fresh run, keeping registrations.
func (s *PipelineServer) Begin(ctx context.Context, _ *protocol.Empty) (*protocol.BeginResponse, error) {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	c := s.registry.Begin()
	s.logger.Infow("Run started", logger.FieldContextID, c.ID())
	return &protocol.BeginResponse{ContextID: c.ID()}, nil
}

// Discover lists the registered plugins in execution order.
func (s *PipelineServer) Discover(ctx context.Context, _ *protocol.Empty) (*protocol.DiscoverResponse, error) {
	descriptors := s.registry.Discover()
	resp := &protocol.DiscoverResponse{Plugins: make([]protocol.Plugin, 0, len(descriptors))}
	for _, d := range descriptors {
		resp.Plugins = append(resp.Plugins, protocol.PluginFromDescriptor(d))
	}
	return resp, nil
}

// Context snapshots the active Context.
func (s *PipelineServer) Context(ctx context.Context, _ *protocol.Empty) (*protocol.Context, error) {
	return protocol.ContextFromLive(s.registry.Context()), nil
}

// Process runs one plugin against one target.
func (s *PipelineServer) Process(ctx context.Context, req *protocol.TargetRequest) (*protocol.Result, error) {
	if req.PluginID == "" {
		return nil, errors.NewInvalidRequestError("pluginId is required")
	}

	s.execMu.Lock()
	defer s.execMu.Unlock()

	result, err := s.registry.Process(ctx, req.PluginID, req.InstanceID)
	if err != nil {
		return nil, err
	}
	return protocol.ResultFromLive(result), nil
}

// Repair runs one plugin's repair body against a target whose last
// processing Result failed.
func (s *PipelineServer) Repair(ctx context.Context, req *protocol.TargetRequest) (*protocol.Result, error) {
	if req.PluginID == "" {
		return nil, errors.NewInvalidRequestError("pluginId is required")
	}

	s.execMu.Lock()
	defer s.execMu.Unlock()

	result, err := s.registry.Repair(ctx, req.PluginID, req.InstanceID)
	if err != nil {
		return nil, err
	}
	return protocol.ResultFromLive(result), nil
}

// Stats reports request counters.
func (s *PipelineServer) Stats(ctx context.Context, _ *protocol.Empty) (*protocol.Stats, error) {
	return s.stats.Snapshot(), nil
}

// Emit fires an event, resolving entity identifiers first.
func (s *PipelineServer) Emit(ctx context.Context, req *protocol.EmitRequest) (*protocol.Empty, error) {
	if req.Event == "" {
		return nil, errors.NewInvalidRequestError("event name is required")
	}

	s.execMu.Lock()
	defer s.execMu.Unlock()

	if err := s.registry.Emit(ctx, req.Event, req.Args); err != nil {
		return nil, err
	}
	return &protocol.Empty{}, nil
}
