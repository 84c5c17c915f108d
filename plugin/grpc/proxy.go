package grpc

import (
	"context"
	"time"

	"github.com/teranos/gauntlet/errors"
	"github.com/teranos/gauntlet/logger"
	"github.com/teranos/gauntlet/pipeline"
	"github.com/teranos/gauntlet/plugin"
	"github.com/teranos/gauntlet/plugin/grpc/protocol"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Proxy is the client side of the pipeline service. Its methods mirror the
// local Registry API; live objects come back as protocol snapshots, which
// are never mutated remotely and must be re-fetched to observe changes.
//
// A Proxy satisfies pipeline.Invoker and pipeline.TargetSource. One call is
// outstanding at a time.
type Proxy struct {
	conn     *grpc.ClientConn
	client   protocol.PipelineServiceClient
	addr     string
	timeout  time.Duration
	token    string
	boundary float64
	logger   *zap.SugaredLogger
}

// ProxyOption configures a Proxy.
type ProxyOption func(*Proxy)

// WithCallTimeout bounds every call. Zero disables the bound.
func WithCallTimeout(d time.Duration) ProxyOption {
	return func(p *Proxy) { p.timeout = d }
}

// WithToken sends token with every call.
func WithToken(token string) ProxyOption {
	return func(p *Proxy) { p.token = token }
}

// WithBoundary sets the collection/processing boundary used by Collect and Publish.
func WithBoundary(boundary float64) ProxyOption {
	return func(p *Proxy) { p.boundary = boundary }
}

// WithLogger sets the proxy logger.
func WithLogger(log *zap.SugaredLogger) ProxyOption {
	return func(p *Proxy) { p.logger = log }
}

// NewProxy creates a proxy for the service at addr. The connection is
// established lazily on the first call.
func NewProxy(addr string, opts ...ProxyOption) (*Proxy, error) {
	p := &Proxy{
		addr:     addr,
		timeout:  30 * time.Second,
		boundary: pipeline.DefaultCollectionBoundary,
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(p)
	}

	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if p.token != "" {
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(tokenClientInterceptor(p.token)))
	}

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to create client for %s", addr), errors.ErrTransport)
	}
	p.conn = conn
	p.client = protocol.NewPipelineServiceClient(conn)
	return p, nil
}

// Close closes the connection.
func (p *Proxy) Close() error {
	return p.conn.Close()
}

// Addr returns the service address.
func (p *Proxy) Addr() string {
	return p.addr
}

func (p *Proxy) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}

func call[Req, Resp any](ctx context.Context, p *Proxy, fn func(context.Context, *Req, ...grpc.CallOption) (*Resp, error), req *Req) (*Resp, error) {
	ctx, cancel := p.callContext(ctx)
	defer cancel()

	resp, err := fn(ctx, req)
	if err != nil {
		return nil, fromStatus(err)
	}
	return resp, nil
}

// Ping returns the liveness message.
func (p *Proxy) Ping(ctx context.Context) (string, error) {
	resp, err := call(ctx, p, p.client.Ping, &protocol.Empty{})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Reset clears the remote registry and Context.
func (p *Proxy) Reset(ctx context.Context) error {
	_, err := call(ctx, p, p.client.Reset, &protocol.Empty{})
	return err
}

// Begin starts a fresh remote run and returns its Context id.
func (p *Proxy) Begin(ctx context.Context) (string, error) {
	resp, err := call(ctx, p, p.client.Begin, &protocol.Empty{})
	if err != nil {
		return "", err
	}
	return resp.ContextID, nil
}

// Discover returns the remote plugins in execution order.
func (p *Proxy) Discover(ctx context.Context) ([]pipeline.Descriptor, error) {
	resp, err := call(ctx, p, p.client.Discover, &protocol.Empty{})
	if err != nil {
		return nil, err
	}
	for _, plug := range resp.Plugins {
		if err := protocol.CheckKind(plug.Kind, plugin.KindPlugin); err != nil {
			return nil, err
		}
	}
	return resp.Descriptors(), nil
}

// Context returns a snapshot of the remote Context.
func (p *Proxy) Context(ctx context.Context) (*protocol.Context, error) {
	resp, err := call(ctx, p, p.client.Context, &protocol.Empty{})
	if err != nil {
		return nil, err
	}
	if err := protocol.CheckKind(resp.Kind, plugin.KindContext); err != nil {
		return nil, err
	}
	for _, inst := range resp.Instances {
		if err := protocol.CheckKind(inst.Kind, plugin.KindInstance); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// Process runs a plugin remotely. An empty instanceID targets the Context.
func (p *Proxy) Process(ctx context.Context, pluginID, instanceID string) (*pipeline.Result, error) {
	return p.result(call(ctx, p, p.client.Process, &protocol.TargetRequest{PluginID: pluginID, InstanceID: instanceID}))
}

// Repair runs a plugin's repair body remotely.
func (p *Proxy) Repair(ctx context.Context, pluginID, instanceID string) (*pipeline.Result, error) {
	return p.result(call(ctx, p, p.client.Repair, &protocol.TargetRequest{PluginID: pluginID, InstanceID: instanceID}))
}

func (p *Proxy) result(resp *protocol.Result, err error) (*pipeline.Result, error) {
	if err != nil {
		return nil, err
	}
	if err := protocol.CheckKind(resp.Kind, protocol.KindResult); err != nil {
		return nil, err
	}
	return resp.ToPipeline(), nil
}

// Stats returns the remote request counters.
func (p *Proxy) Stats(ctx context.Context) (*protocol.Stats, error) {
	return call(ctx, p, p.client.Stats, &protocol.Empty{})
}

// Emit fires a remote event. Live objects and snapshots among args are sent
// as their identifiers; everything else is flattened to primitives.
func (p *Proxy) Emit(ctx context.Context, event string, args map[string]any) error {
	req := &protocol.EmitRequest{Event: event}
	if len(args) > 0 {
		req.Args = protocol.FlattenMap(args)
	}
	_, err := call(ctx, p, p.client.Emit, req)
	return err
}

// Invoke satisfies pipeline.Invoker.
func (p *Proxy) Invoke(ctx context.Context, d pipeline.Descriptor, target pipeline.TargetRef) (*pipeline.Result, error) {
	return p.Process(ctx, d.ID, target.InstanceID)
}

// Targets satisfies pipeline.TargetSource by fetching a fresh snapshot.
func (p *Proxy) Targets(ctx context.Context) ([]pipeline.TargetRef, error) {
	c, err := p.Context(ctx)
	if err != nil {
		return nil, err
	}
	return c.Targets(), nil
}

// Collect starts a fresh run and executes the collection-phase plugins.
func (p *Proxy) Collect(ctx context.Context) ([]*pipeline.Result, error) {
	if _, err := p.Begin(ctx); err != nil {
		return nil, err
	}
	plugins, err := p.Discover(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.Collect(pipeline.Execute(ctx, p.phase(plugins, pipeline.PhaseCollection), p, p, p.boundary))
}

// Publish executes the processing-phase plugins against the current run,
// stopping after the first plugin that fails.
func (p *Proxy) Publish(ctx context.Context) ([]*pipeline.Result, error) {
	plugins, err := p.Discover(ctx)
	if err != nil {
		return nil, err
	}
	results, err := pipeline.Collect(pipeline.Execute(ctx, p.phase(plugins, pipeline.PhaseProcessing), p, p, p.boundary))
	for _, r := range results {
		if r.Failed() {
			p.logger.Infow("Publish stopped", logger.FieldPlugin, r.PluginID, logger.FieldInstance, r.InstanceName, logger.FieldError, r.Error)
			break
		}
	}
	return results, err
}

// RepairFailed repairs every failed processing Result whose plugin can repair.
func (p *Proxy) RepairFailed(ctx context.Context, results []*pipeline.Result) ([]*pipeline.Result, error) {
	plugins, err := p.Discover(ctx)
	if err != nil {
		return nil, err
	}
	canRepair := make(map[string]bool, len(plugins))
	for _, d := range plugins {
		canRepair[d.ID] = d.CanRepair
	}

	var repaired []*pipeline.Result
	for _, r := range results {
		if !r.Failed() || r.Phase != pipeline.PhaseProcessing || !canRepair[r.PluginID] {
			continue
		}
		result, err := p.Repair(ctx, r.PluginID, r.InstanceID)
		if err != nil {
			return repaired, err
		}
		repaired = append(repaired, result)
	}
	return repaired, nil
}

func (p *Proxy) phase(plugins []pipeline.Descriptor, phase pipeline.Phase) []pipeline.Descriptor {
	var out []pipeline.Descriptor
	for _, d := range plugins {
		if d.Phase(p.boundary) == phase {
			out = append(out, d)
		}
	}
	return out
}
