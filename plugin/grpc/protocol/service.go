package protocol

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "gauntlet.pipeline.v1.Pipeline"

// Method names.
const (
	MethodPing     = "Ping"
	MethodReset    = "Reset"
	MethodBegin    = "Begin"
	MethodDiscover = "Discover"
	MethodContext  = "Context"
	MethodProcess  = "Process"
	MethodRepair   = "Repair"
	MethodStats    = "Stats"
	MethodEmit     = "Emit"
)

// FullMethod returns the gRPC method path for a method name.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// PipelineServiceServer is the server API for the pipeline service.
type PipelineServiceServer interface {
	Ping(context.Context, *Empty) (*PingResponse, error)
	Reset(context.Context, *Empty) (*Empty, error)
	Begin(context.Context, *Empty) (*BeginResponse, error)
	Discover(context.Context, *Empty) (*DiscoverResponse, error)
	Context(context.Context, *Empty) (*Context, error)
	Process(context.Context, *TargetRequest) (*Result, error)
	Repair(context.Context, *TargetRequest) (*Result, error)
	Stats(context.Context, *Empty) (*Stats, error)
	Emit(context.Context, *EmitRequest) (*Empty, error)
}

// UnimplementedPipelineServiceServer can be embedded to have forward
// compatible implementations.
type UnimplementedPipelineServiceServer struct{}

func (UnimplementedPipelineServiceServer) Ping(context.Context, *Empty) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}
func (UnimplementedPipelineServiceServer) Reset(context.Context, *Empty) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Reset not implemented")
}
func (UnimplementedPipelineServiceServer) Begin(context.Context, *Empty) (*BeginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Begin not implemented")
}
func (UnimplementedPipelineServiceServer) Discover(context.Context, *Empty) (*DiscoverResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Discover not implemented")
}
func (UnimplementedPipelineServiceServer) Context(context.Context, *Empty) (*Context, error) {
	return nil, status.Error(codes.Unimplemented, "method Context not implemented")
}
func (UnimplementedPipelineServiceServer) Process(context.Context, *TargetRequest) (*Result, error) {
	return nil, status.Error(codes.Unimplemented, "method Process not implemented")
}
func (UnimplementedPipelineServiceServer) Repair(context.Context, *TargetRequest) (*Result, error) {
	return nil, status.Error(codes.Unimplemented, "method Repair not implemented")
}
func (UnimplementedPipelineServiceServer) Stats(context.Context, *Empty) (*Stats, error) {
	return nil, status.Error(codes.Unimplemented, "method Stats not implemented")
}
func (UnimplementedPipelineServiceServer) Emit(context.Context, *EmitRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Emit not implemented")
}

// unary builds the method descriptor for one request/response call.
func unary[Req, Resp any](method string, call func(PipelineServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(PipelineServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc is the grpc.ServiceDesc for the pipeline service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PipelineServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodPing, PipelineServiceServer.Ping),
		unary(MethodReset, PipelineServiceServer.Reset),
		unary(MethodBegin, PipelineServiceServer.Begin),
		unary(MethodDiscover, PipelineServiceServer.Discover),
		unary(MethodContext, PipelineServiceServer.Context),
		unary(MethodProcess, PipelineServiceServer.Process),
		unary(MethodRepair, PipelineServiceServer.Repair),
		unary(MethodStats, PipelineServiceServer.Stats),
		unary(MethodEmit, PipelineServiceServer.Emit),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gauntlet/pipeline/v1/pipeline.json",
}

// RegisterPipelineServiceServer registers srv on s.
func RegisterPipelineServiceServer(s grpc.ServiceRegistrar, srv PipelineServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// PipelineServiceClient is the client API for the pipeline service.
type PipelineServiceClient interface {
	Ping(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*PingResponse, error)
	Reset(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error)
	Begin(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*BeginResponse, error)
	Discover(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*DiscoverResponse, error)
	Context(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Context, error)
	Process(ctx context.Context, in *TargetRequest, opts ...grpc.CallOption) (*Result, error)
	Repair(ctx context.Context, in *TargetRequest, opts ...grpc.CallOption) (*Result, error)
	Stats(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Stats, error)
	Emit(ctx context.Context, in *EmitRequest, opts ...grpc.CallOption) (*Empty, error)
}

type pipelineServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPipelineServiceClient creates a client that sends every call with the
// JSON codec.
func NewPipelineServiceClient(cc grpc.ClientConnInterface) PipelineServiceClient {
	return &pipelineServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Codec)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pipelineServiceClient) Ping(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, MethodPing, in, opts)
}

func (c *pipelineServiceClient) Reset(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodReset, in, opts)
}

func (c *pipelineServiceClient) Begin(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*BeginResponse, error) {
	return invoke[BeginResponse](ctx, c.cc, MethodBegin, in, opts)
}

func (c *pipelineServiceClient) Discover(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*DiscoverResponse, error) {
	return invoke[DiscoverResponse](ctx, c.cc, MethodDiscover, in, opts)
}

func (c *pipelineServiceClient) Context(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Context, error) {
	return invoke[Context](ctx, c.cc, MethodContext, in, opts)
}

func (c *pipelineServiceClient) Process(ctx context.Context, in *TargetRequest, opts ...grpc.CallOption) (*Result, error) {
	return invoke[Result](ctx, c.cc, MethodProcess, in, opts)
}

func (c *pipelineServiceClient) Repair(ctx context.Context, in *TargetRequest, opts ...grpc.CallOption) (*Result, error) {
	return invoke[Result](ctx, c.cc, MethodRepair, in, opts)
}

func (c *pipelineServiceClient) Stats(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Stats, error) {
	return invoke[Stats](ctx, c.cc, MethodStats, in, opts)
}

func (c *pipelineServiceClient) Emit(ctx context.Context, in *EmitRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodEmit, in, opts)
}
