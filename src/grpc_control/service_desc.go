package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// The control plane uses well-known message types only, so the service
// descriptor is registered by hand instead of being generated.

const ServiceName = "replay.v1.ReplayControl"

// ReplayControlServer is the server API for the replay control service.
type ReplayControlServer interface {
	ListSessions(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterReplayControlServer(s grpc.ServiceRegistrar, srv ReplayControlServer) {
	s.RegisterService(&ReplayControlServiceDesc, srv)
}

// -----------------------------------------------------------------------------

func listSessionsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplayControlServer).ListSessions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ListSessions"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReplayControlServer).ListSessions(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getSessionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplayControlServer).GetSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetSession"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReplayControlServer).GetSession(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func stopSessionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplayControlServer).StopSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/StopSession"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReplayControlServer).StopSession(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ReplayControlServiceDesc is the grpc.ServiceDesc for the replay control service.
var ReplayControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReplayControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSessions", Handler: listSessionsHandler},
		{MethodName: "GetSession", Handler: getSessionHandler},
		{MethodName: "StopSession", Handler: stopSessionHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "replay/v1/control.proto",
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// ReplayControlClient calls the control service over a client connection.
type ReplayControlClient struct {
	cc grpc.ClientConnInterface
}

func NewReplayControlClient(cc grpc.ClientConnInterface) *ReplayControlClient {
	return &ReplayControlClient{cc: cc}
}

func (c *ReplayControlClient) ListSessions(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ListSessions", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReplayControlClient) GetSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GetSession", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReplayControlClient) StopSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/StopSession", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
