package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sonara.v1.TranscriberControl"

const (
	methodStartRecording  = "/" + ServiceName + "/StartRecording"
	methodStopRecording   = "/" + ServiceName + "/StopRecording"
	methodClearTranscript = "/" + ServiceName + "/ClearTranscript"
	methodGetState        = "/" + ServiceName + "/GetState"
	methodPushFragment    = "/" + ServiceName + "/PushFragment"
	methodWatch           = "/" + ServiceName + "/Watch"
)

// ControlServer is the server side of TranscriberControl. Payloads use the
// well-known Struct type carrying the same JSON shapes as the HTTP API, so no
// generated stubs are needed.
type ControlServer interface {
	StartRecording(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StopRecording(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ClearTranscript(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	PushFragment(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Watch(*emptypb.Empty, grpc.ServerStream) error
}

func emptyHandler(
	method string,
	call func(ControlServer, context.Context, *emptypb.Empty) (*structpb.Struct, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ControlServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func pushFragmentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).PushFragment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPushFragment}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).PushFragment(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ControlServer).Watch(in, stream)
}

// ServiceDesc describes TranscriberControl for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "StartRecording",
			Handler:    emptyHandler(methodStartRecording, ControlServer.StartRecording),
		},
		{
			MethodName: "StopRecording",
			Handler:    emptyHandler(methodStopRecording, ControlServer.StopRecording),
		},
		{
			MethodName: "ClearTranscript",
			Handler:    emptyHandler(methodClearTranscript, ControlServer.ClearTranscript),
		},
		{
			MethodName: "GetState",
			Handler:    emptyHandler(methodGetState, ControlServer.GetState),
		},
		{
			MethodName: "PushFragment",
			Handler:    pushFragmentHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "sonara/v1/control.proto",
}
