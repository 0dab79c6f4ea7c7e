// Package grpcapi exposes the dispatcher as the dspace.DSpaceService gRPC
// service. Messages are protobuf well-known types, so no generated code is
// needed: every request is a google.protobuf.Struct of string fields and every
// response a google.protobuf.StringValue.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "dspace.DSpaceService"

type DSpaceServiceServer interface {
	Call(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	Send(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	Receipt(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	CreateAccount(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
}

// UnimplementedDSpaceServiceServer can be embedded for forward compatibility.
type UnimplementedDSpaceServiceServer struct{}

func (UnimplementedDSpaceServiceServer) Call(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Call not implemented")
}
func (UnimplementedDSpaceServiceServer) Send(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Send not implemented")
}
func (UnimplementedDSpaceServiceServer) Receipt(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Receipt not implemented")
}
func (UnimplementedDSpaceServiceServer) CreateAccount(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateAccount not implemented")
}

func RegisterDSpaceServiceServer(s grpc.ServiceRegistrar, srv DSpaceServiceServer) {
	s.RegisterService(&DSpaceService_ServiceDesc, srv)
}

type DSpaceServiceClient interface {
	Call(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Send(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Receipt(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	CreateAccount(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
}

type dspaceServiceClient struct{ cc grpc.ClientConnInterface }

func NewDSpaceServiceClient(cc grpc.ClientConnInterface) DSpaceServiceClient {
	return &dspaceServiceClient{cc: cc}
}

func (c *dspaceServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *dspaceServiceClient) Call(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return c.invoke(ctx, "Call", in, opts...)
}

func (c *dspaceServiceClient) Send(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return c.invoke(ctx, "Send", in, opts...)
}

func (c *dspaceServiceClient) Receipt(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return c.invoke(ctx, "Receipt", in, opts...)
}

func (c *dspaceServiceClient) CreateAccount(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return c.invoke(ctx, "CreateAccount", in, opts...)
}

type methodFunc func(DSpaceServiceServer, context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)

// unaryHandler builds the grpc.MethodDesc handler shared by all four methods.
func unaryHandler(method string, call methodFunc) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DSpaceServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(DSpaceServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var DSpaceService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DSpaceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Call", Handler: unaryHandler("Call", DSpaceServiceServer.Call)},
		{MethodName: "Send", Handler: unaryHandler("Send", DSpaceServiceServer.Send)},
		{MethodName: "Receipt", Handler: unaryHandler("Receipt", DSpaceServiceServer.Receipt)},
		{MethodName: "CreateAccount", Handler: unaryHandler("CreateAccount", DSpaceServiceServer.CreateAccount)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dspace.proto",
}
