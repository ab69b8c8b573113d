// Package rpc describes the gitter.v1.Normalizer gRPC service. Requests and
// responses are google.protobuf.Struct values holding the same JSON objects
// the HTTP API exchanges, so no generated message types are needed.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "gitter.v1.Normalizer"

// Full method names.
const (
	MethodParse    = "/" + ServiceName + "/Parse"
	MethodValidate = "/" + ServiceName + "/Validate"
	MethodIngest   = "/" + ServiceName + "/Ingest"
	MethodHealth   = "/" + ServiceName + "/Health"
)

// CategoryMetadataKey selects the schema category for Validate. Absent means
// the activity schema.
const CategoryMetadataKey = "x-gitter-category"

// NormalizerServer is implemented by the service.
type NormalizerServer interface {
	Parse(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Validate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ingest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Health(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterNormalizerServer registers srv on s.
func RegisterNormalizerServer(s grpc.ServiceRegistrar, srv NormalizerServer) {
	s.RegisterService(&NormalizerServiceDesc, srv)
}

// NormalizerServiceDesc is the grpc.ServiceDesc for gitter.v1.Normalizer.
var NormalizerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NormalizerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Parse", Handler: structHandler(MethodParse, NormalizerServer.Parse)},
		{MethodName: "Validate", Handler: structHandler(MethodValidate, NormalizerServer.Validate)},
		{MethodName: "Ingest", Handler: structHandler(MethodIngest, NormalizerServer.Ingest)},
		{MethodName: "Health", Handler: healthHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gitter/v1/normalizer.proto",
}

type structMethod func(NormalizerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func structHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(NormalizerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(NormalizerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func healthHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NormalizerServer).Health(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodHealth}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NormalizerServer).Health(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// NormalizerClient calls gitter.v1.Normalizer.
type NormalizerClient struct {
	cc grpc.ClientConnInterface
}

// NewNormalizerClient returns a client using cc.
func NewNormalizerClient(cc grpc.ClientConnInterface) *NormalizerClient {
	return &NormalizerClient{cc: cc}
}

func (c *NormalizerClient) Parse(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodParse, in, opts...)
}

func (c *NormalizerClient) Validate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodValidate, in, opts...)
}

func (c *NormalizerClient) Ingest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodIngest, in, opts...)
}

func (c *NormalizerClient) Health(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodHealth, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *NormalizerClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
