package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/gitterbridge/internal/rpc"
)

// NewGRPCServer creates a gRPC server with standard interceptors,
// registers the Normalizer service and reflection, and returns the server
// ready to serve.
func NewGRPCServer(s *NormalizerServer, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			s.recoveryInterceptor,
			s.loggingInterceptor,
			AuthInterceptor(authToken),
		),
	)

	rpc.RegisterNormalizerServer(srv, s)
	reflection.Register(srv)

	return srv
}

// Parse normalizes the event carried in req into an activity.
func (s *NormalizerServer) Parse(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	act, err := s.parse(ctx, structToMap(req))
	if err != nil {
		return nil, toStatusError(err)
	}
	out, err := toStruct(act)
	return out, toStatusError(err)
}

// Validate checks the event in req against the schema category named by the
// x-gitter-category metadata key, defaulting to the activity schema.
func (s *NormalizerServer) Validate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	validated, err := s.validate(ctx, structToMap(req), categoryFromMetadata(ctx))
	if err != nil {
		return nil, toStatusError(err)
	}
	out, err := structpb.NewStruct(validated)
	return out, toStatusError(err)
}

// Ingest runs the event through the relay pipeline and returns the outcome.
func (s *NormalizerServer) Ingest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	outcome, err := s.ingest(ctx, structToMap(req))
	if err != nil {
		return nil, toStatusError(err)
	}
	out, err := toStruct(outcome)
	return out, toStatusError(err)
}

// Health returns the service health status.
func (s *NormalizerServer) Health(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"status":     "ok",
		"service_id": s.normalizer.ServiceID(),
	})
}
