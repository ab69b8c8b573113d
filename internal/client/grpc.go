package client

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/gitterbridge/internal/model"
	"github.com/alfredjeanlab/gitterbridge/internal/relay"
	"github.com/alfredjeanlab/gitterbridge/internal/rpc"
)

// GRPCClient implements Client using the gitter.v1.Normalizer service.
// Listing and fetching stored activities are HTTP-only.
type GRPCClient struct {
	conn   *grpc.ClientConn
	client *rpc.NormalizerClient
}

// NewGRPCClient connects to the given gRPC address and returns a client.
// A non-empty token is sent as a bearer token on every call.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	if token != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(bearerInterceptor(token)))
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{
		conn:   conn,
		client: rpc.NewNormalizerClient(conn),
	}, nil
}

func bearerInterceptor(token string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) Parse(ctx context.Context, event map[string]any) (*model.Activity, error) {
	in, err := structpb.NewStruct(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	out, err := c.client.Parse(ctx, in)
	if err != nil {
		return nil, err
	}
	return model.ActivityFromMap(out.AsMap())
}

func (c *GRPCClient) Validate(ctx context.Context, event map[string]any, category string) (map[string]any, error) {
	in, err := structpb.NewStruct(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	if category != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, rpc.CategoryMetadataKey, category)
	}
	out, err := c.client.Validate(ctx, in)
	if err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *GRPCClient) Ingest(ctx context.Context, event map[string]any) (*relay.Outcome, error) {
	in, err := structpb.NewStruct(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	out, err := c.client.Ingest(ctx, in)
	if err != nil {
		return nil, err
	}
	var outcome relay.Outcome
	if err := fromStruct(out, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (c *GRPCClient) ListActivities(context.Context, *ListActivitiesRequest) (*ListActivitiesResponse, error) {
	return nil, fmt.Errorf("ListActivities: %w", ErrUnsupported)
}

func (c *GRPCClient) GetActivity(context.Context, string) (*model.ActivityRecord, error) {
	return nil, fmt.Errorf("GetActivity: %w", ErrUnsupported)
}

func (c *GRPCClient) ListRejections(context.Context, int) ([]*model.Rejection, error) {
	return nil, fmt.Errorf("ListRejections: %w", ErrUnsupported)
}

func (c *GRPCClient) Health(ctx context.Context) (*HealthResponse, error) {
	out, err := c.client.Health(ctx)
	if err != nil {
		return nil, err
	}
	var resp HealthResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// fromStruct decodes a protobuf Struct into v via its JSON form.
func fromStruct(st *structpb.Struct, v any) error {
	data, err := st.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
