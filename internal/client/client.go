// Package client provides a transport-agnostic interface for the gitterbridge
// service with HTTP/JSON and gRPC implementations.
package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/gitterbridge/internal/model"
	"github.com/alfredjeanlab/gitterbridge/internal/relay"
)

// Client is the interface the gb CLI uses to talk to a running server.
type Client interface {
	// Normalization
	Parse(ctx context.Context, event map[string]any) (*model.Activity, error)
	Validate(ctx context.Context, event map[string]any, category string) (map[string]any, error)
	Ingest(ctx context.Context, event map[string]any) (*relay.Outcome, error)

	// Stored activities
	ListActivities(ctx context.Context, req *ListActivitiesRequest) (*ListActivitiesResponse, error)
	GetActivity(ctx context.Context, id string) (*model.ActivityRecord, error)
	ListRejections(ctx context.Context, limit int) ([]*model.Rejection, error)

	// Health
	Health(ctx context.Context) (*HealthResponse, error)

	// Lifecycle
	Close() error
}

// ListActivitiesRequest holds filters for listing stored activities.
type ListActivitiesRequest struct {
	TargetID string
	ActorID  string
	Since    *time.Time
	Limit    int
	Offset   int
}

// ListActivitiesResponse is the response from ListActivities.
type ListActivitiesResponse struct {
	Activities []*model.ActivityRecord `json:"activities"`
	Total      int                     `json:"total"`
}

// HealthResponse is the response from Health.
type HealthResponse struct {
	Status    string `json:"status"`
	ServiceID string `json:"service_id"`
}

// ErrUnsupported is returned by transports that lack an operation.
var ErrUnsupported = errors.New("operation not supported over this transport; use --transport=http")

// IsAbsent reports whether err means the server produced no result for the
// event (HTTP 422 or gRPC FailedPrecondition).
func IsAbsent(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnprocessableEntity
	}
	return status.Code(err) == codes.FailedPrecondition
}
