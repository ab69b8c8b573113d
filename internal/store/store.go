package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/gitterbridge/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for relayed activities.
type Store interface {
	// Activities
	RecordActivity(ctx context.Context, rec *model.ActivityRecord) error
	GetActivity(ctx context.Context, id string) (*model.ActivityRecord, error)
	ListActivities(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityRecord, int, error) // returns records, total count, error

	// Rejections (dead letters)
	RecordRejection(ctx context.Context, rej *model.Rejection) error
	ListRejections(ctx context.Context, limit int) ([]*model.Rejection, error)

	// Lifecycle
	Close() error
}
