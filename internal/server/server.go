package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/alfredjeanlab/gitterbridge/internal/events"
	"github.com/alfredjeanlab/gitterbridge/internal/model"
	"github.com/alfredjeanlab/gitterbridge/internal/relay"
	"github.com/alfredjeanlab/gitterbridge/internal/schema"
	"github.com/alfredjeanlab/gitterbridge/internal/store"
)

// Normalizer is the subset of *parser.Parser served over HTTP and gRPC.
type Normalizer interface {
	relay.Normalizer
	ValidateAs(ctx context.Context, event map[string]any, category schema.Category) (map[string]any, bool)
	Categories() []schema.Category
	ServiceID() string
}

// NormalizerServer exposes the parser, the relay pipeline and the activity
// store to HTTP and gRPC clients.
type NormalizerServer struct {
	normalizer Normalizer
	relay      *relay.Relay
	store      store.Store
	sseHub     *sseHub
	logger     *slog.Logger
}

// NewNormalizerServer returns a server backed by n and s. Relayed events are
// published to pub (which may be nil) and to connected SSE clients.
func NewNormalizerServer(n Normalizer, s store.Store, pub events.Publisher, logger *slog.Logger, opts ...relay.Option) *NormalizerServer {
	hub := newSSEHub(logger)
	fanout := events.MultiPublisher{hub}
	if pub != nil {
		fanout = events.MultiPublisher{pub, hub}
	}
	return &NormalizerServer{
		normalizer: n,
		relay:      relay.New(n, s, fanout, logger, opts...),
		store:      s,
		sseHub:     hub,
		logger:     logger.With("component", "server"),
	}
}

// Relay returns the pipeline used by Ingest, so a bus subscriber can share it.
func (s *NormalizerServer) Relay() *relay.Relay {
	return s.relay
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// absentError reports that an event produced no result.
// Transport layers map this to 422 / FailedPrecondition.
type absentError string

func (e absentError) Error() string { return string(e) }

func (s *NormalizerServer) parse(ctx context.Context, event map[string]any) (*model.Activity, error) {
	if event == nil {
		return nil, inputError("event is required")
	}
	act, ok := s.normalizer.Parse(ctx, event)
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, absentError("event could not be normalized")
	}
	return act, nil
}

func (s *NormalizerServer) validate(ctx context.Context, event map[string]any, category string) (map[string]any, error) {
	if event == nil {
		return nil, inputError("event is required")
	}
	cat := schema.CategoryActivity
	if category != "" {
		cat = schema.Category(category)
		if !slices.Contains(s.normalizer.Categories(), cat) {
			return nil, inputError(fmt.Sprintf("unknown category %q", category))
		}
	}
	out, ok := s.normalizer.ValidateAs(ctx, event, cat)
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, absentError("event failed validation")
	}
	return out, nil
}

func (s *NormalizerServer) ingest(ctx context.Context, event map[string]any) (*relay.Outcome, error) {
	if event == nil {
		return nil, inputError("event is required")
	}
	return s.relay.Handle(ctx, event)
}

func (s *NormalizerServer) listActivities(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityRecord, int, error) {
	if err := model.ValidateFilter(filter); err != nil {
		return nil, 0, inputError(err.Error())
	}
	recs, total, err := s.store.ListActivities(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}
	return recs, total, nil
}

func (s *NormalizerServer) getActivity(ctx context.Context, id string) (*model.ActivityRecord, error) {
	if id == "" {
		return nil, inputError("id is required")
	}
	rec, err := s.store.GetActivity(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return rec, nil
}

func (s *NormalizerServer) listRejections(ctx context.Context, limit int) ([]*model.Rejection, error) {
	if limit < 0 || limit > model.MaxListLimit {
		return nil, inputError(fmt.Sprintf("limit must be between 0 and %d", model.MaxListLimit))
	}
	rejs, err := s.store.ListRejections(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list rejections: %w", err)
	}
	return rejs, nil
}
