// Package relay runs inbound Gitter events through normalization and schema
// validation, then records and publishes the result.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/gitterbridge/internal/events"
	"github.com/alfredjeanlab/gitterbridge/internal/idgen"
	"github.com/alfredjeanlab/gitterbridge/internal/model"
	"github.com/alfredjeanlab/gitterbridge/internal/store"
)

// Rejection reasons.
const (
	ReasonNotNormalized = "event could not be normalized"
	ReasonSchema        = "activity failed schema validation"
)

// Normalizer is the subset of *parser.Parser used by the relay.
type Normalizer interface {
	Parse(ctx context.Context, event map[string]any) (*model.Activity, bool)
	Validate(ctx context.Context, event map[string]any) (map[string]any, bool)
}

// Outcome is the result of relaying one event. Exactly one of Record and
// Rejection is set.
type Outcome struct {
	Accepted  bool                  `json:"accepted"`
	Record    *model.ActivityRecord `json:"record,omitempty"`
	Rejection *model.Rejection      `json:"rejection,omitempty"`
}

// Relay processes raw Gitter events.
type Relay struct {
	normalizer Normalizer
	store      store.Store
	publisher  events.Publisher
	logger     *slog.Logger
	newID      func(prefix string) string
	now        func() time.Time
}

// Option configures a Relay.
type Option func(*Relay)

// WithClock overrides the clock used for received_at and created_at stamps.
func WithClock(fn func() time.Time) Option {
	return func(r *Relay) { r.now = fn }
}

// WithIDGenerator overrides record and rejection id generation.
func WithIDGenerator(fn func(prefix string) string) Option {
	return func(r *Relay) { r.newID = fn }
}

// New creates a relay. A nil publisher disables publishing.
func New(n Normalizer, s store.Store, pub events.Publisher, logger *slog.Logger, opts ...Option) *Relay {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	r := &Relay{
		normalizer: n,
		store:      s,
		publisher:  pub,
		logger:     logger.With("component", "relay"),
		newID:      idgen.NewWithPrefix,
		now:        time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handle parses raw, validates the resulting activity against the activity
// schema, and records and publishes the outcome. Store and publish failures
// are logged and do not fail the call; the returned error is non-nil only when
// ctx is done or the activity cannot be encoded.
func (r *Relay) Handle(ctx context.Context, raw map[string]any) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	act, ok := r.normalizer.Parse(ctx, raw)
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return r.reject(ctx, raw, model.StageParse, ReasonNotNormalized), nil
	}

	m, err := act.ToMap()
	if err != nil {
		return nil, fmt.Errorf("encode activity: %w", err)
	}
	if _, ok := r.normalizer.Validate(ctx, m); !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return r.reject(ctx, raw, model.StageValidate, ReasonSchema), nil
	}

	rec := &model.ActivityRecord{
		ID:         r.newID(idgen.PrefixActivity),
		Activity:   act,
		ReceivedAt: r.now().UTC(),
	}
	if err := model.ValidateRecord(rec); err != nil {
		return r.reject(ctx, raw, model.StageValidate, err.Error()), nil
	}

	if err := r.store.RecordActivity(ctx, rec); err != nil {
		r.logger.Error("failed to record activity", "id", rec.ID, "err", err)
	}
	if err := r.publisher.Publish(ctx, events.TopicActivityCreated, events.ActivityCreated{
		RecordID: rec.ID,
		Activity: act,
	}); err != nil {
		r.logger.Warn("failed to publish activity", "id", rec.ID, "err", err)
	}
	r.logger.Debug("activity relayed", "id", rec.ID, "object", act.Object.ID)

	return &Outcome{Accepted: true, Record: rec}, nil
}

func (r *Relay) reject(ctx context.Context, raw map[string]any, stage model.RejectStage, reason string) *Outcome {
	var payload json.RawMessage
	if raw != nil {
		if b, err := json.Marshal(raw); err == nil {
			payload = b
		} else {
			r.logger.Warn("failed to encode rejected event", "err", err)
		}
	}
	rej := &model.Rejection{
		ID:        r.newID(idgen.PrefixRejection),
		Stage:     stage,
		Reason:    reason,
		Payload:   payload,
		CreatedAt: r.now().UTC(),
	}

	if err := r.store.RecordRejection(ctx, rej); err != nil {
		r.logger.Error("failed to record rejection", "id", rej.ID, "err", err)
	}
	if err := r.publisher.Publish(ctx, events.TopicActivityRejected, events.ActivityRejected{
		RejectionID: rej.ID,
		Stage:       stage,
		Reason:      reason,
		Event:       payload,
	}); err != nil {
		r.logger.Warn("failed to publish rejection", "id", rej.ID, "err", err)
	}
	r.logger.Info("event rejected", "id", rej.ID, "stage", stage, "reason", reason)

	return &Outcome{Rejection: rej}
}

// HandleJSON decodes a JSON object and relays it.
func (r *Relay) HandleJSON(ctx context.Context, data []byte) (*Outcome, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return r.Handle(ctx, raw)
}

// StartSubscriber relays raw Gitter events received on subject until ctx is
// cancelled or the subscription closes. Payloads that are not JSON objects
// are logged and skipped.
func (r *Relay) StartSubscriber(ctx context.Context, sub events.Subscriber, subject string) error {
	ch, cancel, err := sub.Subscribe(subject)
	if err != nil {
		return fmt.Errorf("relay: subscribe: %w", err)
	}
	defer cancel()

	r.logger.Info("subscriber started", "subject", subject)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("subscriber stopping")
			return nil
		case data, ok := <-ch:
			if !ok {
				r.logger.Info("subscription channel closed")
				return nil
			}
			if _, err := r.HandleJSON(ctx, data); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Warn("bad event payload", "err", err)
			}
		}
	}
}
