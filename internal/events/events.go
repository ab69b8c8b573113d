package events

import (
	"context"
	"encoding/json"

	"github.com/alfredjeanlab/gitterbridge/internal/model"
)

// Event topic constants
const (
	// TopicMessageReceived carries raw Gitter room message events into the relay.
	TopicMessageReceived = "gitter.message.received"

	TopicActivityCreated  = "gitter.activity.created"
	TopicActivityRejected = "gitter.activity.rejected"

	// TopicAll matches every topic published by the bridge.
	TopicAll = "gitter.>"
)

// Event types

type ActivityCreated struct {
	RecordID string          `json:"record_id"`
	Activity *model.Activity `json:"activity"`
}

type ActivityRejected struct {
	RejectionID string            `json:"rejection_id"`
	Stage       model.RejectStage `json:"stage"`
	Reason      string            `json:"reason,omitempty"`
	Event       json.RawMessage   `json:"event,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
