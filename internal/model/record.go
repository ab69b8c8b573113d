package model

import (
	"encoding/json"
	"time"
)

// ActivityRecord is an accepted activity as persisted by the relay.
type ActivityRecord struct {
	ID         string    `json:"id"`
	Activity   *Activity `json:"activity"`
	ReceivedAt time.Time `json:"received_at"`
}

// RejectStage names the pipeline step that dropped an event.
type RejectStage string

const (
	StageParse    RejectStage = "parse"
	StageValidate RejectStage = "validate"
)

// IsValid checks whether the stage is a known value.
func (s RejectStage) IsValid() bool {
	switch s {
	case StageParse, StageValidate:
		return true
	}
	return false
}

// Rejection is an inbound event that produced no activity.
type Rejection struct {
	ID        string          `json:"id"`
	Stage     RejectStage     `json:"stage"`
	Reason    string          `json:"reason,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ActivityFilter narrows ListActivities results.
type ActivityFilter struct {
	TargetID string
	ActorID  string
	Since    *time.Time
	Limit    int
	Offset   int
}
