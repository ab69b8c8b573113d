package model

import (
	"encoding/json"
	"fmt"
)

// ActivityStreamsContext is the JSON-LD context of every activity we emit.
const ActivityStreamsContext = "https://www.w3.org/ns/activitystreams"

// GeneratorGitter is the generator name stamped on activities built from Gitter events.
const GeneratorGitter = "gitter"

// ObjectType is an ActivityStreams object or activity type.
type ObjectType string

const (
	TypeCreate  ObjectType = "Create"
	TypeService ObjectType = "Service"
	TypePerson  ObjectType = "Person"
	TypeGroup   ObjectType = "Group"
	TypeNote    ObjectType = "Note"
)

// String returns the string representation of the type.
func (t ObjectType) String() string {
	return string(t)
}

// Activity is the canonical envelope produced for every accepted chat message.
type Activity struct {
	Context   string     `json:"@context"`
	Generator Generator  `json:"generator"`
	Published int64      `json:"published"` // seconds since epoch
	Type      ObjectType `json:"type"`
	Actor     Actor      `json:"actor"`
	Target    Target     `json:"target"`
	Object    Object     `json:"object"`
}

// Generator identifies the service that produced the activity.
type Generator struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Type ObjectType `json:"type"`
}

// Actor is the sender of the message. ID and Name are empty when the source
// event carried no sender.
type Actor struct {
	ID   string     `json:"id,omitempty"`
	Name string     `json:"name,omitempty"`
	Type ObjectType `json:"type"`
}

// Target is the room the message was posted to.
type Target struct {
	ID   string     `json:"id,omitempty"`
	Name string     `json:"name,omitempty"`
	Type ObjectType `json:"type"`
}

// Object is the message itself.
type Object struct {
	Content string     `json:"content,omitempty"`
	ID      string     `json:"id"`
	Type    ObjectType `json:"type"`
}

// ToMap converts the activity into its generic JSON object form, the shape
// consumed by schema validation and the gRPC transport.
func (a *Activity) ToMap() (map[string]any, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal activity: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal activity: %w", err)
	}
	return m, nil
}

// ActivityFromMap converts a generic JSON object back into an Activity.
func ActivityFromMap(m map[string]any) (*Activity, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal activity map: %w", err)
	}
	var a Activity
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal activity map: %w", err)
	}
	return &a, nil
}
