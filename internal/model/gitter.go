package model

import (
	"math"

	"github.com/go-viper/mapstructure/v2"
)

// GitterEvent is a room message event as delivered by the Gitter streaming
// API. Every sub-record is optional; accessors below return zero values when
// a level of the path is missing.
type GitterEvent struct {
	Type string
	Data *GitterMessage
	Room *GitterRoom
}

// GitterMessage is the "data" section of a Gitter event.
type GitterMessage struct {
	ID       string
	Text     string
	Sent     any // ISO 8601 string or epoch milliseconds
	FromUser *GitterUser
}

// GitterUser is the author of a message.
type GitterUser struct {
	ID       string
	Username string
}

// GitterRoom is the room a message belongs to.
type GitterRoom struct {
	ID       string
	Name     string
	OneToOne bool
}

// DecodeGitterEvent reads the known paths of a pruned generic event. Each
// leaf is read on its own: a section that is not an object is treated as
// missing, and a leaf of the wrong type reads as empty.
func DecodeGitterEvent(raw map[string]any) *GitterEvent {
	ev := &GitterEvent{Type: stringAt(raw, "type")}

	if data, ok := raw["data"].(map[string]any); ok {
		ev.Data = &GitterMessage{
			ID:   stringAt(data, "id"),
			Text: stringAt(data, "text"),
			Sent: data["sent"],
		}
		if from, ok := data["fromUser"].(map[string]any); ok {
			ev.Data.FromUser = &GitterUser{
				ID:       stringAt(from, "id"),
				Username: stringAt(from, "username"),
			}
		}
	}

	if room, ok := raw["room"].(map[string]any); ok {
		ev.Room = &GitterRoom{
			ID:       stringAt(room, "id"),
			Name:     stringAt(room, "name"),
			OneToOne: truthy(room["oneToOne"]),
		}
	}
	return ev
}

// stringAt returns m[key] as a string. Numbers are formatted so numeric ids
// survive; anything else reads as "".
func stringAt(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64, float32, int, int64, int32, uint, uint64, uint32:
		var s string
		if err := mapstructure.WeakDecode(v, &s); err != nil {
			return ""
		}
		return s
	}
	return ""
}

// truthy reports whether v counts as set: true, a non-empty string, a
// non-zero number, or any object or array.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	case float32:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case int32:
		return x != 0
	}
	return true
}

// SenderID returns data.fromUser.id.
func (e *GitterEvent) SenderID() string {
	if e.Data == nil || e.Data.FromUser == nil {
		return ""
	}
	return e.Data.FromUser.ID
}

// SenderName returns data.fromUser.username.
func (e *GitterEvent) SenderName() string {
	if e.Data == nil || e.Data.FromUser == nil {
		return ""
	}
	return e.Data.FromUser.Username
}

// MessageID returns data.id.
func (e *GitterEvent) MessageID() string {
	if e.Data == nil {
		return ""
	}
	return e.Data.ID
}

// Text returns data.text.
func (e *GitterEvent) Text() string {
	if e.Data == nil {
		return ""
	}
	return e.Data.Text
}

// Sent returns data.sent and whether it was present.
func (e *GitterEvent) Sent() (any, bool) {
	if e.Data == nil || e.Data.Sent == nil {
		return nil, false
	}
	return e.Data.Sent, true
}

// RoomID returns room.id.
func (e *GitterEvent) RoomID() string {
	if e.Room == nil {
		return ""
	}
	return e.Room.ID
}

// RoomName returns room.name.
func (e *GitterEvent) RoomName() string {
	if e.Room == nil {
		return ""
	}
	return e.Room.Name
}

// OneToOne reports whether the room is a direct conversation. A missing flag
// counts as false.
func (e *GitterEvent) OneToOne() bool {
	return e.Room != nil && e.Room.OneToOne
}
