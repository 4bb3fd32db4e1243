// Package realtime fans calendar mutations and conflict alerts out to live
// subscriber connections, each with its own filter and bounded buffer.
package realtime

import (
	"encoding/json"
	"time"

	"github.com/stayflow/backend/internal/storage/models"
)

// MessageType identifies the type of a fan-out message.
type MessageType string

const (
	TypeConnection     MessageType = "connection"
	TypeCalendarUpdate MessageType = "calendar_update"
	TypeConflictAlert  MessageType = "conflict_alert"
	TypeHeartbeat      MessageType = "heartbeat"
	TypeError          MessageType = "error"
)

// Message is the envelope for every fan-out payload.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// MutationType describes what happened to a calendar event.
type MutationType string

const (
	MutationCreated MutationType = "created"
	MutationUpdated MutationType = "updated"
	MutationDeleted MutationType = "deleted"
)

// CalendarMutation is the payload of calendar_update messages.
type CalendarMutation struct {
	Type  MutationType         `json:"type"`
	Event models.CalendarEvent `json:"event"`
}

// ConnectionPayload is sent once to a subscriber on (re)connect. Delivery is
// best-effort at-most-once: no backlog is replayed, so clients fetch a
// reconciliation snapshot from the store separately.
type ConnectionPayload struct {
	SubscriberID string `json:"subscriber_id"`
	Filter       Filter `json:"filter"`
}

// HeartbeatPayload carries a liveness count to every subscriber.
type HeartbeatPayload struct {
	Subscribers  int    `json:"subscribers"`
	DroppedTotal uint64 `json:"dropped_total"`
}

// ErrorPayload signals a connectivity or protocol problem to a subscriber.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
