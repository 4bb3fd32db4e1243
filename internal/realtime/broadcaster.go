package realtime

import (
	"github.com/stayflow/backend/internal/storage/models"
)

// Broadcaster translates domain-level changes into fan-out messages. The
// workflow and ingestion engine publish through it rather than talking to
// the hub directly.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a broadcaster over the given hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// EventCreated publishes a created mutation.
func (b *Broadcaster) EventCreated(ev models.CalendarEvent) {
	b.hub.PublishMutation(CalendarMutation{Type: MutationCreated, Event: ev})
}

// EventUpdated publishes an updated mutation.
func (b *Broadcaster) EventUpdated(ev models.CalendarEvent) {
	b.hub.PublishMutation(CalendarMutation{Type: MutationUpdated, Event: ev})
}

// EventDeleted publishes a deleted mutation.
func (b *Broadcaster) EventDeleted(ev models.CalendarEvent) {
	b.hub.PublishMutation(CalendarMutation{Type: MutationDeleted, Event: ev})
}

// Conflicts publishes each alert in turn, preserving order.
func (b *Broadcaster) Conflicts(alerts []models.ConflictAlert) {
	for _, a := range alerts {
		b.hub.PublishConflict(a)
	}
}
