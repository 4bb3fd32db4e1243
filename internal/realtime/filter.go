package realtime

import (
	"time"

	"github.com/stayflow/backend/internal/storage/models"
)

// Filter restricts which messages a subscriber receives. Zero-valued fields
// match everything.
type Filter struct {
	PropertyID       string    `json:"property_id,omitempty"`
	From             time.Time `json:"from,omitempty"`
	To               time.Time `json:"to,omitempty"`
	EventTypes       []string  `json:"event_types,omitempty"`
	IncludeConflicts bool      `json:"include_conflicts"`
}

// MatchesMutation reports whether a calendar mutation passes the filter.
func (f Filter) MatchesMutation(m CalendarMutation) bool {
	if f.PropertyID != "" && m.Event.PropertyID != f.PropertyID {
		return false
	}
	if len(f.EventTypes) > 0 && !contains(f.EventTypes, m.Event.Category) {
		return false
	}
	// Date range uses the half-open overlap rule; deletions always pass the
	// range check so stale events disappear from clients.
	if m.Type != MutationDeleted {
		if !f.To.IsZero() && !m.Event.Start.Before(f.To) {
			return false
		}
		if !f.From.IsZero() && !m.Event.End.After(f.From) {
			return false
		}
	}
	return true
}

// MatchesConflict reports whether a conflict alert passes the filter.
func (f Filter) MatchesConflict(a models.ConflictAlert) bool {
	if !f.IncludeConflicts {
		return false
	}
	if f.PropertyID != "" && a.PropertyID != f.PropertyID {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
