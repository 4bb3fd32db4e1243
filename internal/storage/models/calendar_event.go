package models

import (
	"time"
)

// SourceType identifies the record a calendar event was derived from.
type SourceType string

const (
	SourceBooking SourceType = "booking"
	SourceJob     SourceType = "job"
)

// CalendarEvent is a derived, non-authoritative projection of a booking or
// job. Events are regenerated whenever their source changes and deleted when
// the source is cancelled; a recurring job produces one event per occurrence
// sharing a series ID.
type CalendarEvent struct {
	ID         string     `json:"id"`
	SourceType SourceType `json:"source_type"`
	SourceID   string     `json:"source_id"`
	PropertyID string     `json:"property_id"`
	Title      string     `json:"title"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	SeriesID   *string    `json:"series_id,omitempty"`
	Category   string     `json:"category"`
	// Blocking marks the event as occupancy-blocking for conflict checks.
	Blocking bool `json:"blocking"`
	// Status mirrors the source's status for display styling.
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Interval returns the half-open interval the event covers.
func (e *CalendarEvent) Interval() Interval {
	return Interval{Start: e.Start, End: e.End}
}
