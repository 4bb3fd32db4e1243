// Package models contains the domain models for the calendar sync engine.
package models

import (
	"time"
)

// SourcePlatform identifies where a booking originated.
type SourcePlatform string

// Known booking sources. Manual bookings are entered through the API and
// are never touched by feed ingestion.
const (
	SourceManual     SourcePlatform = "manual"
	SourceAirbnb     SourcePlatform = "airbnb"
	SourceVrbo       SourcePlatform = "vrbo"
	SourceBookingCom SourcePlatform = "booking"
)

// BookingStatus is the lifecycle status of a booking.
type BookingStatus string

// Booking status constants. Status advances only forward; cancellation is
// terminal but the record is retained for audit.
const (
	BookingPending   BookingStatus = "pending"
	BookingApproved  BookingStatus = "approved"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

var bookingRank = map[BookingStatus]int{
	BookingPending:   0,
	BookingApproved:  1,
	BookingConfirmed: 2,
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition. Cancellation is reachable from any non-terminal state.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	if s == BookingCancelled {
		return false
	}
	if next == BookingCancelled {
		return true
	}
	from, okFrom := bookingRank[s]
	to, okTo := bookingRank[next]
	if !okFrom || !okTo {
		return false
	}
	return to > from
}

// Booking is a reservation for a property. Feed-sourced bookings carry an
// ExternalID; at most one booking exists per
// (property_id, source_platform, external_id).
type Booking struct {
	ID             string         `json:"id"`
	ExternalID     *string        `json:"external_id,omitempty"`
	SourcePlatform SourcePlatform `json:"source_platform"`
	PropertyID     string         `json:"property_id"`
	GuestName      string         `json:"guest_name"`
	CheckIn        time.Time      `json:"check_in"`
	CheckOut       time.Time      `json:"check_out"`
	Status         BookingStatus  `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Interval returns the half-open occupancy interval [check-in, check-out).
func (b *Booking) Interval() Interval {
	return Interval{Start: b.CheckIn, End: b.CheckOut}
}

// IsManual reports whether the booking was entered by hand rather than
// ingested from a feed.
func (b *Booking) IsManual() bool {
	return b.ExternalID == nil
}

// Interval is a half-open time interval [Start, End). Intervals that only
// touch at a boundary do not overlap.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals intersect.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// IsValid reports whether the interval has a positive duration.
func (i Interval) IsValid() bool {
	return i.Start.Before(i.End)
}
