package models

import (
	"time"
)

// Severity classifies how serious a scheduling conflict is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ConflictAlert records a detected overlap between two scheduled records on
// the same property. Alerts are created only by the conflict detector and
// resolved when one of the records is cancelled, moved, or an operator marks
// the alert resolved.
type ConflictAlert struct {
	ID         string     `json:"id"`
	PropertyID string     `json:"property_id"`
	IntervalA  Interval   `json:"interval_a"`
	IntervalB  Interval   `json:"interval_b"`
	SourceAID  string     `json:"source_a_id"`
	SourceBID  string     `json:"source_b_id"`
	Severity   Severity   `json:"severity"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Overlap returns the intersection of the two conflicting intervals.
func (a *ConflictAlert) Overlap() Interval {
	start := a.IntervalA.Start
	if a.IntervalB.Start.After(start) {
		start = a.IntervalB.Start
	}
	end := a.IntervalA.End
	if a.IntervalB.End.Before(end) {
		end = a.IntervalB.End
	}
	return Interval{Start: start, End: end}
}
