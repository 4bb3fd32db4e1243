package models

import (
	"time"
)

// JobStatus is the lifecycle status of an operational task.
type JobStatus string

// Job status constants, in forward order. Cancellation is reachable from any
// non-terminal state.
const (
	JobUnassigned JobStatus = "unassigned"
	JobAssigned   JobStatus = "assigned"
	JobAccepted   JobStatus = "accepted"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
)

var jobRank = map[JobStatus]int{
	JobUnassigned: 0,
	JobAssigned:   1,
	JobAccepted:   2,
	JobInProgress: 3,
	JobCompleted:  4,
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition along the job lifecycle.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s == JobCancelled || s == JobCompleted {
		return false
	}
	if next == JobCancelled {
		return true
	}
	from, okFrom := jobRank[s]
	to, okTo := jobRank[next]
	if !okFrom || !okTo {
		return false
	}
	return to > from
}

// IsForwardJobTransition reports whether old -> new advances the job
// lifecycle (excludes cancellation).
func IsForwardJobTransition(old, new JobStatus) bool {
	from, okFrom := jobRank[old]
	to, okTo := jobRank[new]
	return okFrom && okTo && to > from
}

// Job is an operational task (cleaning, maintenance, ...) optionally tied to
// a booking. A recurring job carries a raw RRULE string that the projector
// expands into a calendar event series.
type Job struct {
	ID                   string    `json:"id"`
	JobType              string    `json:"job_type"`
	PropertyID           string    `json:"property_id"`
	RelatedBookingID     *string   `json:"related_booking_id,omitempty"`
	Status               JobStatus `json:"status"`
	ScheduledStart       time.Time `json:"scheduled_start"`
	EstimatedDurationMin int       `json:"estimated_duration_min"`
	AssignedStaffID      *string   `json:"assigned_staff_id,omitempty"`
	Recurrence           *string   `json:"recurrence,omitempty"`
	AllowDuringStay      bool      `json:"allow_during_stay"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Window returns the half-open interval the job occupies.
func (j *Job) Window() Interval {
	return Interval{
		Start: j.ScheduledStart,
		End:   j.ScheduledStart.Add(time.Duration(j.EstimatedDurationMin) * time.Minute),
	}
}

// IsRecurring reports whether the job carries a recurrence rule.
func (j *Job) IsRecurring() bool {
	return j.Recurrence != nil && *j.Recurrence != ""
}
