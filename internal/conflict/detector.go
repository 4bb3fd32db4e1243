// Package conflict detects scheduling conflicts between bookings, blocking
// calendar events, and jobs on the same property.
package conflict

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stayflow/backend/internal/storage"
	"github.com/stayflow/backend/internal/storage/models"
)

// CandidateKind describes what the interval under test represents, which
// drives severity classification.
type CandidateKind string

const (
	// KindGuest is a confirmed guest reservation.
	KindGuest CandidateKind = "guest"
	// KindJob is an operational task.
	KindJob CandidateKind = "job"
	// KindBlock is any other occupancy-blocking record.
	KindBlock CandidateKind = "block"
)

// Candidate is the interval being checked for conflicts.
type Candidate struct {
	SourceID        string
	Kind            CandidateKind
	Interval        models.Interval
	AllowDuringStay bool
}

// Detector finds overlaps for a candidate interval against everything
// committed for the property. It is read-mostly: its only side effect is
// emitting conflict alert records.
type Detector struct {
	bookings *storage.BookingRepository
	events   *storage.EventRepository
	jobs     *storage.JobRepository
	alerts   *storage.ConflictRepository
	log      *zap.Logger
}

// NewDetector creates a conflict detector.
func NewDetector(
	bookings *storage.BookingRepository,
	events *storage.EventRepository,
	jobs *storage.JobRepository,
	alerts *storage.ConflictRepository,
	log *zap.Logger,
) *Detector {
	return &Detector{
		bookings: bookings,
		events:   events,
		jobs:     jobs,
		alerts:   alerts,
		log:      log,
	}
}

// Overlaps reports whether two half-open intervals [s1,e1) and [s2,e2)
// conflict: s1 < e2 && s2 < e1. A checkout at the same instant as a checkin
// never conflicts.
func Overlaps(a, b models.Interval) bool {
	return a.Overlaps(b)
}

// CheckConflicts compares the candidate against all other confirmed bookings
// for the property, all occupancy-blocking calendar events, and jobs falling
// inside guest occupancy without an allowance. It persists one alert per
// newly detected overlap and returns all overlaps found, persisted or not.
func (d *Detector) CheckConflicts(ctx context.Context, propertyID string, candidate Candidate) ([]models.ConflictAlert, error) {
	var alerts []models.ConflictAlert

	confirmed, err := d.bookings.ListByProperty(ctx, propertyID, models.BookingConfirmed)
	if err != nil {
		return nil, fmt.Errorf("listing confirmed bookings: %w", err)
	}
	for _, b := range confirmed {
		if b.ID == candidate.SourceID {
			continue
		}
		other := b.Interval()
		if !candidate.Interval.Overlaps(other) {
			continue
		}
		severity := d.classify(candidate, KindGuest)
		// A job overlapping guest occupancy with an explicit allowance is
		// not a conflict at all.
		if candidate.Kind == KindJob && candidate.AllowDuringStay {
			continue
		}
		alerts = append(alerts, d.buildAlert(propertyID, candidate, b.ID, other, severity))
	}

	blocking, err := d.events.ListBlockingByProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("listing blocking events: %w", err)
	}
	for _, e := range blocking {
		// Skip events derived from the candidate itself or from a booking
		// already reported above.
		if e.SourceID == candidate.SourceID || e.SourceType == models.SourceBooking {
			continue
		}
		other := e.Interval()
		if !candidate.Interval.Overlaps(other) {
			continue
		}
		alerts = append(alerts, d.buildAlert(propertyID, candidate, e.SourceID, other, models.SeverityInfo))
	}

	// A guest candidate also conflicts with jobs scheduled inside the stay
	// that lack an allowance.
	if candidate.Kind == KindGuest {
		jobs, err := d.jobs.ListByProperty(ctx, propertyID,
			models.JobUnassigned, models.JobAssigned, models.JobAccepted, models.JobInProgress)
		if err != nil {
			return nil, fmt.Errorf("listing jobs: %w", err)
		}
		for _, j := range jobs {
			if j.ID == candidate.SourceID || j.AllowDuringStay {
				continue
			}
			other := j.Window()
			if !candidate.Interval.Overlaps(other) {
				continue
			}
			alerts = append(alerts, d.buildAlert(propertyID, candidate, j.ID, other, models.SeverityWarning))
		}
	}

	// Persist only overlaps that do not already have an open alert, so
	// replayed transitions stay idempotent.
	for i := range alerts {
		exists, err := d.alerts.HasOpenForPair(ctx, alerts[i].SourceAID, alerts[i].SourceBID)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		if err := d.alerts.Create(ctx, &alerts[i]); err != nil {
			return nil, fmt.Errorf("recording conflict alert: %w", err)
		}
		d.log.Warn("conflict detected",
			zap.String("property_id", propertyID),
			zap.String("source_a", alerts[i].SourceAID),
			zap.String("source_b", alerts[i].SourceBID),
			zap.String("severity", string(alerts[i].Severity)))
	}

	return alerts, nil
}

// classify determines severity for a candidate overlapping a record of the
// given kind: two confirmed guest bookings are critical, a job inside guest
// occupancy without an allowance is a warning, anything else is info.
func (d *Detector) classify(candidate Candidate, otherKind CandidateKind) models.Severity {
	switch {
	case candidate.Kind == KindGuest && otherKind == KindGuest:
		return models.SeverityCritical
	case candidate.Kind == KindJob && otherKind == KindGuest && !candidate.AllowDuringStay:
		return models.SeverityWarning
	case candidate.Kind == KindGuest && otherKind == KindJob:
		return models.SeverityWarning
	default:
		return models.SeverityInfo
	}
}

func (d *Detector) buildAlert(propertyID string, candidate Candidate, otherID string, otherInterval models.Interval, severity models.Severity) models.ConflictAlert {
	return models.ConflictAlert{
		PropertyID: propertyID,
		IntervalA:  candidate.Interval,
		IntervalB:  otherInterval,
		SourceAID:  candidate.SourceID,
		SourceBID:  otherID,
		Severity:   severity,
	}
}
