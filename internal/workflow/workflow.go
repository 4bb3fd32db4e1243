// Package workflow runs the lifecycle transition state machine: it reacts to
// booking and job status changes by deriving calendar events, re-verifying
// availability, and publishing the resulting mutations. Transition signals
// are delivered at-least-once by callers; every handler is idempotent.
package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stayflow/backend/internal/conflict"
	"github.com/stayflow/backend/internal/keylock"
	"github.com/stayflow/backend/internal/projector"
	"github.com/stayflow/backend/internal/realtime"
	"github.com/stayflow/backend/internal/storage"
	"github.com/stayflow/backend/internal/storage/models"
)

// Entity type values accepted in transition signals.
const (
	EntityBooking = "booking"
	EntityJob     = "job"
)

// TransitionSignal describes an observed status change.
type TransitionSignal struct {
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	TriggeredBy string `json:"triggered_by"`
}

// Result is the structured outcome of processing a transition.
type Result struct {
	Success          bool                   `json:"success"`
	Message          string                 `json:"message"`
	PartialFailure   bool                   `json:"partial_failure,omitempty"`
	CalendarEventIDs []string               `json:"calendar_event_ids"`
	Conflicts        []models.ConflictAlert `json:"conflicts"`
}

// Options carries workflow tuning taken from service configuration.
type Options struct {
	AutoJobType        string
	AutoJobDurationMin int
}

// Workflow coordinates projection, conflict detection, notification, and
// fan-out for lifecycle transitions.
type Workflow struct {
	bookings    *storage.BookingRepository
	jobs        *storage.JobRepository
	alerts      *storage.ConflictRepository
	projector   *projector.Projector
	detector    *conflict.Detector
	notifier    Notifier
	broadcaster *realtime.Broadcaster
	locks       *keylock.Registry
	opts        Options
	log         *zap.Logger
}

// New creates a workflow.
func New(
	bookings *storage.BookingRepository,
	jobs *storage.JobRepository,
	alerts *storage.ConflictRepository,
	proj *projector.Projector,
	detector *conflict.Detector,
	notifier Notifier,
	broadcaster *realtime.Broadcaster,
	locks *keylock.Registry,
	opts Options,
	log *zap.Logger,
) *Workflow {
	if opts.AutoJobType == "" {
		opts.AutoJobType = "cleaning"
	}
	if opts.AutoJobDurationMin <= 0 {
		opts.AutoJobDurationMin = 120
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Workflow{
		bookings:    bookings,
		jobs:        jobs,
		alerts:      alerts,
		projector:   proj,
		detector:    detector,
		notifier:    notifier,
		broadcaster: broadcaster,
		locks:       locks,
		opts:        opts,
		log:         log,
	}
}

// OnTransition processes one observed status change. Signals may be
// redelivered; replays of already-processed edges are cheap no-ops because
// projection checks before creating. Store failures are returned as errors
// so the caller can retry; everything else lands in the Result.
func (w *Workflow) OnTransition(ctx context.Context, sig TransitionSignal) (*Result, error) {
	switch sig.EntityType {
	case EntityBooking:
		return w.onBookingTransition(ctx, sig)
	case EntityJob:
		return w.onJobTransition(ctx, sig)
	default:
		return &Result{
			Success: false,
			Message: fmt.Sprintf("unknown entity type %q", sig.EntityType),
		}, nil
	}
}

func (w *Workflow) onBookingTransition(ctx context.Context, sig TransitionSignal) (*Result, error) {
	booking, err := w.bookings.GetByID(ctx, sig.EntityID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return &Result{Success: false, Message: fmt.Sprintf("booking not found: %s", sig.EntityID)}, nil
	}

	unlock := w.locks.Lock("property:" + booking.PropertyID)
	defer unlock()

	switch models.BookingStatus(sig.NewStatus) {
	case models.BookingConfirmed:
		return w.handleBookingConfirmed(ctx, booking)
	case models.BookingCancelled:
		return w.handleBookingCancelled(ctx, booking)
	default:
		return &Result{Success: true, Message: "no action for transition"}, nil
	}
}

// handleBookingConfirmed re-verifies availability, derives calendar events
// (including any recurring series on linked jobs), dispatches the outbound
// notification, and publishes everything. A conflict found during
// re-verification raises an alert but never blocks the calendar derivation;
// a failed notification flags partial failure without undoing committed
// calendar state.
func (w *Workflow) handleBookingConfirmed(ctx context.Context, b *models.Booking) (*Result, error) {
	result := &Result{Success: true, Message: "booking confirmed"}

	alerts, err := w.detector.CheckConflicts(ctx, b.PropertyID, conflict.Candidate{
		SourceID: b.ID,
		Kind:     conflict.KindGuest,
		Interval: b.Interval(),
	})
	if err != nil {
		return nil, fmt.Errorf("availability re-verification: %w", err)
	}
	result.Conflicts = alerts

	outcome, err := w.refreshBookingProjection(ctx, b)
	if err != nil {
		return nil, err
	}
	result.CalendarEventIDs = outcome.EventIDs()

	w.broadcastOutcome(outcome)
	w.broadcaster.Conflicts(alerts)

	if err := w.notifier.BookingConfirmed(ctx, b); err != nil {
		// Calendar state is already committed; a missed notification must
		// not undo it.
		result.PartialFailure = true
		result.Message = "booking confirmed; notification dispatch failed"
		w.log.Warn("notification dispatch failed",
			zap.String("booking_id", b.ID), zap.Error(err))
	}

	return result, nil
}

func (w *Workflow) handleBookingCancelled(ctx context.Context, b *models.Booking) (*Result, error) {
	result := &Result{Success: true, Message: "booking cancelled"}

	deleted, err := w.projector.Remove(ctx, models.SourceBooking, b.ID)
	if err != nil {
		return nil, err
	}
	for _, ev := range deleted {
		w.broadcaster.EventDeleted(ev)
	}

	resolved, err := w.alerts.ResolveBySource(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if resolved > 0 {
		w.log.Info("conflicts resolved by cancellation",
			zap.String("booking_id", b.ID), zap.Int("count", resolved))
	}

	return result, nil
}

func (w *Workflow) onJobTransition(ctx context.Context, sig TransitionSignal) (*Result, error) {
	job, err := w.jobs.GetByID(ctx, sig.EntityID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return &Result{Success: false, Message: fmt.Sprintf("job not found: %s", sig.EntityID)}, nil
	}

	unlock := w.locks.Lock("property:" + job.PropertyID)
	defer unlock()

	old := models.JobStatus(sig.OldStatus)
	next := models.JobStatus(sig.NewStatus)

	switch {
	case next == models.JobCancelled:
		return w.handleJobCancelled(ctx, job)
	case models.IsForwardJobTransition(old, next):
		// Forward transitions restyle the linked event; the first one
		// (unassigned -> assigned) creates it when missing. Both cases are
		// the same idempotent upsert.
		outcome, err := w.projector.SyncJob(ctx, job)
		if err != nil {
			return nil, err
		}
		w.broadcastOutcome(outcome)

		result := &Result{
			Success:          true,
			Message:          fmt.Sprintf("job %s", next),
			CalendarEventIDs: outcome.EventIDs(),
		}

		// A job landing inside guest occupancy without an allowance is
		// worth an alert the moment it gets scheduled onto the calendar.
		if !job.AllowDuringStay {
			alerts, err := w.detector.CheckConflicts(ctx, job.PropertyID, conflict.Candidate{
				SourceID:        job.ID,
				Kind:            conflict.KindJob,
				Interval:        job.Window(),
				AllowDuringStay: job.AllowDuringStay,
			})
			if err != nil {
				return nil, err
			}
			result.Conflicts = alerts
			w.broadcaster.Conflicts(alerts)
		}
		return result, nil
	default:
		return &Result{Success: true, Message: "no action for transition"}, nil
	}
}

func (w *Workflow) handleJobCancelled(ctx context.Context, j *models.Job) (*Result, error) {
	outcome, err := w.projector.SyncJob(ctx, j)
	if err != nil {
		return nil, err
	}
	w.broadcastOutcome(outcome)

	if _, err := w.alerts.ResolveBySource(ctx, j.ID); err != nil {
		return nil, err
	}

	return &Result{Success: true, Message: "job cancelled"}, nil
}

// RefreshBooking re-derives calendar state after a booking's interval or
// summary changed without a status transition (feed updates). Conflicts are
// re-checked against the new interval.
func (w *Workflow) RefreshBooking(ctx context.Context, b *models.Booking) (*Result, error) {
	unlock := w.locks.Lock("property:" + b.PropertyID)
	defer unlock()

	result := &Result{Success: true, Message: "booking refreshed"}

	// The old interval's conflicts no longer apply once the booking moved.
	if _, err := w.alerts.ResolveBySource(ctx, b.ID); err != nil {
		return nil, err
	}

	if b.Status == models.BookingConfirmed {
		alerts, err := w.detector.CheckConflicts(ctx, b.PropertyID, conflict.Candidate{
			SourceID: b.ID,
			Kind:     conflict.KindGuest,
			Interval: b.Interval(),
		})
		if err != nil {
			return nil, err
		}
		result.Conflicts = alerts
		w.broadcaster.Conflicts(alerts)
	}

	outcome, err := w.refreshBookingProjection(ctx, b)
	if err != nil {
		return nil, err
	}
	result.CalendarEventIDs = outcome.EventIDs()
	w.broadcastOutcome(outcome)

	return result, nil
}

// EnqueueFollowUpJob creates the dependent job (e.g. post-checkout cleaning)
// for a newly ingested booking. Idempotent: an existing job of the same type
// linked to the booking is returned as-is.
func (w *Workflow) EnqueueFollowUpJob(ctx context.Context, b *models.Booking) (*models.Job, error) {
	existing, err := w.jobs.ListByBooking(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].JobType == w.opts.AutoJobType {
			return &existing[i], nil
		}
	}

	job := &models.Job{
		JobType:              w.opts.AutoJobType,
		PropertyID:           b.PropertyID,
		RelatedBookingID:     &b.ID,
		Status:               models.JobUnassigned,
		ScheduledStart:       b.CheckOut,
		EstimatedDurationMin: w.opts.AutoJobDurationMin,
		// Scheduled at checkout, outside guest occupancy.
		AllowDuringStay: false,
	}
	if err := w.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("creating follow-up job: %w", err)
	}

	w.log.Info("follow-up job enqueued",
		zap.String("booking_id", b.ID),
		zap.String("job_id", job.ID),
		zap.String("job_type", job.JobType),
		zap.Time("scheduled_start", job.ScheduledStart))
	return job, nil
}

// refreshBookingProjection projects the booking and any recurring jobs
// linked to it.
func (w *Workflow) refreshBookingProjection(ctx context.Context, b *models.Booking) (projector.Outcome, error) {
	outcome, err := w.projector.SyncBooking(ctx, b)
	if err != nil {
		return outcome, fmt.Errorf("deriving booking events: %w", err)
	}

	linked, err := w.jobs.ListByBooking(ctx, b.ID)
	if err != nil {
		return outcome, err
	}
	for i := range linked {
		if !linked[i].IsRecurring() || linked[i].Status == models.JobUnassigned {
			continue
		}
		jobOutcome, err := w.projector.SyncJob(ctx, &linked[i])
		if err != nil {
			// Local to the one job; the booking's own events are committed.
			w.log.Error("re-deriving linked job series failed",
				zap.String("job_id", linked[i].ID), zap.Error(err))
			continue
		}
		outcome.Created = append(outcome.Created, jobOutcome.Created...)
		outcome.Updated = append(outcome.Updated, jobOutcome.Updated...)
		outcome.Deleted = append(outcome.Deleted, jobOutcome.Deleted...)
	}
	return outcome, nil
}

func (w *Workflow) broadcastOutcome(outcome projector.Outcome) {
	for _, ev := range outcome.Deleted {
		w.broadcaster.EventDeleted(ev)
	}
	for _, ev := range outcome.Created {
		w.broadcaster.EventCreated(ev)
	}
	for _, ev := range outcome.Updated {
		w.broadcaster.EventUpdated(ev)
	}
}

// ValidateTransition checks the forward-only status rules before a caller
// persists a change. It returns a descriptive error for illegal edges.
func ValidateTransition(entityType, oldStatus, newStatus string) error {
	switch entityType {
	case EntityBooking:
		if !models.BookingStatus(oldStatus).CanTransitionTo(models.BookingStatus(newStatus)) {
			return fmt.Errorf("illegal booking transition %s -> %s", oldStatus, newStatus)
		}
	case EntityJob:
		if !models.JobStatus(oldStatus).CanTransitionTo(models.JobStatus(newStatus)) {
			return fmt.Errorf("illegal job transition %s -> %s", oldStatus, newStatus)
		}
	default:
		return fmt.Errorf("unknown entity type %q", entityType)
	}
	return nil
}
