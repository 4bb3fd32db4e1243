// Package projector derives calendar events from bookings and jobs. It is
// the only component that writes calendar event records; everything else
// treats them as a read-only projection.
package projector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stayflow/backend/internal/storage"
	"github.com/stayflow/backend/internal/storage/models"
)

// Outcome lists the event mutations a projection produced, so callers can
// broadcast them to live subscribers.
type Outcome struct {
	Created []models.CalendarEvent
	Updated []models.CalendarEvent
	Deleted []models.CalendarEvent
}

// EventIDs returns the IDs of all events the projection left in place.
func (o *Outcome) EventIDs() []string {
	ids := make([]string, 0, len(o.Created)+len(o.Updated))
	for _, e := range o.Created {
		ids = append(ids, e.ID)
	}
	for _, e := range o.Updated {
		ids = append(ids, e.ID)
	}
	return ids
}

// Projector derives and maintains calendar events.
type Projector struct {
	events         *storage.EventRepository
	maxOccurrences int
	log            *zap.Logger
}

// New creates a projector. maxOccurrences caps recurrence expansion.
func New(events *storage.EventRepository, maxOccurrences int, log *zap.Logger) *Projector {
	if maxOccurrences <= 0 {
		maxOccurrences = 100
	}
	return &Projector{events: events, maxOccurrences: maxOccurrences, log: log}
}

// SyncBooking derives the calendar event for a booking, creating it if
// missing and updating it in place otherwise. A cancelled booking removes
// its events. The check-before-create keeps transition replays idempotent.
func (p *Projector) SyncBooking(ctx context.Context, b *models.Booking) (Outcome, error) {
	var out Outcome

	if b.Status == models.BookingCancelled {
		deleted, err := p.events.DeleteBySource(ctx, models.SourceBooking, b.ID)
		if err != nil {
			return out, fmt.Errorf("removing booking events: %w", err)
		}
		out.Deleted = deleted
		return out, nil
	}

	derived := deriveBookingEvent(b)

	existing, err := p.events.ListBySource(ctx, models.SourceBooking, b.ID)
	if err != nil {
		return out, fmt.Errorf("looking up booking events: %w", err)
	}

	if len(existing) == 0 {
		if err := p.events.Create(ctx, &derived); err != nil {
			return out, err
		}
		out.Created = append(out.Created, derived)
		return out, nil
	}

	// Update the existing event in place, keeping its ID stable.
	ev := existing[0]
	ev.Title = derived.Title
	ev.Start = derived.Start
	ev.End = derived.End
	ev.Status = derived.Status
	if err := p.events.Update(ctx, &ev); err != nil {
		return out, err
	}
	out.Updated = append(out.Updated, ev)
	return out, nil
}

// SyncJob derives calendar events for a job. Non-recurring jobs get a single
// event updated in place; recurring jobs get their whole series replaced so
// every occurrence reflects the current rule. A cancelled job removes its
// events.
func (p *Projector) SyncJob(ctx context.Context, j *models.Job) (Outcome, error) {
	var out Outcome

	if j.Status == models.JobCancelled {
		deleted, err := p.events.DeleteBySource(ctx, models.SourceJob, j.ID)
		if err != nil {
			return out, fmt.Errorf("removing job events: %w", err)
		}
		out.Deleted = deleted
		return out, nil
	}

	if j.IsRecurring() {
		return p.syncRecurringJob(ctx, j)
	}

	derived := deriveJobEvent(j, j.Window(), nil)

	existing, err := p.events.ListBySource(ctx, models.SourceJob, j.ID)
	if err != nil {
		return out, fmt.Errorf("looking up job events: %w", err)
	}

	if len(existing) == 0 {
		if err := p.events.Create(ctx, &derived); err != nil {
			return out, err
		}
		out.Created = append(out.Created, derived)
		return out, nil
	}

	ev := existing[0]
	ev.Title = derived.Title
	ev.Start = derived.Start
	ev.End = derived.End
	ev.Status = derived.Status
	if err := p.events.Update(ctx, &ev); err != nil {
		return out, err
	}
	out.Updated = append(out.Updated, ev)
	return out, nil
}

// Remove deletes all events derived from a source record.
func (p *Projector) Remove(ctx context.Context, sourceType models.SourceType, sourceID string) ([]models.CalendarEvent, error) {
	return p.events.DeleteBySource(ctx, sourceType, sourceID)
}

func deriveBookingEvent(b *models.Booking) models.CalendarEvent {
	title := "Reservation"
	if b.GuestName != "" {
		title = fmt.Sprintf("Guest: %s", b.GuestName)
	}
	if b.SourcePlatform != models.SourceManual {
		title = fmt.Sprintf("%s (%s)", title, b.SourcePlatform)
	}

	return models.CalendarEvent{
		SourceType: models.SourceBooking,
		SourceID:   b.ID,
		PropertyID: b.PropertyID,
		Title:      title,
		Start:      b.CheckIn,
		End:        b.CheckOut,
		Category:   "booking",
		Blocking:   true,
		Status:     string(b.Status),
	}
}

func deriveJobEvent(j *models.Job, window models.Interval, seriesID *string) models.CalendarEvent {
	return models.CalendarEvent{
		SourceType: models.SourceJob,
		SourceID:   j.ID,
		PropertyID: j.PropertyID,
		Title:      j.JobType,
		Start:      window.Start,
		End:        window.End,
		SeriesID:   seriesID,
		Category:   "job",
		Blocking:   false,
		Status:     string(j.Status),
	}
}
