package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stayflow/backend/internal/conflict"
	"github.com/stayflow/backend/internal/keylock"
	"github.com/stayflow/backend/internal/projector"
	"github.com/stayflow/backend/internal/realtime"
	"github.com/stayflow/backend/internal/storage"
	"github.com/stayflow/backend/internal/storage/models"
)

// failingNotifier simulates an unreachable webhook endpoint.
type failingNotifier struct{ calls int }

func (n *failingNotifier) BookingConfirmed(ctx context.Context, b *models.Booking) error {
	n.calls++
	return fmt.Errorf("endpoint unreachable")
}

type harness struct {
	bookings *storage.BookingRepository
	jobs     *storage.JobRepository
	events   *storage.EventRepository
	alerts   *storage.ConflictRepository
	wf       *Workflow
}

func newHarness(t *testing.T, notifier Notifier) *harness {
	t.Helper()
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.RunMigrations(db, zap.NewNop()))

	log := zap.NewNop()
	bookings := storage.NewBookingRepository(db)
	jobs := storage.NewJobRepository(db)
	events := storage.NewEventRepository(db)
	alerts := storage.NewConflictRepository(db)

	hub := realtime.NewHub(16, time.Hour, log)
	broadcaster := realtime.NewBroadcaster(hub)
	proj := projector.New(events, 0, log)
	detector := conflict.NewDetector(bookings, events, jobs, alerts, log)

	wf := New(bookings, jobs, alerts, proj, detector, notifier, broadcaster,
		keylock.NewRegistry(), Options{}, log)

	return &harness{
		bookings: bookings,
		jobs:     jobs,
		events:   events,
		alerts:   alerts,
		wf:       wf,
	}
}

func (h *harness) addBooking(t *testing.T, status models.BookingStatus) *models.Booking {
	t.Helper()
	b := &models.Booking{
		SourcePlatform: models.SourceManual,
		PropertyID:     "prop-1",
		GuestName:      "Jane Doe",
		CheckIn:        time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC),
		CheckOut:       time.Date(2026, 6, 5, 11, 0, 0, 0, time.UTC),
		Status:         status,
	}
	require.NoError(t, h.bookings.Create(context.Background(), b))
	return b
}

func (h *harness) addJob(t *testing.T, status models.JobStatus) *models.Job {
	t.Helper()
	j := &models.Job{
		JobType:              "cleaning",
		PropertyID:           "prop-1",
		Status:               status,
		ScheduledStart:       time.Date(2026, 6, 5, 11, 0, 0, 0, time.UTC),
		EstimatedDurationMin: 120,
	}
	require.NoError(t, h.jobs.Create(context.Background(), j))
	return j
}

func confirmSignal(bookingID string) TransitionSignal {
	return TransitionSignal{
		EntityType:  EntityBooking,
		EntityID:    bookingID,
		OldStatus:   string(models.BookingApproved),
		NewStatus:   string(models.BookingConfirmed),
		TriggeredBy: "test",
	}
}

func TestBookingConfirmedDerivesEvent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	b := h.addBooking(t, models.BookingConfirmed)

	result, err := h.wf.OnTransition(ctx, confirmSignal(b.ID))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.PartialFailure)
	require.Len(t, result.CalendarEventIDs, 1)

	events, err := h.events.ListBySource(ctx, models.SourceBooking, b.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, result.CalendarEventIDs[0], events[0].ID)
}

func TestReplayedTransitionNeverDuplicatesEvents(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	b := h.addBooking(t, models.BookingConfirmed)

	var firstID string
	for i := 0; i < 3; i++ {
		result, err := h.wf.OnTransition(ctx, confirmSignal(b.ID))
		require.NoError(t, err)
		require.Len(t, result.CalendarEventIDs, 1)
		if firstID == "" {
			firstID = result.CalendarEventIDs[0]
		}
		assert.Equal(t, firstID, result.CalendarEventIDs[0], "replay must keep the event ID stable")
	}

	events, err := h.events.ListBySource(ctx, models.SourceBooking, b.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestBookingCancelledRemovesEventsAndResolvesConflicts(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first := h.addBooking(t, models.BookingConfirmed)
	_, err := h.wf.OnTransition(ctx, confirmSignal(first.ID))
	require.NoError(t, err)

	second := h.addBooking(t, models.BookingConfirmed)
	result, err := h.wf.OnTransition(ctx, confirmSignal(second.ID))
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1, "double booking must raise a conflict")

	require.NoError(t, h.bookings.UpdateStatus(ctx, second.ID, models.BookingCancelled))
	_, err = h.wf.OnTransition(ctx, TransitionSignal{
		EntityType: EntityBooking,
		EntityID:   second.ID,
		OldStatus:  string(models.BookingConfirmed),
		NewStatus:  string(models.BookingCancelled),
	})
	require.NoError(t, err)

	events, err := h.events.ListBySource(ctx, models.SourceBooking, second.ID)
	require.NoError(t, err)
	assert.Empty(t, events)

	open, err := h.alerts.ListByProperty(ctx, "prop-1", true)
	require.NoError(t, err)
	assert.Empty(t, open, "cancellation must resolve the conflicts it caused")
}

func TestNotifierFailureIsPartialNotFatal(t *testing.T) {
	notifier := &failingNotifier{}
	h := newHarness(t, notifier)
	ctx := context.Background()

	b := h.addBooking(t, models.BookingConfirmed)

	result, err := h.wf.OnTransition(ctx, confirmSignal(b.ID))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.PartialFailure)
	assert.Equal(t, 1, notifier.calls)

	// Calendar state is committed despite the failed dispatch.
	events, err := h.events.ListBySource(ctx, models.SourceBooking, b.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestJobForwardTransitionsShareOneEvent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	j := h.addJob(t, models.JobUnassigned)

	// Unassigned jobs have no calendar presence.
	events, err := h.events.ListBySource(ctx, models.SourceJob, j.ID)
	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, h.jobs.UpdateStatus(ctx, j.ID, models.JobAssigned, nil))
	result, err := h.wf.OnTransition(ctx, TransitionSignal{
		EntityType: EntityJob,
		EntityID:   j.ID,
		OldStatus:  string(models.JobUnassigned),
		NewStatus:  string(models.JobAssigned),
	})
	require.NoError(t, err)
	require.Len(t, result.CalendarEventIDs, 1)
	createdID := result.CalendarEventIDs[0]

	require.NoError(t, h.jobs.UpdateStatus(ctx, j.ID, models.JobInProgress, nil))
	result, err = h.wf.OnTransition(ctx, TransitionSignal{
		EntityType: EntityJob,
		EntityID:   j.ID,
		OldStatus:  string(models.JobAssigned),
		NewStatus:  string(models.JobInProgress),
	})
	require.NoError(t, err)
	require.Len(t, result.CalendarEventIDs, 1)
	assert.Equal(t, createdID, result.CalendarEventIDs[0], "progress updates restyle the same event")

	stored, err := h.events.GetByID(ctx, createdID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, string(models.JobInProgress), stored.Status)
}

func TestJobCancelledRemovesEvent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	j := h.addJob(t, models.JobAssigned)
	_, err := h.wf.OnTransition(ctx, TransitionSignal{
		EntityType: EntityJob,
		EntityID:   j.ID,
		OldStatus:  string(models.JobUnassigned),
		NewStatus:  string(models.JobAssigned),
	})
	require.NoError(t, err)

	require.NoError(t, h.jobs.UpdateStatus(ctx, j.ID, models.JobCancelled, nil))
	result, err := h.wf.OnTransition(ctx, TransitionSignal{
		EntityType: EntityJob,
		EntityID:   j.ID,
		OldStatus:  string(models.JobAssigned),
		NewStatus:  string(models.JobCancelled),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	events, err := h.events.ListBySource(ctx, models.SourceJob, j.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEnqueueFollowUpJobIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	b := h.addBooking(t, models.BookingConfirmed)

	first, err := h.wf.EnqueueFollowUpJob(ctx, b)
	require.NoError(t, err)
	second, err := h.wf.EnqueueFollowUpJob(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	jobs, err := h.jobs.ListByBooking(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobUnassigned, jobs[0].Status)
	assert.True(t, jobs[0].ScheduledStart.Equal(b.CheckOut))
	assert.False(t, jobs[0].AllowDuringStay)
}

func TestUnknownEntityTypeIsRejectedNotFatal(t *testing.T) {
	h := newHarness(t, nil)

	result, err := h.wf.OnTransition(context.Background(), TransitionSignal{
		EntityType: "property",
		EntityID:   "x",
		NewStatus:  "confirmed",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name       string
		entityType string
		old, next  string
		wantErr    bool
	}{
		{"booking forward", EntityBooking, "pending", "approved", false},
		{"booking skip ahead", EntityBooking, "pending", "confirmed", false},
		{"booking backward", EntityBooking, "confirmed", "pending", true},
		{"booking cancel", EntityBooking, "approved", "cancelled", false},
		{"booking uncancel", EntityBooking, "cancelled", "pending", true},
		{"job forward", EntityJob, "assigned", "accepted", false},
		{"job backward", EntityJob, "in_progress", "assigned", true},
		{"job cancel anytime", EntityJob, "in_progress", "cancelled", false},
		{"job after completion", EntityJob, "completed", "in_progress", true},
		{"unknown entity", "property", "a", "b", true},
		{"unknown status", EntityBooking, "pending", "archived", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.entityType, tt.old, tt.next)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
