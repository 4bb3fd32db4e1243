package projector

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stayflow/backend/internal/storage"
	"github.com/stayflow/backend/internal/storage/models"
)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.RunMigrations(db, zap.NewNop()))
	return db
}

func testBooking() *models.Booking {
	return &models.Booking{
		ID:             "bk-1",
		SourcePlatform: models.SourceAirbnb,
		PropertyID:     "prop-1",
		GuestName:      "Ada Lovelace",
		CheckIn:        time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC),
		CheckOut:       time.Date(2026, 6, 5, 11, 0, 0, 0, time.UTC),
		Status:         models.BookingConfirmed,
	}
}

func TestSyncBookingCreatesThenUpdatesInPlace(t *testing.T) {
	db := newTestDB(t)
	events := storage.NewEventRepository(db)
	p := New(events, 0, zap.NewNop())
	ctx := context.Background()

	b := testBooking()

	out, err := p.SyncBooking(ctx, b)
	require.NoError(t, err)
	require.Len(t, out.Created, 1)
	created := out.Created[0]
	assert.Equal(t, "Guest: Ada Lovelace (airbnb)", created.Title)
	assert.Equal(t, "booking", created.Category)
	assert.True(t, created.Blocking)

	// Replayed projection updates the same event instead of duplicating it.
	b.CheckOut = time.Date(2026, 6, 6, 11, 0, 0, 0, time.UTC)
	out, err = p.SyncBooking(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, out.Created)
	require.Len(t, out.Updated, 1)
	assert.Equal(t, created.ID, out.Updated[0].ID)

	stored, err := events.ListBySource(ctx, models.SourceBooking, b.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].End.Equal(b.CheckOut))
}

func TestSyncBookingCancelledRemovesEvents(t *testing.T) {
	db := newTestDB(t)
	events := storage.NewEventRepository(db)
	p := New(events, 0, zap.NewNop())
	ctx := context.Background()

	b := testBooking()
	_, err := p.SyncBooking(ctx, b)
	require.NoError(t, err)

	b.Status = models.BookingCancelled
	out, err := p.SyncBooking(ctx, b)
	require.NoError(t, err)
	assert.Len(t, out.Deleted, 1)

	stored, err := events.ListBySource(ctx, models.SourceBooking, b.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)

	// Cancelling again is a no-op, not an error.
	out, err = p.SyncBooking(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, out.Deleted)
}

func TestSyncRecurringJobReplacesSeries(t *testing.T) {
	db := newTestDB(t)
	events := storage.NewEventRepository(db)
	p := New(events, 0, zap.NewNop())
	ctx := context.Background()

	// An unrelated booking event must survive series regeneration.
	other := testBooking()
	_, err := p.SyncBooking(ctx, other)
	require.NoError(t, err)

	rule := "RRULE:FREQ=WEEKLY;COUNT=4"
	job := &models.Job{
		ID:                   "job-1",
		JobType:              "pool maintenance",
		PropertyID:           "prop-1",
		Status:               models.JobAssigned,
		ScheduledStart:       time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC),
		EstimatedDurationMin: 60,
		Recurrence:           &rule,
	}

	out, err := p.SyncJob(ctx, job)
	require.NoError(t, err)
	require.Len(t, out.Created, 4)

	firstSeries := out.Created[0].SeriesID
	require.NotNil(t, firstSeries)
	for _, ev := range out.Created {
		require.NotNil(t, ev.SeriesID)
		assert.Equal(t, *firstSeries, *ev.SeriesID)
		assert.False(t, ev.Blocking)
	}
	// Weekly cadence from the scheduled start.
	assert.True(t, out.Created[1].Start.Equal(job.ScheduledStart.AddDate(0, 0, 7)))

	// Regeneration replaces the whole series under a fresh series ID.
	out, err = p.SyncJob(ctx, job)
	require.NoError(t, err)
	assert.Len(t, out.Deleted, 4)
	require.Len(t, out.Created, 4)
	assert.NotEqual(t, *firstSeries, *out.Created[0].SeriesID)

	stored, err := events.ListBySource(ctx, models.SourceJob, job.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 4)

	// The booking's event is untouched.
	bookingEvents, err := events.ListBySource(ctx, models.SourceBooking, other.ID)
	require.NoError(t, err)
	assert.Len(t, bookingEvents, 1)
}

func TestRecurrenceExpansionIsCapped(t *testing.T) {
	db := newTestDB(t)
	events := storage.NewEventRepository(db)
	p := New(events, 5, zap.NewNop())
	ctx := context.Background()

	rule := "FREQ=DAILY"
	job := &models.Job{
		ID:                   "job-2",
		JobType:              "cleaning",
		PropertyID:           "prop-1",
		Status:               models.JobAssigned,
		ScheduledStart:       time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC),
		EstimatedDurationMin: 120,
		Recurrence:           &rule,
	}

	out, err := p.SyncJob(ctx, job)
	require.NoError(t, err)
	assert.Len(t, out.Created, 5)
}

func TestSyncJobInvalidRecurrenceFails(t *testing.T) {
	db := newTestDB(t)
	p := New(storage.NewEventRepository(db), 0, zap.NewNop())

	rule := "FREQ=SOMETIMES"
	job := &models.Job{
		ID:                   "job-3",
		JobType:              "cleaning",
		PropertyID:           "prop-1",
		Status:               models.JobAssigned,
		ScheduledStart:       time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC),
		EstimatedDurationMin: 60,
		Recurrence:           &rule,
	}

	_, err := p.SyncJob(context.Background(), job)
	require.Error(t, err)
}
