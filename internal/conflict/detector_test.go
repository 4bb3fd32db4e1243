package conflict

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

type fixture struct {
	bookings *storage.BookingRepository
	jobs     *storage.JobRepository
	events   *storage.EventRepository
	alerts   *storage.ConflictRepository
	detector *Detector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.RunMigrations(db, zap.NewNop()))

	f := &fixture{
		bookings: storage.NewBookingRepository(db),
		jobs:     storage.NewJobRepository(db),
		events:   storage.NewEventRepository(db),
		alerts:   storage.NewConflictRepository(db),
	}
	f.detector = NewDetector(f.bookings, f.events, f.jobs, f.alerts, zap.NewNop())
	return f
}

func (f *fixture) addBooking(t *testing.T, propertyID string, checkIn, checkOut time.Time, status models.BookingStatus) *models.Booking {
	t.Helper()
	b := &models.Booking{
		SourcePlatform: models.SourceManual,
		PropertyID:     propertyID,
		GuestName:      "guest",
		CheckIn:        checkIn,
		CheckOut:       checkOut,
		Status:         status,
	}
	require.NoError(t, f.bookings.Create(context.Background(), b))
	return b
}

func day(d int) time.Time {
	return time.Date(2026, 6, d, 12, 0, 0, 0, time.UTC)
}

func TestOverlapsHalfOpen(t *testing.T) {
	tests := []struct {
		name string
		a, b models.Interval
		want bool
	}{
		{
			name: "clear overlap",
			a:    models.Interval{Start: day(1), End: day(5)},
			b:    models.Interval{Start: day(3), End: day(8)},
			want: true,
		},
		{
			name: "containment",
			a:    models.Interval{Start: day(1), End: day(10)},
			b:    models.Interval{Start: day(3), End: day(5)},
			want: true,
		},
		{
			name: "checkout equals checkin does not conflict",
			a:    models.Interval{Start: day(1), End: day(5)},
			b:    models.Interval{Start: day(5), End: day(9)},
			want: false,
		},
		{
			name: "disjoint",
			a:    models.Interval{Start: day(1), End: day(3)},
			b:    models.Interval{Start: day(6), End: day(9)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a), "overlap must be symmetric")
		})
	}
}

func TestGuestVsGuestIsCritical(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing := f.addBooking(t, "prop-1", day(1), day(5), models.BookingConfirmed)
	incoming := f.addBooking(t, "prop-1", day(3), day(8), models.BookingConfirmed)

	alerts, err := f.detector.CheckConflicts(ctx, "prop-1", Candidate{
		SourceID: incoming.ID,
		Kind:     KindGuest,
		Interval: incoming.Interval(),
	})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, existing.ID, alerts[0].SourceBID)

	overlap := alerts[0].Overlap()
	assert.True(t, overlap.Start.Equal(day(3)))
	assert.True(t, overlap.End.Equal(day(5)))
}

func TestBackToBackTurnoverDoesNotConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addBooking(t, "prop-1", day(1), day(5), models.BookingConfirmed)
	incoming := f.addBooking(t, "prop-1", day(5), day(9), models.BookingConfirmed)

	alerts, err := f.detector.CheckConflicts(ctx, "prop-1", Candidate{
		SourceID: incoming.ID,
		Kind:     KindGuest,
		Interval: incoming.Interval(),
	})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestPendingBookingsAreIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addBooking(t, "prop-1", day(1), day(5), models.BookingPending)
	incoming := f.addBooking(t, "prop-1", day(3), day(8), models.BookingConfirmed)

	alerts, err := f.detector.CheckConflicts(ctx, "prop-1", Candidate{
		SourceID: incoming.ID,
		Kind:     KindGuest,
		Interval: incoming.Interval(),
	})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestJobInsideStayWithoutAllowanceIsWarning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking := f.addBooking(t, "prop-1", day(1), day(5), models.BookingConfirmed)

	job := &models.Job{
		JobType:              "maintenance",
		PropertyID:           "prop-1",
		Status:               models.JobAssigned,
		ScheduledStart:       day(2),
		EstimatedDurationMin: 120,
		AllowDuringStay:      false,
	}
	require.NoError(t, f.jobs.Create(ctx, job))

	// From the guest's side the job shows up as a warning.
	alerts, err := f.detector.CheckConflicts(ctx, "prop-1", Candidate{
		SourceID: booking.ID,
		Kind:     KindGuest,
		Interval: booking.Interval(),
	})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityWarning, alerts[0].Severity)
	assert.Equal(t, job.ID, alerts[0].SourceBID)

	// From the job's side the stay shows up as a warning too.
	jobAlerts, err := f.detector.CheckConflicts(ctx, "prop-1", Candidate{
		SourceID:        job.ID,
		Kind:            KindJob,
		Interval:        job.Window(),
		AllowDuringStay: false,
	})
	require.NoError(t, err)
	require.Len(t, jobAlerts, 1)
	assert.Equal(t, models.SeverityWarning, jobAlerts[0].Severity)
}

func TestJobWithAllowanceIsNoConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addBooking(t, "prop-1", day(1), day(5), models.BookingConfirmed)

	alerts, err := f.detector.CheckConflicts(ctx, "prop-1", Candidate{
		SourceID:        "job-x",
		Kind:            KindJob,
		Interval:        models.Interval{Start: day(2), End: day(2).Add(2 * time.Hour)},
		AllowDuringStay: true,
	})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestRepeatedChecksDoNotDuplicateAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addBooking(t, "prop-1", day(1), day(5), models.BookingConfirmed)
	incoming := f.addBooking(t, "prop-1", day(3), day(8), models.BookingConfirmed)

	candidate := Candidate{
		SourceID: incoming.ID,
		Kind:     KindGuest,
		Interval: incoming.Interval(),
	}

	for i := 0; i < 3; i++ {
		_, err := f.detector.CheckConflicts(ctx, "prop-1", candidate)
		require.NoError(t, err)
	}

	open, err := f.alerts.ListByProperty(ctx, "prop-1", true)
	require.NoError(t, err)
	assert.Len(t, open, 1, "replayed checks must not stack open alerts")
}

func TestPropertiesAreIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addBooking(t, "prop-other", day(1), day(5), models.BookingConfirmed)
	incoming := f.addBooking(t, "prop-1", day(3), day(8), models.BookingConfirmed)

	alerts, err := f.detector.CheckConflicts(ctx, "prop-1", Candidate{
		SourceID: incoming.ID,
		Kind:     KindGuest,
		Interval: incoming.Interval(),
	})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}
