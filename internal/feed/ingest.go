package feed

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stayflow/backend/internal/keylock"
	"github.com/stayflow/backend/internal/storage"
	"github.com/stayflow/backend/internal/storage/models"
	"github.com/stayflow/backend/internal/workflow"
)

// Engine reconciles third-party feeds against the booking store. One sync
// run per property; runs for different properties may execute concurrently,
// runs for the same property serialize on an advisory lock.
type Engine struct {
	configs  *storage.SyncConfigRepository
	bookings *storage.BookingRepository
	fetcher  *Fetcher
	parser   *Parser
	workflow *workflow.Workflow
	locks    *keylock.Registry

	// checkinTime/checkoutTime ("HH:MM") turn date-only feed entries into
	// occupancy windows.
	checkinTime  string
	checkoutTime string

	log *zap.Logger
}

// NewEngine creates an ingestion engine.
func NewEngine(
	configs *storage.SyncConfigRepository,
	bookings *storage.BookingRepository,
	fetcher *Fetcher,
	wf *workflow.Workflow,
	locks *keylock.Registry,
	checkinTime, checkoutTime string,
	log *zap.Logger,
) *Engine {
	return &Engine{
		configs:      configs,
		bookings:     bookings,
		fetcher:      fetcher,
		parser:       NewParser(),
		workflow:     wf,
		locks:        locks,
		checkinTime:  checkinTime,
		checkoutTime: checkoutTime,
		log:          log,
	}
}

// SyncProperty fetches every configured feed for the property and reconciles
// the entries: unknown external IDs create confirmed bookings, changed
// entries update in place, and entries that disappeared upstream cancel
// their booking. Manual bookings are never touched. Per-entry failures are
// collected in the result; they never abort the rest of the run.
func (e *Engine) SyncProperty(ctx context.Context, cfg models.SyncConfig) models.SyncResult {
	// Serializes whole-property sync runs. Entity-level derivation inside
	// the workflow takes its own finer-grained lock.
	unlock := e.locks.Lock("sync:property:" + cfg.PropertyID)
	defer unlock()

	result := models.SyncResult{
		PropertyID: cfg.PropertyID,
		SyncedAt:   time.Now().UTC(),
	}

	if cfg.ID != "" {
		if err := e.configs.UpdateSyncStatus(ctx, cfg.ID, models.SyncStatusSyncing, nil); err != nil {
			e.log.Warn("failed to mark sync status", zap.String("config_id", cfg.ID), zap.Error(err))
		}
	}

	for _, feed := range cfg.Feeds {
		e.syncFeed(ctx, &cfg, feed, &result)
	}

	if cfg.ID != "" {
		status := models.SyncStatusSuccess
		var errMsg *string
		if result.Failed() {
			status = models.SyncStatusError
			msg := fmt.Sprintf("%d errors; first: %s", len(result.Errors), result.Errors[0].Message)
			errMsg = &msg
		}
		if err := e.configs.UpdateSyncStatus(ctx, cfg.ID, status, errMsg); err != nil {
			e.log.Warn("failed to record sync outcome", zap.String("config_id", cfg.ID), zap.Error(err))
		}
	}

	e.log.Info("property sync completed",
		zap.String("property_id", cfg.PropertyID),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("removed", result.Removed),
		zap.Int("errors", len(result.Errors)))
	return result
}

// syncFeed reconciles one platform's feed. When the fetch fails or the
// payload is not a calendar, the platform's existing bookings are left
// untouched; upstream-deletion detection only runs against a feed we
// actually read. A malformed VEVENT is skipped, never treated as deleted.
func (e *Engine) syncFeed(ctx context.Context, cfg *models.SyncConfig, feed models.FeedSource, result *models.SyncResult) {
	body, err := e.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		result.Errors = append(result.Errors, models.SyncError{
			Platform: feed.Platform,
			Message:  err.Error(),
		})
		return
	}

	entries, parseErrs, err := e.parser.Parse(bytes.NewReader(body))
	if err != nil {
		result.Errors = append(result.Errors, models.SyncError{
			Platform: feed.Platform,
			Message:  err.Error(),
		})
		return
	}

	seen := make(map[string]bool, len(entries)+len(parseErrs))
	for _, perr := range parseErrs {
		result.Errors = append(result.Errors, models.SyncError{
			Platform: feed.Platform,
			EntryUID: perr.UID,
			Message:  perr.Error(),
		})
		// The entry is present upstream, just unreadable; its booking must
		// survive removal detection.
		if perr.UID != "" {
			seen[perr.UID] = true
		}
	}

	for _, entry := range entries {
		seen[entry.UID] = true
		if err := e.reconcileEntry(ctx, cfg, feed.Platform, entry, result); err != nil {
			result.Errors = append(result.Errors, models.SyncError{
				Platform: feed.Platform,
				EntryUID: entry.UID,
				Message:  err.Error(),
			})
		}
	}

	e.removeVanished(ctx, cfg.PropertyID, feed.Platform, seen, result)
}

// reconcileEntry applies one feed entry to the store.
func (e *Engine) reconcileEntry(ctx context.Context, cfg *models.SyncConfig, platform models.SourcePlatform, entry Entry, result *models.SyncResult) error {
	checkIn, checkOut := e.occupancyWindow(entry)

	existing, err := e.bookings.GetByExternalID(ctx, cfg.PropertyID, platform, entry.UID)
	if err != nil {
		return fmt.Errorf("looking up booking: %w", err)
	}

	if existing == nil {
		booking := &models.Booking{
			ExternalID:     &entry.UID,
			SourcePlatform: platform,
			PropertyID:     cfg.PropertyID,
			GuestName:      entry.Summary,
			CheckIn:        checkIn,
			CheckOut:       checkOut,
			// Feeds carry already-confirmed external reservations.
			Status: models.BookingConfirmed,
		}
		if err := e.bookings.Create(ctx, booking); err != nil {
			return fmt.Errorf("creating booking: %w", err)
		}
		result.Created++

		if _, err := e.workflow.OnTransition(ctx, workflow.TransitionSignal{
			EntityType:  workflow.EntityBooking,
			EntityID:    booking.ID,
			OldStatus:   string(models.BookingPending),
			NewStatus:   string(models.BookingConfirmed),
			TriggeredBy: "feed-sync",
		}); err != nil {
			return fmt.Errorf("deriving calendar for new booking: %w", err)
		}

		if cfg.EnableAutoJobCreation {
			if _, err := e.workflow.EnqueueFollowUpJob(ctx, booking); err != nil {
				// The booking itself is committed; report and move on.
				return fmt.Errorf("enqueuing follow-up job: %w", err)
			}
		}
		return nil
	}

	// Update in place when the interval or summary changed; ingestion never
	// touches status.
	if existing.CheckIn.Equal(checkIn) && existing.CheckOut.Equal(checkOut) && existing.GuestName == entry.Summary {
		return nil
	}

	existing.CheckIn = checkIn
	existing.CheckOut = checkOut
	existing.GuestName = entry.Summary
	if err := e.bookings.Update(ctx, existing); err != nil {
		return fmt.Errorf("updating booking: %w", err)
	}
	result.Updated++

	if _, err := e.workflow.RefreshBooking(ctx, existing); err != nil {
		return fmt.Errorf("refreshing calendar for updated booking: %w", err)
	}
	return nil
}

// removeVanished cancels feed bookings whose external ID no longer appears
// in the latest fetch — the reservation was deleted upstream.
func (e *Engine) removeVanished(ctx context.Context, propertyID string, platform models.SourcePlatform, seen map[string]bool, result *models.SyncResult) {
	existing, err := e.bookings.ListFeedBookings(ctx, propertyID, platform)
	if err != nil {
		result.Errors = append(result.Errors, models.SyncError{
			Platform: platform,
			Message:  fmt.Sprintf("listing feed bookings: %v", err),
		})
		return
	}

	for i := range existing {
		b := &existing[i]
		if b.ExternalID == nil || seen[*b.ExternalID] {
			continue
		}

		oldStatus := b.Status
		if err := e.bookings.UpdateStatus(ctx, b.ID, models.BookingCancelled); err != nil {
			result.Errors = append(result.Errors, models.SyncError{
				Platform: platform,
				EntryUID: *b.ExternalID,
				Message:  fmt.Sprintf("cancelling booking: %v", err),
			})
			continue
		}
		result.Removed++

		if _, err := e.workflow.OnTransition(ctx, workflow.TransitionSignal{
			EntityType:  workflow.EntityBooking,
			EntityID:    b.ID,
			OldStatus:   string(oldStatus),
			NewStatus:   string(models.BookingCancelled),
			TriggeredBy: "feed-sync",
		}); err != nil {
			result.Errors = append(result.Errors, models.SyncError{
				Platform: platform,
				EntryUID: *b.ExternalID,
				Message:  fmt.Sprintf("removing calendar events: %v", err),
			})
		}
	}
}

// SyncAll runs SyncProperty for every enabled config. A failing property
// never aborts the batch.
func (e *Engine) SyncAll(ctx context.Context) ([]models.SyncResult, error) {
	configs, err := e.configs.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing enabled sync configs: %w", err)
	}

	results := make([]models.SyncResult, 0, len(configs))
	for _, cfg := range configs {
		results = append(results, e.SyncProperty(ctx, cfg))
	}
	return results, nil
}

// occupancyWindow applies the property's check-in/check-out times to
// date-only entries; timed entries pass through unchanged.
func (e *Engine) occupancyWindow(entry Entry) (checkIn, checkOut time.Time) {
	if !entry.AllDay {
		return entry.Start, entry.End
	}
	checkIn = applyClock(entry.Start, e.checkinTime, 15, 0)
	checkOut = applyClock(entry.End, e.checkoutTime, 11, 0)
	return checkIn, checkOut
}

// applyClock sets the time-of-day on a date from an "HH:MM" string.
func applyClock(date time.Time, clock string, defaultHour, defaultMinute int) time.Time {
	hour, minute := defaultHour, defaultMinute
	if len(clock) >= 4 {
		var h, m int
		if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err == nil {
			hour, minute = h, m
		}
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())
}
