// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/stayflow/backend/internal/feed"
	"github.com/stayflow/backend/internal/realtime"
	"github.com/stayflow/backend/internal/storage"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.Ping() == nil

		status := "healthy"
		if !dbConnected {
			status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		})
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	BookingsCount   int     `json:"bookings_count"`
	JobsCount       int     `json:"jobs_count"`
	EventsCount     int     `json:"events_count"`
	OpenConflicts   int     `json:"open_conflicts"`
	SyncConfigs     int     `json:"sync_configs"`
	Subscribers     int     `json:"subscribers"`
	DroppedMessages uint64  `json:"dropped_messages"`
	NextSyncAt      *string `json:"next_sync_at,omitempty"`
}

// Status returns a handler that provides system status information.
func Status(db *storage.DB, hub *realtime.Hub, configs *storage.SyncConfigRepository, scheduler *feed.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var resp StatusResponse
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings WHERE status != 'cancelled'").Scan(&resp.BookingsCount)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs WHERE status NOT IN ('cancelled', 'completed')").Scan(&resp.JobsCount)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calendar_events").Scan(&resp.EventsCount)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conflict_alerts WHERE resolved = 0").Scan(&resp.OpenConflicts)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_configs WHERE enabled = 1").Scan(&resp.SyncConfigs)

		resp.Subscribers = hub.SubscriberCount()
		resp.DroppedMessages = hub.DroppedTotal()

		// Earliest upcoming scheduled sync across enabled configs.
		if scheduler != nil {
			var earliest *time.Time
			if list, err := configs.ListEnabled(ctx); err == nil {
				for _, cfg := range list {
					next := scheduler.NextRun(cfg.ID)
					if next == nil {
						continue
					}
					if earliest == nil || next.Before(*earliest) {
						earliest = next
					}
				}
			}
			if earliest != nil {
				s := earliest.UTC().Format(time.RFC3339)
				resp.NextSyncAt = &s
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
