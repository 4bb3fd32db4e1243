package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stayflow/backend/internal/api/middleware"
	"github.com/stayflow/backend/internal/feed"
	"github.com/stayflow/backend/internal/storage"
	"github.com/stayflow/backend/internal/storage/models"
)

// SyncConfigRequest creates or updates a property's ingestion config.
type SyncConfigRequest struct {
	PropertyID            string              `json:"property_id"`
	Feeds                 []models.FeedSource `json:"feeds"`
	EnableAutoJobCreation bool                `json:"enable_auto_job_creation"`
	SyncIntervalMin       int                 `json:"sync_interval_min"`
	Enabled               bool                `json:"enabled"`
}

func (req *SyncConfigRequest) validate() string {
	if req.PropertyID == "" {
		return "property_id is required"
	}
	if len(req.Feeds) == 0 {
		return "at least one feed is required"
	}
	for _, f := range req.Feeds {
		if f.Platform == "" || f.URL == "" {
			return "each feed needs a platform and url"
		}
		if f.Platform == models.SourceManual {
			return "manual is not a feed platform"
		}
	}
	return ""
}

// ListSyncConfigs returns every sync config.
func ListSyncConfigs(configs *storage.SyncConfigRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := configs.List(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query sync configs")
			return
		}
		if list == nil {
			list = []models.SyncConfig{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(list)
	}
}

// CreateSyncConfig adds a property's ingestion config and schedules it.
func CreateSyncConfig(configs *storage.SyncConfigRepository, scheduler *feed.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SyncConfigRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, msg)
			return
		}

		ctx := r.Context()
		if existing, err := configs.GetByProperty(ctx, req.PropertyID); err == nil && existing != nil {
			middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, "Property already has a sync config")
			return
		}

		cfg := &models.SyncConfig{
			PropertyID:            req.PropertyID,
			Feeds:                 req.Feeds,
			EnableAutoJobCreation: req.EnableAutoJobCreation,
			SyncIntervalMin:       req.SyncIntervalMin,
			Enabled:               req.Enabled,
			LastSyncStatus:        models.SyncStatusPending,
		}
		if err := configs.Create(ctx, cfg); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create sync config")
			return
		}

		if scheduler != nil {
			scheduler.ScheduleConfig(*cfg)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(cfg)
	}
}

// GetSyncConfig returns a single sync config by ID.
func GetSyncConfig(configs *storage.SyncConfigRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		cfg, err := configs.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query sync config")
			return
		}
		if cfg == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Sync config not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cfg)
	}
}

// UpdateSyncConfig replaces a sync config's settings and reschedules it.
func UpdateSyncConfig(configs *storage.SyncConfigRepository, scheduler *feed.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		ctx := r.Context()

		var req SyncConfigRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, msg)
			return
		}

		cfg, err := configs.GetByID(ctx, id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query sync config")
			return
		}
		if cfg == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Sync config not found")
			return
		}

		// The property binding is immutable; only settings and feeds change.
		cfg.Feeds = req.Feeds
		cfg.EnableAutoJobCreation = req.EnableAutoJobCreation
		cfg.SyncIntervalMin = req.SyncIntervalMin
		cfg.Enabled = req.Enabled
		if err := configs.Update(ctx, cfg); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update sync config")
			return
		}

		if scheduler != nil {
			scheduler.ScheduleConfig(*cfg)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cfg)
	}
}

// DeleteSyncConfig removes a sync config and unschedules it. Bookings already
// ingested are kept.
func DeleteSyncConfig(configs *storage.SyncConfigRepository, scheduler *feed.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		ctx := r.Context()

		cfg, err := configs.GetByID(ctx, id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query sync config")
			return
		}
		if cfg == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Sync config not found")
			return
		}

		if err := configs.Delete(ctx, id); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete sync config")
			return
		}

		if scheduler != nil {
			scheduler.UnscheduleConfig(id)
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// TriggerSyncConfig kicks off an immediate background sync for a config.
func TriggerSyncConfig(configs *storage.SyncConfigRepository, scheduler *feed.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		cfg, err := configs.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query sync config")
			return
		}
		if cfg == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Sync config not found")
			return
		}

		scheduler.TriggerSync(id)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "syncing"})
	}
}

// SyncRequest runs a one-off synchronous sync. When feeds are given inline
// the run uses them directly instead of the stored config.
type SyncRequest struct {
	PropertyID            string              `json:"property_id"`
	Feeds                 []models.FeedSource `json:"feeds,omitempty"`
	EnableAutoJobCreation bool                `json:"enable_auto_job_creation"`
}

// SyncNow runs an immediate sync and returns the per-feed outcome.
func SyncNow(configs *storage.SyncConfigRepository, engine *feed.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if req.PropertyID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "property_id is required")
			return
		}

		ctx := r.Context()
		var cfg models.SyncConfig

		if len(req.Feeds) > 0 {
			// Ad-hoc run with an empty config ID: sync status bookkeeping is
			// skipped since there is no stored config to record it on.
			cfg = models.SyncConfig{
				PropertyID:            req.PropertyID,
				Feeds:                 req.Feeds,
				EnableAutoJobCreation: req.EnableAutoJobCreation,
			}
		} else {
			stored, err := configs.GetByProperty(ctx, req.PropertyID)
			if err != nil {
				middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query sync config")
				return
			}
			if stored == nil {
				middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "No sync config for property; pass feeds inline")
				return
			}
			cfg = *stored
		}

		result := engine.SyncProperty(ctx, cfg)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}
