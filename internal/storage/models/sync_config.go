package models

import (
	"time"
)

// FeedSource is one third-party feed URL for a property, keyed by platform.
type FeedSource struct {
	Platform SourcePlatform `json:"platform"`
	URL      string         `json:"url"`
}

// SyncConfig is the per-property ingestion configuration.
type SyncConfig struct {
	ID                    string       `json:"id"`
	PropertyID            string       `json:"property_id"`
	Feeds                 []FeedSource `json:"feeds"`
	EnableAutoJobCreation bool         `json:"enable_auto_job_creation"`
	SyncIntervalMin       int          `json:"sync_interval_min"`
	Enabled               bool         `json:"enabled"`
	LastSyncAt            *time.Time   `json:"last_sync_at,omitempty"`
	LastSyncStatus        string       `json:"last_sync_status"`
	LastSyncError         *string      `json:"last_sync_error,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

// Sync status constants
const (
	SyncStatusPending = "pending"
	SyncStatusSyncing = "syncing"
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// SyncError describes a single failed feed entry or feed fetch during a sync
// run. Errors are per-item; one bad entry never aborts the rest of the run.
type SyncError struct {
	Platform SourcePlatform `json:"platform"`
	EntryUID string         `json:"entry_uid,omitempty"`
	Message  string         `json:"message"`
}

// SyncResult contains the outcome of syncing a single property.
type SyncResult struct {
	PropertyID string      `json:"property_id"`
	Created    int         `json:"created"`
	Updated    int         `json:"updated"`
	Removed    int         `json:"removed"`
	Errors     []SyncError `json:"errors"`
	SyncedAt   time.Time   `json:"synced_at"`
}

// Failed reports whether the run produced any per-item errors.
func (r *SyncResult) Failed() bool {
	return len(r.Errors) > 0
}
