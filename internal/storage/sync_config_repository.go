package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stayflow/backend/internal/storage/models"
)

// SyncConfigRepository provides data access for per-property ingestion
// configuration and its feed URLs.
type SyncConfigRepository struct {
	BaseRepository
}

// NewSyncConfigRepository creates a new sync config repository.
func NewSyncConfigRepository(db *DB) *SyncConfigRepository {
	return &SyncConfigRepository{BaseRepository: NewBaseRepository(db)}
}

const syncConfigColumns = `id, property_id, enable_auto_jobs, sync_interval_min,
       enabled, last_sync_at, last_sync_status, last_sync_error,
       created_at, updated_at`

// Create inserts a new sync config together with its feed sources.
func (r *SyncConfigRepository) Create(ctx context.Context, cfg *models.SyncConfig) error {
	if cfg.ID == "" {
		cfg.ID = GenerateID()
	}
	cfg.CreatedAt = r.Now()
	cfg.UpdatedAt = cfg.CreatedAt
	cfg.LastSyncStatus = models.SyncStatusPending
	if cfg.SyncIntervalMin < 1 {
		cfg.SyncIntervalMin = 15
	}

	return r.Transaction(func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_configs (
				id, property_id, enable_auto_jobs, sync_interval_min,
				enabled, last_sync_status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			cfg.ID, cfg.PropertyID, cfg.EnableAutoJobCreation, cfg.SyncIntervalMin,
			cfg.Enabled, cfg.LastSyncStatus, cfg.CreatedAt, cfg.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting sync config: %w", err)
		}
		return insertFeeds(ctx, tx, cfg.ID, cfg.Feeds)
	})
}

// GetByID retrieves a sync config with its feeds. Returns nil when not found.
func (r *SyncConfigRepository) GetByID(ctx context.Context, id string) (*models.SyncConfig, error) {
	row := r.DB().QueryRowContext(ctx,
		`SELECT `+syncConfigColumns+` FROM sync_configs WHERE id = ?`, id)
	return r.scanWithFeeds(ctx, row)
}

// GetByProperty retrieves the sync config for a property. Returns nil when
// not found.
func (r *SyncConfigRepository) GetByProperty(ctx context.Context, propertyID string) (*models.SyncConfig, error) {
	row := r.DB().QueryRowContext(ctx,
		`SELECT `+syncConfigColumns+` FROM sync_configs WHERE property_id = ?`, propertyID)
	return r.scanWithFeeds(ctx, row)
}

// List retrieves all sync configs with their feeds.
func (r *SyncConfigRepository) List(ctx context.Context) ([]models.SyncConfig, error) {
	return r.list(ctx, `SELECT `+syncConfigColumns+` FROM sync_configs ORDER BY property_id`)
}

// ListEnabled retrieves all enabled sync configs, least recently synced first.
func (r *SyncConfigRepository) ListEnabled(ctx context.Context) ([]models.SyncConfig, error) {
	return r.list(ctx, `
		SELECT `+syncConfigColumns+` FROM sync_configs
		WHERE enabled = 1
		ORDER BY last_sync_at ASC NULLS FIRST
	`)
}

// Update updates a config's settings and replaces its feed sources.
func (r *SyncConfigRepository) Update(ctx context.Context, cfg *models.SyncConfig) error {
	cfg.UpdatedAt = r.Now()

	return r.Transaction(func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE sync_configs SET
				enable_auto_jobs = ?, sync_interval_min = ?, enabled = ?, updated_at = ?
			WHERE id = ?
		`, cfg.EnableAutoJobCreation, cfg.SyncIntervalMin, cfg.Enabled, cfg.UpdatedAt, cfg.ID)
		if err != nil {
			return fmt.Errorf("updating sync config: %w", err)
		}
		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			return fmt.Errorf("sync config not found: %s", cfg.ID)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM feed_sources WHERE config_id = ?`, cfg.ID); err != nil {
			return fmt.Errorf("deleting feed sources: %w", err)
		}
		return insertFeeds(ctx, tx, cfg.ID, cfg.Feeds)
	})
}

// UpdateSyncStatus records the outcome of a sync run.
func (r *SyncConfigRepository) UpdateSyncStatus(ctx context.Context, id, status string, syncError *string) error {
	now := r.Now()
	var lastSyncAt *time.Time
	if status == models.SyncStatusSuccess {
		lastSyncAt = &now
	}

	_, err := r.DB().ExecContext(ctx, `
		UPDATE sync_configs SET
			last_sync_status = ?, last_sync_error = ?,
			last_sync_at = COALESCE(?, last_sync_at), updated_at = ?
		WHERE id = ?
	`, status, syncError, lastSyncAt, now, id)
	if err != nil {
		return fmt.Errorf("updating sync status: %w", err)
	}
	return nil
}

// Delete removes a sync config; feed sources cascade.
func (r *SyncConfigRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, `DELETE FROM sync_configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting sync config: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("sync config not found: %s", id)
	}
	return nil
}

func (r *SyncConfigRepository) scanWithFeeds(ctx context.Context, row *sql.Row) (*models.SyncConfig, error) {
	cfg := &models.SyncConfig{}
	err := row.Scan(
		&cfg.ID, &cfg.PropertyID, &cfg.EnableAutoJobCreation, &cfg.SyncIntervalMin,
		&cfg.Enabled, &cfg.LastSyncAt, &cfg.LastSyncStatus, &cfg.LastSyncError,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning sync config: %w", err)
	}

	cfg.Feeds, err = r.getFeeds(ctx, cfg.ID)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *SyncConfigRepository) list(ctx context.Context, query string) ([]models.SyncConfig, error) {
	rows, err := r.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying sync configs: %w", err)
	}
	defer rows.Close()

	var configs []models.SyncConfig
	for rows.Next() {
		var cfg models.SyncConfig
		if err := rows.Scan(
			&cfg.ID, &cfg.PropertyID, &cfg.EnableAutoJobCreation, &cfg.SyncIntervalMin,
			&cfg.Enabled, &cfg.LastSyncAt, &cfg.LastSyncStatus, &cfg.LastSyncError,
			&cfg.CreatedAt, &cfg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning sync config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range configs {
		feeds, err := r.getFeeds(ctx, configs[i].ID)
		if err != nil {
			return nil, err
		}
		configs[i].Feeds = feeds
	}
	return configs, nil
}

func (r *SyncConfigRepository) getFeeds(ctx context.Context, configID string) ([]models.FeedSource, error) {
	rows, err := r.DB().QueryContext(ctx,
		`SELECT platform, url FROM feed_sources WHERE config_id = ? ORDER BY platform`,
		configID)
	if err != nil {
		return nil, fmt.Errorf("querying feed sources: %w", err)
	}
	defer rows.Close()

	var feeds []models.FeedSource
	for rows.Next() {
		var f models.FeedSource
		if err := rows.Scan(&f.Platform, &f.URL); err != nil {
			return nil, fmt.Errorf("scanning feed source: %w", err)
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

func insertFeeds(ctx context.Context, tx *sql.Tx, configID string, feeds []models.FeedSource) error {
	for _, f := range feeds {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO feed_sources (config_id, platform, url) VALUES (?, ?, ?)`,
			configID, f.Platform, f.URL); err != nil {
			return fmt.Errorf("inserting feed source: %w", err)
		}
	}
	return nil
}
