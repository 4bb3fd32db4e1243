package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stayflow/backend/internal/storage/models"
)

// ConflictRepository provides data access for conflict alerts. Only the
// conflict detector creates alerts.
type ConflictRepository struct {
	BaseRepository
}

// NewConflictRepository creates a new conflict alert repository.
func NewConflictRepository(db *DB) *ConflictRepository {
	return &ConflictRepository{BaseRepository: NewBaseRepository(db)}
}

const conflictColumns = `id, property_id, interval_a_start, interval_a_end,
       interval_b_start, interval_b_end, source_a_id, source_b_id,
       severity, resolved, resolved_at, created_at`

// Create inserts a new conflict alert.
func (r *ConflictRepository) Create(ctx context.Context, a *models.ConflictAlert) error {
	if a.ID == "" {
		a.ID = GenerateID()
	}
	a.CreatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO conflict_alerts (
			id, property_id, interval_a_start, interval_a_end,
			interval_b_start, interval_b_end, source_a_id, source_b_id,
			severity, resolved, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, a.PropertyID, a.IntervalA.Start, a.IntervalA.End,
		a.IntervalB.Start, a.IntervalB.End, a.SourceAID, a.SourceBID,
		a.Severity, a.Resolved, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting conflict alert: %w", err)
	}
	return nil
}

// GetByID retrieves an alert by its ID. Returns nil when not found.
func (r *ConflictRepository) GetByID(ctx context.Context, id string) (*models.ConflictAlert, error) {
	row := r.DB().QueryRowContext(ctx,
		`SELECT `+conflictColumns+` FROM conflict_alerts WHERE id = ?`, id)
	a := &models.ConflictAlert{}
	err := row.Scan(
		&a.ID, &a.PropertyID, &a.IntervalA.Start, &a.IntervalA.End,
		&a.IntervalB.Start, &a.IntervalB.End, &a.SourceAID, &a.SourceBID,
		&a.Severity, &a.Resolved, &a.ResolvedAt, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conflict alert: %w", err)
	}
	return a, nil
}

// ListByProperty retrieves alerts for a property. When openOnly is true only
// unresolved alerts are returned.
func (r *ConflictRepository) ListByProperty(ctx context.Context, propertyID string, openOnly bool) ([]models.ConflictAlert, error) {
	query := `SELECT ` + conflictColumns + ` FROM conflict_alerts WHERE property_id = ?`
	if openOnly {
		query += ` AND resolved = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.DB().QueryContext(ctx, query, propertyID)
	if err != nil {
		return nil, fmt.Errorf("querying conflict alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// HasOpenForPair reports whether an unresolved alert already references the
// two sources, in either order. Keeps alert creation idempotent under
// transition replays.
func (r *ConflictRepository) HasOpenForPair(ctx context.Context, sourceA, sourceB string) (bool, error) {
	var count int
	err := r.DB().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conflict_alerts
		WHERE resolved = 0
		  AND ((source_a_id = ? AND source_b_id = ?) OR (source_a_id = ? AND source_b_id = ?))
	`, sourceA, sourceB, sourceB, sourceA).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking open alerts: %w", err)
	}
	return count > 0, nil
}

// Resolve marks a single alert as resolved.
func (r *ConflictRepository) Resolve(ctx context.Context, id string) error {
	now := r.Now()
	result, err := r.DB().ExecContext(ctx, `
		UPDATE conflict_alerts SET resolved = 1, resolved_at = ? WHERE id = ? AND resolved = 0
	`, now, id)
	if err != nil {
		return fmt.Errorf("resolving conflict alert: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("open conflict alert not found: %s", id)
	}
	return nil
}

// ResolveBySource resolves all open alerts that reference the given source
// record. Called when a booking or job is cancelled or moved.
func (r *ConflictRepository) ResolveBySource(ctx context.Context, sourceID string) (int, error) {
	now := r.Now()
	result, err := r.DB().ExecContext(ctx, `
		UPDATE conflict_alerts SET resolved = 1, resolved_at = ?
		WHERE resolved = 0 AND (source_a_id = ? OR source_b_id = ?)
	`, now, sourceID, sourceID)
	if err != nil {
		return 0, fmt.Errorf("resolving conflict alerts by source: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

func scanAlerts(rows *sql.Rows) ([]models.ConflictAlert, error) {
	var alerts []models.ConflictAlert
	for rows.Next() {
		var a models.ConflictAlert
		if err := rows.Scan(
			&a.ID, &a.PropertyID, &a.IntervalA.Start, &a.IntervalA.End,
			&a.IntervalB.Start, &a.IntervalB.End, &a.SourceAID, &a.SourceBID,
			&a.Severity, &a.Resolved, &a.ResolvedAt, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning conflict alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
