package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stayflow/backend/internal/storage/models"
)

// EventRepository provides data access for derived calendar events. Only the
// projector writes through it; everything else reads.
type EventRepository struct {
	BaseRepository
}

// NewEventRepository creates a new calendar event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{BaseRepository: NewBaseRepository(db)}
}

const eventColumns = `id, source_type, source_id, property_id, title,
       start_at, end_at, series_id, category, blocking, status,
       created_at, updated_at`

// Create inserts a new calendar event.
func (r *EventRepository) Create(ctx context.Context, e *models.CalendarEvent) error {
	if e.ID == "" {
		e.ID = GenerateID()
	}
	e.CreatedAt = r.Now()
	e.UpdatedAt = e.CreatedAt

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO calendar_events (
			id, source_type, source_id, property_id, title,
			start_at, end_at, series_id, category, blocking, status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.SourceType, e.SourceID, e.PropertyID, e.Title,
		e.Start, e.End, e.SeriesID, e.Category, e.Blocking, e.Status,
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting calendar event: %w", err)
	}
	return nil
}

// Update persists changes to an existing calendar event.
func (r *EventRepository) Update(ctx context.Context, e *models.CalendarEvent) error {
	e.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE calendar_events SET
			title = ?, start_at = ?, end_at = ?, series_id = ?,
			category = ?, blocking = ?, status = ?, updated_at = ?
		WHERE id = ?
	`,
		e.Title, e.Start, e.End, e.SeriesID,
		e.Category, e.Blocking, e.Status, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating calendar event: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("calendar event not found: %s", e.ID)
	}
	return nil
}

// GetByID retrieves an event by its ID. Returns nil when not found.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.CalendarEvent, error) {
	row := r.DB().QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM calendar_events WHERE id = ?`, id)
	e := &models.CalendarEvent{}
	err := row.Scan(
		&e.ID, &e.SourceType, &e.SourceID, &e.PropertyID, &e.Title,
		&e.Start, &e.End, &e.SeriesID, &e.Category, &e.Blocking, &e.Status,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning calendar event: %w", err)
	}
	return e, nil
}

// ListBySource retrieves all events derived from a source record, ordered by
// start time.
func (r *EventRepository) ListBySource(ctx context.Context, sourceType models.SourceType, sourceID string) ([]models.CalendarEvent, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+eventColumns+` FROM calendar_events
		WHERE source_type = ? AND source_id = ?
		ORDER BY start_at
	`, sourceType, sourceID)
	if err != nil {
		return nil, fmt.Errorf("querying events by source: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListByProperty retrieves events for a property overlapping the half-open
// window [from, to). Zero times disable the corresponding bound.
func (r *EventRepository) ListByProperty(ctx context.Context, propertyID string, from, to time.Time) ([]models.CalendarEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM calendar_events WHERE property_id = ?`
	args := []any{propertyID}
	if !to.IsZero() {
		query += ` AND start_at < ?`
		args = append(args, to)
	}
	if !from.IsZero() {
		query += ` AND end_at > ?`
		args = append(args, from)
	}
	query += ` ORDER BY start_at`

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events by property: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListBlockingByProperty retrieves occupancy-blocking events for a property.
func (r *EventRepository) ListBlockingByProperty(ctx context.Context, propertyID string) ([]models.CalendarEvent, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+eventColumns+` FROM calendar_events
		WHERE property_id = ? AND blocking = 1
		ORDER BY start_at
	`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("querying blocking events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// DeleteBySource removes all events derived from a source record and returns
// the deleted events so callers can broadcast the removals.
func (r *EventRepository) DeleteBySource(ctx context.Context, sourceType models.SourceType, sourceID string) ([]models.CalendarEvent, error) {
	events, err := r.ListBySource(ctx, sourceType, sourceID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	_, err = r.DB().ExecContext(ctx,
		`DELETE FROM calendar_events WHERE source_type = ? AND source_id = ?`,
		sourceType, sourceID)
	if err != nil {
		return nil, fmt.Errorf("deleting events by source: %w", err)
	}
	return events, nil
}

// DeleteBySeries removes all occurrences sharing a series ID and returns them.
func (r *EventRepository) DeleteBySeries(ctx context.Context, seriesID string) ([]models.CalendarEvent, error) {
	rows, err := r.DB().QueryContext(ctx,
		`SELECT `+eventColumns+` FROM calendar_events WHERE series_id = ? ORDER BY start_at`,
		seriesID)
	if err != nil {
		return nil, fmt.Errorf("querying events by series: %w", err)
	}
	events, err := scanEvents(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	_, err = r.DB().ExecContext(ctx,
		`DELETE FROM calendar_events WHERE series_id = ?`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("deleting events by series: %w", err)
	}
	return events, nil
}

func scanEvents(rows *sql.Rows) ([]models.CalendarEvent, error) {
	var events []models.CalendarEvent
	for rows.Next() {
		var e models.CalendarEvent
		if err := rows.Scan(
			&e.ID, &e.SourceType, &e.SourceID, &e.PropertyID, &e.Title,
			&e.Start, &e.End, &e.SeriesID, &e.Category, &e.Blocking, &e.Status,
			&e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning calendar event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
