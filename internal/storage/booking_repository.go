package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stayflow/backend/internal/storage/models"
)

// BookingRepository provides data access for bookings. It is the single
// writer of authoritative booking status.
type BookingRepository struct {
	BaseRepository
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *DB) *BookingRepository {
	return &BookingRepository{BaseRepository: NewBaseRepository(db)}
}

const bookingColumns = `id, external_id, source_platform, property_id, guest_name,
       check_in, check_out, status, created_at, updated_at`

// Create inserts a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	if b.ID == "" {
		b.ID = GenerateID()
	}
	b.CreatedAt = r.Now()
	b.UpdatedAt = b.CreatedAt
	if b.Status == "" {
		b.Status = models.BookingPending
	}
	if b.SourcePlatform == "" {
		b.SourcePlatform = models.SourceManual
	}

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO bookings (
			id, external_id, source_platform, property_id, guest_name,
			check_in, check_out, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID, b.ExternalID, b.SourcePlatform, b.PropertyID, b.GuestName,
		b.CheckIn, b.CheckOut, b.Status, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting booking: %w", err)
	}
	return nil
}

// GetByID retrieves a booking by its ID. Returns nil when not found.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	row := r.DB().QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return scanBooking(row)
}

// GetByExternalID retrieves a feed-sourced booking by its
// (property, platform, external id) triple. Returns nil when not found.
func (r *BookingRepository) GetByExternalID(ctx context.Context, propertyID string, platform models.SourcePlatform, externalID string) (*models.Booking, error) {
	row := r.DB().QueryRowContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE property_id = ? AND source_platform = ? AND external_id = ?
	`, propertyID, platform, externalID)
	return scanBooking(row)
}

// ListByProperty retrieves bookings for a property, optionally filtered by
// status.
func (r *BookingRepository) ListByProperty(ctx context.Context, propertyID string, statuses ...models.BookingStatus) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE property_id = ?`
	args := []any{propertyID}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + repeatPlaceholder(len(statuses)-1) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += ` ORDER BY check_in`

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bookings: %w", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

// ListFeedBookings retrieves all non-cancelled bookings for a property that
// were ingested from the given platform. Used by ingestion to detect
// upstream deletions.
func (r *BookingRepository) ListFeedBookings(ctx context.Context, propertyID string, platform models.SourcePlatform) ([]models.Booking, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE property_id = ? AND source_platform = ?
		  AND external_id IS NOT NULL AND status != ?
		ORDER BY check_in
	`, propertyID, platform, models.BookingCancelled)
	if err != nil {
		return nil, fmt.Errorf("querying feed bookings: %w", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

// Update persists booking fields other than status.
func (r *BookingRepository) Update(ctx context.Context, b *models.Booking) error {
	b.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE bookings SET
			guest_name = ?, check_in = ?, check_out = ?, updated_at = ?
		WHERE id = ?
	`, b.GuestName, b.CheckIn, b.CheckOut, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("updating booking: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("booking not found: %s", b.ID)
	}
	return nil
}

// UpdateStatus advances a booking's status.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status models.BookingStatus) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?
	`, status, r.Now(), id)
	if err != nil {
		return fmt.Errorf("updating booking status: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("booking not found: %s", id)
	}
	return nil
}

func scanBooking(row *sql.Row) (*models.Booking, error) {
	b := &models.Booking{}
	err := row.Scan(
		&b.ID, &b.ExternalID, &b.SourcePlatform, &b.PropertyID, &b.GuestName,
		&b.CheckIn, &b.CheckOut, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning booking: %w", err)
	}
	return b, nil
}

func scanBookings(rows *sql.Rows) ([]models.Booking, error) {
	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(
			&b.ID, &b.ExternalID, &b.SourcePlatform, &b.PropertyID, &b.GuestName,
			&b.CheckIn, &b.CheckOut, &b.Status, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// repeatPlaceholder returns n additional ", ?" fragments for IN clauses.
func repeatPlaceholder(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}
