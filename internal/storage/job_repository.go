package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stayflow/backend/internal/storage/models"
)

// JobRepository provides data access for operational jobs.
type JobRepository struct {
	BaseRepository
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{BaseRepository: NewBaseRepository(db)}
}

const jobColumns = `id, job_type, property_id, related_booking_id, status,
       scheduled_start, estimated_duration_min, assigned_staff_id,
       recurrence, allow_during_stay, created_at, updated_at`

// Create inserts a new job.
func (r *JobRepository) Create(ctx context.Context, j *models.Job) error {
	if j.ID == "" {
		j.ID = GenerateID()
	}
	j.CreatedAt = r.Now()
	j.UpdatedAt = j.CreatedAt
	if j.Status == "" {
		j.Status = models.JobUnassigned
	}
	if j.EstimatedDurationMin <= 0 {
		j.EstimatedDurationMin = 60
	}

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO jobs (
			id, job_type, property_id, related_booking_id, status,
			scheduled_start, estimated_duration_min, assigned_staff_id,
			recurrence, allow_during_stay, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		j.ID, j.JobType, j.PropertyID, j.RelatedBookingID, j.Status,
		j.ScheduledStart, j.EstimatedDurationMin, j.AssignedStaffID,
		j.Recurrence, j.AllowDuringStay, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

// GetByID retrieves a job by its ID. Returns nil when not found.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	row := r.DB().QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ListByProperty retrieves jobs for a property, optionally filtered by status.
func (r *JobRepository) ListByProperty(ctx context.Context, propertyID string, statuses ...models.JobStatus) ([]models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE property_id = ?`
	args := []any{propertyID}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + repeatPlaceholder(len(statuses)-1) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += ` ORDER BY scheduled_start`

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ListByBooking retrieves jobs linked to a booking.
func (r *JobRepository) ListByBooking(ctx context.Context, bookingID string) ([]models.Job, error) {
	rows, err := r.DB().QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE related_booking_id = ? ORDER BY scheduled_start`,
		bookingID)
	if err != nil {
		return nil, fmt.Errorf("querying jobs by booking: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// Update persists job fields other than status.
func (r *JobRepository) Update(ctx context.Context, j *models.Job) error {
	j.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE jobs SET
			job_type = ?, scheduled_start = ?, estimated_duration_min = ?,
			assigned_staff_id = ?, recurrence = ?, allow_during_stay = ?, updated_at = ?
		WHERE id = ?
	`,
		j.JobType, j.ScheduledStart, j.EstimatedDurationMin,
		j.AssignedStaffID, j.Recurrence, j.AllowDuringStay, j.UpdatedAt, j.ID,
	)
	if err != nil {
		return fmt.Errorf("updating job: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("job not found: %s", j.ID)
	}
	return nil
}

// UpdateStatus advances a job's status and optionally assigns staff.
func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status models.JobStatus, staffID *string) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE jobs SET status = ?, assigned_staff_id = COALESCE(?, assigned_staff_id), updated_at = ?
		WHERE id = ?
	`, status, staffID, r.Now(), id)
	if err != nil {
		return fmt.Errorf("updating job status: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("job not found: %s", id)
	}
	return nil
}

func scanJob(row *sql.Row) (*models.Job, error) {
	j := &models.Job{}
	err := row.Scan(
		&j.ID, &j.JobType, &j.PropertyID, &j.RelatedBookingID, &j.Status,
		&j.ScheduledStart, &j.EstimatedDurationMin, &j.AssignedStaffID,
		&j.Recurrence, &j.AllowDuringStay, &j.CreatedAt, &j.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	return j, nil
}

func scanJobs(rows *sql.Rows) ([]models.Job, error) {
	var jobs []models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(
			&j.ID, &j.JobType, &j.PropertyID, &j.RelatedBookingID, &j.Status,
			&j.ScheduledStart, &j.EstimatedDurationMin, &j.AssignedStaffID,
			&j.Recurrence, &j.AllowDuringStay, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
