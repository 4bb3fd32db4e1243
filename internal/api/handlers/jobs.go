package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stayflow/backend/internal/api/middleware"
	"github.com/stayflow/backend/internal/projector"
	"github.com/stayflow/backend/internal/storage"
	"github.com/stayflow/backend/internal/storage/models"
	"github.com/stayflow/backend/internal/workflow"
)

// CreateJobRequest creates an operational job. ScheduledStart accepts any of
// the flexible timestamp encodings; Recurrence is an optional raw RRULE.
type CreateJobRequest struct {
	JobType              string  `json:"job_type"`
	PropertyID           string  `json:"property_id"`
	RelatedBookingID     *string `json:"related_booking_id,omitempty"`
	ScheduledStart       string  `json:"scheduled_start"`
	EstimatedDurationMin int     `json:"estimated_duration_min"`
	Recurrence           *string `json:"recurrence,omitempty"`
	AllowDuringStay      bool    `json:"allow_during_stay"`
}

// CreateJob adds a job in unassigned status. Unassigned jobs have no calendar
// presence until the first forward transition.
func CreateJob(jobs *storage.JobRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if req.JobType == "" || req.PropertyID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "job_type and property_id are required")
			return
		}

		start, _, err := projector.ParseFlexibleTime(req.ScheduledStart)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "scheduled_start: "+err.Error())
			return
		}
		if req.EstimatedDurationMin <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "estimated_duration_min must be positive")
			return
		}

		job := &models.Job{
			JobType:              req.JobType,
			PropertyID:           req.PropertyID,
			RelatedBookingID:     req.RelatedBookingID,
			Status:               models.JobUnassigned,
			ScheduledStart:       start,
			EstimatedDurationMin: req.EstimatedDurationMin,
			Recurrence:           req.Recurrence,
			AllowDuringStay:      req.AllowDuringStay,
		}
		if err := jobs.Create(r.Context(), job); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create job")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(job)
	}
}

// ListJobs returns a property's jobs, optionally filtered by status.
func ListJobs(jobs *storage.JobRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		propertyID := r.URL.Query().Get("property_id")
		if propertyID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "property_id is required")
			return
		}

		var statuses []models.JobStatus
		for _, s := range r.URL.Query()["status"] {
			statuses = append(statuses, models.JobStatus(s))
		}

		list, err := jobs.ListByProperty(r.Context(), propertyID, statuses...)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query jobs")
			return
		}
		if list == nil {
			list = []models.Job{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(list)
	}
}

// GetJob returns a single job by ID.
func GetJob(jobs *storage.JobRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		job, err := jobs.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query job")
			return
		}
		if job == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Job not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(job)
	}
}

// UpdateJobStatusRequest advances a job's status, optionally assigning staff.
type UpdateJobStatusRequest struct {
	Status          string  `json:"status"`
	AssignedStaffID *string `json:"assigned_staff_id,omitempty"`
	TriggeredBy     string  `json:"triggered_by,omitempty"`
}

// UpdateJobStatus validates the transition, persists it, and runs the
// lifecycle workflow.
func UpdateJobStatus(jobs *storage.JobRepository, wf *workflow.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		ctx := r.Context()

		var req UpdateJobStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		job, err := jobs.GetByID(ctx, id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query job")
			return
		}
		if job == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Job not found")
			return
		}

		oldStatus := string(job.Status)
		if err := workflow.ValidateTransition(workflow.EntityJob, oldStatus, req.Status); err != nil {
			middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, err.Error())
			return
		}

		if err := jobs.UpdateStatus(ctx, id, models.JobStatus(req.Status), req.AssignedStaffID); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update job status")
			return
		}

		triggeredBy := req.TriggeredBy
		if triggeredBy == "" {
			triggeredBy = "api"
		}
		result, err := wf.OnTransition(ctx, workflow.TransitionSignal{
			EntityType:  workflow.EntityJob,
			EntityID:    id,
			OldStatus:   oldStatus,
			NewStatus:   req.Status,
			TriggeredBy: triggeredBy,
		})
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Status saved but calendar derivation failed; retry the transition")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}
