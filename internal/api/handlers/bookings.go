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

// CreateBookingRequest creates a manual booking. The occupancy window accepts
// either full timestamps or a date with separate times.
type CreateBookingRequest struct {
	PropertyID string                    `json:"property_id"`
	GuestName  string                    `json:"guest_name"`
	Window     projector.TimeWindowInput `json:"window"`
}

// CreateBooking adds a manual booking in pending status.
func CreateBooking(bookings *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if req.PropertyID == "" || req.GuestName == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "property_id and guest_name are required")
			return
		}

		checkIn, checkOut, err := projector.NormalizeWindow(req.Window)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}

		booking := &models.Booking{
			SourcePlatform: models.SourceManual,
			PropertyID:     req.PropertyID,
			GuestName:      req.GuestName,
			CheckIn:        checkIn,
			CheckOut:       checkOut,
			Status:         models.BookingPending,
		}
		if err := bookings.Create(r.Context(), booking); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create booking")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(booking)
	}
}

// ListBookings returns a property's bookings, optionally filtered by status.
func ListBookings(bookings *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		propertyID := r.URL.Query().Get("property_id")
		if propertyID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "property_id is required")
			return
		}

		var statuses []models.BookingStatus
		for _, s := range r.URL.Query()["status"] {
			statuses = append(statuses, models.BookingStatus(s))
		}

		list, err := bookings.ListByProperty(r.Context(), propertyID, statuses...)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query bookings")
			return
		}
		if list == nil {
			list = []models.Booking{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(list)
	}
}

// GetBooking returns a single booking by ID.
func GetBooking(bookings *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		booking, err := bookings.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query booking")
			return
		}
		if booking == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(booking)
	}
}

// UpdateStatusRequest advances an entity's lifecycle status.
type UpdateStatusRequest struct {
	Status      string `json:"status"`
	TriggeredBy string `json:"triggered_by,omitempty"`
}

// UpdateBookingStatus validates the transition, persists it, and runs the
// lifecycle workflow. The response carries the workflow's structured outcome.
func UpdateBookingStatus(bookings *storage.BookingRepository, wf *workflow.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		ctx := r.Context()

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		booking, err := bookings.GetByID(ctx, id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query booking")
			return
		}
		if booking == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
			return
		}

		oldStatus := string(booking.Status)
		if err := workflow.ValidateTransition(workflow.EntityBooking, oldStatus, req.Status); err != nil {
			middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, err.Error())
			return
		}

		if err := bookings.UpdateStatus(ctx, id, models.BookingStatus(req.Status)); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update booking status")
			return
		}

		triggeredBy := req.TriggeredBy
		if triggeredBy == "" {
			triggeredBy = "api"
		}
		result, err := wf.OnTransition(ctx, workflow.TransitionSignal{
			EntityType:  workflow.EntityBooking,
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
