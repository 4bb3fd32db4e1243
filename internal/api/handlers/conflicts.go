package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stayflow/backend/internal/api/middleware"
	"github.com/stayflow/backend/internal/storage"
	"github.com/stayflow/backend/internal/storage/models"
)

// ListConflicts returns a property's conflict alerts. Pass open=true to see
// only unresolved ones.
func ListConflicts(alerts *storage.ConflictRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		propertyID := r.URL.Query().Get("property_id")
		if propertyID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "property_id is required")
			return
		}
		openOnly := r.URL.Query().Get("open") == "true"

		list, err := alerts.ListByProperty(r.Context(), propertyID, openOnly)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query conflicts")
			return
		}
		if list == nil {
			list = []models.ConflictAlert{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(list)
	}
}

// ResolveConflict marks a conflict alert resolved. Resolution is an operator
// acknowledgement; the underlying bookings are not changed.
func ResolveConflict(alerts *storage.ConflictRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		ctx := r.Context()

		alert, err := alerts.GetByID(ctx, id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query conflict")
			return
		}
		if alert == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Conflict not found")
			return
		}

		if err := alerts.Resolve(ctx, id); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to resolve conflict")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
