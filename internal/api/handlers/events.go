package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stayflow/backend/internal/api/middleware"
	"github.com/stayflow/backend/internal/projector"
	"github.com/stayflow/backend/internal/storage"
	"github.com/stayflow/backend/internal/storage/models"
)

// ListEvents returns the calendar snapshot for a property and date range.
// Clients reconnecting to the live feed fetch this to reconcile missed
// mutations.
func ListEvents(events *storage.EventRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		propertyID := q.Get("property_id")
		if propertyID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "property_id is required")
			return
		}

		from, to, err := parseRange(q.Get("from"), q.Get("to"))
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}

		list, err := events.ListByProperty(r.Context(), propertyID, from, to)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query events")
			return
		}
		if list == nil {
			list = []models.CalendarEvent{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(list)
	}
}

// parseRange resolves optional from/to query values; a missing range defaults
// to the next 90 days.
func parseRange(fromRaw, toRaw string) (from, to time.Time, err error) {
	now := time.Now().UTC()
	from = now.AddDate(0, 0, -1)
	to = now.AddDate(0, 0, 90)

	if fromRaw != "" {
		from, _, err = projector.ParseFlexibleTime(fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if toRaw != "" {
		to, _, err = projector.ParseFlexibleTime(toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("to must be after from")
	}
	return from, to, nil
}
