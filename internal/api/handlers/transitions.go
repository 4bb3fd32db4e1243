package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/stayflow/backend/internal/api/middleware"
	"github.com/stayflow/backend/internal/workflow"
)

// ApplyTransition replays a transition signal through the lifecycle workflow
// without changing stored status. Signals are delivered at-least-once:
// callers retry this endpoint after a failure, and replays of already
// processed edges are no-ops.
func ApplyTransition(wf *workflow.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sig workflow.TransitionSignal
		if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if sig.EntityType == "" || sig.EntityID == "" || sig.NewStatus == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "entity_type, entity_id, and new_status are required")
			return
		}
		if sig.TriggeredBy == "" {
			sig.TriggeredBy = "api"
		}

		result, err := wf.OnTransition(r.Context(), sig)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Transition processing failed; safe to retry")
			return
		}

		status := http.StatusOK
		if !result.Success {
			status = http.StatusUnprocessableEntity
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(result)
	}
}
