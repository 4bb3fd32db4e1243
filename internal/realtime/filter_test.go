package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stayflow/backend/internal/storage/models"
)

func mutation(mt MutationType, propertyID, category string, start, end time.Time) CalendarMutation {
	return CalendarMutation{
		Type: mt,
		Event: models.CalendarEvent{
			ID:         "ev-1",
			PropertyID: propertyID,
			Category:   category,
			Start:      start,
			End:        end,
		},
	}
}

func TestFilterMatchesMutation(t *testing.T) {
	start := time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 5, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter Filter
		m      CalendarMutation
		want   bool
	}{
		{
			name:   "empty filter matches everything",
			filter: Filter{},
			m:      mutation(MutationCreated, "prop-1", "booking", start, end),
			want:   true,
		},
		{
			name:   "property match",
			filter: Filter{PropertyID: "prop-1"},
			m:      mutation(MutationCreated, "prop-1", "booking", start, end),
			want:   true,
		},
		{
			name:   "property mismatch",
			filter: Filter{PropertyID: "prop-2"},
			m:      mutation(MutationCreated, "prop-1", "booking", start, end),
			want:   false,
		},
		{
			name:   "category filter",
			filter: Filter{EventTypes: []string{"job"}},
			m:      mutation(MutationCreated, "prop-1", "booking", start, end),
			want:   false,
		},
		{
			name:   "event overlapping range passes",
			filter: Filter{From: start.AddDate(0, 0, 2), To: start.AddDate(0, 0, 20)},
			m:      mutation(MutationUpdated, "prop-1", "booking", start, end),
			want:   true,
		},
		{
			name:   "event entirely before range is filtered",
			filter: Filter{From: end, To: end.AddDate(0, 0, 20)},
			m:      mutation(MutationUpdated, "prop-1", "booking", start, end),
			want:   false,
		},
		{
			name:   "event starting at range end is filtered",
			filter: Filter{To: start},
			m:      mutation(MutationCreated, "prop-1", "booking", start, end),
			want:   false,
		},
		{
			name:   "deletion bypasses range check",
			filter: Filter{From: end, To: end.AddDate(0, 0, 20)},
			m:      mutation(MutationDeleted, "prop-1", "booking", start, end),
			want:   true,
		},
		{
			name:   "deletion still honors property filter",
			filter: Filter{PropertyID: "prop-2"},
			m:      mutation(MutationDeleted, "prop-1", "booking", start, end),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.MatchesMutation(tt.m))
		})
	}
}

func TestFilterMatchesConflict(t *testing.T) {
	alert := models.ConflictAlert{PropertyID: "prop-1"}

	assert.False(t, Filter{}.MatchesConflict(alert), "conflicts are opt-in")
	assert.True(t, Filter{IncludeConflicts: true}.MatchesConflict(alert))
	assert.True(t, Filter{IncludeConflicts: true, PropertyID: "prop-1"}.MatchesConflict(alert))
	assert.False(t, Filter{IncludeConflicts: true, PropertyID: "prop-2"}.MatchesConflict(alert))
}
