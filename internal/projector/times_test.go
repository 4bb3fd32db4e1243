package projector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlexibleTime(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     time.Time
		dateOnly bool
		wantErr  bool
	}{
		{
			name:  "rfc3339",
			input: "2026-06-01T15:00:00Z",
			want:  time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC),
		},
		{
			name:  "datetime without zone",
			input: "2026-06-01T15:00:00",
			want:  time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC),
		},
		{
			name:  "datetime without seconds",
			input: "2026-06-01 15:04",
			want:  time.Date(2026, 6, 1, 15, 4, 0, 0, time.UTC),
		},
		{
			name:     "date only",
			input:    "2026-06-01",
			want:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			dateOnly: true,
		},
		{
			name:     "compact ical date",
			input:    "20260601",
			want:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			dateOnly: true,
		},
		{
			name:  "compact ical datetime utc",
			input: "20260601T150000Z",
			want:  time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC),
		},
		{
			name:  "surrounding whitespace",
			input: "  2026-06-01  ",
			want:  time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),

			dateOnly: true,
		},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "next tuesday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, dateOnly, err := ParseFlexibleTime(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
			assert.Equal(t, tt.dateOnly, dateOnly)
		})
	}
}

func TestNormalizeWindow(t *testing.T) {
	tests := []struct {
		name      string
		input     TimeWindowInput
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{
			name:      "start and end timestamps",
			input:     TimeWindowInput{Start: "2026-06-01T15:00:00Z", End: "2026-06-05T11:00:00Z"},
			wantStart: time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 6, 5, 11, 0, 0, 0, time.UTC),
		},
		{
			name:      "date with start and end times",
			input:     TimeWindowInput{Date: "2026-06-01", StartTime: "09:00", EndTime: "11:30"},
			wantStart: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 6, 1, 11, 30, 0, 0, time.UTC),
		},
		{
			name:      "window crossing midnight rolls end to next day",
			input:     TimeWindowInput{Date: "2026-06-01", StartTime: "22:00", EndTime: "02:00"},
			wantStart: time.Date(2026, 6, 1, 22, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 6, 2, 2, 0, 0, 0, time.UTC),
		},
		{
			name:      "bare date yields full day",
			input:     TimeWindowInput{Date: "2026-06-01"},
			wantStart: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "date-only start and end on same day extends through the day",
			input:     TimeWindowInput{Start: "2026-06-01", End: "2026-06-01"},
			wantStart: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "end before start",
			input:   TimeWindowInput{Start: "2026-06-05T11:00:00Z", End: "2026-06-01T15:00:00Z"},
			wantErr: true,
		},
		{
			name:    "no usable fields",
			input:   TimeWindowInput{},
			wantErr: true,
		},
		{
			name:    "bad clock value",
			input:   TimeWindowInput{Date: "2026-06-01", StartTime: "25:00", EndTime: "26:00"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := NormalizeWindow(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, start.Equal(tt.wantStart), "start: got %s want %s", start, tt.wantStart)
			assert.True(t, end.Equal(tt.wantEnd), "end: got %s want %s", end, tt.wantEnd)
		})
	}
}
