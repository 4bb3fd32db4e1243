package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ics(lines ...string) string {
	all := append([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//Test//EN",
	}, lines...)
	all = append(all, "END:VCALENDAR")
	return strings.Join(all, "\r\n") + "\r\n"
}

func TestParseTimedEvent(t *testing.T) {
	payload := ics(
		"BEGIN:VEVENT",
		"UID:res-123@airbnb.com",
		"SUMMARY:Jane Doe",
		"DTSTART:20260601T150000Z",
		"DTEND:20260605T110000Z",
		"END:VEVENT",
	)

	entries, errs, err := NewParser().Parse(strings.NewReader(payload))
	require.NoError(t, err)
	require.Empty(t, errs)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "res-123@airbnb.com", e.UID)
	assert.Equal(t, "Jane Doe", e.Summary)
	assert.True(t, e.Start.Equal(time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)))
	assert.True(t, e.End.Equal(time.Date(2026, 6, 5, 11, 0, 0, 0, time.UTC)))
	assert.False(t, e.AllDay)
}

func TestParseDateOnlyEventIsAllDay(t *testing.T) {
	payload := ics(
		"BEGIN:VEVENT",
		"UID:res-456@vrbo.com",
		"SUMMARY:Reserved",
		"DTSTART;VALUE=DATE:20260601",
		"DTEND;VALUE=DATE:20260605",
		"END:VEVENT",
	)

	entries, errs, err := NewParser().Parse(strings.NewReader(payload))
	require.NoError(t, err)
	require.Empty(t, errs)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.True(t, e.AllDay)
	assert.True(t, e.Start.Equal(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, e.End.Equal(time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC)))
}

func TestParseUnescapesSummary(t *testing.T) {
	payload := ics(
		"BEGIN:VEVENT",
		"UID:res-789",
		"SUMMARY:Doe\\, Jane",
		"DTSTART:20260601T150000Z",
		"DTEND:20260602T110000Z",
		"END:VEVENT",
	)

	entries, errs, err := NewParser().Parse(strings.NewReader(payload))
	require.NoError(t, err)
	require.Empty(t, errs)
	require.Len(t, entries, 1)
	assert.Equal(t, "Doe, Jane", entries[0].Summary)
}

func TestParseBadEventDoesNotAbortFeed(t *testing.T) {
	payload := ics(
		// Missing UID
		"BEGIN:VEVENT",
		"SUMMARY:No UID",
		"DTSTART:20260601T150000Z",
		"DTEND:20260602T110000Z",
		"END:VEVENT",
		// End not after start
		"BEGIN:VEVENT",
		"UID:res-backwards",
		"DTSTART:20260605T110000Z",
		"DTEND:20260601T150000Z",
		"END:VEVENT",
		// Valid
		"BEGIN:VEVENT",
		"UID:res-good",
		"SUMMARY:Valid",
		"DTSTART:20260610T150000Z",
		"DTEND:20260612T110000Z",
		"END:VEVENT",
	)

	entries, errs, err := NewParser().Parse(strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, errs, 2)
	require.Len(t, entries, 1)
	assert.Equal(t, "res-good", entries[0].UID)

	// Entry errors keep the UID when the event had one, so callers can tell
	// a broken entry apart from a deleted one.
	assert.Equal(t, "", errs[0].UID)
	assert.Equal(t, "res-backwards", errs[1].UID)
}

func TestParseGarbagePayloadIsACalendarError(t *testing.T) {
	entries, errs, err := NewParser().Parse(strings.NewReader("this is not a calendar"))
	require.Error(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, errs)
}
