// Package feed ingests third-party reservation feeds: it fetches RFC 5545
// calendars per property, parses them into normalized entries, and
// reconciles those entries against the booking store.
package feed

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/stayflow/backend/internal/projector"
)

// Entry is a normalized feed entry: one external reservation. Feeds publish
// already-confirmed reservations only.
type Entry struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	// AllDay is true when DTSTART carried no time-of-day; the ingestion
	// engine applies the property's check-in/check-out times.
	AllDay bool
}

// Parser parses iCal payloads. Unknown properties are ignored; an invalid
// VEVENT yields a per-entry error without aborting the rest of the feed.
type Parser struct{}

// NewParser creates a feed parser.
func NewParser() *Parser {
	return &Parser{}
}

// EntryError is a per-VEVENT parse failure. UID is empty when the event
// carried none.
type EntryError struct {
	UID string
	Err error
}

func (e EntryError) Error() string { return e.Err.Error() }

func (e EntryError) Unwrap() error { return e.Err }

// Parse reads an iCal payload. It returns the valid entries plus one
// EntryError per VEVENT that could not be parsed. The error return is
// non-nil only when the payload is not a calendar at all; callers must not
// treat that case as an empty feed.
func (p *Parser) Parse(r io.Reader) ([]Entry, []EntryError, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing calendar: %w", err)
	}

	var entries []Entry
	var errs []EntryError
	for _, ve := range cal.Events() {
		entry, err := parseVEvent(ve)
		if err != nil {
			errs = append(errs, EntryError{UID: entry.UID, Err: err})
			continue
		}
		entries = append(entries, entry)
	}
	return entries, errs, nil
}

func parseVEvent(ve *ical.VEvent) (Entry, error) {
	var entry Entry

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return entry, fmt.Errorf("event missing UID")
	}
	entry.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		entry.Summary = unescapeText(p.Value)
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	endProp := ve.GetProperty(ical.ComponentPropertyDtEnd)
	if startProp == nil || endProp == nil {
		return entry, fmt.Errorf("event %s missing DTSTART or DTEND", entry.UID)
	}

	start, startDateOnly, err := projector.ParseFlexibleTime(startProp.Value)
	if err != nil {
		return entry, fmt.Errorf("event %s: DTSTART: %w", entry.UID, err)
	}
	end, _, err := projector.ParseFlexibleTime(endProp.Value)
	if err != nil {
		return entry, fmt.Errorf("event %s: DTEND: %w", entry.UID, err)
	}
	if !start.Before(end) {
		return entry, fmt.Errorf("event %s: DTEND %s is not after DTSTART %s", entry.UID, endProp.Value, startProp.Value)
	}

	entry.Start = start
	entry.End = end
	entry.AllDay = startDateOnly || hasDateValueParam(startProp)
	return entry, nil
}

// hasDateValueParam reports whether the property declares VALUE=DATE.
func hasDateValueParam(p *ical.IANAProperty) bool {
	if p.ICalParameters == nil {
		return false
	}
	values, ok := p.ICalParameters["VALUE"]
	return ok && len(values) > 0 && strings.EqualFold(values[0], "DATE")
}

// unescapeText undoes the common iCal text escapes.
func unescapeText(v string) string {
	v = strings.ReplaceAll(v, "\\n", "\n")
	v = strings.ReplaceAll(v, "\\,", ",")
	v = strings.ReplaceAll(v, "\\;", ";")
	v = strings.ReplaceAll(v, "\\\\", "\\")
	return v
}
