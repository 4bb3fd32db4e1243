package projector

import (
	"fmt"
	"strings"
	"time"
)

// flexibleFormats are the accepted encodings for a single timestamp value,
// tried in order. Date-only values parse to midnight.
var flexibleFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"20060102T150405Z",
	"20060102T150405",
	"20060102",
}

// ParseFlexibleTime parses a timestamp in any of the supported encodings.
// dateOnly reports whether the value carried no time-of-day component.
func ParseFlexibleTime(value string) (t time.Time, dateOnly bool, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, fmt.Errorf("empty time value")
	}

	for _, format := range flexibleFormats {
		parsed, perr := time.Parse(format, value)
		if perr != nil {
			continue
		}
		dateOnly = format == "2006-01-02" || format == "20060102"
		return parsed.UTC(), dateOnly, nil
	}
	return time.Time{}, false, fmt.Errorf("unparseable time value %q", value)
}

// TimeWindowInput is the flexible wire encoding for a start/end window: a
// pair of full timestamps, or a date with separate start/end time-of-day
// fields, or a bare date.
type TimeWindowInput struct {
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
	Date      string `json:"date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// NormalizeWindow resolves a TimeWindowInput into a concrete half-open
// [start, end) pair. A bare date yields the full day.
func NormalizeWindow(in TimeWindowInput) (start, end time.Time, err error) {
	switch {
	case in.Start != "" && in.End != "":
		var startDateOnly, endDateOnly bool
		start, startDateOnly, err = ParseFlexibleTime(in.Start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
		}
		end, endDateOnly, err = ParseFlexibleTime(in.End)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
		}
		// A date-only end means "through the end of that day" only when the
		// start is also date-only; mixed encodings are taken literally.
		if startDateOnly && endDateOnly && !end.After(start) {
			end = end.Add(24 * time.Hour)
		}

	case in.Date != "" && in.StartTime != "" && in.EndTime != "":
		day, _, derr := ParseFlexibleTime(in.Date)
		if derr != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("date: %w", derr)
		}
		start, err = combineDayTime(day, in.StartTime)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start_time: %w", err)
		}
		end, err = combineDayTime(day, in.EndTime)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end_time: %w", err)
		}
		// Windows crossing midnight roll the end into the next day.
		if !end.After(start) {
			end = end.Add(24 * time.Hour)
		}

	case in.Date != "":
		day, _, derr := ParseFlexibleTime(in.Date)
		if derr != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("date: %w", derr)
		}
		start = day
		end = day.Add(24 * time.Hour)

	default:
		return time.Time{}, time.Time{}, fmt.Errorf("no usable date fields in input")
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("window end %s is not after start %s", end, start)
	}
	return start, end, nil
}

// combineDayTime applies an "HH:MM" or "HH:MM:SS" time-of-day to a date.
func combineDayTime(day time.Time, clock string) (time.Time, error) {
	var hour, minute, second int
	switch strings.Count(clock, ":") {
	case 1:
		if _, err := fmt.Sscanf(clock, "%d:%d", &hour, &minute); err != nil {
			return time.Time{}, fmt.Errorf("unparseable clock value %q", clock)
		}
	case 2:
		if _, err := fmt.Sscanf(clock, "%d:%d:%d", &hour, &minute, &second); err != nil {
			return time.Time{}, fmt.Errorf("unparseable clock value %q", clock)
		}
	default:
		return time.Time{}, fmt.Errorf("unparseable clock value %q", clock)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return time.Time{}, fmt.Errorf("clock value %q out of range", clock)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, day.Location()), nil
}
