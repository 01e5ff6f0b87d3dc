package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeRange represents a time range for queries.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range, bounds included.
func (tr *TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && !t.After(tr.End)
}

// ParseTimeRange parses Splunk-like time range specifications.
//
// Relative: -1h, -30m, -7d, -1w, optionally snapped: -1d@d. Snap alone: @h, @d.
// Absolute: 2024-01-15, 2024-01-15T14:30:00, RFC3339, unix seconds or millis.
// Keywords: now, today, yesterday. An empty value means now.
func ParseTimeRange(earliest, latest string) (*TimeRange, error) {
	now := time.Now()

	start, err := parseTimeSpec(earliest, now)
	if err != nil {
		return nil, fmt.Errorf("invalid earliest time '%s': %w", earliest, err)
	}

	end, err := parseTimeSpec(latest, now)
	if err != nil {
		return nil, fmt.Errorf("invalid latest time '%s': %w", latest, err)
	}

	if start.After(end) {
		return nil, fmt.Errorf("earliest time (%s) is after latest time (%s)", start, end)
	}

	return &TimeRange{Start: start, End: end}, nil
}

// ParseRelativeTime parses a single time specification relative to now.
func ParseRelativeTime(spec string) (time.Time, error) {
	return parseTimeSpec(spec, time.Now())
}

var relativeRe = regexp.MustCompile(`^([+-])(\d+)([smhdwMy])(?:@([smhdwMy]))?$`)

func parseTimeSpec(spec string, now time.Time) (time.Time, error) {
	spec = strings.TrimSpace(spec)

	switch strings.ToLower(spec) {
	case "", "now":
		return now, nil
	case "today":
		return snap(now, "d")
	case "yesterday":
		return snap(now.AddDate(0, 0, -1), "d")
	}

	if ts, err := strconv.ParseInt(spec, 10, 64); err == nil && ts >= 0 {
		if ts > 1e12 {
			return time.UnixMilli(ts), nil
		}
		return time.Unix(ts, 0), nil
	}

	if strings.HasPrefix(spec, "@") {
		return snap(now, spec[1:])
	}

	if m := relativeRe.FindStringSubmatch(spec); m != nil {
		amount, _ := strconv.Atoi(m[2])
		if m[1] == "-" {
			amount = -amount
		}
		t := shift(now, amount, m[3])
		if m[4] != "" {
			return snap(t, m[4])
		}
		return t, nil
	}
	if strings.HasPrefix(spec, "-") || strings.HasPrefix(spec, "+") {
		return time.Time{}, fmt.Errorf("invalid relative time format")
	}

	return parseAbsolute(spec)
}

// shift moves t by amount units; s, m, h are clock units, the rest calendar.
func shift(t time.Time, amount int, unit string) time.Time {
	switch unit {
	case "s":
		return t.Add(time.Duration(amount) * time.Second)
	case "m":
		return t.Add(time.Duration(amount) * time.Minute)
	case "h":
		return t.Add(time.Duration(amount) * time.Hour)
	case "d":
		return t.AddDate(0, 0, amount)
	case "w":
		return t.AddDate(0, 0, 7*amount)
	case "M":
		return t.AddDate(0, amount, 0)
	case "y":
		return t.AddDate(amount, 0, 0)
	}
	return t
}

// snap truncates t to the start of the unit; weeks start on Monday.
func snap(t time.Time, unit string) (time.Time, error) {
	y, mo, d := t.Date()
	loc := t.Location()
	switch unit {
	case "s":
		return t.Truncate(time.Second), nil
	case "m":
		return t.Truncate(time.Minute), nil
	case "h":
		return time.Date(y, mo, d, t.Hour(), 0, 0, 0, loc), nil
	case "d":
		return time.Date(y, mo, d, 0, 0, 0, 0, loc), nil
	case "w":
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, mo, d-offset, 0, 0, 0, 0, loc), nil
	case "M":
		return time.Date(y, mo, 1, 0, 0, 0, 0, loc), nil
	case "y":
		return time.Date(y, 1, 1, 0, 0, 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("unknown snap unit: %s", unit)
}

var absoluteFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseAbsolute(spec string) (time.Time, error) {
	for _, format := range absoluteFormats {
		if t, err := time.ParseInLocation(format, spec, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format")
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return joinUnits(int(d.Hours()), "h", int(d.Minutes())%60, "m")
	}
	return joinUnits(int(d.Hours())/24, "d", int(d.Hours())%24, "h")
}

func joinUnits(major int, majorUnit string, minor int, minorUnit string) string {
	if minor == 0 {
		return fmt.Sprintf("%d%s", major, majorUnit)
	}
	return fmt.Sprintf("%d%s%d%s", major, majorUnit, minor, minorUnit)
}
