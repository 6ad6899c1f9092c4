package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultReminderOffset is used when a reminder time can't be understood
const DefaultReminderOffset = time.Hour

// MaxRelativeOffset is the furthest "in N units" expression accepted
const MaxRelativeOffset = 10 * 365 * 24 * time.Hour

var (
	relativeTime = regexp.MustCompile(`^(?:in|after) (\d+) (seconds?|secs?|minutes?|mins?|hours?|hrs?|days?)$`)
	clockTime    = regexp.MustCompile(`^(tomorrow )?at (\d{1,2})(?::(\d{2}))? ?(am|pm)?$`)
	isoDate      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ParseTime resolves a reminder time expression relative to now:
//
//	in 30 minutes, after 2 hours, in 1 day
//	at 5pm, at 17:30, tomorrow at 9am
//	tomorrow
//
// Relative offsets beyond MaxRelativeOffset are not understood. Anything else
// (including "") resolves to now + DefaultReminderOffset with
// fallback set.
func ParseTime(expr string, now time.Time) (t time.Time, fallback bool) {
	if t, ok := parseTimeExpr(expr, now); ok {
		return t, false
	}
	return now.Add(DefaultReminderOffset), true
}

func parseTimeExpr(expr string, now time.Time) (time.Time, bool) {
	expr = strings.ToLower(strings.Join(strings.Fields(expr), " "))
	if expr == "" {
		return time.Time{}, false
	}

	if m := relativeTime.FindStringSubmatch(expr); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		unit := unitDuration(m[2])
		if err != nil || n > int64(MaxRelativeOffset/unit) {
			return time.Time{}, false
		}
		return now.Add(time.Duration(n) * unit), true
	}

	if m := clockTime.FindStringSubmatch(expr); m != nil {
		hour, _ := strconv.Atoi(m[2])
		minute := 0
		if m[3] != "" {
			minute, _ = strconv.Atoi(m[3])
		}
		if minute > 59 {
			return time.Time{}, false
		}
		switch m[4] {
		case "am", "pm":
			if hour < 1 || hour > 12 {
				return time.Time{}, false
			}
			hour %= 12
			if m[4] == "pm" {
				hour += 12
			}
		default:
			if hour > 23 {
				return time.Time{}, false
			}
		}

		t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if m[1] != "" {
			t = t.AddDate(0, 0, 1)
		} else if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, true
	}

	if expr == "tomorrow" {
		return now.Add(24 * time.Hour), true
	}
	return time.Time{}, false
}

func unitDuration(unit string) time.Duration {
	switch {
	case strings.HasPrefix(unit, "s"):
		return time.Second
	case strings.HasPrefix(unit, "m"):
		return time.Minute
	case strings.HasPrefix(unit, "h"):
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

// ParseDate resolves a task due date: any ParseTime expression, today,
// tonight, a weekday name (next occurrence), next week, or an ISO / month-day
// date. Dates without a clock time land at 09:00. ok is false when nothing
// matched; due dates have no fallback.
func ParseDate(expr string, now time.Time) (time.Time, bool) {
	expr = strings.ToLower(strings.Join(strings.Fields(expr), " "))
	expr = strings.TrimPrefix(expr, "on ")
	expr = strings.TrimPrefix(expr, "next ")
	if t, ok := parseTimeExpr(expr, now); ok {
		return t, true
	}

	morning := func(d time.Time) time.Time {
		return time.Date(d.Year(), d.Month(), d.Day(), 9, 0, 0, 0, now.Location())
	}
	switch expr {
	case "today":
		return time.Date(now.Year(), now.Month(), now.Day(), 17, 0, 0, 0, now.Location()), true
	case "tonight":
		return time.Date(now.Year(), now.Month(), now.Day(), 20, 0, 0, 0, now.Location()), true
	case "week":
		return morning(now.AddDate(0, 0, 7)), true
	}
	if wd, ok := weekdays[expr]; ok {
		days := (int(wd) - int(now.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return morning(now.AddDate(0, 0, days)), true
	}

	if isoDate.MatchString(expr) {
		if t, err := time.ParseInLocation("2006-01-02", expr, now.Location()); err == nil {
			return t.Add(9 * time.Hour), true
		}
	}
	for _, layout := range []string{"January 2", "Jan 2", "January 2 2006", "Jan 2 2006", "1/2", "1/2/2006"} {
		t, err := time.ParseInLocation(layout, strings.ReplaceAll(expr, ",", ""), now.Location())
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			t = time.Date(now.Year(), t.Month(), t.Day(), 9, 0, 0, 0, now.Location())
			if t.Before(now) {
				t = t.AddDate(1, 0, 0)
			}
			return t, true
		}
		return t.Add(9 * time.Hour), true
	}
	return time.Time{}, false
}
