package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Interval is a same-day time range expressed as "HH:MM" wall-clock
// strings, half-open: a booking ending exactly at Start of another
// interval does not conflict with it.
type Interval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DaySchedule is one day of a provider's weekly availability.
type DaySchedule struct {
	Enabled   bool       `json:"isEnabled"`
	Intervals []Interval `json:"intervals"`
}

// WeeklySchedule holds the provider's declared hours for all seven days.
// It is read-only input to the booking core; the provider-profile side
// owns writes.
type WeeklySchedule struct {
	Monday    DaySchedule `json:"monday"`
	Tuesday   DaySchedule `json:"tuesday"`
	Wednesday DaySchedule `json:"wednesday"`
	Thursday  DaySchedule `json:"thursday"`
	Friday    DaySchedule `json:"friday"`
	Saturday  DaySchedule `json:"saturday"`
	Sunday    DaySchedule `json:"sunday"`
}

// Day returns the schedule entry for the given weekday.
func (ws WeeklySchedule) Day(d time.Weekday) DaySchedule {
	switch d {
	case time.Monday:
		return ws.Monday
	case time.Tuesday:
		return ws.Tuesday
	case time.Wednesday:
		return ws.Wednesday
	case time.Thursday:
		return ws.Thursday
	case time.Friday:
		return ws.Friday
	case time.Saturday:
		return ws.Saturday
	default:
		return ws.Sunday
	}
}

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// ParseDate parses a calendar date in "YYYY-MM-DD" form.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

// Overlaps reports whether two half-open minute windows [s1,e1) and
// [s2,e2) conflict. Boundary-adjacent windows do not.
func Overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && s2 < e1
}

// WindowWithin reports whether the requested window, given as a date,
// an "HH:MM" start and a duration in minutes, falls entirely inside one
// of the enabled intervals for that date's weekday. A disabled day or a
// window straddling interval boundaries is outside availability.
func WindowWithin(ws WeeklySchedule, date string, start string, durationMinutes int) (bool, error) {
	d, err := ParseDate(date)
	if err != nil {
		return false, err
	}
	startMin, err := ParseClock(start)
	if err != nil {
		return false, err
	}
	if durationMinutes <= 0 {
		return false, fmt.Errorf("duration must be positive, got %d", durationMinutes)
	}
	endMin := startMin + durationMinutes

	day := ws.Day(d.Weekday())
	if !day.Enabled {
		return false, nil
	}

	for _, iv := range day.Intervals {
		ivStart, err := ParseClock(iv.Start)
		if err != nil {
			return false, fmt.Errorf("schedule interval: %w", err)
		}
		ivEnd, err := ParseClock(iv.End)
		if err != nil {
			return false, fmt.Errorf("schedule interval: %w", err)
		}
		if startMin >= ivStart && endMin <= ivEnd {
			return true, nil
		}
	}

	return false, nil
}
