package service

import (
	"fmt"
	"time"

	"github.com/traininjapan/booking-api/internal/models"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"

	maxGeneratedSessions = 1000
)

// RecurrenceRule is the input to ExpandRecurrence. Days uses ISO weekdays (1=Monday..7=Sunday) and
// is only read for weekly rules; Interval is only read for custom rules.
type RecurrenceRule struct {
	Type      models.RecurrenceType
	StartDate string
	EndDate   string
	Days      []int
	Interval  int
}

// ExpandRecurrence returns the ordered calendar dates on which sessions occur.
func ExpandRecurrence(rule RecurrenceRule) ([]time.Time, error) {
	start, err := parseDate(rule.StartDate)
	if err != nil {
		return nil, invalidSchedule("start_date must be YYYY-MM-DD")
	}
	end, err := parseDate(rule.EndDate)
	if err != nil {
		return nil, invalidSchedule("end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, invalidSchedule("end_date must not be before start_date")
	}

	var include func(offset int, day time.Time) bool
	switch rule.Type {
	case models.RecurrenceOnce:
		return []time.Time{start}, nil
	case models.RecurrenceDaily:
		include = func(int, time.Time) bool { return true }
	case models.RecurrenceWeekly:
		weekdays := make(map[int]struct{}, len(rule.Days))
		for _, d := range rule.Days {
			if d < 1 || d > 7 {
				return nil, invalidSchedule(fmt.Sprintf("recurrence day %d outside 1..7", d))
			}
			weekdays[d] = struct{}{}
		}
		include = func(_ int, day time.Time) bool {
			_, ok := weekdays[isoWeekday(day)]
			return ok
		}
	case models.RecurrenceCustom:
		if rule.Interval <= 0 {
			return nil, invalidSchedule("recurrence_interval must be at least 1")
		}
		interval := rule.Interval
		include = func(offset int, _ time.Time) bool { return offset%interval == 0 }
	default:
		return nil, invalidSchedule(fmt.Sprintf("unknown recurrence_type %q", rule.Type))
	}

	var dates []time.Time
	for offset, day := 0, start; !day.After(end); offset, day = offset+1, day.AddDate(0, 0, 1) {
		if !include(offset, day) {
			continue
		}
		if len(dates) == maxGeneratedSessions {
			return nil, invalidSchedule(fmt.Sprintf("schedule would generate more than %d sessions", maxGeneratedSessions))
		}
		dates = append(dates, day)
	}
	return dates, nil
}

// validateWindow checks an HH:MM pair where end is strictly after start.
func validateWindow(startTime, endTime string) error {
	start, err := time.Parse(clockLayout, startTime)
	if err != nil {
		return invalidSchedule("start_time must be HH:MM")
	}
	end, err := time.Parse(clockLayout, endTime)
	if err != nil {
		return invalidSchedule("end_time must be HH:MM")
	}
	if !end.After(start) {
		return invalidSchedule("end_time must be after start_time")
	}
	return nil
}

// windowsOverlap compares half-open [start, end) HH:MM windows. Zero-padded clock strings order
// lexicographically, so touching boundaries do not overlap.
func windowsOverlap(aStart, aEnd, bStart, bEnd string) bool {
	return aStart < bEnd && aEnd > bStart
}

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, value, time.UTC)
}

func isoWeekday(day time.Time) int {
	wd := int(day.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func invalidSchedule(message string) error {
	return appErrors.Clone(appErrors.ErrInvalidSchedule, message)
}
