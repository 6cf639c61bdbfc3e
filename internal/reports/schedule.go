package reports

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/google/uuid"
)

// SlotKey builds the idempotency key that collapses duplicate scans of the
// same schedule slot.
func SlotKey(scheduleID uuid.UUID, slot time.Time) string {
	return fmt.Sprintf("schedule:%s:%s", scheduleID, slot.UTC().Format(time.RFC3339))
}

// NextRunAt computes the first occurrence of a schedule strictly after the
// given instant, in the schedule's IANA timezone. DST shifts fall out of the
// location arithmetic.
func NextRunAt(s domain.ReportSchedule, after time.Time, defaultTZ string) (time.Time, error) {
	tz := s.Timezone
	if tz == "" {
		tz = defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule %s: bad timezone %q: %w", s.ID, tz, err)
	}

	hour, minute, err := parseTimeLocal(s.TimeLocal)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule %s: %w", s.ID, err)
	}

	local := after.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)

	switch s.Frequency {
	case domain.FrequencyWeekly:
		if s.DayOfWeek == nil {
			return time.Time{}, fmt.Errorf("schedule %s: weekly frequency requires day_of_week", s.ID)
		}
		if *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
			return time.Time{}, fmt.Errorf("schedule %s: day_of_week %d out of range", s.ID, *s.DayOfWeek)
		}
		day := time.Weekday(*s.DayOfWeek)
		for candidate.Weekday() != day || !candidate.After(after) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	default: // daily
		if !candidate.After(after) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	}
	return candidate, nil
}

func parseTimeLocal(v string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(v), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad time_local %q", v)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad time_local %q", v)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad time_local %q", v)
	}
	return hour, minute, nil
}
