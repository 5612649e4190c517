package frequency

import (
	"fmt"
	"time"

	"github.com/solatis/experiences/internal/types"
)

// Window keys are computed in UTC so every host agrees on boundaries.
// Weeks start on Monday (ISO 8601).
const (
	hourLayout = "2006-01-02T15"
	dayLayout  = "2006-01-02"
)

// WindowKey returns the identifier of the window containing now.
//
//	hour: 2025-03-14T09
//	day:  2025-03-14
//	week: 2025-W11
func WindowKey(per types.Window, now time.Time) (string, error) {
	now = now.UTC()
	switch per {
	case types.WindowHour:
		return now.Truncate(time.Hour).Format(hourLayout), nil
	case types.WindowDay:
		return now.Format(dayLayout), nil
	case types.WindowWeek:
		year, week := now.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), nil
	default:
		return "", fmt.Errorf("%w: %q", types.ErrInvalidWindow, per)
	}
}

// WindowStart returns the instant the window containing now began.
func WindowStart(per types.Window, now time.Time) (time.Time, error) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch per {
	case types.WindowHour:
		return now.Truncate(time.Hour), nil
	case types.WindowDay:
		return day, nil
	case types.WindowWeek:
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", types.ErrInvalidWindow, per)
	}
}
