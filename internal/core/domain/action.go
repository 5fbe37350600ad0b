package domain

import (
	"fmt"
	"time"
)

// FrequencyDaily is the only frequency rule the kernel materializes.
const FrequencyDaily = "daily"

// DateLayout is the civil-date format used for scheduled dates.
const DateLayout = "2006-01-02"

// Action is a recurring commitment owned by one user.
type Action struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	Title                 string    `json:"title"`
	FrequencyRule         string    `json:"frequency_rule"`
	WindowStartTime       string    `json:"window_start_time"` // HH:MM, local time
	WindowDurationMinutes int       `json:"window_duration_minutes"`
	IsStrict              bool      `json:"is_strict"`
	Archived              bool      `json:"archived"`
	CreatedAt             time.Time `json:"created_at"`
}

// IsDaily reports whether the action recurs every day.
func (a *Action) IsDaily() bool {
	return a.FrequencyRule == FrequencyDaily
}

// WindowOn combines the action's window with the calendar day of day, in
// day's location.
func (a *Action) WindowOn(day time.Time) (start, end time.Time, err error) {
	clock, err := time.Parse("15:04", a.WindowStartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %q", ErrInvalidWindow, a.WindowStartTime)
	}
	if a.WindowDurationMinutes <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: duration %d", ErrInvalidWindow, a.WindowDurationMinutes)
	}

	y, m, d := day.Date()
	start = time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, day.Location())
	end = start.Add(time.Duration(a.WindowDurationMinutes) * time.Minute)
	return start, end, nil
}

// StartOfDay truncates t to local midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DateRange is an inclusive range of civil dates.
type DateRange struct {
	From string
	To   string
}

// Contains reports whether date falls inside the range.
func (r DateRange) Contains(date string) bool {
	return date >= r.From && date <= r.To
}
