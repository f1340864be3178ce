// Package calendar provides the pure month-grid projection used to enumerate
// selectable day keys. It performs no I/O and never touches the schedule cache.
package calendar

import (
	"iter"
	"time"

	"github.com/example/dutyroster/internal/duty"
)

// GridCells is the fixed number of day cells in the six week month view.
const GridCells = 42

// MonthGrid returns the ordered sequence of dates filling a 6x7 month view for
// the given year and month: the grid starts on the most recent weekStart on or
// before the first of the month and always spans exactly 42 days, so leading
// and trailing days of the adjacent months are included.
//
// The sequence is lazy and restartable; ranging over it twice yields the same
// dates. All values are midnight in loc (UTC when loc is nil).
func MonthGrid(year int, month time.Month, weekStart time.Weekday, loc *time.Location) iter.Seq[time.Time] {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := int(first.Weekday()-weekStart+7) % 7
	start := first.AddDate(0, 0, -offset)

	return func(yield func(time.Time) bool) {
		for i := 0; i < GridCells; i++ {
			if !yield(start.AddDate(0, 0, i)) {
				return
			}
		}
	}
}

// DateKey formats a date as the YYYY-MM-DD cache key.
func DateKey(t time.Time) string {
	return t.Format(duty.DateKeyLayout)
}

// ParseDateKey parses a YYYY-MM-DD cache key back into a UTC midnight instant.
func ParseDateKey(key string) (time.Time, error) {
	return time.Parse(duty.DateKeyLayout, key)
}

// SameMonth reports whether the date belongs to the given year and month,
// distinguishing in-month cells from the grid's leading and trailing filler.
func SameMonth(t time.Time, year int, month time.Month) bool {
	return t.Year() == year && t.Month() == month
}

// Add navigates from one (year, month) pair to another by a signed number of
// months, normalizing overflow in either direction.
func Add(year int, month time.Month, delta int) (int, time.Month) {
	shifted := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, delta, 0)
	return shifted.Year(), shifted.Month()
}
