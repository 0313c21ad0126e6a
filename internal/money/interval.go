package money

import (
	"fmt"
	"strings"
	"time"
)

// Interval is a closed range [Start, End] of instants.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && !t.After(i.End)
}

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func Day(t time.Time) Interval {
	return Interval{Start: StartOfDay(t), End: EndOfDay(t)}
}

func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

func Month(t time.Time) Interval {
	return Interval{Start: StartOfMonth(t), End: EndOfMonth(t)}
}

// MonthsBack returns the month interval n calendar months before t's month.
func MonthsBack(t time.Time, n int) Interval {
	return Month(StartOfMonth(t).AddDate(0, -n, 0))
}

func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

func EndOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	return StartOfWeek(t, weekStart).AddDate(0, 0, 7).Add(-time.Nanosecond)
}

func Week(t time.Time, weekStart time.Weekday) Interval {
	return Interval{Start: StartOfWeek(t, weekStart), End: EndOfWeek(t, weekStart)}
}

// WeeksBack returns the week interval n weeks before t's week.
func WeeksBack(t time.Time, weekStart time.Weekday, n int) Interval {
	return Week(StartOfWeek(t, weekStart).AddDate(0, 0, -7*n), weekStart)
}

// ShortMonth is the three-letter month label used by charts.
func ShortMonth(t time.Time) string {
	return t.Month().String()[:3]
}

func ParseWeekday(raw string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", raw)
}

// DayKey formats a calendar day as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
