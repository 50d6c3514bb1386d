package scheduler

import (
	"time"

	"taskdesk/internal/domain"
)

// NextOccurrence returns the first occurrence of p strictly after from. The
// second result is false once the pattern's end date is passed.
func NextOccurrence(p *domain.RecurringPattern, from time.Time) (time.Time, bool) {
	if p == nil {
		return time.Time{}, false
	}
	interval := p.Interval
	if interval < 1 {
		interval = 1
	}
	var next time.Time
	switch p.Frequency {
	case domain.FrequencyDaily:
		next = from.AddDate(0, 0, interval)
	case domain.FrequencyWeekly:
		next = nextWeekly(from, interval, p.DaysOfWeek)
	case domain.FrequencyMonthly:
		next = addMonths(from, interval)
	case domain.FrequencyYearly:
		next = addMonths(from, 12*interval)
	default:
		return time.Time{}, false
	}
	if p.EndDate != nil && next.After(*p.EndDate) {
		return time.Time{}, false
	}
	return next, true
}

// nextWeekly picks the next listed weekday in the current week, otherwise the
// first listed weekday interval weeks later. Weeks start on Sunday.
func nextWeekly(from time.Time, interval int, days []time.Weekday) time.Time {
	if len(days) == 0 {
		return from.AddDate(0, 0, 7*interval)
	}
	set := make(map[time.Weekday]bool, len(days))
	first := time.Saturday
	for _, d := range days {
		set[d] = true
		if d < first {
			first = d
		}
	}
	for d := from.Weekday() + 1; d <= time.Saturday; d++ {
		if set[d] {
			return from.AddDate(0, 0, int(d-from.Weekday()))
		}
	}
	weekStart := from.AddDate(0, 0, -int(from.Weekday()))
	return weekStart.AddDate(0, 0, 7*interval+int(first))
}

// addMonths clamps to the last day of the target month, so Jan 31 plus one
// month is Feb 28 or 29.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := target.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return target.AddDate(0, 0, d-1)
}
