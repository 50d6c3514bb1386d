package query

import (
	"time"

	"github.com/jinzhu/now"

	"taskdesk/internal/domain"
)

// calendarCfg pins weeks to start on Sunday regardless of package defaults.
var calendarCfg = &now.Config{WeekStartDay: time.Sunday}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// DayWindow is the local calendar day containing t, in t's location.
func DayWindow(t time.Time) Window {
	start := calendarCfg.With(t).BeginningOfDay()
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// WeekWindow is the Sunday-started week containing t.
func WeekWindow(t time.Time) Window {
	start := calendarCfg.With(t).BeginningOfWeek()
	return Window{Start: start, End: start.AddDate(0, 0, 7)}
}

// MonthWindow is the calendar month containing t.
func MonthWindow(t time.Time) Window {
	start := calendarCfg.With(t).BeginningOfMonth()
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// IsOverdue is the single overdue definition shared by filters and metrics.
func IsOverdue(t domain.Task, at time.Time) bool {
	if t.DueDate == nil || t.Status.Closed() {
		return false
	}
	return t.DueDate.Before(at)
}

// IsDueToday reports a due date inside today's window that has not already
// passed, so a task is never both due today and overdue.
func IsDueToday(t domain.Task, at time.Time) bool {
	if t.DueDate == nil || IsOverdue(t, at) {
		return false
	}
	return DayWindow(at).Contains(*t.DueDate)
}

// IsDueThisWeek applies the same exclusion as IsDueToday over the week window.
func IsDueThisWeek(t domain.Task, at time.Time) bool {
	if t.DueDate == nil || IsOverdue(t, at) {
		return false
	}
	return WeekWindow(at).Contains(*t.DueDate)
}

// DisplayStatus projects the derived overdue state over the stored status.
func DisplayStatus(t domain.Task, at time.Time) domain.Status {
	if IsOverdue(t, at) {
		return domain.StatusOverdue
	}
	return t.Status
}
