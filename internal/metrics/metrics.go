package metrics

import (
	"math"
	"time"

	"taskdesk/internal/domain"
	"taskdesk/internal/query"
)

// Metrics summarizes the whole task collection at a point in time.
type Metrics struct {
	Total                 int                     `json:"total"`
	Completed             int                     `json:"completed"`
	Pending               int                     `json:"pending"`
	InProgress            int                     `json:"inProgress"`
	Overdue               int                     `json:"overdue"`
	CompletedToday        int                     `json:"completedToday"`
	CompletedThisWeek     int                     `json:"completedThisWeek"`
	CompletedThisMonth    int                     `json:"completedThisMonth"`
	AverageCompletionTime float64                 `json:"averageCompletionTime"`
	CompletionRate        float64                 `json:"completionRate"`
	ByType                map[domain.TaskType]int `json:"byType"`
	ByPriority            map[domain.Priority]int `json:"byPriority"`
	ByStatus              map[domain.Status]int   `json:"byStatus"`
	ProductivityScore     float64                 `json:"productivityScore"`
}

const day = 24 * time.Hour

// Compute derives metrics over every task. Time windows are taken in the
// location of now.
func Compute(tasks []domain.Task, now time.Time) Metrics {
	m := Metrics{
		Total:      len(tasks),
		ByType:     make(map[domain.TaskType]int, len(domain.TaskTypes)),
		ByPriority: make(map[domain.Priority]int, len(domain.Priorities)),
		ByStatus:   make(map[domain.Status]int, len(domain.Statuses)),
	}
	for _, t := range domain.TaskTypes {
		m.ByType[t] = 0
	}
	for _, p := range domain.Priorities {
		m.ByPriority[p] = 0
	}
	for _, s := range domain.Statuses {
		m.ByStatus[s] = 0
	}

	today, week, month := query.DayWindow(now), query.WeekWindow(now), query.MonthWindow(now)
	var durations float64
	var timed int
	for _, t := range tasks {
		m.ByType[t.Type]++
		m.ByPriority[t.Priority]++
		m.ByStatus[t.Status]++
		switch t.Status {
		case domain.StatusCompleted:
			m.Completed++
		case domain.StatusPending:
			m.Pending++
		case domain.StatusInProgress:
			m.InProgress++
		}
		if query.IsOverdue(t, now) {
			m.Overdue++
		}
		if t.CompletedDate == nil {
			continue
		}
		done := *t.CompletedDate
		if today.Contains(done) {
			m.CompletedToday++
		}
		if week.Contains(done) {
			m.CompletedThisWeek++
		}
		if month.Contains(done) {
			m.CompletedThisMonth++
		}
		if !t.CreatedAt.IsZero() {
			durations += float64(done.Sub(t.CreatedAt)) / float64(day)
			timed++
		}
	}
	if timed > 0 {
		m.AverageCompletionTime = durations / float64(timed)
	}
	if m.Total > 0 {
		m.CompletionRate = float64(m.Completed) / float64(m.Total) * 100
	}
	m.ProductivityScore = math.Min(100, m.CompletionRate+float64(m.CompletedToday)*5)
	return m
}

func OverdueTasks(tasks []domain.Task, now time.Time) []domain.Task {
	return collect(tasks, now, query.IsOverdue)
}

func DueToday(tasks []domain.Task, now time.Time) []domain.Task {
	return collect(tasks, now, query.IsDueToday)
}

func DueThisWeek(tasks []domain.Task, now time.Time) []domain.Task {
	return collect(tasks, now, query.IsDueThisWeek)
}

func collect(tasks []domain.Task, now time.Time, pred func(domain.Task, time.Time) bool) []domain.Task {
	out := make([]domain.Task, 0)
	for _, t := range tasks {
		if pred(t, now) {
			out = append(out, t)
		}
	}
	return out
}
