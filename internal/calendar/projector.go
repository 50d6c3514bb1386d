package calendar

import (
	"sort"
	"time"

	"taskdesk/internal/domain"
	"taskdesk/internal/query"
)

type Source string

const (
	SourceTask  Source = "task"
	SourceEvent Source = "event"
)

// Entry is one displayable calendar item. Task entries carry priority and
// status for styling; event entries carry their calendar id.
type Entry struct {
	ID         string          `json:"id"`
	Source     Source          `json:"source"`
	Title      string          `json:"title"`
	Start      time.Time       `json:"start"`
	End        time.Time       `json:"end"`
	AllDay     bool            `json:"allDay"`
	TaskID     string          `json:"taskId,omitempty"`
	EventID    string          `json:"eventId,omitempty"`
	CalendarID string          `json:"calendarId,omitempty"`
	Priority   domain.Priority `json:"priority,omitempty"`
	Status     domain.Status   `json:"status,omitempty"`
	Location   string          `json:"location,omitempty"`
}

// Project merges dated tasks and visible calendar events into one list
// sorted by start time. An empty visible set yields no event entries.
func Project(tasks []domain.Task, events []domain.CalendarEvent, visible []string) []Entry {
	out := make([]Entry, 0, len(tasks)+len(events))
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		day := query.DayWindow(*t.DueDate)
		out = append(out, Entry{
			ID:       "task:" + t.ID,
			Source:   SourceTask,
			Title:    t.Title,
			Start:    day.Start,
			End:      day.End,
			AllDay:   true,
			TaskID:   t.ID,
			Priority: t.Priority,
			Status:   t.Status,
		})
	}
	shown := make(map[string]struct{}, len(visible))
	for _, id := range visible {
		shown[id] = struct{}{}
	}
	for _, e := range events {
		if _, ok := shown[e.CalendarID]; !ok {
			continue
		}
		out = append(out, Entry{
			ID:         "event:" + e.ID,
			Source:     SourceEvent,
			Title:      e.Title,
			Start:      e.Start,
			End:        e.End,
			AllDay:     e.AllDay,
			TaskID:     e.TaskID,
			EventID:    e.ID,
			CalendarID: e.CalendarID,
			Location:   e.Location,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
