package engine

import (
	"context"
	"fmt"
	"time"

	"taskdesk/internal/domain"
	"taskdesk/internal/events"
)

// SpawnOccurrence materializes the next instance of a recurring task. The
// caller computes the due date; the engine only checks the pattern bounds
// and that the occurrence does not exist yet.
func (e *Engine) SpawnOccurrence(ctx context.Context, taskID string, due time.Time, actor domain.Actor) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	src, err := e.getTask(taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if src.Recurrence == nil {
		return domain.Task{}, domain.Validationf("task %s does not recur", taskID)
	}
	series := src.SeriesID
	if series == "" {
		series = src.ID
	}
	occurrence := src.Occurrence + 1
	if src.Occurrence == 0 {
		occurrence = 2
	}
	p := src.Recurrence
	if p.MaxOccurrences > 0 && occurrence > p.MaxOccurrences {
		return domain.Task{}, domain.Invariantf("series %s is limited to %d occurrences", series, p.MaxOccurrences)
	}
	if p.EndDate != nil && due.After(*p.EndDate) {
		return domain.Task{}, domain.Invariantf("series %s ended on %s", series, p.EndDate.Format(time.DateOnly))
	}
	for _, t := range e.Store.Tasks.Values() {
		if t.SeriesID == series && t.Occurrence == occurrence {
			return domain.Task{}, domain.Invariantf("occurrence %d of series %s already exists", occurrence, series)
		}
	}

	now := e.now()
	next := src.Clone()
	next.ID = e.newID()
	next.Status = domain.StatusPending
	next.CompletedDate = nil
	next.ActualDuration = nil
	next.CreatedAt = now
	next.UpdatedAt = now
	next.DueDate = &due
	next.SeriesID = series
	next.Occurrence = occurrence
	next.Attachments = []domain.TaskAttachment{}
	for i := range next.Subtasks {
		next.Subtasks[i].ID = e.newID()
		next.Subtasks[i].Status = domain.SubTaskPending
		next.Subtasks[i].CompletedDate = nil
		next.Subtasks[i].CreatedAt = now
	}
	// reminders keep their offset from the due date
	next.Reminders = next.Reminders[:0]
	for _, r := range src.Reminders {
		if src.DueDate == nil {
			continue
		}
		next.Reminders = append(next.Reminders, domain.TaskReminder{
			ID:       e.newID(),
			Type:     r.Type,
			RemindAt: due.Add(r.RemindAt.Sub(*src.DueDate)),
			Message:  r.Message,
		})
	}
	entries := []events.Entry{{
		Type:       domain.ActivityTaskCreated,
		EntityType: domain.EntityTask,
		EntityID:   next.ID,
		Title:      fmt.Sprintf("Recurring task created: %s", next.Title),
		Payload:    events.EventPayload{"seriesId": series, "occurrence": occurrence, "spawnedFrom": src.ID},
	}}
	if err := e.commit(ctx, actor, entries, func() { e.Store.Tasks.Put(next.ID, next) }); err != nil {
		return domain.Task{}, err
	}
	return next.Clone(), nil
}
