package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskdesk/internal/domain"
	"taskdesk/internal/events"
)

type SubtaskInput struct {
	Title            string
	AssignedUserID   string
	AssignedUserName string
	DueDate          *time.Time
}

type SubtaskUpdate struct {
	Title            *string
	Status           *domain.SubTaskStatus
	AssignedUserID   *string
	AssignedUserName *string
	DueDate          *time.Time
	ClearDueDate     bool
}

func findSubtask(t domain.Task, subtaskID string) (int, error) {
	for i, st := range t.Subtasks {
		if st.ID == subtaskID {
			return i, nil
		}
	}
	return -1, domain.NotFound("subtask", subtaskID)
}

func subtaskEntry(typ domain.ActivityType, t domain.Task, st domain.SubTask, verb string) events.Entry {
	done, total := t.SubtaskProgress()
	return events.Entry{
		Type:       typ,
		EntityType: domain.EntityTask,
		EntityID:   t.ID,
		Title:      fmt.Sprintf("Subtask %s: %s", verb, st.Title),
		Payload:    events.EventPayload{"subtaskId": st.ID, "done": done, "total": total},
	}
}

func (e *Engine) AddSubtask(ctx context.Context, taskID string, in SubtaskInput, actor domain.Actor) (domain.SubTask, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.getTask(taskID)
	if err != nil {
		return domain.SubTask{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.SubTask{}, domain.Validationf("subtask title is required")
	}
	st := domain.SubTask{
		ID:               e.newID(),
		Title:            title,
		Status:           domain.SubTaskPending,
		AssignedUserID:   in.AssignedUserID,
		AssignedUserName: in.AssignedUserName,
		DueDate:          copyTime(in.DueDate),
		CreatedAt:        e.now(),
	}
	t.Subtasks = append(t.Subtasks, st)
	t.UpdatedAt = e.stamp(t.UpdatedAt)
	entries := []events.Entry{subtaskEntry(domain.ActivitySubtaskAdded, t, st, "added")}
	if err := e.commit(ctx, actor, entries, func() { e.Store.Tasks.Put(t.ID, t) }); err != nil {
		return domain.SubTask{}, err
	}
	return st, nil
}

// UpdateSubtask merges the non-nil fields. Moving a subtask to completed
// records the completion time; moving it back clears it. The parent task's
// status is never changed.
func (e *Engine) UpdateSubtask(ctx context.Context, taskID, subtaskID string, upd SubtaskUpdate, actor domain.Actor) (domain.SubTask, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateSubtask(ctx, taskID, subtaskID, upd, actor)
}

func (e *Engine) updateSubtask(ctx context.Context, taskID, subtaskID string, upd SubtaskUpdate, actor domain.Actor) (domain.SubTask, error) {
	t, err := e.getTask(taskID)
	if err != nil {
		return domain.SubTask{}, err
	}
	idx, err := findSubtask(t, subtaskID)
	if err != nil {
		return domain.SubTask{}, err
	}
	st := t.Subtasks[idx]
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return domain.SubTask{}, domain.Validationf("subtask title is required")
		}
		st.Title = title
	}
	if upd.AssignedUserID != nil {
		st.AssignedUserID = *upd.AssignedUserID
	}
	if upd.AssignedUserName != nil {
		st.AssignedUserName = *upd.AssignedUserName
	}
	switch {
	case upd.ClearDueDate:
		st.DueDate = nil
	case upd.DueDate != nil:
		st.DueDate = copyTime(upd.DueDate)
	}
	activityType, verb := domain.ActivitySubtaskUpdated, "updated"
	if upd.Status != nil && *upd.Status != st.Status {
		switch *upd.Status {
		case domain.SubTaskCompleted:
			now := e.now()
			st.CompletedDate = &now
			activityType, verb = domain.ActivitySubtaskCompleted, "completed"
		case domain.SubTaskPending:
			st.CompletedDate = nil
			verb = "reopened"
		default:
			return domain.SubTask{}, domain.Validationf("invalid subtask status %q", *upd.Status)
		}
		st.Status = *upd.Status
	}
	t.Subtasks[idx] = st
	t.UpdatedAt = e.stamp(t.UpdatedAt)
	entries := []events.Entry{subtaskEntry(activityType, t, st, verb)}
	if err := e.commit(ctx, actor, entries, func() { e.Store.Tasks.Put(t.ID, t) }); err != nil {
		return domain.SubTask{}, err
	}
	return st, nil
}

// CompleteSubtask marks the subtask done. Completing an already completed
// subtask changes nothing.
func (e *Engine) CompleteSubtask(ctx context.Context, taskID, subtaskID string, actor domain.Actor) (domain.SubTask, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.getTask(taskID)
	if err != nil {
		return domain.SubTask{}, err
	}
	idx, err := findSubtask(t, subtaskID)
	if err != nil {
		return domain.SubTask{}, err
	}
	if t.Subtasks[idx].Status == domain.SubTaskCompleted {
		return t.Subtasks[idx], nil
	}
	completed := domain.SubTaskCompleted
	return e.updateSubtask(ctx, taskID, subtaskID, SubtaskUpdate{Status: &completed}, actor)
}

func (e *Engine) DeleteSubtask(ctx context.Context, taskID, subtaskID string, actor domain.Actor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.getTask(taskID)
	if err != nil {
		return err
	}
	idx, err := findSubtask(t, subtaskID)
	if err != nil {
		return err
	}
	st := t.Subtasks[idx]
	t.Subtasks = append(t.Subtasks[:idx], t.Subtasks[idx+1:]...)
	t.UpdatedAt = e.stamp(t.UpdatedAt)
	entries := []events.Entry{subtaskEntry(domain.ActivitySubtaskDeleted, t, st, "deleted")}
	return e.commit(ctx, actor, entries, func() { e.Store.Tasks.Put(t.ID, t) })
}
