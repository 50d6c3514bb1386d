package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskdesk/internal/domain"
	"taskdesk/internal/events"
)

type ReminderInput struct {
	Type     domain.ReminderType
	RemindAt time.Time
	Message  string
}

func (e *Engine) buildReminder(in ReminderInput) (domain.TaskReminder, error) {
	if in.Type == "" {
		in.Type = domain.ReminderNotification
	}
	if !in.Type.Valid() {
		return domain.TaskReminder{}, domain.Validationf("invalid reminder type %q", in.Type)
	}
	if in.RemindAt.IsZero() {
		return domain.TaskReminder{}, domain.Validationf("reminder time is required")
	}
	return domain.TaskReminder{
		ID:       e.newID(),
		Type:     in.Type,
		RemindAt: in.RemindAt,
		Message:  in.Message,
	}, nil
}

func findReminder(t domain.Task, reminderID string) (int, error) {
	for i, r := range t.Reminders {
		if r.ID == reminderID {
			return i, nil
		}
	}
	return -1, domain.NotFound("reminder", reminderID)
}

func (e *Engine) AddReminder(ctx context.Context, taskID string, in ReminderInput, actor domain.Actor) (domain.TaskReminder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.getTask(taskID)
	if err != nil {
		return domain.TaskReminder{}, err
	}
	r, err := e.buildReminder(in)
	if err != nil {
		return domain.TaskReminder{}, err
	}
	t.Reminders = append(t.Reminders, r)
	t.UpdatedAt = e.stamp(t.UpdatedAt)
	entries := []events.Entry{{
		Type:       domain.ActivityTaskUpdated,
		EntityType: domain.EntityTask,
		EntityID:   t.ID,
		Title:      fmt.Sprintf("Reminder set for %s", r.RemindAt.Format(time.RFC3339)),
		Payload:    events.EventPayload{"fields": []string{"reminders"}, "reminderId": r.ID},
	}}
	if err := e.commit(ctx, actor, entries, func() { e.Store.Tasks.Put(t.ID, t) }); err != nil {
		return domain.TaskReminder{}, err
	}
	return r, nil
}

func (e *Engine) DeleteReminder(ctx context.Context, taskID, reminderID string, actor domain.Actor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.getTask(taskID)
	if err != nil {
		return err
	}
	idx, err := findReminder(t, reminderID)
	if err != nil {
		return err
	}
	t.Reminders = append(t.Reminders[:idx], t.Reminders[idx+1:]...)
	t.UpdatedAt = e.stamp(t.UpdatedAt)
	entries := []events.Entry{{
		Type:       domain.ActivityTaskUpdated,
		EntityType: domain.EntityTask,
		EntityID:   t.ID,
		Title:      "Reminder removed",
		Payload:    events.EventPayload{"fields": []string{"reminders"}, "reminderId": reminderID},
	}}
	return e.commit(ctx, actor, entries, func() { e.Store.Tasks.Put(t.ID, t) })
}

// MarkReminderSent records delivery of a reminder. Marking an already sent
// reminder returns it unchanged.
func (e *Engine) MarkReminderSent(ctx context.Context, taskID, reminderID string, actor domain.Actor) (domain.TaskReminder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.getTask(taskID)
	if err != nil {
		return domain.TaskReminder{}, err
	}
	idx, err := findReminder(t, reminderID)
	if err != nil {
		return domain.TaskReminder{}, err
	}
	r := t.Reminders[idx]
	if r.IsSent {
		return r, nil
	}
	now := e.now()
	r.IsSent = true
	r.SentAt = &now
	t.Reminders[idx] = r
	t.UpdatedAt = e.stamp(t.UpdatedAt)
	title := fmt.Sprintf("Reminder sent: %s", t.Title)
	if r.Message != "" {
		title = fmt.Sprintf("Reminder sent: %s", r.Message)
	}
	entries := []events.Entry{{
		Type:       domain.ActivityReminderSent,
		EntityType: domain.EntityTask,
		EntityID:   t.ID,
		Title:      title,
		Payload:    events.EventPayload{"reminderId": r.ID, "channel": string(r.Type)},
	}}
	if err := e.commit(ctx, actor, entries, func() { e.Store.Tasks.Put(t.ID, t) }); err != nil {
		return domain.TaskReminder{}, err
	}
	return r, nil
}

type AttachmentInput struct {
	Name     string
	URL      string
	MimeType string
	Size     int64
}

func (e *Engine) AddAttachment(ctx context.Context, taskID string, in AttachmentInput, actor domain.Actor) (domain.TaskAttachment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.getTask(taskID)
	if err != nil {
		return domain.TaskAttachment{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.URL) == "" {
		return domain.TaskAttachment{}, domain.Validationf("attachment name and url are required")
	}
	if in.Size < 0 {
		return domain.TaskAttachment{}, domain.Validationf("attachment size must not be negative")
	}
	a := domain.TaskAttachment{
		ID:         e.newID(),
		Name:       name,
		URL:        in.URL,
		MimeType:   in.MimeType,
		Size:       in.Size,
		UploadedBy: actor.ID,
		UploadedAt: e.now(),
	}
	t.Attachments = append(t.Attachments, a)
	t.UpdatedAt = e.stamp(t.UpdatedAt)
	entries := []events.Entry{{
		Type:       domain.ActivityTaskUpdated,
		EntityType: domain.EntityTask,
		EntityID:   t.ID,
		Title:      fmt.Sprintf("Attachment added: %s", a.Name),
		Payload:    events.EventPayload{"fields": []string{"attachments"}, "attachmentId": a.ID},
	}}
	if err := e.commit(ctx, actor, entries, func() { e.Store.Tasks.Put(t.ID, t) }); err != nil {
		return domain.TaskAttachment{}, err
	}
	return a, nil
}

func (e *Engine) DeleteAttachment(ctx context.Context, taskID, attachmentID string, actor domain.Actor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.getTask(taskID)
	if err != nil {
		return err
	}
	idx := -1
	for i, a := range t.Attachments {
		if a.ID == attachmentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.NotFound("attachment", attachmentID)
	}
	a := t.Attachments[idx]
	t.Attachments = append(t.Attachments[:idx], t.Attachments[idx+1:]...)
	t.UpdatedAt = e.stamp(t.UpdatedAt)
	entries := []events.Entry{{
		Type:       domain.ActivityTaskUpdated,
		EntityType: domain.EntityTask,
		EntityID:   t.ID,
		Title:      fmt.Sprintf("Attachment removed: %s", a.Name),
		Payload:    events.EventPayload{"fields": []string{"attachments"}, "attachmentId": a.ID},
	}}
	return e.commit(ctx, actor, entries, func() { e.Store.Tasks.Put(t.ID, t) })
}
