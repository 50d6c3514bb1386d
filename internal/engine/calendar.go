package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskdesk/internal/domain"
	"taskdesk/internal/events"
)

type CalendarEventInput struct {
	CalendarID  string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Location    string
	Attendees   []string
	TaskID      string
	ContactID   string
	DealID      string
	Recurrence  *domain.RecurringPattern
}

// CreateCalendarEvent stores an event. A zero End defaults to one day for
// all-day events and one hour otherwise.
func (e *Engine) CreateCalendarEvent(ctx context.Context, in CalendarEventInput, actor domain.Actor) (domain.CalendarEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.CalendarEvent{}, domain.Validationf("event title is required")
	}
	if strings.TrimSpace(in.CalendarID) == "" {
		return domain.CalendarEvent{}, domain.Validationf("calendar id is required")
	}
	if in.Start.IsZero() {
		return domain.CalendarEvent{}, domain.Validationf("event start is required")
	}
	end := in.End
	if end.IsZero() {
		if in.AllDay {
			end = in.Start.AddDate(0, 0, 1)
		} else {
			end = in.Start.Add(time.Hour)
		}
	}
	if end.Before(in.Start) {
		return domain.CalendarEvent{}, domain.Validationf("event end must not precede start")
	}
	if in.TaskID != "" {
		if _, ok := e.Store.Tasks.Get(in.TaskID); !ok {
			return domain.CalendarEvent{}, domain.NotFound(domain.EntityTask, in.TaskID)
		}
	}
	recurrence, err := normalizeRecurrence(in.Recurrence)
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	ev := domain.CalendarEvent{
		ID:          e.newID(),
		CalendarID:  in.CalendarID,
		Title:       title,
		Description: in.Description,
		Start:       in.Start,
		End:         end,
		AllDay:      in.AllDay,
		Location:    in.Location,
		Attendees:   dedupe(in.Attendees),
		TaskID:      in.TaskID,
		ContactID:   in.ContactID,
		DealID:      in.DealID,
		Recurrence:  recurrence,
		CreatedAt:   e.now(),
	}
	entries := []events.Entry{{
		Type:       domain.ActivityCalendarEventCreated,
		EntityType: domain.EntityCalendarEvent,
		EntityID:   ev.ID,
		Title:      fmt.Sprintf("Event scheduled: %s", ev.Title),
		Payload:    events.EventPayload{"calendarId": ev.CalendarID, "start": ev.Start.Format(time.RFC3339)},
	}}
	if ev.TaskID != "" {
		entries = append(entries, events.Entry{
			Type:       domain.ActivityMeetingScheduled,
			EntityType: domain.EntityTask,
			EntityID:   ev.TaskID,
			Title:      fmt.Sprintf("Event scheduled: %s", ev.Title),
			Payload:    events.EventPayload{"eventId": ev.ID},
		})
	}
	if err := e.commit(ctx, actor, entries, func() { e.Store.Events.Put(ev.ID, ev) }); err != nil {
		return domain.CalendarEvent{}, err
	}
	return ev.Clone(), nil
}

func (e *Engine) DeleteCalendarEvent(ctx context.Context, id string, actor domain.Actor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ev, ok := e.Store.Events.Get(id)
	if !ok {
		return domain.NotFound(domain.EntityCalendarEvent, id)
	}
	entries := []events.Entry{{
		Type:       domain.ActivityCalendarEventDeleted,
		EntityType: domain.EntityCalendarEvent,
		EntityID:   ev.ID,
		Title:      fmt.Sprintf("Event removed: %s", ev.Title),
	}}
	return e.commit(ctx, actor, entries, func() { e.Store.Events.Delete(id) })
}

// loggable are the activity types collaborators may record directly. The
// rest are emitted by mutations only.
var loggable = map[domain.ActivityType]bool{
	domain.ActivityCommentAdded:     true,
	domain.ActivityCallLogged:       true,
	domain.ActivityEmailSent:        true,
	domain.ActivityMeetingScheduled: true,
	domain.ActivityNoteAdded:        true,
}

type LogActivityOptions struct {
	Type        domain.ActivityType
	Title       string
	Description string
	EntityType  string
	EntityID    string
	Important   bool
	Private     bool
	Metadata    map[string]any
}

// LogActivity records an interaction such as a call or a comment against an
// entity. Task references must exist; other entity kinds are not checked.
func (e *Engine) LogActivity(ctx context.Context, opts LogActivityOptions, actor domain.Actor) (domain.Activity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !loggable[opts.Type] {
		return domain.Activity{}, domain.Validationf("activity type %q cannot be logged directly", opts.Type)
	}
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Activity{}, domain.Validationf("activity title is required")
	}
	if opts.EntityType == "" || opts.EntityID == "" {
		return domain.Activity{}, domain.Validationf("activity entity is required")
	}
	if opts.EntityType == domain.EntityTask {
		if _, ok := e.Store.Tasks.Get(opts.EntityID); !ok {
			return domain.Activity{}, domain.NotFound(domain.EntityTask, opts.EntityID)
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.Activity{}, err
	}
	return e.Events.Append(ctx, actor, events.Entry{
		Type:        opts.Type,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Title:       strings.TrimSpace(opts.Title),
		Description: opts.Description,
		Important:   opts.Important,
		Private:     opts.Private,
		Payload:     events.EventPayload(opts.Metadata),
	})
}
