package server

import (
	"time"

	"taskdesk/internal/activity"
	"taskdesk/internal/calendar"
	"taskdesk/internal/deps"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
	"taskdesk/internal/metrics"
)

// Request payloads

type ReminderRequest struct {
	Type     domain.ReminderType `json:"type,omitempty" enum:"email,notification,sms"`
	RemindAt time.Time           `json:"remindAt"`
	Message  string              `json:"message,omitempty"`
}

type CreateTaskRequest struct {
	ID                string                   `json:"id,omitempty"`
	Title             string                   `json:"title"`
	Description       string                   `json:"description,omitempty"`
	Type              domain.TaskType          `json:"type,omitempty" enum:"follow-up,meeting,call,email,proposal,research,administrative,other"`
	Status            domain.Status            `json:"status,omitempty"`
	Priority          domain.Priority          `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	Tags              []string                 `json:"tags,omitempty"`
	DueDate           *time.Time               `json:"dueDate,omitempty"`
	EstimatedDuration *int                     `json:"estimatedDuration,omitempty"`
	AssignedUserID    string                   `json:"assignedUserId,omitempty"`
	AssignedUserName  string                   `json:"assignedUserName,omitempty"`
	ContactID         string                   `json:"contactId,omitempty"`
	DealID            string                   `json:"dealId,omitempty"`
	CompanyID         string                   `json:"companyId,omitempty"`
	Dependencies      []string                 `json:"dependencies,omitempty"`
	ParentTaskID      string                   `json:"parentTaskId,omitempty"`
	Subtasks          []string                 `json:"subtasks,omitempty"`
	Reminders         []ReminderRequest        `json:"reminders,omitempty"`
	Recurrence        *domain.RecurringPattern `json:"recurrence,omitempty"`
	CustomFields      map[string]string        `json:"customFields,omitempty"`
}

func (r CreateTaskRequest) options(actor domain.Actor) engine.TaskCreateOptions {
	opts := engine.TaskCreateOptions{
		ID:                r.ID,
		Title:             r.Title,
		Description:       r.Description,
		Type:              r.Type,
		Status:            r.Status,
		Priority:          r.Priority,
		Tags:              r.Tags,
		DueDate:           r.DueDate,
		EstimatedDuration: r.EstimatedDuration,
		AssignedUserID:    r.AssignedUserID,
		AssignedUserName:  r.AssignedUserName,
		ContactID:         r.ContactID,
		DealID:            r.DealID,
		CompanyID:         r.CompanyID,
		Dependencies:      r.Dependencies,
		ParentTaskID:      r.ParentTaskID,
		Subtasks:          r.Subtasks,
		Recurrence:        r.Recurrence,
		CustomFields:      r.CustomFields,
		Actor:             actor,
	}
	for _, rem := range r.Reminders {
		opts.Reminders = append(opts.Reminders, engine.ReminderInput(rem))
	}
	return opts
}

// UpdateTaskRequest leaves absent fields untouched. Arrays and maps replace
// the stored value when present.
type UpdateTaskRequest struct {
	Title             *string                  `json:"title,omitempty"`
	Description       *string                  `json:"description,omitempty"`
	Type              *domain.TaskType         `json:"type,omitempty" enum:"follow-up,meeting,call,email,proposal,research,administrative,other"`
	Status            *domain.Status           `json:"status,omitempty"`
	Priority          *domain.Priority         `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	Tags              []string                 `json:"tags,omitempty"`
	DueDate           *time.Time               `json:"dueDate,omitempty"`
	ClearDueDate      bool                     `json:"clearDueDate,omitempty"`
	CompletedDate     *time.Time               `json:"completedDate,omitempty"`
	EstimatedDuration *int                     `json:"estimatedDuration,omitempty"`
	ActualDuration    *int                     `json:"actualDuration,omitempty"`
	AssignedUserID    *string                  `json:"assignedUserId,omitempty"`
	AssignedUserName  *string                  `json:"assignedUserName,omitempty"`
	ContactID         *string                  `json:"contactId,omitempty"`
	DealID            *string                  `json:"dealId,omitempty"`
	CompanyID         *string                  `json:"companyId,omitempty"`
	Dependencies      []string                 `json:"dependencies,omitempty"`
	ParentTaskID      *string                  `json:"parentTaskId,omitempty"`
	Recurrence        *domain.RecurringPattern `json:"recurrence,omitempty"`
	ClearRecurrence   bool                     `json:"clearRecurrence,omitempty"`
	CustomFields      map[string]string        `json:"customFields,omitempty"`
}

func (r UpdateTaskRequest) options(actor domain.Actor) engine.TaskUpdateOptions {
	opts := engine.TaskUpdateOptions{
		Title:             r.Title,
		Description:       r.Description,
		Type:              r.Type,
		Status:            r.Status,
		Priority:          r.Priority,
		DueDate:           r.DueDate,
		ClearDueDate:      r.ClearDueDate,
		CompletedDate:     r.CompletedDate,
		EstimatedDuration: r.EstimatedDuration,
		ActualDuration:    r.ActualDuration,
		AssignedUserID:    r.AssignedUserID,
		AssignedUserName:  r.AssignedUserName,
		ContactID:         r.ContactID,
		DealID:            r.DealID,
		CompanyID:         r.CompanyID,
		ParentTaskID:      r.ParentTaskID,
		Recurrence:        r.Recurrence,
		ClearRecurrence:   r.ClearRecurrence,
		Actor:             actor,
	}
	if r.Tags != nil {
		opts.Tags = &r.Tags
	}
	if r.Dependencies != nil {
		opts.Dependencies = &r.Dependencies
	}
	if r.CustomFields != nil {
		opts.CustomFields = &r.CustomFields
	}
	return opts
}

type MoveTaskRequest struct {
	Status domain.Status `json:"status"`
}

type SubtaskRequest struct {
	Title            string     `json:"title"`
	AssignedUserID   string     `json:"assignedUserId,omitempty"`
	AssignedUserName string     `json:"assignedUserName,omitempty"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
}

type UpdateSubtaskRequest struct {
	Title            *string               `json:"title,omitempty"`
	Status           *domain.SubTaskStatus `json:"status,omitempty" enum:"pending,completed"`
	AssignedUserID   *string               `json:"assignedUserId,omitempty"`
	AssignedUserName *string               `json:"assignedUserName,omitempty"`
	DueDate          *time.Time            `json:"dueDate,omitempty"`
	ClearDueDate     bool                  `json:"clearDueDate,omitempty"`
}

type AttachmentRequest struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

type CreateTemplateRequest struct {
	ID                string            `json:"id,omitempty"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	Type              domain.TaskType   `json:"type,omitempty" enum:"follow-up,meeting,call,email,proposal,research,administrative,other"`
	Priority          domain.Priority   `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	EstimatedDuration *int              `json:"estimatedDuration,omitempty"`
	Subtasks          []string          `json:"subtasks,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
	CustomFields      map[string]string `json:"customFields,omitempty"`
}

type LogActivityRequest struct {
	Type        domain.ActivityType `json:"type" enum:"comment_added,call_logged,email_sent,meeting_scheduled,note_added"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	EntityType  string              `json:"entityType"`
	EntityID    string              `json:"entityId"`
	IsImportant bool                `json:"isImportant,omitempty"`
	IsPrivate   bool                `json:"isPrivate,omitempty"`
	Metadata    map[string]any      `json:"metadata,omitempty"`
}

type CalendarEventRequest struct {
	CalendarID  string                   `json:"calendarId"`
	Title       string                   `json:"title"`
	Description string                   `json:"description,omitempty"`
	Start       time.Time                `json:"start"`
	End         *time.Time               `json:"end,omitempty"`
	AllDay      bool                     `json:"allDay,omitempty"`
	Location    string                   `json:"location,omitempty"`
	Attendees   []string                 `json:"attendees,omitempty"`
	TaskID      string                   `json:"taskId,omitempty"`
	ContactID   string                   `json:"contactId,omitempty"`
	DealID      string                   `json:"dealId,omitempty"`
	Recurrence  *domain.RecurringPattern `json:"recurrence,omitempty"`
}

func (r CalendarEventRequest) input() engine.CalendarEventInput {
	in := engine.CalendarEventInput{
		CalendarID:  r.CalendarID,
		Title:       r.Title,
		Description: r.Description,
		Start:       r.Start,
		AllDay:      r.AllDay,
		Location:    r.Location,
		Attendees:   r.Attendees,
		TaskID:      r.TaskID,
		ContactID:   r.ContactID,
		DealID:      r.DealID,
		Recurrence:  r.Recurrence,
	}
	if r.End != nil {
		in.End = *r.End
	}
	return in
}

// Response payloads

type TaskList struct {
	Items []domain.Task `json:"items"`
	Total int           `json:"total"`
}

type TaskDetail struct {
	domain.Task
	Readiness  deps.Readiness    `json:"readiness"`
	Activities []domain.Activity `json:"activities"`
}

type BoardResponse struct {
	Columns []engine.BoardColumn `json:"columns"`
}

type MetricsResponse struct {
	metrics.Metrics
}

type ActivityList struct {
	Items []domain.Activity   `json:"items"`
	Days  []activity.DayGroup `json:"days,omitempty"`
}

type CalendarResponse struct {
	Calendars []string         `json:"calendars"`
	Entries   []calendar.Entry `json:"entries"`
}
