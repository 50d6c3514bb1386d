package domain

import (
	"strings"
	"time"
)

type TaskType string

const (
	TypeFollowUp       TaskType = "follow-up"
	TypeMeeting        TaskType = "meeting"
	TypeCall           TaskType = "call"
	TypeEmail          TaskType = "email"
	TypeProposal       TaskType = "proposal"
	TypeResearch       TaskType = "research"
	TypeAdministrative TaskType = "administrative"
	TypeOther          TaskType = "other"
)

// TaskTypes lists every task type in display order.
var TaskTypes = []TaskType{
	TypeFollowUp, TypeMeeting, TypeCall, TypeEmail, TypeProposal, TypeResearch, TypeAdministrative, TypeOther,
}

func (t TaskType) Valid() bool {
	for _, v := range TaskTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Status is the stored workflow state of a task. Overdue is never stored;
// it is derived from the due date at read time.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusOnHold     Status = "on-hold"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"

	StatusOverdue Status = "overdue"
)

// Statuses lists the authoritative stored statuses in board order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusOnHold, StatusCompleted, StatusCancelled}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Closed reports whether the status ends the task's workflow.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities from low (1) to urgent (4); unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	}
	return 0
}

type SubTaskStatus string

const (
	SubTaskPending   SubTaskStatus = "pending"
	SubTaskCompleted SubTaskStatus = "completed"
)

func (s SubTaskStatus) Valid() bool {
	return s == SubTaskPending || s == SubTaskCompleted
}

type ReminderType string

const (
	ReminderNotification ReminderType = "notification"
	ReminderEmail        ReminderType = "email"
	ReminderSMS          ReminderType = "sms"
)

func (r ReminderType) Valid() bool {
	return r == ReminderNotification || r == ReminderEmail || r == ReminderSMS
}

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// RecurringPattern describes how a task or event repeats. Expansion into
// concrete instances is done by the scheduler, never by the engine.
type RecurringPattern struct {
	Frequency      Frequency      `json:"frequency" yaml:"frequency"`
	Interval       int            `json:"interval" yaml:"interval"`
	DaysOfWeek     []time.Weekday `json:"daysOfWeek,omitempty" yaml:"days_of_week,omitempty"`
	EndDate        *time.Time     `json:"endDate,omitempty" yaml:"end_date,omitempty"`
	MaxOccurrences int            `json:"maxOccurrences,omitempty" yaml:"max_occurrences,omitempty"`
}

func (p *RecurringPattern) Clone() *RecurringPattern {
	if p == nil {
		return nil
	}
	out := *p
	out.DaysOfWeek = append([]time.Weekday(nil), p.DaysOfWeek...)
	out.EndDate = cloneTime(p.EndDate)
	return &out
}

type SubTask struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Status           SubTaskStatus `json:"status"`
	AssignedUserID   string        `json:"assignedUserId,omitempty"`
	AssignedUserName string        `json:"assignedUserName,omitempty"`
	DueDate          *time.Time    `json:"dueDate,omitempty"`
	CompletedDate    *time.Time    `json:"completedDate,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
}

type TaskAttachment struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	MimeType   string    `json:"mimeType,omitempty"`
	Size       int64     `json:"size"`
	UploadedBy string    `json:"uploadedBy,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type TaskReminder struct {
	ID       string       `json:"id"`
	Type     ReminderType `json:"type"`
	RemindAt time.Time    `json:"remindAt"`
	Message  string       `json:"message,omitempty"`
	IsSent   bool         `json:"isSent"`
	SentAt   *time.Time   `json:"sentAt,omitempty"`
}

type Task struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	Description       string            `json:"description,omitempty"`
	Type              TaskType          `json:"type"`
	Status            Status            `json:"status"`
	Priority          Priority          `json:"priority"`
	Tags              []string          `json:"tags"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	DueDate           *time.Time        `json:"dueDate,omitempty"`
	CompletedDate     *time.Time        `json:"completedDate,omitempty"`
	EstimatedDuration *int              `json:"estimatedDuration,omitempty"`
	ActualDuration    *int              `json:"actualDuration,omitempty"`
	AssignedUserID    string            `json:"assignedUserId,omitempty"`
	AssignedUserName  string            `json:"assignedUserName,omitempty"`
	ContactID         string            `json:"contactId,omitempty"`
	DealID            string            `json:"dealId,omitempty"`
	CompanyID         string            `json:"companyId,omitempty"`
	Dependencies      []string          `json:"dependencies"`
	ParentTaskID      string            `json:"parentTaskId,omitempty"`
	Subtasks          []SubTask         `json:"subtasks"`
	Attachments       []TaskAttachment  `json:"attachments"`
	Reminders         []TaskReminder    `json:"reminders"`
	Recurrence        *RecurringPattern `json:"recurrence,omitempty"`
	SeriesID          string            `json:"seriesId,omitempty"`
	Occurrence        int               `json:"occurrence,omitempty"`
	CustomFields      map[string]string `json:"customFields"`
}

// IsOpen reports whether the task still needs work.
func (t Task) IsOpen() bool {
	return !t.Status.Closed()
}

// SubtaskProgress returns the number of completed subtasks and the total.
func (t Task) SubtaskProgress() (done, total int) {
	for _, st := range t.Subtasks {
		if st.Status == SubTaskCompleted {
			done++
		}
	}
	return done, len(t.Subtasks)
}

// HasTag matches tags case-insensitively.
func (t Task) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if strings.EqualFold(have, tag) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy; nil collections come back empty.
func (t Task) Clone() Task {
	out := t
	out.Tags = append([]string{}, t.Tags...)
	out.Dependencies = append([]string{}, t.Dependencies...)
	out.DueDate = cloneTime(t.DueDate)
	out.CompletedDate = cloneTime(t.CompletedDate)
	out.EstimatedDuration = cloneInt(t.EstimatedDuration)
	out.ActualDuration = cloneInt(t.ActualDuration)
	out.Subtasks = make([]SubTask, len(t.Subtasks))
	for i, st := range t.Subtasks {
		st.DueDate = cloneTime(st.DueDate)
		st.CompletedDate = cloneTime(st.CompletedDate)
		out.Subtasks[i] = st
	}
	out.Attachments = append([]TaskAttachment{}, t.Attachments...)
	out.Reminders = make([]TaskReminder, len(t.Reminders))
	for i, r := range t.Reminders {
		r.SentAt = cloneTime(r.SentAt)
		out.Reminders[i] = r
	}
	out.Recurrence = t.Recurrence.Clone()
	out.CustomFields = make(map[string]string, len(t.CustomFields))
	for k, v := range t.CustomFields {
		out.CustomFields[k] = v
	}
	return out
}

type TaskTemplate struct {
	ID                string            `json:"id" yaml:"id,omitempty"`
	Name              string            `json:"name" yaml:"name"`
	Description       string            `json:"description,omitempty" yaml:"description,omitempty"`
	Type              TaskType          `json:"type" yaml:"type"`
	Priority          Priority          `json:"priority" yaml:"priority"`
	EstimatedDuration *int              `json:"estimatedDuration,omitempty" yaml:"estimated_duration,omitempty"`
	Subtasks          []string          `json:"subtasks" yaml:"subtasks"`
	Tags              []string          `json:"tags" yaml:"tags"`
	CustomFields      map[string]string `json:"customFields" yaml:"custom_fields"`
	UseCount          int               `json:"useCount" yaml:"-"`
	CreatedAt         time.Time         `json:"createdAt" yaml:"-"`
	UpdatedAt         time.Time         `json:"updatedAt" yaml:"-"`
}

func (t TaskTemplate) Clone() TaskTemplate {
	out := t
	out.EstimatedDuration = cloneInt(t.EstimatedDuration)
	out.Subtasks = append([]string{}, t.Subtasks...)
	out.Tags = append([]string{}, t.Tags...)
	out.CustomFields = make(map[string]string, len(t.CustomFields))
	for k, v := range t.CustomFields {
		out.CustomFields[k] = v
	}
	return out
}

type CalendarEvent struct {
	ID          string            `json:"id"`
	CalendarID  string            `json:"calendarId"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"`
	AllDay      bool              `json:"allDay"`
	Location    string            `json:"location,omitempty"`
	Attendees   []string          `json:"attendees"`
	TaskID      string            `json:"taskId,omitempty"`
	ContactID   string            `json:"contactId,omitempty"`
	DealID      string            `json:"dealId,omitempty"`
	Recurrence  *RecurringPattern `json:"recurrence,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func (e CalendarEvent) Clone() CalendarEvent {
	out := e
	out.Attendees = append([]string{}, e.Attendees...)
	out.Recurrence = e.Recurrence.Clone()
	return out
}

type ActivityType string

const (
	ActivityTaskCreated          ActivityType = "task_created"
	ActivityTaskUpdated          ActivityType = "task_updated"
	ActivityTaskCompleted        ActivityType = "task_completed"
	ActivityTaskDeleted          ActivityType = "task_deleted"
	ActivityTaskAssigned         ActivityType = "task_assigned"
	ActivitySubtaskAdded         ActivityType = "subtask_added"
	ActivitySubtaskUpdated       ActivityType = "subtask_updated"
	ActivitySubtaskCompleted     ActivityType = "subtask_completed"
	ActivitySubtaskDeleted       ActivityType = "subtask_deleted"
	ActivityReminderSent         ActivityType = "reminder_sent"
	ActivityTemplateUsed         ActivityType = "template_used"
	ActivityTemplateCreated      ActivityType = "template_created"
	ActivityTemplateDeleted      ActivityType = "template_deleted"
	ActivityCommentAdded         ActivityType = "comment_added"
	ActivityCallLogged           ActivityType = "call_logged"
	ActivityEmailSent            ActivityType = "email_sent"
	ActivityMeetingScheduled     ActivityType = "meeting_scheduled"
	ActivityNoteAdded            ActivityType = "note_added"
	ActivityCalendarEventCreated ActivityType = "calendar_event_created"
	ActivityCalendarEventDeleted ActivityType = "calendar_event_deleted"
)

var ActivityTypes = []ActivityType{
	ActivityTaskCreated, ActivityTaskUpdated, ActivityTaskCompleted, ActivityTaskDeleted, ActivityTaskAssigned,
	ActivitySubtaskAdded, ActivitySubtaskUpdated, ActivitySubtaskCompleted, ActivitySubtaskDeleted,
	ActivityReminderSent, ActivityTemplateUsed, ActivityTemplateCreated, ActivityTemplateDeleted, ActivityCommentAdded, ActivityCallLogged, ActivityEmailSent,
	ActivityMeetingScheduled, ActivityNoteAdded, ActivityCalendarEventCreated, ActivityCalendarEventDeleted,
}

func (a ActivityType) Valid() bool {
	for _, v := range ActivityTypes {
		if v == a {
			return true
		}
	}
	return false
}

// Entity kinds referenced by activities.
const (
	EntityTask          = "task"
	EntityTemplate      = "template"
	EntityCalendarEvent = "calendar_event"
	EntityContact       = "contact"
	EntityDeal          = "deal"
	EntityCompany       = "company"
)

// Activity is an immutable audit record.
type Activity struct {
	ID          string         `json:"id"`
	Type        ActivityType   `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	EntityType  string         `json:"entityType"`
	EntityID    string         `json:"entityId"`
	UserID      string         `json:"userId"`
	UserName    string         `json:"userName,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	IsImportant bool           `json:"isImportant,omitempty"`
	IsPrivate   bool           `json:"isPrivate,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Actor identifies who performed a mutation.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// SystemActor attributes work done by background collaborators.
var SystemActor = Actor{ID: "system", Name: "System"}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
