package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"taskdesk/internal/deps"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
	"taskdesk/internal/query"
)

// taskQuery holds the list filters shared by /tasks and /board. Lists are
// comma separated.
type taskQuery struct {
	Status      []string `query:"status" doc:"Statuses; overdue selects open tasks past due"`
	Priority    []string `query:"priority"`
	Type        []string `query:"type"`
	Assignee    []string `query:"assignee"`
	Tags        []string `query:"tags"`
	Q           string   `query:"q" doc:"Case-insensitive search in title, description and tags"`
	Overdue     string   `query:"overdue" doc:"true or false"`
	DueToday    string   `query:"dueToday" doc:"true or false"`
	ContactID   string   `query:"contactId"`
	DealID      string   `query:"dealId"`
	CompanyID   string   `query:"companyId"`
	DueFrom     string   `query:"dueFrom" doc:"RFC 3339"`
	DueTo       string   `query:"dueTo" doc:"RFC 3339"`
	CreatedFrom string   `query:"createdFrom" doc:"RFC 3339"`
	CreatedTo   string   `query:"createdTo" doc:"RFC 3339"`
	Sort        []string `query:"sort" doc:"Sort keys, prefix with - for descending"`
}

func (q taskQuery) parse() (query.Filter, []query.SortSpec, error) {
	f := query.Filter{
		AssignedUsers: trimAll(q.Assignee),
		Tags:          trimAll(q.Tags),
		SearchTerm:    strings.TrimSpace(q.Q),
		ContactID:     q.ContactID,
		DealID:        q.DealID,
		CompanyID:     q.CompanyID,
	}
	for _, s := range trimAll(q.Status) {
		f.Statuses = append(f.Statuses, domain.Status(s))
	}
	for _, p := range trimAll(q.Priority) {
		f.Priorities = append(f.Priorities, domain.Priority(p))
	}
	for _, t := range trimAll(q.Type) {
		f.Types = append(f.Types, domain.TaskType(t))
	}
	var err error
	if f.IsOverdue, err = parseOptionalBool("overdue", q.Overdue); err != nil {
		return query.Filter{}, nil, err
	}
	if f.IsDueToday, err = parseOptionalBool("dueToday", q.DueToday); err != nil {
		return query.Filter{}, nil, err
	}
	if f.DueDateRange, err = parseRange("due", q.DueFrom, q.DueTo); err != nil {
		return query.Filter{}, nil, err
	}
	if f.DateRange, err = parseRange("created", q.CreatedFrom, q.CreatedTo); err != nil {
		return query.Filter{}, nil, err
	}
	var sorts []query.SortSpec
	for _, raw := range trimAll(q.Sort) {
		spec, err := query.ParseSort(raw)
		if err != nil {
			return query.Filter{}, nil, err
		}
		sorts = append(sorts, spec)
	}
	return f, sorts, nil
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseOptionalBool(name, raw string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, domain.Validationf("%s must be true or false", name)
	}
	return &v, nil
}

func parseTime(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domain.Validationf("%s must be an RFC 3339 timestamp", name)
	}
	return t, nil
}

func parseRange(name, from, to string) (*query.Range, error) {
	if from == "" && to == "" {
		return nil, nil
	}
	f, err := parseTime(name+"From", from)
	if err != nil {
		return nil, err
	}
	t, err := parseTime(name+"To", to)
	if err != nil {
		return nil, err
	}
	return &query.Range{From: f, To: t}, nil
}

type taskPath struct {
	ID string `path:"id"`
}

type taskBody struct {
	Body domain.Task `json:"body"`
}

func registerTasks(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*taskBody, error) {
		t, err := h.e.CreateTask(ctx, input.Body.options(actorFromContext(ctx)))
		if err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &taskBody{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *taskQuery) (*struct {
		Body TaskList `json:"body"`
	}, error) {
		f, sorts, err := input.parse()
		if err != nil {
			return nil, handleError(err)
		}
		items := h.e.FilteredTasks(f, sorts...)
		return &struct {
			Body TaskList `json:"body"`
		}{Body: TaskList{Items: items, Total: len(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "due-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks/due",
		Summary:     "Tasks by due window",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Window string `query:"window" enum:"overdue,today,week" default:"today"`
	}) (*struct {
		Body TaskList `json:"body"`
	}, error) {
		var items []domain.Task
		switch input.Window {
		case "overdue":
			items = h.e.OverdueTasks()
		case "week":
			items = h.e.TasksDueThisWeek()
		default:
			items = h.e.TasksDueToday()
		}
		return &struct {
			Body TaskList `json:"body"`
		}{Body: TaskList{Items: items, Total: len(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body TaskDetail `json:"body"`
	}, error) {
		t, err := h.e.Task(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		ready, err := h.e.CanStart(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskDetail `json:"body"`
		}{Body: TaskDetail{
			Task:       t,
			Readiness:  ready,
			Activities: h.e.ActivitiesForEntity(domain.EntityTask, t.ID),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*taskBody, error) {
		t, err := h.e.UpdateTask(ctx, input.ID, input.Body.options(actorFromContext(ctx)))
		if err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &taskBody{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *taskPath) (*struct{}, error) {
		if err := h.e.DeleteTask(ctx, input.ID, actorFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/move",
		Summary:     "Move task to a status",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body MoveTaskRequest `json:"body"`
	}) (*taskBody, error) {
		t, err := h.e.MoveTask(ctx, input.ID, input.Body.Status, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &taskBody{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "duplicate-task",
		Method:        http.MethodPost,
		Path:          "/tasks/{id}/duplicate",
		Summary:       "Duplicate task",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *taskPath) (*taskBody, error) {
		t, err := h.e.DuplicateTask(ctx, input.ID, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &taskBody{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-readiness",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/readiness",
		Summary:     "Whether the task's dependencies are completed",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body deps.Readiness `json:"body"`
	}, error) {
		r, err := h.e.CanStart(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body deps.Readiness `json:"body"`
		}{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-activities",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/activities",
		Summary:     "Activities recorded against a task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body ActivityList `json:"body"`
	}, error) {
		if _, err := h.e.Task(input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActivityList `json:"body"`
		}{Body: ActivityList{Items: h.e.ActivitiesForEntity(domain.EntityTask, input.ID)}}, nil
	})
}

type subtaskPath struct {
	ID        string `path:"id"`
	SubtaskID string `path:"subtask_id"`
}

type subtaskBody struct {
	Body domain.SubTask `json:"body"`
}

func registerTaskChildren(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-subtask",
		Method:        http.MethodPost,
		Path:          "/tasks/{id}/subtasks",
		Summary:       "Add subtask",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body SubtaskRequest `json:"body"`
	}) (*subtaskBody, error) {
		st, err := h.e.AddSubtask(ctx, input.ID, engine.SubtaskInput(input.Body), actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &subtaskBody{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-subtask",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}/subtasks/{subtask_id}",
		Summary:     "Update subtask",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID        string               `path:"id"`
		SubtaskID string               `path:"subtask_id"`
		Body      UpdateSubtaskRequest `json:"body"`
	}) (*subtaskBody, error) {
		st, err := h.e.UpdateSubtask(ctx, input.ID, input.SubtaskID, engine.SubtaskUpdate(input.Body), actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &subtaskBody{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-subtask",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/subtasks/{subtask_id}/complete",
		Summary:     "Complete subtask",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *subtaskPath) (*subtaskBody, error) {
		st, err := h.e.CompleteSubtask(ctx, input.ID, input.SubtaskID, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &subtaskBody{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-subtask",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}/subtasks/{subtask_id}",
		Summary:       "Delete subtask",
		DefaultStatus: http.StatusNoContent,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *subtaskPath) (*struct{}, error) {
		if err := h.e.DeleteSubtask(ctx, input.ID, input.SubtaskID, actorFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-reminder",
		Method:        http.MethodPost,
		Path:          "/tasks/{id}/reminders",
		Summary:       "Add reminder",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body ReminderRequest `json:"body"`
	}) (*struct {
		Body domain.TaskReminder `json:"body"`
	}, error) {
		r, err := h.e.AddReminder(ctx, input.ID, engine.ReminderInput(input.Body), actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &struct {
			Body domain.TaskReminder `json:"body"`
		}{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-reminder",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}/reminders/{reminder_id}",
		Summary:       "Delete reminder",
		DefaultStatus: http.StatusNoContent,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID         string `path:"id"`
		ReminderID string `path:"reminder_id"`
	}) (*struct{}, error) {
		if err := h.e.DeleteReminder(ctx, input.ID, input.ReminderID, actorFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-attachment",
		Method:        http.MethodPost,
		Path:          "/tasks/{id}/attachments",
		Summary:       "Attach a file reference",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body AttachmentRequest `json:"body"`
	}) (*struct {
		Body domain.TaskAttachment `json:"body"`
	}, error) {
		a, err := h.e.AddAttachment(ctx, input.ID, engine.AttachmentInput(input.Body), actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &struct {
			Body domain.TaskAttachment `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-attachment",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}/attachments/{attachment_id}",
		Summary:       "Delete attachment",
		DefaultStatus: http.StatusNoContent,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID           string `path:"id"`
		AttachmentID string `path:"attachment_id"`
	}) (*struct{}, error) {
		if err := h.e.DeleteAttachment(ctx, input.ID, input.AttachmentID, actorFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &struct{}{}, nil
	})
}
