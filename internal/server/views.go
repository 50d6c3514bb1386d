package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"taskdesk/internal/activity"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
)

func registerViews(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "board",
		Method:      http.MethodGet,
		Path:        "/board",
		Summary:     "Kanban board, one column per status",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *taskQuery) (*struct {
		Body BoardResponse `json:"body"`
	}, error) {
		f, sorts, err := input.parse()
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BoardResponse `json:"body"`
		}{Body: BoardResponse{Columns: h.e.Board(f, sorts...)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "metrics",
		Method:      http.MethodGet,
		Path:        "/metrics",
		Summary:     "Task metrics",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MetricsResponse `json:"body"`
	}, error) {
		return &struct {
			Body MetricsResponse `json:"body"`
		}{Body: MetricsResponse{Metrics: h.e.Metrics()}}, nil
	})
}

type templatePath struct {
	ID string `path:"id"`
}

// InstantiateTemplateRequest overrides template defaults for the new task.
type InstantiateTemplateRequest struct {
	Title            string            `json:"title,omitempty"`
	Description      string            `json:"description,omitempty"`
	Priority         domain.Priority   `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	DueDate          *time.Time        `json:"dueDate,omitempty"`
	AssignedUserID   string            `json:"assignedUserId,omitempty"`
	AssignedUserName string            `json:"assignedUserName,omitempty"`
	ContactID        string            `json:"contactId,omitempty"`
	DealID           string            `json:"dealId,omitempty"`
	CompanyID        string            `json:"companyId,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	Subtasks         []string          `json:"subtasks,omitempty"`
	CustomFields     map[string]string `json:"customFields,omitempty"`
}

func registerTemplates(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/templates",
		Summary:     "List templates, most used first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.TaskTemplate `json:"body"`
	}, error) {
		return &struct {
			Body []domain.TaskTemplate `json:"body"`
		}{Body: h.e.Templates()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-template",
		Method:      http.MethodGet,
		Path:        "/templates/{id}",
		Summary:     "Get template",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *templatePath) (*struct {
		Body domain.TaskTemplate `json:"body"`
	}, error) {
		tpl, err := h.e.Template(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TaskTemplate `json:"body"`
		}{Body: tpl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-template",
		Method:        http.MethodPost,
		Path:          "/templates",
		Summary:       "Create template",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTemplateRequest `json:"body"`
	}) (*struct {
		Body domain.TaskTemplate `json:"body"`
	}, error) {
		b := input.Body
		tpl, err := h.e.CreateTemplate(ctx, engine.TemplateCreateOptions{
			ID:                b.ID,
			Name:              b.Name,
			Description:       b.Description,
			Type:              b.Type,
			Priority:          b.Priority,
			EstimatedDuration: b.EstimatedDuration,
			Subtasks:          b.Subtasks,
			Tags:              b.Tags,
			CustomFields:      b.CustomFields,
			Actor:             actorFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &struct {
			Body domain.TaskTemplate `json:"body"`
		}{Body: tpl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-template",
		Method:        http.MethodDelete,
		Path:          "/templates/{id}",
		Summary:       "Delete template",
		DefaultStatus: http.StatusNoContent,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *templatePath) (*struct{}, error) {
		if err := h.e.DeleteTemplate(ctx, input.ID, actorFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task-from-template",
		Method:        http.MethodPost,
		Path:          "/templates/{id}/tasks",
		Summary:       "Create a task from a template",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                      `path:"id"`
		Body *InstantiateTemplateRequest `json:"body,omitempty" required:"false"`
	}) (*taskBody, error) {
		opts := engine.TaskCreateOptions{Actor: actorFromContext(ctx)}
		if b := input.Body; b != nil {
			opts.Title = b.Title
			opts.Description = b.Description
			opts.Priority = b.Priority
			opts.DueDate = b.DueDate
			opts.AssignedUserID = b.AssignedUserID
			opts.AssignedUserName = b.AssignedUserName
			opts.ContactID = b.ContactID
			opts.DealID = b.DealID
			opts.CompanyID = b.CompanyID
			opts.Tags = b.Tags
			opts.Subtasks = b.Subtasks
			opts.CustomFields = b.CustomFields
		}
		t, err := h.e.CreateTaskFromTemplate(ctx, input.ID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &taskBody{Body: t}, nil
	})
}

type activityQuery struct {
	Type       []string `query:"type"`
	User       []string `query:"user"`
	EntityType string   `query:"entityType"`
	EntityID   string   `query:"entityId"`
	Q          string   `query:"q"`
	From       string   `query:"from" doc:"RFC 3339"`
	To         string   `query:"to" doc:"RFC 3339"`
	Range      string   `query:"range" enum:"today,week,month,all" doc:"Preset window, overrides from and to"`
	Private    bool     `query:"includePrivate"`
	Group      string   `query:"group" enum:"day" doc:"Group the result by day"`
}

func (q activityQuery) criteria() (activity.Criteria, activity.Preset, error) {
	c := activity.Criteria{
		Users:          trimAll(q.User),
		EntityType:     q.EntityType,
		EntityID:       q.EntityID,
		SearchTerm:     strings.TrimSpace(q.Q),
		IncludePrivate: q.Private,
	}
	for _, t := range trimAll(q.Type) {
		c.Types = append(c.Types, domain.ActivityType(t))
	}
	var err error
	if c.From, err = parseTime("from", q.From); err != nil {
		return c, "", err
	}
	if c.To, err = parseTime("to", q.To); err != nil {
		return c, "", err
	}
	preset, err := activity.ParsePreset(q.Range)
	return c, preset, err
}

func registerActivities(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activities",
		Method:      http.MethodGet,
		Path:        "/activities",
		Summary:     "Search the activity log, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *activityQuery) (*struct {
		Body ActivityList `json:"body"`
	}, error) {
		c, preset, err := input.criteria()
		if err != nil {
			return nil, handleError(err)
		}
		out := ActivityList{}
		if input.Group == "day" {
			out.Days = h.e.ActivityFeed(preset, c)
			out.Items = []domain.Activity{}
			for _, d := range out.Days {
				out.Items = append(out.Items, d.Activities...)
			}
		} else {
			out.Items = h.e.SearchActivitiesIn(preset, c)
		}
		return &struct {
			Body ActivityList `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "log-activity",
		Method:        http.MethodPost,
		Path:          "/activities",
		Summary:       "Log a call, email, meeting, note or comment",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body LogActivityRequest `json:"body"`
	}) (*struct {
		Body domain.Activity `json:"body"`
	}, error) {
		b := input.Body
		a, err := h.e.LogActivity(ctx, engine.LogActivityOptions{
			Type:        b.Type,
			Title:       b.Title,
			Description: b.Description,
			EntityType:  b.EntityType,
			EntityID:    b.EntityID,
			Important:   b.IsImportant,
			Private:     b.IsPrivate,
			Metadata:    b.Metadata,
		}, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &struct {
			Body domain.Activity `json:"body"`
		}{Body: a}, nil
	})
}

func registerCalendar(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "calendar",
		Method:      http.MethodGet,
		Path:        "/calendar",
		Summary:     "Calendar entries for tasks and events",
	}, func(ctx context.Context, input *struct {
		Calendars []string `query:"calendars" doc:"Visible calendar ids; defaults to the configured visible calendars"`
	}) (*struct {
		Body CalendarResponse `json:"body"`
	}, error) {
		visible := trimAll(input.Calendars)
		if len(visible) == 0 {
			visible = h.e.Config.VisibleCalendars()
		}
		return &struct {
			Body CalendarResponse `json:"body"`
		}{Body: CalendarResponse{Calendars: visible, Entries: h.e.Calendar(visible)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-calendar-events",
		Method:      http.MethodGet,
		Path:        "/calendar/events",
		Summary:     "List calendar events",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.CalendarEvent `json:"body"`
	}, error) {
		return &struct {
			Body []domain.CalendarEvent `json:"body"`
		}{Body: h.e.CalendarEvents()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-calendar-event",
		Method:        http.MethodPost,
		Path:          "/calendar/events",
		Summary:       "Create calendar event",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CalendarEventRequest `json:"body"`
	}) (*struct {
		Body domain.CalendarEvent `json:"body"`
	}, error) {
		ev, err := h.e.CreateCalendarEvent(ctx, input.Body.input(), actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &struct {
			Body domain.CalendarEvent `json:"body"`
		}{Body: ev}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-calendar-event",
		Method:        http.MethodDelete,
		Path:          "/calendar/events/{id}",
		Summary:       "Delete calendar event",
		DefaultStatus: http.StatusNoContent,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := h.e.DeleteCalendarEvent(ctx, input.ID, actorFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		if err := h.saved(ctx); err != nil {
			return nil, err
		}
		return &struct{}{}, nil
	})
}
