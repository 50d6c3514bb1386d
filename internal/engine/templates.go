package engine

import (
	"context"
	"fmt"
	"strings"

	"taskdesk/internal/domain"
	"taskdesk/internal/events"
)

type TemplateCreateOptions struct {
	ID                string
	Name              string
	Description       string
	Type              domain.TaskType
	Priority          domain.Priority
	EstimatedDuration *int
	Subtasks          []string
	Tags              []string
	CustomFields      map[string]string
	Actor             domain.Actor
}

func (e *Engine) CreateTemplate(ctx context.Context, opts TemplateCreateOptions) (domain.TaskTemplate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.TaskTemplate{}, domain.Validationf("template name is required")
	}
	if opts.Type == "" {
		opts.Type = e.Config.Engine.DefaultType
	}
	if !opts.Type.Valid() {
		return domain.TaskTemplate{}, domain.Validationf("invalid task type %q", opts.Type)
	}
	if opts.Priority == "" {
		opts.Priority = e.Config.Engine.DefaultPriority
	}
	if !opts.Priority.Valid() {
		return domain.TaskTemplate{}, domain.Validationf("invalid priority %q", opts.Priority)
	}
	if err := validateDurations(opts.EstimatedDuration); err != nil {
		return domain.TaskTemplate{}, err
	}
	id := opts.ID
	if id == "" {
		id = e.newID()
	} else if _, exists := e.Store.Templates.Get(id); exists {
		return domain.TaskTemplate{}, domain.Invariantf("template %s already exists", id)
	}
	now := e.now()
	tpl := domain.TaskTemplate{
		ID:                id,
		Name:              name,
		Description:       opts.Description,
		Type:              opts.Type,
		Priority:          opts.Priority,
		EstimatedDuration: copyInt(opts.EstimatedDuration),
		Subtasks:          dedupe(opts.Subtasks),
		Tags:              dedupeFold(opts.Tags),
		CustomFields:      map[string]string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for k, v := range opts.CustomFields {
		tpl.CustomFields[k] = v
	}
	entries := []events.Entry{{
		Type:       domain.ActivityTemplateCreated,
		EntityType: domain.EntityTemplate,
		EntityID:   tpl.ID,
		Title:      fmt.Sprintf("Template created: %s", tpl.Name),
	}}
	if err := e.commit(ctx, opts.Actor, entries, func() { e.Store.Templates.Put(tpl.ID, tpl) }); err != nil {
		return domain.TaskTemplate{}, err
	}
	return tpl.Clone(), nil
}

func (e *Engine) DeleteTemplate(ctx context.Context, id string, actor domain.Actor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	tpl, ok := e.Store.Templates.Get(id)
	if !ok {
		return domain.NotFound(domain.EntityTemplate, id)
	}
	entries := []events.Entry{{
		Type:       domain.ActivityTemplateDeleted,
		EntityType: domain.EntityTemplate,
		EntityID:   tpl.ID,
		Title:      fmt.Sprintf("Template deleted: %s", tpl.Name),
		Payload:    events.EventPayload{"useCount": tpl.UseCount},
	}}
	return e.commit(ctx, actor, entries, func() { e.Store.Templates.Delete(id) })
}

// CreateTaskFromTemplate starts from the template's defaults and lets any
// non-zero field of overrides win. Custom fields merge, subtasks append.
func (e *Engine) CreateTaskFromTemplate(ctx context.Context, templateID string, overrides TaskCreateOptions) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tpl, ok := e.Store.Templates.Get(templateID)
	if !ok {
		return domain.Task{}, domain.NotFound(domain.EntityTemplate, templateID)
	}
	tpl = tpl.Clone()

	opts := overrides
	if strings.TrimSpace(opts.Title) == "" {
		opts.Title = tpl.Name
	}
	if opts.Description == "" {
		opts.Description = tpl.Description
	}
	if opts.Type == "" {
		opts.Type = tpl.Type
	}
	if opts.Priority == "" {
		opts.Priority = tpl.Priority
	}
	if opts.EstimatedDuration == nil {
		opts.EstimatedDuration = copyInt(tpl.EstimatedDuration)
	}
	if overrides.Tags == nil {
		opts.Tags = tpl.Tags
	}
	opts.Subtasks = append(append([]string{}, tpl.Subtasks...), overrides.Subtasks...)
	fields := map[string]string{}
	for k, v := range tpl.CustomFields {
		fields[k] = v
	}
	for k, v := range overrides.CustomFields {
		fields[k] = v
	}
	opts.CustomFields = fields

	t, entries, err := e.buildTask(opts)
	if err != nil {
		return domain.Task{}, err
	}
	tpl.UseCount++
	tpl.UpdatedAt = e.stamp(tpl.UpdatedAt)
	entries = append(entries, events.Entry{
		Type:       domain.ActivityTemplateUsed,
		EntityType: domain.EntityTemplate,
		EntityID:   tpl.ID,
		Title:      fmt.Sprintf("Template used: %s", tpl.Name),
		Payload:    events.EventPayload{"taskId": t.ID, "useCount": tpl.UseCount},
	})
	err = e.commit(ctx, opts.Actor, entries, func() {
		e.Store.Tasks.Put(t.ID, t)
		e.Store.Templates.Put(tpl.ID, tpl)
	})
	if err != nil {
		return domain.Task{}, err
	}
	return t.Clone(), nil
}
