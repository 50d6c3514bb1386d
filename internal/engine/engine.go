package engine

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskdesk/internal/activity"
	"taskdesk/internal/config"
	"taskdesk/internal/deps"
	"taskdesk/internal/domain"
	"taskdesk/internal/events"
	"taskdesk/internal/store"
)

// Engine owns the task collection and the activity log. Every exported
// method is serialized on one mutex, and queries hand out copies.
type Engine struct {
	mu sync.Mutex

	Store      *store.Store
	Activities *activity.Log
	Events     events.Writer
	Config     *config.Config
	Logger     *zap.Logger
	Now        func() time.Time
	NewID      func() string
}

// New wires an engine over an existing store and log; nil values start
// empty.
func New(cfg *config.Config, st *store.Store, log *activity.Log) *Engine {
	if cfg == nil {
		cfg = config.Default("taskdesk")
	}
	if st == nil {
		st = store.New()
	}
	if log == nil {
		log, _ = activity.NewLog()
	}
	e := &Engine{
		Store:      st,
		Activities: log,
		Config:     cfg,
		Logger:     zap.NewNop(),
		Now:        time.Now,
		NewID:      uuid.NewString,
	}
	e.Events = events.Writer{Log: log, Now: e.now, NewID: e.newID}
	return e
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e *Engine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// clock is the read-side "now", expressed in the workspace timezone so day
// windows follow local midnight.
func (e *Engine) clock() time.Time {
	return e.now().In(e.Config.Location())
}

// stamp returns the timestamp for a mutation that must land strictly after
// prev.
func (e *Engine) stamp(prev time.Time) time.Time {
	ts := e.now()
	if !ts.After(prev) {
		ts = prev.Add(time.Nanosecond)
	}
	return ts
}

// Policy is the configured dependency enforcement level.
func (e *Engine) Policy() deps.Policy {
	if e.Config == nil || !e.Config.Engine.DependencyPolicy.Valid() {
		return deps.PolicyWarn
	}
	return e.Config.Engine.DependencyPolicy
}

// commit records the activities of a mutation and then applies it. Nothing
// is applied when recording fails.
func (e *Engine) commit(ctx context.Context, actor domain.Actor, entries []events.Entry, apply func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, entry := range entries {
		if _, err := e.Events.Append(ctx, actor, entry); err != nil {
			return err
		}
	}
	apply()
	return nil
}

func (e *Engine) getTask(id string) (domain.Task, error) {
	t, ok := e.Store.Tasks.Get(id)
	if !ok {
		return domain.Task{}, domain.NotFound(domain.EntityTask, id)
	}
	return t.Clone(), nil
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID                string
	Title             string
	Description       string
	Type              domain.TaskType
	Status            domain.Status
	Priority          domain.Priority
	Tags              []string
	DueDate           *time.Time
	CompletedDate     *time.Time
	EstimatedDuration *int
	ActualDuration    *int
	AssignedUserID    string
	AssignedUserName  string
	ContactID         string
	DealID            string
	CompanyID         string
	Dependencies      []string
	ParentTaskID      string
	Subtasks          []string
	Reminders         []ReminderInput
	Recurrence        *domain.RecurringPattern
	CustomFields      map[string]string
	Actor             domain.Actor
}

func (e *Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, entries, err := e.buildTask(opts)
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.commit(ctx, opts.Actor, entries, func() { e.Store.Tasks.Put(t.ID, t) }); err != nil {
		return domain.Task{}, err
	}
	return t.Clone(), nil
}

// buildTask validates opts and materializes a task plus its creation
// activities. It does not touch the store.
func (e *Engine) buildTask(opts TaskCreateOptions) (domain.Task, []events.Entry, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.Task{}, nil, domain.Validationf("title is required")
	}
	if opts.Type == "" {
		opts.Type = e.Config.Engine.DefaultType
	}
	if !opts.Type.Valid() {
		return domain.Task{}, nil, domain.Validationf("invalid task type %q", opts.Type)
	}
	if opts.Priority == "" {
		opts.Priority = e.Config.Engine.DefaultPriority
	}
	if !opts.Priority.Valid() {
		return domain.Task{}, nil, domain.Validationf("invalid priority %q", opts.Priority)
	}
	if opts.Status == "" {
		opts.Status = domain.StatusPending
	}
	if err := validateDurations(opts.EstimatedDuration, opts.ActualDuration); err != nil {
		return domain.Task{}, nil, err
	}
	recurrence, err := normalizeRecurrence(opts.Recurrence)
	if err != nil {
		return domain.Task{}, nil, err
	}
	id := opts.ID
	if id == "" {
		id = e.newID()
	} else if _, exists := e.Store.Tasks.Get(id); exists {
		return domain.Task{}, nil, domain.Invariantf("task %s already exists", id)
	}
	if opts.ParentTaskID != "" {
		if opts.ParentTaskID == id {
			return domain.Task{}, nil, domain.Invariantf("task %s cannot be its own parent", id)
		}
		if _, ok := e.Store.Tasks.Get(opts.ParentTaskID); !ok {
			return domain.Task{}, nil, domain.NotFound(domain.EntityTask, opts.ParentTaskID)
		}
	}
	dependencies := dedupe(opts.Dependencies)
	if err := deps.Build(e.Store.Tasks.Values()).ValidateDependencies(id, dependencies); err != nil {
		return domain.Task{}, nil, err
	}

	now := e.now()
	t := domain.Task{
		ID:                id,
		Title:             title,
		Description:       opts.Description,
		Type:              opts.Type,
		Priority:          opts.Priority,
		Tags:              dedupeFold(opts.Tags),
		CreatedAt:         now,
		UpdatedAt:         now,
		DueDate:           copyTime(opts.DueDate),
		EstimatedDuration: copyInt(opts.EstimatedDuration),
		ActualDuration:    copyInt(opts.ActualDuration),
		AssignedUserID:    opts.AssignedUserID,
		AssignedUserName:  opts.AssignedUserName,
		ContactID:         opts.ContactID,
		DealID:            opts.DealID,
		CompanyID:         opts.CompanyID,
		Dependencies:      dependencies,
		ParentTaskID:      opts.ParentTaskID,
		Subtasks:          []domain.SubTask{},
		Attachments:       []domain.TaskAttachment{},
		Reminders:         []domain.TaskReminder{},
		Recurrence:        recurrence,
		CustomFields:      map[string]string{},
	}
	if err := applyStatus(&t, "", opts.Status, opts.CompletedDate, now); err != nil {
		return domain.Task{}, nil, err
	}
	for k, v := range opts.CustomFields {
		t.CustomFields[k] = v
	}
	for _, st := range opts.Subtasks {
		st = strings.TrimSpace(st)
		if st == "" {
			return domain.Task{}, nil, domain.Validationf("subtask title is required")
		}
		t.Subtasks = append(t.Subtasks, domain.SubTask{ID: e.newID(), Title: st, Status: domain.SubTaskPending, CreatedAt: now})
	}
	for _, in := range opts.Reminders {
		r, err := e.buildReminder(in)
		if err != nil {
			return domain.Task{}, nil, err
		}
		t.Reminders = append(t.Reminders, r)
	}
	if t.Recurrence != nil {
		t.SeriesID = t.ID
		t.Occurrence = 1
	}

	entries := []events.Entry{{
		Type:       domain.ActivityTaskCreated,
		EntityType: domain.EntityTask,
		EntityID:   t.ID,
		Title:      fmt.Sprintf("Task created: %s", t.Title),
		Payload:    events.EventPayload{"status": string(t.Status), "priority": string(t.Priority), "type": string(t.Type)},
	}}
	if t.AssignedUserID != "" {
		entries = append(entries, assignedEntry(t))
	}
	return t, entries, nil
}

// TaskUpdateOptions encapsulates allowed updates. Nil fields are left
// untouched.
type TaskUpdateOptions struct {
	Title             *string
	Description       *string
	Type              *domain.TaskType
	Status            *domain.Status
	Priority          *domain.Priority
	Tags              *[]string
	DueDate           *time.Time
	ClearDueDate      bool
	CompletedDate     *time.Time
	EstimatedDuration *int
	ActualDuration    *int
	AssignedUserID    *string
	AssignedUserName  *string
	ContactID         *string
	DealID            *string
	CompanyID         *string
	Dependencies      *[]string
	ParentTaskID      *string
	Recurrence        *domain.RecurringPattern
	ClearRecurrence   bool
	CustomFields      *map[string]string
	Actor             domain.Actor
}

func (e *Engine) UpdateTask(ctx context.Context, id string, opts TaskUpdateOptions) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateTask(ctx, id, opts)
}

func (e *Engine) updateTask(ctx context.Context, id string, opts TaskUpdateOptions) (domain.Task, error) {
	prev, err := e.getTask(id)
	if err != nil {
		return domain.Task{}, err
	}
	t := prev.Clone()
	var changed []string
	mark := func(field string) { changed = append(changed, field) }

	if opts.Title != nil {
		title := strings.TrimSpace(*opts.Title)
		if title == "" {
			return domain.Task{}, domain.Validationf("title is required")
		}
		if title != t.Title {
			t.Title = title
			mark("title")
		}
	}
	if opts.Description != nil && *opts.Description != t.Description {
		t.Description = *opts.Description
		mark("description")
	}
	if opts.Type != nil {
		if !opts.Type.Valid() {
			return domain.Task{}, domain.Validationf("invalid task type %q", *opts.Type)
		}
		if *opts.Type != t.Type {
			t.Type = *opts.Type
			mark("type")
		}
	}
	if opts.Priority != nil {
		if !opts.Priority.Valid() {
			return domain.Task{}, domain.Validationf("invalid priority %q", *opts.Priority)
		}
		if *opts.Priority != t.Priority {
			t.Priority = *opts.Priority
			mark("priority")
		}
	}
	if opts.Tags != nil {
		t.Tags = dedupeFold(*opts.Tags)
		mark("tags")
	}
	switch {
	case opts.ClearDueDate:
		if t.DueDate != nil {
			t.DueDate = nil
			mark("dueDate")
		}
	case opts.DueDate != nil:
		t.DueDate = copyTime(opts.DueDate)
		mark("dueDate")
	}
	if err := validateDurations(opts.EstimatedDuration, opts.ActualDuration); err != nil {
		return domain.Task{}, err
	}
	if opts.EstimatedDuration != nil {
		t.EstimatedDuration = copyInt(opts.EstimatedDuration)
		mark("estimatedDuration")
	}
	if opts.ActualDuration != nil {
		t.ActualDuration = copyInt(opts.ActualDuration)
		mark("actualDuration")
	}
	assigneeChanged := false
	if opts.AssignedUserID != nil && *opts.AssignedUserID != t.AssignedUserID {
		t.AssignedUserID = *opts.AssignedUserID
		assigneeChanged = true
		mark("assignedUserId")
	}
	if opts.AssignedUserName != nil && *opts.AssignedUserName != t.AssignedUserName {
		t.AssignedUserName = *opts.AssignedUserName
		mark("assignedUserName")
	}
	if opts.ContactID != nil && *opts.ContactID != t.ContactID {
		t.ContactID = *opts.ContactID
		mark("contactId")
	}
	if opts.DealID != nil && *opts.DealID != t.DealID {
		t.DealID = *opts.DealID
		mark("dealId")
	}
	if opts.CompanyID != nil && *opts.CompanyID != t.CompanyID {
		t.CompanyID = *opts.CompanyID
		mark("companyId")
	}
	if opts.ParentTaskID != nil && *opts.ParentTaskID != t.ParentTaskID {
		parent := *opts.ParentTaskID
		if parent == t.ID {
			return domain.Task{}, domain.Invariantf("task %s cannot be its own parent", t.ID)
		}
		if parent != "" {
			if _, ok := e.Store.Tasks.Get(parent); !ok {
				return domain.Task{}, domain.NotFound(domain.EntityTask, parent)
			}
			if err := e.ensureNoCycle(parent, t.ID); err != nil {
				return domain.Task{}, err
			}
		}
		t.ParentTaskID = parent
		mark("parentTaskId")
	}
	if opts.CustomFields != nil {
		t.CustomFields = map[string]string{}
		for k, v := range *opts.CustomFields {
			t.CustomFields[k] = v
		}
		mark("customFields")
	}
	switch {
	case opts.ClearRecurrence:
		if t.Recurrence != nil {
			t.Recurrence = nil
			mark("recurrence")
		}
	case opts.Recurrence != nil:
		recurrence, err := normalizeRecurrence(opts.Recurrence)
		if err != nil {
			return domain.Task{}, err
		}
		t.Recurrence = recurrence
		if t.SeriesID == "" {
			t.SeriesID = t.ID
			t.Occurrence = 1
		}
		mark("recurrence")
	}

	graph := deps.Build(e.Store.Tasks.Values())
	if opts.Dependencies != nil {
		next := dedupe(*opts.Dependencies)
		if err := graph.ValidateDependencies(t.ID, next); err != nil {
			return domain.Task{}, err
		}
		t.Dependencies = next
		graph = deps.Build(append(e.otherTasks(t.ID), t))
		mark("dependencies")
	}

	status := t.Status
	if opts.Status != nil {
		status = *opts.Status
	}
	if err := applyStatus(&t, prev.Status, status, opts.CompletedDate, e.now()); err != nil {
		return domain.Task{}, err
	}
	statusChanged := t.Status != prev.Status
	if statusChanged {
		mark("status")
		if err := e.checkDependencies(graph, t); err != nil {
			return domain.Task{}, err
		}
	}
	if opts.CompletedDate != nil {
		mark("completedDate")
	}

	t.UpdatedAt = e.stamp(prev.UpdatedAt)
	payload := events.EventPayload{"fields": changed}
	if statusChanged {
		payload["from"] = string(prev.Status)
		payload["to"] = string(t.Status)
	}
	entries := []events.Entry{{
		Type:       domain.ActivityTaskUpdated,
		EntityType: domain.EntityTask,
		EntityID:   t.ID,
		Title:      fmt.Sprintf("Task updated: %s", t.Title),
		Payload:    payload,
	}}
	if statusChanged && t.Status == domain.StatusCompleted {
		entries = append(entries, events.Entry{
			Type:       domain.ActivityTaskCompleted,
			EntityType: domain.EntityTask,
			EntityID:   t.ID,
			Title:      fmt.Sprintf("Task completed: %s", t.Title),
			Important:  t.Priority == domain.PriorityUrgent,
		})
	}
	if assigneeChanged && t.AssignedUserID != "" {
		entries = append(entries, assignedEntry(t))
	}
	if err := e.commit(ctx, opts.Actor, entries, func() { e.Store.Tasks.Put(t.ID, t) }); err != nil {
		return domain.Task{}, err
	}
	return t.Clone(), nil
}

// checkDependencies applies the dependency policy to a status change.
func (e *Engine) checkDependencies(graph *deps.Graph, t domain.Task) error {
	policy := e.Policy()
	if policy == deps.PolicyOff || !deps.Gated(t.Status) {
		return nil
	}
	r := graph.CanStart(t.ID)
	if r.Ready {
		return nil
	}
	if policy == deps.PolicyEnforce {
		return domain.Blockedf("task %s is blocked by %s", t.ID, strings.Join(r.BlockedBy, ", "))
	}
	e.log().Warn("task moved while dependencies are incomplete",
		zap.String("task_id", t.ID),
		zap.String("status", string(t.Status)),
		zap.Strings("blocked_by", r.BlockedBy))
	return nil
}

// MoveTask is the kanban drop. Dropping onto the current status is a no-op.
func (e *Engine) MoveTask(ctx context.Context, id string, status domain.Status, actor domain.Actor) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.getTask(id)
	if err != nil {
		return domain.Task{}, err
	}
	if t.Status == status {
		return t, nil
	}
	return e.updateTask(ctx, id, TaskUpdateOptions{Status: &status, Actor: actor})
}

// DeleteTask removes the task with everything it owns, drops it from the
// dependency lists of other tasks and detaches its child tasks.
func (e *Engine) DeleteTask(ctx context.Context, id string, actor domain.Actor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.getTask(id)
	if err != nil {
		return err
	}
	entries := []events.Entry{{
		Type:       domain.ActivityTaskDeleted,
		EntityType: domain.EntityTask,
		EntityID:   t.ID,
		Title:      fmt.Sprintf("Task deleted: %s", t.Title),
		Payload: events.EventPayload{
			"subtasks":    len(t.Subtasks),
			"attachments": len(t.Attachments),
			"reminders":   len(t.Reminders),
		},
	}}
	dependents := deps.Build(e.Store.Tasks.Values()).Dependents(id)
	var touched []domain.Task
	for _, other := range e.Store.Tasks.Values() {
		isDependent := slices.Contains(dependents, other.ID)
		if !isDependent && other.ParentTaskID != id {
			continue
		}
		other = other.Clone()
		var fields []string
		payload := events.EventPayload{}
		if isDependent {
			other.Dependencies = remove(other.Dependencies, id)
			fields = append(fields, "dependencies")
			payload["removedDependency"] = id
		}
		if other.ParentTaskID == id {
			other.ParentTaskID = ""
			fields = append(fields, "parentTaskId")
			payload["removedParent"] = id
		}
		other.UpdatedAt = e.stamp(other.UpdatedAt)
		payload["fields"] = fields
		touched = append(touched, other)
		title := fmt.Sprintf("Dependency removed: %s", t.Title)
		if fields[len(fields)-1] == "parentTaskId" {
			title = fmt.Sprintf("Parent task removed: %s", t.Title)
		}
		entries = append(entries, events.Entry{
			Type:       domain.ActivityTaskUpdated,
			EntityType: domain.EntityTask,
			EntityID:   other.ID,
			Title:      title,
			Payload:    payload,
		})
	}
	return e.commit(ctx, actor, entries, func() {
		e.Store.Tasks.Delete(id)
		for _, other := range touched {
			e.Store.Tasks.Put(other.ID, other)
		}
	})
}

// DuplicateTask copies a task under new ids. The copy starts pending with
// all completion data stripped; the original is not modified.
func (e *Engine) DuplicateTask(ctx context.Context, id string, actor domain.Actor) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	src, err := e.getTask(id)
	if err != nil {
		return domain.Task{}, err
	}
	now := e.now()
	dup := src.Clone()
	dup.ID = e.newID()
	dup.Title = src.Title + " (copy)"
	dup.Status = domain.StatusPending
	dup.CompletedDate = nil
	dup.ActualDuration = nil
	dup.CreatedAt = now
	dup.UpdatedAt = now
	dup.SeriesID = ""
	dup.Occurrence = 0
	if dup.Recurrence != nil {
		dup.SeriesID = dup.ID
		dup.Occurrence = 1
	}
	for i := range dup.Subtasks {
		dup.Subtasks[i].ID = e.newID()
		dup.Subtasks[i].Status = domain.SubTaskPending
		dup.Subtasks[i].CompletedDate = nil
		dup.Subtasks[i].CreatedAt = now
	}
	for i := range dup.Attachments {
		dup.Attachments[i].ID = e.newID()
	}
	for i := range dup.Reminders {
		dup.Reminders[i].ID = e.newID()
		dup.Reminders[i].IsSent = false
		dup.Reminders[i].SentAt = nil
	}
	entries := []events.Entry{{
		Type:       domain.ActivityTaskCreated,
		EntityType: domain.EntityTask,
		EntityID:   dup.ID,
		Title:      fmt.Sprintf("Task created: %s", dup.Title),
		Payload:    events.EventPayload{"duplicatedFrom": src.ID},
	}}
	if err := e.commit(ctx, actor, entries, func() { e.Store.Tasks.Put(dup.ID, dup) }); err != nil {
		return domain.Task{}, err
	}
	return dup.Clone(), nil
}

// applyStatus moves t to status and keeps completedDate consistent with it.
func applyStatus(t *domain.Task, prev, status domain.Status, completed *time.Time, now time.Time) error {
	if status == domain.StatusOverdue {
		return domain.Validationf("overdue is derived from the due date and cannot be set")
	}
	if !status.Valid() {
		return domain.Validationf("invalid status %q", status)
	}
	if status != domain.StatusCompleted {
		if completed != nil {
			return domain.Invariantf("completedDate requires status completed, got %s", status)
		}
		t.Status = status
		t.CompletedDate = nil
		return nil
	}
	t.Status = status
	switch {
	case completed != nil:
		t.CompletedDate = copyTime(completed)
	case prev != domain.StatusCompleted || t.CompletedDate == nil:
		t.CompletedDate = copyTime(&now)
	}
	return nil
}

func assignedEntry(t domain.Task) events.Entry {
	name := t.AssignedUserName
	if name == "" {
		name = t.AssignedUserID
	}
	return events.Entry{
		Type:       domain.ActivityTaskAssigned,
		EntityType: domain.EntityTask,
		EntityID:   t.ID,
		Title:      fmt.Sprintf("Task assigned to %s", name),
		Payload:    events.EventPayload{"assignedUserId": t.AssignedUserID},
	}
}

func (e *Engine) otherTasks(id string) []domain.Task {
	all := e.Store.Tasks.Values()
	out := make([]domain.Task, 0, len(all))
	for _, t := range all {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func validateDurations(vals ...*int) error {
	for _, v := range vals {
		if v != nil && *v < 0 {
			return domain.Validationf("durations must be non-negative minutes")
		}
	}
	return nil
}

// normalizeRecurrence validates p and returns a copy with defaults applied.
func normalizeRecurrence(p *domain.RecurringPattern) (*domain.RecurringPattern, error) {
	if p == nil {
		return nil, nil
	}
	if !p.Frequency.Valid() {
		return nil, domain.Validationf("invalid recurrence frequency %q", p.Frequency)
	}
	if p.Interval < 0 {
		return nil, domain.Validationf("recurrence interval must be positive")
	}
	if p.MaxOccurrences < 0 {
		return nil, domain.Validationf("recurrence maxOccurrences must not be negative")
	}
	for _, d := range p.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			return nil, domain.Validationf("invalid weekday %d", d)
		}
	}
	out := p.Clone()
	if out.Interval == 0 {
		out.Interval = 1
	}
	sort.Slice(out.DaysOfWeek, func(i, j int) bool { return out.DaysOfWeek[i] < out.DaysOfWeek[j] })
	return out, nil
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// dedupeFold drops blank and case-insensitive duplicate tags, keeping the
// first spelling.
func dedupeFold(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// ensureNoCycle climbs the parent chain from parentID and fails if it
// reaches childID.
func (e *Engine) ensureNoCycle(parentID, childID string) error {
	seen := map[string]bool{}
	for cur := parentID; cur != ""; {
		if cur == childID {
			return domain.Invariantf("task %s cannot be nested under its own descendant %s", childID, parentID)
		}
		if seen[cur] {
			return nil
		}
		seen[cur] = true
		t, ok := e.Store.Tasks.Get(cur)
		if !ok {
			return nil
		}
		cur = t.ParentTaskID
	}
	return nil
}

func remove(in []string, id string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
