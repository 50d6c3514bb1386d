package engine

import (
	"sort"
	"time"

	"taskdesk/internal/activity"
	"taskdesk/internal/calendar"
	"taskdesk/internal/deps"
	"taskdesk/internal/domain"
	"taskdesk/internal/metrics"
	"taskdesk/internal/query"
	"taskdesk/internal/store"
)

func (e *Engine) tasks() []domain.Task {
	vals := e.Store.Tasks.Values()
	out := make([]domain.Task, len(vals))
	for i, t := range vals {
		out[i] = t.Clone()
	}
	return out
}

func (e *Engine) Task(id string) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getTask(id)
}

// Tasks returns every task in collection order.
func (e *Engine) Tasks() []domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks()
}

func (e *Engine) FilteredTasks(f query.Filter, sorts ...query.SortSpec) []domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := query.Apply(e.tasks(), f, e.clock())
	query.Sort(out, sorts...)
	return out
}

func (e *Engine) TasksByStatus(status domain.Status) []domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return query.ByStatus(e.tasks(), status, e.clock())
}

type BoardColumn struct {
	Status domain.Status `json:"status"`
	Tasks  []domain.Task `json:"tasks"`
}

// Board groups the filtered tasks into one column per stored status.
func (e *Engine) Board(f query.Filter, sorts ...query.SortSpec) []BoardColumn {
	e.mu.Lock()
	defer e.mu.Unlock()
	at := e.clock()
	matched := query.Apply(e.tasks(), f, at)
	query.Sort(matched, sorts...)
	cols := make([]BoardColumn, 0, len(domain.Statuses))
	for _, s := range domain.Statuses {
		cols = append(cols, BoardColumn{Status: s, Tasks: query.ByStatus(matched, s, at)})
	}
	return cols
}

func (e *Engine) Metrics() metrics.Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return metrics.Compute(e.tasks(), e.clock())
}

func (e *Engine) OverdueTasks() []domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return metrics.OverdueTasks(e.tasks(), e.clock())
}

func (e *Engine) TasksDueToday() []domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return metrics.DueToday(e.tasks(), e.clock())
}

func (e *Engine) TasksDueThisWeek() []domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return metrics.DueThisWeek(e.tasks(), e.clock())
}

func (e *Engine) CanStart(id string) (deps.Readiness, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.Store.Tasks.Get(id); !ok {
		return deps.Readiness{}, domain.NotFound(domain.EntityTask, id)
	}
	return deps.Build(e.Store.Tasks.Values()).CanStart(id), nil
}

// OrderedTask is a task in dependency order with its readiness.
type OrderedTask struct {
	domain.Task
	Readiness deps.Readiness `json:"readiness"`
}

// WorkOrder lists tasks so that each one follows its dependencies.
func (e *Engine) WorkOrder() ([]OrderedTask, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	graph := deps.Build(e.Store.Tasks.Values())
	ids, err := graph.TopoOrder()
	if err != nil {
		return nil, err
	}
	out := make([]OrderedTask, 0, len(ids))
	for _, id := range ids {
		t, _ := e.Store.Tasks.Get(id)
		out = append(out, OrderedTask{Task: t.Clone(), Readiness: graph.CanStart(id)})
	}
	return out, nil
}

// DependencyCycle returns the ids of one dependency cycle, or nil. Mutations
// never create one, so a result means the stored data was edited elsewhere.
func (e *Engine) DependencyCycle() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return deps.Build(e.Store.Tasks.Values()).DetectCycle()
}

func (e *Engine) Template(id string) (domain.TaskTemplate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tpl, ok := e.Store.Templates.Get(id)
	if !ok {
		return domain.TaskTemplate{}, domain.NotFound(domain.EntityTemplate, id)
	}
	return tpl.Clone(), nil
}

// Templates lists templates, most used first.
func (e *Engine) Templates() []domain.TaskTemplate {
	e.mu.Lock()
	defer e.mu.Unlock()
	vals := e.Store.Templates.Values()
	out := make([]domain.TaskTemplate, len(vals))
	for i, t := range vals {
		out[i] = t.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UseCount > out[j].UseCount })
	return out
}

func (e *Engine) CalendarEvents() []domain.CalendarEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	vals := e.Store.Events.Values()
	out := make([]domain.CalendarEvent, len(vals))
	for i, ev := range vals {
		out[i] = ev.Clone()
	}
	return out
}

// Calendar projects tasks and the events of the visible calendars.
func (e *Engine) Calendar(visible []string) []calendar.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	tasks := e.tasks()
	for i := range tasks {
		if tasks[i].DueDate != nil {
			due := tasks[i].DueDate.In(e.Config.Location())
			tasks[i].DueDate = &due
		}
	}
	return calendar.Project(tasks, e.Store.Events.Values(), visible)
}

// SearchActivities filters the whole log, newest first.
func (e *Engine) SearchActivities(c activity.Criteria) []domain.Activity {
	return activity.Filter(e.Activities.All(), c)
}

func (e *Engine) ActivitiesForEntity(entityType, entityID string) []domain.Activity {
	return e.Activities.ForEntity(entityType, entityID)
}

// SearchActivitiesIn is SearchActivities narrowed to a preset window.
func (e *Engine) SearchActivitiesIn(p activity.Preset, c activity.Criteria) []domain.Activity {
	return activity.Filter(e.Activities.All(), activity.RangeFor(p, e.clock(), c))
}

// ActivityFeed applies the preset range and groups the result by day in the
// workspace timezone.
func (e *Engine) ActivityFeed(p activity.Preset, c activity.Criteria) []activity.DayGroup {
	c = activity.RangeFor(p, e.clock(), c)
	return activity.GroupByDay(activity.Filter(e.Activities.All(), c), e.Config.Location())
}

// DueReminder is an unsent reminder whose time has come.
type DueReminder struct {
	TaskID         string              `json:"taskId"`
	TaskTitle      string              `json:"taskTitle"`
	AssignedUserID string              `json:"assignedUserId,omitempty"`
	DueDate        *time.Time          `json:"dueDate,omitempty"`
	Reminder       domain.TaskReminder `json:"reminder"`
}

// PendingReminders lists unsent reminders of open tasks due at or before at,
// oldest first.
func (e *Engine) PendingReminders(at time.Time) []DueReminder {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]DueReminder, 0)
	for _, t := range e.Store.Tasks.Values() {
		if !t.IsOpen() {
			continue
		}
		for _, r := range t.Reminders {
			if r.IsSent || r.RemindAt.After(at) {
				continue
			}
			out = append(out, DueReminder{
				TaskID:         t.ID,
				TaskTitle:      t.Title,
				AssignedUserID: t.AssignedUserID,
				DueDate:        copyTime(t.DueDate),
				Reminder:       r,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Reminder.RemindAt.Before(out[j].Reminder.RemindAt) })
	return out
}

// Snapshot copies the collection for persistence.
func (e *Engine) Snapshot() store.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Store.Snapshot()
}

// Checkpoint returns the collection together with the activities appended
// after the first n, taken under one lock so both describe the same state.
func (e *Engine) Checkpoint(n int) (store.Snapshot, []domain.Activity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Store.Snapshot(), e.Activities.Since(n)
}
