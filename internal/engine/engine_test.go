package engine_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"taskdesk/internal/activity"
	"taskdesk/internal/config"
	"taskdesk/internal/deps"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
	"taskdesk/internal/query"
)

var tester = domain.Actor{ID: "u-1", Name: "Tess Tester"}

type testEnv struct {
	Engine *engine.Engine
	Ctx    context.Context
	Clock  *clock
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	cfg := config.Default("test")
	cfg.Workspace.Timezone = "UTC"
	c := &clock{t: time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)}
	eng := engine.New(cfg, nil, nil)
	eng.Now = c.Now
	n := 0
	eng.NewID = func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
	return testEnv{Engine: eng, Ctx: context.Background(), Clock: c}
}

func (env testEnv) create(t *testing.T, opts engine.TaskCreateOptions) domain.Task {
	t.Helper()
	if opts.Actor.ID == "" {
		opts.Actor = tester
	}
	task, err := env.Engine.CreateTask(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func statusPtr(s domain.Status) *domain.Status { return &s }

func assertCompletionInvariant(t *testing.T, tasks []domain.Task) {
	t.Helper()
	for _, task := range tasks {
		if (task.Status == domain.StatusCompleted) != (task.CompletedDate != nil) {
			t.Fatalf("task %s: status %s with completedDate %v", task.ID, task.Status, task.CompletedDate)
		}
		if task.UpdatedAt.Before(task.CreatedAt) {
			t.Fatalf("task %s: updatedAt before createdAt", task.ID)
		}
	}
}

func TestCreateTaskDefaults(t *testing.T) {
	env := newTestEnv(t)
	task := env.create(t, engine.TaskCreateOptions{
		Title: "  Prepare deck  ",
		Tags:  []string{"sales", "Sales", " ", "q2"},
	})
	if task.Title != "Prepare deck" || task.Status != domain.StatusPending {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.Type != domain.TypeOther || task.Priority != domain.PriorityMedium {
		t.Fatalf("defaults not applied: %s %s", task.Type, task.Priority)
	}
	if len(task.Tags) != 2 || task.Tags[0] != "sales" || task.Tags[1] != "q2" {
		t.Fatalf("tags = %v", task.Tags)
	}
	if task.Subtasks == nil || task.Attachments == nil || task.Reminders == nil || task.Dependencies == nil || task.CustomFields == nil {
		t.Fatalf("collections must be non-nil: %+v", task)
	}
	if !task.CreatedAt.Equal(task.UpdatedAt) {
		t.Fatalf("createdAt and updatedAt differ on creation")
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "   "}); !domain.IsDomainError(err, domain.ErrCodeValidation) {
		t.Fatalf("empty title should be a validation error, got %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "x", Status: domain.StatusOverdue}); !domain.IsDomainError(err, domain.ErrCodeValidation) {
		t.Fatalf("overdue status should be rejected, got %v", err)
	}
	done := env.create(t, engine.TaskCreateOptions{Title: "already done", Status: domain.StatusCompleted})
	if done.CompletedDate == nil {
		t.Fatalf("completed task created without completedDate")
	}
}

func TestCompletionInvariant(t *testing.T) {
	env := newTestEnv(t)
	task := env.create(t, engine.TaskCreateOptions{Title: "Close deal"})

	task, err := env.Engine.UpdateTask(env.Ctx, task.ID, engine.TaskUpdateOptions{Status: statusPtr(domain.StatusCompleted), Actor: tester})
	if err != nil {
		t.Fatal(err)
	}
	if task.CompletedDate == nil || !task.CompletedDate.Equal(env.Clock.Now()) {
		t.Fatalf("completedDate = %v", task.CompletedDate)
	}
	task, err = env.Engine.UpdateTask(env.Ctx, task.ID, engine.TaskUpdateOptions{Status: statusPtr(domain.StatusInProgress), Actor: tester})
	if err != nil {
		t.Fatal(err)
	}
	if task.CompletedDate != nil {
		t.Fatalf("completedDate should be cleared when reopening")
	}
	when := env.Clock.Now().Add(-time.Hour)
	if _, err := env.Engine.UpdateTask(env.Ctx, task.ID, engine.TaskUpdateOptions{CompletedDate: &when}); !domain.IsDomainError(err, domain.ErrCodeInvariantViolation) {
		t.Fatalf("completedDate without completed status should be rejected, got %v", err)
	}
	task, err = env.Engine.UpdateTask(env.Ctx, task.ID, engine.TaskUpdateOptions{Status: statusPtr(domain.StatusCompleted), CompletedDate: &when})
	if err != nil {
		t.Fatal(err)
	}
	if !task.CompletedDate.Equal(when) {
		t.Fatalf("explicit completedDate ignored: %v", task.CompletedDate)
	}
	if _, err := env.Engine.UpdateTask(env.Ctx, task.ID, engine.TaskUpdateOptions{Status: statusPtr(domain.StatusOverdue)}); !domain.IsDomainError(err, domain.ErrCodeValidation) {
		t.Fatalf("setting overdue should fail, got %v", err)
	}
	assertCompletionInvariant(t, env.Engine.Tasks())
}

func TestUpdatedAtStrictlyIncreasesWithFrozenClock(t *testing.T) {
	env := newTestEnv(t)
	task := env.create(t, engine.TaskCreateOptions{Title: "Frozen"})
	last := task.UpdatedAt
	title := "Frozen again"
	steps := []func() error{
		func() error {
			_, err := env.Engine.UpdateTask(env.Ctx, task.ID, engine.TaskUpdateOptions{Title: &title})
			return err
		},
		func() error {
			_, err := env.Engine.AddSubtask(env.Ctx, task.ID, engine.SubtaskInput{Title: "step"}, tester)
			return err
		},
		func() error {
			_, err := env.Engine.MoveTask(env.Ctx, task.ID, domain.StatusInProgress, tester)
			return err
		},
		func() error {
			_, err := env.Engine.AddReminder(env.Ctx, task.ID, engine.ReminderInput{RemindAt: env.Clock.Now()}, tester)
			return err
		},
		func() error {
			_, err := env.Engine.AddAttachment(env.Ctx, task.ID, engine.AttachmentInput{Name: "deck.pdf", URL: "https://files/deck.pdf"}, tester)
			return err
		},
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		cur, _ := env.Engine.Task(task.ID)
		if !cur.UpdatedAt.After(last) {
			t.Fatalf("step %d: updatedAt %v not after %v", i, cur.UpdatedAt, last)
		}
		last = cur.UpdatedAt
	}
}

func TestMoveTaskSameStatusIsNoop(t *testing.T) {
	env := newTestEnv(t)
	task := env.create(t, engine.TaskCreateOptions{Title: "Board card"})
	before := env.Engine.Activities.Len()
	moved, err := env.Engine.MoveTask(env.Ctx, task.ID, domain.StatusPending, tester)
	if err != nil {
		t.Fatal(err)
	}
	if !moved.UpdatedAt.Equal(task.UpdatedAt) || env.Engine.Activities.Len() != before {
		t.Fatalf("same-column drop must not mutate or log")
	}
	env.Clock.Advance(time.Minute)
	moved, err = env.Engine.MoveTask(env.Ctx, task.ID, domain.StatusOnHold, tester)
	if err != nil || moved.Status != domain.StatusOnHold {
		t.Fatalf("move: %+v %v", moved, err)
	}
	if _, err := env.Engine.MoveTask(env.Ctx, "missing", domain.StatusOnHold, tester); !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTasksByStatusPartition(t *testing.T) {
	env := newTestEnv(t)
	for i, s := range []domain.Status{domain.StatusPending, domain.StatusInProgress, domain.StatusCompleted, domain.StatusPending, domain.StatusCancelled, domain.StatusOnHold} {
		yesterday := env.Clock.Now().AddDate(0, 0, -1)
		env.create(t, engine.TaskCreateOptions{Title: fmt.Sprintf("t%d", i), Status: s, DueDate: &yesterday})
	}
	all := env.Engine.Tasks()
	seen := map[string]int{}
	for _, s := range domain.Statuses {
		byStatus := env.Engine.TasksByStatus(s)
		filtered := env.Engine.FilteredTasks(query.Filter{Statuses: []domain.Status{s}})
		if len(byStatus) != len(filtered) {
			t.Fatalf("status %s: by-status %d != filter %d", s, len(byStatus), len(filtered))
		}
		for _, task := range byStatus {
			seen[task.ID]++
		}
	}
	for _, task := range all {
		if seen[task.ID] != 1 {
			t.Fatalf("task %s in %d partitions", task.ID, seen[task.ID])
		}
	}
	board := env.Engine.Board(query.Filter{})
	if len(board) != len(domain.Statuses) || len(board[0].Tasks) != 2 {
		t.Fatalf("board = %+v", board)
	}
}

func TestOverdueScenario(t *testing.T) {
	env := newTestEnv(t)
	yesterday := env.Clock.Now().AddDate(0, 0, -1)
	task := env.create(t, engine.TaskCreateOptions{Title: "Follow up with Acme", DueDate: &yesterday, Status: domain.StatusPending})

	overdue := env.Engine.OverdueTasks()
	if len(overdue) != 1 || overdue[0].ID != task.ID {
		t.Fatalf("expected task to be overdue, got %+v", overdue)
	}
	updated, err := env.Engine.UpdateTask(env.Ctx, task.ID, engine.TaskUpdateOptions{Status: statusPtr(domain.StatusCompleted), Actor: tester})
	if err != nil {
		t.Fatal(err)
	}
	if len(env.Engine.OverdueTasks()) != 0 {
		t.Fatalf("completed task still overdue")
	}
	if updated.CompletedDate == nil {
		t.Fatalf("completedDate not set")
	}
}

func TestOverdueAndDueTodayExclusive(t *testing.T) {
	env := newTestEnv(t)
	for h := -20; h <= 20; h += 4 {
		due := env.Clock.Now().Add(time.Duration(h) * time.Hour)
		env.create(t, engine.TaskCreateOptions{Title: fmt.Sprintf("due %d", h), DueDate: &due})
	}
	overdue := map[string]bool{}
	for _, task := range env.Engine.OverdueTasks() {
		overdue[task.ID] = true
	}
	for _, task := range env.Engine.TasksDueToday() {
		if overdue[task.ID] {
			t.Fatalf("%s both overdue and due today", task.Title)
		}
	}
}

func TestCompletionRateScenario(t *testing.T) {
	env := newTestEnv(t)
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, env.create(t, engine.TaskCreateOptions{Title: fmt.Sprintf("task %d", i)}).ID)
	}
	for _, id := range ids[:2] {
		if _, err := env.Engine.MoveTask(env.Ctx, id, domain.StatusCompleted, tester); err != nil {
			t.Fatal(err)
		}
	}
	m := env.Engine.Metrics()
	if m.CompletionRate != 40.0 {
		t.Fatalf("completion rate = %v", m.CompletionRate)
	}
	if m.ByStatus[domain.StatusPending] != 3 || m.ByStatus[domain.StatusCompleted] != 2 ||
		m.ByStatus[domain.StatusInProgress] != 0 || m.ByStatus[domain.StatusOnHold] != 0 || m.ByStatus[domain.StatusCancelled] != 0 {
		t.Fatalf("by status = %v", m.ByStatus)
	}
	if m.ProductivityScore != 50 {
		t.Fatalf("productivity = %v", m.ProductivityScore)
	}
}

func TestDeleteTaskRemovesOwnedRecords(t *testing.T) {
	env := newTestEnv(t)
	task := env.create(t, engine.TaskCreateOptions{Title: "Parent", Subtasks: []string{"a", "b"}})
	st, err := env.Engine.AddSubtask(env.Ctx, task.ID, engine.SubtaskInput{Title: "c"}, tester)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AddAttachment(env.Ctx, task.ID, engine.AttachmentInput{Name: "n", URL: "u"}, tester); err != nil {
		t.Fatal(err)
	}
	rem, err := env.Engine.AddReminder(env.Ctx, task.ID, engine.ReminderInput{RemindAt: env.Clock.Now().Add(time.Hour)}, tester)
	if err != nil {
		t.Fatal(err)
	}
	dependent := env.create(t, engine.TaskCreateOptions{Title: "Dependent", Dependencies: []string{task.ID}})

	if err := env.Engine.DeleteTask(env.Ctx, task.ID, tester); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Task(task.ID); !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("task still retrievable: %v", err)
	}
	if _, err := env.Engine.CompleteSubtask(env.Ctx, task.ID, st.ID, tester); !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("subtask still reachable: %v", err)
	}
	if _, err := env.Engine.MarkReminderSent(env.Ctx, task.ID, rem.ID, tester); !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("reminder still reachable: %v", err)
	}
	if got := env.Engine.PendingReminders(env.Clock.Now().Add(24 * time.Hour)); len(got) != 0 {
		t.Fatalf("orphaned reminders: %+v", got)
	}
	dep, _ := env.Engine.Task(dependent.ID)
	if len(dep.Dependencies) != 0 {
		t.Fatalf("dependency on deleted task not pruned: %v", dep.Dependencies)
	}
	if err := env.Engine.DeleteTask(env.Ctx, task.ID, tester); !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
	acts := env.Engine.ActivitiesForEntity(domain.EntityTask, dependent.ID)
	if len(acts) == 0 || acts[0].Type != domain.ActivityTaskUpdated {
		t.Fatalf("pruned dependent should log an update, got %+v", acts)
	}
}

func TestDeleteTaskDetachesChildTasks(t *testing.T) {
	env := newTestEnv(t)
	parent := env.create(t, engine.TaskCreateOptions{Title: "Account plan"})
	child := env.create(t, engine.TaskCreateOptions{Title: "Draft summary", ParentTaskID: parent.ID, Dependencies: []string{parent.ID}})
	other := env.create(t, engine.TaskCreateOptions{Title: "Unrelated"})

	if err := env.Engine.DeleteTask(env.Ctx, parent.ID, tester); err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.Task(child.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ParentTaskID != "" || len(got.Dependencies) != 0 {
		t.Fatalf("child still points at deleted parent: parent=%q deps=%v", got.ParentTaskID, got.Dependencies)
	}
	if !got.UpdatedAt.After(child.UpdatedAt) {
		t.Fatalf("detached child updatedAt not bumped")
	}
	acts := env.Engine.ActivitiesForEntity(domain.EntityTask, child.ID)
	if len(acts) == 0 || acts[0].Type != domain.ActivityTaskUpdated {
		t.Fatalf("detached child should log one update, got %+v", acts)
	}
	if n := len(env.Engine.ActivitiesForEntity(domain.EntityTask, other.ID)); n != 1 {
		t.Fatalf("unrelated task got %d activities", n)
	}
	// the detached child can be re-parented normally
	next := env.create(t, engine.TaskCreateOptions{Title: "New plan"})
	if _, err := env.Engine.UpdateTask(env.Ctx, child.ID, engine.TaskUpdateOptions{ParentTaskID: &next.ID, Actor: tester}); err != nil {
		t.Fatalf("re-parent: %v", err)
	}
}

func TestParentCycleRejected(t *testing.T) {
	env := newTestEnv(t)
	a := env.create(t, engine.TaskCreateOptions{Title: "A"})
	b := env.create(t, engine.TaskCreateOptions{Title: "B", ParentTaskID: a.ID})
	c := env.create(t, engine.TaskCreateOptions{Title: "C", ParentTaskID: b.ID})

	for _, parent := range []string{b.ID, c.ID} {
		_, err := env.Engine.UpdateTask(env.Ctx, a.ID, engine.TaskUpdateOptions{ParentTaskID: &parent, Actor: tester})
		if !domain.IsDomainError(err, domain.ErrCodeInvariantViolation) {
			t.Fatalf("parent %s: expected invariant violation, got %v", parent, err)
		}
	}
	if got, _ := env.Engine.Task(a.ID); got.ParentTaskID != "" {
		t.Fatalf("rejected update changed parent to %q", got.ParentTaskID)
	}
	// moving a leaf under a sibling branch is fine
	d := env.create(t, engine.TaskCreateOptions{Title: "D", ParentTaskID: a.ID})
	if _, err := env.Engine.UpdateTask(env.Ctx, d.ID, engine.TaskUpdateOptions{ParentTaskID: &c.ID, Actor: tester}); err != nil {
		t.Fatalf("valid re-parent: %v", err)
	}
}

func TestWorkOrderFollowsDependencies(t *testing.T) {
	env := newTestEnv(t)
	report := env.create(t, engine.TaskCreateOptions{Title: "Report"})
	research := env.create(t, engine.TaskCreateOptions{Title: "Research"})
	if _, err := env.Engine.UpdateTask(env.Ctx, report.ID, engine.TaskUpdateOptions{Dependencies: &[]string{research.ID}, Actor: tester}); err != nil {
		t.Fatal(err)
	}
	ordered, err := env.Engine.WorkOrder()
	if err != nil {
		t.Fatal(err)
	}
	if len(ordered) != 2 || ordered[0].ID != research.ID || ordered[1].ID != report.ID {
		t.Fatalf("order = %+v", ordered)
	}
	if !ordered[0].Readiness.Ready || ordered[1].Readiness.Ready {
		t.Fatalf("readiness = %+v / %+v", ordered[0].Readiness, ordered[1].Readiness)
	}
	if cycle := env.Engine.DependencyCycle(); cycle != nil {
		t.Fatalf("unexpected cycle %v", cycle)
	}
}

func TestDuplicateThenDeleteLeavesOriginalUnchanged(t *testing.T) {
	env := newTestEnv(t)
	due := env.Clock.Now().AddDate(0, 0, 2)
	est := 90
	orig := env.create(t, engine.TaskCreateOptions{
		Title:             "Quarterly review",
		Description:       "Prepare slides",
		Type:              domain.TypeMeeting,
		Priority:          domain.PriorityHigh,
		Tags:              []string{"review"},
		DueDate:           &due,
		EstimatedDuration: &est,
		Subtasks:          []string{"collect numbers", "draft"},
		Reminders:         []engine.ReminderInput{{RemindAt: due.Add(-time.Hour), Message: "soon"}},
		CustomFields:      map[string]string{"region": "emea"},
	})
	if _, err := env.Engine.CompleteSubtask(env.Ctx, orig.ID, orig.Subtasks[0].ID, tester); err != nil {
		t.Fatal(err)
	}
	before, _ := env.Engine.Task(orig.ID)
	beforeJSON, _ := json.Marshal(before)

	env.Clock.Advance(time.Hour)
	dup, err := env.Engine.DuplicateTask(env.Ctx, orig.ID, tester)
	if err != nil {
		t.Fatal(err)
	}
	if dup.ID == orig.ID || dup.Title != "Quarterly review (copy)" || dup.Status != domain.StatusPending {
		t.Fatalf("duplicate = %+v", dup)
	}
	if dup.Subtasks[0].ID == before.Subtasks[0].ID || dup.Subtasks[0].Status != domain.SubTaskPending || dup.Subtasks[0].CompletedDate != nil {
		t.Fatalf("duplicate subtasks not reset: %+v", dup.Subtasks)
	}
	if dup.Reminders[0].ID == before.Reminders[0].ID {
		t.Fatalf("duplicate reminder shares id")
	}
	if !dup.CreatedAt.Equal(env.Clock.Now()) {
		t.Fatalf("duplicate timestamps not fresh")
	}
	if err := env.Engine.DeleteTask(env.Ctx, dup.ID, tester); err != nil {
		t.Fatal(err)
	}
	after, _ := env.Engine.Task(orig.ID)
	afterJSON, _ := json.Marshal(after)
	if string(beforeJSON) != string(afterJSON) {
		t.Fatalf("original changed:\nbefore %s\nafter  %s", beforeJSON, afterJSON)
	}
}

func TestDependencyValidationAndPolicy(t *testing.T) {
	env := newTestEnv(t)
	a := env.create(t, engine.TaskCreateOptions{Title: "a"})
	b := env.create(t, engine.TaskCreateOptions{Title: "b", Dependencies: []string{a.ID}})

	if _, err := env.Engine.UpdateTask(env.Ctx, a.ID, engine.TaskUpdateOptions{Dependencies: &[]string{b.ID}}); !domain.IsDomainError(err, domain.ErrCodeInvariantViolation) {
		t.Fatalf("cycle should be rejected, got %v", err)
	}
	if _, err := env.Engine.UpdateTask(env.Ctx, a.ID, engine.TaskUpdateOptions{Dependencies: &[]string{a.ID}}); !domain.IsDomainError(err, domain.ErrCodeInvariantViolation) {
		t.Fatalf("self dependency should be rejected, got %v", err)
	}
	r, err := env.Engine.CanStart(b.ID)
	if err != nil || r.Ready || len(r.BlockedBy) != 1 {
		t.Fatalf("readiness = %+v %v", r, err)
	}

	env.Engine.Config.Engine.DependencyPolicy = deps.PolicyEnforce
	if _, err := env.Engine.MoveTask(env.Ctx, b.ID, domain.StatusInProgress, tester); !domain.IsDomainError(err, domain.ErrCodeBlocked) {
		t.Fatalf("enforce should block, got %v", err)
	}
	if _, err := env.Engine.MoveTask(env.Ctx, b.ID, domain.StatusOnHold, tester); err != nil {
		t.Fatalf("on-hold is not gated: %v", err)
	}

	core, logs := observer.New(zap.WarnLevel)
	env.Engine.Logger = zap.New(core)
	env.Engine.Config.Engine.DependencyPolicy = deps.PolicyWarn
	if _, err := env.Engine.MoveTask(env.Ctx, b.ID, domain.StatusInProgress, tester); err != nil {
		t.Fatalf("warn should not block: %v", err)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected one warning, got %d", logs.Len())
	}

	if _, err := env.Engine.MoveTask(env.Ctx, a.ID, domain.StatusCompleted, tester); err != nil {
		t.Fatal(err)
	}
	if r, _ := env.Engine.CanStart(b.ID); !r.Ready {
		t.Fatalf("b should be ready once a is done: %+v", r)
	}
}

func TestEveryMutationLogsActivity(t *testing.T) {
	env := newTestEnv(t)
	count := func() int { return env.Engine.Activities.Len() }
	expectGrowth := func(name string, fn func() error) {
		t.Helper()
		before := count()
		if err := fn(); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if count() <= before {
			t.Fatalf("%s did not record an activity", name)
		}
	}
	var task domain.Task
	var st domain.SubTask
	var rem domain.TaskReminder
	var att domain.TaskAttachment
	var tpl domain.TaskTemplate
	var ev domain.CalendarEvent
	expectGrowth("create", func() (err error) {
		task, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "audit", AssignedUserID: "u-2", Actor: tester})
		return err
	})
	expectGrowth("update", func() error {
		_, err := env.Engine.UpdateTask(env.Ctx, task.ID, engine.TaskUpdateOptions{Priority: ptr(domain.PriorityHigh), Actor: tester})
		return err
	})
	expectGrowth("add subtask", func() (err error) {
		st, err = env.Engine.AddSubtask(env.Ctx, task.ID, engine.SubtaskInput{Title: "one"}, tester)
		return err
	})
	expectGrowth("update subtask", func() error {
		_, err := env.Engine.UpdateSubtask(env.Ctx, task.ID, st.ID, engine.SubtaskUpdate{Title: ptr("uno")}, tester)
		return err
	})
	expectGrowth("complete subtask", func() error {
		_, err := env.Engine.CompleteSubtask(env.Ctx, task.ID, st.ID, tester)
		return err
	})
	expectGrowth("delete subtask", func() error { return env.Engine.DeleteSubtask(env.Ctx, task.ID, st.ID, tester) })
	expectGrowth("add reminder", func() (err error) {
		rem, err = env.Engine.AddReminder(env.Ctx, task.ID, engine.ReminderInput{RemindAt: env.Clock.Now()}, tester)
		return err
	})
	expectGrowth("reminder sent", func() error {
		_, err := env.Engine.MarkReminderSent(env.Ctx, task.ID, rem.ID, domain.SystemActor)
		return err
	})
	expectGrowth("delete reminder", func() error { return env.Engine.DeleteReminder(env.Ctx, task.ID, rem.ID, tester) })
	expectGrowth("add attachment", func() (err error) {
		att, err = env.Engine.AddAttachment(env.Ctx, task.ID, engine.AttachmentInput{Name: "a", URL: "u"}, tester)
		return err
	})
	expectGrowth("delete attachment", func() error { return env.Engine.DeleteAttachment(env.Ctx, task.ID, att.ID, tester) })
	expectGrowth("template", func() (err error) {
		tpl, err = env.Engine.CreateTemplate(env.Ctx, engine.TemplateCreateOptions{Name: "tpl", Actor: tester})
		return err
	})
	expectGrowth("from template", func() error {
		_, err := env.Engine.CreateTaskFromTemplate(env.Ctx, tpl.ID, engine.TaskCreateOptions{Actor: tester})
		return err
	})
	expectGrowth("delete template", func() error { return env.Engine.DeleteTemplate(env.Ctx, tpl.ID, tester) })
	expectGrowth("event", func() (err error) {
		ev, err = env.Engine.CreateCalendarEvent(env.Ctx, engine.CalendarEventInput{CalendarID: "work", Title: "sync", Start: env.Clock.Now()}, tester)
		return err
	})
	expectGrowth("delete event", func() error { return env.Engine.DeleteCalendarEvent(env.Ctx, ev.ID, tester) })
	expectGrowth("duplicate", func() error {
		_, err := env.Engine.DuplicateTask(env.Ctx, task.ID, tester)
		return err
	})
	expectGrowth("delete", func() error { return env.Engine.DeleteTask(env.Ctx, task.ID, tester) })

	first := env.Engine.Activities.All()[0]
	if first.UserID != tester.ID || first.UserName != tester.Name || first.Type != domain.ActivityTaskCreated {
		t.Fatalf("first activity = %+v", first)
	}
}

func TestNotFoundIsUniform(t *testing.T) {
	env := newTestEnv(t)
	task := env.create(t, engine.TaskCreateOptions{Title: "present"})
	calls := map[string]error{}
	_, calls["update"] = env.Engine.UpdateTask(env.Ctx, "nope", engine.TaskUpdateOptions{})
	calls["delete"] = env.Engine.DeleteTask(env.Ctx, "nope", tester)
	_, calls["duplicate"] = env.Engine.DuplicateTask(env.Ctx, "nope", tester)
	_, calls["add subtask"] = env.Engine.AddSubtask(env.Ctx, "nope", engine.SubtaskInput{Title: "x"}, tester)
	_, calls["update subtask"] = env.Engine.UpdateSubtask(env.Ctx, task.ID, "nope", engine.SubtaskUpdate{}, tester)
	calls["delete subtask"] = env.Engine.DeleteSubtask(env.Ctx, task.ID, "nope", tester)
	_, calls["complete subtask"] = env.Engine.CompleteSubtask(env.Ctx, task.ID, "nope", tester)
	_, calls["from template"] = env.Engine.CreateTaskFromTemplate(env.Ctx, "nope", engine.TaskCreateOptions{})
	calls["delete template"] = env.Engine.DeleteTemplate(env.Ctx, "nope", tester)
	calls["delete event"] = env.Engine.DeleteCalendarEvent(env.Ctx, "nope", tester)
	calls["delete reminder"] = env.Engine.DeleteReminder(env.Ctx, task.ID, "nope", tester)
	calls["delete attachment"] = env.Engine.DeleteAttachment(env.Ctx, task.ID, "nope", tester)
	_, calls["spawn"] = env.Engine.SpawnOccurrence(env.Ctx, "nope", env.Clock.Now(), tester)
	_, calls["can start"] = env.Engine.CanStart("nope")
	for name, err := range calls {
		if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
			t.Errorf("%s: expected not found, got %v", name, err)
		}
	}
}

func TestCreateTaskFromTemplate(t *testing.T) {
	env := newTestEnv(t)
	est := 45
	tpl, err := env.Engine.CreateTemplate(env.Ctx, engine.TemplateCreateOptions{
		Name:              "Discovery call",
		Type:              domain.TypeCall,
		Priority:          domain.PriorityHigh,
		EstimatedDuration: &est,
		Subtasks:          []string{"Research", "Questions"},
		Tags:              []string{"sales"},
		CustomFields:      map[string]string{"stage": "lead", "source": "web"},
		Actor:             tester,
	})
	if err != nil {
		t.Fatal(err)
	}
	task, err := env.Engine.CreateTaskFromTemplate(env.Ctx, tpl.ID, engine.TaskCreateOptions{
		Title:        "Call Acme",
		Priority:     domain.PriorityUrgent,
		Subtasks:     []string{"Follow up"},
		CustomFields: map[string]string{"stage": "qualified"},
		Actor:        tester,
	})
	if err != nil {
		t.Fatal(err)
	}
	if task.Title != "Call Acme" || task.Type != domain.TypeCall || task.Priority != domain.PriorityUrgent {
		t.Fatalf("task = %+v", task)
	}
	if task.EstimatedDuration == nil || *task.EstimatedDuration != 45 || len(task.Tags) != 1 {
		t.Fatalf("template defaults missing: %+v", task)
	}
	if len(task.Subtasks) != 3 || task.Subtasks[2].Title != "Follow up" {
		t.Fatalf("subtasks = %+v", task.Subtasks)
	}
	if task.CustomFields["stage"] != "qualified" || task.CustomFields["source"] != "web" {
		t.Fatalf("custom fields = %v", task.CustomFields)
	}
	got, _ := env.Engine.Template(tpl.ID)
	if got.UseCount != 1 {
		t.Fatalf("use count = %d", got.UseCount)
	}
	used := env.Engine.ActivitiesForEntity(domain.EntityTemplate, tpl.ID)
	if len(used) == 0 || used[0].Type != domain.ActivityTemplateUsed {
		t.Fatalf("template_used not recorded: %+v", used)
	}
}

func TestSubtaskCompletionKeepsParentStatus(t *testing.T) {
	env := newTestEnv(t)
	task := env.create(t, engine.TaskCreateOptions{Title: "Parent", Subtasks: []string{"only"}})
	st, err := env.Engine.CompleteSubtask(env.Ctx, task.ID, task.Subtasks[0].ID, tester)
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != domain.SubTaskCompleted || st.CompletedDate == nil {
		t.Fatalf("subtask = %+v", st)
	}
	parent, _ := env.Engine.Task(task.ID)
	if parent.Status != domain.StatusPending {
		t.Fatalf("parent status changed to %s", parent.Status)
	}
	if done, total := parent.SubtaskProgress(); done != 1 || total != 1 {
		t.Fatalf("progress %d/%d", done, total)
	}
	reopened, err := env.Engine.UpdateSubtask(env.Ctx, task.ID, st.ID, engine.SubtaskUpdate{Status: ptr(domain.SubTaskPending)}, tester)
	if err != nil || reopened.CompletedDate != nil {
		t.Fatalf("reopen: %+v %v", reopened, err)
	}
}

func TestSpawnOccurrence(t *testing.T) {
	env := newTestEnv(t)
	due := env.Clock.Now()
	task := env.create(t, engine.TaskCreateOptions{
		Title:      "Weekly report",
		DueDate:    &due,
		Reminders:  []engine.ReminderInput{{RemindAt: due.Add(-2 * time.Hour)}},
		Recurrence: &domain.RecurringPattern{Frequency: domain.FrequencyWeekly, MaxOccurrences: 2},
	})
	if task.SeriesID != task.ID || task.Occurrence != 1 || task.Recurrence.Interval != 1 {
		t.Fatalf("series fields = %+v", task)
	}
	next := due.AddDate(0, 0, 7)
	spawned, err := env.Engine.SpawnOccurrence(env.Ctx, task.ID, next, domain.SystemActor)
	if err != nil {
		t.Fatal(err)
	}
	if spawned.Occurrence != 2 || spawned.SeriesID != task.ID || !spawned.DueDate.Equal(next) {
		t.Fatalf("spawned = %+v", spawned)
	}
	if len(spawned.Reminders) != 1 || !spawned.Reminders[0].RemindAt.Equal(next.Add(-2*time.Hour)) {
		t.Fatalf("reminder offsets not kept: %+v", spawned.Reminders)
	}
	if _, err := env.Engine.SpawnOccurrence(env.Ctx, task.ID, next, domain.SystemActor); !domain.IsDomainError(err, domain.ErrCodeInvariantViolation) {
		t.Fatalf("duplicate occurrence should fail, got %v", err)
	}
	if _, err := env.Engine.SpawnOccurrence(env.Ctx, spawned.ID, next.AddDate(0, 0, 7), domain.SystemActor); !domain.IsDomainError(err, domain.ErrCodeInvariantViolation) {
		t.Fatalf("max occurrences should stop the series, got %v", err)
	}
}

func TestLogActivityAndFeed(t *testing.T) {
	env := newTestEnv(t)
	task := env.create(t, engine.TaskCreateOptions{Title: "Acme"})
	if _, err := env.Engine.LogActivity(env.Ctx, engine.LogActivityOptions{Type: domain.ActivityTaskDeleted, Title: "x", EntityType: domain.EntityTask, EntityID: task.ID}, tester); !domain.IsDomainError(err, domain.ErrCodeValidation) {
		t.Fatalf("engine-owned types must not be logged directly, got %v", err)
	}
	env.Clock.Advance(time.Minute)
	call, err := env.Engine.LogActivity(env.Ctx, engine.LogActivityOptions{
		Type: domain.ActivityCallLogged, Title: "Intro call", EntityType: domain.EntityTask, EntityID: task.ID, Important: true,
	}, tester)
	if err != nil {
		t.Fatal(err)
	}
	if !call.IsImportant || call.UserName != tester.Name {
		t.Fatalf("call = %+v", call)
	}
	forTask := env.Engine.ActivitiesForEntity(domain.EntityTask, task.ID)
	if len(forTask) != 2 || forTask[0].ID != call.ID {
		t.Fatalf("for entity = %+v", forTask)
	}
	feed := env.Engine.ActivityFeed(activity.PresetToday, activity.Criteria{SearchTerm: "intro"})
	if len(feed) != 1 || feed[0].Day != "2024-03-13" || len(feed[0].Activities) != 1 {
		t.Fatalf("feed = %+v", feed)
	}
}

func TestCalendarProjection(t *testing.T) {
	env := newTestEnv(t)
	due := env.Clock.Now().AddDate(0, 0, 1)
	task := env.create(t, engine.TaskCreateOptions{Title: "Dated", DueDate: &due})
	if _, err := env.Engine.CreateCalendarEvent(env.Ctx, engine.CalendarEventInput{CalendarID: "personal", Title: "Gym", Start: env.Clock.Now()}, tester); err != nil {
		t.Fatal(err)
	}
	ev, err := env.Engine.CreateCalendarEvent(env.Ctx, engine.CalendarEventInput{CalendarID: "work", Title: "Kickoff", Start: env.Clock.Now(), TaskID: task.ID}, tester)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.End.Equal(ev.Start.Add(time.Hour)) {
		t.Fatalf("default end = %v", ev.End)
	}
	entries := env.Engine.Calendar(env.Engine.Config.VisibleCalendars())
	if len(entries) != 2 || entries[0].EventID != ev.ID || entries[1].TaskID != task.ID {
		t.Fatalf("entries = %+v", entries)
	}
	if _, err := env.Engine.CreateCalendarEvent(env.Ctx, engine.CalendarEventInput{CalendarID: "work", Title: "bad", Start: env.Clock.Now(), End: env.Clock.Now().Add(-time.Hour)}, tester); !domain.IsDomainError(err, domain.ErrCodeValidation) {
		t.Fatalf("end before start should fail, got %v", err)
	}
}

func TestQueriesReturnCopies(t *testing.T) {
	env := newTestEnv(t)
	task := env.create(t, engine.TaskCreateOptions{Title: "immutable", Tags: []string{"a"}})
	got, _ := env.Engine.Task(task.ID)
	got.Tags[0] = "mutated"
	got.Title = "mutated"
	again, _ := env.Engine.Task(task.ID)
	if again.Tags[0] != "a" || again.Title != "immutable" {
		t.Fatalf("engine state leaked through query result")
	}
}

func TestCancelledContextAppliesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := env.Engine.CreateTask(ctx, engine.TaskCreateOptions{Title: "never"}); err == nil {
		t.Fatalf("expected context error")
	}
	if len(env.Engine.Tasks()) != 0 || env.Engine.Activities.Len() != 0 {
		t.Fatalf("cancelled mutation left state behind")
	}
}

func ptr[T any](v T) *T { return &v }
