package scheduler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"taskdesk/internal/config"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
	"taskdesk/internal/scheduler"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []scheduler.Notification
	fail bool
}

func (r *recordingNotifier) Notify(_ context.Context, n scheduler.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("unreachable")
	}
	r.sent = append(r.sent, n)
	return nil
}

func newEngine(t *testing.T, now time.Time) *engine.Engine {
	t.Helper()
	cfg := config.Default("test")
	cfg.Workspace.Timezone = "UTC"
	e := engine.New(cfg, nil, nil)
	e.Now = func() time.Time { return now }
	n := 0
	e.NewID = func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
	return e
}

func openLedger(t *testing.T) *scheduler.Ledger {
	t.Helper()
	l, err := scheduler.OpenLedger(filepath.Join(t.TempDir(), ".taskdesk", "scheduler.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRunOnceDeliversDueRemindersOnce(t *testing.T) {
	now := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	e := newEngine(t, now)
	ctx := context.Background()
	task, err := e.CreateTask(ctx, engine.TaskCreateOptions{
		Title: "Call Acme",
		Reminders: []engine.ReminderInput{
			{RemindAt: now.Add(-time.Minute), Message: "now"},
			{RemindAt: now.Add(time.Hour), Message: "later"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	done, err := e.CreateTask(ctx, engine.TaskCreateOptions{
		Title:     "Closed",
		Status:    domain.StatusCompleted,
		Reminders: []engine.ReminderInput{{RemindAt: now.Add(-time.Hour)}},
	})
	if err != nil {
		t.Fatal(err)
	}

	notifier := &recordingNotifier{}
	ledger := openLedger(t)
	s := scheduler.New(e, ledger, notifier, nil, scheduler.Config{})

	report, err := s.RunOnce(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if report.RemindersSent != 1 || len(notifier.sent) != 1 || notifier.sent[0].Message != "now" {
		t.Fatalf("report %+v sent %+v", report, notifier.sent)
	}
	got, _ := e.Task(task.ID)
	if !got.Reminders[0].IsSent || got.Reminders[0].SentAt == nil || got.Reminders[1].IsSent {
		t.Fatalf("reminders = %+v", got.Reminders)
	}
	closed, _ := e.Task(done.ID)
	if closed.Reminders[0].IsSent {
		t.Fatalf("reminder of a completed task was sent")
	}

	report, err = s.RunOnce(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if report.RemindersSent != 0 || len(notifier.sent) != 1 {
		t.Fatalf("second run re-sent: %+v", report)
	}
	acts := e.ActivitiesForEntity(domain.EntityTask, task.ID)
	if acts[0].Type != domain.ActivityReminderSent || acts[0].UserID != domain.SystemActor.ID {
		t.Fatalf("reminder_sent not recorded: %+v", acts[0])
	}
}

func TestRunOnceMarksDeliveredReminderWithoutResending(t *testing.T) {
	now := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	e := newEngine(t, now)
	ctx := context.Background()
	task, err := e.CreateTask(ctx, engine.TaskCreateOptions{
		Title:     "Crashed mid-run",
		Reminders: []engine.ReminderInput{{RemindAt: now}},
	})
	if err != nil {
		t.Fatal(err)
	}
	ledger := openLedger(t)
	if err := ledger.RecordReminder(task.ID, task.Reminders[0].ID, now); err != nil {
		t.Fatal(err)
	}
	notifier := &recordingNotifier{}
	report, err := scheduler.New(e, ledger, notifier, nil, scheduler.Config{}).RunOnce(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(notifier.sent) != 0 || report.RemindersSent != 1 {
		t.Fatalf("report %+v sent %d", report, len(notifier.sent))
	}
}

func TestRunOnceCountsDeliveryFailures(t *testing.T) {
	now := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	e := newEngine(t, now)
	ctx := context.Background()
	task, err := e.CreateTask(ctx, engine.TaskCreateOptions{Title: "x", Reminders: []engine.ReminderInput{{RemindAt: now}}})
	if err != nil {
		t.Fatal(err)
	}
	s := scheduler.New(e, openLedger(t), &recordingNotifier{fail: true}, nil, scheduler.Config{})
	report, err := s.RunOnce(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if report.Failures != 1 || report.RemindersSent != 0 {
		t.Fatalf("report = %+v", report)
	}
	got, _ := e.Task(task.ID)
	if got.Reminders[0].IsSent {
		t.Fatalf("failed delivery must stay pending")
	}
}

func TestRunOnceSpawnsNextOccurrenceOnce(t *testing.T) {
	now := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	e := newEngine(t, now)
	ctx := context.Background()
	due := now.Add(-24 * time.Hour)
	task, err := e.CreateTask(ctx, engine.TaskCreateOptions{
		Title:      "Weekly pipeline review",
		DueDate:    &due,
		Recurrence: &domain.RecurringPattern{Frequency: domain.FrequencyWeekly},
	})
	if err != nil {
		t.Fatal(err)
	}
	s := scheduler.New(e, openLedger(t), &recordingNotifier{}, nil, scheduler.Config{})

	report, err := s.RunOnce(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if report.OccurrencesSpawned != 0 {
		t.Fatalf("open task must not spawn: %+v", report)
	}
	if _, err := e.MoveTask(ctx, task.ID, domain.StatusCompleted, domain.SystemActor); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		report, err = s.RunOnce(ctx, now)
		if err != nil {
			t.Fatal(err)
		}
		if want := 1 - i; report.OccurrencesSpawned != want {
			t.Fatalf("run %d spawned %d", i, report.OccurrencesSpawned)
		}
	}
	tasks := e.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("tasks = %d", len(tasks))
	}
	next := tasks[1]
	if next.Occurrence != 2 || next.SeriesID != task.ID || !next.DueDate.Equal(due.AddDate(0, 0, 7)) {
		t.Fatalf("next = %+v", next)
	}
}

func TestNextOccurrence(t *testing.T) {
	wed := time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		p    domain.RecurringPattern
		from time.Time
		want time.Time
		ok   bool
	}{
		{"daily", domain.RecurringPattern{Frequency: domain.FrequencyDaily, Interval: 1}, wed, wed.AddDate(0, 0, 1), true},
		{"every other day", domain.RecurringPattern{Frequency: domain.FrequencyDaily, Interval: 2}, wed, wed.AddDate(0, 0, 2), true},
		{"weekly", domain.RecurringPattern{Frequency: domain.FrequencyWeekly}, wed, wed.AddDate(0, 0, 7), true},
		{"weekly later this week", domain.RecurringPattern{Frequency: domain.FrequencyWeekly, DaysOfWeek: []time.Weekday{time.Monday, time.Friday}}, wed, wed.AddDate(0, 0, 2), true},
		{"weekly wraps", domain.RecurringPattern{Frequency: domain.FrequencyWeekly, Interval: 2, DaysOfWeek: []time.Weekday{time.Monday}}, wed, time.Date(2024, 3, 25, 10, 0, 0, 0, time.UTC), true},
		{"monthly clamps", domain.RecurringPattern{Frequency: domain.FrequencyMonthly, Interval: 1}, time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC), true},
		{"yearly leap day", domain.RecurringPattern{Frequency: domain.FrequencyYearly, Interval: 1}, time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC), time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC), true},
		{"past end date", domain.RecurringPattern{Frequency: domain.FrequencyDaily, Interval: 3, EndDate: &end}, wed, time.Time{}, false},
		{"unknown frequency", domain.RecurringPattern{Frequency: "hourly"}, wed, time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := scheduler.NextOccurrence(&tc.p, tc.from)
			if ok != tc.ok || !got.Equal(tc.want) {
				t.Fatalf("got %v %v, want %v %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestLedgerPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := scheduler.OpenLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	if err := l.RecordReminder("t1", "r1", at); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordOccurrence("s1", 1, "t2", at); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	l, err = scheduler.OpenLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	if ok, _ := l.ReminderDelivered("t1", "r1"); !ok {
		t.Fatalf("reminder lost")
	}
	if ok, _ := l.OccurrenceSpawned("s1", 1); !ok {
		t.Fatalf("occurrence lost")
	}
	if ok, _ := l.OccurrenceSpawned("s1", 2); ok {
		t.Fatalf("unexpected occurrence")
	}
	r, o, err := l.Counts()
	if err != nil || r != 1 || o != 1 {
		t.Fatalf("counts = %d %d %v", r, o, err)
	}
}

func TestWebhookNotifierPostsWithSecret(t *testing.T) {
	var got scheduler.Notification
	var secret, event string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret = r.Header.Get("X-Taskdesk-Secret")
		event = r.Header.Get("X-Taskdesk-Event")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := scheduler.NewWebhookNotifier([]config.Webhook{{URL: srv.URL, Secret: "s3cret"}})
	err := n.Notify(context.Background(), scheduler.Notification{TaskID: "t1", ReminderID: "r1", Type: domain.ReminderEmail})
	if err != nil {
		t.Fatal(err)
	}
	if secret != "s3cret" || event != "reminder" || got.TaskID != "t1" || got.Type != domain.ReminderEmail {
		t.Fatalf("secret=%q event=%q body=%+v", secret, event, got)
	}
}

func TestWebhookNotifierReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()
	n := scheduler.NewWebhookNotifier([]config.Webhook{{URL: srv.URL}})
	if err := n.Notify(context.Background(), scheduler.Notification{ReminderID: "r1"}); err == nil {
		t.Fatalf("expected delivery error")
	}
}
