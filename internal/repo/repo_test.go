package repo_test

import (
	"context"
	"testing"
	"time"

	"taskdesk/internal/db"
	"taskdesk/internal/domain"
	"taskdesk/internal/migrate"
	"taskdesk/internal/repo"
	"taskdesk/internal/store"
)

func openRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func sampleSnapshot() store.Snapshot {
	created := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	due := created.Add(48 * time.Hour)
	return store.Snapshot{
		Tasks: []domain.Task{
			{
				ID: "t2", Title: "Second", Type: domain.TypeCall, Status: domain.StatusPending, Priority: domain.PriorityHigh,
				Tags: []string{"sales"}, CreatedAt: created, UpdatedAt: created, DueDate: &due,
				Subtasks:     []domain.SubTask{{ID: "s1", Title: "prep", Status: domain.SubTaskPending, CreatedAt: created}},
				Attachments:  []domain.TaskAttachment{},
				Reminders:    []domain.TaskReminder{},
				Dependencies: []string{},
				CustomFields: map[string]string{"stage": "lead"},
			},
			{
				ID: "t1", Title: "First", Type: domain.TypeOther, Status: domain.StatusCompleted, Priority: domain.PriorityLow,
				CreatedAt: created, UpdatedAt: created, CompletedDate: &created,
				Tags: []string{}, Subtasks: []domain.SubTask{}, Attachments: []domain.TaskAttachment{},
				Reminders: []domain.TaskReminder{}, Dependencies: []string{"t2"}, CustomFields: map[string]string{},
			},
		},
		Templates: []domain.TaskTemplate{{ID: "tpl", Name: "Discovery", Type: domain.TypeCall, Priority: domain.PriorityMedium, UseCount: 3, CreatedAt: created, UpdatedAt: created}},
		Events:    []domain.CalendarEvent{{ID: "ev", CalendarID: "work", Title: "Kickoff", Start: created, End: created.Add(time.Hour), Attendees: []string{}, CreatedAt: created}},
	}
}

func TestSnapshotRoundTripKeepsOrder(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	snap := sampleSnapshot()
	if err := r.SaveSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}
	got, err := r.LoadSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tasks) != 2 || got.Tasks[0].ID != "t2" || got.Tasks[1].ID != "t1" {
		t.Fatalf("task order = %+v", got.Tasks)
	}
	if !got.Tasks[0].DueDate.Equal(*snap.Tasks[0].DueDate) || got.Tasks[0].Subtasks[0].Title != "prep" || got.Tasks[0].CustomFields["stage"] != "lead" {
		t.Fatalf("task fields lost: %+v", got.Tasks[0])
	}
	if got.Templates[0].UseCount != 3 || got.Events[0].CalendarID != "work" {
		t.Fatalf("templates/events = %+v %+v", got.Templates, got.Events)
	}
	if _, err := store.Restore(got); err != nil {
		t.Fatalf("restore: %v", err)
	}
}

func TestSaveReplacesCollection(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	snap := sampleSnapshot()
	if err := r.SaveSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}
	snap.Tasks = snap.Tasks[:1]
	snap.Events = nil
	if err := r.SaveSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}
	got, err := r.LoadSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tasks) != 1 || len(got.Events) != 0 || got.Events == nil {
		t.Fatalf("snapshot not replaced: %+v", got)
	}
	counts, err := r.CountTasksByStatus(ctx)
	if err != nil || counts["pending"] != 1 || counts["completed"] != 0 {
		t.Fatalf("counts = %v %v", counts, err)
	}
}

func TestActivitiesAppendOnly(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	acts := []domain.Activity{
		{ID: "a1", Type: domain.ActivityTaskCreated, Title: "Task created: x", EntityType: domain.EntityTask, EntityID: "t1", UserID: "u1", CreatedAt: at},
		{ID: "a2", Type: domain.ActivityCallLogged, Title: "Call", EntityType: domain.EntityTask, EntityID: "t2", UserID: "u1", CreatedAt: at, Metadata: map[string]any{"minutes": 5.0}},
		{ID: "a3", Type: domain.ActivityTaskUpdated, Title: "Task updated: x", EntityType: domain.EntityTask, EntityID: "t1", UserID: "u2", CreatedAt: at.Add(time.Minute)},
	}
	if err := r.Save(ctx, sampleSnapshot(), acts[:2]); err != nil {
		t.Fatal(err)
	}
	if err := r.AppendActivities(ctx, acts[2:]); err != nil {
		t.Fatal(err)
	}
	if err := r.AppendActivities(ctx, acts[:1]); err == nil {
		t.Fatalf("duplicate activity id must fail")
	}
	all, err := r.ListActivities(ctx, repo.ActivityFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "a1" || all[2].ID != "a3" || all[1].Metadata["minutes"] != 5.0 {
		t.Fatalf("activities = %+v", all)
	}
	forT1, err := r.ListActivities(ctx, repo.ActivityFilters{EntityType: domain.EntityTask, EntityID: "t1"})
	if err != nil || len(forT1) != 2 {
		t.Fatalf("entity filter = %+v %v", forT1, err)
	}
	after, err := r.ListActivities(ctx, repo.ActivityFilters{AfterSeq: all[0].Seq, Limit: 1})
	if err != nil || len(after) != 1 || after[0].ID != "a2" {
		t.Fatalf("cursor = %+v %v", after, err)
	}
	n, err := r.CountActivities(ctx)
	if err != nil || n != 3 {
		t.Fatalf("count = %d %v", n, err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	ctx := context.Background()
	if v, err := migrate.Version(ctx, conn); err != nil || v != 0 {
		t.Fatalf("fresh version = %d %v", v, err)
	}
	for i := 0; i < 2; i++ {
		if err := migrate.Migrate(ctx, conn); err != nil {
			t.Fatalf("migrate %d: %v", i, err)
		}
	}
	latest, err := migrate.Latest()
	if err != nil {
		t.Fatal(err)
	}
	v, err := migrate.Version(ctx, conn)
	if err != nil || v != latest || latest < 2 {
		t.Fatalf("version = %d latest = %d err = %v", v, latest, err)
	}
	var n int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("schema_version rows = %d %v", n, err)
	}
}
