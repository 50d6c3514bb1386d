package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"taskdesk/internal/domain"
	"taskdesk/internal/store"
)

// Repo persists the task collection as JSON documents in SQLite. Tasks,
// templates and calendar events are rewritten as a whole on every save; the
// activity log is append-only.
type Repo struct {
	DB *sql.DB
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// Save replaces the stored collection with snap and appends acts, atomically.
func (r Repo) Save(ctx context.Context, snap store.Snapshot, acts []domain.Activity) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.SaveSnapshotTx(ctx, tx, snap); err != nil {
		return err
	}
	if err := r.AppendActivitiesTx(ctx, tx, acts); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) SaveSnapshot(ctx context.Context, snap store.Snapshot) error {
	return r.Save(ctx, snap, nil)
}

func (r Repo) SaveSnapshotTx(ctx context.Context, tx *sql.Tx, snap store.Snapshot) error {
	for _, table := range []string{"tasks", "templates", "calendar_events"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for i, t := range snap.Tasks {
		doc, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,position,title,status,due_date,updated_at,doc) VALUES (?,?,?,?,?,?,?)`,
			t.ID, i, t.Title, string(t.Status), nullableTime(t.DueDate), formatTime(t.UpdatedAt), string(doc)); err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}
	for i, tpl := range snap.Templates {
		doc, err := json.Marshal(tpl)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO templates(id,position,name,use_count,doc) VALUES (?,?,?,?,?)`,
			tpl.ID, i, tpl.Name, tpl.UseCount, string(doc)); err != nil {
			return fmt.Errorf("insert template %s: %w", tpl.ID, err)
		}
	}
	for i, ev := range snap.Events {
		doc, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO calendar_events(id,position,calendar_id,start_at,doc) VALUES (?,?,?,?,?)`,
			ev.ID, i, ev.CalendarID, formatTime(ev.Start), string(doc)); err != nil {
			return fmt.Errorf("insert event %s: %w", ev.ID, err)
		}
	}
	return nil
}

// LoadSnapshot reads the collection back in its saved order.
func (r Repo) LoadSnapshot(ctx context.Context) (store.Snapshot, error) {
	snap := store.Snapshot{
		Tasks:     []domain.Task{},
		Templates: []domain.TaskTemplate{},
		Events:    []domain.CalendarEvent{},
	}
	if err := loadDocs(ctx, r.DB, `SELECT doc FROM tasks ORDER BY position`, func(doc []byte) error {
		var t domain.Task
		if err := json.Unmarshal(doc, &t); err != nil {
			return fmt.Errorf("decode task: %w", err)
		}
		snap.Tasks = append(snap.Tasks, t)
		return nil
	}); err != nil {
		return store.Snapshot{}, err
	}
	if err := loadDocs(ctx, r.DB, `SELECT doc FROM templates ORDER BY position`, func(doc []byte) error {
		var t domain.TaskTemplate
		if err := json.Unmarshal(doc, &t); err != nil {
			return fmt.Errorf("decode template: %w", err)
		}
		snap.Templates = append(snap.Templates, t)
		return nil
	}); err != nil {
		return store.Snapshot{}, err
	}
	if err := loadDocs(ctx, r.DB, `SELECT doc FROM calendar_events ORDER BY position`, func(doc []byte) error {
		var ev domain.CalendarEvent
		if err := json.Unmarshal(doc, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		snap.Events = append(snap.Events, ev)
		return nil
	}); err != nil {
		return store.Snapshot{}, err
	}
	return snap, nil
}

func loadDocs(ctx context.Context, db *sql.DB, query string, each func([]byte) error, args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return err
		}
		if err := each([]byte(doc)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountTasksByStatus reports stored task counts keyed by status.
func (r Repo) CountTasksByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

func (r Repo) AppendActivities(ctx context.Context, acts []domain.Activity) error {
	if len(acts) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.AppendActivitiesTx(ctx, tx, acts); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) AppendActivitiesTx(ctx context.Context, tx *sql.Tx, acts []domain.Activity) error {
	for _, a := range acts {
		doc, err := json.Marshal(a)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO activities(id,type,entity_type,entity_id,user_id,created_at,doc) VALUES (?,?,?,?,?,?,?)`,
			a.ID, string(a.Type), a.EntityType, a.EntityID, a.UserID, formatTime(a.CreatedAt), string(doc)); err != nil {
			return fmt.Errorf("insert activity %s: %w", a.ID, err)
		}
	}
	return nil
}

// ActivityFilters narrows ListActivities. Zero values match everything;
// results are in append order.
type ActivityFilters struct {
	Type       string
	EntityType string
	EntityID   string
	AfterSeq   int64
	Limit      int
}

// StoredActivity is an activity with its journal position.
type StoredActivity struct {
	Seq int64
	domain.Activity
}

func (r Repo) ListActivities(ctx context.Context, f ActivityFilters) ([]StoredActivity, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityType != "" {
		where = append(where, "entity_type=?")
		args = append(args, f.EntityType)
	}
	if f.EntityID != "" {
		where = append(where, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.AfterSeq > 0 {
		where = append(where, "seq>?")
		args = append(args, f.AfterSeq)
	}
	query := `SELECT seq, doc FROM activities`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []StoredActivity
	for rows.Next() {
		var sa StoredActivity
		var doc string
		if err := rows.Scan(&sa.Seq, &doc); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(doc), &sa.Activity); err != nil {
			return nil, fmt.Errorf("decode activity %d: %w", sa.Seq, err)
		}
		res = append(res, sa)
	}
	return res, rows.Err()
}

func (r Repo) CountActivities(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&n)
	return n, err
}
