package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"taskdesk/internal/activity"
	"taskdesk/internal/config"
	"taskdesk/internal/db"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
	"taskdesk/internal/migrate"
	"taskdesk/internal/repo"
	"taskdesk/internal/store"
)

// Workspace is an opened taskdesk directory: its config, its database and
// an engine hydrated from it.
type Workspace struct {
	Dir    string
	Config *config.Config
	DB     *sql.DB
	Repo   repo.Repo
	Engine *engine.Engine
	Logger *zap.Logger

	mu        sync.Mutex
	persisted int
}

// Init writes a default taskdesk.yml unless one exists and creates the
// database. It reports whether a config file was written.
func Init(ctx context.Context, dir, name string) (bool, error) {
	created := false
	if _, err := os.Stat(config.Path(dir)); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, err
		}
		if err := os.WriteFile(config.Path(dir), []byte(config.GenerateDefault(name)), 0o644); err != nil {
			return false, fmt.Errorf("write config: %w", err)
		}
		created = true
	} else if err != nil {
		return false, err
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		return created, err
	}
	defer conn.Close()
	return created, migrate.Migrate(ctx, conn)
}

// Open loads the workspace at dir. A missing config falls back to the
// defaults so read-only commands work in a bare directory.
func Open(ctx context.Context, dir string, logger *zap.Logger) (*Workspace, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := config.LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("taskdesk")
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		return nil, err
	}
	w, err := hydrate(ctx, dir, cfg, conn, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return w, nil
}

func hydrate(ctx context.Context, dir string, cfg *config.Config, conn *sql.DB, logger *zap.Logger) (*Workspace, error) {
	if err := migrate.Migrate(ctx, conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	r := repo.Repo{DB: conn}
	snap, err := r.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	st, err := store.Restore(snap)
	if err != nil {
		return nil, err
	}
	stored, err := r.ListActivities(ctx, repo.ActivityFilters{})
	if err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	acts := make([]domain.Activity, len(stored))
	for i, sa := range stored {
		acts[i] = sa.Activity
	}
	log, err := activity.NewLog(acts...)
	if err != nil {
		return nil, err
	}
	eng := engine.New(cfg, st, log)
	eng.Logger = logger
	if cycle := eng.DependencyCycle(); cycle != nil {
		logger.Warn("stored tasks contain a dependency cycle", zap.Strings("task_ids", cycle))
	}
	w := &Workspace{
		Dir:       dir,
		Config:    cfg,
		DB:        conn,
		Repo:      r,
		Engine:    eng,
		Logger:    logger,
		persisted: len(acts),
	}
	if err := w.seedTemplates(ctx); err != nil {
		return nil, err
	}
	logger.Debug("workspace opened",
		zap.String("dir", dir),
		zap.Int("tasks", st.Tasks.Len()),
		zap.Int("activities", len(acts)))
	return w, nil
}

// seedTemplates copies the configured templates into a brand new workspace.
// Once anything was recorded the stored templates are authoritative.
func (w *Workspace) seedTemplates(ctx context.Context) error {
	if len(w.Config.Templates) == 0 || w.Engine.Activities.Len() > 0 || w.Engine.Store.Templates.Len() > 0 {
		return nil
	}
	for _, tpl := range w.Config.Templates {
		_, err := w.Engine.CreateTemplate(ctx, engine.TemplateCreateOptions{
			ID:                tpl.ID,
			Name:              tpl.Name,
			Description:       tpl.Description,
			Type:              tpl.Type,
			Priority:          tpl.Priority,
			EstimatedDuration: tpl.EstimatedDuration,
			Subtasks:          tpl.Subtasks,
			Tags:              tpl.Tags,
			CustomFields:      tpl.CustomFields,
			Actor:             domain.SystemActor,
		})
		if err != nil {
			return fmt.Errorf("seed template %s: %w", tpl.Name, err)
		}
	}
	return w.Save(ctx)
}

// Save persists the collection and the activities recorded since the last
// save in one transaction.
func (w *Workspace) Save(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap, acts := w.Engine.Checkpoint(w.persisted)
	if err := w.Repo.Save(ctx, snap, acts); err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	w.persisted += len(acts)
	return nil
}

// Dirty reports whether activities were recorded since the last save.
func (w *Workspace) Dirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Engine.Activities.Len() > w.persisted
}

func (w *Workspace) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}

// Status describes what is stored in the workspace database.
type Status struct {
	SchemaVersion    int            `json:"schemaVersion"`
	LatestSchema     int            `json:"latestSchema"`
	StoredTasks      map[string]int `json:"storedTasks"`
	StoredActivities int            `json:"storedActivities"`
	Unsaved          int            `json:"unsavedActivities"`
	Templates        int            `json:"templates"`
	CalendarEvents   int            `json:"calendarEvents"`
}

func (w *Workspace) Status(ctx context.Context) (Status, error) {
	var st Status
	var err error
	if st.SchemaVersion, err = migrate.Version(ctx, w.DB); err != nil {
		return st, err
	}
	if st.LatestSchema, err = migrate.Latest(); err != nil {
		return st, err
	}
	if st.StoredTasks, err = w.Repo.CountTasksByStatus(ctx); err != nil {
		return st, fmt.Errorf("count tasks: %w", err)
	}
	if st.StoredActivities, err = w.Repo.CountActivities(ctx); err != nil {
		return st, fmt.Errorf("count activities: %w", err)
	}
	w.mu.Lock()
	st.Unsaved = w.Engine.Activities.Len() - w.persisted
	w.mu.Unlock()
	st.Templates = len(w.Engine.Templates())
	st.CalendarEvents = len(w.Engine.CalendarEvents())
	return st, nil
}
