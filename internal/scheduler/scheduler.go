package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
)

// Engine is the part of the engine the scheduler drives.
type Engine interface {
	Tasks() []domain.Task
	PendingReminders(at time.Time) []engine.DueReminder
	MarkReminderSent(ctx context.Context, taskID, reminderID string, actor domain.Actor) (domain.TaskReminder, error)
	SpawnOccurrence(ctx context.Context, taskID string, due time.Time, actor domain.Actor) (domain.Task, error)
}

// Report counts what one run did.
type Report struct {
	RemindersSent      int `json:"remindersSent"`
	OccurrencesSpawned int `json:"occurrencesSpawned"`
	Failures           int `json:"failures"`
}

// Changed reports whether the run mutated the engine.
func (r Report) Changed() bool {
	return r.RemindersSent > 0 || r.OccurrencesSpawned > 0
}

type Config struct {
	Interval time.Duration
}

// Scheduler delivers due reminders and expands recurring tasks. It runs
// outside the engine and only talks to it through its public operations.
type Scheduler struct {
	engine   Engine
	ledger   *Ledger
	notifier Notifier
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      Config

	// AfterRun is called after every periodic run, typically to persist the
	// workspace.
	AfterRun func(ctx context.Context, r Report) error
	Now      func() time.Time
}

func New(e Engine, ledger *Ledger, notifier Notifier, logger *zap.Logger, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Scheduler{
		engine:   e,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		Now:      time.Now,
	}
}

// Start launches the periodic loop. Overlapping runs are skipped.
func (s *Scheduler) Start() error {
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	schedule := fmt.Sprintf("@every %s", s.cfg.Interval)
	if _, err := c.AddFunc(schedule, s.tick); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("scheduler started", zap.Duration("interval", s.cfg.Interval))
	return nil
}

// Stop waits for a running tick or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.cron = nil
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
	defer cancel()
	report, err := s.RunOnce(ctx, s.now())
	if err != nil {
		s.logger.Error("scheduler run failed", zap.Error(err))
		return
	}
	if s.AfterRun != nil {
		if err := s.AfterRun(ctx, report); err != nil {
			s.logger.Error("scheduler after-run hook failed", zap.Error(err))
		}
	}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RunOnce performs a single pass at now. Individual delivery failures are
// logged and counted; only ledger failures abort the run.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (Report, error) {
	var report Report
	if err := s.deliverReminders(ctx, now, &report); err != nil {
		return report, err
	}
	if err := s.expandRecurrences(ctx, now, &report); err != nil {
		return report, err
	}
	if report.Changed() || report.Failures > 0 {
		s.logger.Info("scheduler run",
			zap.Int("reminders_sent", report.RemindersSent),
			zap.Int("occurrences_spawned", report.OccurrencesSpawned),
			zap.Int("failures", report.Failures))
	}
	return report, nil
}

func (s *Scheduler) deliverReminders(ctx context.Context, now time.Time, report *Report) error {
	for _, due := range s.engine.PendingReminders(now) {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := due.Reminder
		delivered, err := s.ledger.ReminderDelivered(due.TaskID, r.ID)
		if err != nil {
			return fmt.Errorf("read ledger: %w", err)
		}
		if !delivered {
			n := Notification{
				TaskID:         due.TaskID,
				TaskTitle:      due.TaskTitle,
				ReminderID:     r.ID,
				Type:           r.Type,
				Message:        r.Message,
				RemindAt:       r.RemindAt,
				DueDate:        due.DueDate,
				AssignedUserID: due.AssignedUserID,
			}
			if err := s.notifier.Notify(ctx, n); err != nil {
				report.Failures++
				s.logger.Warn("reminder delivery failed",
					zap.String("task_id", due.TaskID),
					zap.String("reminder_id", r.ID),
					zap.Error(err))
				continue
			}
			if err := s.ledger.RecordReminder(due.TaskID, r.ID, now); err != nil {
				return fmt.Errorf("write ledger: %w", err)
			}
		}
		// a delivered but unmarked reminder is only marked, never re-sent
		if _, err := s.engine.MarkReminderSent(ctx, due.TaskID, r.ID, domain.SystemActor); err != nil {
			if domain.IsDomainError(err, domain.ErrCodeNotFound) {
				continue
			}
			return err
		}
		report.RemindersSent++
	}
	return nil
}

func (s *Scheduler) expandRecurrences(ctx context.Context, now time.Time, report *Report) error {
	for _, t := range s.engine.Tasks() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if t.Status != domain.StatusCompleted || t.Recurrence == nil || t.DueDate == nil {
			continue
		}
		series, occurrence := t.SeriesID, t.Occurrence
		if series == "" {
			series = t.ID
		}
		if occurrence == 0 {
			occurrence = 1
		}
		p := t.Recurrence
		if p.MaxOccurrences > 0 && occurrence >= p.MaxOccurrences {
			continue
		}
		spawned, err := s.ledger.OccurrenceSpawned(series, occurrence)
		if err != nil {
			return fmt.Errorf("read ledger: %w", err)
		}
		if spawned {
			continue
		}
		next, ok := NextOccurrence(p, *t.DueDate)
		if !ok {
			continue
		}
		created, err := s.engine.SpawnOccurrence(ctx, t.ID, next, domain.SystemActor)
		switch {
		case domain.IsDomainError(err, domain.ErrCodeInvariantViolation):
			// already spawned some other way; remember it and move on
			s.logger.Debug("occurrence skipped", zap.String("series_id", series), zap.Error(err))
			if err := s.ledger.RecordOccurrence(series, occurrence, "", now); err != nil {
				return fmt.Errorf("write ledger: %w", err)
			}
			continue
		case err != nil:
			report.Failures++
			s.logger.Warn("occurrence spawn failed", zap.String("task_id", t.ID), zap.Error(err))
			continue
		}
		if err := s.ledger.RecordOccurrence(series, occurrence, created.ID, now); err != nil {
			return fmt.Errorf("write ledger: %w", err)
		}
		report.OccurrencesSpawned++
	}
	return nil
}
