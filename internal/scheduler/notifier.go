package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"taskdesk/internal/config"
	"taskdesk/internal/domain"
)

const defaultWebhookTimeout = 5 * time.Second

// Notification is one reminder delivery.
type Notification struct {
	TaskID         string              `json:"taskId"`
	TaskTitle      string              `json:"taskTitle"`
	ReminderID     string              `json:"reminderId"`
	Type           domain.ReminderType `json:"type"`
	Message        string              `json:"message,omitempty"`
	RemindAt       time.Time           `json:"remindAt"`
	DueDate        *time.Time          `json:"dueDate,omitempty"`
	AssignedUserID string              `json:"assignedUserId,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log only.
type LogNotifier struct {
	Logger *zap.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("reminder due",
		zap.String("task_id", n.TaskID),
		zap.String("task_title", n.TaskTitle),
		zap.String("reminder_id", n.ReminderID),
		zap.String("type", string(n.Type)),
		zap.String("assigned_user_id", n.AssignedUserID),
		zap.Time("remind_at", n.RemindAt))
	return nil
}

// WebhookNotifier posts each notification as JSON to every configured hook.
type WebhookNotifier struct {
	Hooks  []config.Webhook
	Client *http.Client
}

func NewWebhookNotifier(hooks []config.Webhook) *WebhookNotifier {
	return &WebhookNotifier{Hooks: hooks, Client: &http.Client{Timeout: defaultWebhookTimeout}}
}

func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	var errs []error
	for _, hook := range w.Hooks {
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		if err := w.post(ctx, hook, n, data); err != nil {
			errs = append(errs, fmt.Errorf("deliver to %s: %w", hook.URL, err))
		}
	}
	return errors.Join(errs...)
}

func (w *WebhookNotifier) post(ctx context.Context, hook config.Webhook, n Notification, data []byte) error {
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	if hook.TimeoutSeconds > 0 {
		timeout := time.Duration(hook.TimeoutSeconds) * time.Second
		if timeout != client.Timeout {
			client = &http.Client{Timeout: timeout, Transport: client.Transport}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Taskdesk-Event", "reminder")
	req.Header.Set("X-Taskdesk-Delivery", n.ReminderID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Taskdesk-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Notifiers fans a notification out and fails if any member fails.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range ns {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
