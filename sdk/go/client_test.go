package taskdesksdk_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskdesk/internal/engine"
	"taskdesk/internal/server"
	taskdesksdk "taskdesk/sdk/go"
)

func newClient(t *testing.T) *taskdesksdk.Client {
	t.Helper()
	handler, err := server.New(server.Config{Engine: engine.New(nil, nil, nil)})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := taskdesksdk.New(srv.URL)
	c.HTTPClient = srv.Client()
	c.ActorID = "sdk-user"
	return c
}

func TestClientTaskLifecycle(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	task, err := c.CreateTask(ctx, taskdesksdk.TaskInput{Title: "Call Acme", Type: "call", Subtasks: []string{"Prep"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != "pending" || len(task.Subtasks) != 1 {
		t.Fatalf("created = %+v", task)
	}
	moved, err := c.MoveTask(ctx, task.ID, "in-progress")
	if err != nil || moved.Status != "in-progress" {
		t.Fatalf("move = %+v %v", moved, err)
	}
	list, err := c.ListTasks(ctx, taskdesksdk.TaskFilter{Status: []string{"in-progress"}})
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %+v %v", list, err)
	}
	if _, err := c.LogActivity(ctx, "call_logged", "Left voicemail", "task", task.ID); err != nil {
		t.Fatalf("log activity: %v", err)
	}
	acts, err := c.TaskActivities(ctx, task.ID)
	if err != nil || len(acts) < 3 || acts[0].UserID != "sdk-user" {
		t.Fatalf("activities = %+v %v", acts, err)
	}
	if err := c.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = c.Task(ctx, task.ID)
	var apiErr *taskdesksdk.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "not_found" {
		t.Fatalf("expected not_found, got %v", err)
	}
}
