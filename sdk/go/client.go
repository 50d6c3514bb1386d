package taskdesksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Taskdesk HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	// ActorID and ActorName are sent as X-Actor-* headers when no bearer
	// token is set.
	ActorID    string
	ActorName  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// Task represents the API task model (partial).
type Task struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Description      string            `json:"description,omitempty"`
	Type             string            `json:"type"`
	Status           string            `json:"status"`
	Priority         string            `json:"priority"`
	Tags             []string          `json:"tags"`
	DueDate          *time.Time        `json:"dueDate,omitempty"`
	CompletedDate    *time.Time        `json:"completedDate,omitempty"`
	AssignedUserID   string            `json:"assignedUserId,omitempty"`
	AssignedUserName string            `json:"assignedUserName,omitempty"`
	Dependencies     []string          `json:"dependencies"`
	Subtasks         []Subtask         `json:"subtasks"`
	CustomFields     map[string]string `json:"customFields"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

type Subtask struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// TaskInput is the create payload. Empty fields take server defaults.
type TaskInput struct {
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Type           string     `json:"type,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	AssignedUserID string     `json:"assignedUserId,omitempty"`
	Dependencies   []string   `json:"dependencies,omitempty"`
	Subtasks       []string   `json:"subtasks,omitempty"`
}

// TaskFilter maps to the list query parameters.
type TaskFilter struct {
	Status   []string
	Priority []string
	Assignee []string
	Tags     []string
	Search   string
	Overdue  *bool
	Sort     []string
}

func (f TaskFilter) values() url.Values {
	v := url.Values{}
	set := func(key string, items []string) {
		if len(items) > 0 {
			v.Set(key, strings.Join(items, ","))
		}
	}
	set("status", f.Status)
	set("priority", f.Priority)
	set("assignee", f.Assignee)
	set("tags", f.Tags)
	set("sort", f.Sort)
	if f.Search != "" {
		v.Set("q", f.Search)
	}
	if f.Overdue != nil {
		v.Set("overdue", fmt.Sprint(*f.Overdue))
	}
	return v
}

// Activity represents an audit entry.
type Activity struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	UserID     string         `json:"userId"`
	UserName   string         `json:"userName,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// BoardColumn is one status column.
type BoardColumn struct {
	Status string `json:"status"`
	Tasks  []Task `json:"tasks"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, in TaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", in, &resp)
	return resp, err
}

// Task fetches one task.
func (c *Client) Task(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListTasks returns the tasks matching f.
func (c *Client) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	var resp struct {
		Items []Task `json:"items"`
	}
	endpoint := "tasks"
	if q := f.values().Encode(); q != "" {
		endpoint += "?" + q
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// UpdateTask sends a partial update; keys absent from fields are untouched.
func (c *Client) UpdateTask(ctx context.Context, id string, fields map[string]any) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, "tasks/"+url.PathEscape(id), fields, &resp)
	return resp, err
}

// MoveTask changes the task's status.
func (c *Client) MoveTask(ctx context.Context, id, status string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(id)+"/move", map[string]string{"status": status}, &resp)
	return resp, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "tasks/"+url.PathEscape(id), nil, nil)
}

// Board returns the kanban columns.
func (c *Client) Board(ctx context.Context) ([]BoardColumn, error) {
	var resp struct {
		Columns []BoardColumn `json:"columns"`
	}
	err := c.do(ctx, http.MethodGet, "board", nil, &resp)
	return resp.Columns, err
}

// CreateTaskFromTemplate instantiates a template with optional overrides.
func (c *Client) CreateTaskFromTemplate(ctx context.Context, templateID string, overrides map[string]any) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "templates/"+url.PathEscape(templateID)+"/tasks", overrides, &resp)
	return resp, err
}

// LogActivity records a manual activity such as call_logged.
func (c *Client) LogActivity(ctx context.Context, activityType, title, entityType, entityID string) (Activity, error) {
	body := map[string]any{
		"type":       activityType,
		"title":      title,
		"entityType": entityType,
		"entityId":   entityID,
	}
	var resp Activity
	err := c.do(ctx, http.MethodPost, "activities", body, &resp)
	return resp, err
}

// TaskActivities returns the history of one task.
func (c *Client) TaskActivities(ctx context.Context, taskID string) ([]Activity, error) {
	var resp struct {
		Items []Activity `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(taskID)+"/activities", nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var reader io.Reader = http.NoBody
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		reader = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
		if c.ActorName != "" {
			req.Header.Set("X-Actor-Name", c.ActorName)
		}
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code, apiErr.Message = envelope.Error.Code, envelope.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
