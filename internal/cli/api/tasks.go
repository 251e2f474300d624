package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/argscan/argscan/internal/cli/client"
)

// Task states
const (
	TaskPending   = "PENDING"
	TaskRunning   = "RUNNING"
	TaskCompleted = "COMPLETED"
	TaskFailed    = "FAILED"
	TaskCancelled = "CANCELLED"
)

// Task is an analysis run over an uploaded file
type Task struct {
	TaskID       int64  `json:"taskId"`
	UserID       int64  `json:"userId"`
	FileID       int64  `json:"fileId"`
	FileName     string `json:"fileName,omitempty"`
	TaskName     string `json:"taskName"`
	IsArg        int    `json:"isArg"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	CreatedAt    string `json:"createdAt,omitempty"`
	CompletedAt  string `json:"completedAt,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// CreateTaskRequest starts an analysis. Params are passed to the analysis
// tool as-is.
type CreateTaskRequest struct {
	FileID   int64          `json:"fileId"`
	TaskName string         `json:"taskName,omitempty"`
	Type     string         `json:"analysisType,omitempty"`
	Params   map[string]any `json:"parameters,omitempty"`
}

// TaskStatus is the progress of a task
type TaskStatus struct {
	TaskID       int64  `json:"taskId"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	StartedAt    string `json:"startedAt,omitempty"`
	CompletedAt  string `json:"completedAt,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Done reports whether the task reached a final state
func (s TaskStatus) Done() bool {
	switch s.Status {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// Prophage is a detected region
type Prophage struct {
	Name       string `json:"name"`
	Start      int64  `json:"start"`
	End        int64  `json:"end"`
	Confidence int    `json:"confidence"`
	Type       string `json:"type"`
}

// TaskResult summarizes a finished task
type TaskResult struct {
	TaskID        int64      `json:"taskId"`
	FileName      string     `json:"fileName"`
	Status        string     `json:"status"`
	Duration      string     `json:"duration"`
	GenomeLength  int64      `json:"genomeLength"`
	ProphageCount int        `json:"prophageCount"`
	Prophages     []Prophage `json:"prophages"`
}

// CreateTask starts an analysis
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	var task Task
	if err := c.caller.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/analysis/create",
		Body:   req,
	}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// TaskStatus returns the progress of a task
func (c *Client) TaskStatus(ctx context.Context, id int64) (*TaskStatus, error) {
	var status TaskStatus
	if err := c.caller.Do(ctx, client.Request{Path: fmt.Sprintf("/analysis/%d/status", id)}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// TaskResult returns the summary of a task
func (c *Client) TaskResult(ctx context.Context, id int64) (*TaskResult, error) {
	var result TaskResult
	if err := c.caller.Do(ctx, client.Request{Path: fmt.Sprintf("/analysis/%d/result", id)}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListTasks returns the caller's tasks, optionally filtered by keyword
func (c *Client) ListTasks(ctx context.Context, keyword string) ([]Task, error) {
	req := client.Request{Path: "/analysis/list"}
	if keyword != "" {
		req.Query = url.Values{"keyword": {keyword}}
	}

	var tasks []Task
	err := c.caller.Do(ctx, req, &tasks)
	return tasks, err
}

// CancelTask stops a pending or running task
func (c *Client) CancelTask(ctx context.Context, id int64) error {
	return c.caller.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/analysis/%d/cancel", id),
	}, nil)
}

// DeleteTask removes a task
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.caller.Do(ctx, client.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/analysis/%d", id),
	}, nil)
}
