package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/and161185/taskdeck/internal/model"
)

// taskWire is the raw backend task shape. Some deployments nest the owner
// instead of sending flat ownerId/ownerEmail; normalization happens here, in
// one place, so consuming code sees a single canonical Task.
type taskWire struct {
	model.Task
	Owner *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"owner,omitempty"`
}

func (w *taskWire) normalize() model.Task {
	t := w.Task
	if w.Owner != nil {
		if t.OwnerID == "" {
			t.OwnerID = w.Owner.ID
		}
		if t.OwnerEmail == "" {
			t.OwnerEmail = w.Owner.Email
		}
	}
	return t
}

// ListTasks returns the current user's visible tasks in server-defined order.
func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	var wire []taskWire
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, nil, &wire); err != nil {
		return nil, err
	}
	tasks := make([]model.Task, len(wire))
	for i := range wire {
		tasks[i] = wire[i].normalize()
	}
	return tasks, nil
}

// CreateTask creates a task; the server assigns id, timestamps and version.
func (c *Client) CreateTask(ctx context.Context, p model.CreateTask) (model.Task, error) {
	body := map[string]any{
		"title":     p.Title,
		"priority":  p.Priority,
		"category":  p.Category,
		"completed": p.Completed,
	}
	if p.Description != "" {
		body["description"] = p.Description
	}
	if due, ok := NormalizeDueDate(p.DueDate); ok {
		body["dueDate"] = due
	}
	if p.Tags != nil {
		body["tags"] = p.Tags
	}
	if p.Metadata != nil {
		body["metadata"] = p.Metadata
	}
	var wire taskWire
	if err := c.do(ctx, http.MethodPost, "/api/tasks", nil, body, &wire); err != nil {
		return model.Task{}, err
	}
	return wire.normalize(), nil
}

// PatchTask applies a partial update with expectedVersion as the If-Match
// precondition. A stale version surfaces as errs.ErrVersionConflict; the caller
// must refetch and retry or surface the conflict.
func (c *Client) PatchTask(ctx context.Context, id string, expectedVersion int64, p model.TaskPatch) (model.Task, error) {
	body := map[string]any{}
	if p.Title != nil {
		body["title"] = *p.Title
	}
	if p.Description != nil {
		body["description"] = *p.Description
	}
	if p.Priority != nil {
		body["priority"] = *p.Priority
	}
	if p.Category != nil {
		body["category"] = *p.Category
	}
	if p.Completed != nil {
		body["completed"] = *p.Completed
	}
	if p.Tags != nil {
		body["tags"] = *p.Tags
	}
	if p.Metadata != nil {
		body["metadata"] = *p.Metadata
	}
	if p.DueDate != nil {
		// Key present on the wire either way: a non-normalizable value clears
		// the due date with an explicit null.
		if due, ok := NormalizeDueDate(*p.DueDate); ok {
			body["dueDate"] = due
		} else {
			body["dueDate"] = nil
		}
	}

	hdr := http.Header{"If-Match": []string{strconv.FormatInt(expectedVersion, 10)}}
	var wire taskWire
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), hdr, body, &wire); err != nil {
		return model.Task{}, err
	}
	return wire.normalize(), nil
}

// DeleteTask deletes a task; the backend answers 204.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil, nil)
}
