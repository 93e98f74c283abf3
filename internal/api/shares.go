package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/and161185/taskdeck/internal/errs"
	"github.com/and161185/taskdeck/internal/model"
)

// ListShares returns the share list of one task in server order. Shares are
// never cached across tasks; the backend owns their existence.
func (c *Client) ListShares(ctx context.Context, taskID string) ([]model.SharedUser, error) {
	var shares []model.SharedUser
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(taskID)+"/share", nil, nil, &shares)
	if err != nil {
		return nil, err
	}
	return shares, nil
}

// AddShare grants email the given role on a task. Duplicate-email policy is
// backend-owned; only syntactic validation happens here.
func (c *Client) AddShare(ctx context.Context, taskID, email string, role model.ShareRole) error {
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: malformed email %q", errs.ErrValidation, email)
	}
	if role != model.RoleViewer && role != model.RoleEditor {
		return fmt.Errorf("%w: unknown role %q", errs.ErrValidation, role)
	}
	body := map[string]any{"userEmail": email, "role": role}
	return c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(taskID)+"/share", nil, body, nil)
}

// RemoveShare revokes email's access to a task.
func (c *Client) RemoveShare(ctx context.Context, taskID, email string) error {
	path := "/api/tasks/" + url.PathEscape(taskID) + "/share?email=" + url.QueryEscape(email)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}
