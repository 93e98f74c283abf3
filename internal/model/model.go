// Package model defines domain entities shared by the gateways, store and session.
package model

import (
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Priority of a task.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Category of a task.
type Category string

const (
	CategoryWork     Category = "Work"
	CategoryPersonal Category = "Personal"
)

// ShareRole is the access level granted to a collaborator.
type ShareRole string

const (
	RoleViewer ShareRole = "viewer"
	RoleEditor ShareRole = "editor"
)

// Task is a single task as served by the backend. Version is the optimistic
// concurrency token; nil means the task cannot be safely mutated.
type Task struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Completed   bool           `json:"completed"`
	Priority    Priority       `json:"priority"`
	Category    Category       `json:"category"`
	DueDate     *time.Time     `json:"dueDate,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Version     *int64         `json:"version,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	OwnerID     string         `json:"ownerId,omitempty"`
	OwnerEmail  string         `json:"ownerEmail,omitempty"`
}

// OwnedBy reports whether u created the task, by backend id or email
// (case-insensitive). Display affordance only: the backend enforces
// authorization on every endpoint regardless.
func (t *Task) OwnedBy(u *User) bool {
	if u == nil {
		return false
	}
	if t.OwnerID != "" && strings.EqualFold(t.OwnerID, u.ID.String()) {
		return true
	}
	return t.OwnerEmail != "" && u.Email != "" && strings.EqualFold(t.OwnerEmail, u.Email)
}

// CreateTask is the client change intent for a new task. DueDate holds raw user
// input and is normalized by the gateway before transmission.
type CreateTask struct {
	Title       string
	Description string
	Priority    Priority
	Category    Category
	DueDate     string
	Completed   bool
	Tags        []string
	Metadata    map[string]any
}

// TaskPatch is a partial change intent; nil fields are not transmitted.
// A non-nil DueDate pointing at a non-normalizable string clears the due date.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *Priority
	Category    *Category
	DueDate     *string
	Completed   *bool
	Tags        *[]string
	Metadata    *map[string]any
}

// SharedUser is one collaborator on a task's share list, keyed by email.
type SharedUser struct {
	Email string    `json:"email"`
	Role  ShareRole `json:"role"`
}

// User is the authenticated identity: backend durable id merged with
// third-party profile fields.
type User struct {
	ID          uuid.UUID
	Email       string
	Name        string
	AvatarURL   string
	ProviderUID string
}

// TaskFilters selects a subset of the store's tasks. Nil/zero criteria mean
// "any"; all active criteria combine with logical AND.
type TaskFilters struct {
	Search    string
	Category  *Category
	Priority  *Priority
	Completed *bool
}

// Matches reports whether the task passes every active criterion.
func (f TaskFilters) Matches(t *Task) bool {
	if f.Search != "" {
		s := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), s) &&
			!strings.Contains(strings.ToLower(t.Description), s) {
			return false
		}
	}
	if f.Category != nil && t.Category != *f.Category {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	return true
}
