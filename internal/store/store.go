// Package store is the single authoritative in-memory cache of the current
// user's tasks, with optimistic local mutation and background reconciliation.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/and161185/taskdeck/internal/errs"
	"github.com/and161185/taskdeck/internal/model"
)

// Gateway is the remote task API the store orchestrates.
type Gateway interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, p model.CreateTask) (model.Task, error)
	PatchTask(ctx context.Context, id string, expectedVersion int64, p model.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

const refreshTimeout = 30 * time.Second

// Store owns the task collection for one authenticated session. Mutation
// errors propagate to the caller; background refresh failures are logged only.
type Store struct {
	gw  Gateway
	log *zap.Logger
	now func() time.Time

	mu      sync.Mutex
	tasks   []model.Task
	loading bool

	refreshes sync.WaitGroup
}

// New constructs a Store. A nil logger disables logging.
func New(gw Gateway, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{gw: gw, log: log, now: time.Now}
}

// Loading reports whether the initial load has not yet settled.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Tasks returns a snapshot of the cached collection.
func (s *Store) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Task(nil), s.tasks...)
}

// Get returns the cached task by id.
func (s *Store) Get(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return s.tasks[i], true
		}
	}
	return model.Task{}, false
}

// LoadAll fetches the full list on initial mount. Errors are logged, not
// surfaced: the store simply stays empty until the next refresh.
func (s *Store) LoadAll(ctx context.Context) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	list, err := s.gw.ListTasks(ctx)
	if err != nil {
		s.log.Error("load tasks failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.tasks = list
	s.mu.Unlock()
}

// Refresh refetches the full list and merges it into the cache. The merge is
// last-one-wins by version: a refetched task never replaces a cached entry
// whose version is newer, so a slow refetch cannot regress an optimistic write.
func (s *Store) Refresh(ctx context.Context) error {
	list, err := s.gw.ListTasks(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cached := make(map[string]model.Task, len(s.tasks))
	for i := range s.tasks {
		cached[s.tasks[i].ID] = s.tasks[i]
	}
	for i := range list {
		if cur, ok := cached[list[i].ID]; ok && newerVersion(cur.Version, list[i].Version) {
			list[i] = cur
		}
	}
	s.tasks = list
	return nil
}

func newerVersion(cur, incoming *int64) bool {
	return cur != nil && (incoming == nil || *cur > *incoming)
}

// backgroundRefresh reconciles server-derived fields after a mutation.
// Fire-and-forget: failures are logged only.
func (s *Store) backgroundRefresh() {
	s.refreshes.Add(1)
	go func() {
		defer s.refreshes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			s.log.Error("refresh tasks failed", zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight background refreshes settle. Used at teardown.
func (s *Store) Wait() { s.refreshes.Wait() }

// Add creates a task and unshifts the server's representation onto the front
// of the collection, then reconciles in the background.
func (s *Store) Add(ctx context.Context, data model.CreateTask) (model.Task, error) {
	created, err := s.gw.CreateTask(ctx, data)
	if err != nil {
		return model.Task{}, err
	}
	s.mu.Lock()
	s.tasks = append([]model.Task{created}, s.tasks...)
	s.mu.Unlock()
	s.backgroundRefresh()
	return created, nil
}

// Update patches a task using its cached version as precondition. Unknown id
// or a task without a version is a silent no-op: without a concurrency token
// there is no safe patch to send.
func (s *Store) Update(ctx context.Context, id string, patch model.TaskPatch) error {
	cur, ok := s.Get(id)
	if !ok || cur.Version == nil {
		return nil
	}
	saved, err := s.gw.PatchTask(ctx, id, *cur.Version, patch)
	if err != nil {
		return err
	}
	s.replace(id, saved)
	s.backgroundRefresh()
	return nil
}

// ToggleComplete flips the completed flag with the same version guard and
// replace-on-success pattern as Update.
func (s *Store) ToggleComplete(ctx context.Context, id string) error {
	cur, ok := s.Get(id)
	if !ok || cur.Version == nil {
		return nil
	}
	completed := !cur.Completed
	saved, err := s.gw.PatchTask(ctx, id, *cur.Version, model.TaskPatch{Completed: &completed})
	if err != nil {
		return err
	}
	s.replace(id, saved)
	s.backgroundRefresh()
	return nil
}

// Delete removes a task remotely and drops it from the cache immediately. An
// already-deleted task counts as success.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.gw.DeleteTask(ctx, id); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	s.mu.Lock()
	kept := s.tasks[:0]
	for i := range s.tasks {
		if s.tasks[i].ID != id {
			kept = append(kept, s.tasks[i])
		}
	}
	s.tasks = kept
	s.mu.Unlock()
	s.backgroundRefresh()
	return nil
}

// UpdateWithRetry runs Update, and on a version conflict refetches the list
// and retries with the fresh version, up to maxRetries additional attempts.
func (s *Store) UpdateWithRetry(ctx context.Context, id string, patch model.TaskPatch, maxRetries uint64) error {
	b := retry.WithMaxRetries(maxRetries, retry.NewConstant(100*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := s.Update(ctx, id, patch)
		if errors.Is(err, errs.ErrVersionConflict) {
			if rerr := s.Refresh(ctx); rerr != nil {
				return rerr
			}
			return retry.RetryableError(err)
		}
		return err
	})
}

// Filter returns the tasks matching all active criteria. Pure and derived:
// nothing is cached.
func (s *Store) Filter(f model.TaskFilters) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Task
	for i := range s.tasks {
		if f.Matches(&s.tasks[i]) {
			out = append(out, s.tasks[i])
		}
	}
	return out
}

// IsOverdue reports whether the task's due date is strictly in the past and
// the task is not completed. Evaluated against the wall clock at call time.
func (s *Store) IsOverdue(t *model.Task) bool {
	return t.DueDate != nil && !t.Completed && t.DueDate.Before(s.now())
}

func (s *Store) replace(id string, saved model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i] = saved
			return
		}
	}
}
