package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/and161185/taskdeck/internal/errs"
	"github.com/and161185/taskdeck/internal/model"
)

type patchRet struct {
	task model.Task
	err  error
}

type fakeGateway struct {
	mu        sync.Mutex
	list      []model.Task
	listErr   error
	listGate  chan struct{} // when set, ListTasks blocks until closed
	listCalls int

	created   model.Task
	createErr error

	patchRets []patchRet
	patchIDs  []string
	patchVers []int64
	patches   []model.TaskPatch

	deleteErr   error
	deleteCalls int
}

var _ Gateway = (*fakeGateway)(nil)

func (f *fakeGateway) ListTasks(context.Context) ([]model.Task, error) {
	f.mu.Lock()
	gate := f.listGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Task(nil), f.list...), nil
}

func (f *fakeGateway) CreateTask(context.Context, model.CreateTask) (model.Task, error) {
	return f.created, f.createErr
}

func (f *fakeGateway) PatchTask(_ context.Context, id string, expectedVersion int64, p model.TaskPatch) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patchIDs = append(f.patchIDs, id)
	f.patchVers = append(f.patchVers, expectedVersion)
	f.patches = append(f.patches, p)
	if len(f.patchRets) == 0 {
		return model.Task{}, errors.New("unexpected patch")
	}
	r := f.patchRets[0]
	f.patchRets = f.patchRets[1:]
	return r.task, r.err
}

func (f *fakeGateway) DeleteTask(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.deleteErr
}

func (f *fakeGateway) setList(tasks ...model.Task) {
	f.mu.Lock()
	f.list = append([]model.Task(nil), tasks...)
	f.mu.Unlock()
}

func (f *fakeGateway) gateList() chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.listGate = ch
	f.mu.Unlock()
	return ch
}

func ver(n int64) *int64 { return &n }

func task(id, title string, v *int64, completed bool) model.Task {
	return model.Task{
		ID: id, Title: title, Version: v, Completed: completed,
		Priority: model.PriorityMedium, Category: model.CategoryWork,
	}
}

func loadedStore(t *testing.T, gw *fakeGateway) *Store {
	t.Helper()
	s := New(gw, nil)
	s.LoadAll(context.Background())
	return s
}

func TestFilter_IdentityAndCompleted(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	gw.setList(
		task("a", "write report", ver(1), false),
		task("b", "buy milk", ver(1), true),
		task("c", "call mom", ver(1), false),
	)
	s := loadedStore(t, gw)

	all := s.Filter(model.TaskFilters{})
	if len(all) != 3 {
		t.Fatalf("identity filter: got %d tasks", len(all))
	}

	open := false
	got := s.Filter(model.TaskFilters{Completed: &open})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("completed=false filter: %+v", got)
	}
}

func TestFilter_CriteriaCombineWithAND(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	work := model.Task{ID: "a", Title: "Quarterly Report", Description: "numbers", Priority: model.PriorityHigh, Category: model.CategoryWork, Version: ver(1)}
	personal := model.Task{ID: "b", Title: "report broken sink", Priority: model.PriorityHigh, Category: model.CategoryPersonal, Version: ver(1)}
	gw.setList(work, personal)
	s := loadedStore(t, gw)

	// Case-insensitive substring against title or description.
	if got := s.Filter(model.TaskFilters{Search: "REPORT"}); len(got) != 2 {
		t.Fatalf("search: %+v", got)
	}
	if got := s.Filter(model.TaskFilters{Search: "numbers"}); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("description search: %+v", got)
	}

	cat := model.CategoryWork
	if got := s.Filter(model.TaskFilters{Search: "report", Category: &cat}); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("AND combination: %+v", got)
	}
}

func TestIsOverdue(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	s := New(gw, nil)
	now := time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	overdue := model.Task{ID: "a", DueDate: &past}
	if !s.IsOverdue(&overdue) {
		t.Fatal("past due, not completed: want overdue")
	}
	overdue.Completed = true
	if s.IsOverdue(&overdue) {
		t.Fatal("completed task is never overdue")
	}
	upcoming := model.Task{ID: "b", DueDate: &future}
	if s.IsOverdue(&upcoming) {
		t.Fatal("future due date is not overdue")
	}
	undated := model.Task{ID: "c"}
	if s.IsOverdue(&undated) {
		t.Fatal("no due date is never overdue")
	}
}

func TestToggleComplete_ClearsOverdueImmediately(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	past := time.Now().Add(-time.Hour)
	before := model.Task{ID: "a", Title: "late", DueDate: &past, Version: ver(3)}
	after := before
	after.Completed = true
	after.Version = ver(4)
	gw.setList(before)
	gw.patchRets = []patchRet{{task: after}}
	s := loadedStore(t, gw)

	if got, _ := s.Get("a"); !s.IsOverdue(&got) {
		t.Fatal("precondition: task overdue")
	}
	if err := s.ToggleComplete(context.Background(), "a"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	got, _ := s.Get("a")
	if s.IsOverdue(&got) {
		t.Fatal("overdue must clear the moment completed flips, no stale cache")
	}
	if got.Version == nil || *got.Version != 4 {
		t.Fatalf("cache must hold the server representation, got %+v", got)
	}
	if gw.patchVers[0] != 3 {
		t.Fatalf("patch precondition = %d, want cached version 3", gw.patchVers[0])
	}
	if gw.patches[0].Completed == nil || !*gw.patches[0].Completed {
		t.Fatalf("patch payload: %+v", gw.patches[0])
	}
	s.Wait()
}

func TestUpdate_NoVersionIsSilentNoOp(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	gw.setList(task("a", "unversioned", nil, false))
	s := loadedStore(t, gw)

	title := "renamed"
	if err := s.Update(context.Background(), "a", model.TaskPatch{Title: &title}); err != nil {
		t.Fatalf("want silent no-op, got %v", err)
	}
	if err := s.Update(context.Background(), "missing", model.TaskPatch{Title: &title}); err != nil {
		t.Fatalf("unknown id: want silent no-op, got %v", err)
	}
	if len(gw.patchIDs) != 0 {
		t.Fatal("no network call may happen without a version token")
	}
	if got, _ := s.Get("a"); got.Title != "unversioned" {
		t.Fatalf("store changed: %+v", got)
	}
}

func TestUpdate_ErrorPropagates(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	gw.setList(task("a", "x", ver(3), false))
	gw.patchRets = []patchRet{{err: &errs.APIError{Method: "PATCH", Path: "/api/tasks/a", Status: 409}}}
	s := loadedStore(t, gw)

	title := "y"
	err := s.Update(context.Background(), "a", model.TaskPatch{Title: &title})
	if !errors.Is(err, errs.ErrVersionConflict) {
		t.Fatalf("want conflict to propagate, got %v", err)
	}
	if got, _ := s.Get("a"); got.Title != "x" {
		t.Fatalf("failed mutation must not touch the cache: %+v", got)
	}
}

func TestAdd_FrontInsertionBeforeRefresh(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	gw.setList(task("a", "old", ver(1), false), task("b", "older", ver(1), false))
	s := loadedStore(t, gw)

	created := task("new", "Buy milk", ver(1), false)
	gw.created = created
	gate := gw.gateList()

	got, err := s.Add(context.Background(), model.CreateTask{
		Title: "Buy milk", Priority: model.PriorityMedium, Category: model.CategoryPersonal,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got.ID != "new" {
		t.Fatalf("returned task: %+v", got)
	}

	// Background refresh is still gated: the optimistic state must already show
	// the new task at the front.
	tasks := s.Tasks()
	if len(tasks) != 3 || tasks[0].ID != "new" {
		t.Fatalf("want new task unshifted to front, got %+v", tasks)
	}

	gw.setList(task("a", "old", ver(1), false), task("b", "older", ver(1), false), created)
	close(gate)
	s.Wait()
	if tasks := s.Tasks(); len(tasks) != 3 {
		t.Fatalf("after reconcile: %+v", tasks)
	}
}

func TestDelete_RemovedBeforeRefreshCompletes(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	gw.setList(task("a", "x", ver(1), false), task("b", "y", ver(1), false))
	s := loadedStore(t, gw)

	gate := gw.gateList()
	if err := s.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("deleted task still cached before refresh completed")
	}
	gw.setList(task("b", "y", ver(1), false))
	close(gate)
	s.Wait()
}

func TestDelete_AlreadyGoneIsSuccess(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	gw.setList(task("b", "y", ver(1), false))
	s := loadedStore(t, gw)
	gw.deleteErr = &errs.APIError{Method: "DELETE", Path: "/api/tasks/a", Status: 404}

	if err := s.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("already-deleted must count as success, got %v", err)
	}
	s.Wait()
}

func TestRefresh_LastOneWinsByVersion(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	gw.setList(task("a", "local-newer", ver(5), false))
	s := loadedStore(t, gw)

	// A stale refetch (version 4) must not regress the newer cached write.
	gw.setList(task("a", "stale", ver(4), false), task("b", "appeared", ver(1), false))
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	a, _ := s.Get("a")
	if a.Title != "local-newer" || *a.Version != 5 {
		t.Fatalf("stale refetch regressed the cache: %+v", a)
	}
	if _, ok := s.Get("b"); !ok {
		t.Fatal("new server task missing after refresh")
	}

	// A genuinely newer representation replaces the cached one.
	gw.setList(task("a", "server-newer", ver(6), false))
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if a, _ := s.Get("a"); a.Title != "server-newer" {
		t.Fatalf("newer refetch not applied: %+v", a)
	}
}

func TestUpdateWithRetry_RefetchesFreshVersion(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	gw.setList(task("a", "x", ver(3), false))
	s := loadedStore(t, gw)

	// Server is already at 5: first patch conflicts, refetch learns version 5,
	// second patch succeeds.
	gw.setList(task("a", "x", ver(5), false))
	gw.patchRets = []patchRet{
		{err: &errs.APIError{Method: "PATCH", Path: "/api/tasks/a", Status: 409}},
		{task: task("a", "y", ver(6), false)},
	}

	title := "y"
	if err := s.UpdateWithRetry(context.Background(), "a", model.TaskPatch{Title: &title}, 2); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(gw.patchVers) != 2 || gw.patchVers[0] != 3 || gw.patchVers[1] != 5 {
		t.Fatalf("patch preconditions = %v, want [3 5]", gw.patchVers)
	}
	s.Wait()
	if a, _ := s.Get("a"); a.Title != "y" || *a.Version != 6 {
		t.Fatalf("final state: %+v", a)
	}
}

func TestLoadAll_ErrorIsSwallowed(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{listErr: errors.New("backend down")}
	s := New(gw, nil)

	s.LoadAll(context.Background())

	if s.Loading() {
		t.Fatal("loading flag must settle even on failure")
	}
	if len(s.Tasks()) != 0 {
		t.Fatal("failed load must leave the store empty")
	}
}
