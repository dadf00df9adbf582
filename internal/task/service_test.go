package task

import (
	"context"
	"errors"
	"testing"

	"github.com/jyllandteodosio/taskaru/internal/model"
	"github.com/jyllandteodosio/taskaru/internal/repository"
)

// --- モック定義 ---

type mockTaskRepo struct {
	findByIDFn     func(ctx context.Context, taskID, listID string) (*model.Task, error)
	listByListIDFn func(ctx context.Context, listID string) ([]*model.Task, error)
	createFn       func(ctx context.Context, task *model.Task) error
	updateFn       func(ctx context.Context, taskID, listID string, patch repository.TaskPatch) (*model.Task, error)
	deleteFn       func(ctx context.Context, taskID, listID string) (*model.Task, error)
}

func (m *mockTaskRepo) FindByID(ctx context.Context, taskID, listID string) (*model.Task, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, taskID, listID)
	}
	return nil, nil
}

func (m *mockTaskRepo) ListByListID(ctx context.Context, listID string) ([]*model.Task, error) {
	if m.listByListIDFn != nil {
		return m.listByListIDFn(ctx, listID)
	}
	return nil, nil
}

func (m *mockTaskRepo) Create(ctx context.Context, task *model.Task) error {
	if m.createFn != nil {
		return m.createFn(ctx, task)
	}
	return nil
}

func (m *mockTaskRepo) Update(ctx context.Context, taskID, listID string, patch repository.TaskPatch) (*model.Task, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, taskID, listID, patch)
	}
	return nil, nil
}

func (m *mockTaskRepo) Delete(ctx context.Context, taskID, listID string) (*model.Task, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, taskID, listID)
	}
	return nil, nil
}

var _ repository.TaskRepository = (*mockTaskRepo)(nil)

// accessibleListRepo は任意のユーザーにコラボレーターとしてリストを返す。
type accessibleListRepo struct{ mockListRepoBase }

func (r *accessibleListRepo) FindByIDForUser(ctx context.Context, listID, userID string) (*model.List, error) {
	return &model.List{ID: listID, OwnerID: "owner-1", Collaborators: []string{"owner-1", userID}}, nil
}

// deniedListRepo はすべてのアクセスを拒否する。
type deniedListRepo struct{ mockListRepoBase }

// mockListRepoBase はListRepositoryの未使用メソッドを埋める。
type mockListRepoBase struct{}

func (mockListRepoBase) FindByIDForUser(ctx context.Context, listID, userID string) (*model.List, error) {
	return nil, nil
}
func (mockListRepoBase) ListByCollaborator(ctx context.Context, userID string) ([]*model.List, error) {
	return nil, nil
}
func (mockListRepoBase) Create(ctx context.Context, list *model.List) error { return nil }
func (mockListRepoBase) Update(ctx context.Context, listID, userID string, patch repository.ListPatch) (*model.List, error) {
	return nil, nil
}
func (mockListRepoBase) Delete(ctx context.Context, listID, ownerID string) (*model.List, error) {
	return nil, nil
}
func (mockListRepoBase) AddCollaborator(ctx context.Context, listID, collaboratorID, ownerID string) (bool, error) {
	return false, nil
}
func (mockListRepoBase) RemoveCollaborator(ctx context.Context, listID, collaboratorID, ownerID string) (bool, error) {
	return false, nil
}

var _ repository.ListRepository = (*accessibleListRepo)(nil)
var _ repository.ListRepository = (*deniedListRepo)(nil)

type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(input string) string { return input }

// --- テスト ---

func TestGetTasksByList_NoAccess_ReturnsNil(t *testing.T) {
	svc := NewService(&mockTaskRepo{}, &deniedListRepo{}, passthroughSanitizer{})

	tasks, err := svc.GetTasksByList(context.Background(), "list-1", "stranger")
	if err != nil {
		t.Fatalf("GetTasksByList() error = %v", err)
	}
	if tasks != nil {
		t.Error("expected nil for inaccessible list")
	}
}

func TestGetTasksByList_EmptyList_ReturnsEmptySlice(t *testing.T) {
	repo := &mockTaskRepo{
		listByListIDFn: func(ctx context.Context, listID string) ([]*model.Task, error) {
			return nil, nil
		},
	}
	svc := NewService(repo, &accessibleListRepo{}, passthroughSanitizer{})

	tasks, err := svc.GetTasksByList(context.Background(), "list-1", "user-1")
	if err != nil {
		t.Fatalf("GetTasksByList() error = %v", err)
	}
	if tasks == nil {
		t.Fatal("accessible empty list should yield an empty slice, not nil")
	}
	if len(tasks) != 0 {
		t.Errorf("len(tasks) = %d, want 0", len(tasks))
	}
}

func TestAddTask_AssignsFieldsAndTrimsTitle(t *testing.T) {
	repo := &mockTaskRepo{
		createFn: func(ctx context.Context, task *model.Task) error {
			// ストレージ層の採番を模倣する
			task.Position = 3
			return nil
		},
	}
	svc := NewService(repo, &accessibleListRepo{}, passthroughSanitizer{})

	task, err := svc.AddTask(context.Background(), "list-1", "user-1", "  牛乳を買う  ", "2本")
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if task.Title != "牛乳を買う" {
		t.Errorf("title = %q, want trimmed title", task.Title)
	}
	if task.Position != 3 {
		t.Errorf("position = %d, want the storage-assigned value", task.Position)
	}
	if task.Completed {
		t.Error("new task should start incomplete")
	}
	if task.CreatedBy != "user-1" {
		t.Errorf("createdBy = %q, want %q", task.CreatedBy, "user-1")
	}
}

func TestAddTask_EmptyTitle_ReturnsValidationError(t *testing.T) {
	svc := NewService(&mockTaskRepo{}, &accessibleListRepo{}, passthroughSanitizer{})

	_, err := svc.AddTask(context.Background(), "list-1", "user-1", "   ", "")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEmptyTitle {
		t.Errorf("error = %v, want %s", err, model.ErrCodeEmptyTitle)
	}
}

func TestAddTask_NoAccess_ReturnsNilWithoutCreating(t *testing.T) {
	created := false
	repo := &mockTaskRepo{
		createFn: func(ctx context.Context, task *model.Task) error {
			created = true
			return nil
		},
	}
	svc := NewService(repo, &deniedListRepo{}, passthroughSanitizer{})

	task, err := svc.AddTask(context.Background(), "list-1", "stranger", "侵入", "")
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if task != nil {
		t.Error("expected nil for inaccessible list")
	}
	if created {
		t.Error("repository should not be touched without list access")
	}
}

func TestUpdateTask_EmptyPatch_ReturnsCurrentTask(t *testing.T) {
	updated := false
	current := &model.Task{ID: "task-1", ListID: "list-1", Title: "そのまま"}
	repo := &mockTaskRepo{
		findByIDFn: func(ctx context.Context, taskID, listID string) (*model.Task, error) {
			return current, nil
		},
		updateFn: func(ctx context.Context, taskID, listID string, patch repository.TaskPatch) (*model.Task, error) {
			updated = true
			return nil, nil
		},
	}
	svc := NewService(repo, &accessibleListRepo{}, passthroughSanitizer{})

	task, err := svc.UpdateTask(context.Background(), "task-1", "list-1", "user-1", nil, nil, nil)
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if task != current {
		t.Error("empty patch should return the task unchanged")
	}
	if updated {
		t.Error("empty patch should not reach the repository Update")
	}
}

func TestUpdateTask_CompletedOnly_PatchesCompleted(t *testing.T) {
	var gotPatch repository.TaskPatch
	repo := &mockTaskRepo{
		updateFn: func(ctx context.Context, taskID, listID string, patch repository.TaskPatch) (*model.Task, error) {
			gotPatch = patch
			return &model.Task{ID: taskID, ListID: listID, Completed: true}, nil
		},
	}
	svc := NewService(repo, &accessibleListRepo{}, passthroughSanitizer{})

	done := true
	task, err := svc.UpdateTask(context.Background(), "task-1", "list-1", "user-1", nil, nil, &done)
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if task == nil || !task.Completed {
		t.Error("expected completed task back")
	}
	if gotPatch.Completed == nil || !*gotPatch.Completed {
		t.Error("patch should carry completed=true")
	}
	if gotPatch.Title != nil || gotPatch.Description != nil {
		t.Error("title/description should stay nil when not provided")
	}
}

func TestUpdateTask_EmptyTitle_ReturnsValidationError(t *testing.T) {
	svc := NewService(&mockTaskRepo{}, &accessibleListRepo{}, passthroughSanitizer{})

	empty := " "
	_, err := svc.UpdateTask(context.Background(), "task-1", "list-1", "user-1", &empty, nil, nil)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEmptyTitle {
		t.Errorf("error = %v, want %s", err, model.ErrCodeEmptyTitle)
	}
}

func TestUpdateTask_NotFound_ReturnsNil(t *testing.T) {
	repo := &mockTaskRepo{
		updateFn: func(ctx context.Context, taskID, listID string, patch repository.TaskPatch) (*model.Task, error) {
			return nil, nil
		},
	}
	svc := NewService(repo, &accessibleListRepo{}, passthroughSanitizer{})

	title := "消えたタスク"
	task, err := svc.UpdateTask(context.Background(), "task-x", "list-1", "user-1", &title, nil, nil)
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if task != nil {
		t.Error("expected nil for missing task")
	}
}

func TestDeleteTask_ReturnsDeletedTask(t *testing.T) {
	repo := &mockTaskRepo{
		deleteFn: func(ctx context.Context, taskID, listID string) (*model.Task, error) {
			return &model.Task{ID: taskID, ListID: listID, Position: 2}, nil
		},
	}
	svc := NewService(repo, &accessibleListRepo{}, passthroughSanitizer{})

	task, err := svc.DeleteTask(context.Background(), "task-1", "list-1", "user-1")
	if err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if task == nil || task.ID != "task-1" {
		t.Errorf("task = %+v, want deleted task back", task)
	}
}

func TestDeleteTask_NoAccess_ReturnsNil(t *testing.T) {
	svc := NewService(&mockTaskRepo{}, &deniedListRepo{}, passthroughSanitizer{})

	task, err := svc.DeleteTask(context.Background(), "task-1", "list-1", "stranger")
	if err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if task != nil {
		t.Error("expected nil for inaccessible list")
	}
}
