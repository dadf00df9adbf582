// Package task はタスク管理と並び順採番のドメインロジックを提供する。
package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jyllandteodosio/taskaru/internal/access"
	"github.com/jyllandteodosio/taskaru/internal/model"
	"github.com/jyllandteodosio/taskaru/internal/repository"
)

// Sanitizer は保存前のコンテンツ無害化インターフェース。
type Sanitizer interface {
	Sanitize(input string) string
}

// Service はタスク管理のサービス層。
// すべての操作はリストへのアクセス権を確認してからストレージに触れる。
// 期待されるアクセス拒否・未検出は (nil, nil) で返す。
type Service struct {
	taskRepo  repository.TaskRepository
	listRepo  repository.ListRepository
	sanitizer Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(taskRepo repository.TaskRepository, listRepo repository.ListRepository, sanitizer Sanitizer) *Service {
	return &Service{
		taskRepo:  taskRepo,
		listRepo:  listRepo,
		sanitizer: sanitizer,
	}
}

// checkListAccess はユーザーがリストに書き込めるかを確認する。
// アクセスできない場合はnilを返す。
func (s *Service) checkListAccess(ctx context.Context, listID, userID string) (*model.List, error) {
	list, err := s.listRepo.FindByIDForUser(ctx, listID, userID)
	if err != nil {
		return nil, fmt.Errorf("リストの取得に失敗しました: %w", err)
	}
	if list == nil || !access.CanWrite(userID, list) {
		return nil, nil
	}
	return list, nil
}

// GetTasksByList はリストのタスク一覧をposition昇順で返す。
// リストへのアクセス権がない場合はnilを返す。
func (s *Service) GetTasksByList(ctx context.Context, listID, userID string) ([]*model.Task, error) {
	list, err := s.checkListAccess(ctx, listID, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, nil
	}

	tasks, err := s.taskRepo.ListByListID(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}
	return tasks, nil
}

// GetTaskByID は指定リスト内のタスクを取得する。
// リストへのアクセス権がない、またはタスクが存在しない場合はnilを返す。
func (s *Service) GetTaskByID(ctx context.Context, taskID, listID, userID string) (*model.Task, error) {
	list, err := s.checkListAccess(ctx, listID, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, nil
	}

	task, err := s.taskRepo.FindByID(ctx, taskID, listID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	return task, nil
}

// AddTask はリストにタスクを追加する。positionはリスト内の既存最大値+1
//（空のリストでは0）がストレージ層でアトミックに採番される。
// タイトルが空の場合はバリデーションエラーを返す。
func (s *Service) AddTask(ctx context.Context, listID, userID, title, description string) (*model.Task, error) {
	list, err := s.checkListAccess(ctx, listID, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, nil
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, model.NewEmptyTitleError("タスクのタイトル")
	}

	now := time.Now()
	task := &model.Task{
		ID:          uuid.New().String(),
		ListID:      listID,
		Title:       title,
		Description: s.sanitizer.Sanitize(description),
		Completed:   false,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}

	slog.Info("task added",
		slog.String("task_id", task.ID),
		slog.String("list_id", listID),
		slog.String("user_id", userID),
		slog.Int("position", task.Position),
	)

	return task, nil
}

// UpdateTask はタスクのタイトル・説明・完了状態を部分更新する。
// nilフィールドは変更しない。更新フィールドがひとつもない場合は
// 現在のタスクをそのまま返す。positionはこの経路では変更できない。
func (s *Service) UpdateTask(ctx context.Context, taskID, listID, userID string, title, description *string, completed *bool) (*model.Task, error) {
	list, err := s.checkListAccess(ctx, listID, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, nil
	}

	patch := repository.TaskPatch{Completed: completed}

	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			return nil, model.NewEmptyTitleError("タスクのタイトル")
		}
		patch.Title = &trimmed
	}
	if description != nil {
		sanitized := s.sanitizer.Sanitize(*description)
		patch.Description = &sanitized
	}

	if patch.Title == nil && patch.Description == nil && patch.Completed == nil {
		return s.taskRepo.FindByID(ctx, taskID, listID)
	}

	task, err := s.taskRepo.Update(ctx, taskID, listID, patch)
	if err != nil {
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	if task == nil {
		return nil, nil
	}

	slog.Info("task updated",
		slog.String("task_id", taskID),
		slog.String("list_id", listID),
		slog.String("user_id", userID),
	)

	return task, nil
}

// DeleteTask はタスクを削除する。他タスクのpositionは変更されない。
// リストへのアクセス権がない、またはタスクが存在しない場合はnilを返す。
func (s *Service) DeleteTask(ctx context.Context, taskID, listID, userID string) (*model.Task, error) {
	list, err := s.checkListAccess(ctx, listID, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, nil
	}

	task, err := s.taskRepo.Delete(ctx, taskID, listID)
	if err != nil {
		return nil, fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	if task == nil {
		return nil, nil
	}

	slog.Info("task deleted",
		slog.String("task_id", taskID),
		slog.String("list_id", listID),
		slog.String("user_id", userID),
	)

	return task, nil
}
