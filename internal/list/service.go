// Package list はリスト管理とコラボレーター集合管理のドメインロジックを提供する。
package list

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

// Service はリスト管理のサービス層。
// 期待されるアクセス拒否・未検出は (nil, nil) で返し、エラーにはしない。
// 拒否と未検出は外部から区別できない（存在漏洩の防止）。
type Service struct {
	listRepo  repository.ListRepository
	sanitizer Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(listRepo repository.ListRepository, sanitizer Sanitizer) *Service {
	return &Service{
		listRepo:  listRepo,
		sanitizer: sanitizer,
	}
}

// GetListsByUser はユーザーがアクセスできるリスト一覧を返す。
func (s *Service) GetListsByUser(ctx context.Context, userID string) ([]*model.List, error) {
	lists, err := s.listRepo.ListByCollaborator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("リスト一覧の取得に失敗しました: %w", err)
	}
	return lists, nil
}

// GetListByID は指定リストを取得する。アクセス権がない場合はnilを返す。
func (s *Service) GetListByID(ctx context.Context, listID, userID string) (*model.List, error) {
	list, err := s.listRepo.FindByIDForUser(ctx, listID, userID)
	if err != nil {
		return nil, fmt.Errorf("リストの取得に失敗しました: %w", err)
	}
	if list == nil || !access.CanRead(userID, list) {
		return nil, nil
	}
	return list, nil
}

// AddList は新しいリストを作成する。作成者がオーナーかつ唯一の
// コラボレーターになる。タイトルが空の場合はバリデーションエラーを返す。
func (s *Service) AddList(ctx context.Context, ownerID, title, description string) (*model.List, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, model.NewEmptyTitleError("リストのタイトル")
	}

	now := time.Now()
	list := &model.List{
		ID:          uuid.New().String(),
		Title:       title,
		Description: s.sanitizer.Sanitize(description),
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.listRepo.Create(ctx, list); err != nil {
		return nil, fmt.Errorf("リストの作成に失敗しました: %w", err)
	}

	slog.Info("list created",
		slog.String("list_id", list.ID),
		slog.String("owner_id", ownerID),
	)

	return list, nil
}

// UpdateList はリストのタイトル・説明を更新する。コラボレーターであれば
// 実行できる。アクセス権がない場合はnilを返す。
// オーナーとコラボレーター集合はこの経路では変更できない。
func (s *Service) UpdateList(ctx context.Context, listID, userID string, title, description *string) (*model.List, error) {
	patch := repository.ListPatch{}

	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			return nil, model.NewEmptyTitleError("リストのタイトル")
		}
		patch.Title = &trimmed
	}
	if description != nil {
		sanitized := s.sanitizer.Sanitize(*description)
		patch.Description = &sanitized
	}

	list, err := s.listRepo.Update(ctx, listID, userID, patch)
	if err != nil {
		return nil, fmt.Errorf("リストの更新に失敗しました: %w", err)
	}
	if list == nil {
		return nil, nil
	}

	slog.Info("list updated",
		slog.String("list_id", listID),
		slog.String("user_id", userID),
	)

	return list, nil
}

// DeleteList はリストを削除する。オーナーのみが実行できる。
// 所属タスクも同時に削除される。アクセス権がない場合はnilを返す。
func (s *Service) DeleteList(ctx context.Context, listID, ownerID string) (*model.List, error) {
	list, err := s.listRepo.Delete(ctx, listID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("リストの削除に失敗しました: %w", err)
	}
	if list == nil {
		return nil, nil
	}

	slog.Info("list deleted",
		slog.String("list_id", listID),
		slog.String("owner_id", ownerID),
	)

	return list, nil
}

// AddCollaborator はリストにコラボレーターを追加する。オーナーのみが
// 実行でき、追加はストレージ層の単一の条件付きINSERTで冪等に行われる。
// 既に追加済みの場合はALREADY_SHAREDエラーを返す。
// リストが存在しない、または呼び出し元がオーナーでない場合はnilを返す。
func (s *Service) AddCollaborator(ctx context.Context, listID, collaboratorID, ownerID string) (*model.List, error) {
	list, err := s.listRepo.FindByIDForUser(ctx, listID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("リストの取得に失敗しました: %w", err)
	}
	if list == nil || !access.CanManageCollaborators(ownerID, list) {
		return nil, nil
	}

	added, err := s.listRepo.AddCollaborator(ctx, listID, collaboratorID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("コラボレーターの追加に失敗しました: %w", err)
	}
	if !added {
		// 条件付きINSERTが何も挿入しなかった。オーナー確認は済んでいる
		// ため、残る原因は追加済みのみ（並行呼び出しもここに収束する）
		return nil, model.NewAlreadySharedError()
	}

	slog.Info("collaborator added",
		slog.String("list_id", listID),
		slog.String("collaborator_id", collaboratorID),
		slog.String("owner_id", ownerID),
	)

	return s.listRepo.FindByIDForUser(ctx, listID, ownerID)
}

// RemoveCollaborator はリストからコラボレーターを削除する。オーナーのみが
// 実行でき、オーナー自身をこの経路で削除することはできない。
// 対象が既にコラボレーターでない場合は現在のリストを返す（冪等）。
// リストが存在しない、または呼び出し元がオーナーでない場合はnilを返す。
func (s *Service) RemoveCollaborator(ctx context.Context, listID, collaboratorID, ownerID string) (*model.List, error) {
	if collaboratorID == ownerID {
		return nil, model.NewCannotRemoveOwnerError()
	}

	list, err := s.listRepo.FindByIDForUser(ctx, listID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("リストの取得に失敗しました: %w", err)
	}
	if list == nil || !access.CanManageCollaborators(ownerID, list) {
		return nil, nil
	}

	removed, err := s.listRepo.RemoveCollaborator(ctx, listID, collaboratorID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("コラボレーターの削除に失敗しました: %w", err)
	}

	if removed {
		slog.Info("collaborator removed",
			slog.String("list_id", listID),
			slog.String("collaborator_id", collaboratorID),
			slog.String("owner_id", ownerID),
		)
	}

	return s.listRepo.FindByIDForUser(ctx, listID, ownerID)
}
