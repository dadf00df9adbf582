// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/jyllandteodosio/taskaru/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// SearchByEmail はemailの部分一致（大文字小文字無視）でユーザーを検索する。
	// excludeUserIDが空でない場合はそのユーザーを結果から除外する。
	SearchByEmail(ctx context.Context, email, excludeUserID string) ([]*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// Update はユーザーのemailとnameを更新する。
	Update(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessionsはCASCADE削除される。
	// リストとタスクのcreated_by参照は残す（孤児参照は許容する）。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ListPatch はリスト更新の部分パッチ。nilフィールドは変更しない。
// オーナーとコラボレーター集合はこの経路では変更できない。
type ListPatch struct {
	Title       *string
	Description *string
}

// ListRepository はリストとコラボレーター集合の永続化インターフェース。
// アクセス制御のフィルタはクエリに組み込まれており、権限がない場合と
// 存在しない場合は区別せずnilを返す。
type ListRepository interface {
	// FindByIDForUser は指定ユーザーがコラボレーターであるリストを取得する。
	// 存在しない、またはアクセス権がない場合はnilを返す。
	FindByIDForUser(ctx context.Context, listID, userID string) (*model.List, error)

	// ListByCollaborator は指定ユーザーがアクセスできるリスト一覧を
	// 作成日時の降順で返す。
	ListByCollaborator(ctx context.Context, userID string) ([]*model.List, error)

	// Create はリストとオーナーのコラボレーター行を同一トランザクションで作成する。
	Create(ctx context.Context, list *model.List) error

	// Update はコラボレーターのみが実行できる条件付き更新を行う。
	// 更新後のリストを返す。権限がない場合はnilを返す。
	Update(ctx context.Context, listID, userID string, patch ListPatch) (*model.List, error)

	// Delete はオーナーのみが実行できる削除を行う。所属タスクは同一
	// トランザクションで削除される。削除したリストを返し、権限がない
	// 場合はnilを返す。
	Delete(ctx context.Context, listID, ownerID string) (*model.List, error)

	// AddCollaborator はコラボレーターを条件付きで追加する。単一の
	// 条件付きINSERTで、オーナー以外の呼び出しでは何も挿入されない。
	// 追加できた場合はtrueを返す（既に存在する場合はfalse）。
	AddCollaborator(ctx context.Context, listID, collaboratorID, ownerID string) (bool, error)

	// RemoveCollaborator はコラボレーターを条件付きで削除する。単一の
	// 条件付きDELETEで、オーナー以外の呼び出し、およびオーナー自身の
	// 削除では何も行われない。削除できた場合はtrueを返す。
	RemoveCollaborator(ctx context.Context, listID, collaboratorID, ownerID string) (bool, error)
}

// TaskPatch はタスク更新の部分パッチ。nilフィールドは変更しない。
type TaskPatch struct {
	Title       *string
	Description *string
	Completed   *bool
}

// TaskRepository はタスクデータの永続化インターフェース。
type TaskRepository interface {
	// FindByID は指定リスト内のタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, taskID, listID string) (*model.Task, error)

	// ListByListID はリストのタスク一覧をposition昇順で返す。
	ListByListID(ctx context.Context, listID string) ([]*model.Task, error)

	// Create はタスクを作成する。positionはリスト内の最大値+1（空なら0）を
	// リストごとのアドバイザリロック下で採番し、task.Positionに書き戻す。
	Create(ctx context.Context, task *model.Task) error

	// Update は指定リスト内のタスクを部分更新し、更新後のタスクを返す。
	// 見つからない場合はnilを返す。他タスクのpositionには影響しない。
	Update(ctx context.Context, taskID, listID string, patch TaskPatch) (*model.Task, error)

	// Delete は指定リスト内のタスクを削除し、削除したタスクを返す。
	// 見つからない場合はnilを返す。残りのタスクのpositionは振り直さない。
	Delete(ctx context.Context, taskID, listID string) (*model.Task, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
