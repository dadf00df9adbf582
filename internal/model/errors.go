// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, list, task, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeListNotFound      = "LIST_NOT_FOUND"
	ErrCodeTaskNotFound      = "TASK_NOT_FOUND"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeEmptyTitle        = "EMPTY_TITLE"
	ErrCodeAlreadyShared     = "ALREADY_SHARED"
	ErrCodeCannotRemoveOwner = "CANNOT_REMOVE_OWNER"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewListNotFoundError はリスト未検出エラーを生成する。
// アクセス権がない場合も同じエラーを返し、リストの存在を外部に漏らさない。
func NewListNotFoundError(listID string) *APIError {
	return &APIError{
		Code:     ErrCodeListNotFound,
		Message:  fmt.Sprintf("指定されたリストが見つかりません: %s", listID),
		Category: "list",
		Action:   "リストIDを確認してください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
// アクセス権がない場合も同じエラーを返す。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: "task",
		Action:   "タスクIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewEmptyTitleError はタイトルが空の場合のバリデーションエラーを生成する。
func NewEmptyTitleError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeEmptyTitle,
		Message:  fmt.Sprintf("%s は必須です。", field),
		Category: "validation",
		Action:   "空でないタイトルを入力してください。",
	}
}

// NewAlreadySharedError は既にコラボレーターとして追加済みの場合のエラーを生成する。
func NewAlreadySharedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyShared,
		Message:  "このユーザーは既にリストに共有されています。",
		Category: "list",
		Action:   "コラボレーター一覧を確認してください。",
	}
}

// NewCannotRemoveOwnerError はオーナー自身を削除しようとした場合のエラーを生成する。
func NewCannotRemoveOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeCannotRemoveOwner,
		Message:  "オーナーをコラボレーターから削除することはできません。",
		Category: "list",
		Action:   "リストごと削除する場合はリストの削除を実行してください。",
	}
}

// NewInvalidRequestError はリクエスト形式の不備エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("不正なリクエストです: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}
