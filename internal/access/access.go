// Package access はリストに対する認可判定の純粋関数を提供する。
// 副作用はなく、ストレージにも触れない。すべてのリスト・タスク操作は
// ストレージを変更する前にここの述語を通過しなければならない。
package access

import "github.com/jyllandteodosio/taskaru/internal/model"

// CanRead は指定ユーザーがリストを閲覧できるかを返す。
// コラボレーター集合に含まれていれば閲覧できる。
func CanRead(userID string, list *model.List) bool {
	if list == nil {
		return false
	}
	return list.HasCollaborator(userID)
}

// CanWrite は指定ユーザーがリストとそのタスクを変更できるかを返す。
// 読み取りと同一の条件（独立した書き込み権限の階層は存在しない）。
func CanWrite(userID string, list *model.List) bool {
	return CanRead(userID, list)
}

// CanDelete は指定ユーザーがリストを削除できるかを返す。オーナーのみ。
func CanDelete(userID string, list *model.List) bool {
	if list == nil {
		return false
	}
	return list.OwnerID == userID
}

// CanManageCollaborators は指定ユーザーがコラボレーター集合を変更できるかを返す。
// オーナーのみ。
func CanManageCollaborators(userID string, list *model.List) bool {
	return CanDelete(userID, list)
}
