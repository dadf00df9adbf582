// Package model はドメインモデルを定義する。
package model

import "time"

// List はユーザーが所有するタスクリストを表す。
// OwnerIDは作成後に変更されない。CollaboratorsにはOwnerIDが常に含まれる。
type List struct {
	ID            string
	Title         string
	Description   string
	OwnerID       string
	Collaborators []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasCollaborator は指定ユーザーがコラボレーターに含まれるかを返す。
func (l *List) HasCollaborator(userID string) bool {
	for _, id := range l.Collaborators {
		if id == userID {
			return true
		}
	}
	return false
}
