// Package model はドメインモデルを定義する。
package model

import "time"

// Task はリストに属するタスクを表す。
// ListIDは作成後に変更されない。Positionはリスト内の並び順を表す
// ソートキーで、作成時に採番され、削除時に振り直されることはない。
type Task struct {
	ID          string
	ListID      string
	Title       string
	Description string
	Completed   bool
	CreatedBy   string
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
