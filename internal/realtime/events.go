// Package realtime はリスト単位のブロードキャストハブを提供する。
// 接続はlist idをキーにしたルームに参加し、タスク・コラボレーターの
// 変更イベントをルーム内の全接続に配信する。
package realtime

import (
	"time"

	"github.com/jyllandteodosio/taskaru/internal/model"
)

// イベント種別。変更成功後にHTTP層から発行される。
const (
	EventTaskAdded           = "taskAdded"
	EventTaskEdited          = "taskEdited"
	EventTaskDeleted         = "taskDeleted"
	EventCollaboratorAdded   = "addCollaborator"
	EventCollaboratorRemoved = "removeCollaborator"
)

// クライアント→サーバーのメッセージ種別。
const (
	MessageJoinList  = "joinList"
	MessageLeaveList = "leaveList"
)

// TaskPayload はイベントに含まれるタスク表現。
type TaskPayload struct {
	ID          string    `json:"id"`
	ListID      string    `json:"listId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedBy   string    `json:"createdBy"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Event はルームに配信されるイベント。対象リストのid、変更された
// エンティティ（削除の場合はidのみ）、操作したユーザーのidを含む。
// クライアントは再フェッチなしでローカル状態を更新できる。
type Event struct {
	Type           string       `json:"type"`
	ListID         string       `json:"listId"`
	ActingUserID   string       `json:"actingUserId"`
	Task           *TaskPayload `json:"task,omitempty"`
	TaskID         string       `json:"taskId,omitempty"`
	CollaboratorID string       `json:"collaboratorId,omitempty"`
	Collaborators  []string     `json:"collaborators,omitempty"`
}

// clientMessage はクライアントから受信するメッセージ。
type clientMessage struct {
	Type   string `json:"type"`
	ListID string `json:"listId"`
}

// NewTaskPayload はmodel.TaskからTaskPayloadを生成する。
func NewTaskPayload(task *model.Task) *TaskPayload {
	return &TaskPayload{
		ID:          task.ID,
		ListID:      task.ListID,
		Title:       task.Title,
		Description: task.Description,
		Completed:   task.Completed,
		CreatedBy:   task.CreatedBy,
		Position:    task.Position,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// NewTaskAddedEvent はタスク追加イベントを生成する。
func NewTaskAddedEvent(actingUserID string, task *model.Task) Event {
	return Event{
		Type:         EventTaskAdded,
		ListID:       task.ListID,
		ActingUserID: actingUserID,
		Task:         NewTaskPayload(task),
	}
}

// NewTaskEditedEvent はタスク更新イベントを生成する。
func NewTaskEditedEvent(actingUserID string, task *model.Task) Event {
	return Event{
		Type:         EventTaskEdited,
		ListID:       task.ListID,
		ActingUserID: actingUserID,
		Task:         NewTaskPayload(task),
	}
}

// NewTaskDeletedEvent はタスク削除イベントを生成する。削除済みの
// エンティティはidのみで通知する。
func NewTaskDeletedEvent(actingUserID string, task *model.Task) Event {
	return Event{
		Type:         EventTaskDeleted,
		ListID:       task.ListID,
		ActingUserID: actingUserID,
		TaskID:       task.ID,
	}
}

// NewCollaboratorAddedEvent はコラボレーター追加イベントを生成する。
func NewCollaboratorAddedEvent(actingUserID, collaboratorID string, list *model.List) Event {
	return Event{
		Type:           EventCollaboratorAdded,
		ListID:         list.ID,
		ActingUserID:   actingUserID,
		CollaboratorID: collaboratorID,
		Collaborators:  list.Collaborators,
	}
}

// NewCollaboratorRemovedEvent はコラボレーター削除イベントを生成する。
func NewCollaboratorRemovedEvent(actingUserID, collaboratorID string, list *model.List) Event {
	return Event{
		Type:           EventCollaboratorRemoved,
		ListID:         list.ID,
		ActingUserID:   actingUserID,
		CollaboratorID: collaboratorID,
		Collaborators:  list.Collaborators,
	}
}
