package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jyllandteodosio/taskaru/internal/middleware"
	"github.com/jyllandteodosio/taskaru/internal/model"
	"github.com/jyllandteodosio/taskaru/internal/realtime"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	GetTasksByList(ctx context.Context, listID, userID string) ([]*model.Task, error)
	GetTaskByID(ctx context.Context, taskID, listID, userID string) (*model.Task, error)
	AddTask(ctx context.Context, listID, userID, title, description string) (*model.Task, error)
	UpdateTask(ctx context.Context, taskID, listID, userID string, title, description *string, completed *bool) (*model.Task, error)
	DeleteTask(ctx context.Context, taskID, listID, userID string) (*model.Task, error)
}

// TaskHandler はタスク管理のHTTPハンドラー。
// 変更操作の成功後、所属リストのルームへイベントをブロードキャストする。
type TaskHandler struct {
	service     TaskServiceInterface
	broadcaster Broadcaster
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface, broadcaster Broadcaster) *TaskHandler {
	return &TaskHandler{
		service:     service,
		broadcaster: broadcaster,
	}
}

// createTaskRequest はタスク作成リクエストのボディ。
type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// updateTaskRequest はタスク更新リクエストのボディ。nilフィールドは変更しない。
type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// taskResponse はタスク情報のAPIレスポンス。
type taskResponse struct {
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

// ListTasks はリスト内のタスク一覧をposition昇順で返す。
// GET /api/lists/{listId}/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	listID := chi.URLParam(r, "listId")

	tasks, err := h.service.GetTasksByList(r.Context(), listID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if tasks == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewListNotFoundError(listID))
		return
	}

	resp := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp = append(resp, toTaskResponse(task))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CreateTask はタスクを作成する。positionはリスト末尾に採番される。
// POST /api/lists/{listId}/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	listID := chi.URLParam(r, "listId")

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	task, err := h.service.AddTask(r.Context(), listID, userID, req.Title, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if task == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewListNotFoundError(listID))
		return
	}

	h.broadcaster.Broadcast(realtime.NewTaskAddedEvent(userID, task))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toTaskResponse(task))
}

// GetTask はタスク詳細を取得する。
// GET /api/lists/{listId}/tasks/{taskId}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	listID := chi.URLParam(r, "listId")
	taskID := chi.URLParam(r, "taskId")

	task, err := h.service.GetTaskByID(r.Context(), taskID, listID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if task == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewTaskNotFoundError(taskID))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTaskResponse(task))
}

// UpdateTask はタスクを部分更新する。
// PUT /api/lists/{listId}/tasks/{taskId}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	listID := chi.URLParam(r, "listId")
	taskID := chi.URLParam(r, "taskId")

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	task, err := h.service.UpdateTask(r.Context(), taskID, listID, userID, req.Title, req.Description, req.Completed)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if task == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewTaskNotFoundError(taskID))
		return
	}

	h.broadcaster.Broadcast(realtime.NewTaskEditedEvent(userID, task))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTaskResponse(task))
}

// DeleteTask はタスクを削除する。残りのタスクのpositionは振り直さない。
// DELETE /api/lists/{listId}/tasks/{taskId}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	listID := chi.URLParam(r, "listId")
	taskID := chi.URLParam(r, "taskId")

	task, err := h.service.DeleteTask(r.Context(), taskID, listID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if task == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewTaskNotFoundError(taskID))
		return
	}

	h.broadcaster.Broadcast(realtime.NewTaskDeletedEvent(userID, task))

	w.WriteHeader(http.StatusNoContent)
}

// toTaskResponse はmodel.TaskからAPIレスポンスに変換する。
func toTaskResponse(task *model.Task) taskResponse {
	return taskResponse{
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
