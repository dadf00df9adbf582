// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jyllandteodosio/taskaru/internal/middleware"
	"github.com/jyllandteodosio/taskaru/internal/model"
	"github.com/jyllandteodosio/taskaru/internal/realtime"
)

// ListServiceInterface はリストハンドラーが必要とするサービスインターフェース。
type ListServiceInterface interface {
	GetListsByUser(ctx context.Context, userID string) ([]*model.List, error)
	GetListByID(ctx context.Context, listID, userID string) (*model.List, error)
	AddList(ctx context.Context, ownerID, title, description string) (*model.List, error)
	UpdateList(ctx context.Context, listID, userID string, title, description *string) (*model.List, error)
	DeleteList(ctx context.Context, listID, ownerID string) (*model.List, error)
	AddCollaborator(ctx context.Context, listID, collaboratorID, ownerID string) (*model.List, error)
	RemoveCollaborator(ctx context.Context, listID, collaboratorID, ownerID string) (*model.List, error)
}

// Broadcaster は変更イベントの配信インターフェース。
// realtime.Hubの部分集合として定義する。
type Broadcaster interface {
	Broadcast(event realtime.Event)
	JoinUser(userID, listID string)
	LeaveUser(userID, listID string)
}

// ListHandler はリスト管理のHTTPハンドラー。
// 変更操作の成功後、対象リストのルームへイベントをブロードキャストする。
type ListHandler struct {
	service     ListServiceInterface
	broadcaster Broadcaster
}

// NewListHandler はListHandlerを生成する。
func NewListHandler(service ListServiceInterface, broadcaster Broadcaster) *ListHandler {
	return &ListHandler{
		service:     service,
		broadcaster: broadcaster,
	}
}

// createListRequest はリスト作成リクエストのボディ。
type createListRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// updateListRequest はリスト更新リクエストのボディ。nilフィールドは変更しない。
type updateListRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// listResponse はリスト情報のAPIレスポンス。
type listResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	OwnerID       string    `json:"ownerId"`
	Collaborators []string  `json:"collaborators"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ListLists はログインユーザーがアクセスできるリスト一覧を返す。
// GET /api/lists
func (h *ListHandler) ListLists(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	lists, err := h.service.GetListsByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]listResponse, 0, len(lists))
	for _, list := range lists {
		resp = append(resp, toListResponse(list))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CreateList はリストを作成する。作成者がオーナー兼唯一のコラボレーターとなる。
// POST /api/lists
func (h *ListHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	list, err := h.service.AddList(r.Context(), userID, req.Title, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toListResponse(list))
}

// GetList はリスト詳細を取得する。
// アクセス権がない場合も404を返し、リストの存在を漏らさない。
// GET /api/lists/{listId}
func (h *ListHandler) GetList(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	listID := chi.URLParam(r, "listId")

	list, err := h.service.GetListByID(r.Context(), listID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if list == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewListNotFoundError(listID))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toListResponse(list))
}

// UpdateList はリストのタイトルと説明を更新する。
// PUT /api/lists/{listId}
func (h *ListHandler) UpdateList(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	listID := chi.URLParam(r, "listId")

	var req updateListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	list, err := h.service.UpdateList(r.Context(), listID, userID, req.Title, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if list == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewListNotFoundError(listID))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toListResponse(list))
}

// DeleteList はリストと所属タスクを削除する。オーナーのみが実行できる。
// DELETE /api/lists/{listId}
func (h *ListHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	listID := chi.URLParam(r, "listId")

	list, err := h.service.DeleteList(r.Context(), listID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if list == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewListNotFoundError(listID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddCollaborator はリストにコラボレーターを追加する。オーナーのみが実行できる。
// 追加成功後、対象ユーザーの接続をルームに参加させてからイベントを配信する。
// POST /api/lists/{listId}/share/{collaboratorId}
func (h *ListHandler) AddCollaborator(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	listID := chi.URLParam(r, "listId")
	collaboratorID := chi.URLParam(r, "collaboratorId")

	list, err := h.service.AddCollaborator(r.Context(), listID, collaboratorID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if list == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewListNotFoundError(listID))
		return
	}

	// 追加されたユーザーが自分でjoinListを送る前にイベントを受け取れるよう、
	// 先にルームへ参加させる。
	h.broadcaster.JoinUser(collaboratorID, listID)
	h.broadcaster.Broadcast(realtime.NewCollaboratorAddedEvent(userID, collaboratorID, list))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toListResponse(list))
}

// RemoveCollaborator はリストからコラボレーターを削除する。オーナーのみが実行できる。
// 削除イベントを配信してから、対象ユーザーの接続をルームから退出させる。
// DELETE /api/lists/{listId}/share/{collaboratorId}
func (h *ListHandler) RemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	listID := chi.URLParam(r, "listId")
	collaboratorID := chi.URLParam(r, "collaboratorId")

	list, err := h.service.RemoveCollaborator(r.Context(), listID, collaboratorID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if list == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewListNotFoundError(listID))
		return
	}

	// 削除されたユーザー本人にも削除イベントが届くよう、配信後に退出させる。
	h.broadcaster.Broadcast(realtime.NewCollaboratorRemovedEvent(userID, collaboratorID, list))
	h.broadcaster.LeaveUser(collaboratorID, listID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toListResponse(list))
}

// --- ヘルパー関数 ---

// toListResponse はmodel.ListからAPIレスポンスに変換する。
func toListResponse(list *model.List) listResponse {
	collaborators := list.Collaborators
	if collaborators == nil {
		collaborators = []string{}
	}
	return listResponse{
		ID:            list.ID,
		Title:         list.Title,
		Description:   list.Description,
		OwnerID:       list.OwnerID,
		Collaborators: collaborators,
		CreatedAt:     list.CreatedAt,
		UpdatedAt:     list.UpdatedAt,
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeListNotFound, model.ErrCodeTaskNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmptyTitle, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeAlreadyShared, model.ErrCodeCannotRemoveOwner:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
