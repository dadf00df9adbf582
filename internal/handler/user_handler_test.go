package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jyllandteodosio/taskaru/internal/model"
)

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	searchByEmailFn func(ctx context.Context, query, searcherID string) ([]*model.User, error)
	updateProfileFn func(ctx context.Context, userID, name string) (*model.User, error)
	withdrawFn      func(ctx context.Context, userID string) error
}

func (m *mockUserService) SearchByEmail(ctx context.Context, query, searcherID string) ([]*model.User, error) {
	if m.searchByEmailFn != nil {
		return m.searchByEmailFn(ctx, query, searcherID)
	}
	return []*model.User{}, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID, name string) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, name)
	}
	return nil, nil
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

var _ UserServiceInterface = (*mockUserService)(nil)

// --- GET /api/users/search テスト ---

func TestUserHandler_Search_PassesQueryAndSearcher(t *testing.T) {
	svc := &mockUserService{
		searchByEmailFn: func(ctx context.Context, query, searcherID string) ([]*model.User, error) {
			if query != "hanako" {
				t.Errorf("query = %q, want %q", query, "hanako")
			}
			if searcherID != "user-1" {
				t.Errorf("searcherID = %q, want %q", searcherID, "user-1")
			}
			return []*model.User{{ID: "user-2", Email: "hanako@example.com", Name: "花子"}}, nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/users/search?email=hanako", nil)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.Search(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp []userResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != "user-2" {
		t.Errorf("resp = %v, want the matched user", resp)
	}
}

func TestUserHandler_Search_NoMatch_ReturnsEmptyArray(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/search?email=nobody", nil)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.Search(w, req)

	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

func TestUserHandler_Search_NoSession_ReturnsUnauthorized(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/search?email=x", nil)
	w := httptest.NewRecorder()

	h.Search(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// --- PUT /api/users/me テスト ---

func TestUserHandler_UpdateMe_Success(t *testing.T) {
	svc := &mockUserService{
		updateProfileFn: func(ctx context.Context, userID, name string) (*model.User, error) {
			return &model.User{ID: userID, Email: "taro@example.com", Name: name}, nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/users/me", bytes.NewBufferString(`{"name": "新しい名前"}`))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UpdateMe(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp userResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Name != "新しい名前" {
		t.Errorf("name = %q, want updated name", resp.Name)
	}
}

func TestUserHandler_UpdateMe_EmptyName_ReturnsBadRequest(t *testing.T) {
	svc := &mockUserService{
		updateProfileFn: func(ctx context.Context, userID, name string) (*model.User, error) {
			return nil, model.NewInvalidRequestError("名前を入力してください")
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/users/me", bytes.NewBufferString(`{"name": " "}`))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UpdateMe(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- DELETE /api/users/me テスト ---

func TestUserHandler_Withdraw_ClearsSessionCookie(t *testing.T) {
	var withdrawn string
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			withdrawn = userID
			return nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", nil)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.Withdraw(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if withdrawn != "user-1" {
		t.Errorf("withdrawn user = %q, want %q", withdrawn, "user-1")
	}

	cleared := findCookie(w.Result().Cookies(), "session_id")
	if cleared == nil || cleared.MaxAge != -1 {
		t.Error("session cookie should be cleared")
	}
}

func TestUserHandler_Withdraw_UnknownUser_ReturnsNotFound(t *testing.T) {
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			return model.NewUserNotFoundError()
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", nil)
	req = withUserID(req, "ghost")
	w := httptest.NewRecorder()

	h.Withdraw(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
