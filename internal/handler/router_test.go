package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jyllandteodosio/taskaru/internal/middleware"
	"github.com/jyllandteodosio/taskaru/internal/model"
	"github.com/jyllandteodosio/taskaru/internal/realtime"
)

// mockSessionFinder はmiddleware.SessionFinderのモック実装。
type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

var _ middleware.SessionFinder = (*mockSessionFinder)(nil)

// mockHealthChecker はDB疎通確認のモック実装。
type mockHealthChecker struct {
	pingErr error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.pingErr
}

func newTestRouter(t *testing.T, deps *RouterDeps) http.Handler {
	t.Helper()
	if deps.SessionFinder == nil {
		deps.SessionFinder = &mockSessionFinder{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				if id == "valid-session" {
					return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
				}
				return nil, nil
			},
		}
	}
	if deps.RateLimiter == nil {
		deps.RateLimiter = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
		t.Cleanup(deps.RateLimiter.Stop)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.AuthService == nil {
		deps.AuthService = &mockAuthService{}
	}
	if deps.ListService == nil {
		deps.ListService = &mockListService{}
	}
	if deps.TaskService == nil {
		deps.TaskService = &mockTaskService{}
	}
	if deps.UserService == nil {
		deps.UserService = &mockUserService{}
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = &mockBroadcaster{}
	}
	return NewRouter(deps)
}

func TestRouter_Health_OK(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{HealthChecker: &mockHealthChecker{}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_Health_DBDown_ReturnsServiceUnavailable(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		HealthChecker: &mockHealthChecker{pingErr: errors.New("connection refused")},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /health status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestRouter_ProtectedRoute_WithoutSession_ReturnsUnauthorized(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/api/lists", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/lists status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRouter_ProtectedRoute_WithValidSession_ReturnsOK(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/api/lists", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("GET /api/lists status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_Mutation_WithoutCSRFToken_ReturnsForbidden(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodPost, "/api/lists", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("POST /api/lists without CSRF token status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRouter_CSRFTokenEndpoint_SetsCookie(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/csrf-token status = %d, want %d", w.Code, http.StatusOK)
	}
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "csrf_token" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected csrf_token cookie to be set")
	}
}

func TestRouter_SecurityHeaders_AppliedToAllResponses(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want %q", got, "DENY")
	}
}

func TestRouter_CORSPreflight_ReturnsNoContent(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{CORSAllowedOrigin: "http://localhost:3000"})

	req := httptest.NewRequest(http.MethodOptions, "/api/lists", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want allowed origin", got)
	}
}

func TestRouter_MetricsRoute_OnlyMountedWhenHandlerProvided(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("GET /metrics without handler status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRouter_UnknownRoute_ReturnsNotFound(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ミドルウェアチェーン越しにWebSocketハンドシェイクを完了し、
// joinList後のブロードキャストが接続へ届くことを実サーバーで確認する。
func TestRouter_WebSocket_JoinAndBroadcastRoundTrip(t *testing.T) {
	hub := realtime.NewHub(nil)
	checker := realtime.AccessCheckerFunc(func(ctx context.Context, listID, userID string) (bool, error) {
		return true, nil
	})
	wsHandler := realtime.NewHandler(hub, checker, realtime.ConnSettings{
		WriteTimeout:   time.Second,
		PongTimeout:    10 * time.Second,
		SendBufferSize: 8,
	}, nil)

	router := newTestRouter(t, &RouterDeps{WSHandler: wsHandler})
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("Cookie", "session_id=valid-session")

	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("Dial() error = %v (status %d)", err, status)
	}
	defer ws.Close()

	if err := ws.WriteJSON(map[string]string{"type": "joinList", "listId": "list-1"}); err != nil {
		t.Fatalf("WriteJSON(joinList) error = %v", err)
	}

	// 参加は読み取りループが非同期に処理する
	deadline := time.Now().Add(2 * time.Second)
	for hub.RoomSize("list-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("joinList was not processed in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	task := &model.Task{ID: "task-1", ListID: "list-1", Title: "Buy milk", CreatedBy: "user-2"}
	hub.Broadcast(realtime.NewTaskAddedEvent("user-2", task))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event realtime.Event
	if err := ws.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got, want := event.Type, realtime.EventTaskAdded; got != want {
		t.Errorf("event.Type = %q, want %q", got, want)
	}
	if got, want := event.ActingUserID, "user-2"; got != want {
		t.Errorf("event.ActingUserID = %q, want %q", got, want)
	}
	if event.Task == nil || event.Task.ID != "task-1" {
		t.Errorf("event.Task = %+v, want task-1", event.Task)
	}
}

func TestRouter_WebSocket_WithoutSession_RejectsHandshake(t *testing.T) {
	hub := realtime.NewHub(nil)
	checker := realtime.AccessCheckerFunc(func(ctx context.Context, listID, userID string) (bool, error) {
		return true, nil
	})
	wsHandler := realtime.NewHandler(hub, checker, realtime.ConnSettings{
		WriteTimeout:   time.Second,
		PongTimeout:    10 * time.Second,
		SendBufferSize: 8,
	}, nil)

	router := newTestRouter(t, &RouterDeps{WSHandler: wsHandler})
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		ws.Close()
		t.Fatal("Dial() succeeded without a session, want handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("handshake response = %+v, want status %d", resp, http.StatusUnauthorized)
	}
}
