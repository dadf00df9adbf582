package realtime

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jyllandteodosio/taskaru/internal/middleware"
)

// Handler はWebSocket接続の受け入れを行う。
// セッションミドルウェアを通過した認証済みリクエストのみを
// アップグレードする。接続後のルーム参加はConnが検証する。
type Handler struct {
	hub      *Hub
	checker  AccessChecker
	settings ConnSettings
	upgrader websocket.Upgrader
}

// NewHandler はHandlerを生成する。allowedOriginsはOriginヘッダーの
// 許可リストで、クロスサイトからのWebSocketハイジャックを防ぐ。
func NewHandler(hub *Hub, checker AccessChecker, settings ConnSettings, allowedOrigins []string) *Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}
	return &Handler{
		hub:      hub,
		checker:  checker,
		settings: settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// ServeHTTP はHTTP接続をWebSocketにアップグレードし、
// 読み書きループを開始する。
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeはエラー時に自身でレスポンスを書いている。
		slog.Warn("WebSocketアップグレードに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	conn := NewConn(uuid.NewString(), userID, ws, h.hub, h.checker, h.settings)
	h.hub.Register(conn)
	conn.Run(r.Context())
}
