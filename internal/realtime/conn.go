package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// AccessChecker はユーザーがリストのルームに参加できるか判定する。
type AccessChecker interface {
	CanJoin(ctx context.Context, listID, userID string) (bool, error)
}

// AccessCheckerFunc は関数をAccessCheckerとして使うためのアダプタ。
type AccessCheckerFunc func(ctx context.Context, listID, userID string) (bool, error)

func (f AccessCheckerFunc) CanJoin(ctx context.Context, listID, userID string) (bool, error) {
	return f(ctx, listID, userID)
}

// ConnSettings は接続のタイムアウトとバッファの設定。
type ConnSettings struct {
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	SendBufferSize int
}

// Conn はハブに登録された1本のWebSocket接続。
// roomIDsはハブのロック配下でのみ読み書きされる。
type Conn struct {
	id      string
	userID  string
	ws      *websocket.Conn
	send    chan []byte
	roomIDs map[string]struct{}

	hub      *Hub
	checker  AccessChecker
	settings ConnSettings
}

// NewConn はConnを生成する。Register後にRunで読み書きループを開始する。
func NewConn(id, userID string, ws *websocket.Conn, hub *Hub, checker AccessChecker, settings ConnSettings) *Conn {
	return &Conn{
		id:       id,
		userID:   userID,
		ws:       ws,
		send:     make(chan []byte, settings.SendBufferSize),
		roomIDs:  make(map[string]struct{}),
		hub:      hub,
		checker:  checker,
		settings: settings,
	}
}

// UserID は接続しているユーザーのidを返す。
func (c *Conn) UserID() string {
	return c.userID
}

// Run は読み書きループを開始し、読みループの終了までブロックする。
// 終了時にハブから接続を解除し、ソケットを閉じる。
func (c *Conn) Run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)

	c.hub.Unregister(c)
	c.ws.Close()
}

// readPump はクライアントからのメッセージを処理する。
// joinListはアクセス検証を通ったルームにのみ参加させる。
// 未知のメッセージ種別は無視する。
func (c *Conn) readPump(ctx context.Context) {
	c.ws.SetReadDeadline(time.Now().Add(c.settings.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.settings.PongTimeout))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("WebSocket読み取りエラー",
					slog.String("conn_id", c.id),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("不正なWebSocketメッセージを受信しました",
				slog.String("conn_id", c.id),
				slog.String("error", err.Error()),
			)
			continue
		}

		switch msg.Type {
		case MessageJoinList:
			c.handleJoin(ctx, msg.ListID)
		case MessageLeaveList:
			if msg.ListID != "" {
				c.hub.Leave(c, msg.ListID)
			}
		default:
			slog.Warn("未知のWebSocketメッセージ種別です",
				slog.String("conn_id", c.id),
				slog.String("message_type", msg.Type),
			)
		}
	}
}

// handleJoin はアクセス検証の上でルームに参加させる。
// 閲覧権限のないリストへのjoinListは黙って無視する。
func (c *Conn) handleJoin(ctx context.Context, listID string) {
	if listID == "" {
		return
	}
	allowed, err := c.checker.CanJoin(ctx, listID, c.userID)
	if err != nil {
		slog.Error("ルーム参加のアクセス検証に失敗しました",
			slog.String("conn_id", c.id),
			slog.String("list_id", listID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !allowed {
		slog.Warn("権限のないルームへの参加要求を拒否しました",
			slog.String("conn_id", c.id),
			slog.String("user_id", c.userID),
			slog.String("list_id", listID),
		)
		return
	}
	c.hub.Join(c, listID)
}

// writePump は送信キューのメッセージをソケットへ書き出す。
// キューに動きがない間は定期的にpingを送り、死んだ接続を検出する。
func (c *Conn) writePump() {
	pingInterval := c.settings.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
