package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// MetricsRecorder はハブの観測メトリクスを記録する。
type MetricsRecorder interface {
	ConnectionOpened()
	ConnectionClosed()
	RoomJoined()
	RoomLeft()
	EventBroadcast(eventType string, receivers int)
	EventDropped(eventType string)
}

// NoopMetrics はメトリクスを記録しないMetricsRecorder。テスト用。
type NoopMetrics struct{}

func (NoopMetrics) ConnectionOpened()          {}
func (NoopMetrics) ConnectionClosed()          {}
func (NoopMetrics) RoomJoined()                {}
func (NoopMetrics) RoomLeft()                  {}
func (NoopMetrics) EventBroadcast(string, int) {}
func (NoopMetrics) EventDropped(string)        {}

var _ MetricsRecorder = NoopMetrics{}

// Hub はリスト単位のルームを管理し、イベントを配信する。
// ルームはlist idをキーに接続の集合を持つ。同一ユーザーの複数接続は
// それぞれ独立にルームへ参加する。全操作はミューテックスで直列化され、
// 同一ルームへのブロードキャストは呼び出し順に各接続のキューへ積まれる。
type Hub struct {
	mu      sync.Mutex
	rooms   map[string]map[*Conn]struct{}
	byUser  map[string]map[*Conn]struct{}
	metrics MetricsRecorder
}

// NewHub はHubを生成する。
func NewHub(metrics MetricsRecorder) *Hub {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Hub{
		rooms:   make(map[string]map[*Conn]struct{}),
		byUser:  make(map[string]map[*Conn]struct{}),
		metrics: metrics,
	}
}

// Register は接続をハブに登録する。
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.byUser[c.userID]
	if !ok {
		conns = make(map[*Conn]struct{})
		h.byUser[c.userID] = conns
	}
	conns[c] = struct{}{}
	h.metrics.ConnectionOpened()

	slog.Info("WebSocket接続を登録しました",
		slog.String("conn_id", c.id),
		slog.String("user_id", c.userID),
	)
}

// Unregister は接続をハブから除去する。参加中の全ルームからも退出させ、
// 送信チャネルを閉じる。二重呼び出しは無視される。
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.byUser[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.byUser, c.userID)
	}

	for listID := range c.roomIDs {
		h.removeFromRoom(c, listID)
	}

	close(c.send)
	h.metrics.ConnectionClosed()

	slog.Info("WebSocket接続を解除しました",
		slog.String("conn_id", c.id),
		slog.String("user_id", c.userID),
	)
}

// Join は接続をリストのルームに参加させる。既に参加済みなら何もしない。
func (h *Hub) Join(c *Conn, listID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinRoom(c, listID)
}

// Leave は接続をリストのルームから退出させる。未参加なら何もしない。
func (h *Hub) Leave(c *Conn, listID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := c.roomIDs[listID]; !ok {
		return
	}
	delete(c.roomIDs, listID)
	h.removeFromRoom(c, listID)
}

// JoinUser はユーザーの全接続をリストのルームに参加させる。
// コラボレーター追加時、対象ユーザーがjoinListを送る前でも
// イベントを受け取れるようにするために使う。接続が無ければ何もしない。
func (h *Hub) JoinUser(userID, listID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.byUser[userID] {
		h.joinRoom(c, listID)
	}
}

// LeaveUser はユーザーの全接続をリストのルームから退出させる。
// コラボレーター削除時に使う。
func (h *Hub) LeaveUser(userID, listID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.byUser[userID] {
		if _, ok := c.roomIDs[listID]; !ok {
			continue
		}
		delete(c.roomIDs, listID)
		h.removeFromRoom(c, listID)
	}
}

// Broadcast はイベントをルーム内の全接続に配信する。ベストエフォートで、
// 送信キューが満杯の接続へのイベントは破棄する。空のルームへの配信は
// 何もしない。
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("イベントのエンコードに失敗しました",
			slog.String("event_type", event.Type),
			slog.String("error", err.Error()),
		)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[event.ListID]
	if !ok {
		return
	}

	delivered := 0
	for c := range room {
		select {
		case c.send <- data:
			delivered++
		default:
			// 遅い消費者のキューが満杯。接続は維持しイベントだけ落とす。
			h.metrics.EventDropped(event.Type)
			slog.Warn("送信キューが満杯のためイベントを破棄しました",
				slog.String("conn_id", c.id),
				slog.String("event_type", event.Type),
			)
		}
	}
	h.metrics.EventBroadcast(event.Type, delivered)
}

// RoomSize はルーム内の接続数を返す。
func (h *Hub) RoomSize(listID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[listID])
}

// ConnectionCount は登録中の接続数を返す。
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for _, conns := range h.byUser {
		total += len(conns)
	}
	return total
}

// joinRoom は呼び出し側がロックを保持している前提。
func (h *Hub) joinRoom(c *Conn, listID string) {
	if _, ok := c.roomIDs[listID]; ok {
		return
	}
	room, ok := h.rooms[listID]
	if !ok {
		room = make(map[*Conn]struct{})
		h.rooms[listID] = room
	}
	room[c] = struct{}{}
	c.roomIDs[listID] = struct{}{}
	h.metrics.RoomJoined()
}

// removeFromRoom は呼び出し側がロックを保持している前提。
func (h *Hub) removeFromRoom(c *Conn, listID string) {
	room, ok := h.rooms[listID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, listID)
	}
	h.metrics.RoomLeft()
}
