// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// realtime.MetricsRecorderとmiddleware.HTTPStatusRecorderを実装する。
type Collector struct {
	wsConnections prometheus.Gauge
	wsRoomMembers prometheus.Gauge
	wsBroadcasts  *prometheus.CounterVec
	wsReceivers   *prometheus.CounterVec
	wsDropped     *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
	sessionsSwept prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskaru_ws_connections",
			Help: "現在のWebSocket接続数",
		}),
		wsRoomMembers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskaru_ws_room_members",
			Help: "全ルームの参加延べ数",
		}),
		wsBroadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskaru_ws_broadcasts_total",
			Help: "イベント種別ごとのブロードキャスト数",
		}, []string{"event_type"}),
		wsReceivers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskaru_ws_broadcast_receivers_total",
			Help: "イベント種別ごとの配信先接続の延べ数",
		}, []string{"event_type"}),
		wsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskaru_ws_dropped_total",
			Help: "送信キュー満杯で破棄されたイベント数",
		}, []string{"event_type"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskaru_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskaru_sessions_swept_total",
			Help: "クリーンアップワーカーが削除した期限切れセッション数",
		}),
	}

	reg.MustRegister(
		c.wsConnections,
		c.wsRoomMembers,
		c.wsBroadcasts,
		c.wsReceivers,
		c.wsDropped,
		c.httpStatus,
		c.sessionsSwept,
	)

	return c
}

// ConnectionOpened はWebSocket接続の確立を記録する。
func (c *Collector) ConnectionOpened() {
	c.wsConnections.Inc()
}

// ConnectionClosed はWebSocket接続の切断を記録する。
func (c *Collector) ConnectionClosed() {
	c.wsConnections.Dec()
}

// RoomJoined はルームへの参加を記録する。
func (c *Collector) RoomJoined() {
	c.wsRoomMembers.Inc()
}

// RoomLeft はルームからの退出を記録する。
func (c *Collector) RoomLeft() {
	c.wsRoomMembers.Dec()
}

// EventBroadcast はイベントのブロードキャストを記録する。
func (c *Collector) EventBroadcast(eventType string, receivers int) {
	c.wsBroadcasts.WithLabelValues(eventType).Inc()
	c.wsReceivers.WithLabelValues(eventType).Add(float64(receivers))
}

// EventDropped は送信キュー満杯によるイベント破棄を記録する。
func (c *Collector) EventDropped(eventType string) {
	c.wsDropped.WithLabelValues(eventType).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSessionsSwept は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsSwept(count int64) {
	c.sessionsSwept.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
