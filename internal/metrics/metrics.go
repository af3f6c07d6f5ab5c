// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordValidationRejection(collection, code string)
	RecordMatchDecision(decision string)
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordEventPublishFailure(routingKey string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	validationRejections *prometheus.CounterVec
	matchDecisions       *prometheus.CounterVec
	httpRequests         *prometheus.CounterVec
	httpLatency          *prometheus.HistogramVec
	publishFailures      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		validationRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lavoor_validation_rejections_total",
			Help: "バリデーションで拒否された書き込みリクエスト数",
		}, []string{"collection", "code"}),
		matchDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lavoor_match_decisions_total",
			Help: "マッチの採否決定数",
		}, []string{"decision"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lavoor_http_requests_total",
			Help: "ルート・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lavoor_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lavoor_event_publish_failures_total",
			Help: "ドメインイベントの発行失敗数",
		}, []string{"routing_key"}),
	}

	reg.MustRegister(
		c.validationRejections,
		c.matchDecisions,
		c.httpRequests,
		c.httpLatency,
		c.publishFailures,
	)

	return c
}

// RecordValidationRejection はバリデーションによる拒否を記録する。
func (c *Collector) RecordValidationRejection(collection, code string) {
	c.validationRejections.WithLabelValues(collection, code).Inc()
}

// RecordMatchDecision はマッチの採否決定を記録する。
func (c *Collector) RecordMatchDecision(decision string) {
	c.matchDecisions.WithLabelValues(decision).Inc()
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
// routeにはchiのルートパターンを渡し、ラベルの種類数を抑える。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordEventPublishFailure はイベント発行の失敗を記録する。
func (c *Collector) RecordEventPublishFailure(routingKey string) {
	c.publishFailures.WithLabelValues(routingKey).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type NopCollector struct{}

func (NopCollector) RecordValidationRejection(string, string)             {}
func (NopCollector) RecordMatchDecision(string)                           {}
func (NopCollector) RecordHTTPRequest(string, string, int, time.Duration) {}
func (NopCollector) RecordEventPublishFailure(string)                     {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
