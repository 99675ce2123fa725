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
// アップストリームクライアントや検索・認証の各層から利用する。
type MetricsCollector interface {
	RecordUpstreamRequest(endpoint, outcome string, duration time.Duration)
	RecordSearchResult(kind string)
	RecordAuthEvent(event string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	searchResults    *prometheus.CounterVec
	authEvents       *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghdash_upstream_requests_total",
			Help: "GitHub APIへのリクエスト数（エンドポイント・結果別）",
		}, []string{"endpoint", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ghdash_upstream_latency_seconds",
			Help:    "GitHub API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		searchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghdash_search_results_total",
			Help: "検索結果の種別ごとの件数",
		}, []string{"kind"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghdash_auth_events_total",
			Help: "認証イベントの発生数",
		}, []string{"event"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghdash_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.searchResults,
		c.authEvents,
		c.httpStatus,
	)

	return c
}

// RecordUpstreamRequest はアップストリーム呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordUpstreamRequest(endpoint, outcome string, duration time.Duration) {
	c.upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	c.upstreamLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordSearchResult は検索結果の種別を記録する。
func (c *Collector) RecordSearchResult(kind string) {
	c.searchResults.WithLabelValues(kind).Inc()
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(event string) {
	c.authEvents.WithLabelValues(event).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordUpstreamRequest(string, string, time.Duration) {}
func (NopCollector) RecordSearchResult(string)                         {}
func (NopCollector) RecordAuthEvent(string)                            {}
func (NopCollector) RecordHTTPStatus(int)                              {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
