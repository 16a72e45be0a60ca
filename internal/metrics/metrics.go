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
// カタログの読み込みパイプライン、削除ワーカー、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordPageLoad(route, outcome string, duration time.Duration)
	RecordPreview(outcome string)
	RecordPurge(result string)
	RecordHTTPStatus(statusCode int)
}

// 削除ワーカーの処理結果ラベル
const (
	PurgeRemoved     = "removed"
	PurgeMissing     = "missing"
	PurgeRescheduled = "rescheduled"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	pageLoads   *prometheus.CounterVec
	pageLatency *prometheus.HistogramVec
	previews    *prometheus.CounterVec
	purges      *prometheus.CounterVec
	httpStatus  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pageLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_page_loads_total",
			Help: "カタログ一覧の読み込み数（ルート・結果別）",
		}, []string{"route", "outcome"}),
		pageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_page_load_seconds",
			Help:    "カタログ一覧の読み込み時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		previews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_preview_resolutions_total",
			Help: "プレビューURL解決の結果別件数",
		}, []string{"outcome"}),
		purges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_storage_purges_total",
			Help: "ストレージ削除待ちの処理結果別件数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.pageLoads,
		c.pageLatency,
		c.previews,
		c.purges,
		c.httpStatus,
	)

	return c
}

// RecordPageLoad はカタログ一覧の読み込み結果と所要時間を記録する。
func (c *Collector) RecordPageLoad(route, outcome string, duration time.Duration) {
	c.pageLoads.WithLabelValues(route, outcome).Inc()
	c.pageLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordPreview はプレビューURL解決の結果を記録する。
func (c *Collector) RecordPreview(outcome string) {
	c.previews.WithLabelValues(outcome).Inc()
}

// RecordPurge は削除待ち1件の処理結果を記録する。
func (c *Collector) RecordPurge(result string) {
	c.purges.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RegisterPendingGauge は処理中の操作数を返すゲージを登録する。
// 値はスクレイプのたびにsnapshotから読み取る。
func RegisterPendingGauge(reg prometheus.Registerer, snapshot func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "catalog_pending_operations",
		Help: "処理中の操作数",
	}, func() float64 {
		return float64(snapshot())
	}))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// ワーカープロセスで単独のメトリクスサーバーとして使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
