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
// ゲート・一覧取得・再設定フロー・ワーカーから利用する。
type MetricsCollector interface {
	RecordGateDecision(decision string)
	RecordListFetch(result string)
	RecordListFetchLatency(duration time.Duration)
	RecordRecoverySubmission(result string)
	RecordApplication(result string)
	RecordHTTPStatus(statusCode int)
	RecordCleanup(target string, count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	gateDecisions  *prometheus.CounterVec
	listFetches    *prometheus.CounterVec
	listLatency    prometheus.Histogram
	recoverySubmit *prometheus.CounterVec
	applications   *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	cleanupDeleted *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "summit_gate_decisions_total",
			Help: "管理画面ゲートの判定結果別の件数",
		}, []string{"decision"}),
		listFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "summit_list_fetch_total",
			Help: "承認済みスタートアップ一覧の取得結果別の件数",
		}, []string{"result"}),
		listLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "summit_list_fetch_latency_seconds",
			Help:    "承認済みスタートアップ一覧取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		recoverySubmit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "summit_recovery_submissions_total",
			Help: "パスワード再設定の送信結果別の件数",
		}, []string{"result"}),
		applications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "summit_applications_total",
			Help: "スタートアップ応募の結果別の件数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "summit_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "summit_cleanup_deleted_total",
			Help: "クリーンアップで削除された行数",
		}, []string{"target"}),
	}

	reg.MustRegister(
		c.gateDecisions,
		c.listFetches,
		c.listLatency,
		c.recoverySubmit,
		c.applications,
		c.httpStatus,
		c.cleanupDeleted,
	)

	return c
}

// RecordGateDecision はゲートの判定結果を記録する。
func (c *Collector) RecordGateDecision(decision string) {
	c.gateDecisions.WithLabelValues(decision).Inc()
}

// RecordListFetch は一覧取得の結果（populated, empty, error）を記録する。
func (c *Collector) RecordListFetch(result string) {
	c.listFetches.WithLabelValues(result).Inc()
}

// RecordListFetchLatency は一覧取得のレイテンシを記録する。
func (c *Collector) RecordListFetchLatency(duration time.Duration) {
	c.listLatency.Observe(duration.Seconds())
}

// RecordRecoverySubmission は再設定の送信結果を記録する。
func (c *Collector) RecordRecoverySubmission(result string) {
	c.recoverySubmit.WithLabelValues(result).Inc()
}

// RecordApplication は応募の結果を記録する。
func (c *Collector) RecordApplication(result string) {
	c.applications.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCleanup はクリーンアップで削除された行数を記録する。
func (c *Collector) RecordCleanup(target string, count int64) {
	c.cleanupDeleted.WithLabelValues(target).Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var _ MetricsCollector = (*Collector)(nil)
