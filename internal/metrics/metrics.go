// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// 会員登録サービスとHTTPミドルウェアから利用する。
type Collector struct {
	signupOutcomes   *prometheus.CounterVec
	stepLatency      *prometheus.HistogramVec
	orphanedIdentity *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	orphanedLocal    prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signupOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campaignhub_signup_total",
			Help: "結果別の会員登録リクエスト数（SUCCESSまたはエラーコード）",
		}, []string{"outcome"}),
		stepLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campaignhub_signup_step_duration_seconds",
			Help:    "会員登録の手順別所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),
		orphanedIdentity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campaignhub_signup_orphaned_identities_total",
			Help: "認証ID作成後の手順で失敗し、プロフィールが揃わないまま残った認証IDの数",
		}, []string{"step"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campaignhub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		orphanedLocal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "campaignhub_orphaned_local_identities",
			Help: "直近の監査でプロフィールが存在しなかったローカル認証IDの数",
		}),
	}

	reg.MustRegister(
		c.signupOutcomes,
		c.stepLatency,
		c.orphanedIdentity,
		c.httpStatus,
		c.orphanedLocal,
	)

	return c
}

// IncOutcome は会員登録の結果を記録する。
func (c *Collector) IncOutcome(outcome string) {
	c.signupOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveStep は会員登録の手順ごとの所要時間を記録する。
func (c *Collector) ObserveStep(step string, d time.Duration) {
	c.stepLatency.WithLabelValues(step).Observe(d.Seconds())
}

// IncOrphanedIdentity はstepで失敗して残った認証IDを記録する。
func (c *Collector) IncOrphanedIdentity(step string) {
	c.orphanedIdentity.WithLabelValues(step).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetOrphanedLocalIdentities は監査で見つかった孤立ローカル認証IDの数を記録する。
func (c *Collector) SetOrphanedLocalIdentities(n int) {
	c.orphanedLocal.Set(float64(n))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
