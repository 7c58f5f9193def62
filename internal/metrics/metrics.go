// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// スキャンワーカーとHTTPミドルウェアから利用する。
type Collector struct {
	scanRuns      prometheus.Counter
	refreshErrors prometheus.Counter
	newReleases   prometheus.Counter
	scanDuration  prometheus.Histogram
	httpStatus    *prometheus.CounterVec
	libraryChecks *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scanRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "releasedrop_scan_runs_total",
			Help: "リリースチェックのフルラン実行の合計数",
		}),
		refreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "releasedrop_artist_refresh_errors_total",
			Help: "アーティスト単位の同期失敗の合計数",
		}),
		newReleases: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "releasedrop_new_releases_total",
			Help: "発見した新着リリースの合計数",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "releasedrop_scan_duration_seconds",
			Help:    "フルランの実行時間（秒）",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "releasedrop_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		libraryChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "releasedrop_library_checks_total",
			Help: "ライブラリ照合の実行数（照合結果別）",
		}, []string{"library", "match_type"}),
	}

	reg.MustRegister(
		c.scanRuns,
		c.refreshErrors,
		c.newReleases,
		c.scanDuration,
		c.httpStatus,
		c.libraryChecks,
	)

	return c
}

// IncScanRuns はフルラン実行を記録する。
func (c *Collector) IncScanRuns() {
	c.scanRuns.Inc()
}

// IncArtistRefreshErrors はアーティスト同期失敗を記録する。
func (c *Collector) IncArtistRefreshErrors() {
	c.refreshErrors.Inc()
}

// AddNewReleases は発見した新着リリース数を加算する。
func (c *Collector) AddNewReleases(count int) {
	c.newReleases.Add(float64(count))
}

// ObserveScanDuration はフルランの実行時間を記録する。
func (c *Collector) ObserveScanDuration(seconds float64) {
	c.scanDuration.Observe(seconds)
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordLibraryCheck はライブラリ照合の実行を記録する。
func (c *Collector) RecordLibraryCheck(library, matchType string) {
	c.libraryChecks.WithLabelValues(library, matchType).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
