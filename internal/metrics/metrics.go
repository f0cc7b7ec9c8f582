// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値。コールバックのリダイレクトフラグと一致させる。
const (
	LoginSuccess     = "success"
	LoginDenied      = "denied"
	LoginAuthFailed  = "auth_failed"
	LoginServerError = "server_error"
)

// ホワイトリスト登録結果のラベル値。
const (
	RegistrationCreated   = "created"
	RegistrationDuplicate = "duplicate"
	RegistrationInvalid   = "invalid"
	RegistrationError     = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー、サービス層、ミドルウェアから利用する。
type MetricsCollector interface {
	RecordLogin(outcome string)
	RecordWhitelistCheckError()
	RecordRegistration(outcome string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins              *prometheus.CounterVec
	whitelistCheckError prometheus.Counter
	registrations       *prometheus.CounterVec
	httpStatus          *prometheus.CounterVec
	requestLatency      prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_logins_total",
			Help: "OAuthコールバックの結果別件数",
		}, []string{"outcome"}),
		whitelistCheckError: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_whitelist_check_errors_total",
			Help: "ホワイトリスト照合でストアエラーが発生し拒否扱いとした件数",
		}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_whitelist_registrations_total",
			Help: "ホワイトリスト登録リクエストの結果別件数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatekeeper_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.logins,
		c.whitelistCheckError,
		c.registrations,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordLogin はOAuthコールバックの結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordWhitelistCheckError はホワイトリスト照合のストアエラーを記録する。
func (c *Collector) RecordWhitelistCheckError() {
	c.whitelistCheckError.Inc()
}

// RecordRegistration はホワイトリスト登録の結果を記録する。
func (c *Collector) RecordRegistration(outcome string) {
	c.registrations.WithLabelValues(outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type NopCollector struct{}

func (NopCollector) RecordLogin(string) {}
func (NopCollector) RecordWhitelistCheckError() {}
func (NopCollector) RecordRegistration(string) {}
func (NopCollector) RecordHTTPStatus(int) {}
func (NopCollector) RecordRequestLatency(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
