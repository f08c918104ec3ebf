// Package metrics Prometheus 指标
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 服务指标集合
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	SearchRequestsTotal *prometheus.CounterVec
	SearchFallbackTotal prometheus.Counter
	ReindexedTotal      prometheus.Counter

	APIKeyRejectedTotal *prometheus.CounterVec
	ChatTokensTotal     *prometheus.CounterVec
}

// NewMetrics 在 reg 上注册全部指标
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentpedia_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentpedia_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "agentpedia_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
		SearchRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentpedia_search_requests_total",
			Help: "Total number of search requests by backend and search type",
		}, []string{"backend", "search_type"}),
		SearchFallbackTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "agentpedia_search_fallback_total",
			Help: "Number of searches that fell back to the document store after an engine error",
		}),
		ReindexedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "agentpedia_search_reindexed_total",
			Help: "Number of catalog agents pushed to the search engine by reindex",
		}),
		APIKeyRejectedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentpedia_apikey_rejected_total",
			Help: "API key requests rejected by reason",
		}, []string{"reason"}),
		ChatTokensTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentpedia_chat_tokens_total",
			Help: "Tokens consumed by conversation chat completions",
		}, []string{"provider"}),
	}
}

// Middleware 记录 HTTP 请求指标，route 取注册路径避免高基数
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) ObserveSearch(backend, searchType string, fallback bool) {
	m.SearchRequestsTotal.WithLabelValues(backend, searchType).Inc()
	if fallback {
		m.SearchFallbackTotal.Inc()
	}
}

func (m *Metrics) ObserveReindexed(n int) {
	m.ReindexedTotal.Add(float64(n))
}

func (m *Metrics) ObserveAPIKeyRejected(reason string) {
	m.APIKeyRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveChatTokens(provider string, tokens int) {
	if tokens > 0 {
		m.ChatTokensTotal.WithLabelValues(provider).Add(float64(tokens))
	}
}
