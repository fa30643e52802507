package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lingcrm"

// 路由查找结果
const (
	OutcomeMatched     = "matched"
	OutcomeNoMatch     = "no_match"
	OutcomeConfigError = "config_error"
	OutcomeError       = "error"
)

// Metrics 指标收集器，进程内单例，注册在独立的 Registry 上
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.SummaryVec
	httpResponseSize    *prometheus.SummaryVec

	routingLookupsTotal   *prometheus.CounterVec
	routingLookupDuration prometheus.Histogram
	ruleTriggersTotal     *prometheus.CounterVec
	webhookCallsTotal     *prometheus.CounterVec

	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec

	cacheMu    sync.Mutex
	cacheStats map[string]*cacheCounter
}

type cacheCounter struct {
	hits   atomic.Int64
	misses atomic.Int64
}

var (
	instance *Metrics
	once     sync.Once
)

// NewMetrics 返回全局指标实例，多次调用安全
func NewMetrics() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpRequestSize: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size",
		}, []string{"method", "path"}),
		httpResponseSize: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size",
		}, []string{"method", "path"}),
		routingLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "lookups_total",
			Help:      "Routing rule lookups by outcome",
		}, []string{"outcome"}),
		routingLookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "lookup_duration_seconds",
			Help:      "Time spent selecting a routing rule",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		ruleTriggersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "rule_triggers_total",
			Help:      "Trigger counter increments by result",
		}, []string{"result"}),
		webhookCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telephony",
			Name:      "inbound_calls_total",
			Help:      "Inbound call webhooks by disposition and rendered action",
		}, []string{"disposition", "action"}),
		cacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache hits",
		}, []string{"cache", "operation"}),
		cacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache misses",
		}, []string{"cache", "operation"}),
		cacheStats: make(map[string]*cacheCounter),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestSize,
		m.httpResponseSize,
		m.routingLookupsTotal,
		m.routingLookupDuration,
		m.ruleTriggersTotal,
		m.webhookCallsTotal,
		m.cacheHitsTotal,
		m.cacheMissesTotal,
	)
	return m
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler Prometheus 抓取端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest 记录一次 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration, reqSize, respSize int64) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if reqSize > 0 {
		m.httpRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	}
	if respSize > 0 {
		m.httpResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
	}
}

// RecordRoutingLookup 记录一次规则查找
func (m *Metrics) RecordRoutingLookup(outcome string, duration time.Duration) {
	m.routingLookupsTotal.WithLabelValues(outcome).Inc()
	m.routingLookupDuration.Observe(duration.Seconds())
}

// RecordRuleTrigger 记录命中计数更新结果
func (m *Metrics) RecordRuleTrigger(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.ruleTriggersTotal.WithLabelValues(result).Inc()
}

// RecordInboundCall 记录一次来电 webhook
func (m *Metrics) RecordInboundCall(disposition, action string) {
	m.webhookCallsTotal.WithLabelValues(disposition, action).Inc()
}

func (m *Metrics) cacheCounterFor(cache, op string) *cacheCounter {
	key := cache + ":" + op
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	c, ok := m.cacheStats[key]
	if !ok {
		c = &cacheCounter{}
		m.cacheStats[key] = c
	}
	return c
}

func (m *Metrics) RecordCacheHit(cache, op string) {
	m.cacheHitsTotal.WithLabelValues(cache, op).Inc()
	m.cacheCounterFor(cache, op).hits.Add(1)
}

func (m *Metrics) RecordCacheMiss(cache, op string) {
	m.cacheMissesTotal.WithLabelValues(cache, op).Inc()
	m.cacheCounterFor(cache, op).misses.Add(1)
}

// GetCacheHitRate 命中率，没有数据时返回 0
func (m *Metrics) GetCacheHitRate(cache, op string) float64 {
	c := m.cacheCounterFor(cache, op)
	hits, misses := c.hits.Load(), c.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// Reset 清空所有带标签的指标
func (m *Metrics) Reset() {
	m.httpRequestsTotal.Reset()
	m.httpRequestDuration.Reset()
	m.httpRequestSize.Reset()
	m.httpResponseSize.Reset()
	m.routingLookupsTotal.Reset()
	m.ruleTriggersTotal.Reset()
	m.webhookCallsTotal.Reset()
	m.cacheHitsTotal.Reset()
	m.cacheMissesTotal.Reset()

	m.cacheMu.Lock()
	m.cacheStats = make(map[string]*cacheCounter)
	m.cacheMu.Unlock()
}
