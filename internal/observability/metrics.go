package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avenir_http_requests_total",
			Help: "Total number of HTTP requests processed by the realtime backend.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avenir_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "avenir_ws_active_connections",
			Help: "Number of active realtime socket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avenir_ws_events_total",
			Help: "Total number of realtime socket events.",
		},
		[]string{"event"},
	)
	sseActiveStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "avenir_sse_active_streams",
			Help: "Number of open notification SSE streams.",
		},
	)
	pollRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avenir_poll_runs_total",
			Help: "Total fallback poller runs by feed and outcome.",
		},
		[]string{"feed", "outcome"},
	)
	optimisticSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avenir_optimistic_sends_total",
			Help: "Total optimistic submissions by outcome.",
		},
		[]string{"outcome"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "avenir_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		sseActiveStreams,
		pollRunsTotal,
		optimisticSendsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncSSEActive() {
	sseActiveStreams.Inc()
}

func DecSSEActive() {
	sseActiveStreams.Dec()
}

func IncPollRun(feed, outcome string) {
	pollRunsTotal.WithLabelValues(feed, outcome).Inc()
}

func IncOptimisticSend(outcome string) {
	optimisticSendsTotal.WithLabelValues(outcome).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
