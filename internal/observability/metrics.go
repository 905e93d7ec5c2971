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
			Name: "karaoke_http_requests_total",
			Help: "Total number of HTTP requests processed by the karaoke service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "karaoke_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "karaoke_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karaoke_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "karaoke_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	activeSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "karaoke_active_sessions",
			Help: "Number of client session contexts currently in a room, by role.",
		},
		[]string{"role"},
	)
	playbackWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karaoke_playback_writes_total",
			Help: "Host playback writes to the store, by kind and result.",
		},
		[]string{"kind", "result"},
	)
	chatMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karaoke_chat_messages_total",
			Help: "Chat sends, by result.",
		},
		[]string{"result"},
	)
	storeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karaoke_store_errors_total",
			Help: "Store failures surfaced by session operations.",
		},
		[]string{"op"},
	)
	busEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karaoke_bus_events_total",
			Help: "Events published on the local event bus.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
		activeSessions,
		playbackWritesTotal,
		chatMessagesTotal,
		storeErrorsTotal,
		busEventsTotal,
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

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

func IncActiveSessions(role string) {
	activeSessions.WithLabelValues(role).Inc()
}

func DecActiveSessions(role string) {
	activeSessions.WithLabelValues(role).Dec()
}

func IncPlaybackWrite(kind, result string) {
	playbackWritesTotal.WithLabelValues(kind, result).Inc()
}

func IncChatMessage(result string) {
	chatMessagesTotal.WithLabelValues(result).Inc()
}

func IncStoreError(op string) {
	storeErrorsTotal.WithLabelValues(op).Inc()
}

func IncBusEvent(kind string) {
	busEventsTotal.WithLabelValues(kind).Inc()
}
