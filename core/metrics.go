package core

import "github.com/prometheus/client_golang/prometheus"

var (
	connectionsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "parley",
		Name:      "ws_connections",
		Help:      "Open websocket connections.",
	})
	usersOnline = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "parley",
		Name:      "users_online",
		Help:      "Users with at least one open connection.",
	})
	eventsHandled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parley",
		Name:      "ws_events_total",
		Help:      "Inbound websocket events by type and result.",
	}, []string{"type", "result"})
	handlerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "parley",
		Name:      "ws_event_duration_seconds",
		Help:      "Time spent handling an inbound websocket event.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"type"})
	droppedSends = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "parley",
		Name:      "ws_dropped_sends_total",
		Help:      "Outbound events dropped because the connection was closed or its queue was full.",
	})
	messagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "parley",
		Name:      "messages_total",
		Help:      "Messages persisted by the delivery pipeline.",
	})
)

func init() {
	prometheus.MustRegister(connectionsOpen, usersOnline, eventsHandled, handlerDuration, droppedSends, messagesSent)
}
