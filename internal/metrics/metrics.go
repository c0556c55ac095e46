// Package metrics - prometheus-метрики сервиса чата.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	KindMessages = "messages"
	KindInbox    = "inbox"
)

var (
	AccessDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_access_decisions_total",
			Help: "Total number of chat access decisions",
		},
		[]string{"decision"},
	)

	MessagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total number of persisted chat messages",
		},
	)

	SendFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_send_failures_total",
			Help: "Total number of rejected or failed sends",
		},
		[]string{"reason"},
	)

	ActiveSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_active_subscriptions",
			Help: "Number of live subscriptions",
		},
		[]string{"kind"},
	)
)

func RecordAccessDecision(decision string) {
	AccessDecisionsTotal.WithLabelValues(decision).Inc()
}

func RecordMessageSent() {
	MessagesSentTotal.Inc()
}

func RecordSendFailure(reason string) {
	SendFailuresTotal.WithLabelValues(reason).Inc()
}

func SubscriptionOpened(kind string) {
	ActiveSubscriptions.WithLabelValues(kind).Inc()
}

func SubscriptionClosed(kind string) {
	ActiveSubscriptions.WithLabelValues(kind).Dec()
}
