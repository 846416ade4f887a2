package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(webhookEventsTotal, webhookReplayTotal) }

var (
	// Webhook deliveries by event type and reconciliation outcome
	// (applied/ignored/pending).
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Gateway webhook events by type and reconciliation outcome.",
		},
		[]string{"event_type", "outcome"},
	)

	// Replay worker passes over the stored-event queue.
	webhookReplayTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_replay_total",
			Help: "Stored webhook events drained by the replay worker, by outcome.",
		},
		[]string{"outcome"},
	)
)

func IncWebhookEvent(eventType, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(eventType), norm(outcome)).Inc()
}

func IncWebhookReplay(outcome string) {
	webhookReplayTotal.WithLabelValues(norm(outcome)).Inc()
}
