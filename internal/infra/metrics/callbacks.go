package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		callbacksTotal,
		webhookLogFailuresTotal,
	)
}

var (
	callbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_callbacks_total",
			Help: "Inbound gateway callbacks by outcome (success/failure/bad_token).",
		},
		[]string{"outcome"},
	)

	webhookLogFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_log_failures_total",
			Help: "Best-effort webhook audit writes that failed.",
		},
	)
)

func IncCallback(outcome string) {
	callbacksTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncWebhookLogFailure() {
	webhookLogFailuresTotal.Inc()
}
