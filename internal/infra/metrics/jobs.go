package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reconcilerTicksTotal,
		reconcilerRecoveredTotal,
	)
}

var (
	reconcilerTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_reconciler_ticks_total",
			Help: "Background reconciler scan cycles.",
		},
	)

	reconcilerRecoveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_reconciler_recovered_total",
			Help: "Stale pending payments driven to a terminal state by the reconciler.",
		},
	)
)

func IncReconcilerTick()      { reconcilerTicksTotal.Inc() }
func IncReconcilerRecovered() { reconcilerRecoveredTotal.Inc() }
