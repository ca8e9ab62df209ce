package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		gatewayTokenRefreshTotal,
		gatewayLookupsTotal,
	)
}

var (
	gatewayTokenRefreshTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_token_refresh_total",
			Help: "Session token refreshes against the MMG login endpoint.",
		},
	)

	gatewayLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_lookups_total",
			Help: "Transaction lookups by result (ok/http_error/decode_error/not_successful/unavailable).",
		},
		[]string{"result"},
	)
)

func IncGatewayTokenRefresh() {
	gatewayTokenRefreshTotal.Inc()
}

func IncGatewayLookup(result string) {
	gatewayLookupsTotal.WithLabelValues(norm(result)).Inc()
}
