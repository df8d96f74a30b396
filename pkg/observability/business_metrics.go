package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Credential exchange metrics
	tokenFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpesa_token_fetches_total",
		Help: "Total access token requests sent to the gateway",
	}, []string{
		"status", // success, failed
	})

	tokenCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpesa_token_cache_lookups_total",
		Help: "Access token cache lookups",
	}, []string{
		"result", // hit, miss, invalidated
	})

	// STK push metrics
	stkPushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpesa_stk_pushes_total",
		Help: "Total STK push requests by outcome",
	}, []string{
		"mode",          // sandbox, live
		"status",        // accepted, rejected
		"response_code", // 0, 404.001.03, none, other
	})

	stkPushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "mpesa_stk_push_duration_seconds",
		Help: "Time to submit an STK push including token acquisition",
		// Buckets: 100ms to 30s (gateway timeout)
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{
		"mode",
		"status",
	})

	// Callback metrics
	callbackVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpesa_callback_verdicts_total",
		Help: "Inbound callback source verification verdicts",
	}, []string{
		"verdict", // allowed, denied
	})

	callbackResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpesa_callback_results_total",
		Help: "Payment results reported by gateway callbacks",
	}, []string{
		"status",      // completed, failed
		"result_code", // 0, 1032 (cancelled), 1037 (timeout), ...
	})

	allowListSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mpesa_callback_allowlist_size",
		Help: "Number of addresses in the active callback allow-list",
	}, []string{
		"source",
	})
)

// RecordTokenFetch records one credential exchange with the gateway
func RecordTokenFetch(status string) {
	tokenFetchesTotal.WithLabelValues(status).Inc()
}

// RecordTokenCacheLookup records a token cache hit, miss or invalidation
func RecordTokenCacheLookup(result string) {
	tokenCacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordStkPush records an STK push outcome
func RecordStkPush(mode, status, responseCode string, duration float64) {
	stkPushesTotal.WithLabelValues(mode, status, responseCode).Inc()
	stkPushDuration.WithLabelValues(mode, status).Observe(duration)
}

// RecordCallbackVerdict records whether a callback source was allowed
func RecordCallbackVerdict(allowed bool) {
	verdict := "denied"
	if allowed {
		verdict = "allowed"
	}
	callbackVerdictsTotal.WithLabelValues(verdict).Inc()
}

// RecordCallbackResult records the payment result carried by a callback
func RecordCallbackResult(status, resultCode string) {
	callbackResultsTotal.WithLabelValues(status, resultCode).Inc()
}

// SetAllowListSize records the size of the allow-list loaded from source
func SetAllowListSize(source string, size int) {
	allowListSize.WithLabelValues(source).Set(float64(size))
}
