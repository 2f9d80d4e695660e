package metrics

import "github.com/prometheus/client_golang/prometheus"

var HttpRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests received",
	},
	[]string{"endpoint", "status", "method"},
)

var HttpRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint", "method"},
)

var DispatchCyclesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "followup_dispatch_cycles_total",
		Help: "Total number of dispatch cycles by outcome",
	},
	[]string{"outcome"},
)

var MessagesDispatchedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "followup_messages_dispatched_total",
		Help: "Total number of follow-up messages resolved by a dispatch cycle",
	},
	[]string{"status", "parent_kind"},
)

var ClaimConflictsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "followup_claim_conflicts_total",
		Help: "Messages skipped at claim time: taken by another cycle or parent no longer live",
	},
)

var StaleSendingFailedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "followup_stale_sending_failed_total",
		Help: "Messages failed after being stuck in sending beyond the stale threshold",
	},
)

var SequencesCreatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "followup_sequences_created_total",
		Help: "Total number of follow-up sequences generated",
	},
	[]string{"parent_kind"},
)

var ChannelSendDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "followup_channel_send_duration_seconds",
		Help:    "Time taken by the delivery provider to accept a message",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"provider", "outcome"},
)

func Init() {
	prometheus.MustRegister(HttpRequestsTotal)
	prometheus.MustRegister(HttpRequestDuration)
	prometheus.MustRegister(DispatchCyclesTotal)
	prometheus.MustRegister(MessagesDispatchedTotal)
	prometheus.MustRegister(ClaimConflictsTotal)
	prometheus.MustRegister(StaleSendingFailedTotal)
	prometheus.MustRegister(SequencesCreatedTotal)
	prometheus.MustRegister(ChannelSendDuration)
}
