// Prometheus instrumentation for the notification fan-out. Labels are kept
// to the channel name and a coarse result so cardinality stays bounded at
// channels x {success, failure, disabled}.
package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// sendsTotal counts individual channel send attempts by outcome.
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_sends_total",
			Help: "Total channel send attempts by channel and result.",
		},
		[]string{"channel", "result"},
	)

	// sendDuration records how long each provider call took, including the
	// per-send timeout budget.
	sendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_send_duration_seconds",
			Help:    "Duration of channel send attempts in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	// fanoutsAllFailed counts fan-outs where no channel got through. This is
	// the number the on-call alert watches.
	fanoutsAllFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_fanouts_all_failed_total",
			Help: "Fan-outs in which every channel failed.",
		},
	)
)

func init() {
	prometheus.MustRegister(sendsTotal, sendDuration, fanoutsAllFailed)
}
