package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

var (
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replybot_cycles_total",
			Help: "Responder cycles run, by listing outcome",
		},
		[]string{"status"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "replybot_cycle_duration_seconds",
			Help:    "Wall time of one responder cycle",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
	)

	MessagesSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "replybot_messages_seen_total",
			Help: "Unreplied messages returned by the inbox query",
		},
	)

	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replybot_replies_total",
			Help: "Reply attempts, by outcome",
		},
		[]string{"status"}, // success, failed, skipped
	)

	ArchiveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replybot_archive_total",
			Help: "Moves to the archive label, by outcome",
		},
		[]string{"status"},
	)

	BotStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replybot_bootstrap_total",
			Help: "Bootstrap attempts (authorize, resolve label, schedule), by outcome",
		},
		[]string{"status"},
	)
)

// RecordCycle observes one finished cycle.
func RecordCycle(listed bool, seen int, d time.Duration) {
	status := StatusSuccess
	if !listed {
		status = StatusFailed
	}
	CyclesTotal.WithLabelValues(status).Inc()
	MessagesSeen.Add(float64(seen))
	CycleDuration.Observe(d.Seconds())
}

// IncrementReply counts one reply attempt.
func IncrementReply(status string) {
	RepliesTotal.WithLabelValues(status).Inc()
}

// IncrementArchive counts one label move.
func IncrementArchive(status string) {
	ArchiveTotal.WithLabelValues(status).Inc()
}

// IncrementBootstrap counts one bootstrap attempt.
func IncrementBootstrap(status string) {
	BotStarts.WithLabelValues(status).Inc()
}
