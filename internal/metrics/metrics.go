// Package metrics exposes the journal's write-path state as Prometheus
// metrics. This is the observability surface the UI polls to show the
// queued-writes counter when storage is unavailable.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "journal"

var (
	// queuedWrites is the number of entries waiting in the write buffer.
	queuedWrites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queued_writes",
			Help:      "Number of entries buffered and not yet durably written",
		},
	)

	// lastFlushTimestamp is the unix time of the last successful flush.
	lastFlushTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_flush_timestamp_seconds",
			Help:      "Unix timestamp of the last successful write buffer flush",
		},
	)

	// flushReports counts state reports, labeled by whether entries remained.
	flushReports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_reports_total",
			Help:      "Total write buffer state reports",
		},
		[]string{"state"}, // state: drained, backlogged
	)
)

func init() {
	prometheus.MustRegister(queuedWrites, lastFlushTimestamp, flushReports)
}

// Reporter implements the batcher's StateReporter against the registry.
type Reporter struct{}

func NewReporter() *Reporter { return &Reporter{} }

func (*Reporter) ReportQueue(queued int, lastFlush time.Time) {
	queuedWrites.Set(float64(queued))
	if !lastFlush.IsZero() {
		lastFlushTimestamp.Set(float64(lastFlush.Unix()))
	}
	state := "drained"
	if queued > 0 {
		state = "backlogged"
	}
	flushReports.WithLabelValues(state).Inc()
}
