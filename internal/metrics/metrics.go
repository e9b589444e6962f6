// Package metrics holds the Prometheus collectors of the ingestor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// File outcomes.
const (
	OutcomeStored = "stored"
	OutcomeFailed = "failed"
)

var (
	// LatencyBuckets covers 1ms to about a minute.
	LatencyBuckets = prometheus.ExponentialBuckets(0.001, 2, 17)
)

var (
	filesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestor_files_total",
		Help: "the number of file references processed, by outcome",
	}, []string{"outcome"})
	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestor_failures_total",
		Help: "the number of failed file references, by stage and kind",
	}, []string{"stage", "kind"})
	recordsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestor_records_stored_total",
		Help: "the number of records stored, by target",
	}, []string{"target"})
	pipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingestor_pipeline_seconds",
		Help:    "the time spent processing one file reference",
		Buckets: LatencyBuckets,
	}, []string{"outcome"})
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestor_messages_total",
		Help: "the number of notification messages handled, by result",
	}, []string{"result"})
	pollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestor_polls_total",
		Help: "the number of receive calls made to the notification channel",
	})
	skippedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestor_skipped_envelope_records_total",
		Help: "the number of envelope records skipped for missing bucket or key",
	})
)

// Message results.
const (
	MessageDeleted   = "deleted"
	MessageRetained  = "retained"
	MessageMalformed = "malformed"
)

// FileStored records a successful pipeline run.
func FileStored(target string, records int, elapsed time.Duration) {
	filesTotal.WithLabelValues(OutcomeStored).Inc()
	recordsStored.WithLabelValues(target).Add(float64(records))
	pipelineDuration.WithLabelValues(OutcomeStored).Observe(elapsed.Seconds())
}

// FileFailed records a failed pipeline run.
func FileFailed(stage, kind string, elapsed time.Duration) {
	filesTotal.WithLabelValues(OutcomeFailed).Inc()
	failuresTotal.WithLabelValues(stage, kind).Inc()
	pipelineDuration.WithLabelValues(OutcomeFailed).Observe(elapsed.Seconds())
}

// MessageHandled records what happened to one notification message.
func MessageHandled(result string) {
	messagesTotal.WithLabelValues(result).Inc()
}

// Polled records one receive call.
func Polled() {
	pollsTotal.Inc()
}

// RecordSkipped records one envelope record skipped for missing fields.
func RecordSkipped() {
	skippedRecords.Inc()
}
