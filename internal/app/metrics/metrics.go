package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"transcribot/internal/app/model"
)

const namespace = "transcribot"

// Job outcomes used as the "outcome" label.
const (
	OutcomeSucceeded      = "succeeded"
	OutcomeTruncated      = "truncated"
	OutcomeQuotaExhausted = "quota_exhausted"
	OutcomeCorruptMedia   = "corrupt_media"
	OutcomeTimeout        = "timeout"
	OutcomeFailure        = "failure"
	OutcomeStoreError     = "store_error"
)

// Recorder implements transcription metrics on top of prometheus.
// A nil *Recorder records nothing.
type Recorder struct {
	jobs               *prometheus.CounterVec
	chunks             *prometheus.CounterVec
	chunkLatency       prometheus.Histogram
	transcribedSeconds prometheus.Counter
	refundedSeconds    prometheus.Counter
	rollbackFailures   prometheus.Counter
}

// NewRecorder registers the collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Transcription jobs by final outcome.",
		}, []string{"outcome"}),
		chunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Remote transcription calls by result.",
		}, []string{"status"}),
		chunkLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_latency_seconds",
			Help:      "Wall-clock time spent waiting for one chunk.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 60, 120, 300},
		}),
		transcribedSeconds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcribed_media_seconds_total",
			Help:      "Media seconds delivered as text.",
		}),
		refundedSeconds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunded_quota_seconds_total",
			Help:      "Quota seconds restored after failed jobs.",
		}),
		rollbackFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rollback_failures_total",
			Help:      "Rollbacks that could not be written.",
		}),
	}
}

// RecordJob counts a finished job.
func (r *Recorder) RecordJob(outcome string) {
	if r == nil {
		return
	}
	r.jobs.WithLabelValues(outcome).Inc()
}

// RecordChunk counts one bounded call and observes its latency.
func (r *Recorder) RecordChunk(status model.ChunkStatus, latency time.Duration) {
	if r == nil {
		return
	}
	r.chunks.WithLabelValues(status.String()).Inc()
	r.chunkLatency.Observe(latency.Seconds())
}

// RecordTranscribed adds delivered media time.
func (r *Recorder) RecordTranscribed(seconds decimal.Decimal) {
	if r == nil {
		return
	}
	r.transcribedSeconds.Add(seconds.InexactFloat64())
}

// RecordRefund adds restored quota.
func (r *Recorder) RecordRefund(seconds decimal.Decimal) {
	if r == nil {
		return
	}
	r.refundedSeconds.Add(seconds.InexactFloat64())
}

// RecordRollbackFailure counts a rollback that the store rejected.
func (r *Recorder) RecordRollbackFailure() {
	if r == nil {
		return
	}
	r.rollbackFailures.Inc()
}
