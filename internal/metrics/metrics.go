package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	ItemsProcessed    prometheus.Counter
	ItemsSkipped      prometheus.Counter
	ItemsFailed       prometheus.Counter
	JobsExtracted     prometheus.Counter
	ExtractionRetries prometheus.Counter
	RateLimitHits     prometheus.Counter
	Reconnects        prometheus.Counter
	ProcessingTime    prometheus.Histogram
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ItemsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobscout_items_processed_total",
			Help: "Total number of mailbox messages fully processed and checkpointed",
		}),
		ItemsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobscout_items_skipped_total",
			Help: "Total number of messages skipped for insufficient body content",
		}),
		ItemsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobscout_items_failed_total",
			Help: "Total number of messages that failed processing and were left for retry",
		}),
		JobsExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobscout_jobs_extracted_total",
			Help: "Total number of job records written to the results ledger",
		}),
		ExtractionRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobscout_extraction_retries_total",
			Help: "Total number of retried extraction attempts after generic failures",
		}),
		RateLimitHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobscout_rate_limit_hits_total",
			Help: "Total number of rate-limit signals from the extraction service",
		}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobscout_mailbox_reconnects_total",
			Help: "Total number of forced mailbox reconnects",
		}),
		ProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobscout_item_processing_duration_seconds",
			Help:    "Time spent processing a single mailbox message",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
