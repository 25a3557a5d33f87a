package ports

// Metric names shared by the pipeline and the Prometheus adapter.
const (
	MetricPolls             = "voltlog_polls_total"
	MetricPollFailures      = "voltlog_poll_failures_total"
	MetricRetries           = "voltlog_retries_total"
	MetricReadingsPersisted = "voltlog_readings_persisted_total"
	MetricPersistFailures   = "voltlog_persist_failures_total"
	MetricBatchesDropped    = "voltlog_batches_dropped_total"
	MetricMirrorFailures    = "voltlog_mirror_failures_total"
	MetricMirrorDropped     = "voltlog_mirror_batches_dropped_total"

	MetricQueueLength    = "voltlog_queue_length"
	MetricBackoff        = "voltlog_backoff_seconds"
	MetricDegraded       = "voltlog_degraded"
	MetricProcessRSS     = "voltlog_process_rss_bytes"
	MetricOutputDiskFree = "voltlog_output_disk_free_bytes"

	MetricFetchLatency   = "voltlog_fetch_latency_seconds"
	MetricPersistLatency = "voltlog_persist_latency_seconds"
)
