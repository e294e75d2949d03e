// Package metrics registers the pipeline's Prometheus metrics. HTTP-level
// metrics come from the echo middleware; these are the business counters
// updated from the service layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UploadsTotal counts upload attempts by media type, provider, and result.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediahub_uploads_total",
			Help: "Upload attempts by media type, provider, and result",
		},
		[]string{"type", "provider", "result"},
	)

	// UploadDuration observes end-to-end upload latency.
	UploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediahub_upload_duration_seconds",
			Help:    "End-to-end upload duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"type", "provider"},
	)

	// UploadedBytes counts source bytes accepted for upload.
	UploadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediahub_uploaded_bytes_total",
			Help: "Source bytes accepted for upload",
		},
	)

	// OrphansSwept counts orphan artifact sweep outcomes.
	OrphansSwept = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediahub_orphans_swept_total",
			Help: "Orphaned provider artifacts processed by the sweeper",
		},
		[]string{"result"},
	)
)
