package server

import (
	"time"

	"github.com/MeKo-Tech/cardscan/internal/batch"
	"github.com/MeKo-Tech/cardscan/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardscan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Frame metrics
	framesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_frames_total",
			Help: "Total number of frames read",
		},
		[]string{"source", "outcome"}, // source: scan, burst, websocket; outcome: read, no_read, failed
	)

	frameRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_frame_retries_total",
			Help: "Frames that needed a retry with a rebuilt model",
		},
		[]string{"source"},
	)

	quickReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_quick_reads_total",
			Help: "Frames read with the four-row quick read layout",
		},
		[]string{"source"},
	)

	frameProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardscan_frame_processing_duration_seconds",
			Help:    "Frame processing duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"source"},
	)

	unrecoverableFailure = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardscan_unrecoverable_failure",
			Help: "1 once a frame failed after its retry",
		},
	)

	// Burst metrics
	burstsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_bursts_total",
			Help: "Total number of completed bursts",
		},
		[]string{"source", "outcome"}, // outcome: read, no_read
	)

	burstVotes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardscan_burst_votes",
			Help:    "Votes for the winning number of a burst",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 30},
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardscan_upload_size_bytes",
			Help:    "Size of uploaded frames in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardscan_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

func frameOutcome(res pipeline.FrameResult) string {
	switch {
	case res.Failed():
		return "failed"
	case res.Present && res.Digits != "":
		return "read"
	default:
		return "no_read"
	}
}

// recordFrame records the metrics of one frame result.
func (s *Server) recordFrame(source string, res pipeline.FrameResult) {
	framesTotal.WithLabelValues(source, frameOutcome(res)).Inc()
	if res.Retried {
		frameRetriesTotal.WithLabelValues(source).Inc()
	}
	if res.QuickRead {
		quickReadsTotal.WithLabelValues(source).Inc()
	}
	frameProcessingDuration.WithLabelValues(source).Observe(time.Duration(res.Processing.TotalNs).Seconds())
	if s.predictor != nil && s.predictor.HadUnrecoverableFailure() {
		unrecoverableFailure.Set(1)
	}
}

// recordBurst records the metrics of one burst summary.
func recordBurst(source string, sum batch.Summary) {
	outcome := "no_read"
	if sum.Present {
		outcome = "read"
	}
	burstsTotal.WithLabelValues(source, outcome).Inc()
	burstVotes.Observe(float64(sum.Votes))
}
