package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "frames_processed_total",
		Help:      "Total number of frames processed",
	})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected",
	})

	FacesMatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "faces_matched_total",
		Help:      "Total number of faces matched to an enrolled identity",
	})

	FacesUnknown = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "faces_unknown_total",
		Help:      "Total number of faces below the similarity threshold",
	})

	AttendanceRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "attendance_recorded_total",
		Help:      "Attendance events appended to the log",
	}, []string{"group"})

	AttendanceSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "attendance_suppressed_total",
		Help:      "Recognitions suppressed by the cooldown window",
	}, []string{"group"})

	EnrollmentSamples = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "enrollment_samples_total",
		Help:      "Embedding samples accepted during enrollment",
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attend",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attend",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "attend",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
