package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice client
type Metrics struct {
	// Capture session metrics
	SessionsStarted  prometheus.Counter
	SessionsReleased *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
	SessionDuration  prometheus.Histogram
	PermissionErrors prometheus.Counter
	RejectedStops    prometheus.Counter

	// Upload metrics
	Uploads        *prometheus.CounterVec
	UploadDuration prometheus.Histogram
	PayloadSize    prometheus.Histogram

	// Rendering metrics
	FieldsRendered  *prometheus.CounterVec
	PlaybackErrors  prometheus.Counter
	FrameAnalyses   *prometheus.CounterVec
	BackendRequests *prometheus.CounterVec

	// Status API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them with reg. Record methods
// are safe to call on a nil *Metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceclient_sessions_started_total",
			Help: "Total number of capture sessions started",
		}),
		SessionsReleased: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceclient_sessions_released_total",
			Help: "Total number of capture sessions released, by reason",
		}, []string{"reason"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voiceclient_active_sessions",
			Help: "Number of capture sessions currently holding the microphone",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceclient_session_duration_seconds",
			Help:    "Duration of capture sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),
		PermissionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceclient_permission_errors_total",
			Help: "Total number of failed microphone acquisitions",
		}),
		RejectedStops: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceclient_rejected_stops_total",
			Help: "Total number of stop requests rejected while an upload was in flight",
		}),

		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceclient_uploads_total",
			Help: "Total number of voice uploads, by outcome",
		}, []string{"outcome"}),
		UploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceclient_upload_duration_seconds",
			Help:    "Duration of voice upload round trips",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		}),
		PayloadSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceclient_payload_size_bytes",
			Help:    "Size of uploaded voice payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		FieldsRendered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceclient_fields_rendered_total",
			Help: "Total number of result fields rendered, by field",
		}, []string{"field"}),
		PlaybackErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceclient_playback_errors_total",
			Help: "Total number of response audio playback failures",
		}),
		FrameAnalyses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceclient_frame_analyses_total",
			Help: "Total number of camera frame analyses, by outcome",
		}, []string{"outcome"}),
		BackendRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceclient_backend_requests_total",
			Help: "Total number of backend requests, by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceclient_http_requests_total",
			Help: "Total number of status API requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voiceclient_http_request_duration_seconds",
			Help:    "Duration of status API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordSessionStarted records a newly acquired capture session
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionReleased records a released capture session and its duration
func (m *Metrics) RecordSessionReleased(reason string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SessionsReleased.WithLabelValues(reason).Inc()
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordPermissionError increments the failed acquisition counter
func (m *Metrics) RecordPermissionError() {
	if m == nil {
		return
	}
	m.PermissionErrors.Inc()
}

// RecordRejectedStop increments the rejected stop counter
func (m *Metrics) RecordRejectedStop() {
	if m == nil {
		return
	}
	m.RejectedStops.Inc()
}

// RecordUpload records one upload round trip
func (m *Metrics) RecordUpload(outcome string, sizeBytes int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
	m.PayloadSize.Observe(float64(sizeBytes))
	m.UploadDuration.Observe(durationSeconds)
}

// RecordFieldRendered increments the rendered counter for field
func (m *Metrics) RecordFieldRendered(field string) {
	if m == nil {
		return
	}
	m.FieldsRendered.WithLabelValues(field).Inc()
}

// RecordPlaybackError increments the playback error counter
func (m *Metrics) RecordPlaybackError() {
	if m == nil {
		return
	}
	m.PlaybackErrors.Inc()
}

// RecordFrameAnalysis records one camera frame analysis
func (m *Metrics) RecordFrameAnalysis(outcome string) {
	if m == nil {
		return
	}
	m.FrameAnalyses.WithLabelValues(outcome).Inc()
}

// RecordBackendRequest records one backend request
func (m *Metrics) RecordBackendRequest(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.BackendRequests.WithLabelValues(endpoint, outcome).Inc()
}

// RecordHTTPRequest records a status API request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
