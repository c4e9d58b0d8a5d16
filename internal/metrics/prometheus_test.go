package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSessionGauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSessionStarted()
	m.RecordSessionStarted()
	m.RecordSessionReleased("superseded", 1.5)

	if got := testutil.ToFloat64(m.ActiveSessions); got != 1 {
		t.Errorf("Expected 1 active session, got %f", got)
	}

	if got := testutil.ToFloat64(m.SessionsReleased.WithLabelValues("superseded")); got != 1 {
		t.Errorf("Expected 1 superseded release, got %f", got)
	}
}

func TestUploadOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordUpload("success", 2048, 0.3)
	m.RecordUpload("transport_error", 1024, 1.2)
	m.RecordUpload("success", 4096, 0.4)

	if got := testutil.ToFloat64(m.Uploads.WithLabelValues("success")); got != 2 {
		t.Errorf("Expected 2 successful uploads, got %f", got)
	}

	if got := testutil.ToFloat64(m.Uploads.WithLabelValues("transport_error")); got != 1 {
		t.Errorf("Expected 1 failed upload, got %f", got)
	}
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(prometheus.NewRegistry())
}
