package camera

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/nourmokhtar/breastCancerBOT/internal/analysis"
	"github.com/nourmokhtar/breastCancerBOT/internal/metrics"
	"github.com/nourmokhtar/breastCancerBOT/internal/render"
)

// NoEmotion is shown when a frame yields no emotion
const NoEmotion = "Unable to detect emotion."

const jpegDataURLPrefix = "data:image/jpeg;base64,"

// FrameBackend is the part of the analysis client used for frames
type FrameBackend interface {
	AnalyzeFrame(ctx context.Context, image string) (*analysis.FrameResult, error)
}

// DeviceState reports the previewed device
type DeviceState interface {
	Device() (string, bool)
}

// FrameSource serves the latest frame of the previewed device. Preview
// implements it from its own stream.
type FrameSource interface {
	DeviceState
	LatestFrame() ([]byte, error)
}

// EncodeFrame returns the frame as a JPEG data URL
func EncodeFrame(frame []byte) string {
	return jpegDataURLPrefix + base64.StdEncoding.EncodeToString(frame)
}

// FrameAnalyzer periodically analyzes frames of the previewed device
type FrameAnalyzer struct {
	frames   FrameSource
	backend  FrameBackend
	sink     render.Sink
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewFrameAnalyzer creates a frame analyzer
func NewFrameAnalyzer(frames FrameSource, backend FrameBackend, sink render.Sink, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *FrameAnalyzer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &FrameAnalyzer{
		frames:   frames,
		backend:  backend,
		sink:     sink,
		interval: interval,
		logger:   logger,
		metrics:  m,
	}
}

// Run analyzes one frame per interval until ctx is cancelled
func (a *FrameAnalyzer) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.AnalyzeOnce(ctx)
		}
	}
}

// AnalyzeOnce analyzes the latest preview frame if a preview is active.
// Failures are logged and counted, never shown.
func (a *FrameAnalyzer) AnalyzeOnce(ctx context.Context) {
	device, active := a.frames.Device()
	if !active {
		a.metrics.RecordFrameAnalysis("skipped")
		return
	}

	frame, err := a.frames.LatestFrame()
	if err != nil {
		a.metrics.RecordFrameAnalysis("capture_error")
		a.logger.Warn("Failed to capture frame", slog.String("device", device), slog.String("error", err.Error()))
		return
	}

	result, err := a.backend.AnalyzeFrame(ctx, EncodeFrame(frame))
	if err != nil {
		a.metrics.RecordFrameAnalysis("error")
		a.logger.Error("Emotion detection failed", slog.String("error", err.Error()))
		return
	}

	if result.Emotion == "" {
		a.metrics.RecordFrameAnalysis("no_emotion")
		a.sink.SetEmotion(NoEmotion)
		return
	}

	a.metrics.RecordFrameAnalysis("success")
	a.sink.SetEmotion(render.FormatEmotion(result.Emotion, result.Confidence))
}
