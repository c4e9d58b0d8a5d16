package voice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nourmokhtar/breastCancerBOT/internal/analysis"
	"github.com/nourmokhtar/breastCancerBOT/internal/audio"
	"github.com/nourmokhtar/breastCancerBOT/internal/media"
	"github.com/nourmokhtar/breastCancerBOT/internal/metrics"
	"github.com/nourmokhtar/breastCancerBOT/internal/render"
)

// MicrophoneRequired is shown when the microphone cannot be opened
const MicrophoneRequired = "Microphone access is required for voice input."

// ErrUploadInFlight is returned by Stop while the previous recording is still
// being analyzed. The active recording keeps going.
var ErrUploadInFlight = errors.New("previous voice upload still in flight")

// Uploader submits a finalized recording for analysis
type Uploader interface {
	AnalyzeVoice(ctx context.Context, payload *audio.Payload, requestID string) (*analysis.VoiceResult, error)
}

// Status is a snapshot of the controller
type Status struct {
	State     State        `json:"state"`
	Uploading bool         `json:"uploading"`
	Session   *SessionInfo `json:"session,omitempty"`
}

// Label returns a short human readable state
func (s Status) Label() string {
	switch {
	case s.Session != nil:
		return string(StateRecording)
	case s.Uploading:
		return "uploading"
	default:
		return string(StateIdle)
	}
}

// Controller keeps at most one capture session alive and runs the
// stop, upload and render pipeline
type Controller struct {
	source     media.Source
	uploader   Uploader
	dispatcher *render.Dispatcher
	config     SessionConfig
	logger     *slog.Logger
	metrics    *metrics.Metrics

	opMu      sync.Mutex // serializes Start, Stop, Toggle and Close
	mu        sync.Mutex
	current   *Session
	uploading bool
	observer  func(Status)

	wg sync.WaitGroup
}

// NewController creates a controller
func NewController(source media.Source, uploader Uploader, dispatcher *render.Dispatcher, config SessionConfig, logger *slog.Logger, m *metrics.Metrics) *Controller {
	return &Controller{
		source:     source,
		uploader:   uploader,
		dispatcher: dispatcher,
		config:     config,
		logger:     logger,
		metrics:    m,
	}
}

// SetObserver registers a callback invoked after every state change
func (c *Controller) SetObserver(observer func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = observer
}

// Start opens the microphone and begins a new recording. An active session is
// aborted and its stream released before the microphone is opened again.
func (c *Controller) Start(ctx context.Context) (*Session, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.startLocked(ctx)
}

// startLocked requires opMu
func (c *Controller) startLocked(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	prev := c.current
	c.current = nil
	c.mu.Unlock()

	if prev != nil {
		prev.abort()
		c.metrics.RecordSessionReleased("superseded", prev.Duration().Seconds())
		c.logger.Info("Superseded active voice session", slog.String("session_id", prev.ID))
	}

	stream, err := c.source.Open(ctx)
	if err != nil {
		c.metrics.RecordPermissionError()
		c.logger.Error("Error accessing microphone", slog.String("error", err.Error()))
		c.dispatcher.Sink().Alert(MicrophoneRequired)
		c.notify()
		return nil, err
	}

	session, err := newSession(stream, c.config, c.logger)
	if err != nil {
		stream.Close()
		c.logger.Error("Failed to create voice session", slog.String("error", err.Error()))
		c.notify()
		return nil, err
	}

	c.mu.Lock()
	c.current = session
	c.mu.Unlock()

	go session.run()

	c.metrics.RecordSessionStarted()
	session.logger.Info("Recording started",
		slog.String("format", c.config.Format),
		slog.Int("sample_rate", c.config.SampleRate),
	)
	c.notify()

	return session, nil
}

// Stop finalizes the active recording and uploads it in the background. It is
// a no-op when nothing is recording. The stream is released before Stop
// returns, whatever happens to the upload.
func (c *Controller) Stop(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.stopLocked(ctx)
}

// stopLocked requires opMu
func (c *Controller) stopLocked(ctx context.Context) error {
	c.mu.Lock()
	session := c.current
	if session == nil {
		c.mu.Unlock()
		return nil
	}
	if c.uploading {
		c.mu.Unlock()
		c.metrics.RecordRejectedStop()
		session.logger.Warn("Stop rejected while previous upload is in flight")
		return ErrUploadInFlight
	}
	c.current = nil
	c.uploading = true
	c.mu.Unlock()

	payload := session.finalize(ctx)
	c.metrics.RecordSessionReleased("stopped", session.Duration().Seconds())

	if !session.HasVoice() {
		session.logger.Warn("No voice activity detected in recording")
	}
	session.logger.Info("Recording stopped",
		slog.Int("bytes", payload.Size()),
		slog.Duration("duration", session.Duration()),
	)

	c.notify()

	c.wg.Add(1)
	go c.upload(context.WithoutCancel(ctx), session, payload)

	return nil
}

// Toggle stops an active recording or starts a new one. The decision and the
// action happen under the same lock, so a toggle issued while the microphone
// is still opening stops that recording instead of restarting it.
func (c *Controller) Toggle(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	active := c.current != nil
	c.mu.Unlock()

	if active {
		return c.stopLocked(ctx)
	}
	_, err := c.startLocked(ctx)
	return err
}

func (c *Controller) upload(ctx context.Context, session *Session, payload *audio.Payload) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		c.uploading = false
		c.mu.Unlock()
		c.notify()
	}()

	start := time.Now()
	result, err := c.uploader.AnalyzeVoice(ctx, payload, session.ID)
	elapsed := time.Since(start)

	outcome := "success"
	var appErr *analysis.ApplicationError
	switch {
	case errors.As(err, &appErr):
		outcome = "application_error"
	case err != nil:
		outcome = "transport_error"
	case result != nil && result.Error != "":
		outcome = "application_error"
	}
	c.metrics.RecordUpload(outcome, payload.Size(), elapsed.Seconds())

	session.logger.Info("Voice upload finished",
		slog.String("outcome", outcome),
		slog.Duration("elapsed", elapsed),
	)

	c.dispatcher.Dispatch(ctx, result, err)
}

// Wait blocks until every started upload has been rendered
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close aborts the active session without uploading it
func (c *Controller) Close() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	session := c.current
	c.current = nil
	c.mu.Unlock()

	if session != nil {
		session.abort()
		c.metrics.RecordSessionReleased("closed", session.Duration().Seconds())
		session.logger.Info("Voice session closed")
		c.notify()
	}
}

// Status returns a snapshot of the controller
func (c *Controller) Status() Status {
	c.mu.Lock()
	session := c.current
	status := Status{State: StateIdle, Uploading: c.uploading}
	c.mu.Unlock()

	if session != nil {
		info := session.GetSessionInfo()
		status.State = info.State
		status.Session = &info
	}
	return status
}

func (c *Controller) notify() {
	c.mu.Lock()
	observer := c.observer
	c.mu.Unlock()

	if observer != nil {
		observer(c.Status())
	}
}
