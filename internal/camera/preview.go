package camera

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nourmokhtar/breastCancerBOT/internal/media"
)

var (
	// ErrPreviewInactive is returned for frame requests with no camera open
	ErrPreviewInactive = errors.New("camera preview is not active")
	// ErrNoFrame is returned until the preview stream delivers its first JPEG
	ErrNoFrame = errors.New("no frame received from camera yet")
)

// SourceFactory builds the preview source for a device
type SourceFactory func(device string) media.Source

// CommandSourceFactory returns a factory running args with {device} expanded
func CommandSourceFactory(args []string) SourceFactory {
	return func(device string) media.Source {
		return media.NewCommandSource(device, media.Expand(args, map[string]string{"device": device}))
	}
}

// frameFeed holds the latest frame decoded from one preview stream
type frameFeed struct {
	latest atomic.Pointer[[]byte]
}

// Preview keeps at most one camera stream open. The stream's stdout carries
// MJPEG, and the most recent complete JPEG is kept for frame analysis so the
// device is never opened twice.
type Preview struct {
	factory SourceFactory
	logger  *slog.Logger

	mu     sync.Mutex
	device string
	stream media.Stream
	feed   *frameFeed
}

// NewPreview creates an inactive preview
func NewPreview(factory SourceFactory, logger *slog.Logger) *Preview {
	return &Preview{factory: factory, logger: logger}
}

// Select releases the current stream, if any, and starts previewing device.
// On failure the error is logged and the preview stays inactive.
func (p *Preview) Select(ctx context.Context, device string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.releaseLocked()

	stream, err := p.factory(device).Open(ctx)
	if err != nil {
		p.logger.Error("Error accessing camera",
			slog.String("device", device),
			slog.String("error", err.Error()),
		)
		return err
	}

	feed := &frameFeed{}
	go p.readFrames(device, stream, feed)

	p.device = device
	p.stream = stream
	p.feed = feed
	p.logger.Info("Camera preview started", slog.String("device", device))
	return nil
}

// readFrames keeps the newest JPEG of stream in feed until the stream ends
func (p *Preview) readFrames(device string, stream io.Reader, feed *frameFeed) {
	scanner := newFrameScanner(stream)
	for scanner.Scan() {
		frame := append([]byte(nil), scanner.Bytes()...)
		feed.latest.Store(&frame)
	}

	if err := scanner.Err(); errors.Is(err, bufio.ErrTooLong) {
		p.logger.Warn("Stopped decoding camera frames",
			slog.String("device", device),
			slog.String("error", err.Error()),
		)
		// Keep draining so the preview process never blocks on stdout.
		io.Copy(io.Discard, stream)
	}
}

// Device returns the previewed device and whether the preview is active
func (p *Preview) Device() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.device, p.stream != nil
}

// LatestFrame returns the newest JPEG received from the previewed device
func (p *Preview) LatestFrame() ([]byte, error) {
	p.mu.Lock()
	feed := p.feed
	p.mu.Unlock()

	if feed == nil {
		return nil, ErrPreviewInactive
	}
	frame := feed.latest.Load()
	if frame == nil {
		return nil, ErrNoFrame
	}
	return *frame, nil
}

// Close stops the preview
func (p *Preview) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseLocked()
}

func (p *Preview) releaseLocked() {
	if p.stream == nil {
		return
	}

	if err := p.stream.Close(); err != nil {
		p.logger.Warn("Failed to release camera", slog.String("device", p.device), slog.String("error", err.Error()))
	}
	p.logger.Info("Camera preview stopped", slog.String("device", p.device))
	p.stream = nil
	p.feed = nil
	p.device = ""
}
