package camera

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/nourmokhtar/breastCancerBOT/internal/analysis"
	"github.com/nourmokhtar/breastCancerBOT/internal/media"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestListDevices(t *testing.T) {
	dev := t.TempDir()
	sysfs := t.TempDir()

	for _, name := range []string{"video2", "video0", "audio0"} {
		if err := os.WriteFile(filepath.Join(dev, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(sysfs, "video2"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sysfs, "video2", "name"), []byte("USB Webcam\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	lister := &Lister{Glob: filepath.Join(dev, "video*"), SysfsRoot: sysfs}
	devices, err := lister.ListDevices()
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}

	if len(devices) != 2 {
		t.Fatalf("Expected 2 devices, got %d", len(devices))
	}

	if devices[0].Path != filepath.Join(dev, "video0") || devices[0].Label != "Camera 1" {
		t.Errorf("Unexpected first device %+v", devices[0])
	}
	if devices[1].Path != filepath.Join(dev, "video2") || devices[1].Label != "USB Webcam" {
		t.Errorf("Unexpected second device %+v", devices[1])
	}
}

func TestListDevicesNone(t *testing.T) {
	lister := &Lister{Glob: filepath.Join(t.TempDir(), "video*")}
	devices, err := lister.ListDevices()
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("Expected no devices, got %v", devices)
	}
}

// fakeStream delivers its output one byte per read so frames straddle reads
type fakeStream struct {
	source *fakeSource
	r      io.Reader
	once   sync.Once
}

func (s *fakeStream) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *fakeStream) Stop() error                { return nil }
func (s *fakeStream) Close() error {
	s.once.Do(func() {
		s.source.mu.Lock()
		s.source.active--
		s.source.mu.Unlock()
	})
	return nil
}

type fakeSource struct {
	mu        sync.Mutex
	failing   map[string]bool
	output    map[string][]byte
	opened    []string
	active    int
	maxActive int
}

func (s *fakeSource) factory(device string) media.Source {
	return sourceFunc(func(context.Context) (media.Stream, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.opened = append(s.opened, device)
		if s.failing[device] {
			return nil, &media.PermissionError{Device: device, Err: errors.New("busy")}
		}
		s.active++
		if s.active > s.maxActive {
			s.maxActive = s.active
		}
		return &fakeStream{source: s, r: iotest.OneByteReader(bytes.NewReader(s.output[device]))}, nil
	})
}

type sourceFunc func(context.Context) (media.Stream, error)

func (f sourceFunc) Open(ctx context.Context) (media.Stream, error) { return f(ctx) }

func TestPreviewSelectReleasesPrevious(t *testing.T) {
	source := &fakeSource{failing: map[string]bool{"/dev/video9": true}}
	preview := NewPreview(source.factory, testLogger())

	if err := preview.Select(context.Background(), "/dev/video0"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if err := preview.Select(context.Background(), "/dev/video1"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if source.maxActive != 1 {
		t.Errorf("Expected at most one open camera, got %d", source.maxActive)
	}
	if device, active := preview.Device(); !active || device != "/dev/video1" {
		t.Errorf("Expected /dev/video1 active, got %s %v", device, active)
	}

	if err := preview.Select(context.Background(), "/dev/video9"); err == nil {
		t.Error("Expected error for failing device")
	}
	if _, active := preview.Device(); active {
		t.Error("Expected preview to be inactive after failure")
	}
	if source.active != 0 {
		t.Errorf("Expected no open camera, got %d", source.active)
	}

	preview.Close()
}

type fakeFrames struct {
	device string
	active bool
	frame  []byte
	err    error
}

func (f fakeFrames) Device() (string, bool)       { return f.device, f.active }
func (f fakeFrames) LatestFrame() ([]byte, error) { return f.frame, f.err }

type fakeFrameBackend struct {
	images []string
	result *analysis.FrameResult
	err    error
}

func (b *fakeFrameBackend) AnalyzeFrame(_ context.Context, image string) (*analysis.FrameResult, error) {
	b.images = append(b.images, image)
	return b.result, b.err
}

type emotionSink struct {
	emotions []string
}

func (s *emotionSink) Alert(string)           {}
func (s *emotionSink) SetInput(string)        {}
func (s *emotionSink) SetEmotion(text string) { s.emotions = append(s.emotions, text) }
func (s *emotionSink) SetResponse(string)     {}
func (s *emotionSink) ShowAudio(string)       {}

func TestAnalyzeOnce(t *testing.T) {
	tests := []struct {
		name       string
		active     bool
		frameErr   error
		result     *analysis.FrameResult
		backendErr error
		wantImages int
		want       []string
	}{
		{
			name:       "emotion with confidence",
			active:     true,
			result:     &analysis.FrameResult{Emotion: "happy", Confidence: analysis.NewConfidence(87)},
			wantImages: 1,
			want:       []string{"happy (87%)"},
		},
		{
			name:       "no emotion",
			active:     true,
			result:     &analysis.FrameResult{},
			wantImages: 1,
			want:       []string{NoEmotion},
		},
		{
			name:       "backend error is silent",
			active:     true,
			backendErr: errors.New("boom"),
			wantImages: 1,
		},
		{
			name:     "missing frame is silent",
			active:   true,
			frameErr: ErrNoFrame,
		},
		{
			name: "inactive preview",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := fakeFrames{device: "/dev/video0", active: tt.active, frame: []byte{0xff, 0xd8, 0xff, 0xd9}, err: tt.frameErr}
			backend := &fakeFrameBackend{result: tt.result, err: tt.backendErr}
			sink := &emotionSink{}

			analyzer := NewFrameAnalyzer(frames, backend, sink, 0, testLogger(), nil)
			analyzer.AnalyzeOnce(context.Background())

			if len(backend.images) != tt.wantImages {
				t.Fatalf("Expected %d images sent, got %d", tt.wantImages, len(backend.images))
			}
			if tt.wantImages > 0 && backend.images[0] != "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(frames.frame) {
				t.Errorf("Unexpected image payload %q", backend.images[0])
			}
			if len(sink.emotions) != len(tt.want) {
				t.Fatalf("Expected emotions %v, got %v", tt.want, sink.emotions)
			}
			for i := range tt.want {
				if sink.emotions[i] != tt.want[i] {
					t.Errorf("Expected %q, got %q", tt.want[i], sink.emotions[i])
				}
			}
		})
	}
}

func jpeg(body ...byte) []byte {
	frame := append([]byte{0xff, 0xd8}, body...)
	return append(frame, 0xff, 0xd9)
}

func TestSplitJPEG(t *testing.T) {
	first := jpeg(0x01, 0xff, 0x00, 0x02)
	second := jpeg(0x03, 0xff, 0xd0, 0x04)

	var stream []byte
	stream = append(stream, 0x00, 0xff)
	stream = append(stream, first...)
	stream = append(stream, 0x42)
	stream = append(stream, second...)
	stream = append(stream, 0xff, 0xd8, 0x05)

	scanner := newFrameScanner(iotest.OneByteReader(bytes.NewReader(stream)))
	var frames [][]byte
	for scanner.Scan() {
		frames = append(frames, append([]byte(nil), scanner.Bytes()...))
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], first) || !bytes.Equal(frames[1], second) {
		t.Errorf("Unexpected frames % x", frames)
	}
}

func waitForFrame(t *testing.T, preview *Preview, want []byte) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if frame, err := preview.LatestFrame(); err == nil && bytes.Equal(frame, want) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	frame, err := preview.LatestFrame()
	t.Fatalf("Expected frame % x, got % x (%v)", want, frame, err)
}

func TestPreviewServesFramesFromItsOwnStream(t *testing.T) {
	older := jpeg(0x10, 0x11)
	latest := jpeg(0x20, 0xff, 0x00, 0x21)

	source := &fakeSource{output: map[string][]byte{
		"/dev/video0": append(append([]byte{0x00}, older...), latest...),
	}}
	preview := NewPreview(source.factory, testLogger())

	if _, err := preview.LatestFrame(); !errors.Is(err, ErrPreviewInactive) {
		t.Errorf("Expected inactive preview error, got %v", err)
	}

	if err := preview.Select(context.Background(), "/dev/video0"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	defer preview.Close()

	waitForFrame(t, preview, latest)

	backend := &fakeFrameBackend{result: &analysis.FrameResult{Emotion: "calm"}}
	sink := &emotionSink{}
	analyzer := NewFrameAnalyzer(preview, backend, sink, 0, testLogger(), nil)
	analyzer.AnalyzeOnce(context.Background())
	analyzer.AnalyzeOnce(context.Background())

	if len(backend.images) != 2 {
		t.Fatalf("Expected 2 images sent, got %d", len(backend.images))
	}
	for _, image := range backend.images {
		if image != EncodeFrame(latest) {
			t.Errorf("Expected the latest preview frame, got %q", image)
		}
	}

	source.mu.Lock()
	opened := len(source.opened)
	source.mu.Unlock()
	if opened != 1 {
		t.Errorf("Expected the camera to be opened once for preview and frames, got %d", opened)
	}
	if len(sink.emotions) != 2 || sink.emotions[0] != "calm" {
		t.Errorf("Unexpected emotions %v", sink.emotions)
	}
}

func TestPreviewFrameResetOnSelect(t *testing.T) {
	source := &fakeSource{output: map[string][]byte{"/dev/video0": jpeg(0x01)}}
	preview := NewPreview(source.factory, testLogger())

	if err := preview.Select(context.Background(), "/dev/video0"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	waitForFrame(t, preview, jpeg(0x01))

	if err := preview.Select(context.Background(), "/dev/video1"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if _, err := preview.LatestFrame(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected no frame from the new device, got %v", err)
	}

	preview.Close()
	if _, err := preview.LatestFrame(); !errors.Is(err, ErrPreviewInactive) {
		t.Errorf("Expected inactive preview error after close, got %v", err)
	}
}
