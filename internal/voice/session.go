package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nourmokhtar/breastCancerBOT/internal/audio"
	"github.com/nourmokhtar/breastCancerBOT/internal/media"
	"github.com/nourmokhtar/breastCancerBOT/internal/vad"
)

// State is the recorder state of a session
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
)

// Recording formats
const (
	FormatWAV         = "wav"
	FormatPassthrough = "passthrough"
)

// vadWindowSize is the detector window in samples
const vadWindowSize = 512

// SessionConfig describes how captured bytes become fragments
type SessionConfig struct {
	Format       string // FormatWAV prepends a streaming WAV header to raw PCM
	SampleRate   int
	Channels     int
	FragmentSize int
	VADThreshold float32
}

// Session is one recording from start to release. It exclusively owns its
// stream.
type Session struct {
	ID        string
	StartTime time.Time

	config    SessionConfig
	stream    media.Stream
	fragments *audio.FragmentBuffer
	detector  *vad.Detector // nil for passthrough recordings
	logger    *slog.Logger

	state   State
	readErr error
	done    chan struct{} // closed when the capture loop exits

	finalizeOnce sync.Once
	releaseOnce  sync.Once
	releasedAt   time.Time

	mu sync.RWMutex
}

// SessionInfo is a snapshot of a session for display and monitoring
type SessionInfo struct {
	ID        string        `json:"id"`
	State     State         `json:"state"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Fragments int           `json:"fragments"`
	Bytes     int           `json:"bytes"`
	Level     float32       `json:"level"`
	Voice     *vad.Stats    `json:"voice,omitempty"`
}

// newSession wraps an acquired stream. For WAV recordings the header is the
// first fragment.
func newSession(stream media.Stream, config SessionConfig, logger *slog.Logger) (*Session, error) {
	if config.FragmentSize <= 0 {
		config.FragmentSize = 4096
	}

	s := &Session{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
		config:    config,
		stream:    stream,
		fragments: audio.NewFragmentBuffer(),
		state:     StateRecording,
		done:      make(chan struct{}),
	}
	s.logger = logger.With(slog.String("session_id", s.ID))

	if config.Format == FormatWAV {
		header, err := audio.StreamingHeader(config.SampleRate, config.Channels)
		if err != nil {
			return nil, fmt.Errorf("failed to build WAV header: %w", err)
		}
		s.fragments.Append(header)

		detector, err := vad.NewDetector(config.VADThreshold, vadWindowSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create voice detector: %w", err)
		}
		s.detector = detector
	}

	return s, nil
}

// run is the capture loop: the single producer of fragments
func (s *Session) run() {
	defer close(s.done)

	buf := make([]byte, s.config.FragmentSize)
	for {
		n, err := s.stream.Read(buf)
		if n > 0 {
			if appendErr := s.fragments.Append(buf[:n]); appendErr != nil {
				return
			}
			if s.detector != nil {
				s.detector.Write(buf[:n])
			}
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.mu.Lock()
				s.readErr = err
				s.mu.Unlock()
			}
			return
		}
	}
}

// finalize stops capture, drains what the device already produced, releases
// the stream and builds the upload payload. It runs at most once; later calls
// return nil.
func (s *Session) finalize(ctx context.Context) *audio.Payload {
	var payload *audio.Payload

	s.finalizeOnce.Do(func() {
		s.setState(StateStopping)

		if err := s.stream.Stop(); err != nil {
			s.logger.Warn("Failed to stop capture stream", slog.String("error", err.Error()))
		}

		select {
		case <-s.done:
		case <-ctx.Done():
			s.logger.Warn("Stop interrupted before capture drained", slog.String("error", ctx.Err().Error()))
		}

		s.release()
		<-s.done

		if err := s.ReadErr(); err != nil && !isClosedPipe(err) {
			s.logger.Warn("Capture stream ended with error", slog.String("error", err.Error()))
		}

		payload = audio.NewVoicePayload(s.fragments)
	})

	return payload
}

// abort releases the stream without producing a payload
func (s *Session) abort() {
	s.finalizeOnce.Do(func() {
		s.release()
		<-s.done
		s.fragments.Seal()
	})
}

// release closes the stream exactly once and returns the session to idle
func (s *Session) release() {
	s.releaseOnce.Do(func() {
		if err := s.stream.Close(); err != nil {
			s.logger.Warn("Failed to release capture stream", slog.String("error", err.Error()))
		}

		s.mu.Lock()
		s.state = StateIdle
		s.releasedAt = time.Now()
		s.mu.Unlock()
	})
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// State returns the current recorder state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ReadErr returns the error that ended the capture loop, if any
func (s *Session) ReadErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readErr
}

// Duration returns how long the session held the stream
func (s *Session) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.releasedAt.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.releasedAt.Sub(s.StartTime)
}

// HasVoice reports whether speech-like energy was captured. Passthrough
// recordings are opaque and always report true.
func (s *Session) HasVoice() bool {
	if s.detector == nil {
		return true
	}
	return s.detector.HasVoice()
}

// GetSessionInfo returns a snapshot of the session
func (s *Session) GetSessionInfo() SessionInfo {
	stats := s.fragments.GetStats()
	info := SessionInfo{
		ID:        s.ID,
		State:     s.State(),
		StartTime: s.StartTime,
		Duration:  s.Duration(),
		Fragments: stats.Fragments,
		Bytes:     stats.Bytes,
	}

	if s.detector != nil {
		voice := s.detector.GetStats()
		info.Voice = &voice
		info.Level = s.detector.Level()
	}

	return info
}

func isClosedPipe(err error) bool {
	return errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed)
}
