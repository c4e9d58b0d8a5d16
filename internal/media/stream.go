package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	defaultProbe     = 200 * time.Millisecond
	defaultStopGrace = 2 * time.Second
	maxStderr        = 4096
)

// Stream is a live capture stream exclusively owned by its opener.
type Stream interface {
	io.Reader

	// Stop asks the device to finish. Read keeps returning the data that was
	// already produced and then io.EOF.
	Stop() error

	// Close releases the device. It is safe to call more than once and after
	// Stop.
	Close() error
}

// Source opens capture streams.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// CommandSource captures from the stdout of an external command such as
// arecord or ffmpeg.
type CommandSource struct {
	Device    string   // human readable device name for errors
	Args      []string // argv, Args[0] is the program
	Probe     time.Duration
	StopGrace time.Duration
}

// NewCommandSource creates a source for the given device and argv
func NewCommandSource(device string, args []string) *CommandSource {
	return &CommandSource{
		Device:    device,
		Args:      args,
		Probe:     defaultProbe,
		StopGrace: defaultStopGrace,
	}
}

// Open starts the command. A command that cannot be started, or that fails
// within the probe window, is reported as a PermissionError.
func (s *CommandSource) Open(ctx context.Context) (Stream, error) {
	if len(s.Args) == 0 {
		return nil, &PermissionError{Device: s.Device, Err: errors.New("no capture command configured")}
	}

	// Stdout goes through an os.Pipe so that Wait never closes our read end
	// before the remaining data is drained.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}

	cmd := exec.Command(s.Args[0], s.Args[1:]...)
	cmd.Stdout = pw

	st := &commandStream{
		cmd:       cmd,
		r:         pr,
		exited:    make(chan struct{}),
		stopGrace: s.StopGrace,
	}
	cmd.Stderr = &st.stderr

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &PermissionError{Device: s.Device, Err: err}
	}
	pw.Close()

	go func() {
		st.waitErr = cmd.Wait()
		close(st.exited)
	}()

	probe := s.Probe
	if probe <= 0 {
		probe = defaultProbe
	}

	timer := time.NewTimer(probe)
	defer timer.Stop()

	select {
	case <-st.exited:
		if st.waitErr != nil {
			pr.Close()
			return nil, &PermissionError{Device: s.Device, Detail: st.stderr.String(), Err: st.waitErr}
		}
	case <-timer.C:
	case <-ctx.Done():
		st.Close()
		return nil, ctx.Err()
	}

	return st, nil
}

// commandStream is a Stream over a running command
type commandStream struct {
	cmd       *exec.Cmd
	r         *os.File
	stderr    limitedBuffer
	stopGrace time.Duration

	exited  chan struct{}
	waitErr error

	stopOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

func (s *commandStream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Stop interrupts the command so it can flush its output, then kills it if
// it has not exited after the grace period.
func (s *commandStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		select {
		case <-s.exited:
			return
		default:
		}

		if sigErr := s.cmd.Process.Signal(os.Interrupt); sigErr != nil {
			err = s.cmd.Process.Kill()
			return
		}

		grace := s.stopGrace
		if grace <= 0 {
			grace = defaultStopGrace
		}
		go func() {
			select {
			case <-s.exited:
			case <-time.After(grace):
				s.cmd.Process.Kill()
			}
		}()
	})
	return err
}

// Close kills the command if it is still running, reaps it and closes the
// read end of the pipe.
func (s *commandStream) Close() error {
	s.closeOnce.Do(func() {
		select {
		case <-s.exited:
		default:
			s.cmd.Process.Kill()
			<-s.exited
		}
		s.closeErr = s.r.Close()
	})
	return s.closeErr
}

// limitedBuffer keeps the first maxStderr bytes written to it
type limitedBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := maxStderr - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}

// Expand replaces {name} placeholders in args with values from vars
func Expand(args []string, vars map[string]string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		for name, value := range vars {
			arg = strings.ReplaceAll(arg, "{"+name+"}", value)
		}
		out[i] = arg
	}
	return out
}
