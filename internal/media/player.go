package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
)

// Player plays audio referenced by an absolute URL
type Player interface {
	Play(ctx context.Context, src string) error
}

// CommandPlayer fetches audio over HTTP and pipes it into an external player
// such as ffplay. Play returns once playback has started; the end of playback
// is only logged.
type CommandPlayer struct {
	Args       []string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewCommandPlayer creates a player running args with the audio on stdin
func NewCommandPlayer(args []string, client *http.Client, logger *slog.Logger) *CommandPlayer {
	if client == nil {
		client = http.DefaultClient
	}
	return &CommandPlayer{Args: args, HTTPClient: client, Logger: logger}
}

// Play starts playback of src
func (p *CommandPlayer) Play(ctx context.Context, src string) error {
	if len(p.Args) == 0 {
		return &PlaybackError{Source: src, Err: errors.New("no player command configured")}
	}

	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, src, nil)
	if err != nil {
		return &PlaybackError{Source: src, Err: err}
	}

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return &PlaybackError{Source: src, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return &PlaybackError{Source: src, Err: fmt.Errorf("HTTP error %d", resp.StatusCode)}
	}

	cmd := exec.Command(p.Args[0], p.Args[1:]...)
	cmd.Stdin = resp.Body

	if err := cmd.Start(); err != nil {
		resp.Body.Close()
		return &PlaybackError{Source: src, Err: err}
	}

	go func() {
		defer resp.Body.Close()
		if err := cmd.Wait(); err != nil && p.Logger != nil {
			p.Logger.Warn("Audio player exited with error",
				slog.String("source", src),
				slog.String("error", err.Error()),
			)
		}
	}()

	return nil
}

// NopPlayer discards playback requests. Used when playback is disabled.
type NopPlayer struct{}

func (NopPlayer) Play(context.Context, string) error { return nil }
