package render

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nourmokhtar/breastCancerBOT/internal/analysis"
	"github.com/nourmokhtar/breastCancerBOT/internal/media"
	"github.com/nourmokhtar/breastCancerBOT/internal/metrics"
)

// GenericVoiceFailure is shown when a voice upload fails without a message
// from the server
const GenericVoiceFailure = "Failed to analyze voice. See logs for details."

// URLResolver turns a URL from a response into an absolute one
type URLResolver interface {
	ResolveURL(ref string) (string, error)
}

// Dispatcher renders voice analysis outcomes into a sink and starts playback
// of response audio
type Dispatcher struct {
	sink     Sink
	player   media.Player
	resolver URLResolver
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. player and resolver may be nil, in which
// case audio is shown but not played.
func NewDispatcher(sink Sink, player media.Player, resolver URLResolver, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		sink:     sink,
		player:   player,
		resolver: resolver,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// SetClock replaces the time source used for cache busting
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Sink returns the sink the dispatcher renders into
func (d *Dispatcher) Sink() Sink {
	return d.sink
}

// Dispatch renders the outcome of one voice upload. Errors are converted to
// alerts and log lines here and never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, result *analysis.VoiceResult, err error) {
	if err != nil {
		var appErr *analysis.ApplicationError
		if errors.As(err, &appErr) {
			d.logger.Warn("Server reported an error", slog.String("error", appErr.Message))
			d.sink.Alert(appErr.Message)
			return
		}

		d.logger.Error("Error uploading audio", slog.String("error", err.Error()))
		d.sink.Alert(GenericVoiceFailure)
		return
	}

	if result == nil {
		return
	}

	if result.Error != "" {
		d.logger.Warn("Server reported an error", slog.String("error", result.Error))
		d.sink.Alert(result.Error)
		return
	}

	if result.Transcription != "" {
		d.sink.SetInput(result.Transcription)
		d.metrics.RecordFieldRendered("transcription")
	}

	if raw, ok := result.Confidence.Ignored(); ok {
		d.logger.Warn("Ignoring confidence of unexpected type", slog.String("confidence", raw))
	}

	if result.Emotion != "" {
		d.sink.SetEmotion(FormatEmotion(result.Emotion, result.Confidence))
		d.metrics.RecordFieldRendered("emotion")
	}

	if result.Response != "" {
		d.sink.SetResponse(result.Response)
		d.metrics.RecordFieldRendered("response")
	}

	if result.AudioURL != "" {
		src := BustCache(result.AudioURL, d.now())
		d.sink.ShowAudio(src)
		d.metrics.RecordFieldRendered("audio_url")
		d.play(ctx, src)
	}
}

// play starts playback; any failure is logged only
func (d *Dispatcher) play(ctx context.Context, src string) {
	if d.player == nil {
		return
	}

	target := src
	if d.resolver != nil {
		resolved, err := d.resolver.ResolveURL(src)
		if err != nil {
			d.playbackFailed(&media.PlaybackError{Source: src, Err: err})
			return
		}
		target = resolved
	}

	if err := d.player.Play(ctx, target); err != nil {
		d.playbackFailed(err)
	}
}

func (d *Dispatcher) playbackFailed(err error) {
	d.metrics.RecordPlaybackError()
	d.logger.Warn("Audio playback error", slog.String("error", err.Error()))
}
