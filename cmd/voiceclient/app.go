package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nourmokhtar/breastCancerBOT/internal/analysis"
	"github.com/nourmokhtar/breastCancerBOT/internal/config"
	"github.com/nourmokhtar/breastCancerBOT/internal/media"
	"github.com/nourmokhtar/breastCancerBOT/internal/metrics"
	"github.com/nourmokhtar/breastCancerBOT/internal/render"
	"github.com/nourmokhtar/breastCancerBOT/internal/server"
	"github.com/nourmokhtar/breastCancerBOT/internal/voice"
)

// uiLogFile receives logs of the interactive page when logging would
// otherwise go to the terminal
const uiLogFile = "voiceclient.log"

// app holds the components shared by all commands
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	client   *analysis.Client
	status   *server.HTTPServer
}

// newApp loads configuration and builds the logger, metrics and backend
// client. The config file is only required when --config was given.
func newApp(cmd *cobra.Command, interactive bool) (*app, error) {
	cfg, err := config.Load(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
		if err := cfg.Logging.Validate(); err != nil {
			return nil, err
		}
	}
	if interactive && (cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" || cfg.Logging.Output == "stderr") {
		cfg.Logging.Output = uiLogFile
	}

	logger := initLogger(cfg.Logging)
	logger.Info("Client starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("command", cmd.Name()),
		slog.String("backend", cfg.Backend.BaseURL),
		slog.String("audio_format", cfg.Audio.Format),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
	)

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	client, err := analysis.NewClient(analysis.Config{
		BaseURL:       cfg.Backend.BaseURL,
		Timeout:       cfg.Backend.GetTimeoutDuration(),
		MaxConcurrent: cfg.Backend.MaxConcurrent,
		VoicePath:     cfg.Backend.VoicePath,
		QueryPath:     cfg.Backend.QueryPath,
		TextPath:      cfg.Backend.TextPath,
		FramePath:     cfg.Backend.FramePath,
		UserAgent:     serviceName + "/" + serviceVersion,
	}, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis client: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  m,
		client:   client,
	}, nil
}

func (a *app) player() media.Player {
	if !a.cfg.Playback.Enabled {
		return media.NopPlayer{}
	}
	return media.NewCommandPlayer(a.cfg.Playback.Command, a.client.HTTPClient(), a.logger)
}

func (a *app) dispatcher(sink render.Sink) *render.Dispatcher {
	return render.NewDispatcher(sink, a.player(), a.client, a.logger, a.metrics)
}

func (a *app) controller(dispatcher *render.Dispatcher) *voice.Controller {
	source := media.NewCommandSource("microphone", a.cfg.Audio.CaptureCommand)
	return voice.NewController(source, a.client, dispatcher, voice.SessionConfig{
		Format:       a.cfg.Audio.Format,
		SampleRate:   a.cfg.Audio.SampleRate,
		Channels:     a.cfg.Audio.Channels,
		FragmentSize: a.cfg.Audio.FragmentSize,
		VADThreshold: a.cfg.Audio.VADThreshold,
	}, a.logger, a.metrics)
}

// startStatus starts the status server when enabled
func (a *app) startStatus(sessions server.SessionSource) error {
	if !a.cfg.Status.Enabled {
		return nil
	}

	a.status = server.NewHTTPServer(a.cfg, a.logger, sessions, a.client, a.metrics, a.registry)
	return a.status.Start()
}

// shutdown stops the status server and logs final statistics
func (a *app) shutdown() {
	if a.status != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := a.status.Stop(ctx); err != nil {
			a.logger.Error("Error stopping status server", slog.String("error", err.Error()))
		}
	}

	stats := a.client.GetStats()
	a.logger.Info("Final backend statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Duration("avg_response_time", stats.AvgResponseTime),
	)
	a.logger.Info("Client stopped")
}

// idleSessions reports an idle recorder for commands without voice capture
type idleSessions struct{}

func (idleSessions) Status() voice.Status { return voice.Status{State: voice.StateIdle} }

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
