package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nourmokhtar/breastCancerBOT/internal/audio"
	"github.com/nourmokhtar/breastCancerBOT/internal/camera"
	"github.com/nourmokhtar/breastCancerBOT/internal/chat"
	"github.com/nourmokhtar/breastCancerBOT/internal/config"
	"github.com/nourmokhtar/breastCancerBOT/internal/render"
	"github.com/nourmokhtar/breastCancerBOT/internal/ui"
	"github.com/nourmokhtar/breastCancerBOT/internal/voice"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive assistant page",
	Args:  cobra.NoArgs,
	RunE:  runUI,
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record one voice message and print the analysis",
	Args:  cobra.NoArgs,
	RunE:  runRecord,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload an existing recording for voice analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Ask the assistant a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <text>",
	Short: "Analyze the emotions in a short text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

var camerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "List video input devices",
	Args:  cobra.NoArgs,
	RunE:  runCameras,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Preview a camera and periodically analyze its frames",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// pageActions connects the interactive page to the voice and text flows
type pageActions struct {
	controller *voice.Controller
	assistant  *chat.Assistant
}

func (p pageActions) ToggleRecording(ctx context.Context) error {
	return p.controller.Toggle(ctx)
}

func (p pageActions) Ask(ctx context.Context, message string) error {
	return p.assistant.Ask(ctx, message)
}

func (p pageActions) Analyze(ctx context.Context, text string) error {
	return p.assistant.Analyze(ctx, text)
}

func runUI(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.shutdown()

	ctx, stop := signalContext()
	defer stop()

	sink := ui.NewSink()
	controller := a.controller(a.dispatcher(sink))
	controller.SetObserver(sink.Status)
	defer controller.Wait()
	defer controller.Close()

	assistant := chat.NewAssistant(a.client, sink, a.logger, a.metrics)

	if err := a.startStatus(controller); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return ui.Run(ctx, pageActions{controller: controller, assistant: assistant}, sink)
	})

	if device, _ := cmd.Flags().GetString("camera"); device != "" {
		preview := camera.NewPreview(camera.CommandSourceFactory(a.cfg.Camera.PreviewCommand), a.logger)
		defer preview.Close()

		if err := preview.Select(ctx, device); err == nil {
			analyzer := a.frameAnalyzer(preview, sink)
			g.Go(func() error {
				return analyzer.Run(ctx)
			})
		}
	}

	return g.Wait()
}

func runRecord(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.shutdown()

	ctx, stop := signalContext()
	defer stop()

	sink := render.NewTerminalSink(os.Stdout)
	controller := a.controller(a.dispatcher(sink))
	defer controller.Close()

	if err := a.startStatus(controller); err != nil {
		return err
	}

	if _, err := controller.Start(ctx); err != nil {
		return err
	}

	duration, _ := cmd.Flags().GetDuration("duration")
	if duration > 0 {
		fmt.Fprintf(os.Stderr, "Recording for %s...\n", duration)
		select {
		case <-time.After(duration):
		case <-ctx.Done():
		}
	} else {
		fmt.Fprintln(os.Stderr, "Recording, press Ctrl+C to stop...")
		<-ctx.Done()
	}

	// The signal context is done by now; stopping must still drain
	if err := controller.Stop(context.Background()); err != nil {
		return err
	}
	controller.Wait()
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.shutdown()

	ctx, stop := signalContext()
	defer stop()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read recording: %w", err)
	}

	if info, err := audio.GetWAVInfo(data); err != nil {
		a.logger.Warn("File is not a WAV recording, uploading as is",
			slog.String("file", args[0]),
			slog.String("error", err.Error()),
		)
	} else {
		a.logger.Info("Uploading recording",
			slog.String("file", args[0]),
			slog.Uint64("sample_rate", uint64(info.SampleRate)),
			slog.Float64("duration_seconds", info.Duration),
		)
	}

	payload := audio.NewFilePayload(data)
	result, err := a.client.AnalyzeVoice(ctx, payload, uuid.NewString())

	sink := render.NewTerminalSink(os.Stdout)
	a.dispatcher(sink).Dispatch(ctx, result, err)
	return err
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.shutdown()

	ctx, stop := signalContext()
	defer stop()

	assistant := chat.NewAssistant(a.client, render.NewTerminalSink(os.Stdout), a.logger, a.metrics)
	return assistant.Ask(ctx, strings.Join(args, " "))
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.shutdown()

	ctx, stop := signalContext()
	defer stop()

	assistant := chat.NewAssistant(a.client, render.NewTerminalSink(os.Stdout), a.logger, a.metrics)
	return assistant.Analyze(ctx, strings.Join(args, " "))
}

func runCameras(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	devices, err := camera.NewLister(cfg.Camera.DeviceGlob).ListDevices()
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No cameras found.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Device", "Label"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)

	for i, device := range devices {
		table.Append([]string{fmt.Sprintf("%d", i+1), device.Path, device.Label})
	}
	table.Render()
	return nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.shutdown()

	ctx, stop := signalContext()
	defer stop()

	device, _ := cmd.Flags().GetString("device")
	if device == "" {
		devices, err := camera.NewLister(a.cfg.Camera.DeviceGlob).ListDevices()
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			return errors.New("no cameras found")
		}
		device = devices[0].Path
	}

	preview := camera.NewPreview(camera.CommandSourceFactory(a.cfg.Camera.PreviewCommand), a.logger)
	defer preview.Close()

	if err := preview.Select(ctx, device); err != nil {
		return err
	}

	if err := a.startStatus(idleSessions{}); err != nil {
		return err
	}

	analyzer := a.frameAnalyzer(preview, render.NewTerminalSink(os.Stdout))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return analyzer.Run(ctx)
	})
	return g.Wait()
}

func (a *app) frameAnalyzer(frames camera.FrameSource, sink render.Sink) *camera.FrameAnalyzer {
	return camera.NewFrameAnalyzer(frames, a.client, sink, a.cfg.Camera.GetFrameIntervalDuration(), a.logger, a.metrics)
}
