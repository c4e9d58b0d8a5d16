package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "voiceclient"
	serviceVersion    = "1.0.0"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:          serviceName,
	Short:        "Voice and emotion assistant client",
	Long:         `voiceclient records voice, text and camera input, sends it to the analysis backend and renders the detected emotion and the assistant's reply.`,
	Version:      serviceVersion,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	recordCmd.Flags().Duration("duration", 0, "Stop after this long (default: wait for Ctrl+C)")
	watchCmd.Flags().String("device", "", "Camera device to watch (default: first camera)")
	uiCmd.Flags().String("camera", "", "Also analyze frames from this camera device")

	rootCmd.AddCommand(uiCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(camerasCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
