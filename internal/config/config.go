package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvBaseURL  = "VOICECLIENT_BASE_URL"
	EnvLogLevel = "VOICECLIENT_LOG_LEVEL"
)

// Config represents the complete client configuration
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Audio    AudioConfig    `yaml:"audio"`
	Playback PlaybackConfig `yaml:"playback"`
	Camera   CameraConfig   `yaml:"camera"`
	Status   StatusConfig   `yaml:"status"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BackendConfig describes the analysis backend and its endpoints
type BackendConfig struct {
	BaseURL       string `yaml:"base_url"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxConcurrent int    `yaml:"max_concurrent"`
	VoicePath     string `yaml:"voice_path"`
	QueryPath     string `yaml:"query_path"`
	TextPath      string `yaml:"text_path"`
	FramePath     string `yaml:"frame_path"`
}

// AudioConfig contains microphone capture parameters
type AudioConfig struct {
	SampleRate     int      `yaml:"sample_rate"`
	Channels       int      `yaml:"channels"`
	BitDepth       int      `yaml:"bit_depth"`
	Format         string   `yaml:"format"`        // "wav" or "passthrough"
	FragmentSize   int      `yaml:"fragment_size"` // bytes per read from the capture process
	CaptureCommand []string `yaml:"capture_command"`
	VADThreshold   float32  `yaml:"vad_threshold"`
}

// PlaybackConfig controls how response audio is played
type PlaybackConfig struct {
	Enabled bool     `yaml:"enabled"`
	Command []string `yaml:"command"`
}

// CameraConfig contains camera enumeration, preview and frame analysis settings.
// The preview command shows the camera and writes MJPEG to stdout; analyzed
// frames are taken from that output.
type CameraConfig struct {
	DeviceGlob     string   `yaml:"device_glob"`
	PreviewCommand []string `yaml:"preview_command"`
	FrameInterval  int      `yaml:"frame_interval"` // seconds
}

// StatusConfig contains the local status/metrics HTTP server configuration
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a configuration that talks to a backend on localhost:5000
// and captures 16 kHz mono PCM with arecord.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:       "http://localhost:5000",
			Timeout:       60,
			MaxConcurrent: 4,
			VoicePath:     "/analyze_voice",
			QueryPath:     "/api/query",
			TextPath:      "/analyze",
			FramePath:     "/analyze_frame",
		},
		Audio: AudioConfig{
			SampleRate:   16000,
			Channels:     1,
			BitDepth:     16,
			Format:       "wav",
			FragmentSize: 4096,
			CaptureCommand: []string{
				"arecord", "-q", "-t", "raw", "-f", "S16_LE", "-r", "16000", "-c", "1",
			},
			VADThreshold: 0.05,
		},
		Playback: PlaybackConfig{
			Enabled: true,
			Command: []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "-"},
		},
		Camera: CameraConfig{
			DeviceGlob: "/dev/video*",
			PreviewCommand: []string{
				"ffmpeg", "-loglevel", "quiet", "-f", "v4l2", "-i", "{device}",
				"-f", "sdl2", "Camera preview",
				"-r", "2", "-f", "mjpeg", "-",
			},
			FrameInterval: 10,
		},
		Status: StatusConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    9091,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads the configuration file at path on top of Default, applies
// environment overrides and validates the result. A missing file is only an
// error when required is set.
func Load(path string, required bool) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// ApplyEnv loads a .env file from the working directory, if any, and applies
// the VOICECLIENT_* overrides.
func (c *Config) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		c.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	return nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Backend.Validate(); err != nil {
		return fmt.Errorf("backend config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}

	if err := c.Camera.Validate(); err != nil {
		return fmt.Errorf("camera config: %w", err)
	}

	if err := c.Status.Validate(); err != nil {
		return fmt.Errorf("status config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates backend configuration
func (b *BackendConfig) Validate() error {
	if b.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}

	u, err := url.Parse(b.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got '%s'", b.BaseURL)
	}

	if b.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", b.Timeout)
	}

	if b.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", b.MaxConcurrent)
	}

	paths := map[string]string{
		"voice_path": b.VoicePath,
		"query_path": b.QueryPath,
		"text_path":  b.TextPath,
		"frame_path": b.FramePath,
	}
	for name, p := range paths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with '/', got '%s'", name, p)
		}
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	if a.Format != "wav" && a.Format != "passthrough" {
		return fmt.Errorf("format must be 'wav' or 'passthrough', got '%s'", a.Format)
	}

	if a.FragmentSize < 256 {
		return fmt.Errorf("fragment_size must be at least 256 bytes, got %d", a.FragmentSize)
	}

	if len(a.CaptureCommand) == 0 {
		return fmt.Errorf("capture_command cannot be empty")
	}

	if a.VADThreshold < 0 || a.VADThreshold > 1 {
		return fmt.Errorf("vad_threshold must be between 0 and 1, got %f", a.VADThreshold)
	}

	return nil
}

// Validate validates playback configuration
func (p *PlaybackConfig) Validate() error {
	if p.Enabled && len(p.Command) == 0 {
		return fmt.Errorf("command cannot be empty when playback is enabled")
	}
	return nil
}

// Validate validates camera configuration
func (c *CameraConfig) Validate() error {
	if c.DeviceGlob == "" {
		return fmt.Errorf("device_glob cannot be empty")
	}

	if len(c.PreviewCommand) == 0 {
		return fmt.Errorf("preview_command cannot be empty")
	}

	if c.FrameInterval < 1 {
		return fmt.Errorf("frame_interval must be at least 1 second, got %d", c.FrameInterval)
	}

	return nil
}

// Validate validates status server configuration
func (s *StatusConfig) Validate() error {
	if s.Enabled {
		if s.Port < 1 || s.Port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
		}

		if s.Address == "" {
			return fmt.Errorf("address cannot be empty when the status server is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTimeoutDuration returns the backend timeout as a time.Duration
func (b *BackendConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(b.Timeout) * time.Second
}

// GetFrameIntervalDuration returns the frame capture interval as a time.Duration
func (c *CameraConfig) GetFrameIntervalDuration() time.Duration {
	return time.Duration(c.FrameInterval) * time.Second
}

// Addr returns the listen address of the status server
func (s *StatusConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}
