package vad

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// fullScaleRMS is the RMS energy treated as certain voice activity.
const fullScaleRMS = 10000.0

// Detector is an energy-based voice activity detector over little-endian
// PCM-16 bytes. It accepts arbitrary write boundaries and evaluates complete
// windows only.
type Detector struct {
	threshold  float32
	windowSize int // samples per window

	pending []byte

	totalWindows uint64
	voiceWindows uint64
	lastLevel    float32
	peakLevel    float32

	mu sync.Mutex
}

// Stats represents detector statistics
type Stats struct {
	TotalWindows    uint64  `json:"total_windows"`
	VoiceWindows    uint64  `json:"voice_windows"`
	VoicePercentage float64 `json:"voice_percentage"`
	PeakLevel       float32 `json:"peak_level"`
	Threshold       float32 `json:"threshold"`
}

// NewDetector creates a detector that flags windows whose normalized energy
// reaches threshold
func NewDetector(threshold float32, windowSize int) (*Detector, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}

	return &Detector{
		threshold:  threshold,
		windowSize: windowSize,
		pending:    make([]byte, 0, windowSize*2),
	}, nil
}

// Write feeds PCM bytes to the detector. It never fails.
func (d *Detector) Write(pcm []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = append(d.pending, pcm...)

	windowBytes := d.windowSize * 2
	offset := 0
	for len(d.pending)-offset >= windowBytes {
		d.processWindow(d.pending[offset : offset+windowBytes])
		offset += windowBytes
	}

	// Keep the remainder, including a dangling odd byte, for the next write
	d.pending = append(d.pending[:0], d.pending[offset:]...)

	return len(pcm), nil
}

// processWindow computes the normalized RMS energy of one window
func (d *Detector) processWindow(window []byte) {
	var energy float64
	samples := len(window) / 2
	for i := 0; i < samples; i++ {
		sample := float64(int16(binary.LittleEndian.Uint16(window[i*2:])))
		energy += sample * sample
	}
	energy = math.Sqrt(energy / float64(samples))

	level := float32(math.Min(energy/fullScaleRMS, 1.0))

	d.totalWindows++
	if level >= d.threshold {
		d.voiceWindows++
	}
	d.lastLevel = level
	if level > d.peakLevel {
		d.peakLevel = level
	}
}

// Level returns the normalized energy of the most recent window
func (d *Detector) Level() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastLevel
}

// HasVoice reports whether any evaluated window reached the threshold
func (d *Detector) HasVoice() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voiceWindows > 0
}

// GetStats returns detector statistics
func (d *Detector) GetStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	percentage := float64(0)
	if d.totalWindows > 0 {
		percentage = float64(d.voiceWindows) / float64(d.totalWindows) * 100
	}

	return Stats{
		TotalWindows:    d.totalWindows,
		VoiceWindows:    d.voiceWindows,
		VoicePercentage: percentage,
		PeakLevel:       d.peakLevel,
		Threshold:       d.threshold,
	}
}
