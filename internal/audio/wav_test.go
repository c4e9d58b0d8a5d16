package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// sinePCM generates little-endian PCM-16 bytes of a 440Hz tone
func sinePCM(sampleRate int, seconds float64) []byte {
	numSamples := int(float64(sampleRate) * seconds)
	buf := new(bytes.Buffer)
	for i := 0; i < numSamples; i++ {
		t := float64(i) / float64(sampleRate)
		sample := int16(16383.0 * math.Sin(2*math.Pi*440*t))
		binary.Write(buf, binary.LittleEndian, sample)
	}
	return buf.Bytes()
}

func TestEncodeWAV(t *testing.T) {
	sampleRate := 16000
	pcm := sinePCM(sampleRate, 0.1)

	wavData, err := EncodeWAV(pcm, sampleRate, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	expectedSize := 44 + len(pcm)
	if len(wavData) != expectedSize {
		t.Errorf("Expected WAV size %d, got %d", expectedSize, len(wavData))
	}

	if err := ValidateWAV(wavData); err != nil {
		t.Errorf("Generated WAV is invalid: %v", err)
	}

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("Failed to get WAV info: %v", err)
	}

	if info.SampleRate != uint32(sampleRate) {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, info.SampleRate)
	}

	if info.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", info.Channels)
	}

	if info.BitsPerSample != 16 {
		t.Errorf("Expected 16 bits per sample, got %d", info.BitsPerSample)
	}

	if info.Streaming {
		t.Error("Expected a sized WAV, got streaming")
	}

	if math.Abs(info.Duration-0.1) > 0.001 {
		t.Errorf("Expected duration 0.100, got %.3f", info.Duration)
	}

	if !bytes.Equal(wavData[44:], pcm) {
		t.Error("PCM payload was not copied verbatim after the header")
	}
}

func TestEncodeWAVInvalidInput(t *testing.T) {
	if _, err := EncodeWAV(nil, 8000, 1); err == nil {
		t.Error("Expected error for empty audio")
	}

	if _, err := EncodeWAV([]byte{1, 2, 3}, 8000, 1); err == nil {
		t.Error("Expected error for odd byte count")
	}

	if _, err := EncodeWAV([]byte{1, 2}, 0, 1); err == nil {
		t.Error("Expected error for zero sample rate")
	}

	if _, err := EncodeWAV([]byte{1, 2}, 8000, 6); err == nil {
		t.Error("Expected error for unsupported channel count")
	}
}

func TestStreamingHeader(t *testing.T) {
	header, err := StreamingHeader(16000, 1)
	if err != nil {
		t.Fatalf("StreamingHeader failed: %v", err)
	}

	if len(header) != 44 {
		t.Fatalf("Expected 44-byte header, got %d", len(header))
	}

	if err := ValidateWAV(header); err != nil {
		t.Errorf("Streaming header is invalid: %v", err)
	}

	if size := binary.LittleEndian.Uint32(header[40:44]); size != 0xFFFFFFFF {
		t.Errorf("Expected unknown data size marker, got %#x", size)
	}

	// One second of audio appended after the header
	stream := append(header, sinePCM(16000, 1.0)...)
	info, err := GetWAVInfo(stream)
	if err != nil {
		t.Fatalf("GetWAVInfo failed: %v", err)
	}

	if !info.Streaming {
		t.Error("Expected streaming flag to be set")
	}

	if math.Abs(info.Duration-1.0) > 0.001 {
		t.Errorf("Expected duration 1.000, got %.3f", info.Duration)
	}

	if _, err := StreamingHeader(0, 1); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestValidateWAV(t *testing.T) {
	if err := ValidateWAV([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for too short WAV data")
	}

	invalidWAV := make([]byte, 50)
	copy(invalidWAV[0:4], []byte("FAKE"))
	if err := ValidateWAV(invalidWAV); err == nil {
		t.Error("Expected error for invalid RIFF header")
	}
}

func TestGetWAVInfoStereo(t *testing.T) {
	pcm := make([]byte, 8000*2*2) // one second of 8kHz stereo
	wavData, err := EncodeWAV(pcm, 8000, 2)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("GetWAVInfo failed: %v", err)
	}

	if info.NumSamples != 8000 {
		t.Errorf("Expected 8000 frames, got %d", info.NumSamples)
	}

	if math.Abs(info.Duration-1.0) > 0.001 {
		t.Errorf("Expected duration 1.000, got %.3f", info.Duration)
	}
}
