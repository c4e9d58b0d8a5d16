package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wavHeaderSize is the size of the canonical PCM WAV header
const wavHeaderSize = 44

// unknownSize marks the RIFF and data sizes of a recording whose length is
// not known when the header is written
const unknownSize = 0xFFFFFFFF

const (
	pcmFormat     = 1
	pcmBitDepth   = 16
	fmtChunkBytes = 16
)

// riffHeader is the on-disk layout of a canonical PCM WAV header
type riffHeader struct {
	RIFF          [4]byte
	RIFFSize      uint32 // everything after this field
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

// chunk magics and their offsets in a canonical header
var wavMagics = []struct {
	offset int
	magic  string
	part   string
}{
	{0, "RIFF", "RIFF header"},
	{8, "WAVE", "WAVE format"},
	{12, "fmt ", "fmt chunk"},
	{36, "data", "data chunk"},
}

func pcmHeader(sampleRate, channels int, dataSize uint32) riffHeader {
	blockAlign := uint16(channels) * pcmBitDepth / 8

	riffSize := uint32(unknownSize)
	if dataSize != unknownSize {
		riffSize = wavHeaderSize - 8 + dataSize
	}

	h := riffHeader{
		RIFFSize:      riffSize,
		FmtSize:       fmtChunkBytes,
		AudioFormat:   pcmFormat,
		Channels:      uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: pcmBitDepth,
		DataSize:      dataSize,
	}
	copy(h.RIFF[:], "RIFF")
	copy(h.WAVE[:], "WAVE")
	copy(h.Fmt[:], "fmt ")
	copy(h.Data[:], "data")
	return h
}

func checkFormat(sampleRate, channels int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels != 1 && channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", channels)
	}
	return nil
}

func writeHeader(buf *bytes.Buffer, h riffHeader) error {
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("encode WAV header: %w", err)
	}
	return nil
}

// StreamingHeader returns a 16-bit PCM WAV header for a recording whose
// length is not known yet. Readers take the data chunk as running to EOF.
func StreamingHeader(sampleRate, channels int) ([]byte, error) {
	if err := checkFormat(sampleRate, channels); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize)
	if err := writeHeader(&buf, pcmHeader(sampleRate, channels, unknownSize)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeWAV wraps little-endian PCM-16 bytes into a complete WAV file
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	switch {
	case len(pcm) == 0:
		return nil, fmt.Errorf("cannot encode empty audio data")
	case len(pcm)%2 != 0:
		return nil, fmt.Errorf("audio data length must be even (got %d bytes)", len(pcm))
	}

	if err := checkFormat(sampleRate, channels); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))
	if err := writeHeader(&buf, pcmHeader(sampleRate, channels, uint32(len(pcm)))); err != nil {
		return nil, err
	}
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// ValidateWAV checks the chunk layout of a canonical WAV header without
// looking at the samples
func ValidateWAV(data []byte) error {
	if len(data) < wavHeaderSize {
		return fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	for _, m := range wavMagics {
		if string(data[m.offset:m.offset+4]) != m.magic {
			return fmt.Errorf("invalid WAV file: missing %s", m.part)
		}
	}
	return nil
}

// WAVInfo describes the format and length of a WAV recording
type WAVInfo struct {
	SampleRate    uint32  `json:"sample_rate"`
	Channels      uint16  `json:"channels"`
	BitsPerSample uint16  `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	DataSize      uint32  `json:"data_size_bytes"`
	NumSamples    uint32  `json:"num_samples"`
	Streaming     bool    `json:"streaming"`
}

// GetWAVInfo reads the header of a PCM WAV recording. When the header carries
// the streaming marker, or claims more data than is present, the data size is
// taken from the bytes actually there.
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	if err := ValidateWAV(data); err != nil {
		return nil, err
	}

	var h riffHeader
	if err := binary.Read(bytes.NewReader(data[:wavHeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("decode WAV header: %w", err)
	}

	if h.AudioFormat != pcmFormat {
		return nil, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", h.AudioFormat)
	}
	if h.SampleRate == 0 || h.Channels == 0 || h.BitsPerSample == 0 {
		return nil, fmt.Errorf("invalid WAV header: zero sample rate, channels or bit depth")
	}

	present := uint32(len(data) - wavHeaderSize)
	streaming := h.DataSize == unknownSize
	dataSize := h.DataSize
	if streaming || dataSize > present {
		dataSize = present
	}

	frameSize := uint32(h.Channels) * uint32(h.BitsPerSample) / 8
	if frameSize == 0 {
		return nil, fmt.Errorf("invalid WAV header: %d-bit samples", h.BitsPerSample)
	}
	frames := dataSize / frameSize

	return &WAVInfo{
		SampleRate:    h.SampleRate,
		Channels:      h.Channels,
		BitsPerSample: h.BitsPerSample,
		Duration:      float64(frames) / float64(h.SampleRate),
		DataSize:      dataSize,
		NumSamples:    frames,
		Streaming:     streaming,
	}, nil
}
