package audio

import (
	"bytes"
	"io"
)

// Fixed identity of a voice recording upload.
const (
	VoiceFieldName   = "file"
	VoiceFilename    = "voice_input.wav"
	VoiceContentType = "audio/wav"
)

// Payload is a single binary upload with its multipart identity. It is built
// once and never modified.
type Payload struct {
	FieldName   string
	Filename    string
	ContentType string
	data        []byte
}

// NewVoicePayload seals the buffer and builds the voice upload from its
// fragments.
func NewVoicePayload(fragments *FragmentBuffer) *Payload {
	fragments.Seal()
	return &Payload{
		FieldName:   VoiceFieldName,
		Filename:    VoiceFilename,
		ContentType: VoiceContentType,
		data:        fragments.Bytes(),
	}
}

// NewFilePayload wraps already-encoded audio, for example a file read from
// disk, under the voice upload identity.
func NewFilePayload(data []byte) *Payload {
	return &Payload{
		FieldName:   VoiceFieldName,
		Filename:    VoiceFilename,
		ContentType: VoiceContentType,
		data:        append([]byte(nil), data...),
	}
}

// Data returns a copy of the payload bytes
func (p *Payload) Data() []byte {
	return append([]byte(nil), p.data...)
}

// Size returns the payload length in bytes
func (p *Payload) Size() int {
	return len(p.data)
}

// Reader returns a reader over the payload bytes
func (p *Payload) Reader() io.Reader {
	return bytes.NewReader(p.data)
}
