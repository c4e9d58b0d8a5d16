package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// VoiceResult is the response of the voice analysis endpoint. Every field is
// optional; an empty string means absent.
type VoiceResult struct {
	Error         string     `json:"error,omitempty"`
	Transcription string     `json:"transcription,omitempty"`
	Emotion       string     `json:"emotion,omitempty"`
	Confidence    Confidence `json:"confidence"`
	Response      string     `json:"response,omitempty"`
	AudioURL      string     `json:"audio_url,omitempty"`
}

// QueryResult is the response of the text assistant endpoint
type QueryResult struct {
	Response string `json:"response"`
	Language string `json:"language,omitempty"`
}

// TextResult is the response of the text emotion endpoint. Emotions is kept
// raw because its shape is decided by the backend model.
type TextResult struct {
	Emotions json.RawMessage `json:"emotions,omitempty"`
	Response string          `json:"response"`
}

// FrameResult is the response of the camera frame endpoint
type FrameResult struct {
	Emotion    string     `json:"emotion,omitempty"`
	Confidence Confidence `json:"confidence"`
}

// Confidence is a percentage sent either as a JSON number (92) or as a string
// with an optional percent sign ("92.00%").
type Confidence struct {
	text    string
	valid   bool
	ignored string // raw JSON of a value of any other type
}

// NewConfidence builds a confidence from a number
func NewConfidence(value float64) Confidence {
	return Confidence{text: strconv.FormatFloat(value, 'f', -1, 64), valid: true}
}

// UnmarshalJSON accepts numbers, strings and null. Any other value leaves the
// confidence absent, see Ignored.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = Confidence{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if s == "" {
			*c = Confidence{}
			return nil
		}
		*c = Confidence{text: s, valid: true}
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		*c = Confidence{ignored: string(data)}
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("invalid confidence %s: %w", n, err)
	}
	*c = NewConfidence(f)
	return nil
}

// Ignored returns the raw value of a confidence that was neither a number nor
// a string
func (c Confidence) Ignored() (string, bool) {
	return c.ignored, c.ignored != ""
}

// MarshalJSON writes numeric confidences as numbers and anything else as a
// string
func (c Confidence) MarshalJSON() ([]byte, error) {
	if !c.valid {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseFloat(c.text, 64); err == nil {
		return []byte(c.text), nil
	}
	return json.Marshal(c.text)
}

// Valid reports whether a confidence was present
func (c Confidence) Valid() bool { return c.valid }

// String returns the confidence without a percent sign
func (c Confidence) String() string { return c.text }
