package main

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/nourmokhtar/breastCancerBOT/internal/audio"
	"github.com/nourmokhtar/breastCancerBOT/internal/vad"
)

const (
	replyClipPath   = "/clips/reply.wav"
	clipSampleRate  = 16000
	maxUploadMemory = 10 << 20 // 10 MB
)

// backend fakes the analysis endpoints. It does no analysis; answers depend
// only on what can be checked cheaply about the input.
type backend struct {
	logger *slog.Logger
	delay  time.Duration
	clip   []byte
}

func newBackend(logger *slog.Logger, delay time.Duration) (*backend, error) {
	clip, err := toneClip(440, time.Second)
	if err != nil {
		return nil, err
	}
	return &backend{logger: logger, delay: delay, clip: clip}, nil
}

func (b *backend) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/analyze_voice", b.handleVoice)
	mux.HandleFunc("/api/query", b.handleQuery)
	mux.HandleFunc("/analyze", b.handleText)
	mux.HandleFunc("/analyze_frame", b.handleFrame)
	mux.HandleFunc(replyClipPath, b.handleClip)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (b *backend) simulateProcessing() {
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
}

func (b *backend) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Error parsing form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No audio file provided"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	info, err := audio.GetWAVInfo(data)
	if err != nil {
		b.logger.Warn("Rejected voice upload", slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, map[string]string{"error": "Could not read audio: " + err.Error()})
		return
	}

	b.logger.Info("Voice upload received",
		slog.String("request_id", r.Header.Get("X-Request-ID")),
		slog.String("filename", header.Filename),
		slog.String("content_type", header.Header.Get("Content-Type")),
		slog.Int("bytes", len(data)),
		slog.Uint64("sample_rate", uint64(info.SampleRate)),
		slog.Float64("duration_seconds", info.Duration),
		slog.Bool("streaming_header", info.Streaming),
	)

	b.simulateProcessing()

	emotion, confidence := "neutral", "61.50%"
	if hasVoice(data[44:], info) {
		emotion, confidence = "happy", "92.00%"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"transcription": "This is a mock transcription.",
		"emotion":       emotion,
		"confidence":    confidence,
		"response":      "Thank you for sharing. I am here to help.",
		"audio_url":     replyClipPath,
	})
}

// hasVoice runs the energy detector over 16-bit PCM data
func hasVoice(pcm []byte, info *audio.WAVInfo) bool {
	if info.BitsPerSample != 16 {
		return true
	}
	detector, err := vad.NewDetector(0.02, 512)
	if err != nil {
		return true
	}
	detector.Write(pcm)
	return detector.HasVoice()
}

// decodeJSON reads the request body into v, answering 400 when it is not JSON
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return false
	}
	return true
}

func (b *backend) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Empty input"})
		return
	}

	b.logger.Info("Query received", slog.Int("length", len(message)))
	b.simulateProcessing()

	writeJSON(w, http.StatusOK, map[string]string{
		"response": "You asked: " + message,
		"language": "en",
	})
}

func (b *backend) handleText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Empty input"})
		return
	}

	b.logger.Info("Text analysis received", slog.Int("length", len(req.Text)))
	b.simulateProcessing()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"emotions": []map[string]interface{}{
			{"label": "neutral", "score": 0.71},
			{"label": "sadness", "score": 0.18},
		},
		"response": "It sounds like you have a lot on your mind.",
	})
}

func (b *backend) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Image string `json:"image"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	_, encoded, ok := strings.Cut(req.Image, ";base64,")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid image"})
		return
	}

	frame, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(frame) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid image"})
		return
	}

	b.logger.Info("Frame received", slog.Int("bytes", len(frame)))

	// No face without a JPEG start marker
	if len(frame) < 2 || frame[0] != 0xFF || frame[1] != 0xD8 {
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"emotion":    "neutral",
		"confidence": "75.00%",
	})
}

func (b *backend) handleClip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(b.clip)
}

// toneClip renders a mono 16-bit sine tone as WAV
func toneClip(freq float64, d time.Duration) ([]byte, error) {
	samples := int(d.Seconds() * clipSampleRate)
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(0.3 * math.MaxInt16 * math.Sin(2*math.Pi*freq*float64(i)/clipSampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return audio.EncodeWAV(pcm, clipSampleRate, 1)
}
