package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nourmokhtar/breastCancerBOT/internal/analysis"
	"github.com/nourmokhtar/breastCancerBOT/internal/audio"
	"github.com/nourmokhtar/breastCancerBOT/internal/camera"
)

func newTestBackend(t *testing.T) (*httptest.Server, *analysis.Client) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	b, err := newBackend(logger, 0)
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}

	ts := httptest.NewServer(b.routes())
	t.Cleanup(ts.Close)

	client, err := analysis.NewClient(analysis.Config{BaseURL: ts.URL, Timeout: 5 * time.Second}, nil)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return ts, client
}

// streamingRecording builds what the recorder uploads: a streaming header
// followed by raw PCM
func streamingRecording(t *testing.T, amplitude int16) []byte {
	t.Helper()

	header, err := audio.StreamingHeader(16000, 1)
	if err != nil {
		t.Fatal(err)
	}

	pcm := make([]byte, 16000*2)
	for i := 0; i < len(pcm)/2; i++ {
		v := amplitude
		if i%2 == 1 {
			v = -amplitude
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return append(header, pcm...)
}

func TestVoiceRoundTrip(t *testing.T) {
	_, client := newTestBackend(t)

	result, err := client.AnalyzeVoice(context.Background(), audio.NewFilePayload(streamingRecording(t, 12000)), "req-1")
	if err != nil {
		t.Fatalf("AnalyzeVoice failed: %v", err)
	}

	if result.Error != "" {
		t.Fatalf("Unexpected error field %q", result.Error)
	}
	if result.Emotion != "happy" || result.Confidence.String() != "92.00" {
		t.Errorf("Unexpected emotion %s (%s)", result.Emotion, result.Confidence.String())
	}
	if result.AudioURL != replyClipPath {
		t.Errorf("Unexpected audio URL %s", result.AudioURL)
	}
}

func TestVoiceSilence(t *testing.T) {
	_, client := newTestBackend(t)

	result, err := client.AnalyzeVoice(context.Background(), audio.NewFilePayload(streamingRecording(t, 0)), "req-2")
	if err != nil {
		t.Fatalf("AnalyzeVoice failed: %v", err)
	}
	if result.Emotion != "neutral" {
		t.Errorf("Expected neutral for silence, got %s", result.Emotion)
	}
}

func TestVoiceRejectsNonWAV(t *testing.T) {
	_, client := newTestBackend(t)

	_, err := client.AnalyzeVoice(context.Background(), audio.NewFilePayload([]byte("definitely not audio, but long enough to pass the size check")), "req-3")

	var appErr *analysis.ApplicationError
	if !errors.As(err, &appErr) {
		t.Fatalf("Expected ApplicationError, got %v", err)
	}
	if appErr.Message == "" {
		t.Error("Expected an error message")
	}
}

func TestQueryAndText(t *testing.T) {
	_, client := newTestBackend(t)

	reply, err := client.Query(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if reply.Response != "You asked: hello" || reply.Language != "en" {
		t.Errorf("Unexpected reply %+v", reply)
	}

	if _, err := client.Query(context.Background(), "  "); err == nil {
		t.Error("Expected error for empty query")
	}

	text, err := client.AnalyzeText(context.Background(), "I am worried")
	if err != nil {
		t.Fatalf("AnalyzeText failed: %v", err)
	}
	if len(text.Emotions) == 0 || text.Response == "" {
		t.Errorf("Unexpected text result %+v", text)
	}
}

func TestMalformedJSONRejected(t *testing.T) {
	ts, client := newTestBackend(t)

	for _, path := range []string{"/api/query", "/analyze", "/analyze_frame"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(`{"message": `))
			if err != nil {
				t.Fatalf("POST failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", resp.StatusCode)
			}

			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode body: %v", err)
			}
			if body["error"] != "Invalid JSON" {
				t.Errorf("Expected error 'Invalid JSON', got %q", body["error"])
			}
		})
	}

	if _, err := client.Query(context.Background(), "still works"); err != nil {
		t.Errorf("Query after malformed request failed: %v", err)
	}
}

func TestFrame(t *testing.T) {
	_, client := newTestBackend(t)

	result, err := client.AnalyzeFrame(context.Background(), camera.EncodeFrame([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	if err != nil {
		t.Fatalf("AnalyzeFrame failed: %v", err)
	}
	if result.Emotion != "neutral" || !result.Confidence.Valid() {
		t.Errorf("Unexpected frame result %+v", result)
	}

	result, err = client.AnalyzeFrame(context.Background(), camera.EncodeFrame([]byte("png?")))
	if err != nil {
		t.Fatalf("AnalyzeFrame failed: %v", err)
	}
	if result.Emotion != "" {
		t.Errorf("Expected no emotion, got %s", result.Emotion)
	}
}

func TestClip(t *testing.T) {
	ts, _ := newTestBackend(t)

	resp, err := http.Get(ts.URL + replyClipPath + "?t=123")
	if err != nil {
		t.Fatalf("GET clip failed: %v", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	info, err := audio.GetWAVInfo(data)
	if err != nil {
		t.Fatalf("Clip is not valid WAV: %v", err)
	}
	if info.SampleRate != clipSampleRate || info.Duration < 0.99 {
		t.Errorf("Unexpected clip %+v", info)
	}
}
