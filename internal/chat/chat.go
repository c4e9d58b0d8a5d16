package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/nourmokhtar/breastCancerBOT/internal/analysis"
	"github.com/nourmokhtar/breastCancerBOT/internal/metrics"
	"github.com/nourmokhtar/breastCancerBOT/internal/render"
)

// Messages shown in the response and alert sinks
const (
	EmptyMessage   = "Please enter a message first."
	Processing     = "Processing..."
	NoResponse     = "No response."
	QueryFailure   = "An error occurred while contacting the assistant."
	EmptyFeeling   = "Please enter how you feel."
	NoLLMResponse  = "No LLM response received."
	AnalyzeFailure = "Error analyzing text."
)

// ErrEmptyInput is returned when the trimmed input is empty
var ErrEmptyInput = errors.New("empty input")

// Backend is the part of the analysis client used by the text flows
type Backend interface {
	Query(ctx context.Context, message string) (*analysis.QueryResult, error)
	AnalyzeText(ctx context.Context, text string) (*analysis.TextResult, error)
}

// Assistant renders text query and text analysis results into a sink
type Assistant struct {
	backend Backend
	sink    render.Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewAssistant creates an assistant
func NewAssistant(backend Backend, sink render.Sink, logger *slog.Logger, m *metrics.Metrics) *Assistant {
	return &Assistant{
		backend: backend,
		sink:    sink,
		logger:  logger,
		metrics: m,
	}
}

// Ask sends a message to the assistant and shows its reply
func (a *Assistant) Ask(ctx context.Context, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		a.sink.Alert(EmptyMessage)
		return ErrEmptyInput
	}

	a.sink.SetResponse(Processing)

	result, err := a.backend.Query(ctx, message)
	if err != nil {
		a.logger.Error("Assistant query failed", slog.String("error", err.Error()))
		a.sink.SetResponse(QueryFailure)
		return err
	}

	if result.Response == "" {
		a.sink.SetResponse(NoResponse)
		return nil
	}

	a.logger.Debug("Assistant replied", slog.String("language", result.Language))
	a.sink.SetResponse(result.Response)
	a.metrics.RecordFieldRendered("response")
	return nil
}

// Analyze sends a short text for emotion analysis and shows the detected
// emotions and the model's reply
func (a *Assistant) Analyze(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		a.sink.Alert(EmptyFeeling)
		return ErrEmptyInput
	}

	result, err := a.backend.AnalyzeText(ctx, text)
	if err != nil {
		a.logger.Error("Text analysis failed", slog.String("error", err.Error()))
		a.sink.SetResponse(AnalyzeFailure)
		return err
	}

	a.sink.SetEmotion(FormatEmotions(result.Emotions))
	a.metrics.RecordFieldRendered("emotion")

	if result.Response == "" {
		a.sink.SetResponse(NoLLMResponse)
		return nil
	}
	a.sink.SetResponse(result.Response)
	a.metrics.RecordFieldRendered("response")
	return nil
}

// FormatEmotions pretty prints the emotions document with two space
// indentation. Missing emotions render as null.
func FormatEmotions(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "null"
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}
