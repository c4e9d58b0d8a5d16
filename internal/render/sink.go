package render

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nourmokhtar/breastCancerBOT/internal/analysis"
)

// Sink receives rendered values by logical role
type Sink interface {
	// Alert shows a user-visible message, usually an error
	Alert(message string)
	// SetInput replaces the content of the text input
	SetInput(text string)
	// SetEmotion replaces the emotion display
	SetEmotion(text string)
	// SetResponse replaces the assistant reply
	SetResponse(text string)
	// ShowAudio points the audio player at src and makes it visible
	ShowAudio(src string)
}

// FormatEmotion renders "<emotion> (<confidence>%)", or just the emotion when
// no confidence was sent
func FormatEmotion(emotion string, confidence analysis.Confidence) string {
	if !confidence.Valid() {
		return emotion
	}
	return fmt.Sprintf("%s (%s%%)", emotion, confidence.String())
}

// BustCache appends a t=<unix milliseconds> query parameter so that repeated
// identical URLs are fetched again
func BustCache(src string, now time.Time) string {
	sep := "?"
	if u, err := url.Parse(src); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return src + sep + "t=" + strconv.FormatInt(now.UnixMilli(), 10)
}

// TerminalSink prints every update as a labelled line
type TerminalSink struct {
	w io.Writer

	label    lipgloss.Style
	alert    lipgloss.Style
	emotion  lipgloss.Style
	response lipgloss.Style

	mu sync.Mutex
}

// NewTerminalSink creates a sink writing to w. Colors are only used when w is
// a terminal.
func NewTerminalSink(w io.Writer) *TerminalSink {
	r := lipgloss.NewRenderer(w)
	return &TerminalSink{
		w:        w,
		label:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("245")),
		alert:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		emotion:  r.NewStyle().Foreground(lipgloss.Color("213")),
		response: r.NewStyle().Foreground(lipgloss.Color("86")),
	}
}

func (s *TerminalSink) line(label, value string, style lipgloss.Style) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%s %s\n", s.label.Render(label+":"), style.Render(value))
}

func (s *TerminalSink) Alert(message string) { s.line("alert", message, s.alert) }

func (s *TerminalSink) SetInput(text string) { s.line("input", text, lipgloss.NewStyle()) }

func (s *TerminalSink) SetEmotion(text string) { s.line("emotion", text, s.emotion) }

func (s *TerminalSink) SetResponse(text string) { s.line("response", text, s.response) }

func (s *TerminalSink) ShowAudio(src string) { s.line("audio", src, lipgloss.NewStyle()) }
