package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nourmokhtar/breastCancerBOT/internal/voice"
)

type (
	alertMsg    string
	inputMsg    string
	emotionMsg  string
	responseMsg string
	audioMsg    string
	statusMsg   voice.Status
	errMsg      struct{ err error }
)

// Sink forwards rendered values to a running program. Updates sent before a
// program is attached are dropped.
type Sink struct {
	mu      sync.RWMutex
	program *tea.Program
}

// NewSink creates a detached sink
func NewSink() *Sink {
	return &Sink{}
}

// Attach sets the program receiving updates
func (s *Sink) Attach(p *tea.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.program = p
}

func (s *Sink) send(msg tea.Msg) {
	s.mu.RLock()
	p := s.program
	s.mu.RUnlock()

	if p != nil {
		p.Send(msg)
	}
}

func (s *Sink) Alert(message string)    { s.send(alertMsg(message)) }
func (s *Sink) SetInput(text string)    { s.send(inputMsg(text)) }
func (s *Sink) SetEmotion(text string)  { s.send(emotionMsg(text)) }
func (s *Sink) SetResponse(text string) { s.send(responseMsg(text)) }
func (s *Sink) ShowAudio(src string)    { s.send(audioMsg(src)) }

// Status forwards controller state changes; pass it to
// voice.Controller.SetObserver.
func (s *Sink) Status(status voice.Status) { s.send(statusMsg(status)) }
