package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nourmokhtar/breastCancerBOT/internal/voice"
)

type fakeActions struct {
	toggles  int
	asked    []string
	analyzed []string
	err      error
}

func (a *fakeActions) ToggleRecording(context.Context) error {
	a.toggles++
	return a.err
}

func (a *fakeActions) Ask(_ context.Context, message string) error {
	a.asked = append(a.asked, message)
	return a.err
}

func (a *fakeActions) Analyze(_ context.Context, text string) error {
	a.analyzed = append(a.analyzed, text)
	return a.err
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func TestKeysTriggerActions(t *testing.T) {
	actions := &fakeActions{}
	m := initialModel(context.Background(), actions)
	m.textInput.SetValue("I feel tired")

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("Expected a command for enter")
	}
	if msg := cmd(); msg != nil {
		t.Errorf("Expected no message, got %v", msg)
	}

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	cmd()

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	cmd()

	if len(actions.asked) != 1 || actions.asked[0] != "I feel tired" {
		t.Errorf("Unexpected asks %v", actions.asked)
	}
	if len(actions.analyzed) != 1 || actions.analyzed[0] != "I feel tired" {
		t.Errorf("Unexpected analyses %v", actions.analyzed)
	}
	if actions.toggles != 1 {
		t.Errorf("Expected 1 toggle, got %d", actions.toggles)
	}
}

func TestUploadInFlightShowsAlert(t *testing.T) {
	actions := &fakeActions{err: voice.ErrUploadInFlight}
	m := initialModel(context.Background(), actions)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	msg := cmd()
	if msg == nil {
		t.Fatal("Expected an error message")
	}

	m, _ = update(t, m, msg)
	if m.alert != UploadInFlight {
		t.Errorf("Expected in-flight alert, got %q", m.alert)
	}
}

func TestSinkMessagesUpdateView(t *testing.T) {
	m := initialModel(context.Background(), &fakeActions{})

	m, _ = update(t, m, inputMsg("hello there"))
	m, _ = update(t, m, emotionMsg("happy (92%)"))
	m, _ = update(t, m, responseMsg("Hi! How can I help?"))
	m, _ = update(t, m, audioMsg("http://localhost:5000/clips/a.wav?t=1"))
	m, _ = update(t, m, alertMsg("Failed to analyze voice. See logs for details."))
	m, _ = update(t, m, statusMsg(voice.Status{State: voice.StateRecording, Session: &voice.SessionInfo{ID: "x"}}))

	if m.textInput.Value() != "hello there" {
		t.Errorf("Expected transcription in input, got %q", m.textInput.Value())
	}

	view := m.View()
	for _, want := range []string{
		"happy (92%)",
		"Hi! How can I help?",
		"clips/a.wav?t=1",
		"Failed to analyze voice",
		"recording",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q", want)
		}
	}
}

func TestQuitKeys(t *testing.T) {
	m := initialModel(context.Background(), &fakeActions{})

	for _, key := range []tea.KeyMsg{{Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		_, cmd := update(t, m, key)
		if cmd == nil {
			t.Fatalf("Expected quit command for %s", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("Expected QuitMsg for %s", key)
		}
	}
}

func TestDetachedSinkDropsUpdates(t *testing.T) {
	sink := NewSink()
	sink.Alert("nobody is listening")
	sink.Status(voice.Status{})
}
