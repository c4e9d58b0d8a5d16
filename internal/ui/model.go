package ui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nourmokhtar/breastCancerBOT/internal/voice"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Width(10)
	emotionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#268bd2")).
			Bold(true)
	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#dc322f"))
	recordingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#dc322f")).
			Bold(true)
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// UploadInFlight is shown when a stop is rejected because the previous
// recording is still being analyzed
const UploadInFlight = "Still analyzing the previous recording."

// Actions are the operations the page can trigger
type Actions interface {
	ToggleRecording(ctx context.Context) error
	Ask(ctx context.Context, message string) error
	Analyze(ctx context.Context, text string) error
}

type model struct {
	ctx     context.Context
	actions Actions

	textInput textinput.Model
	viewport  viewport.Model
	ready     bool

	emotion  string
	response string
	audio    string
	alert    string
	status   voice.Status
}

func initialModel(ctx context.Context, actions Actions) model {
	ti := textinput.New()
	ti.Placeholder = "Type a message, or press ctrl+r to talk..."
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 80

	vp := viewport.New(80, 10)

	return model{
		ctx:       ctx,
		actions:   actions,
		textInput: ti,
		viewport:  vp,
		status:    voice.Status{State: voice.StateIdle},
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "ctrl+r":
			m.alert = ""
			return m, m.run(func(ctx context.Context) error {
				return m.actions.ToggleRecording(ctx)
			})

		case "enter":
			text := m.textInput.Value()
			m.alert = ""
			return m, m.run(func(ctx context.Context) error {
				return m.actions.Ask(ctx, text)
			})

		case "ctrl+t":
			text := m.textInput.Value()
			m.alert = ""
			return m, m.run(func(ctx context.Context) error {
				return m.actions.Analyze(ctx, text)
			})
		}

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(3, msg.Height-9)
		m.textInput.Width = msg.Width - 4
		m.ready = true
		m.viewport.SetContent(m.response)

	case alertMsg:
		m.alert = string(msg)

	case inputMsg:
		m.textInput.SetValue(string(msg))
		m.textInput.CursorEnd()

	case emotionMsg:
		m.emotion = string(msg)

	case responseMsg:
		m.response = string(msg)
		m.viewport.SetContent(m.response)
		m.viewport.GotoTop()

	case audioMsg:
		m.audio = string(msg)

	case statusMsg:
		m.status = voice.Status(msg)

	case errMsg:
		if errors.Is(msg.err, voice.ErrUploadInFlight) {
			m.alert = UploadInFlight
		}
		return m, nil
	}

	m.textInput, cmd = m.textInput.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// run executes an action off the event loop. Failures have already been
// rendered by the action; only the error value comes back.
func (m model) run(action func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := action(ctx); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Voice Assistant"))
	b.WriteString("  ")
	b.WriteString(m.statusView())
	b.WriteString("\n\n")

	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Emotion"))
	b.WriteString(emotionStyle.Render(m.emotion))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Audio"))
	b.WriteString(m.audio)
	b.WriteString("\n\n")

	if m.ready {
		b.WriteString(m.viewport.View())
	} else {
		b.WriteString(m.response)
	}
	b.WriteString("\n\n")

	if m.alert != "" {
		b.WriteString(alertStyle.Render(m.alert))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("ctrl+r record/stop  enter ask  ctrl+t analyze feeling  esc quit"))

	return b.String()
}

func (m model) statusView() string {
	label := m.status.Label()
	if label == string(voice.StateRecording) {
		return recordingStyle.Render("● " + label)
	}
	return helpStyle.Render(label)
}

// Run shows the page until the user quits or ctx is cancelled. sink is
// attached to the program for the duration of the call.
func Run(ctx context.Context, actions Actions, sink *Sink, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(initialModel(ctx, actions), opts...)

	sink.Attach(p)
	defer sink.Attach(nil)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
