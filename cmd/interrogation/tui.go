package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	orchestration "github.com/koscakluka/ema-interrogation/core"
)

const (
	headerHeight = 1
	footerHeight = 3
)

type viewMsg orchestration.View

// viewFeed hands coordinator views to the UI. Only the latest view is kept.
type viewFeed struct {
	updates chan orchestration.View
}

func newViewFeed() *viewFeed {
	return &viewFeed{updates: make(chan orchestration.View, 1)}
}

func (f *viewFeed) publish(view orchestration.View) {
	for {
		select {
		case f.updates <- view:
			return
		default:
		}
		select {
		case <-f.updates:
		default:
		}
	}
}

func (f *viewFeed) next() tea.Msg {
	return viewMsg(<-f.updates)
}

type keyMap struct {
	Submit     key.Binding
	Toggle     key.Binding
	ReplayLast key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "answer")),
		Toggle:     key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "listen")),
		ReplayLast: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "replay")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("ctrl+c", "quit")),
	}
}

type styles struct {
	header    lipgloss.Style
	status    lipgloss.Style
	listening lipgloss.Style
	agent     lipgloss.Style
	emotion   lipgloss.Style
	human     lipgloss.Style
	index     lipgloss.Style
	err       lipgloss.Style
	help      lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")).Padding(0, 1),
		status:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		listening: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		agent:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		emotion:   lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("243")),
		human:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		index:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		err:       lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		help:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

type conversation interface {
	SubmitText(text string)
	SetTypedText(text string)
	ToggleCapture()
	Replay(index int)
	View() orchestration.View
}

type model struct {
	conversation conversation
	feed         *viewFeed
	keys         keyMap
	styles       styles

	view     orchestration.View
	viewport viewport.Model
	input    textinput.Model
	ready    bool
}

func newModel(c conversation, feed *viewFeed) model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Type your answer..."
	input.CharLimit = 2000
	input.Focus()

	return model{
		conversation: c,
		feed:         feed,
		keys:         defaultKeyMap(),
		styles:       defaultStyles(),
		view:         c.View(),
		input:        input,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.feed.next)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-headerHeight-footerHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.KeyMap = viewport.KeyMap{
				PageDown: key.NewBinding(key.WithKeys("pgdown")),
				PageUp:   key.NewBinding(key.WithKeys("pgup")),
			}
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.input.Width = max(msg.Width-4, 10)
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case viewMsg:
		m = m.applyView(orchestration.View(msg))
		return m, m.feed.next

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			m.conversation.ToggleCapture()
			return m, nil
		case key.Matches(msg, m.keys.ReplayLast):
			if index := lastAgentIndex(m.view.Transcript); index >= 0 {
				m.conversation.Replay(index)
			}
			return m, nil
		case key.Matches(msg, m.keys.Submit):
			return m.submit(), nil
		}
	}

	var cmds []tea.Cmd
	before := m.input.Value()

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if value := m.input.Value(); value != before {
		m.conversation.SetTypedText(value)
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) applyView(view orchestration.View) model {
	previous := m.view
	m.view = view

	if len(view.Transcript) == len(previous.Transcript) {
		return m
	}
	// A new human line means the typed answer was consumed.
	if last := view.Transcript[len(view.Transcript)-1]; last.Role == orchestration.RoleHuman {
		m.input.Reset()
	}
	if m.ready {
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
	}
	return m
}

func (m model) submit() model {
	text := strings.TrimSpace(m.input.Value())
	if number, ok := parsePlayCommand(text); ok {
		m.conversation.Replay(number - 1)
		m.input.Reset()
		m.conversation.SetTypedText("")
		return m
	}

	m.conversation.SubmitText(text)
	return m
}

// parsePlayCommand reads "/play N" where N is a 1-based transcript position.
func parsePlayCommand(text string) (int, bool) {
	argument, found := strings.CutPrefix(text, "/play ")
	if !found {
		return 0, false
	}
	number, err := strconv.Atoi(strings.TrimSpace(argument))
	if err != nil || number < 1 {
		return 0, false
	}
	return number, true
}

func lastAgentIndex(transcript []orchestration.Utterance) int {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == orchestration.RoleAgent {
			return i
		}
	}
	return -1
}

func (m model) renderTranscript() string {
	width := max(m.viewport.Width-2, 20)

	var b strings.Builder
	for i, utterance := range m.view.Transcript {
		var speaker string
		switch utterance.Role {
		case orchestration.RoleAgent:
			name := utterance.AgentName
			if name == "" {
				name = "Agent"
			}
			speaker = m.styles.agent.Render(name)
			if utterance.Emotion != "" {
				speaker += " " + m.styles.emotion.Render("("+utterance.Emotion+")")
			}
		default:
			speaker = m.styles.human.Render("You")
		}

		line := fmt.Sprintf("%s %s: %s", m.styles.index.Render(strconv.Itoa(i+1)+"."), speaker, utterance.Text)
		b.WriteString(wordwrap.String(line, width))
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m model) status() string {
	switch m.view.Turn {
	case orchestration.TurnHumanListening:
		return m.styles.listening.Render("● Listening")
	case orchestration.TurnHumanTyping:
		return m.styles.status.Render("Your turn")
	case orchestration.TurnAwaitingAgentReply:
		if m.view.Stalled {
			return m.styles.status.Render("No reply, answer again")
		}
		return m.styles.status.Render("Waiting for the agent...")
	case orchestration.TurnAgentSpeaking:
		return m.styles.status.Render("Agent speaking")
	default:
		return m.styles.status.Render("Type an answer or press ctrl+t to speak")
	}
}

func (m model) helpLine() string {
	bindings := []key.Binding{m.keys.Submit, m.keys.Toggle, m.keys.ReplayLast, m.keys.Quit}
	parts := make([]string, 0, len(bindings)+1)
	for _, binding := range bindings {
		parts = append(parts, binding.Help().Key+" "+binding.Help().Desc)
	}
	parts = append(parts, "/play N replay")
	return m.styles.help.Render(strings.Join(parts, " • "))
}

func (m model) View() string {
	if !m.ready {
		return "Entering the interrogation room..."
	}

	header := m.styles.header.Render("Interrogation") + " " + m.status()
	errorLine := ""
	if m.view.Error != "" {
		errorLine = m.styles.err.Render(m.view.Error)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		errorLine,
		m.input.View(),
		m.helpLine(),
	)
}
