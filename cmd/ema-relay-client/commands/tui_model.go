package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

const maxLogLines = 50

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	speakerStyle = map[string]lipgloss.Style{
		speakerUser: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		speakerAI:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
		speakerNone: mutedStyle,
	}
)

// TUIModel is the terminal view of one relay session.
type TUIModel struct {
	url     string
	events  <-chan RelayEvent
	spinner spinner.Model

	speaker      string
	audioChunks  int
	disconnected bool
	lines        []string

	width    int
	quitting bool
}

// RelayEventMsg wraps relay events for bubbletea.
type RelayEventMsg RelayEvent

// relayClosedMsg is sent once the event stream ends.
type relayClosedMsg struct{}

func newTUIModel(url string, events <-chan RelayEvent) TUIModel {
	return TUIModel{
		url:     url,
		events:  events,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(statusStyle)),
		speaker: speakerNone,
	}
}

// Init initializes the model.
func (m TUIModel) Init() tea.Cmd {
	return tea.Batch(m.listenRelay(), m.spinner.Tick)
}

func (m TUIModel) listenRelay() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return relayClosedMsg{}
		}
		return RelayEventMsg(event)
	}
}

// Update handles messages.
func (m TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyRunes:
			if len(msg.Runes) == 1 && msg.Runes[0] == 'q' {
				m.quitting = true
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case RelayEventMsg:
		m.handleRelayEvent(RelayEvent(msg))
		return m, m.listenRelay()

	case relayClosedMsg:
		m.disconnected = true
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *TUIModel) handleRelayEvent(e RelayEvent) {
	switch e.Type {
	case "speaker":
		m.speaker = e.Detail
		m.addLine(fmt.Sprintf("speaker: %s", e.Detail))
	case "audio":
		// One line per chunk would flood the log.
		m.audioChunks++
	case "disconnected":
		m.disconnected = true
		m.addLine(errorStyle.Render("disconnected: " + e.Detail))
	case "error":
		m.addLine(errorStyle.Render("ERR: " + e.Detail))
	default:
		m.addLine(fmt.Sprintf("%s: %s", e.Type, e.Detail))
	}
}

func (m *TUIModel) addLine(s string) {
	ts := time.Now().Format("15:04:05")
	m.lines = append(m.lines, fmt.Sprintf("%s %s", mutedStyle.Render(ts), s))
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
}

// View renders the UI.
func (m TUIModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("ema-relay") + " " + mutedStyle.Render(m.url) + "\n\n")

	if m.disconnected {
		b.WriteString(errorStyle.Render("connection closed") + "\n")
	} else {
		style, ok := speakerStyle[m.speaker]
		if !ok {
			style = mutedStyle
		}
		fmt.Fprintf(&b, "%s listening  speaker: %s  audio chunks: %d\n",
			m.spinner.View(), style.Render(m.speaker), m.audioChunks)
	}
	b.WriteString("\n")

	log := strings.Join(m.lines, "\n")
	if m.width > 0 {
		log = wordwrap.String(log, m.width)
	}
	b.WriteString(log)
	b.WriteString("\n\n" + mutedStyle.Render("q: quit") + "\n")
	return b.String()
}
