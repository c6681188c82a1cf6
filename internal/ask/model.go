package ask

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/composer"
)

// Asker is the part of Client the TUI needs.
type Asker interface {
	Ask(ctx context.Context, question, image string) (composer.Payload, error)
}

type answerMsg struct {
	question string
	payload  composer.Payload
	err      error
}

// Model is the Bubble Tea model for the ask TUI. Enter sends the question,
// up and down move between the returned links.
type Model struct {
	asker    Asker
	image    string
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	payload  composer.Payload
	question string
	status   string
	cursor   int
	waiting  bool
	ready    bool
}

func NewModel(asker Asker, image string) Model {
	ti := textinput.New()
	ti.Prompt = "? "
	ti.Placeholder = "Ask about the course and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	status := "Ready."
	if image != "" {
		status = "Ready. An image is attached to every question."
	}
	return Model{
		asker:    asker,
		image:    image,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   status,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ah := answerBoxStyle.GetFrameSize()
		_, qh := questionBoxStyle.GetFrameSize()
		vh := msg.Height - (1 + 1 + qh + 1) - ah
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, vh)
		m.viewport.SetContent(m.render())
		return m, nil

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.payload = composer.Payload{}
		} else {
			m.payload = msg.payload
			m.question = msg.question
			m.status = fmt.Sprintf("%d link(s) for %q", len(msg.payload.Links), msg.question)
		}
		m.cursor = 0
		m.viewport.SetContent(m.render())
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.waiting = true
			m.status = "Thinking..."
			m.input.SetValue("")
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case "down":
			if n := len(m.payload.Links); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.render())
			}
			return m, nil
		case "up":
			if n := len(m.payload.Links); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.render())
			}
			return m, nil
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	asker, image := m.asker, m.image
	return func() tea.Msg {
		p, err := asker.Ask(context.Background(), question, image)
		return answerMsg{question: question, payload: p, err: err}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Course Assistant")
	status := statusStyle.Render(m.status)
	if m.waiting {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" +
		answerBoxStyle.Render(m.viewport.View()) + "\n" +
		questionBoxStyle.Render(m.input.View()) + "\n" +
		status
}

// render lays out the current answer followed by its links, with the
// selected link highlighted.
func (m Model) render() string {
	if m.question == "" && m.payload.Answer == "" {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(questionStyle.Render(m.question))
	b.WriteString("\n\n")
	b.WriteString(m.payload.Answer)
	if len(m.payload.Links) == 0 {
		return b.String()
	}
	b.WriteString("\n\n")
	b.WriteString(linkHeaderStyle.Render("Sources"))
	for i, l := range m.payload.Links {
		line := fmt.Sprintf("%d. %s", i+1, l.URL)
		if l.Text != "" {
			line += "\n   " + dimStyle.Render(l.Text)
		}
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	answerBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	linkHeaderStyle  = lipgloss.NewStyle().Underline(true)
	selectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
