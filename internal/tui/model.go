package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"chat-agent/internal/app"
	"chat-agent/internal/domain"
)

// Assistant is the TUI-facing subset of app.App.
type Assistant interface {
	Turn(ctx context.Context, key, input string) app.Reply
}

type chatMessage struct {
	role domain.Role
	path domain.Label
	text string
}

// replyMsg carries a finished turn back into Update.
type replyMsg app.Reply

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx       context.Context
	assistant Assistant
	key       string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	messages []chatMessage
	summary  string
	status   string
	busy     bool
	ready    bool
}

// New creates the chat model. Turns run against assistant under ctx in
// the session named key.
func New(ctx context.Context, assistant Assistant, key, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 4096
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	vp := viewport.New(0, 0)
	return Model{
		ctx:       ctx,
		assistant: assistant,
		key:       key,
		input:     ti,
		viewport:  vp,
		spinner:   sp,
		renderer:  newRenderer(80),
		summary:   summary,
		status:    "Ready. Type 'exit' or press Ctrl+C to quit.",
	}
}

func newRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and reply events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, hh := historyBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-hh)
		m.input.Width = max(10, msg.Width-6)
		m.renderer = newRenderer(max(20, msg.Width-8))
		m.refresh()
		return m, nil
	case replyMsg:
		m.busy = false
		if msg.Exit {
			return m, tea.Quit
		}
		m.messages = append(m.messages, chatMessage{role: domain.RoleAssistant, path: msg.Path, text: msg.Text})
		m.status = "Answered via " + string(msg.Path) + " path."
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" {
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			if app.IsExit(q) {
				return m, tea.Quit
			}
			m.input.Reset()
			m.messages = append(m.messages, chatMessage{role: domain.RoleUser, text: q})
			m.busy = true
			m.status = "Thinking..."
			m.refresh()
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(input string) tea.Cmd {
	return func() tea.Msg {
		return replyMsg(m.assistant.Turn(m.ctx, m.key, input))
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

// View renders header, history, input and status.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Chat Agent")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	history := historyBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + summary + "\n" + history + "\n" + input + "\n" + status
}

func (m Model) renderHistory() string {
	if len(m.messages) == 0 {
		return "No messages yet."
	}
	var b strings.Builder
	for _, msg := range m.messages {
		if msg.role == domain.RoleUser {
			b.WriteString(userStyle.Render("You: "+msg.text) + "\n\n")
			continue
		}
		b.WriteString(badge(msg.path) + "\n")
		b.WriteString(m.renderMarkdown(msg.text) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func badge(path domain.Label) string {
	if path == domain.LabelDocument {
		return documentBadge.Render("AI (Document)")
	}
	return toolBadge.Render("AI (Tool)")
}

var (
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	documentBadge   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12")).Padding(0, 1)
	toolBadge       = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("13")).Padding(0, 1)
)
