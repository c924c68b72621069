package chatui

import (
	"context"
	"fmt"
	"strings"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mohammad-safakhou/headliner/models"
)

type entry struct {
	role string // user, assistant or error
	text string
}

type replyMsg struct {
	reply Reply
	err   error
}

type historyMsg struct {
	messages []models.Message
	err      error
}

// Model is the bubbletea chat screen.
type Model struct {
	client   *Client
	timeout  time.Duration
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	entries  []entry
	waiting  bool
	width    int
	height   int
}

func NewModel(client *Client, timeout time.Duration) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask for today's headlines..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)
	// Enter sends; Alt+Enter breaks the line
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		client:   client,
		timeout:  timeout,
		viewport: viewport.New(80, 20),
		textarea: ta,
		spinner:  sp,
		width:    80,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.loadHistory())
}

func (m Model) loadHistory() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		msgs, err := m.client.History(ctx)
		return historyMsg{messages: msgs, err: err}
	}
}

func (m Model) send(text string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if m.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}
		r, err := m.client.Send(ctx, text)
		return replyMsg{reply: r, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// title (1) + status (1) + textarea (3) + separators (2)
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-7, 1)
		m.textarea.SetWidth(msg.Width)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting {
				return m, nil
			}
			text := strings.TrimSpace(m.textarea.Value())
			if text == "" {
				return m, nil
			}
			m.textarea.Reset()
			m.entries = append(m.entries, entry{role: "user", text: text})
			m.waiting = true
			m.refresh()
			return m, tea.Batch(m.send(text), m.spinner.Tick)
		}

	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.entries = append(m.entries, entry{role: "error", text: msg.err.Error()})
		} else {
			m.entries = append(m.entries, entry{role: "assistant", text: msg.reply.Reply})
		}
		m.refresh()
		return m, nil

	case historyMsg:
		if msg.err != nil {
			m.entries = append(m.entries, entry{role: "error", text: "history: " + msg.err.Error()})
		}
		var past []entry
		for _, h := range msg.messages {
			if h.Content == "" || (h.Role != models.RoleUser && h.Role != models.RoleAssistant) {
				continue
			}
			past = append(past, entry{role: string(h.Role), text: h.Content})
		}
		m.entries = append(past, m.entries...)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var taCmd, vpCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(taCmd, vpCmd)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

func (m Model) render() string {
	if len(m.entries) == 0 {
		return dimStyle.Render("No messages yet. Start chatting!")
	}
	width := max(m.width-4, 20)
	var b strings.Builder
	for _, e := range m.entries {
		switch e.role {
		case "user":
			b.WriteString(userStyle.Render("You") + "\n")
			b.WriteString(e.text + "\n\n")
		case "assistant":
			b.WriteString(assistantStyle.Render("Agent") + "\n")
			b.Write(markdown.Render(e.text, width, 0))
			b.WriteString("\n")
		default:
			b.WriteString(errorStyle.Render("Error: "+e.text) + "\n\n")
		}
	}
	return b.String()
}

func (m Model) View() string {
	status := dimStyle.Render(fmt.Sprintf("session %s  enter send  alt+enter newline  esc quit", m.client.SessionID))
	if m.waiting {
		status = m.spinner.View() + " " + dimStyle.Render("the agent is working...")
	}
	sep := dimStyle.Render(strings.Repeat("─", max(m.width, 1)))
	return strings.Join([]string{
		titleStyle.Render("headliner chat"),
		m.viewport.View(),
		sep,
		status,
		m.textarea.View(),
	}, "\n")
}
