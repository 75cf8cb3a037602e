// Package tui is a terminal rendition of the chat widget: a collapsible
// panel with a transcript, a typing indicator and a single-line input.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nutrigraph/nutribot/backend/internal/model/chat"
	"github.com/nutrigraph/nutribot/backend/internal/model/persona"
	"github.com/nutrigraph/nutribot/backend/internal/service/conversation"
)

// Submitter is the part of the conversation client the widget drives.
type Submitter interface {
	Submit(ctx context.Context, text string) (conversation.Reply, error)
}

type submitDoneMsg struct {
	reply conversation.Reply
	err   error
}

// chrome is the number of lines used by everything except the viewport.
const chrome = 5

type Model struct {
	ctx      context.Context
	client   Submitter
	persona  persona.Persona
	messages []chat.Message
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	pending  bool
	open     bool
	status   string
	width    int
	height   int
	quitting bool
}

// NewModel builds the widget around client. history is rendered first,
// normally the greeting already in the transcript.
func NewModel(ctx context.Context, client Submitter, p persona.Persona, history []chat.Message) Model {
	ti := textinput.New()
	ti.Placeholder = p.Placeholder
	ti.CharLimit = 500
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle

	m := Model{
		ctx:      ctx,
		client:   client,
		persona:  p,
		messages: append([]chat.Message(nil), history...),
		input:    ti,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		open:     true,
		width:    80,
		height:   20 + chrome,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case messageMsg:
		m.messages = append(m.messages, msg.message)
		m.refresh()
		return m, nil

	case pendingMsg:
		m.pending = bool(msg)
		if m.pending {
			return m, m.spinner.Tick
		}
		return m, nil

	case submitDoneMsg:
		switch {
		case msg.err == nil:
			m.status = ""
			if msg.reply.Fallback {
				m.status = "offline answer (" + string(msg.reply.Kind) + ")"
			}
		case errors.Is(msg.err, conversation.ErrEmptyInput):
		case errors.Is(msg.err, conversation.ErrBusy):
			m.status = "still answering, please wait"
		default:
			m.status = msg.err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		m.open = !m.open
		if m.open {
			m.input.Focus()
			m.viewport.GotoBottom()
		} else {
			m.input.Blur()
		}
		return m, nil

	case "esc":
		if !m.open {
			m.quitting = true
			return m, tea.Quit
		}
		m.open = false
		m.input.Blur()
		return m, nil
	}

	if !m.open {
		return m, nil
	}

	switch msg.String() {
	case "enter":
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.input.Reset()
		return m, m.submit(text)

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(text string) tea.Cmd {
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		reply, err := client.Submit(ctx, text)
		return submitDoneMsg{reply: reply, err: err}
	}
}

func (m *Model) resize() {
	w := max(20, m.width)
	h := max(3, m.height-chrome)
	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 4
	m.refresh()
}

// refresh re-renders the transcript and scrolls to the latest entry.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	body := lipgloss.NewStyle().Width(max(10, m.viewport.Width-2)).PaddingLeft(1)
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if msg.Role == chat.RoleUser {
			b.WriteString(userRoleStyle.Render(" You "))
		} else {
			b.WriteString(botRoleStyle.Render(" " + m.persona.Name + " "))
		}
		b.WriteString("\n")
		b.WriteString(body.Render(msg.Content))
	}
	return b.String()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.open {
		return launcherStyle.Render("NutriBot") + "  " + helpStyle.Render("tab open · esc quit")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.persona.Title))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	switch {
	case m.pending:
		b.WriteString(m.spinner.View() + pendingStyle.Render(" "+m.persona.Name+" is typing..."))
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(inputStyle.Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send · tab hide · pgup/pgdown scroll · ctrl+c quit"))
	return b.String()
}

// Run opens the widget for client until the user quits.
func Run(ctx context.Context, client *conversation.Client, p persona.Persona) error {
	m := NewModel(ctx, client, p, client.Transcript())
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	unsubscribe := client.Subscribe(NewSurface(prog))
	defer unsubscribe()

	_, err := prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
