package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nutrigraph/nutribot/backend/internal/model/chat"
)

type messageMsg struct {
	message chat.Message
}

type pendingMsg bool

// Surface forwards conversation callbacks into a running program.
type Surface struct {
	send func(tea.Msg)
}

// NewSurface returns a Surface that delivers to p.
func NewSurface(p *tea.Program) *Surface {
	return &Surface{send: p.Send}
}

func (s *Surface) AppendMessage(msg chat.Message) {
	s.send(messageMsg{message: msg})
}

func (s *Surface) SetPending(pending bool) {
	s.send(pendingMsg(pending))
}
