package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutrigraph/nutribot/backend/internal/model/chat"
	"github.com/nutrigraph/nutribot/backend/internal/model/persona"
	"github.com/nutrigraph/nutribot/backend/internal/service/conversation"
)

type fakeSubmitter struct {
	texts []string
	err   error
}

func (f *fakeSubmitter) Submit(_ context.Context, text string) (conversation.Reply, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return conversation.Reply{}, f.err
	}
	return conversation.Reply{Text: "ok"}, nil
}

func newTestModel(sub Submitter) Model {
	p := persona.Seed()[0]
	greeting := chat.Message{Role: chat.RoleBot, Content: p.OpeningLine}
	return NewModel(context.Background(), sub, p, []chat.Message{greeting})
}

func typeText(m Model, text string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(Model)
}

func press(m Model, key tea.KeyType) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: key})
	return next.(Model), cmd
}

func TestEnterSubmitsTrimmedInput(t *testing.T) {
	sub := &fakeSubmitter{}
	m := typeText(newTestModel(sub), "what is tempeh?")

	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())

	done, ok := cmd().(submitDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	assert.Equal(t, []string{"what is tempeh?"}, sub.texts)
}

func TestEnterIgnoresBlankInput(t *testing.T) {
	sub := &fakeSubmitter{}
	m := typeText(newTestModel(sub), "   ")

	_, cmd := press(m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.Empty(t, sub.texts)
}

func TestTabTogglesWidget(t *testing.T) {
	m := newTestModel(&fakeSubmitter{})
	require.True(t, m.open)
	assert.Contains(t, m.View(), "NutriBot Assistant")

	m, _ = press(m, tea.KeyTab)
	assert.False(t, m.open)
	assert.NotContains(t, m.View(), "NutriBot Assistant")

	m = typeText(m, "ignored")
	assert.Empty(t, m.input.Value())

	m, _ = press(m, tea.KeyTab)
	assert.True(t, m.open)
}

func TestSurfaceMessagesUpdateView(t *testing.T) {
	var delivered []tea.Msg
	s := &Surface{send: func(msg tea.Msg) { delivered = append(delivered, msg) }}
	s.AppendMessage(chat.Message{Role: chat.RoleUser, Content: "is rice gluten free?"})
	s.SetPending(true)
	require.Len(t, delivered, 2)

	m := newTestModel(&fakeSubmitter{})
	for _, msg := range delivered {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	assert.Len(t, m.messages, 2)
	assert.True(t, m.pending)
	assert.Contains(t, m.View(), "is typing")
	assert.Contains(t, m.viewport.View(), "is rice gluten free?")

	next, _ := m.Update(pendingMsg(false))
	m = next.(Model)
	assert.NotContains(t, m.View(), "is typing")
}

func TestSubmitDoneShowsBusyStatus(t *testing.T) {
	m := newTestModel(&fakeSubmitter{})
	next, _ := m.Update(submitDoneMsg{err: conversation.ErrBusy})
	m = next.(Model)
	assert.Contains(t, m.View(), "still answering")

	next, _ = m.Update(submitDoneMsg{reply: conversation.Reply{Fallback: true, Kind: conversation.FailureTimeout}})
	m = next.(Model)
	assert.Contains(t, m.View(), "offline answer (timeout)")
}
