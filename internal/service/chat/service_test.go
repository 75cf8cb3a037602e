package chat_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modelchat "github.com/nutrigraph/nutribot/backend/internal/model/chat"
	"github.com/nutrigraph/nutribot/backend/internal/model/persona"
	chat "github.com/nutrigraph/nutribot/backend/internal/service/chat"
	"github.com/nutrigraph/nutribot/backend/internal/service/conversation"
)

type memoryArchive struct {
	mu   sync.Mutex
	msgs map[string][]modelchat.Message
	err  error
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{msgs: make(map[string][]modelchat.Message)}
}

func (a *memoryArchive) Append(_ context.Context, msg modelchat.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.msgs[msg.SessionID] = append(a.msgs[msg.SessionID], msg)
	return nil
}

func (a *memoryArchive) Load(_ context.Context, sessionID string) ([]modelchat.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]modelchat.Message(nil), a.msgs[sessionID]...), nil
}

func echoResponders(calls *int) chat.ResponderFactory {
	return func(context.Context, persona.Persona) (conversation.Responder, error) {
		*calls++
		return conversation.ResponderFunc(func(_ context.Context, q string) (string, error) {
			return "echo: " + q, nil
		}), nil
	}
}

func newService(t *testing.T, opts chat.Options) *chat.Service {
	t.Helper()
	svc := chat.NewService(persona.NewMemoryStore(persona.Seed()), opts)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

func TestServiceCreateSessionDefaultsPersona(t *testing.T) {
	svc := newService(t, chat.Options{})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, persona.DefaultID, session.PersonaID)
	assert.NotEmpty(t, session.ID)

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session, got)

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 1)
	assert.Equal(t, modelchat.RoleBot, transcript[0].Role)
	assert.Equal(t, persona.Seed()[0].OpeningLine, transcript[0].Content)
}

func TestServiceCreateSessionUnknownPersona(t *testing.T) {
	svc := newService(t, chat.Options{})
	_, err := svc.CreateSession(context.Background(), "iron-man")
	require.ErrorIs(t, err, chat.ErrPersonaNotFound)
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newService(t, chat.Options{})
	ctx := context.Background()

	_, err := svc.GetSession(ctx, "missing")
	require.ErrorIs(t, err, chat.ErrSessionNotFound)
	_, err = svc.Client("missing")
	require.ErrorIs(t, err, chat.ErrSessionNotFound)
	_, err = svc.Submit(ctx, "missing", "hi")
	require.ErrorIs(t, err, chat.ErrSessionNotFound)
	_, err = svc.LoadTranscript(ctx, "missing")
	require.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestServiceSubmitUsesCachedResponder(t *testing.T) {
	calls := 0
	svc := newService(t, chat.Options{Responders: echoResponders(&calls)})
	ctx := context.Background()

	first, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	second, err := svc.CreateSession(ctx, persona.DefaultID)
	require.NoError(t, err)

	reply, err := svc.Submit(ctx, first.ID, "kale?")
	require.NoError(t, err)
	assert.Equal(t, "echo: kale?", reply.Text)
	assert.False(t, reply.Fallback)

	_, err = svc.Submit(ctx, second.ID, "beets?")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	transcript, err := svc.LoadTranscript(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 3)
	assert.Equal(t, "kale?", transcript[1].Content)
	assert.Equal(t, "echo: kale?", transcript[2].Content)
}

func TestServiceOfflineWhenResponderFails(t *testing.T) {
	svc := newService(t, chat.Options{
		Responders: func(context.Context, persona.Persona) (conversation.Responder, error) {
			return nil, errors.New("no credentials")
		},
		Timeout: time.Second,
	})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	reply, err := svc.Submit(ctx, session.ID, "What is the origin of sushi?")
	require.NoError(t, err)
	assert.True(t, reply.Fallback)
	assert.Equal(t, conversation.FailureTransport, reply.Kind)
}

func TestServiceArchivesEveryMessage(t *testing.T) {
	archive := newMemoryArchive()
	calls := 0
	svc := newService(t, chat.Options{Responders: echoResponders(&calls), Archive: archive})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, session.ID, "tofu")
	require.NoError(t, err)
	require.NoError(t, svc.Close(ctx))

	archived, err := archive.Load(ctx, session.ID)
	require.NoError(t, err)
	live, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, live, archived)
}

// blockingArchive holds every Append until release is closed.
type blockingArchive struct {
	*memoryArchive
	release chan struct{}
}

func (a *blockingArchive) Append(ctx context.Context, msg modelchat.Message) error {
	select {
	case <-a.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return a.memoryArchive.Append(ctx, msg)
}

func TestServiceSlowArchiveDoesNotBlockSubmit(t *testing.T) {
	archive := &blockingArchive{memoryArchive: newMemoryArchive(), release: make(chan struct{})}
	calls := 0
	svc := newService(t, chat.Options{Responders: echoResponders(&calls), Archive: archive})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	replied := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, session.ID, "tofu")
		replied <- err
	}()
	select {
	case err := <-replied:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("submit waited on the archive")
	}

	close(archive.release)
	require.NoError(t, svc.Close(ctx))
	archived, err := archive.Load(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, archived, 3)
}

func TestServiceCloseStopsArchiving(t *testing.T) {
	archive := newMemoryArchive()
	calls := 0
	svc := newService(t, chat.Options{Responders: echoResponders(&calls), Archive: archive})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	require.NoError(t, svc.Close(ctx))

	_, err = svc.Submit(ctx, session.ID, "after close")
	require.NoError(t, err)

	archived, err := archive.Load(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, archived, 1)
	live, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, live, 3)
}

func TestServiceArchiveFailureKeepsTranscript(t *testing.T) {
	archive := newMemoryArchive()
	archive.err = errors.New("redis down")
	calls := 0
	svc := newService(t, chat.Options{Responders: echoResponders(&calls), Archive: archive})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, session.ID, "tofu")
	require.NoError(t, err)

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, transcript, 3)
}

func TestServiceLoadTranscriptFromArchive(t *testing.T) {
	archive := newMemoryArchive()
	ctx := context.Background()
	require.NoError(t, archive.Append(ctx, modelchat.Message{SessionID: "old", Role: modelchat.RoleUser, Content: "hi"}))

	svc := newService(t, chat.Options{Archive: archive})
	transcript, err := svc.LoadTranscript(ctx, "old")
	require.NoError(t, err)
	require.Len(t, transcript, 1)
	assert.Equal(t, "hi", transcript[0].Content)
}

func TestRedisArchiveRoundTrip(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	archive, err := chat.NewRedisArchive(ctx, redisURL, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })

	sessionID := "test-" + time.Now().Format("150405.000000000")
	for _, content := range []string{"hello", "world"} {
		require.NoError(t, archive.Append(ctx, modelchat.Message{SessionID: sessionID, Role: modelchat.RoleUser, Content: content}))
	}

	got, err := archive.Load(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Content)
	assert.Equal(t, "world", got[1].Content)

	_, err = archive.Load(ctx, sessionID+"-missing")
	require.NoError(t, err)
}
