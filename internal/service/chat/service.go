// Package chat keeps one conversation client per session.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nutrigraph/nutribot/backend/internal/logger"
	"github.com/nutrigraph/nutribot/backend/internal/model/chat"
	"github.com/nutrigraph/nutribot/backend/internal/model/persona"
	"github.com/nutrigraph/nutribot/backend/internal/service/conversation"
)

var (
	ErrPersonaNotFound = errors.New("persona not found")
	ErrSessionNotFound = errors.New("session not found")
)

const archiveTimeout = 2 * time.Second

// ResponderFactory builds the remote responder for a persona. Returning an
// error leaves sessions of that persona in offline mode.
type ResponderFactory func(ctx context.Context, p persona.Persona) (conversation.Responder, error)

// Options configures a Service.
type Options struct {
	Responders ResponderFactory
	Timeout    time.Duration
	Metrics    *conversation.Metrics
	Archive    Archive
}

type entry struct {
	session chat.Session
	client  *conversation.Client
}

// Service encapsulates conversation state management.
type Service struct {
	personas   persona.Store
	responders ResponderFactory
	timeout    time.Duration
	metrics    *conversation.Metrics
	archive    Archive
	archiver   *archiver
	log        zerolog.Logger

	mu        sync.RWMutex
	sessions  map[string]*entry
	byPersona map[string]conversation.Responder
}

// NewService bootstraps the in-memory session registry.
func NewService(personas persona.Store, opts Options) *Service {
	archive := opts.Archive
	if archive == nil {
		archive = NoopArchive{}
	}
	log := logger.For("chat")
	return &Service{
		personas:   personas,
		responders: opts.Responders,
		timeout:    opts.Timeout,
		metrics:    opts.Metrics,
		archive:    archive,
		archiver:   newArchiver(archive, log),
		log:        log,
		sessions:   make(map[string]*entry),
		byPersona:  make(map[string]conversation.Responder),
	}
}

// Close flushes pending archive writes. Messages recorded afterwards are kept
// in memory only.
func (s *Service) Close(ctx context.Context) error {
	return s.archiver.close(ctx)
}

// CreateSession provisions an anonymous session bound to a persona. An empty
// personaID selects the default assistant.
func (s *Service) CreateSession(ctx context.Context, personaID string) (chat.Session, error) {
	if personaID == "" {
		personaID = persona.DefaultID
	}
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return chat.Session{}, ErrPersonaNotFound
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		PersonaID: p.ID,
		CreatedAt: time.Now().UTC(),
	}

	// New records the greeting before anything can subscribe, so it is
	// archived by hand. Archive writes are queued and never block Submit.
	client := conversation.New(s.responderFor(ctx, p), conversation.Options{
		SessionID: session.ID,
		Timeout:   s.timeout,
		Greeting:  p.OpeningLine,
		Metrics:   s.metrics,
	})
	for _, msg := range client.Transcript() {
		s.archiver.enqueue(msg)
	}
	client.Subscribe(conversation.SurfaceFuncs{OnMessage: s.archiver.enqueue})

	s.mu.Lock()
	s.sessions[session.ID] = &entry{session: session, client: client}
	s.mu.Unlock()

	s.log.Info().Str("session", session.ID).Str("persona", p.ID).Msg("session created")
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return e.session, nil
}

// Client returns the conversation client owning the session transcript.
func (s *Service) Client(sessionID string) (*conversation.Client, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return e.client, nil
}

// Submit forwards text to the session's client.
func (s *Service) Submit(ctx context.Context, sessionID, text string) (conversation.Reply, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return conversation.Reply{}, err
	}
	return e.client.Submit(ctx, text)
}

// LoadTranscript returns stored messages for the provided session. Sessions
// that are no longer in memory are read back from the archive.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	e, err := s.lookup(sessionID)
	if err == nil {
		return e.client.Transcript(), nil
	}

	archived, archErr := s.archive.Load(ctx, sessionID)
	if archErr != nil {
		s.log.Warn().Err(archErr).Str("session", sessionID).Msg("archive lookup failed")
		return nil, ErrSessionNotFound
	}
	if len(archived) == 0 {
		return nil, ErrSessionNotFound
	}
	return archived, nil
}

func (s *Service) lookup(sessionID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// responderFor caches one responder per persona. A nil result means offline.
func (s *Service) responderFor(ctx context.Context, p persona.Persona) conversation.Responder {
	s.mu.RLock()
	r, ok := s.byPersona[p.ID]
	s.mu.RUnlock()
	if ok {
		return r
	}
	if s.responders == nil {
		return nil
	}

	r, err := s.responders(ctx, p)
	if err != nil {
		s.log.Warn().Err(err).Str("persona", p.ID).Msg("remote model unavailable, sessions will use fallback answers")
		r = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byPersona[p.ID]; ok {
		return existing
	}
	s.byPersona[p.ID] = r
	return r
}
