package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nutrigraph/nutribot/backend/internal/model/chat"
)

const archiveQueueSize = 256

// archiver moves archive writes off the submitting goroutine. A single worker
// keeps per-session order. When the queue is full the message is dropped from
// the archive only; the in-memory transcript is unaffected.
type archiver struct {
	archive Archive
	log     zerolog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan chat.Message
	done   chan struct{}
}

func newArchiver(archive Archive, log zerolog.Logger) *archiver {
	a := &archiver{
		archive: archive,
		log:     log,
		queue:   make(chan chat.Message, archiveQueueSize),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *archiver) enqueue(msg chat.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- msg:
	default:
		a.log.Warn().Str("session", msg.SessionID).Str("message", msg.ID).Msg("archive queue full, message not archived")
	}
}

func (a *archiver) run() {
	defer close(a.done)
	for msg := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		if err := a.archive.Append(ctx, msg); err != nil {
			a.log.Warn().Err(err).Str("session", msg.SessionID).Msg("failed to archive message")
		}
		cancel()
	}
}

// close stops accepting messages and waits until queued ones are written or
// ctx ends.
func (a *archiver) close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
