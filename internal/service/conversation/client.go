// Package conversation turns user utterances into bot utterances. Each
// submission makes one remote call bounded by a timeout; when the call fails
// or loses the race, a keyword-routed local answer is used instead.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nutrigraph/nutribot/backend/internal/analysis/topic"
	"github.com/nutrigraph/nutribot/backend/internal/logger"
	"github.com/nutrigraph/nutribot/backend/internal/model/chat"
)

// DefaultTimeout bounds the remote call when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Responder produces the remote answer for one user query.
type Responder interface {
	Respond(ctx context.Context, userText string) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, userText string) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, userText string) (string, error) {
	return f(ctx, userText)
}

// Options configures a Client.
type Options struct {
	SessionID string
	Timeout   time.Duration
	// Greeting, when set, is recorded as the first bot message.
	Greeting string
	Metrics  *Metrics
}

// Reply is the outcome of one submission.
type Reply struct {
	Text     string         `json:"reply"`
	Fallback bool           `json:"fallback"`
	Kind     FailureKind    `json:"kind"`
	Topic    topic.Category `json:"topic,omitempty"`
	Elapsed  time.Duration  `json:"-"`
}

type subscriber struct {
	id      uint64
	surface Surface
}

// Client owns one transcript. At most one remote call is in flight; one
// further submission may wait for it.
type Client struct {
	responder Responder
	sessionID string
	timeout   time.Duration
	metrics   *Metrics
	log       zerolog.Logger

	slot   chan struct{}
	queued atomic.Bool

	mu         sync.RWMutex
	transcript []chat.Message
	surfaces   []subscriber
	nextSubID  uint64
	pending    bool
}

// New creates a client. A nil responder makes every submission fall back.
func New(responder Responder, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		responder:  responder,
		sessionID:  opts.SessionID,
		timeout:    timeout,
		metrics:    opts.Metrics,
		log:        logger.For("conversation").With().Str("session", opts.SessionID).Logger(),
		slot:       make(chan struct{}, 1),
		transcript: make([]chat.Message, 0, 16),
	}
	if greeting := strings.TrimSpace(opts.Greeting); greeting != "" {
		c.record(chat.RoleBot, greeting, nil)
	}
	return c
}

// SessionID returns the identifier stamped on recorded messages.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Subscribe attaches a UI collaborator. The returned func detaches it.
func (c *Client) Subscribe(s Surface) func() {
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.surfaces = append(c.surfaces, subscriber{id: id, surface: s})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, sub := range c.surfaces {
				if sub.id == id {
					c.surfaces = append(c.surfaces[:i:i], c.surfaces[i+1:]...)
					return
				}
			}
		})
	}
}

// Transcript returns a copy of the recorded messages in order.
func (c *Client) Transcript() []chat.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]chat.Message, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Pending reports whether a remote call is outstanding.
func (c *Client) Pending() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pending
}

// Submit records text as a user message and always follows it with exactly
// one bot message. Remote failures are never returned; errors only come
// from validation or queueing, before anything is recorded.
func (c *Client) Submit(ctx context.Context, text string) (Reply, error) {
	return c.SubmitTo(ctx, text, nil)
}

// SubmitTo is Submit with an extra surface that sees only this submission's
// events, after the subscribed surfaces. It is never called for a submission
// that is rejected or still waiting in the queue.
func (c *Client) SubmitTo(ctx context.Context, text string, own Surface) (Reply, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		c.metrics.reject("empty")
		return Reply{}, ErrEmptyInput
	}

	if err := c.acquire(ctx); err != nil {
		reason := "cancelled"
		if errors.Is(err, ErrBusy) {
			reason = "busy"
		}
		c.metrics.reject(reason)
		return Reply{}, err
	}
	defer c.release()

	started := time.Now()
	c.record(chat.RoleUser, query, own)
	c.setPending(true, own)

	answer, err := c.race(ctx, query)
	reply := Reply{Text: answer, Kind: FailureNone}
	if err != nil {
		reply.Kind = classify(err)
		reply.Fallback = true
		reply.Topic, reply.Text = topic.Fallback(query)
		c.log.Warn().
			Err(err).
			Str("kind", string(reply.Kind)).
			Str("topic", string(reply.Topic)).
			Msg("remote answer unavailable, using fallback")
	}
	reply.Elapsed = time.Since(started)

	c.setPending(false, own)
	c.record(chat.RoleBot, reply.Text, own)
	c.metrics.observe(reply)
	return reply, nil
}

type callResult struct {
	text string
	err  error
}

// race runs the remote call against the timeout. The loser's result is
// dropped, and the call context is cancelled once race returns.
func (c *Client) race(ctx context.Context, query string) (string, error) {
	if c.responder == nil {
		return "", ErrUnavailable
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("responder panic: %v", r)}
			}
		}()
		text, err := c.responder.Respond(callCtx, query)
		done <- callResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			if res.err != nil {
				return "", fmt.Errorf("%w: %w", errRaceTimeout, res.err)
			}
			return "", fmt.Errorf("%w after %s", errRaceTimeout, c.timeout)
		}
		if res.err != nil {
			return "", res.err
		}
		if strings.TrimSpace(res.text) == "" {
			return "", ErrEmptyAnswer
		}
		return res.text, nil
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", errRaceTimeout, c.timeout)
		}
		return "", fmt.Errorf("remote call abandoned: %w", callCtx.Err())
	}
}

func (c *Client) acquire(ctx context.Context) error {
	select {
	case c.slot <- struct{}{}:
		return nil
	default:
	}

	if !c.queued.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.queued.Store(false)

	select {
	case c.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() {
	<-c.slot
}

func (c *Client) record(role chat.Role, content string, own Surface) chat.Message {
	msg := chat.Message{
		ID:        uuid.NewString(),
		SessionID: c.sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	c.mu.Lock()
	c.transcript = append(c.transcript, msg)
	surfaces := c.snapshotSurfaces(own)
	c.mu.Unlock()

	for _, s := range surfaces {
		s.AppendMessage(msg)
	}
	return msg
}

func (c *Client) setPending(pending bool, own Surface) {
	c.mu.Lock()
	c.pending = pending
	surfaces := c.snapshotSurfaces(own)
	c.mu.Unlock()

	for _, s := range surfaces {
		s.SetPending(pending)
	}
}

// snapshotSurfaces must be called with c.mu held.
func (c *Client) snapshotSurfaces(own Surface) []Surface {
	out := make([]Surface, 0, len(c.surfaces)+1)
	for _, sub := range c.surfaces {
		out = append(out, sub.surface)
	}
	if own != nil {
		out = append(out, own)
	}
	return out
}
