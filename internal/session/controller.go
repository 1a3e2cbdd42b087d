// Package session runs one open chat on the client: it loads the history,
// keeps the timeline in sync with pushed events, sends messages with an
// optimistic input reset and keeps read receipts up to date.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"pawchat/backend/internal/models"
)

var (
	ErrClosed      = errors.New("session: closed")
	ErrNotReady    = errors.New("session: not ready")
	ErrAlreadyOpen = errors.New("session: already open")
)

type State int

const (
	Loading State = iota
	Ready
	Sending
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Sending:
		return "sending"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithOnChange registers fn to run after every visible state change. fn runs
// outside the controller lock and may call its accessors.
func WithOnChange(fn func()) Option {
	return func(c *Controller) { c.onChange = fn }
}

// Controller is the state machine of one open conversation.
type Controller struct {
	ConversationID string
	ViewerID       string

	backend    Backend
	subscriber Subscriber
	logger     *slog.Logger
	onChange   func()

	// ctx is cancelled by Close; push receipts run under it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	err      error
	view     *models.ConversationView
	timeline *Timeline
	input    string
	sub      Subscription
	inflight int

	// syncing is set while history loads; pushes are parked in pending.
	syncing bool
	pending []models.Message
}

func NewController(conversationID, viewerID string, backend Backend, subscriber Subscriber, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		ConversationID: conversationID,
		ViewerID:       viewerID,
		backend:        backend,
		subscriber:     subscriber,
		logger:         slog.Default(),
		ctx:            ctx,
		cancel:         cancel,
		state:          Loading,
		timeline:       NewTimeline(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open loads the conversation and enters Ready. The subscription is made
// before the history snapshot so that nothing inserted in between is lost.
// On failure the controller is Failed and Open may be called again.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Closed:
		c.mu.Unlock()
		return ErrClosed
	case Ready, Sending:
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.state = Loading
	c.err = nil
	c.mu.Unlock()
	c.notify()

	view, err := c.backend.ConversationView(ctx, c.ConversationID)
	if err != nil {
		return c.fail(fmt.Errorf("load conversation: %w", err))
	}
	c.mu.Lock()
	c.view = view
	c.mu.Unlock()

	if err := c.sync(ctx); err != nil {
		if errors.Is(err, ErrClosed) {
			return err
		}
		return c.fail(err)
	}

	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.state = Ready
	c.mu.Unlock()
	c.notify()

	c.markAllRead(ctx)
	return nil
}

// sync subscribes, loads the full history and merges the pushes that arrived
// meanwhile.
func (c *Controller) sync(ctx context.Context) error {
	c.mu.Lock()
	c.syncing = true
	c.pending = nil
	c.mu.Unlock()

	sub, err := c.subscriber.Subscribe(ctx, c.ConversationID, c.handlePush)
	if err != nil {
		c.endSync()
		return fmt.Errorf("subscribe: %w", err)
	}

	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		sub.Close()
		return ErrClosed
	}
	old := c.sub
	c.sub = sub
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}

	history, err := c.backend.ListMessages(ctx, c.ConversationID)
	if err != nil {
		c.abortSync(sub)
		return fmt.Errorf("load history: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return ErrClosed
	}
	c.timeline.Merge(history...)
	c.timeline.Merge(c.pending...)
	c.pending = nil
	c.syncing = false
	return nil
}

func (c *Controller) endSync() {
	c.mu.Lock()
	c.syncing = false
	c.pending = nil
	c.mu.Unlock()
}

// abortSync keeps the pushes buffered so far and drops sub, so the chat stays
// stale until a later sync loads the history it missed.
func (c *Controller) abortSync(sub Subscription) {
	c.mu.Lock()
	if c.state != Closed {
		c.timeline.Merge(c.pending...)
	}
	c.pending = nil
	c.syncing = false
	if c.sub == sub {
		c.sub = nil
	}
	c.mu.Unlock()
	sub.Close()
}

func (c *Controller) fail(err error) error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.state = Failed
	c.err = err
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	c.logger.Warn("chat session failed", "conversation_id", c.ConversationID, "error", err)
	c.notify()
	return err
}

// handlePush merges one bridge event. When the other participant sent it, the
// message is marked read right away since the chat is open.
func (c *Controller) handlePush(ev models.MessageEvent) {
	if ev.ConversationID != c.ConversationID || ev.Message.ID == "" || ev.Message.ConversationID != c.ConversationID {
		return
	}
	msg := ev.Message

	c.mu.Lock()
	switch {
	case c.state == Closed || c.state == Failed:
		c.mu.Unlock()
		return
	case c.syncing:
		c.pending = append(c.pending, msg)
		c.mu.Unlock()
		return
	}
	added := c.timeline.Merge(msg) > 0
	c.mu.Unlock()

	if added {
		c.notify()
	}
	if msg.SenderID != c.ViewerID && msg.ReadAt == nil {
		if _, err := c.backend.MarkMessageRead(c.ctx, c.ConversationID, msg.ID); err != nil && c.ctx.Err() == nil {
			c.logger.Warn("failed to mark pushed message read", "conversation_id", c.ConversationID, "message_id", msg.ID, "error", err)
		}
	}
}

// SetInput replaces the draft.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
}

func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Send sends the current draft. The input is cleared before the call and
// restored if it fails, unless the user has typed something new in the
// meantime. A blank draft returns models.ErrEmptyBody without a backend call.
func (c *Controller) Send(ctx context.Context) (*models.Message, error) {
	c.mu.Lock()
	switch c.state {
	case Closed:
		c.mu.Unlock()
		return nil, ErrClosed
	case Ready, Sending:
	default:
		c.mu.Unlock()
		return nil, ErrNotReady
	}
	body := c.input
	if strings.TrimSpace(body) == "" {
		c.mu.Unlock()
		return nil, models.ErrEmptyBody
	}
	c.input = ""
	c.inflight++
	c.state = Sending
	c.mu.Unlock()
	c.notify()

	msg, err := c.backend.AppendMessage(ctx, c.ConversationID, body)

	c.mu.Lock()
	c.inflight--
	if c.state == Closed {
		c.mu.Unlock()
		return msg, err
	}
	if c.inflight == 0 && c.state == Sending {
		c.state = Ready
	}
	if err != nil {
		if c.input == "" {
			c.input = body
		}
		c.mu.Unlock()
		c.notify()
		return nil, err
	}
	if msg != nil {
		c.timeline.Merge(*msg)
	}
	c.mu.Unlock()
	c.notify()
	return msg, nil
}

// Focus is called when the chat regains the foreground. It marks everything
// read and, if the realtime stream has dropped, resubscribes and reloads.
func (c *Controller) Focus(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Closed:
		c.mu.Unlock()
		return ErrClosed
	case Ready, Sending:
	default:
		c.mu.Unlock()
		return ErrNotReady
	}
	stale := c.sub == nil || isDone(c.sub.Done())
	c.mu.Unlock()

	if stale {
		c.logger.Info("realtime stream dropped, resyncing", "conversation_id", c.ConversationID)
		if err := c.sync(ctx); err != nil {
			return err
		}
		c.notify()
	}
	c.markAllRead(ctx)
	return nil
}

func (c *Controller) markAllRead(ctx context.Context) {
	if _, err := c.backend.MarkRead(ctx, c.ConversationID); err != nil {
		c.logger.Warn("failed to mark conversation read", "conversation_id", c.ConversationID, "error", err)
	}
}

// Close releases the subscription. Later pushes and send results are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return
	}
	c.state = Closed
	sub := c.sub
	c.sub = nil
	c.pending = nil
	c.mu.Unlock()

	c.cancel()
	if sub != nil {
		sub.Close()
	}
	c.notify()
}

// Stale reports whether the realtime stream has ended while the chat is open.
func (c *Controller) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Ready && c.state != Sending {
		return false
	}
	return c.sub == nil || isDone(c.sub.Done())
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err is the error that moved the controller to Failed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) View() *models.ConversationView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Messages returns the timeline in display order.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeline.Messages()
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}

func isDone(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
