// Package inbox keeps a signed-in user's conversation list current from the
// broad realtime stream.
package inbox

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"pawchat/backend/internal/models"
	"pawchat/backend/internal/session"
)

// Backend is the directory API as seen by the signed-in user.
type Backend interface {
	ListConversations(ctx context.Context) ([]models.ConversationSummary, error)
	Summary(ctx context.Context, conversationID string) (*models.ConversationSummary, error)
}

// Subscriber opens the stream of inserts across all of the user's conversations.
type Subscriber interface {
	SubscribeInbox(ctx context.Context, h func(models.MessageEvent)) (session.Subscription, error)
}

var ErrStopped = errors.New("inbox: stopped")

type Option func(*Watcher)

// WithFullRefresh reloads the whole list on every event instead of patching
// the conversation the event names.
func WithFullRefresh() Option {
	return func(w *Watcher) { w.fullRefresh = true }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

func WithOnChange(fn func()) Option {
	return func(w *Watcher) { w.onChange = fn }
}

// Watcher holds the directory of one user ordered by last activity.
type Watcher struct {
	UserID string

	backend     Backend
	subscriber  Subscriber
	logger      *slog.Logger
	onChange    func()
	fullRefresh bool

	ctx    context.Context
	cancel context.CancelFunc

	// refreshMu serializes backend reloads so patches apply in event order.
	refreshMu sync.Mutex

	mu        sync.Mutex
	summaries []models.ConversationSummary
	sub       session.Subscription
	stopped   bool
}

func NewWatcher(userID string, backend Backend, subscriber Subscriber, opts ...Option) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		UserID:     userID,
		backend:    backend,
		subscriber: subscriber,
		logger:     slog.Default(),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start subscribes and loads the initial list. The subscription comes first
// so that no insert between the two is missed.
func (w *Watcher) Start(ctx context.Context) error {
	sub, err := w.subscriber.SubscribeInbox(ctx, w.handleEvent)
	if err != nil {
		return err
	}
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		sub.Close()
		return ErrStopped
	}
	old := w.sub
	w.sub = sub
	w.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return w.Refresh(ctx)
}

// Refresh reloads every summary.
func (w *Watcher) Refresh(ctx context.Context) error {
	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()

	summaries, err := w.backend.ListConversations(ctx)
	if err != nil {
		return err
	}
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrStopped
	}
	w.summaries = summaries
	sortSummaries(w.summaries)
	w.mu.Unlock()
	w.notify()
	return nil
}

func (w *Watcher) handleEvent(ev models.MessageEvent) {
	if ev.ConversationID == "" || !ev.Involves(w.UserID) {
		return
	}
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}

	if w.fullRefresh {
		if err := w.Refresh(w.ctx); err != nil && !errors.Is(err, ErrStopped) && w.ctx.Err() == nil {
			w.logger.Warn("inbox refresh failed", "user_id", w.UserID, "error", err)
		}
		return
	}
	w.patch(ev)
}

// patch refetches the one summary the event names. If that fails the row is
// updated from the event payload alone, and only when the message is newer
// than what the row already reflects.
func (w *Watcher) patch(ev models.MessageEvent) {
	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()

	summary, err := w.backend.Summary(w.ctx, ev.ConversationID)
	if err != nil && w.ctx.Err() == nil {
		w.logger.Warn("inbox patch failed", "user_id", w.UserID, "conversation_id", ev.ConversationID, "error", err)
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	idx := w.indexLocked(ev.ConversationID)
	switch {
	case summary != nil && idx >= 0:
		w.summaries[idx] = *summary
	case summary != nil:
		w.summaries = append(w.summaries, *summary)
	case idx >= 0:
		row := &w.summaries[idx]
		msg := ev.Message
		counted := (row.LastMessage != nil && row.LastMessage.ID == msg.ID) ||
			!msg.CreatedAt.After(row.Conversation.LastMessageAt)
		if counted {
			// a reload already saw this message
			w.mu.Unlock()
			return
		}
		row.LastMessage = &msg
		row.Conversation.LastMessageAt = msg.CreatedAt
		if msg.SenderID != w.UserID && msg.ReadAt == nil {
			row.UnreadCount++
		}
	default:
		// unknown conversation and nothing to build a row from
		w.mu.Unlock()
		return
	}
	sortSummaries(w.summaries)
	w.mu.Unlock()
	w.notify()
}

func (w *Watcher) indexLocked(conversationID string) int {
	for i := range w.summaries {
		if w.summaries[i].Conversation.ID == conversationID {
			return i
		}
	}
	return -1
}

// Summaries returns the directory, most recent activity first.
func (w *Watcher) Summaries() []models.ConversationSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.ConversationSummary, len(w.summaries))
	copy(out, w.summaries)
	return out
}

// TotalUnread sums the unread counts across conversations.
func (w *Watcher) TotalUnread() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var total int64
	for _, s := range w.summaries {
		total += s.UnreadCount
	}
	return total
}

// Done is closed when the stream ends; nil before Start.
func (w *Watcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub == nil {
		return nil
	}
	return w.sub.Done()
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	sub := w.sub
	w.sub = nil
	w.mu.Unlock()

	w.cancel()
	if sub != nil {
		sub.Close()
	}
}

func (w *Watcher) notify() {
	if w.onChange != nil {
		w.onChange()
	}
}

func sortSummaries(s []models.ConversationSummary) {
	sort.SliceStable(s, func(i, j int) bool {
		a, b := s[i].Conversation, s[j].Conversation
		if a.LastMessageAt.Equal(b.LastMessageAt) {
			return a.ID < b.ID
		}
		return a.LastMessageAt.After(b.LastMessageAt)
	})
}
