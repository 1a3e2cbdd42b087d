package session

import (
	"sort"

	"pawchat/backend/internal/models"
)

// Timeline is the ordered set of messages shown in an open chat. Messages are
// keyed by id, so the same message arriving from history, a push and the send
// result is kept once.
type Timeline struct {
	items []models.Message
	index map[string]struct{}
}

func NewTimeline() *Timeline {
	return &Timeline{index: make(map[string]struct{})}
}

// Merge inserts msgs in (created_at, id) order and returns how many were new.
// A duplicate only contributes its read_at when the stored copy has none.
func (t *Timeline) Merge(msgs ...models.Message) int {
	added := 0
	for _, msg := range msgs {
		if msg.ID == "" {
			continue
		}
		if _, ok := t.index[msg.ID]; ok {
			t.updateReadAt(msg)
			continue
		}
		pos := sort.Search(len(t.items), func(i int) bool {
			return msg.Before(t.items[i])
		})
		t.items = append(t.items, models.Message{})
		copy(t.items[pos+1:], t.items[pos:])
		t.items[pos] = msg
		t.index[msg.ID] = struct{}{}
		added++
	}
	return added
}

func (t *Timeline) updateReadAt(msg models.Message) {
	if msg.ReadAt == nil {
		return
	}
	for i := range t.items {
		if t.items[i].ID == msg.ID {
			if t.items[i].ReadAt == nil {
				t.items[i].ReadAt = msg.ReadAt
			}
			return
		}
	}
}

func (t *Timeline) Contains(id string) bool {
	_, ok := t.index[id]
	return ok
}

func (t *Timeline) Len() int {
	return len(t.items)
}

// Messages returns a copy of the ordered timeline.
func (t *Timeline) Messages() []models.Message {
	out := make([]models.Message, len(t.items))
	copy(out, t.items)
	return out
}
