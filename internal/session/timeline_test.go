package session_test

import (
	"testing"
	"time"

	"pawchat/backend/internal/session"

	"github.com/stretchr/testify/assert"
)

func TestTimeline_MergeDedupsAndOrders(t *testing.T) {
	tl := session.NewTimeline()

	added := tl.Merge(msgAt("m2", "a", 1), msgAt("m1", "a", 0))
	assert.Equal(t, 2, added)

	added = tl.Merge(msgAt("m1", "a", 0), msgAt("m3", "b", 2))
	assert.Equal(t, 1, added)

	assert.Equal(t, 3, tl.Len())
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(tl.Messages()))
	assert.True(t, tl.Contains("m2"))
	assert.False(t, tl.Contains("m9"))
}

func TestTimeline_EqualTimestampsOrderByID(t *testing.T) {
	tl := session.NewTimeline()

	tl.Merge(msgAt("b", "x", 0), msgAt("a", "x", 0), msgAt("c", "x", 0))

	assert.Equal(t, []string{"a", "b", "c"}, ids(tl.Messages()))
}

func TestTimeline_DuplicateFillsReadAt(t *testing.T) {
	tl := session.NewTimeline()
	unread := msgAt("m1", "a", 0)
	read := unread
	readAt := time.Now()
	read.ReadAt = &readAt

	tl.Merge(unread)
	tl.Merge(read)
	tl.Merge(unread)

	got := tl.Messages()
	assert.Len(t, got, 1)
	assert.NotNil(t, got[0].ReadAt)
}

func TestTimeline_SkipsMessagesWithoutID(t *testing.T) {
	tl := session.NewTimeline()

	assert.Zero(t, tl.Merge(msgAt("", "a", 0)))
	assert.Zero(t, tl.Len())
}

func TestTimeline_MessagesIsACopy(t *testing.T) {
	tl := session.NewTimeline()
	tl.Merge(msgAt("m1", "a", 0))

	got := tl.Messages()
	got[0].Body = "changed"

	assert.Equal(t, "body m1", tl.Messages()[0].Body)
}
