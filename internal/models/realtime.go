package models

const (
	// EventMessageInserted is the only event type the bridge carries.
	EventMessageInserted = "message.inserted"
	// EventSubscribed is the first frame of a WebSocket stream, sent once the
	// server-side subscription is registered.
	EventSubscribed = "subscribed"
)

// MessageEvent is the payload pushed over the realtime bridge.
type MessageEvent struct {
	Type           string   `json:"type"`
	ConversationID string   `json:"conversation_id"`
	Participants   []string `json:"participants"`
	Message        Message  `json:"message"`
}

// NewMessageEvent builds the insert event for msg appended to conv.
func NewMessageEvent(conv *Conversation, msg Message) MessageEvent {
	return MessageEvent{
		Type:           EventMessageInserted,
		ConversationID: conv.ID,
		Participants:   conv.Participants(),
		Message:        msg,
	}
}

// Involves reports whether userID participates in the event's conversation.
func (e MessageEvent) Involves(userID string) bool {
	for _, p := range e.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ConversationSummary is one row of the conversation directory.
type ConversationSummary struct {
	Conversation Conversation `json:"conversation"`
	Other        Profile      `json:"other"`
	LastMessage  *Message     `json:"last_message,omitempty"`
	UnreadCount  int64        `json:"unread_count"`
}

// ConversationView is the metadata an open chat renders above the timeline.
type ConversationView struct {
	Conversation Conversation `json:"conversation"`
	Other        Profile      `json:"other"`
	Booking      *Booking     `json:"booking,omitempty"`
}
