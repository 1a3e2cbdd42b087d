package models

import "errors"

// Errors shared by the storage, chat and client layers. Callers compare with
// errors.Is; infrastructure failures are wrapped around ErrStoreUnavailable.
var (
	ErrInvalidParticipants  = errors.New("conversation requires two distinct participants")
	ErrNotAParticipant      = errors.New("user is not a participant of this conversation")
	ErrEmptyBody            = errors.New("message body is empty")
	ErrBodyTooLong          = errors.New("message body is too long")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrStoreUnavailable     = errors.New("store unavailable")
)

// Wire codes carried in API error bodies.
const (
	CodeInvalidParticipants  = "invalid_participants"
	CodeNotAParticipant      = "not_a_participant"
	CodeEmptyBody            = "empty_body"
	CodeBodyTooLong          = "body_too_long"
	CodeConversationNotFound = "conversation_not_found"
	CodeMessageNotFound      = "message_not_found"
	CodeStoreUnavailable     = "store_unavailable"
)

var codeErrors = map[string]error{
	CodeInvalidParticipants:  ErrInvalidParticipants,
	CodeNotAParticipant:      ErrNotAParticipant,
	CodeEmptyBody:            ErrEmptyBody,
	CodeBodyTooLong:          ErrBodyTooLong,
	CodeConversationNotFound: ErrConversationNotFound,
	CodeMessageNotFound:      ErrMessageNotFound,
	CodeStoreUnavailable:     ErrStoreUnavailable,
}

// ErrorCode returns the wire code of a known error, or "" for anything else.
func ErrorCode(err error) string {
	for code, sentinel := range codeErrors {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ""
}

// ErrorFromCode is the inverse of ErrorCode; nil for unknown codes.
func ErrorFromCode(code string) error {
	return codeErrors[code]
}
