package realtime

import "github.com/essaydesk/chat-engine/internal/api"

// Outbound event names.
const (
	EventJoinRoom   = "joinRoom"
	EventLeaveRoom  = "leaveRoom"
	EventTyping     = "typing"
	EventStopTyping = "stopTyping"
	EventMarkRead   = "markRead"
)

// Inbound event names.
const (
	EventMessage          = "message"
	EventMessagesRead     = "messagesRead"
	EventPresenceSnapshot = "presenceSnapshot"
	EventUserOnline       = "userOnline"
	EventUserOffline      = "userOffline"
)

// RoomPayload accompanies joinRoom and leaveRoom.
type RoomPayload struct {
	ChatID string `json:"chatId"`
}

// TypingPayload travels in both directions for typing and stopTyping.
type TypingPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// MessagePayload carries a canonical message pushed by the server.
type MessagePayload struct {
	ChatID  string      `json:"chatId"`
	Message api.Message `json:"message"`
}

// MarkReadPayload tells the server this user read the room.
type MarkReadPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// MessagesReadPayload signals that a participant read the room.
type MessagesReadPayload struct {
	ChatID string `json:"chatId"`
	ReadBy string `json:"readBy"`
}

// PresencePayload accompanies userOnline and userOffline.
type PresencePayload struct {
	UserID string `json:"userId"`
}

// PresenceSnapshot is the full presence map sent on join, keyed by user id.
type PresenceSnapshot map[string]bool
