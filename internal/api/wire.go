package api

import (
	"time"

	"github.com/essaydesk/chat-engine/internal/domain"
)

// Message is a canonical message as the server serializes it, shared by the
// REST responses and the realtime message event. The server only knows
// delivered/read; sending-side states exist purely client-side.
type Message struct {
	ID         string             `json:"id"`
	ChatID     string             `json:"chatId"`
	Sender     domain.Sender      `json:"sender"`
	Content    string             `json:"content"`
	Attachment *domain.Attachment `json:"attachment,omitempty"`
	ReplyToID  string             `json:"replyToId,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	ServerSeq  int64              `json:"serverSeq"`
	Read       bool               `json:"read"`
}

func (w Message) ToDomain() *domain.Message {
	state := domain.StateDelivered
	if w.Read {
		state = domain.StateRead
	}
	return &domain.Message{
		ID:         w.ID,
		ChatID:     w.ChatID,
		Sender:     w.Sender,
		Content:    w.Content,
		Attachment: w.Attachment,
		ReplyToID:  w.ReplyToID,
		Timestamp:  w.Timestamp,
		ServerSeq:  w.ServerSeq,
		State:      state,
		Origin:     domain.OriginCanonical,
	}
}
