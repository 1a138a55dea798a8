package store

import "github.com/essaydesk/chat-engine/internal/domain"

// Summary derives the chat-level projection (preview line, unread flag)
// from the current message list. It is recomputed on demand, never stored.
func (s *MessageStore) Summary() domain.ChatSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := domain.ChatSummary{ChatID: s.chatID}
	for _, m := range s.messages {
		if m.State == domain.StateFailed {
			sum.HasFailed = true
			continue
		}
		if m.Sender.ID != s.selfID && m.State != domain.StateRead {
			sum.UnreadCount++
		}
	}
	if n := len(s.messages); n > 0 {
		last := s.messages[n-1]
		sum.Preview = previewLine(last)
		sum.LastAt = last.Timestamp
	}
	return sum
}

func previewLine(m *domain.Message) string {
	if m.Content != "" {
		return m.Content
	}
	if m.Attachment != nil {
		return "[" + m.Attachment.Name + "]"
	}
	return ""
}
