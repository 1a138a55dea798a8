// Package store owns the ordered, deduplicated message list for the active
// chat. It is the single source of truth consumed by the UI layer; every
// mutation path goes through it and is serialized behind one mutex.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/essaydesk/chat-engine/internal/domain"
	"github.com/essaydesk/chat-engine/internal/logger"
)

// MessageStore holds messages for exactly one chat at a time. Identity is
// tracked in two namespaces: canonical server ids and tracker-minted local
// ids. The two-namespace check is what lets an optimistic entry and its
// eventual server echo be recognized as the same logical message.
type MessageStore struct {
	mu     sync.Mutex
	bus    domain.EventBus
	log    zerolog.Logger
	selfID string

	chatID      string
	messages    []*domain.Message
	byCanonical map[string]*domain.Message
	byLocal     map[string]*domain.Message
	insertSeq   uint64
}

func NewMessageStore(selfID string, bus domain.EventBus) *MessageStore {
	return &MessageStore{
		bus:         bus,
		log:         logger.Module("store"),
		selfID:      selfID,
		byCanonical: make(map[string]*domain.Message),
		byLocal:     make(map[string]*domain.Message),
	}
}

// Reset clears the store and associates it with a new chat. Must be called
// before any other operation when switching chats; in-flight callbacks for
// the previous chat become no-ops via the chat affinity checks below.
func (s *MessageStore) Reset(chatID string) {
	s.mu.Lock()
	s.chatID = chatID
	s.messages = nil
	s.byCanonical = make(map[string]*domain.Message)
	s.byLocal = make(map[string]*domain.Message)
	s.mu.Unlock()

	s.notifyChanged(chatID)
}

// ChatID returns the chat the store is currently associated with.
func (s *MessageStore) ChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// LoadHistory bulk-inserts canonical messages sorted by (timestamp,
// serverSeq). An empty or nil list is not an error.
func (s *MessageStore) LoadHistory(msgs []*domain.Message) {
	if len(msgs) == 0 {
		return
	}

	sorted := make([]*domain.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].ServerSeq < sorted[j].ServerSeq
	})

	s.mu.Lock()
	chatID := s.chatID
	for _, m := range sorted {
		if m.ChatID != chatID {
			continue
		}
		if _, exists := s.byCanonical[m.ID]; exists {
			continue
		}
		s.insertLocked(m)
	}
	s.mu.Unlock()

	s.notifyChanged(chatID)
}

// InsertOptimistic appends the draft's provisional message and returns its
// local id. It never rejects: showing the user's input instantly is the
// point of the optimistic flow.
func (s *MessageStore) InsertOptimistic(draft *domain.Draft) string {
	msg := draft.Message()

	s.mu.Lock()
	if _, exists := s.byLocal[msg.ID]; !exists {
		s.insertLocked(msg)
	}
	chatID := s.chatID
	s.mu.Unlock()

	s.notifyChanged(chatID)
	return msg.ID
}

// Reconcile upgrades the optimistic entry identified by localID to its
// canonical form in place, preserving its list position so the UI does not
// jump. A reconcile arriving for a chat the store no longer holds, or for a
// local id already gone, is a designed no-op.
func (s *MessageStore) Reconcile(chatID, localID string, canonical *domain.Message) {
	s.mu.Lock()
	if chatID != s.chatID {
		s.mu.Unlock()
		s.log.Debug().Str("chat", chatID).Str("local", localID).Msg("discarding reconcile for inactive chat")
		return
	}

	entry, ok := s.byLocal[localID]
	if !ok {
		s.mu.Unlock()
		return
	}

	// If the realtime echo already inserted this canonical id, keep that
	// entry and drop the provisional one instead of showing both.
	if _, dup := s.byCanonical[canonical.ID]; dup {
		s.removeLocked(entry)
		delete(s.byLocal, localID)
		s.mu.Unlock()
		s.notifyChanged(chatID)
		return
	}

	delete(s.byLocal, localID)
	entry.ID = canonical.ID
	entry.Timestamp = canonical.Timestamp
	entry.ServerSeq = canonical.ServerSeq
	entry.Origin = domain.OriginCanonical
	entry.FailReason = ""
	if entry.State == domain.StatePending || entry.State == domain.StateFailed {
		entry.State = domain.StateSent
	}
	if canonical.Attachment != nil {
		entry.Attachment = canonical.Attachment
	}
	if canonical.Content != "" {
		entry.Content = canonical.Content
	}
	s.byCanonical[entry.ID] = entry
	s.mu.Unlock()

	s.notifyChanged(chatID)
}

// ApplyIncoming inserts a canonical message pushed over the realtime
// channel. Insertion is skipped when the canonical id is already present,
// which makes the router's defensive own-echo delivery idempotent.
func (s *MessageStore) ApplyIncoming(msg *domain.Message) {
	s.mu.Lock()
	if msg.ChatID != s.chatID {
		s.mu.Unlock()
		s.log.Debug().Str("chat", msg.ChatID).Str("id", msg.ID).Msg("discarding message for inactive chat")
		return
	}
	if _, exists := s.byCanonical[msg.ID]; exists {
		s.mu.Unlock()
		return
	}
	s.insertLocked(msg)
	chatID := s.chatID
	s.mu.Unlock()

	s.notifyChanged(chatID)
}

// MarkFailed flags the optimistic entry as failed and keeps its content so
// the user can see and retry it.
func (s *MessageStore) MarkFailed(chatID, localID string, reason error) {
	s.mu.Lock()
	if chatID != s.chatID {
		s.mu.Unlock()
		return
	}
	entry, ok := s.byLocal[localID]
	if !ok {
		s.mu.Unlock()
		return
	}
	entry.State = domain.StateFailed
	entry.FailReason = reason.Error()
	s.mu.Unlock()

	s.bus.Publish(domain.MessageFailedEvent{
		ChatID:    chatID,
		LocalID:   localID,
		Reason:    reason.Error(),
		EventTime: time.Now(),
	})
	s.notifyChanged(chatID)
}

// MarkPending flips a failed optimistic entry back to pending ahead of a
// resubmission. Only the failed state is eligible.
func (s *MessageStore) MarkPending(chatID, localID string) bool {
	s.mu.Lock()
	if chatID != s.chatID {
		s.mu.Unlock()
		return false
	}
	entry, ok := s.byLocal[localID]
	if !ok || entry.State != domain.StateFailed {
		s.mu.Unlock()
		return false
	}
	entry.State = domain.StatePending
	entry.FailReason = ""
	s.mu.Unlock()

	s.notifyChanged(chatID)
	return true
}

// MarkReadForSender advances this client's own sent/delivered messages to
// read after readerID acknowledged reading them.
func (s *MessageStore) MarkReadForSender(readerID string) {
	s.mu.Lock()
	changed := false
	for _, m := range s.messages {
		if m.Sender.ID != s.selfID || m.Sender.ID == readerID {
			continue
		}
		if m.State == domain.StateSent || m.State == domain.StateDelivered {
			m.State = domain.StateRead
			changed = true
		}
	}
	chatID := s.chatID
	s.mu.Unlock()

	if changed {
		s.notifyChanged(chatID)
	}
}

// Snapshot returns a copy of the visible message list in display order.
func (s *MessageStore) Snapshot() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = *m
	}
	return out
}

// Len returns the number of visible messages.
func (s *MessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Get looks up a message by canonical or local id.
func (s *MessageStore) Get(id string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.byCanonical[id]; ok {
		return *m, true
	}
	if m, ok := s.byLocal[id]; ok {
		return *m, true
	}
	return domain.Message{}, false
}

// insertLocked places the message at its ordered position and registers it
// in the matching id namespace. Order is (timestamp, insertion sequence);
// the sequence tie-break avoids clock-skew reordering of near-simultaneous
// messages.
func (s *MessageStore) insertLocked(m *domain.Message) {
	s.insertSeq++
	m.InsertSeq = s.insertSeq

	pos := sort.Search(len(s.messages), func(i int) bool {
		other := s.messages[i]
		if !other.Timestamp.Equal(m.Timestamp) {
			return other.Timestamp.After(m.Timestamp)
		}
		return other.InsertSeq > m.InsertSeq
	})
	s.messages = append(s.messages, nil)
	copy(s.messages[pos+1:], s.messages[pos:])
	s.messages[pos] = m

	if m.IsLocal() {
		s.byLocal[m.ID] = m
	} else {
		s.byCanonical[m.ID] = m
	}
}

func (s *MessageStore) removeLocked(target *domain.Message) {
	for i, m := range s.messages {
		if m == target {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

func (s *MessageStore) notifyChanged(chatID string) {
	s.bus.Publish(domain.MessagesChangedEvent{ChatID: chatID, EventTime: time.Now()})
}
