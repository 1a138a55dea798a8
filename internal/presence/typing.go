package presence

import (
	"sync"
	"time"

	"github.com/essaydesk/chat-engine/internal/domain"
)

// DefaultTypingTTL clears a typing flag when no stop event arrives, so a
// dropped stopTyping can never leave a user stuck as "typing".
const DefaultTypingTTL = 3 * time.Second

type typingKey struct {
	chatID string
	userID string
}

// TypingCoordinator maintains per-chat typing flags with auto-expiry. A
// fresh typing event resets the user's timer rather than stacking a second
// one.
type TypingCoordinator struct {
	mu     sync.Mutex
	timers map[typingKey]*time.Timer
	ttl    time.Duration
	bus    domain.EventBus
}

func NewTypingCoordinator(bus domain.EventBus, ttl time.Duration) *TypingCoordinator {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingCoordinator{
		timers: make(map[typingKey]*time.Timer),
		ttl:    ttl,
		bus:    bus,
	}
}

func (c *TypingCoordinator) Set(chatID, userID string) {
	key := typingKey{chatID, userID}

	c.mu.Lock()
	if timer, ok := c.timers[key]; ok {
		timer.Reset(c.ttl)
		c.mu.Unlock()
		return
	}
	c.timers[key] = time.AfterFunc(c.ttl, func() {
		c.expire(key)
	})
	c.mu.Unlock()

	c.bus.Publish(domain.TypingChangedEvent{ChatID: chatID, UserID: userID, IsTyping: true, EventTime: time.Now()})
}

func (c *TypingCoordinator) Clear(chatID, userID string) {
	key := typingKey{chatID, userID}

	c.mu.Lock()
	timer, ok := c.timers[key]
	if ok {
		timer.Stop()
		delete(c.timers, key)
	}
	c.mu.Unlock()

	if ok {
		c.bus.Publish(domain.TypingChangedEvent{ChatID: chatID, UserID: userID, IsTyping: false, EventTime: time.Now()})
	}
}

// IsTyping reports whether the user currently has an unexpired typing flag
// in the chat.
func (c *TypingCoordinator) IsTyping(chatID, userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.timers[typingKey{chatID, userID}]
	return ok
}

// Stop cancels every pending expiry timer.
func (c *TypingCoordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, timer := range c.timers {
		timer.Stop()
		delete(c.timers, key)
	}
}

func (c *TypingCoordinator) expire(key typingKey) {
	c.mu.Lock()
	_, ok := c.timers[key]
	if ok {
		delete(c.timers, key)
	}
	c.mu.Unlock()

	if ok {
		c.bus.Publish(domain.TypingChangedEvent{ChatID: key.chatID, UserID: key.userID, IsTyping: false, EventTime: time.Now()})
	}
}
