package domain

import (
	"sync"
	"time"
)

type EventType string

const (
	EventTypeMessagesChanged  EventType = "messages.changed"
	EventTypeMessageFailed    EventType = "message.failed"
	EventTypeTypingChanged    EventType = "typing.changed"
	EventTypePresenceChanged  EventType = "presence.changed"
	EventTypeConnectionStatus EventType = "connection.status"
	EventTypeChatSelected     EventType = "chat.selected"
)

type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// MessagesChangedEvent signals that the visible message list for a chat
// changed in any way (insert, reconcile, status advance). Subscribers
// re-read the store snapshot rather than diffing payloads.
type MessagesChangedEvent struct {
	ChatID    string
	EventTime time.Time
}

func (e MessagesChangedEvent) Type() EventType      { return EventTypeMessagesChanged }
func (e MessagesChangedEvent) Timestamp() time.Time { return e.EventTime }

// MessageFailedEvent identifies the specific failed item so the UI can
// surface a scoped, per-message error.
type MessageFailedEvent struct {
	ChatID    string
	LocalID   string
	Reason    string
	EventTime time.Time
}

func (e MessageFailedEvent) Type() EventType      { return EventTypeMessageFailed }
func (e MessageFailedEvent) Timestamp() time.Time { return e.EventTime }

type TypingChangedEvent struct {
	ChatID    string
	UserID    string
	IsTyping  bool
	EventTime time.Time
}

func (e TypingChangedEvent) Type() EventType      { return EventTypeTypingChanged }
func (e TypingChangedEvent) Timestamp() time.Time { return e.EventTime }

type PresenceChangedEvent struct {
	UserID    string
	Online    bool
	EventTime time.Time
}

func (e PresenceChangedEvent) Type() EventType      { return EventTypePresenceChanged }
func (e PresenceChangedEvent) Timestamp() time.Time { return e.EventTime }

type ConnectionStatusEvent struct {
	Connected bool
	Reason    string
	EventTime time.Time
}

func (e ConnectionStatusEvent) Type() EventType      { return EventTypeConnectionStatus }
func (e ConnectionStatusEvent) Timestamp() time.Time { return e.EventTime }

type ChatSelectedEvent struct {
	ChatID    string
	EventTime time.Time
}

func (e ChatSelectedEvent) Type() EventType      { return EventTypeChatSelected }
func (e ChatSelectedEvent) Timestamp() time.Time { return e.EventTime }

// EventBus provides pub/sub for engine events. The UI layer subscribes as a
// pure reader; all mutation stays inside the engine.
type EventBus interface {
	Publish(event Event)
	Subscribe(eventTypes []EventType) <-chan Event
	Unsubscribe(ch <-chan Event)
}

// SimpleEventBus is a basic in-memory implementation of EventBus
type SimpleEventBus struct {
	mu          sync.RWMutex
	subscribers map[<-chan Event]subscription
}

type subscription struct {
	ch         chan Event
	eventTypes map[EventType]bool
}

func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{
		subscribers: make(map[<-chan Event]subscription),
	}
}

func (b *SimpleEventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if len(sub.eventTypes) == 0 || sub.eventTypes[event.Type()] {
			select {
			case sub.ch <- event:
			default:
				// Channel full, skip this subscriber
			}
		}
	}
}

func (b *SimpleEventBus) Subscribe(eventTypes []EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 100)
	typeMap := make(map[EventType]bool)
	for _, t := range eventTypes {
		typeMap[t] = true
	}

	b.subscribers[ch] = subscription{
		ch:         ch,
		eventTypes: typeMap,
	}

	return ch
}

func (b *SimpleEventBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[ch]; ok {
		close(sub.ch)
		delete(b.subscribers, ch)
	}
}
