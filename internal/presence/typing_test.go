package presence

import (
	"testing"
	"time"

	"github.com/essaydesk/chat-engine/internal/domain"
)

func waitTyping(t *testing.T, ch <-chan domain.Event) domain.TypingChangedEvent {
	t.Helper()
	select {
	case e := <-ch:
		te, ok := e.(domain.TypingChangedEvent)
		if !ok {
			t.Fatalf("unexpected event %T", e)
		}
		return te
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for typing event")
		return domain.TypingChangedEvent{}
	}
}

func TestTypingSetAndClear(t *testing.T) {
	bus := domain.NewEventBus()
	ch := bus.Subscribe([]domain.EventType{domain.EventTypeTypingChanged})
	defer bus.Unsubscribe(ch)

	c := NewTypingCoordinator(bus, time.Minute)
	defer c.Stop()

	c.Set("chat-1", "user-b")
	if e := waitTyping(t, ch); !e.IsTyping || e.UserID != "user-b" {
		t.Fatalf("event = %+v", e)
	}
	if !c.IsTyping("chat-1", "user-b") {
		t.Fatal("flag not set")
	}

	// A repeated typing event only refreshes the timer.
	c.Set("chat-1", "user-b")
	select {
	case e := <-ch:
		t.Fatalf("unexpected event on refresh: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}

	c.Clear("chat-1", "user-b")
	if e := waitTyping(t, ch); e.IsTyping {
		t.Fatalf("expected stop event, got %+v", e)
	}
	if c.IsTyping("chat-1", "user-b") {
		t.Fatal("flag still set after clear")
	}
}

func TestTypingAutoExpiry(t *testing.T) {
	bus := domain.NewEventBus()
	ch := bus.Subscribe([]domain.EventType{domain.EventTypeTypingChanged})
	defer bus.Unsubscribe(ch)

	c := NewTypingCoordinator(bus, 30*time.Millisecond)
	defer c.Stop()

	c.Set("chat-1", "user-b")
	waitTyping(t, ch) // typing=true

	if e := waitTyping(t, ch); e.IsTyping {
		t.Fatalf("expected expiry event, got %+v", e)
	}
	if c.IsTyping("chat-1", "user-b") {
		t.Fatal("flag survived expiry")
	}
}

func TestTypingResetExtendsWindow(t *testing.T) {
	bus := domain.NewEventBus()
	c := NewTypingCoordinator(bus, 60*time.Millisecond)
	defer c.Stop()

	c.Set("chat-1", "user-b")
	time.Sleep(40 * time.Millisecond)
	c.Set("chat-1", "user-b")
	time.Sleep(40 * time.Millisecond)

	// 80ms after the first Set, but only 40ms after the refresh.
	if !c.IsTyping("chat-1", "user-b") {
		t.Fatal("refresh did not extend the typing window")
	}
}

func TestTypingClearWithoutSet(t *testing.T) {
	bus := domain.NewEventBus()
	ch := bus.Subscribe([]domain.EventType{domain.EventTypeTypingChanged})
	defer bus.Unsubscribe(ch)

	c := NewTypingCoordinator(bus, time.Minute)
	c.Clear("chat-1", "user-b")

	select {
	case e := <-ch:
		t.Fatalf("unexpected event: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}
