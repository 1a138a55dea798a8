// Package presence holds the process-wide ephemeral user state: who is
// online and who is typing. Both survive chat switches; only explicit
// events or expiry mutate them.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/essaydesk/chat-engine/internal/domain"
)

type Tracker struct {
	mu     sync.RWMutex
	online map[string]struct{}
	bus    domain.EventBus
}

func NewTracker(bus domain.EventBus) *Tracker {
	return &Tracker{
		online: make(map[string]struct{}),
		bus:    bus,
	}
}

func (t *Tracker) SetOnline(userID string, online bool) {
	t.mu.Lock()
	_, was := t.online[userID]
	if online == was {
		t.mu.Unlock()
		return
	}
	if online {
		t.online[userID] = struct{}{}
	} else {
		delete(t.online, userID)
	}
	t.mu.Unlock()

	t.bus.Publish(domain.PresenceChangedEvent{UserID: userID, Online: online, EventTime: time.Now()})
}

// ApplySnapshot replaces the online set with the server's authoritative
// view, emitting one event per user whose state changed.
func (t *Tracker) ApplySnapshot(statuses map[string]bool) {
	type change struct {
		userID string
		online bool
	}
	var changes []change

	t.mu.Lock()
	for userID, online := range statuses {
		_, was := t.online[userID]
		if online && !was {
			t.online[userID] = struct{}{}
			changes = append(changes, change{userID, true})
		} else if !online && was {
			delete(t.online, userID)
			changes = append(changes, change{userID, false})
		}
	}
	t.mu.Unlock()

	for _, c := range changes {
		t.bus.Publish(domain.PresenceChangedEvent{UserID: c.userID, Online: c.online, EventTime: time.Now()})
	}
}

func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.online[userID]
	return ok
}

func (t *Tracker) Online() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.online))
	for id := range t.online {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
