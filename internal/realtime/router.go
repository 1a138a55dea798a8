package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/essaydesk/chat-engine/internal/domain"
	"github.com/essaydesk/chat-engine/internal/logger"
	"github.com/essaydesk/chat-engine/internal/presence"
	"github.com/essaydesk/chat-engine/internal/store"
)

// ConnState is the router's view of the channel.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnected
	StateJoined
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

// Router demultiplexes channel events into the store and trackers. Events
// for a room other than the joined one are dropped; the server scopes
// fan-out per room, so anything else is a late packet from a previous room.
type Router struct {
	transport Transport
	store     *store.MessageStore
	presence  *presence.Tracker
	typing    *presence.TypingCoordinator
	bus       domain.EventBus
	selfID    string
	log       zerolog.Logger

	mu         sync.Mutex
	state      ConnState
	joinedChat string
}

func NewRouter(t Transport, st *store.MessageStore, pt *presence.Tracker, tc *presence.TypingCoordinator, bus domain.EventBus, selfID string) *Router {
	r := &Router{
		transport: t,
		store:     st,
		presence:  pt,
		typing:    tc,
		bus:       bus,
		selfID:    selfID,
		log:       logger.Module("realtime"),
	}
	t.OnEnvelope(r.handleEnvelope)
	t.OnConnect(r.handleConnect)
	t.OnDisconnect(r.handleDisconnect)
	return r
}

// Start dials the channel. Safe to call once; reconnection is the
// transport's job.
func (r *Router) Start(ctx context.Context) error {
	return r.transport.Connect(ctx)
}

// Stop tears the channel down and forgets the room.
func (r *Router) Stop() error {
	r.mu.Lock()
	r.state = StateDisconnected
	r.joinedChat = ""
	r.mu.Unlock()
	return r.transport.Close()
}

// State reports the current connection state and the joined room, if any.
func (r *Router) State() (ConnState, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.joinedChat
}

// Join switches room affinity to chatID. Joining while disconnected only
// records the intent; the connect handler replays it.
func (r *Router) Join(ctx context.Context, chatID string) error {
	r.mu.Lock()
	prev := r.joinedChat
	r.joinedChat = chatID
	connected := r.state != StateDisconnected
	if connected {
		r.state = StateJoined
	}
	r.mu.Unlock()

	if !connected {
		return nil
	}
	if prev != "" && prev != chatID {
		if err := r.transport.Emit(ctx, EventLeaveRoom, RoomPayload{ChatID: prev}); err != nil {
			r.log.Warn().Err(err).Str("chat_id", prev).Msg("leaveRoom failed")
		}
	}
	return r.transport.Emit(ctx, EventJoinRoom, RoomPayload{ChatID: chatID})
}

// Leave exits the current room, if any.
func (r *Router) Leave(ctx context.Context) error {
	r.mu.Lock()
	prev := r.joinedChat
	r.joinedChat = ""
	if r.state == StateJoined {
		r.state = StateConnected
	}
	connected := r.state != StateDisconnected
	r.mu.Unlock()

	if prev == "" || !connected {
		return nil
	}
	return r.transport.Emit(ctx, EventLeaveRoom, RoomPayload{ChatID: prev})
}

// EmitTyping publishes this user's typing state for the joined room.
func (r *Router) EmitTyping(ctx context.Context, typing bool) error {
	r.mu.Lock()
	chatID := r.joinedChat
	connected := r.state == StateJoined
	r.mu.Unlock()

	if !connected {
		return nil
	}
	event := EventTyping
	if !typing {
		event = EventStopTyping
	}
	return r.transport.Emit(ctx, event, TypingPayload{ChatID: chatID, UserID: r.selfID})
}

// EmitMarkRead tells the server this user has read the room.
func (r *Router) EmitMarkRead(ctx context.Context, chatID string) error {
	r.mu.Lock()
	connected := r.state != StateDisconnected
	r.mu.Unlock()

	if !connected {
		return nil
	}
	return r.transport.Emit(ctx, EventMarkRead, MarkReadPayload{ChatID: chatID, UserID: r.selfID})
}

func (r *Router) handleConnect() {
	r.mu.Lock()
	chatID := r.joinedChat
	if chatID != "" {
		r.state = StateJoined
	} else {
		r.state = StateConnected
	}
	r.mu.Unlock()

	r.bus.Publish(domain.ConnectionStatusEvent{Connected: true, EventTime: time.Now()})

	// Re-join the previous room; history already lives in the store, so
	// resuming the subscription is all a reconnect needs.
	if chatID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.transport.Emit(ctx, EventJoinRoom, RoomPayload{ChatID: chatID}); err != nil {
			r.log.Warn().Err(err).Str("chat_id", chatID).Msg("re-join after reconnect failed")
		}
	}
}

func (r *Router) handleDisconnect(reason string) {
	r.mu.Lock()
	r.state = StateDisconnected
	r.mu.Unlock()

	r.bus.Publish(domain.ConnectionStatusEvent{Connected: false, Reason: reason, EventTime: time.Now()})
}

func (r *Router) handleEnvelope(env Envelope) {
	switch env.Event {
	case EventMessage:
		var p MessagePayload
		if !r.decode(env, &p) {
			return
		}
		if !r.inJoinedRoom(p.ChatID) {
			return
		}
		// Own echoes are normally resolved by reconciliation before the
		// push lands; ApplyIncoming dedups by canonical id either way.
		r.store.ApplyIncoming(p.Message.ToDomain())

	case EventTyping, EventStopTyping:
		var p TypingPayload
		if !r.decode(env, &p) {
			return
		}
		if !r.inJoinedRoom(p.ChatID) || p.UserID == r.selfID {
			return
		}
		if env.Event == EventTyping {
			r.typing.Set(p.ChatID, p.UserID)
		} else {
			r.typing.Clear(p.ChatID, p.UserID)
		}

	case EventMessagesRead:
		var p MessagesReadPayload
		if !r.decode(env, &p) {
			return
		}
		if !r.inJoinedRoom(p.ChatID) || p.ReadBy == r.selfID {
			return
		}
		r.store.MarkReadForSender(p.ReadBy)

	case EventPresenceSnapshot:
		var p PresenceSnapshot
		if !r.decode(env, &p) {
			return
		}
		r.presence.ApplySnapshot(p)

	case EventUserOnline, EventUserOffline:
		var p PresencePayload
		if !r.decode(env, &p) {
			return
		}
		r.presence.SetOnline(p.UserID, env.Event == EventUserOnline)

	default:
		r.log.Debug().Str("event", env.Event).Msg("unhandled channel event")
	}
}

func (r *Router) inJoinedRoom(chatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateJoined && r.joinedChat == chatID
}

func (r *Router) decode(env Envelope, v interface{}) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		r.log.Debug().Err(err).Str("event", env.Event).Msg("malformed payload ignored")
		return false
	}
	return true
}
