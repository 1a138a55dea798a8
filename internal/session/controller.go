// Package session owns the lifecycle of the active conversation: selecting
// a chat, loading its history, and the optimistic send pipeline.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/essaydesk/chat-engine/internal/domain"
	"github.com/essaydesk/chat-engine/internal/logger"
	"github.com/essaydesk/chat-engine/internal/optimistic"
	"github.com/essaydesk/chat-engine/internal/outbox"
	"github.com/essaydesk/chat-engine/internal/store"
)

// Fetcher is the slice of the REST client the controller needs.
type Fetcher interface {
	ListChats(ctx context.Context) ([]*domain.Chat, error)
	ListMessages(ctx context.Context, chatID string) ([]*domain.Message, error)
}

// Roomer is the slice of the realtime router the controller needs.
type Roomer interface {
	Join(ctx context.Context, chatID string) error
	Leave(ctx context.Context) error
	EmitTyping(ctx context.Context, typing bool) error
	EmitMarkRead(ctx context.Context, chatID string) error
}

// Controller coordinates store, tracker, outbox and router for one active
// chat at a time.
type Controller struct {
	fetch   Fetcher
	store   *store.MessageStore
	tracker *optimistic.Tracker
	outbox  *outbox.Coordinator
	router  Roomer
	bus     domain.EventBus
	log     zerolog.Logger

	mu       sync.Mutex
	active   string
	fetchGen uint64
}

// NewController wires the send pipeline: outcomes flow back into the store
// tagged with the chat they originated from, so switching chats mid-flight
// cannot corrupt the new view.
func NewController(fetch Fetcher, sendAPI outbox.API, st *store.MessageStore, tracker *optimistic.Tracker, router Roomer, bus domain.EventBus) *Controller {
	c := &Controller{
		fetch:   fetch,
		store:   st,
		tracker: tracker,
		router:  router,
		bus:     bus,
		log:     logger.Module("session"),
	}
	c.outbox = outbox.NewCoordinator(sendAPI, c.onOutcome)
	return c
}

// Outbox exposes the coordinator for shutdown draining.
func (c *Controller) Outbox() *outbox.Coordinator { return c.outbox }

// Chats lists the user's conversations.
func (c *Controller) Chats(ctx context.Context) ([]*domain.Chat, error) {
	return c.fetch.ListChats(ctx)
}

// Select makes chatID the active conversation: resets the store, joins the
// room, fetches history and marks it read. A fetch that completes after the
// user has moved on is discarded rather than applied to the wrong view.
func (c *Controller) Select(ctx context.Context, chatID string) error {
	c.mu.Lock()
	c.active = chatID
	c.fetchGen++
	gen := c.fetchGen
	c.mu.Unlock()

	c.store.Reset(chatID)
	c.bus.Publish(domain.ChatSelectedEvent{ChatID: chatID, EventTime: time.Now()})

	if err := c.router.Join(ctx, chatID); err != nil {
		c.log.Warn().Err(err).Str("chat_id", chatID).Msg("join failed, history only")
	}

	msgs, err := c.fetch.ListMessages(ctx, chatID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	stale := c.active != chatID || c.fetchGen != gen
	c.mu.Unlock()
	if stale {
		c.log.Debug().Str("chat_id", chatID).Msg("discarding stale history fetch")
		return nil
	}

	c.store.LoadHistory(msgs)

	if err := c.router.EmitMarkRead(ctx, chatID); err != nil {
		c.log.Debug().Err(err).Msg("markRead emit failed")
	}
	return nil
}

// Deselect leaves the active room and clears the view.
func (c *Controller) Deselect(ctx context.Context) error {
	c.mu.Lock()
	c.active = ""
	c.fetchGen++
	c.mu.Unlock()

	c.store.Reset("")
	return c.router.Leave(ctx)
}

// Active returns the currently selected chat id, or empty.
func (c *Controller) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Send materializes optimistic entries for the input and dispatches each
// over the network. Validation failures for individual files are returned;
// well-formed siblings still go out.
func (c *Controller) Send(ctx context.Context, input domain.SendInput) error {
	c.mu.Lock()
	chatID := c.active
	c.mu.Unlock()

	if chatID == "" {
		return errors.New("session: no chat selected")
	}

	drafts, errs := c.tracker.Prepare(chatID, input)
	for _, draft := range drafts {
		c.store.InsertOptimistic(draft)
		c.outbox.Dispatch(ctx, draft)
	}
	return errors.Join(errs...)
}

// Retry resubmits a failed message, reusing its retained payload.
func (c *Controller) Retry(ctx context.Context, localID string) error {
	c.mu.Lock()
	chatID := c.active
	c.mu.Unlock()

	if !c.store.MarkPending(chatID, localID) {
		return errors.New("session: message is not in a failed state")
	}
	return c.outbox.Retry(ctx, localID)
}

// Typing forwards this user's typing state for the active room.
func (c *Controller) Typing(ctx context.Context, typing bool) error {
	return c.router.EmitTyping(ctx, typing)
}

// Close drains in-flight sends and leaves the room.
func (c *Controller) Close(ctx context.Context) error {
	c.outbox.Wait()
	return c.Deselect(ctx)
}

func (c *Controller) onOutcome(out outbox.Outcome) {
	if out.Err != nil {
		c.store.MarkFailed(out.Draft.ChatID, out.Draft.LocalID, out.Err)
		return
	}
	c.store.Reconcile(out.Draft.ChatID, out.Draft.LocalID, out.Canonical)
}
