package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/essaydesk/chat-engine/internal/api"
	"github.com/essaydesk/chat-engine/internal/domain"
	"github.com/essaydesk/chat-engine/internal/optimistic"
	"github.com/essaydesk/chat-engine/internal/store"
)

const selfID = "user-self"

type fakeFetcher struct {
	mu      sync.Mutex
	history map[string][]*domain.Message
	gates   map[string]chan struct{}
}

func (f *fakeFetcher) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	return []*domain.Chat{{ID: "chat-1", Title: "Order #1"}}, nil
}

func (f *fakeFetcher) ListMessages(ctx context.Context, chatID string) ([]*domain.Message, error) {
	f.mu.Lock()
	gate := f.gates[chatID]
	msgs := f.history[chatID]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return msgs, nil
}

type fakeRoomer struct {
	mu     sync.Mutex
	joins  []string
	leaves int
	reads  []string
}

func (r *fakeRoomer) Join(ctx context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joins = append(r.joins, chatID)
	return nil
}

func (r *fakeRoomer) Leave(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaves++
	return nil
}

func (r *fakeRoomer) EmitTyping(ctx context.Context, typing bool) error { return nil }

func (r *fakeRoomer) EmitMarkRead(ctx context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads = append(r.reads, chatID)
	return nil
}

type fakeSendAPI struct {
	mu       sync.Mutex
	failNext bool
	sends    int
}

func (f *fakeSendAPI) SendMessage(ctx context.Context, req api.SendMessageRequest) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	if f.failNext {
		f.failNext = false
		return nil, errors.New("server unavailable")
	}
	m := domain.NewCanonicalMessage("srv-1", req.ChatID, domain.Sender{ID: selfID}, req.Content, time.Now())
	m.ServerSeq = int64(f.sends)
	return m, nil
}

func (f *fakeSendAPI) SendFile(ctx context.Context, req api.SendFileRequest) (*domain.Message, error) {
	return domain.NewCanonicalMessage("srv-file-1", req.ChatID, domain.Sender{ID: selfID}, req.Content, time.Now()), nil
}

type harness struct {
	fetcher *fakeFetcher
	roomer  *fakeRoomer
	sendAPI *fakeSendAPI
	store   *store.MessageStore
	ctrl    *Controller
}

func newHarness() *harness {
	bus := domain.NewEventBus()
	fetcher := &fakeFetcher{
		history: make(map[string][]*domain.Message),
		gates:   make(map[string]chan struct{}),
	}
	roomer := &fakeRoomer{}
	sendAPI := &fakeSendAPI{}
	st := store.NewMessageStore(selfID, bus)
	tracker := optimistic.NewTracker(domain.Sender{ID: selfID, Name: "Self"})
	return &harness{
		fetcher: fetcher,
		roomer:  roomer,
		sendAPI: sendAPI,
		store:   st,
		ctrl:    NewController(fetcher, sendAPI, st, tracker, roomer, bus),
	}
}

func history(chatID string, n int) []*domain.Message {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	out := make([]*domain.Message, n)
	for i := range out {
		out[i] = domain.NewCanonicalMessage(
			chatID+"-m", chatID, domain.Sender{ID: "user-b"}, "hi", base.Add(time.Duration(i)*time.Second))
		out[i].ID = out[i].ID + string(rune('0'+i))
	}
	return out
}

func TestSelectLoadsHistoryAndJoins(t *testing.T) {
	h := newHarness()
	h.fetcher.history["chat-1"] = history("chat-1", 3)

	if err := h.ctrl.Select(context.Background(), "chat-1"); err != nil {
		t.Fatal(err)
	}

	if h.store.Len() != 3 {
		t.Fatalf("store has %d messages, want 3", h.store.Len())
	}
	if h.ctrl.Active() != "chat-1" {
		t.Fatalf("active = %s", h.ctrl.Active())
	}
	if len(h.roomer.joins) != 1 || h.roomer.joins[0] != "chat-1" {
		t.Fatalf("joins = %v", h.roomer.joins)
	}
	if len(h.roomer.reads) != 1 || h.roomer.reads[0] != "chat-1" {
		t.Fatalf("markRead emits = %v", h.roomer.reads)
	}
}

func TestStaleFetchDiscarded(t *testing.T) {
	h := newHarness()
	h.fetcher.history["chat-1"] = history("chat-1", 5)
	h.fetcher.history["chat-2"] = history("chat-2", 2)

	gate := make(chan struct{})
	h.fetcher.gates["chat-1"] = gate

	done := make(chan error, 1)
	go func() {
		done <- h.ctrl.Select(context.Background(), "chat-1")
	}()

	// The user switches chats while chat-1's history is still in flight.
	time.Sleep(20 * time.Millisecond)
	if err := h.ctrl.Select(context.Background(), "chat-2"); err != nil {
		t.Fatal(err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if h.ctrl.Active() != "chat-2" {
		t.Fatalf("active = %s, want chat-2", h.ctrl.Active())
	}
	if h.store.Len() != 2 {
		t.Fatalf("store has %d messages, want chat-2's 2", h.store.Len())
	}
	for _, m := range h.store.Snapshot() {
		if m.ChatID != "chat-2" {
			t.Fatalf("stale chat-1 message leaked: %+v", m)
		}
	}
}

func TestSendReconciles(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if err := h.ctrl.Select(ctx, "chat-1"); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.Send(ctx, domain.SendInput{Content: "Hello"}); err != nil {
		t.Fatal(err)
	}

	h.ctrl.Outbox().Wait()

	snap := h.store.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("store has %d messages, want 1", len(snap))
	}
	if snap[0].ID != "srv-1" || snap[0].State != domain.StateSent {
		t.Fatalf("message = %+v, want canonical sent srv-1", snap[0])
	}
}

func TestSendWithoutSelection(t *testing.T) {
	h := newHarness()
	if err := h.ctrl.Send(context.Background(), domain.SendInput{Content: "Hello"}); err == nil {
		t.Fatal("expected error with no chat selected")
	}
}

func TestSendFailureAndRetry(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.sendAPI.failNext = true

	if err := h.ctrl.Select(ctx, "chat-1"); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.Send(ctx, domain.SendInput{Content: "Hello"}); err != nil {
		t.Fatal(err)
	}
	h.ctrl.Outbox().Wait()

	snap := h.store.Snapshot()
	if len(snap) != 1 || snap[0].State != domain.StateFailed {
		t.Fatalf("snapshot = %+v, want one failed message", snap)
	}
	if snap[0].Content != "Hello" {
		t.Fatalf("failed message lost its content: %q", snap[0].Content)
	}

	if err := h.ctrl.Retry(ctx, snap[0].ID); err != nil {
		t.Fatal(err)
	}
	h.ctrl.Outbox().Wait()

	snap = h.store.Snapshot()
	if len(snap) != 1 || snap[0].State != domain.StateSent {
		t.Fatalf("snapshot after retry = %+v, want one sent message", snap)
	}
}

func TestRetryRequiresFailedState(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if err := h.ctrl.Select(ctx, "chat-1"); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.Retry(ctx, "temp-unknown"); err == nil {
		t.Fatal("expected error for unknown local id")
	}
}

func TestLateOutcomeForPreviousChat(t *testing.T) {
	ctx := context.Background()
	bus := domain.NewEventBus()
	fetcher := &fakeFetcher{
		history: map[string][]*domain.Message{"chat-2": history("chat-2", 1)},
		gates:   make(map[string]chan struct{}),
	}
	gate := make(chan struct{})
	slow := &slowSendAPI{inner: &fakeSendAPI{}, gate: gate}
	st := store.NewMessageStore(selfID, bus)
	tracker := optimistic.NewTracker(domain.Sender{ID: selfID, Name: "Self"})
	ctrl := NewController(fetcher, slow, st, tracker, &fakeRoomer{}, bus)

	if err := ctrl.Select(ctx, "chat-1"); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Send(ctx, domain.SendInput{Content: "Hello"}); err != nil {
		t.Fatal(err)
	}

	// The user switches chats while the send is still in flight.
	if err := ctrl.Select(ctx, "chat-2"); err != nil {
		t.Fatal(err)
	}
	close(gate)
	ctrl.Outbox().Wait()

	// The outcome targeted chat-1 and must not touch chat-2's view.
	if st.Len() != 1 {
		t.Fatalf("store has %d messages, want chat-2's 1", st.Len())
	}
	for _, m := range st.Snapshot() {
		if m.ChatID != "chat-2" {
			t.Fatalf("late outcome leaked into new chat: %+v", m)
		}
	}
}

type slowSendAPI struct {
	inner *fakeSendAPI
	gate  chan struct{}
}

func (s *slowSendAPI) SendMessage(ctx context.Context, req api.SendMessageRequest) (*domain.Message, error) {
	<-s.gate
	return s.inner.SendMessage(ctx, req)
}

func (s *slowSendAPI) SendFile(ctx context.Context, req api.SendFileRequest) (*domain.Message, error) {
	<-s.gate
	return s.inner.SendFile(ctx, req)
}

func TestDeselect(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.fetcher.history["chat-1"] = history("chat-1", 2)

	if err := h.ctrl.Select(ctx, "chat-1"); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.Deselect(ctx); err != nil {
		t.Fatal(err)
	}

	if h.ctrl.Active() != "" {
		t.Fatalf("active = %s, want empty", h.ctrl.Active())
	}
	if h.store.Len() != 0 {
		t.Fatalf("store has %d messages after deselect", h.store.Len())
	}
	if h.roomer.leaves != 1 {
		t.Fatalf("leaves = %d, want 1", h.roomer.leaves)
	}
}
