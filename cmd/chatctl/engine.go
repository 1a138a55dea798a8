package main

import (
	"github.com/essaydesk/chat-engine/internal/api"
	"github.com/essaydesk/chat-engine/internal/config"
	"github.com/essaydesk/chat-engine/internal/domain"
	"github.com/essaydesk/chat-engine/internal/logger"
	"github.com/essaydesk/chat-engine/internal/optimistic"
	"github.com/essaydesk/chat-engine/internal/presence"
	"github.com/essaydesk/chat-engine/internal/realtime"
	"github.com/essaydesk/chat-engine/internal/session"
	"github.com/essaydesk/chat-engine/internal/store"
)

// engine bundles the wired components behind one chat session.
type engine struct {
	cfg      *config.Config
	bus      *domain.SimpleEventBus
	client   *api.Client
	store    *store.MessageStore
	presence *presence.Tracker
	typing   *presence.TypingCoordinator
	router   *realtime.Router
	ctrl     *session.Controller
}

// buildEngine loads config and wires every component. The realtime channel
// is not dialed here; callers that need it invoke router.Start.
func buildEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if level == "" {
		level = "warn"
	}
	logger.Init(level)

	bus := domain.NewEventBus()
	client := api.NewClient(cfg.Server.BaseURL, cfg.Auth.Token)
	st := store.NewMessageStore(cfg.Auth.UserID, bus)
	pt := presence.NewTracker(bus)
	tc := presence.NewTypingCoordinator(bus, presence.DefaultTypingTTL)

	transport := realtime.NewWSTransport(cfg.Server.BaseURL, cfg.Auth.Token, realtime.TransportConfig{
		AutoReconnect: true,
	})
	router := realtime.NewRouter(transport, st, pt, tc, bus, cfg.Auth.UserID)

	self := domain.Sender{ID: cfg.Auth.UserID, Name: cfg.Auth.UserName}
	tracker := optimistic.NewTracker(self)
	ctrl := session.NewController(client, client, st, tracker, router, bus)

	return &engine{
		cfg:      cfg,
		bus:      bus,
		client:   client,
		store:    st,
		presence: pt,
		typing:   tc,
		router:   router,
		ctrl:     ctrl,
	}, nil
}

func (e *engine) shutdown() {
	e.ctrl.Outbox().Wait()
	e.typing.Stop()
	e.router.Stop()
}
