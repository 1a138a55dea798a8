// Package realtime connects the engine to the persistent channel: a
// websocket transport with reconnection, and a router that demultiplexes
// inbound events gated by the currently joined room.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/essaydesk/chat-engine/internal/logger"
)

// Envelope is the wire format for every channel event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Transport is the realtime channel seen by the router. Handlers must be
// registered before Connect.
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	Emit(ctx context.Context, event string, data interface{}) error
	OnEnvelope(h func(Envelope))
	OnConnect(h func())
	OnDisconnect(h func(reason string))
}

// TransportConfig tunes reconnection behaviour.
type TransportConfig struct {
	AutoReconnect        bool
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	HeartbeatInterval    time.Duration
}

func (c *TransportConfig) defaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 25 * time.Second
	}
}

// WSTransport is the websocket implementation of Transport.
type WSTransport struct {
	baseURL string
	token   string
	config  TransportConfig
	log     zerolog.Logger

	mu               sync.Mutex
	conn             *websocket.Conn
	connected        bool
	intentionalClose bool
	cancelFn         context.CancelFunc

	handlerMu    sync.RWMutex
	onEnvelope   []func(Envelope)
	onConnect    []func()
	onDisconnect []func(string)

	recon *reconnector
}

func NewWSTransport(baseURL, token string, config TransportConfig) *WSTransport {
	config.defaults()
	return &WSTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		config:  config,
		log:     logger.Module("realtime"),
		recon:   newReconnector(config),
	}
}

func (t *WSTransport) OnEnvelope(h func(Envelope)) {
	t.handlerMu.Lock()
	t.onEnvelope = append(t.onEnvelope, h)
	t.handlerMu.Unlock()
}

func (t *WSTransport) OnConnect(h func()) {
	t.handlerMu.Lock()
	t.onConnect = append(t.onConnect, h)
	t.handlerMu.Unlock()
}

func (t *WSTransport) OnDisconnect(h func(string)) {
	t.handlerMu.Lock()
	t.onDisconnect = append(t.onDisconnect, h)
	t.handlerMu.Unlock()
}

// Connect dials the channel and starts the read and heartbeat loops.
func (t *WSTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	t.intentionalClose = false
	t.mu.Unlock()

	wsURL := strings.Replace(t.baseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/socket?token=" + t.token

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.cancelFn = cancel
	t.mu.Unlock()
	t.recon.markConnected()

	t.emitConnect()

	go t.readLoop(loopCtx, conn)
	go t.heartbeatLoop(loopCtx, conn)

	return nil
}

// Close shuts the connection down for good; no reconnect follows.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	t.intentionalClose = true
	if t.cancelFn != nil {
		t.cancelFn()
		t.cancelFn = nil
	}
	conn := t.conn
	t.conn = nil
	t.connected = false
	t.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client close")
	}
	return nil
}

func (t *WSTransport) Emit(ctx context.Context, event string, data interface{}) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("realtime: not connected")
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	payload, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}

func (t *WSTransport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.mu.Lock()
			intentional := t.intentionalClose
			t.connected = false
			t.conn = nil
			t.mu.Unlock()

			if intentional {
				return
			}

			t.log.Warn().Err(err).Msg("channel dropped")
			t.emitDisconnect(err.Error())

			if t.config.AutoReconnect && t.recon.shouldReconnect() {
				t.scheduleReconnect(ctx)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.log.Debug().Err(err).Msg("skipping malformed envelope")
			continue
		}
		t.dispatch(env)
	}
}

func (t *WSTransport) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(t.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				// The read loop observes the close and drives reconnection.
				conn.Close(websocket.StatusGoingAway, "heartbeat timeout")
				return
			}
		}
	}
}

func (t *WSTransport) scheduleReconnect(ctx context.Context) {
	delay, attempt := t.recon.nextDelay()
	t.log.Info().Dur("delay", delay).Int("attempt", attempt).Msg("reconnecting")

	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	if err := t.Connect(context.Background()); err != nil {
		if t.config.AutoReconnect && t.recon.shouldReconnect() {
			t.scheduleReconnect(ctx)
		}
	}
}

func (t *WSTransport) dispatch(env Envelope) {
	t.handlerMu.RLock()
	handlers := append([]func(Envelope){}, t.onEnvelope...)
	t.handlerMu.RUnlock()
	for _, h := range handlers {
		h(env)
	}
}

func (t *WSTransport) emitConnect() {
	t.handlerMu.RLock()
	handlers := append([]func(){}, t.onConnect...)
	t.handlerMu.RUnlock()
	for _, h := range handlers {
		h()
	}
}

func (t *WSTransport) emitDisconnect(reason string) {
	t.handlerMu.RLock()
	handlers := append([]func(string){}, t.onDisconnect...)
	t.handlerMu.RUnlock()
	for _, h := range handlers {
		h(reason)
	}
}
