package loqui

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"nhooyr.io/websocket"
)

// envelope is the wire format for all realtime events.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const (
	eventMessageInsert  = "message.insert"
	eventPresenceChange = "presence.change"
)

// SubscriptionConfig configures a conversation-scoped realtime subscription.
type SubscriptionConfig struct {
	AutoReconnect        bool
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
}

func (c *SubscriptionConfig) defaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
}

// SubscriptionState represents the connection state.
type SubscriptionState string

const (
	StateDisconnected SubscriptionState = "disconnected"
	StateConnecting   SubscriptionState = "connecting"
	StateConnected    SubscriptionState = "connected"
	StateReconnecting SubscriptionState = "reconnecting"
)

// reconnector computes jittered exponential backoff between connect attempts.
type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
	connectedAt time.Time
}

func newReconnector(config *SubscriptionConfig) *reconnector {
	return &reconnector{
		baseDelay:   config.ReconnectBaseDelay,
		maxDelay:    config.ReconnectMaxDelay,
		maxAttempts: config.MaxReconnectAttempts,
	}
}

func (r *reconnector) shouldReconnect() bool {
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > 60*time.Second {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}

// Subscription is a realtime change feed scoped to one conversation, with an
// explicit Start/Stop lifecycle. Handlers are registered once, before Start;
// after Stop no handler is invoked again.
type Subscription struct {
	url    string
	config *SubscriptionConfig

	mu               sync.Mutex
	conn             *websocket.Conn
	state            SubscriptionState
	intentionalClose bool
	cancelFn         context.CancelFunc
	recon            *reconnector

	onInsert   func(Message)
	onPresence func(PresenceEvent)
}

func newSubscription(url string, config *SubscriptionConfig) *Subscription {
	cfg := *config
	cfg.defaults()
	return &Subscription{
		url:    url,
		config: &cfg,
		state:  StateDisconnected,
		recon:  newReconnector(&cfg),
	}
}

// OnInsert registers the handler for new-message events. Registering replaces
// any previous handler.
func (s *Subscription) OnInsert(h func(Message)) {
	s.mu.Lock()
	s.onInsert = h
	s.mu.Unlock()
}

// OnPresence registers the handler for presence change events.
func (s *Subscription) OnPresence(h func(PresenceEvent)) {
	s.mu.Lock()
	s.onPresence = h
	s.mu.Unlock()
}

// State returns the current connection state.
func (s *Subscription) State() SubscriptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start establishes the connection and begins delivering events.
func (s *Subscription) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateConnected || s.state == StateConnecting {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.intentionalClose = false
	s.mu.Unlock()

	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return errSubscription("websocket dial", err)
	}

	connCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.conn = conn
	s.state = StateConnected
	s.cancelFn = cancel
	s.mu.Unlock()
	s.recon.markConnected()

	go s.readLoop(connCtx)
	return nil
}

// Stop tears the subscription down. Events already in flight are dropped; no
// handler runs after Stop returns.
func (s *Subscription) Stop() error {
	s.mu.Lock()
	s.intentionalClose = true
	if s.cancelFn != nil {
		s.cancelFn()
		s.cancelFn = nil
	}
	conn := s.conn
	s.conn = nil
	s.state = StateDisconnected
	s.onInsert = nil
	s.onPresence = nil
	s.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	return nil
}

func (s *Subscription) readLoop(ctx context.Context) {
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			s.mu.Lock()
			intentional := s.intentionalClose
			s.mu.Unlock()
			if intentional {
				return
			}

			s.mu.Lock()
			s.state = StateDisconnected
			s.conn = nil
			s.mu.Unlock()

			log.Debugf("subscription dropped: %v", err)
			if s.config.AutoReconnect && s.recon.shouldReconnect() {
				s.scheduleReconnect(ctx)
			}
			return
		}

		var env envelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		s.dispatch(env)
	}
}

func (s *Subscription) dispatch(env envelope) {
	s.mu.Lock()
	onInsert := s.onInsert
	onPresence := s.onPresence
	s.mu.Unlock()

	switch env.Type {
	case eventMessageInsert:
		var msg Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			log.Errorf("malformed insert payload: %v", err)
			return
		}
		if onInsert != nil {
			onInsert(msg)
		}
	case eventPresenceChange:
		var ev PresenceEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			log.Errorf("malformed presence payload: %v", err)
			return
		}
		if onPresence != nil {
			onPresence(ev)
		}
	}
}

func (s *Subscription) scheduleReconnect(ctx context.Context) {
	delay := s.recon.nextDelay()
	s.mu.Lock()
	s.state = StateReconnecting
	s.mu.Unlock()

	log.Debugf("subscription reconnecting in %s (attempt %d)", delay, s.recon.attempt)

	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	if err := s.Start(ctx); err != nil {
		if s.config.AutoReconnect && s.recon.shouldReconnect() {
			s.scheduleReconnect(ctx)
		} else {
			s.mu.Lock()
			s.state = StateDisconnected
			s.mu.Unlock()
		}
	}
}
