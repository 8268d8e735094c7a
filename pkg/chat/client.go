package chat

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"healthchat/pkg/bus"
	"healthchat/pkg/config"
)

const (
	connectionErrorPrefix = "Connection Error: "
	sendErrorSuffix       = ". Please try again or check your connection."
)

// Backend is the assistant service the client exchanges messages with.
type Backend interface {
	Probe(ctx context.Context) error
	CreateSession(ctx context.Context, userID string) (string, error)
	Send(ctx context.Context, sessionID string, message string) (string, error)
}

// EventPublisher receives transcript lifecycle events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event bus.Event) bool
}

// Client owns one chat session and its transcript.
//
// Every operation is split into a Start step that mutates state, a Run step
// that only talks to the backend, and a Finish step that records the outcome.
// Results produced before a Retry are discarded by Finish.
type Client struct {
	backend      Backend
	baseLog      *slog.Logger
	log          *slog.Logger
	debugLog     *slog.Logger
	events       EventPublisher
	now          func() time.Time
	welcome      string
	quickReplies []string

	mu         sync.RWMutex
	userID     string
	sessionID  string
	transcript []Message
	state      ConnectionState
	lastError  string
	loading    bool
	debug      bool
	nextID     uint64
	generation uint64
}

func New(backend Backend, opts ...Option) *Client {
	c := &Client{
		backend:      backend,
		baseLog:      slog.Default(),
		now:          time.Now,
		welcome:      config.DefaultWelcomeMessage,
		quickReplies: slices.Clone(config.DefaultQuickReplies),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.userID == "" {
		c.userID = NewUserID("")
	}

	c.log = c.baseLog.With("component", "chat.client")
	c.debugLog = c.baseLog.With("component", "chat.debug")

	return c
}

// BootstrapAttempt is one probe plus session creation.
type BootstrapAttempt struct {
	backend    Backend
	userID     string
	generation uint64
}

// BootstrapResult carries the outcome of BootstrapAttempt.Run.
type BootstrapResult struct {
	Generation uint64
	SessionID  string
	Err        error
}

// Run probes the backend and, when it answers, requests a session.
func (a BootstrapAttempt) Run(ctx context.Context) BootstrapResult {
	if err := a.backend.Probe(ctx); err != nil {
		return BootstrapResult{Generation: a.generation, Err: err}
	}

	sessionID, err := a.backend.CreateSession(ctx, a.userID)
	if err != nil {
		return BootstrapResult{Generation: a.generation, Err: err}
	}

	return BootstrapResult{Generation: a.generation, SessionID: sessionID}
}

// StartBootstrap moves the client to Connecting. It returns false when a
// session is already active or another operation is in flight.
func (c *Client) StartBootstrap() (BootstrapAttempt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loading || c.sessionID != "" {
		c.traceLocked("Bootstrap skipped", "loading", c.loading, "session_id", c.sessionID)
		return BootstrapAttempt{}, false
	}

	c.state = Connecting
	c.loading = true
	c.lastError = ""
	c.traceLocked("Initializing chat session", "user_id", c.userID)

	return BootstrapAttempt{backend: c.backend, userID: c.userID, generation: c.generation}, true
}

// FinishBootstrap records a bootstrap outcome. Stale results are ignored and
// reported as false.
func (c *Client) FinishBootstrap(result BootstrapResult) bool {
	c.mu.Lock()
	if result.Generation != c.generation {
		c.traceLocked("Discarding stale bootstrap result", "generation", result.Generation)
		c.mu.Unlock()
		return false
	}

	c.loading = false
	var event bus.Event
	if result.Err != nil {
		c.state = Disconnected
		c.lastError = result.Err.Error()
		msg := c.appendLocked(RoleBot, connectionErrorPrefix+c.lastError, true)
		c.log.Warn("Session bootstrap failed", "user_id", c.userID, "error", result.Err)
		c.traceLocked("Connection error", "error", c.lastError)
		event = bus.Event{Type: bus.EventSessionFailed, UserID: c.userID, MessageID: msg.ID, Error: c.lastError}
	} else {
		c.sessionID = result.SessionID
		c.state = Connected
		msg := c.appendLocked(RoleBot, c.welcome, false)
		c.log.Info("Session started", "user_id", c.userID, "session_id", c.sessionID)
		c.traceLocked("Session created", "session_id", c.sessionID)
		event = bus.Event{Type: bus.EventSessionStarted, UserID: c.userID, SessionID: c.sessionID, MessageID: msg.ID}
	}
	c.mu.Unlock()

	c.publish(event)
	return true
}

// Bootstrap runs a full bootstrap attempt synchronously.
func (c *Client) Bootstrap(ctx context.Context) bool {
	attempt, ok := c.StartBootstrap()
	if !ok {
		return false
	}

	return c.FinishBootstrap(attempt.Run(ctx))
}

// Exchange is one message sent to the backend.
type Exchange struct {
	backend    Backend
	sessionID  string
	text       string
	generation uint64
	MessageID  uint64
}

// ExchangeResult carries the outcome of Exchange.Run.
type ExchangeResult struct {
	Generation uint64
	Reply      string
	Err        error
}

func (e Exchange) Run(ctx context.Context) ExchangeResult {
	reply, err := e.backend.Send(ctx, e.sessionID, e.text)
	return ExchangeResult{Generation: e.generation, Reply: reply, Err: err}
}

// StartSend appends the user message and marks the client loading. Blank
// text, a missing session and an exchange already in flight all make it a
// no-op that returns false.
func (c *Client) StartSend(text string) (Exchange, bool) {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	if text == "" || c.sessionID == "" || c.loading {
		c.traceLocked("Cannot send message", "input", text, "session_id", c.sessionID, "loading", c.loading)
		c.mu.Unlock()
		return Exchange{}, false
	}

	msg := c.appendLocked(RoleUser, text, false)
	c.loading = true
	c.traceLocked("Sending message", "session_id", c.sessionID, "message", text)
	exchange := Exchange{
		backend:    c.backend,
		sessionID:  c.sessionID,
		text:       text,
		generation: c.generation,
		MessageID:  msg.ID,
	}
	event := bus.Event{Type: bus.EventMessageAppended, SessionID: c.sessionID, UserID: c.userID, MessageID: msg.ID, Payload: map[string]string{"role": string(RoleUser)}}
	c.mu.Unlock()

	c.publish(event)
	return exchange, true
}

// FinishSend appends the reply or an error entry for a completed exchange.
func (c *Client) FinishSend(result ExchangeResult) bool {
	_, ok := c.finishSend(result)
	return ok
}

func (c *Client) finishSend(result ExchangeResult) (Message, bool) {
	c.mu.Lock()
	if result.Generation != c.generation {
		c.traceLocked("Discarding stale reply", "generation", result.Generation)
		c.mu.Unlock()
		return Message{}, false
	}

	c.loading = false
	var msg Message
	var event bus.Event
	if result.Err != nil {
		msg = c.appendLocked(RoleBot, "Error: "+result.Err.Error()+sendErrorSuffix, true)
		c.log.Warn("Message exchange failed", "session_id", c.sessionID, "message_id", msg.ID, "error", result.Err)
		c.traceLocked("Error sending message", "error", result.Err.Error())
		event = bus.Event{Type: bus.EventExchangeFailed, SessionID: c.sessionID, UserID: c.userID, MessageID: msg.ID, Error: result.Err.Error()}
	} else {
		msg = c.appendLocked(RoleBot, result.Reply, false)
		c.traceLocked("Received reply", "message_id", msg.ID, "reply", result.Reply)
		event = bus.Event{Type: bus.EventMessageAppended, SessionID: c.sessionID, UserID: c.userID, MessageID: msg.ID, Payload: map[string]string{"role": string(RoleBot)}}
	}
	c.mu.Unlock()

	c.publish(event)
	return msg, true
}

// Send runs a full exchange synchronously and returns the terminal message.
func (c *Client) Send(ctx context.Context, text string) (Message, bool) {
	exchange, ok := c.StartSend(text)
	if !ok {
		return Message{}, false
	}

	return c.finishSend(exchange.Run(ctx))
}

// Retry discards the session and transcript and starts a fresh bootstrap.
// Any operation still in flight will have its result discarded.
func (c *Client) Retry() (BootstrapAttempt, bool) {
	c.mu.Lock()
	previous := c.sessionID
	c.generation++
	c.transcript = nil
	c.sessionID = ""
	c.state = Disconnected
	c.lastError = ""
	c.loading = false
	c.traceLocked("Retrying connection", "previous_session_id", previous)
	c.mu.Unlock()

	c.publish(bus.Event{Type: bus.EventSessionReset, SessionID: previous, UserID: c.userID})

	return c.StartBootstrap()
}

// Snapshot returns a copy of the current presentation state.
func (c *Client) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Transcript:   slices.Clone(c.transcript),
		Loading:      c.loading,
		State:        c.state,
		LastError:    c.lastError,
		Debug:        c.debug,
		SessionID:    c.sessionID,
		UserID:       c.userID,
		QuickReplies: slices.Clone(c.quickReplies),
	}
}

func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Client) UserID() string {
	return c.userID
}

// Welcome returns the greeting seeded into a fresh transcript.
func (c *Client) Welcome() string {
	return c.welcome
}

// Backend returns the backend the client talks to.
func (c *Client) Backend() Backend {
	return c.backend
}

// SetDebug switches diagnostic traces on or off.
func (c *Client) SetDebug(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug = enabled
	c.log.Info("Debug mode changed", "debug", enabled)
}

// ToggleDebug flips the debug flag and returns the new value.
func (c *Client) ToggleDebug() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug = !c.debug
	c.log.Info("Debug mode changed", "debug", c.debug)
	return c.debug
}

func (c *Client) appendLocked(role Role, text string, isError bool) Message {
	c.nextID++
	msg := Message{
		ID:      c.nextID,
		Text:    text,
		Role:    role,
		IsError: isError,
		At:      c.now(),
	}
	c.transcript = append(c.transcript, msg)
	c.log.Debug("Transcript event", "message_id", msg.ID, "role", msg.Role, "is_error", msg.IsError)

	return msg
}

func (c *Client) traceLocked(msg string, args ...any) {
	if !c.debug {
		return
	}

	c.debugLog.Info(msg, args...)
}

func (c *Client) publish(event bus.Event) {
	if c.events == nil {
		return
	}

	c.events.PublishEvent(context.Background(), event)
}
