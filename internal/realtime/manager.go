// Package realtime maintains the push connection to the storefront
// notification service.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nhle/shopnotify/internal/clock"
)

// TokenSource reads the current access credential. ok is false when the
// user is not logged in or the credential has expired.
type TokenSource interface {
	AccessToken() (token string, ok bool)
}

// TicketIssuer exchanges the session credential for a single-use
// connection ticket.
type TicketIssuer interface {
	IssueTicket(ctx context.Context) (string, error)
}

// Config holds connection tuning.
type Config struct {
	// BaseURL is the HTTP(S) API root the socket URL is derived from.
	BaseURL           string
	HeartbeatInterval time.Duration
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	TicketTimeout     time.Duration
}

// DefaultConfig returns the production timings: 30s heartbeat, reconnect
// backoff from 1s doubling up to 30s, 10s ticket timeout.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		HeartbeatInterval: 30 * time.Second,
		BackoffBase:       time.Second,
		BackoffMax:        30 * time.Second,
		TicketTimeout:     10 * time.Second,
	}
}

// Deps are the Manager's collaborators. Clock defaults to clock.Real and
// Dialer to WebsocketDialer when nil.
type Deps struct {
	Tokens  TokenSource
	Tickets TicketIssuer
	Dialer  Dialer
	Clock   clock.Clock
	Logger  *slog.Logger
}

// Manager owns one persistent push connection. It authenticates with a
// fresh ticket on every attempt, sends heartbeats while open, and
// reconnects with exponential backoff until Disconnect is called.
type Manager struct {
	cfg     Config
	tokens  TokenSource
	tickets TicketIssuer
	dialer  Dialer
	clock   clock.Clock
	logger  *slog.Logger
	handler Handler

	mu             sync.Mutex
	state          State
	conn           Conn
	gen            uint64
	manualClose    bool
	backoff        *backoffPolicy
	reconnectTimer clock.Timer
	heartbeatTimer clock.Timer
	cancelAttempt  context.CancelFunc

	// writeMu serializes socket writes, which happen outside mu so a
	// stalled write never blocks state changes.
	writeMu sync.Mutex
}

// New creates an idle Manager that reports to h.
func New(cfg Config, deps Deps, h Handler) *Manager {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Dialer == nil {
		deps.Dialer = WebsocketDialer{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if h == nil {
		h = HandlerFuncs{}
	}
	if cfg.TicketTimeout <= 0 {
		cfg.TicketTimeout = 10 * time.Second
	}

	return &Manager{
		cfg:     cfg,
		tokens:  deps.Tokens,
		tickets: deps.Tickets,
		dialer:  deps.Dialer,
		clock:   deps.Clock,
		logger:  deps.Logger.With("component", "realtime"),
		handler: h,
		backoff: newBackoffPolicy(cfg.BackoffBase, cfg.BackoffMax),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of reconnects scheduled since the last
// successful connection.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backoff.attempts
}

// Connect starts a connection attempt unless one is already in flight or
// open. It blocks for the ticket request and handshake; every failure is
// reported to the Handler rather than returned.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateOpen {
		m.mu.Unlock()
		return
	}
	m.manualClose = false
	m.stopReconnectLocked()
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	m.attempt(ctx, gen)
}

// Disconnect closes the connection and suppresses reconnection until the
// next Connect. Pending timers and any in-flight attempt are cancelled
// before the transport is closed.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.manualClose = true
	m.gen++
	m.stopReconnectLocked()
	m.stopHeartbeatLocked()
	if m.cancelAttempt != nil {
		m.cancelAttempt()
		m.cancelAttempt = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = StateIdle
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Debug("closing socket", "error", err)
		}
	}
	m.logger.Info("disconnected")
	m.handler.OnStatus(StatusDisconnected)
}

// SendPing writes a liveness ping if the connection is open. It never
// queues.
func (m *Manager) SendPing() {
	m.mu.Lock()
	conn := m.openConnLocked()
	m.mu.Unlock()

	m.ping(conn)
}

// openConnLocked returns the transport if the connection is open, else nil.
func (m *Manager) openConnLocked() Conn {
	if m.state != StateOpen {
		return nil
	}
	return m.conn
}

func (m *Manager) ping(conn Conn) {
	if conn == nil {
		return
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteMessage(pingFrame); err != nil {
		// The read loop observes the broken transport and reconnects.
		m.logger.Debug("sending ping", "error", err)
	}
}

// attempt runs one authenticate-then-open sequence for generation gen.
func (m *Manager) attempt(ctx context.Context, gen uint64) {
	_, ok := m.tokens.AccessToken()

	m.mu.Lock()
	if gen != m.gen || m.manualClose {
		m.mu.Unlock()
		return
	}
	if !ok {
		m.state = StateIdle
		m.mu.Unlock()

		m.logger.Warn("no access token, not connecting")
		m.handler.OnStatus(StatusMissingToken)
		m.handler.OnError(ErrMissingToken)
		return
	}
	attemptCtx, cancel := context.WithCancel(ctx)
	m.cancelAttempt = cancel
	m.state = StateConnecting
	m.mu.Unlock()
	defer cancel()

	ticketCtx, ticketCancel := context.WithTimeout(attemptCtx, m.cfg.TicketTimeout)
	ticket, err := m.tickets.IssueTicket(ticketCtx)
	ticketCancel()
	if err != nil {
		m.fail(gen, fmt.Errorf("issuing connection ticket: %w", err))
		return
	}

	rawURL, err := BuildURL(m.cfg.BaseURL, ticket)
	if err != nil {
		m.fail(gen, err)
		return
	}

	conn, err := m.dialer.Dial(attemptCtx, rawURL)
	if err != nil {
		m.fail(gen, fmt.Errorf("opening notification socket: %w", err))
		return
	}

	m.mu.Lock()
	if gen != m.gen || m.manualClose {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.state = StateOpen
	m.cancelAttempt = nil
	m.backoff.Reset()
	m.scheduleHeartbeatLocked(gen)
	m.mu.Unlock()

	m.logger.Info("connected")
	m.handler.OnStatus(StatusConnected)

	go m.readLoop(conn, gen)
}

// fail reports a failed attempt and schedules the next one.
func (m *Manager) fail(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen || m.manualClose {
		m.mu.Unlock()
		return
	}
	m.cancelAttempt = nil
	delay := m.scheduleReconnectLocked(gen)
	attempts := m.backoff.attempts
	m.mu.Unlock()

	m.logger.Warn("connection attempt failed",
		"error", err,
		"retry_in", delay,
		"attempt", attempts,
	)
	m.handler.OnError(err)
	m.handler.OnStatus(StatusError)
	m.handler.OnStatus(StatusReconnecting)
}

// readLoop delivers frames in order until the transport closes.
func (m *Manager) readLoop(conn Conn, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(gen, err)
			return
		}

		msg, ok := Classify(data)
		if !ok {
			m.logger.Debug("dropping unrecognized frame", "bytes", len(data))
			continue
		}

		m.mu.Lock()
		current := gen == m.gen
		m.mu.Unlock()
		if !current {
			return
		}

		m.handler.OnMessage(msg)
	}
}

// handleClose tears down a connection that ended without Disconnect and
// schedules a reconnect.
func (m *Manager) handleClose(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.stopHeartbeatLocked()
	conn := m.conn
	m.conn = nil
	delay := m.scheduleReconnectLocked(gen)
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	if isCleanClose(err) {
		m.logger.Info("socket closed by server", "retry_in", delay)
	} else {
		m.logger.Warn("socket error", "error", err, "retry_in", delay)
		m.handler.OnError(fmt.Errorf("notification socket: %w", err))
		m.handler.OnStatus(StatusError)
	}
	m.handler.OnStatus(StatusReconnecting)
}

// scheduleReconnectLocked arms the reconnect timer with the next backoff
// delay. Callers must hold m.mu.
func (m *Manager) scheduleReconnectLocked(gen uint64) time.Duration {
	m.stopReconnectLocked()
	delay := m.backoff.Next()
	m.state = StateReconnecting
	m.reconnectTimer = m.clock.AfterFunc(delay, func() {
		m.reconnect(gen)
	})
	return delay
}

func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.manualClose || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.reconnectTimer = nil
	m.gen++
	next := m.gen
	m.mu.Unlock()

	m.logger.Info("attempting reconnection")
	m.attempt(context.Background(), next)
}

func (m *Manager) scheduleHeartbeatLocked(gen uint64) {
	m.heartbeatTimer = m.clock.AfterFunc(m.cfg.HeartbeatInterval, func() {
		m.mu.Lock()
		if gen != m.gen || m.state != StateOpen {
			m.mu.Unlock()
			return
		}
		conn := m.openConnLocked()
		m.scheduleHeartbeatLocked(gen)
		m.mu.Unlock()

		m.ping(conn)
	})
}

func (m *Manager) stopReconnectLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) stopHeartbeatLocked() {
	if m.heartbeatTimer != nil {
		m.heartbeatTimer.Stop()
		m.heartbeatTimer = nil
	}
}

// isCleanClose reports whether err is an orderly close rather than a
// transport failure.
func isCleanClose(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
	)
}
