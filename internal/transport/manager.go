// Package transport owns the persistent duplex connection to a kernel's
// channel endpoint. It delivers parsed inbound messages to a frame handler in
// arrival order and carries no business logic.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/nbkit/nbkit/internal/codec"
	"github.com/nbkit/nbkit/internal/event"
	"github.com/nbkit/nbkit/internal/logging"
	"github.com/nbkit/nbkit/pkg/types"
)

// ErrNotConnected is returned when sending without an open connection.
var ErrNotConnected = errors.New("not connected")

// FrameHandler receives each parsed inbound message, one at a time, in the
// order the transport received the frames.
type FrameHandler func(msg *types.Message)

// Manager binds one duplex connection to one session.
type Manager struct {
	wsBase    string
	bus       *event.Bus
	handler   FrameHandler
	reconnect bool

	mu      sync.Mutex
	conn    *websocket.Conn
	session *types.Session
	closed  bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithReconnect enables the reconnect policy: on an unexpected close the
// manager redials the same endpoint with exponential backoff. Without it a
// close is reported and the connection stays down until reopened manually.
func WithReconnect() Option {
	return func(m *Manager) { m.reconnect = true }
}

// NewManager creates a transport manager. Inbound messages go to handler.
func NewManager(wsBase string, bus *event.Bus, handler FrameHandler, opts ...Option) *Manager {
	m := &Manager{wsBase: wsBase, bus: bus, handler: handler}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect opens the channel connection for a session and starts the read
// loop. A previously open connection is closed first.
func (m *Manager) Connect(ctx context.Context, session *types.Session) error {
	endpoint := fmt.Sprintf("%s/api/kernels/%s/channels?session_id=%s",
		m.wsBase, url.PathEscape(session.Kernel.ID), url.QueryEscape(session.ID))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to kernel channels: %w", err)
	}

	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.conn = conn
	m.session = session
	m.closed = false
	m.mu.Unlock()

	m.publishStatus("connected")
	go m.readLoop(conn, endpoint)
	return nil
}

// Send writes a message to the connection.
func (m *Manager) Send(msg *types.Message) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteJSON(msg)
}

// Connected reports whether a connection is currently open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil && !m.closed
}

// Close tears the connection down. The close is deliberate: no reconnect.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// readLoop parses each frame and hands it to the handler. A malformed frame
// is logged and dropped; it must never terminate the loop.
func (m *Manager) readLoop(conn *websocket.Conn, endpoint string) {
	log := logging.ForComponent("transport")
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		msg, err := codec.ParseInbound(raw)
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		m.handler(msg)
	}

	m.publishStatus("disconnected")

	m.mu.Lock()
	deliberate := m.closed || m.conn != conn
	m.mu.Unlock()
	if deliberate || !m.reconnect {
		return
	}

	log.Info().Str("endpoint", endpoint).Msg("connection lost, reconnecting")
	m.redial(endpoint)
}

// redial re-establishes a dropped connection with exponential backoff.
// Resubscription is idempotent: the endpoint already names the kernel and
// session, so dialing it again restores the same channel streams.
func (m *Manager) redial(endpoint string) {
	log := logging.ForComponent("transport")
	operation := func() error {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return backoff.Permanent(errors.New("transport closed"))
		}
		m.mu.Unlock()

		conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
		if err != nil {
			return err
		}

		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()

		m.publishStatus("connected")
		go m.readLoop(conn, endpoint)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	if err := backoff.Retry(operation, policy); err != nil {
		log.Error().Err(err).Msg("reconnect abandoned")
	}
}

func (m *Manager) publishStatus(status string) {
	m.bus.Publish(event.Event{
		Type: event.ConnectionStatus,
		Data: event.ConnectionStatusData{Status: status},
	})
}
