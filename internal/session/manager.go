// Package session manages the kernel session lifecycle for an open notebook.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nbkit/nbkit/internal/api"
	"github.com/nbkit/nbkit/internal/event"
	"github.com/nbkit/nbkit/internal/logging"
	"github.com/nbkit/nbkit/pkg/types"
)

// ErrNoSession is returned when an operation needs an active session and
// there is none.
var ErrNoSession = errors.New("no active session")

// State is the session lifecycle state.
type State string

const (
	StateNoSession State = "no_session"
	StateStarting  State = "starting"
	StateActive    State = "active"
)

// Manager owns the session state machine for one notebook tab: exactly one
// active session at a time, created lazily, replaced on kernel switch.
type Manager struct {
	client        *api.Client
	registry      *Registry
	bus           *event.Bus
	defaultKernel string

	mu      sync.RWMutex
	state   State
	current *types.Session
}

// NewManager creates a manager in the NoSession state. The defaultKernel is
// substituted when a session is started with the "default" kernelspec name.
func NewManager(client *api.Client, registry *Registry, bus *event.Bus, defaultKernel string) *Manager {
	if defaultKernel == "" {
		defaultKernel = "python3"
	}
	return &Manager{
		client:        client,
		registry:      registry,
		bus:           bus,
		defaultKernel: defaultKernel,
		state:         StateNoSession,
	}
}

// Start creates a session for the given notebook and kernelspec. On success
// the new session replaces any prior one and its kernel is recorded in the
// registry. On failure the prior session (or NoSession) is kept and the
// error surfaced; there is no automatic retry. The transport bound to a
// superseded session is not closed here; that is the owner's call.
func (m *Manager) Start(ctx context.Context, path, name, sessionType, kernelspecName string) (*types.Session, error) {
	if kernelspecName == "" || kernelspecName == "default" {
		kernelspecName = m.defaultKernel
	}

	m.mu.Lock()
	prevState, prevSession := m.state, m.current
	m.state = StateStarting
	m.mu.Unlock()

	session, err := m.client.CreateSession(ctx, types.SessionRequest{
		Path:   path,
		Name:   name,
		Type:   sessionType,
		Kernel: types.KernelSpec{Name: kernelspecName},
	})
	if err != nil {
		m.mu.Lock()
		m.state, m.current = prevState, prevSession
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	m.mu.Lock()
	if prevSession != nil {
		m.registry.Unregister(prevSession.Kernel.ID)
	}
	m.state = StateActive
	m.current = session
	m.mu.Unlock()

	m.registry.Register(session.Kernel)
	sessionLogger := logging.ForComponent("session")
	sessionLogger.Info().
		Str("session_id", session.ID).
		Str("kernel", session.Kernel.Name).
		Msg("session active")
	m.bus.Publish(event.Event{Type: event.SessionStarted, Data: event.SessionStartedData{Session: session}})

	return session, nil
}

// Current returns the active session, or false when there is none.
func (m *Manager) Current() (*types.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateActive || m.current == nil {
		return nil, false
	}
	return m.current, true
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// StopKernel shuts down the active session's kernel and forgets the session.
// No interrupt protocol message is sent; in-flight executions are abandoned.
func (m *Manager) StopKernel(ctx context.Context) error {
	m.mu.Lock()
	session := m.current
	if session == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	m.state = StateNoSession
	m.current = nil
	m.mu.Unlock()

	m.registry.Unregister(session.Kernel.ID)
	if err := m.client.DeleteKernel(ctx, session.Kernel.ID); err != nil {
		return err
	}
	sessionLogger := logging.ForComponent("session")
	sessionLogger.Info().
		Str("kernel_id", session.Kernel.ID).
		Msg("kernel stopped")
	return nil
}
