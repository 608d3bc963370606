package upstream

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/viant/mcp-protocol/schema"

	"github.com/viant/mcp-relay/internal/clock"
)

// Manager lazily creates and destroys the single upstream Connection.
// Concurrent creation is memoized; when the last session goes away the
// connection is released after a grace period, so a fully idle service holds
// zero upstream connections.
type Manager struct {
	newConnection func() *Connection
	grace         time.Duration
	clock         clock.Clock
	logger        *log.Logger

	mux      sync.Mutex
	conn     *Connection
	creating chan struct{} // creation in flight, cleared on resolution
	sessions int
	idle     clock.Timer
	closed   bool
}

// ManagerOption configures a Manager.
type ManagerOption func(m *Manager)

// WithIdleGrace sets how long the manager waits with zero sessions before
// releasing the upstream connection.
func WithIdleGrace(grace time.Duration) ManagerOption {
	return func(m *Manager) {
		m.grace = grace
	}
}

// WithManagerClock sets the clock driving the idle-close timer.
func WithManagerClock(aClock clock.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = aClock
	}
}

// WithManagerLogger sets the operational logger.
func WithManagerLogger(logger *log.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a manager; newConnection builds a fresh Connection on demand.
func NewManager(newConnection func() *Connection, options ...ManagerOption) *Manager {
	m := &Manager{
		newConnection: newConnection,
		grace:         5 * time.Minute,
		clock:         clock.System(),
		logger:        log.Default(),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Ensure returns the live Connection, creating and connecting one if absent.
// Concurrent callers share a single creation in flight; the future is cleared
// on resolution so later calls re-check liveness.
func (m *Manager) Ensure(ctx context.Context) (*Connection, error) {
	for {
		m.mux.Lock()
		if m.closed {
			m.mux.Unlock()
			return nil, ErrClosed
		}
		m.cancelIdleLocked()
		if conn := m.conn; conn != nil && conn.State() != StateClosed {
			m.mux.Unlock()
			return conn, nil
		}
		m.conn = nil
		creating := m.creating
		if creating == nil {
			creating = make(chan struct{})
			m.creating = creating
			go m.create(creating)
		}
		m.mux.Unlock()

		select {
		case <-creating:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *Manager) create(creating chan struct{}) {
	conn := m.newConnection()
	m.mux.Lock()
	m.creating = nil
	if m.closed {
		m.mux.Unlock()
		_ = conn.Close()
		close(creating)
		return
	}
	m.conn = conn
	m.mux.Unlock()
	close(creating)
	go func() {
		if err := conn.Connect(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
			m.logger.Printf("[upstream] connect: %v", err)
		}
	}()
}

// Invoke ensures a connection and calls the named upstream tool on it.
func (m *Manager) Invoke(ctx context.Context, name string, args map[string]interface{}) (*schema.CallToolResult, error) {
	conn, err := m.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	return conn.Invoke(ctx, name, args)
}

// ListTools ensures a connection and lists the upstream's declared tools.
func (m *Manager) ListTools(ctx context.Context) (*schema.ListToolsResult, error) {
	conn, err := m.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	return conn.ListTools(ctx)
}

// SessionOpened records a new downstream session and cancels any pending idle close.
func (m *Manager) SessionOpened() {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.sessions++
	m.cancelIdleLocked()
}

// SessionClosed records a removed downstream session; removing the last one
// arms the idle-close timer.
func (m *Manager) SessionClosed() {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.sessions > 0 {
		m.sessions--
	}
	if m.sessions == 0 && m.conn != nil && !m.closed {
		m.cancelIdleLocked()
		m.idle = m.clock.AfterFunc(m.grace, m.idleClose)
	}
}

// Sessions returns the number of active downstream sessions.
func (m *Manager) Sessions() int {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.sessions
}

// Connection returns the current connection, or nil when none is held.
func (m *Manager) Connection() *Connection {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.conn
}

func (m *Manager) cancelIdleLocked() {
	if m.idle != nil {
		m.idle.Stop()
		m.idle = nil
	}
}

// idleClose fires after the grace period; with zero active sessions it closes
// the connection and drops the reference.
func (m *Manager) idleClose() {
	m.mux.Lock()
	if m.closed || m.sessions > 0 || m.conn == nil {
		m.mux.Unlock()
		return
	}
	conn := m.conn
	m.conn = nil
	m.idle = nil
	m.mux.Unlock()
	_ = conn.Close()
	m.logger.Printf("[upstream] idle connection released")
}

// Close releases the connection and rejects further Ensure calls.
func (m *Manager) Close() error {
	m.mux.Lock()
	if m.closed {
		m.mux.Unlock()
		return nil
	}
	m.closed = true
	m.cancelIdleLocked()
	conn := m.conn
	m.conn = nil
	m.mux.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
