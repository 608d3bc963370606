// Package upstream maintains the single resilient logical session to the
// upstream MCP endpoint: lazy connect, heartbeat monitoring, reconnect with
// backoff and idle release.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/viant/jsonrpc"
	"github.com/viant/jsonrpc/transport"
	"github.com/viant/mcp-protocol/schema"

	"github.com/viant/mcp-relay/internal/clock"
	"github.com/viant/mcp-relay/retry"
)

// DialFunc establishes a fresh transport to the upstream endpoint.
type DialFunc func(ctx context.Context) (transport.Transport, error)

// Connection owns one live transport session to the upstream endpoint.
// It is safe for concurrent use; all sessions share it invoke-only.
type Connection struct {
	dial            DialFunc
	policy          retry.Policy
	clock           clock.Clock
	logger          *log.Logger
	info            schema.Implementation
	protocolVersion string

	heartbeatInterval  time.Duration
	heartbeatThreshold int

	mux       sync.Mutex
	state     State
	transport transport.Transport
	pending   chan struct{} // in-flight connect attempt shared by all callers
	epoch     int           // bumped per successful connect; stops stale heartbeats
	done      chan struct{}
}

// NewConnection creates a connection that dials lazily on first use.
func NewConnection(dial DialFunc, options ...Option) *Connection {
	c := &Connection{
		dial:               dial,
		policy:             retry.DefaultPolicy(),
		clock:              clock.System(),
		logger:             log.Default(),
		info:               schema.Implementation{Name: "mcp-relay", Version: "0.1"},
		protocolVersion:    schema.LatestProtocolVersion,
		heartbeatInterval:  30 * time.Second,
		heartbeatThreshold: 2,
		state:              StateDisconnected,
		done:               make(chan struct{}),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.state
}

// Connect establishes the transport session. A no-op when already connected;
// when a connect is in flight every caller awaits that same attempt. The
// attempt itself retries indefinitely with backoff - callers bound their own
// wait through ctx.
func (c *Connection) Connect(ctx context.Context) error {
	for {
		c.mux.Lock()
		switch c.state {
		case StateClosed:
			c.mux.Unlock()
			return ErrClosed
		case StateConnected:
			c.mux.Unlock()
			return nil
		}
		pending := c.pending
		if pending == nil {
			pending = make(chan struct{})
			c.pending = pending
			c.state = StateConnecting
			go c.connect(pending)
		}
		c.mux.Unlock()

		select {
		case <-pending:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrClosed
		}
	}
}

// connect runs the reconnection loop until a dial and handshake succeed or
// the connection is closed. Attempt delays come from the retry policy.
func (c *Connection) connect(pending chan struct{}) {
	defer func() {
		c.mux.Lock()
		if c.pending == pending {
			c.pending = nil
		}
		c.mux.Unlock()
		close(pending)
	}()
	for attempt := 0; ; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}
		ctx := context.Background()
		t, err := c.dial(ctx)
		if err == nil {
			if err = c.initialize(ctx, t); err == nil {
				c.mux.Lock()
				if c.state == StateClosed {
					c.mux.Unlock()
					closeTransport(t)
					return
				}
				c.transport = t
				c.state = StateConnected
				c.epoch++
				epoch := c.epoch
				c.mux.Unlock()
				if c.heartbeatInterval > 0 {
					go c.heartbeat(epoch)
				}
				return
			}
			closeTransport(t)
		}
		delay := c.policy.Delay(attempt)
		c.logger.Printf("[upstream] connect failed: %v, retrying in %s", err, delay)
		select {
		case <-c.done:
			return
		case <-c.clock.After(delay):
		}
	}
}

// initialize performs the MCP handshake on a freshly dialed transport.
func (c *Connection) initialize(ctx context.Context, t transport.Transport) error {
	params := &schema.InitializeRequestParams{
		Capabilities:    schema.ClientCapabilities{},
		ClientInfo:      c.info,
		ProtocolVersion: c.protocolVersion,
	}
	req, err := jsonrpc.NewRequest(schema.MethodInitialize, params)
	if err != nil {
		return err
	}
	response, err := t.Send(ctx, req)
	if err != nil {
		return err
	}
	if response.Error != nil {
		return response.Error
	}
	var result schema.InitializeResult
	if err = json.Unmarshal(response.Result, &result); err != nil {
		return fmt.Errorf("failed to unmarshal InitializeResult: %w", err)
	}
	return t.Notify(ctx, &jsonrpc.Notification{Method: schema.MethodNotificationInitialized})
}

// heartbeat probes the active transport at a fixed interval. Two consecutive
// failures (the configured threshold) force a reconnect. The loop ends when
// the connection is closed or a newer epoch supersedes it.
func (c *Connection) heartbeat(epoch int) {
	failures := 0
	for {
		select {
		case <-c.done:
			return
		case <-c.clock.After(c.heartbeatInterval):
		}
		c.mux.Lock()
		if c.state != StateConnected || c.epoch != epoch {
			c.mux.Unlock()
			return
		}
		t := c.transport
		c.mux.Unlock()

		if err := c.ping(t); err != nil {
			failures++
			c.logger.Printf("[upstream] heartbeat failed (%d/%d): %v", failures, c.heartbeatThreshold, err)
			if failures >= c.heartbeatThreshold {
				if c.markReconnecting(epoch) {
					go func() { _ = c.Connect(context.Background()) }()
				}
				return
			}
			continue
		}
		failures = 0
	}
}

func (c *Connection) ping(t transport.Transport) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.heartbeatInterval)
	defer cancel()
	req, err := jsonrpc.NewRequest(schema.MethodPing, &schema.PingRequestParams{})
	if err != nil {
		return err
	}
	response, err := t.Send(ctx, req)
	if err != nil {
		return err
	}
	if response.Error != nil {
		return response.Error
	}
	return nil
}

// markReconnecting transitions Connected -> Reconnecting and drops the broken
// transport. With epoch >= 0 the transition applies only to that epoch.
func (c *Connection) markReconnecting(epoch int) bool {
	c.mux.Lock()
	if c.state != StateConnected || (epoch >= 0 && c.epoch != epoch) {
		c.mux.Unlock()
		return false
	}
	c.state = StateReconnecting
	t := c.transport
	c.transport = nil
	c.mux.Unlock()
	closeTransport(t)
	return true
}

// reconnect forces one reconnect and waits for it, bounded by ctx.
func (c *Connection) reconnect(ctx context.Context) error {
	c.markReconnecting(-1)
	return c.Connect(ctx)
}

// Invoke calls the named upstream tool, connecting lazily on first use.
// On transport-level failure it forces exactly one reconnect and retries the
// call once; a second failure surfaces as an InvokeError.
func (c *Connection) Invoke(ctx context.Context, name string, args map[string]interface{}) (*schema.CallToolResult, error) {
	params := &schema.CallToolRequestParams{Name: name, Arguments: args}
	result := &schema.CallToolResult{}
	if err := c.call(ctx, schema.MethodToolsCall, params, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListTools lists the upstream's declared tools.
func (c *Connection) ListTools(ctx context.Context) (*schema.ListToolsResult, error) {
	result := &schema.ListToolsResult{}
	if err := c.call(ctx, schema.MethodToolsList, &schema.ListToolsRequestParams{}, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Ping probes upstream liveness once.
func (c *Connection) Ping(ctx context.Context) error {
	return c.call(ctx, schema.MethodPing, &schema.PingRequestParams{}, &schema.PingResult{})
}

func (c *Connection) call(ctx context.Context, method string, params, result interface{}) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	response, err := c.roundTrip(ctx, method, params)
	if err != nil {
		if rerr := c.reconnect(ctx); rerr != nil {
			return rerr
		}
		if response, err = c.roundTrip(ctx, method, params); err != nil {
			return &InvokeError{Method: method, Err: err}
		}
	}
	if response.Error != nil {
		return response.Error
	}
	if err = json.Unmarshal(response.Result, result); err != nil {
		return &InvokeError{Method: method, Err: fmt.Errorf("failed to unmarshal result: %w", err)}
	}
	return nil
}

func (c *Connection) roundTrip(ctx context.Context, method string, params interface{}) (*jsonrpc.Response, error) {
	c.mux.Lock()
	state := c.state
	t := c.transport
	c.mux.Unlock()
	if state == StateClosed {
		return nil, ErrClosed
	}
	if t == nil || state != StateConnected {
		return nil, fmt.Errorf("transport is not connected")
	}
	req, err := jsonrpc.NewRequest(method, params)
	if err != nil {
		return nil, err
	}
	return t.Send(ctx, req)
}

// Close tears down the transport and all timers; Connect and Invoke fail with
// ErrClosed afterwards. Close is terminal and idempotent.
func (c *Connection) Close() error {
	c.mux.Lock()
	if c.state == StateClosed {
		c.mux.Unlock()
		return nil
	}
	c.state = StateClosed
	t := c.transport
	c.transport = nil
	c.mux.Unlock()
	close(c.done)
	closeTransport(t)
	return nil
}

func closeTransport(t transport.Transport) {
	if closer, ok := t.(io.Closer); ok {
		_ = closer.Close()
	}
}
