package upstream

import (
	"log"
	"time"

	"github.com/viant/mcp-protocol/schema"

	"github.com/viant/mcp-relay/internal/clock"
	"github.com/viant/mcp-relay/retry"
)

// Option configures a Connection.
type Option func(c *Connection)

// WithRetryPolicy sets the reconnect backoff policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Connection) {
		c.policy = policy
	}
}

// WithClock sets the clock driving backoff and heartbeat timers.
func WithClock(aClock clock.Clock) Option {
	return func(c *Connection) {
		c.clock = aClock
	}
}

// WithLogger sets the operational logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Connection) {
		c.logger = logger
	}
}

// WithHeartbeat sets the liveness probe interval and the consecutive-failure
// threshold that forces a reconnect. A zero interval disables the heartbeat.
func WithHeartbeat(interval time.Duration, threshold int) Option {
	return func(c *Connection) {
		c.heartbeatInterval = interval
		if threshold > 0 {
			c.heartbeatThreshold = threshold
		}
	}
}

// WithImplementation sets the client identity announced on initialize.
func WithImplementation(name, version string) Option {
	return func(c *Connection) {
		c.info = schema.Implementation{Name: name, Version: version}
	}
}

// WithProtocolVersion overrides the announced MCP protocol version.
func WithProtocolVersion(version string) Option {
	return func(c *Connection) {
		c.protocolVersion = version
	}
}
