// Package session tracks per-client streaming sessions and routes inbound
// requests to each session's bound handler, in arrival order per session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/viant/jsonrpc"
)

// Conduit is the write-only path to one open client stream.
type Conduit interface {
	// Push delivers a JSON-RPC payload to the client.
	Push(ctx context.Context, payload []byte) error
	// Pulse emits a keep-alive so intermediary proxies do not time out an idle stream.
	Pulse(ctx context.Context) error
}

// Session is one client's long-lived stream plus its identifier. Sessions are
// exclusively owned and mutated by the Registry.
type Session struct {
	ID         string
	CreatedAt  time.Time
	ClientAddr string
	Prefix     string

	conduit   Conduit
	queue     chan inbound
	done      chan struct{}
	closeOnce sync.Once
}

type inbound struct {
	request      *jsonrpc.Request
	notification *jsonrpc.Notification
}

// Done is closed when the session is removed from the registry; stream
// handlers block on it so shutdown can unblock them.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
