package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/jsonrpc"
	"github.com/viant/jsonrpc/transport"
	"github.com/viant/mcp-relay/internal/clock"
	"github.com/viant/mcp-relay/internal/collection"
)

// ErrSessionNotFound indicates a message referenced a session that does not
// exist or was already closed.
var ErrSessionNotFound = errors.New("session not found")

// NewHandler builds the per-session message handler bound at open time.
type NewHandler func(session *Session) transport.Handler

// Lifecycle observes session open and close; implemented by upstream.Manager
// so the upstream connection's idle release tracks downstream activity.
type Lifecycle interface {
	SessionOpened()
	SessionClosed()
}

type noLifecycle struct{}

func (noLifecycle) SessionOpened() {}
func (noLifecycle) SessionClosed() {}

// Registry owns all live sessions. Each session gets a dedicated worker that
// serves its inbound messages strictly in arrival order; sessions never block
// one another.
type Registry struct {
	newHandler NewHandler
	lifecycle  Lifecycle
	keepAlive  time.Duration
	queueSize  int
	clock      clock.Clock
	logger     *log.Logger
	sessions   *collection.SyncMap[string, *registered]
	wg         sync.WaitGroup
}

type registered struct {
	session *Session
	handler transport.Handler
}

// Option configures a Registry.
type Option func(r *Registry)

// WithLifecycle sets the open/close observer.
func WithLifecycle(lifecycle Lifecycle) Option {
	return func(r *Registry) {
		r.lifecycle = lifecycle
	}
}

// WithKeepAlive sets the stream keep-alive interval; zero disables pulses.
func WithKeepAlive(interval time.Duration) Option {
	return func(r *Registry) {
		r.keepAlive = interval
	}
}

// WithClock overrides the time source.
func WithClock(aClock clock.Clock) Option {
	return func(r *Registry) {
		r.clock = aClock
	}
}

// WithLogger sets the operational logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a session registry.
func NewRegistry(newHandler NewHandler, options ...Option) *Registry {
	ret := &Registry{
		newHandler: newHandler,
		lifecycle:  noLifecycle{},
		keepAlive:  15 * time.Second,
		queueSize:  8,
		clock:      clock.System(),
		logger:     log.Default(),
		sessions:   collection.NewSyncMap[string, *registered](),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Open registers a new session over the supplied conduit and starts its
// worker. The returned session carries the identifier the client must echo
// on every message.
func (r *Registry) Open(conduit Conduit, clientAddr, prefix string) *Session {
	session := &Session{
		ID:         uuid.New().String(),
		CreatedAt:  r.clock.Now(),
		ClientAddr: clientAddr,
		Prefix:     prefix,
		conduit:    conduit,
		queue:      make(chan inbound, r.queueSize),
		done:       make(chan struct{}),
	}
	entry := &registered{session: session, handler: r.newHandler(session)}
	r.sessions.Put(session.ID, entry)
	r.lifecycle.SessionOpened()
	r.wg.Add(1)
	go r.work(entry)
	if r.keepAlive > 0 {
		go r.pulse(session)
	}
	r.logger.Printf("[session] opened session %v for %v", session.ID, clientAddr)
	return session
}

// Close removes a session and stops its worker. Closing an unknown or
// already-closed session is a no-op.
func (r *Registry) Close(id string) {
	entry, ok := r.sessions.Remove(id)
	if !ok {
		return
	}
	entry.session.close()
	r.lifecycle.SessionClosed()
	r.logger.Printf("[session] closed session %v", id)
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	return r.sessions.Size()
}

// Route enqueues a request on its session's worker. An unknown session id
// fails fast with ErrSessionNotFound before any upstream work happens.
func (r *Registry) Route(ctx context.Context, id string, request *jsonrpc.Request) error {
	return r.enqueue(ctx, id, inbound{request: request})
}

// Notify enqueues a notification on its session's worker.
func (r *Registry) Notify(ctx context.Context, id string, notification *jsonrpc.Notification) error {
	return r.enqueue(ctx, id, inbound{notification: notification})
}

func (r *Registry) enqueue(ctx context.Context, id string, message inbound) error {
	entry, ok := r.sessions.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	select {
	case entry.session.queue <- message:
		return nil
	case <-entry.session.done:
		return ErrSessionNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown closes every session and waits for in-flight work to drain, up to
// the context deadline.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.sessions.Range(func(id string, _ *registered) bool {
		r.Close(id)
		return true
	})
	drained := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) work(entry *registered) {
	defer r.wg.Done()
	for {
		select {
		case <-entry.session.done:
			return
		case message := <-entry.session.queue:
			r.serve(entry, message)
		}
	}
}

func (r *Registry) serve(entry *registered, message inbound) {
	ctx := context.Background()
	if message.notification != nil {
		entry.handler.OnNotification(ctx, message.notification)
		return
	}
	response := &jsonrpc.Response{Id: message.request.Id, Jsonrpc: jsonrpc.Version}
	entry.handler.Serve(ctx, message.request, response)
	payload, err := json.Marshal(response)
	if err != nil {
		r.logger.Printf("[session] failed to marshal response for session %v: %v", entry.session.ID, err)
		return
	}
	if err := entry.session.conduit.Push(ctx, payload); err != nil {
		r.logger.Printf("[session] dropped response for session %v: %v", entry.session.ID, err)
	}
}

func (r *Registry) pulse(session *Session) {
	for {
		select {
		case <-session.done:
			return
		case <-r.clock.After(r.keepAlive):
			if err := session.conduit.Pulse(context.Background()); err != nil {
				return
			}
		}
	}
}
