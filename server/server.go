// Package server exposes the relay's downstream MCP surface over HTTP: an
// SSE stream endpoint per session and a message endpoint carrying JSON-RPC.
package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/viant/jsonrpc/transport"
	"github.com/viant/mcp-protocol/schema"
	"github.com/viant/mcp-relay/bridge"
	"github.com/viant/mcp-relay/session"
)

// PrefixResolver derives the externally visible path prefix for a request,
// used when announcing the message endpoint behind a reverse proxy.
type PrefixResolver func(r *http.Request) string

// ForwardedPrefix resolves the prefix from the X-Forwarded-Prefix header.
func ForwardedPrefix(r *http.Request) string {
	return strings.TrimSuffix(r.Header.Get("X-Forwarded-Prefix"), "/")
}

// Server serves one product's relay surface.
type Server struct {
	bridge       *bridge.Bridge
	registry     *session.Registry
	info         schema.Implementation
	instructions string
	prefix       PrefixResolver
	sseURI       string
	messageURI   string
	addr         string
	logger       *log.Logger

	registryOptions []session.Option
}

// Option configures a Server.
type Option func(s *Server)

// WithImplementation sets the server identity reported on initialize.
func WithImplementation(name, version string) Option {
	return func(s *Server) {
		s.info = schema.Implementation{Name: name, Version: version}
	}
}

// WithInstructions sets the instructions reported on initialize.
func WithInstructions(instructions string) Option {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithPrefixResolver overrides prefix resolution.
func WithPrefixResolver(resolver PrefixResolver) Option {
	return func(s *Server) {
		s.prefix = resolver
	}
}

// WithEndpoints overrides the stream and message URIs.
func WithEndpoints(sseURI, messageURI string) Option {
	return func(s *Server) {
		s.sseURI = sseURI
		s.messageURI = messageURI
	}
}

// WithAddr sets the default listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithLogger sets the operational logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSessionOptions passes options through to the session registry.
func WithSessionOptions(options ...session.Option) Option {
	return func(s *Server) {
		s.registryOptions = append(s.registryOptions, options...)
	}
}

// New creates a server over the given bridge.
func New(aBridge *bridge.Bridge, options ...Option) *Server {
	ret := &Server{
		bridge:     aBridge,
		info:       schema.Implementation{Name: "mcp-relay", Version: "0.1"},
		prefix:     ForwardedPrefix,
		sseURI:     "/sse",
		messageURI: "/message",
		logger:     log.Default(),
	}
	for _, option := range options {
		option(ret)
	}
	ret.registry = session.NewRegistry(ret.newHandler, ret.registryOptions...)
	return ret
}

func (s *Server) newHandler(aSession *session.Session) transport.Handler {
	return &Handler{
		bridge:       s.bridge,
		info:         s.info,
		instructions: s.instructions,
		logger:       s.logger,
	}
}

// Registry exposes the session registry.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Shutdown closes all sessions and drains in-flight work.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.registry.Shutdown(ctx)
}
