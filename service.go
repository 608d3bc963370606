package relay

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/viant/mcp-relay/bridge"
	"github.com/viant/mcp-relay/server"
	"github.com/viant/mcp-relay/session"
	"github.com/viant/mcp-relay/upstream"
)

// Service wires every configured product: upstream manager, bridge and
// downstream server, mounted together on one HTTP handler.
type Service struct {
	config    *Config
	logger    *log.Logger
	delegates map[string]bridge.Delegate
	products  []*product
}

type product struct {
	name    string
	manager *upstream.Manager
	server  *server.Server
}

// ServiceOption configures a Service.
type ServiceOption func(s *Service)

// WithDelegate overrides the config-driven delegate for a named product.
func WithDelegate(name string, delegate bridge.Delegate) ServiceOption {
	return func(s *Service) {
		s.delegates[name] = delegate
	}
}

// WithServiceLogger sets the operational logger.
func WithServiceLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a relay service from configuration.
func New(ctx context.Context, config *Config, options ...ServiceOption) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ret := &Service{
		config:    config,
		logger:    log.Default(),
		delegates: map[string]bridge.Delegate{},
	}
	for _, option := range options {
		option(ret)
	}
	for i := range config.Products {
		ret.products = append(ret.products, ret.newProduct(&config.Products[i]))
	}
	return ret, nil
}

func (s *Service) newProduct(cfg *Product) *product {
	var dialOptions []upstream.DialOption
	switch cfg.Upstream.Transport {
	case "sse":
		dialOptions = append(dialOptions, upstream.WithFlavor(upstream.FlavorSSE))
	case "streamable":
		dialOptions = append(dialOptions, upstream.WithFlavor(upstream.FlavorStreamable))
	}
	if cfg.Upstream.Authorization != "" {
		dialOptions = append(dialOptions, upstream.WithAuthorizationHeader(cfg.Upstream.Authorization))
	}
	dial := upstream.NewDialer(cfg.Upstream.URL, dialOptions...)

	connectionOptions := []upstream.Option{upstream.WithLogger(s.logger)}
	if cfg.Upstream.HeartbeatInterval > 0 {
		threshold := cfg.Upstream.HeartbeatThreshold
		if threshold <= 0 {
			threshold = 2
		}
		connectionOptions = append(connectionOptions,
			upstream.WithHeartbeat(time.Duration(cfg.Upstream.HeartbeatInterval), threshold))
	}
	newConnection := func() *upstream.Connection {
		return upstream.NewConnection(dial, connectionOptions...)
	}
	managerOptions := []upstream.ManagerOption{upstream.WithManagerLogger(s.logger)}
	if cfg.Upstream.IdleGrace > 0 {
		managerOptions = append(managerOptions, upstream.WithIdleGrace(time.Duration(cfg.Upstream.IdleGrace)))
	}
	manager := upstream.NewManager(newConnection, managerOptions...)

	delegate, ok := s.delegates[cfg.Name]
	if !ok {
		delegate = bridge.NewDefaultDelegate(cfg.Delegate)
	}
	aBridge := bridge.New(manager, delegate, bridge.WithBridgeLogger(s.logger))

	name := cfg.Name
	resolver := func(r *http.Request) string {
		prefix := server.ForwardedPrefix(r)
		if name != "" {
			prefix += "/" + name
		}
		return prefix
	}
	srv := server.New(aBridge,
		server.WithImplementation("mcp-relay", "0.1"),
		server.WithLogger(s.logger),
		server.WithPrefixResolver(resolver),
		server.WithSessionOptions(session.WithLifecycle(manager), session.WithLogger(s.logger)),
	)
	return &product{name: name, manager: manager, server: srv}
}

// Handler mounts every product. A named product lives under /<name>/; a
// single unnamed product is mounted at the root.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, p := range s.products {
		if p.name == "" {
			return p.server.Handler()
		}
		mux.Handle("/"+p.name+"/", http.StripPrefix("/"+p.name, p.server.Handler()))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// HTTP creates the HTTP server for all products.
func (s *Service) HTTP(_ context.Context, addr string) *http.Server {
	if addr == "" {
		addr = s.config.Addr
	}
	if addr == "" {
		addr = "127.0.0.1:5000"
	}
	return &http.Server{Addr: addr, Handler: s.Handler()}
}

// Shutdown drains every product's sessions and releases upstream connections.
func (s *Service) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, p := range s.products {
		if err := p.server.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := p.manager.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
