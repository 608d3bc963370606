package bridge

import (
	"context"
	"log"
	"sync"

	"github.com/viant/mcp-protocol/schema"
)

// Invoker executes tool calls against the upstream endpoint; implemented by
// upstream.Manager.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]interface{}) (*schema.CallToolResult, error)
	ListTools(ctx context.Context) (*schema.ListToolsResult, error)
}

// Bridge translates the fixed search/fetch surface into upstream tool calls.
// Delegate failures are contained: they degrade to empty or partial results
// and are logged, never surfaced as a crash. Invocation failures surface as
// tool-level errors.
type Bridge struct {
	invoker   Invoker
	delegate  Delegate
	logger    *log.Logger
	negotiate sync.Once
}

// BridgeOption configures a Bridge.
type BridgeOption func(b *Bridge)

// WithBridgeLogger sets the operational logger.
func WithBridgeLogger(logger *log.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// New creates a bridge over the given invoker and delegate.
func New(invoker Invoker, delegate Delegate, options ...BridgeOption) *Bridge {
	b := &Bridge{
		invoker:  invoker,
		delegate: delegate,
		logger:   log.Default(),
	}
	for _, option := range options {
		option(b)
	}
	return b
}

// Search executes the search operation for a query. A delegate mapping
// failure degrades to an empty result; only invocation failures return error.
func (b *Bridge) Search(ctx context.Context, query string) (*SearchResult, error) {
	result := &SearchResult{Results: []SearchHit{}}
	args, err := b.delegate.BuildSearchArguments(query)
	if err != nil {
		b.logger.Printf("[bridge] failed to build search arguments: %v", err)
		return result, nil
	}
	b.negotiateSchema(ctx)
	raw, err := b.invoker.Invoke(ctx, b.delegate.SearchTool(), args)
	if err != nil {
		return nil, err
	}
	hits, err := b.delegate.MapSearchResult(raw)
	if err != nil {
		b.logger.Printf("[bridge] failed to map search result: %v", err)
		return result, nil
	}
	if hits != nil {
		result.Results = hits
	}
	return result, nil
}

// Fetch executes the fetch operation for a document id. A delegate mapping
// failure degrades to a bare document; only invocation failures return error.
func (b *Bridge) Fetch(ctx context.Context, id string) (*Document, error) {
	args, err := b.delegate.BuildFetchArguments(id)
	if err != nil {
		b.logger.Printf("[bridge] failed to build fetch arguments: %v", err)
		return &Document{ID: id}, nil
	}
	b.negotiateSchema(ctx)
	raw, err := b.invoker.Invoke(ctx, b.delegate.FetchTool(), args)
	if err != nil {
		return nil, err
	}
	doc, err := b.delegate.MapFetchResult(raw)
	if err != nil || doc == nil {
		b.logger.Printf("[bridge] failed to map fetch result: %v", err)
		return &Document{ID: id}, nil
	}
	if doc.ID == "" {
		doc.ID = id
	}
	return doc, nil
}

// negotiateSchema checks the delegate's declared tool names against the
// upstream's listed tools once per bridge. A mismatch is diagnostic only;
// the delegate's declaration stays authoritative.
func (b *Bridge) negotiateSchema(ctx context.Context) {
	b.negotiate.Do(func() {
		listed, err := b.invoker.ListTools(ctx)
		if err != nil {
			b.logger.Printf("[bridge] failed to list upstream tools: %v", err)
			return
		}
		available := map[string]bool{}
		for _, tool := range listed.Tools {
			available[tool.Name] = true
		}
		for _, name := range []string{b.delegate.SearchTool(), b.delegate.FetchTool()} {
			if !available[name] {
				b.logger.Printf("[bridge] upstream does not declare tool %q", name)
			}
		}
	})
}
