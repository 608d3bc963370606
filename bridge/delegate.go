// Package bridge maps the two fixed downstream operations, search and fetch,
// to upstream-specific tool calls through a pluggable per-product delegate.
package bridge

import (
	"github.com/viant/mcp-protocol/schema"
)

// SearchHit is one normalized search result entry.
type SearchHit struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SearchResult is the normalized search response.
type SearchResult struct {
	Results []SearchHit `json:"results"`
}

// Document is the normalized fetch response.
type Document struct {
	ID       string                 `json:"id"`
	Title    string                 `json:"title"`
	Text     string                 `json:"text"`
	URL      string                 `json:"url"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Delegate is a stateless per-product strategy converting between the fixed
// tool surface and upstream-specific names and payload shapes. Tool names are
// a declared capability, never probed at runtime.
type Delegate interface {
	// SearchTool returns the upstream tool name backing search.
	SearchTool() string

	// BuildSearchArguments builds upstream arguments for a query.
	BuildSearchArguments(query string) (map[string]interface{}, error)

	// MapSearchResult maps a raw upstream result to normalized hits.
	MapSearchResult(raw *schema.CallToolResult) ([]SearchHit, error)

	// FetchTool returns the upstream tool name backing fetch.
	FetchTool() string

	// BuildFetchArguments builds upstream arguments for a document id.
	BuildFetchArguments(id string) (map[string]interface{}, error)

	// MapFetchResult maps a raw upstream result to a normalized document.
	MapFetchResult(raw *schema.CallToolResult) (*Document, error)
}
