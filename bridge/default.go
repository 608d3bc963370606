package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/viant/mcp-protocol/schema"
)

// DelegateConfig shapes the default delegate from configuration alone:
// upstream tool names, argument keys and the result field layout.
type DelegateConfig struct {
	SearchTool string `yaml:"searchTool" json:"searchTool,omitempty"`
	FetchTool  string `yaml:"fetchTool" json:"fetchTool,omitempty"`
	QueryKey   string `yaml:"queryKey" json:"queryKey,omitempty"`
	IDKey      string `yaml:"idKey" json:"idKey,omitempty"`
	ResultsKey string `yaml:"resultsKey" json:"resultsKey,omitempty"`
}

func (c *DelegateConfig) init() {
	if c.SearchTool == "" {
		c.SearchTool = "search"
	}
	if c.FetchTool == "" {
		c.FetchTool = "fetch"
	}
	if c.QueryKey == "" {
		c.QueryKey = "query"
	}
	if c.IDKey == "" {
		c.IDKey = "id"
	}
	if c.ResultsKey == "" {
		c.ResultsKey = "results"
	}
}

type defaultDelegate struct {
	config DelegateConfig
}

// NewDefaultDelegate returns a config-driven delegate with a tolerant
// structural mapping over raw upstream payloads.
func NewDefaultDelegate(config DelegateConfig) Delegate {
	config.init()
	return &defaultDelegate{config: config}
}

func (d *defaultDelegate) SearchTool() string {
	return d.config.SearchTool
}

func (d *defaultDelegate) FetchTool() string {
	return d.config.FetchTool
}

func (d *defaultDelegate) BuildSearchArguments(query string) (map[string]interface{}, error) {
	return map[string]interface{}{d.config.QueryKey: query}, nil
}

func (d *defaultDelegate) BuildFetchArguments(id string) (map[string]interface{}, error) {
	return map[string]interface{}{d.config.IDKey: id}, nil
}

func (d *defaultDelegate) MapSearchResult(raw *schema.CallToolResult) ([]SearchHit, error) {
	values, items, err := decodeResult(raw)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = values.Slice(d.config.ResultsKey)
	}
	var hits []SearchHit
	for _, item := range items {
		entry := AsValues(item)
		if entry == nil {
			continue
		}
		hits = append(hits, SearchHit{
			ID:    entry.String("id"),
			Title: entry.String("title"),
			URL:   entry.String("url"),
		})
	}
	return hits, nil
}

func (d *defaultDelegate) MapFetchResult(raw *schema.CallToolResult) (*Document, error) {
	values, _, err := decodeResult(raw)
	if err != nil {
		return nil, err
	}
	if values == nil {
		return nil, fmt.Errorf("fetch result has no object payload")
	}
	doc := &Document{
		ID:       values.String("id"),
		Title:    values.String("title"),
		Text:     values.String("text"),
		URL:      values.String("url"),
		Metadata: values.Map("metadata"),
	}
	if doc.Text == "" {
		doc.Text = values.String("content")
	}
	return doc, nil
}

// decodeResult extracts the structured payload of a tool result: structured
// content when present, otherwise the first text element parsed as JSON.
// A bare text payload that is not JSON comes back under a "text" key.
func decodeResult(raw *schema.CallToolResult) (Values, []interface{}, error) {
	if raw == nil {
		return nil, nil, fmt.Errorf("tool result was nil")
	}
	if len(raw.StructuredContent) > 0 {
		return Values(raw.StructuredContent), nil, nil
	}
	for _, elem := range raw.Content {
		text := strings.TrimSpace(elem.Text)
		if text == "" {
			continue
		}
		switch text[0] {
		case '{':
			var object map[string]interface{}
			if err := json.Unmarshal([]byte(text), &object); err != nil {
				return nil, nil, fmt.Errorf("failed to parse result text: %w", err)
			}
			return Values(object), nil, nil
		case '[':
			var items []interface{}
			if err := json.Unmarshal([]byte(text), &items); err != nil {
				return nil, nil, fmt.Errorf("failed to parse result text: %w", err)
			}
			return nil, items, nil
		default:
			return Values{"text": text}, nil, nil
		}
	}
	return Values{}, nil, nil
}
