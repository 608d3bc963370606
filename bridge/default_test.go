package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcp-protocol/schema"
)

func textResult(text string) *schema.CallToolResult {
	return &schema.CallToolResult{
		Content: []schema.CallToolResultContentElem{{Type: "text", Text: text}},
	}
}

func TestDefaultDelegate_Arguments(t *testing.T) {
	delegate := NewDefaultDelegate(DelegateConfig{})
	args, err := delegate.BuildSearchArguments("how to relay")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"query": "how to relay"}, args)

	args, err = delegate.BuildFetchArguments("doc-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"id": "doc-1"}, args)

	custom := NewDefaultDelegate(DelegateConfig{SearchTool: "kb_search", QueryKey: "q"})
	assert.Equal(t, "kb_search", custom.SearchTool())
	args, err = custom.BuildSearchArguments("x")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"q": "x"}, args)
}

func TestDefaultDelegate_MapSearchResult(t *testing.T) {
	delegate := NewDefaultDelegate(DelegateConfig{})
	testCases := []struct {
		description string
		raw         *schema.CallToolResult
		expect      []SearchHit
		expectErr   bool
	}{
		{
			description: "structured content",
			raw: &schema.CallToolResult{
				StructuredContent: map[string]interface{}{
					"results": []interface{}{
						map[string]interface{}{"id": "1", "title": "First", "url": "http://a"},
						map[string]interface{}{"id": 2, "title": "Second"},
					},
				},
			},
			expect: []SearchHit{
				{ID: "1", Title: "First", URL: "http://a"},
				{ID: "2", Title: "Second"},
			},
		},
		{
			description: "json object in text content",
			raw:         textResult(`{"results":[{"id":"9","title":"T","url":"u"}]}`),
			expect:      []SearchHit{{ID: "9", Title: "T", URL: "u"}},
		},
		{
			description: "bare json array in text content",
			raw:         textResult(`[{"id":"5","title":"A"}]`),
			expect:      []SearchHit{{ID: "5", Title: "A"}},
		},
		{
			description: "non-list entries are skipped",
			raw:         textResult(`{"results":["junk",{"id":"3"}]}`),
			expect:      []SearchHit{{ID: "3"}},
		},
		{
			description: "plain text yields no hits",
			raw:         textResult("nothing structured here"),
			expect:      nil,
		},
		{
			description: "malformed json errors",
			raw:         textResult(`{"results":`),
			expectErr:   true,
		},
		{
			description: "nil result errors",
			raw:         nil,
			expectErr:   true,
		},
	}
	for _, testCase := range testCases {
		hits, err := delegate.MapSearchResult(testCase.raw)
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expect, hits, testCase.description)
	}
}

func TestDefaultDelegate_MapFetchResult(t *testing.T) {
	delegate := NewDefaultDelegate(DelegateConfig{})
	testCases := []struct {
		description string
		raw         *schema.CallToolResult
		expect      *Document
	}{
		{
			description: "full document",
			raw: &schema.CallToolResult{
				StructuredContent: map[string]interface{}{
					"id":       "doc-1",
					"title":    "Title",
					"text":     "Body",
					"url":      "http://doc",
					"metadata": map[string]interface{}{"lang": "en"},
				},
			},
			expect: &Document{ID: "doc-1", Title: "Title", Text: "Body", URL: "http://doc", Metadata: Values{"lang": "en"}},
		},
		{
			description: "content key fallback",
			raw:         textResult(`{"id":"doc-2","content":"from content"}`),
			expect:      &Document{ID: "doc-2", Text: "from content"},
		},
		{
			description: "bare text becomes the body",
			raw:         textResult("just prose"),
			expect:      &Document{Text: "just prose"},
		},
	}
	for _, testCase := range testCases {
		document, err := delegate.MapFetchResult(testCase.raw)
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expect, document, testCase.description)
	}
}

func TestValues_Tolerance(t *testing.T) {
	values := Values{
		"s": "text",
		"f": float64(4.5),
		"i": 7,
		"b": true,
		"l": []interface{}{"a"},
		"m": map[string]interface{}{"k": "v"},
	}
	assert.Equal(t, "text", values.String("s"))
	assert.Equal(t, "4.5", values.String("f"))
	assert.Equal(t, "7", values.String("i"))
	assert.Equal(t, "true", values.String("b"))
	assert.Equal(t, "", values.String("missing"))
	assert.Equal(t, "", values.String("l"), "mismatched types read as zero")
	assert.Len(t, values.Slice("l"), 1)
	assert.Nil(t, values.Slice("s"))
	assert.Equal(t, "v", values.Map("m").String("k"))
	assert.Nil(t, values.Map("s"))

	var nilValues Values
	assert.Equal(t, "", nilValues.String("any"))
	assert.Nil(t, nilValues.Slice("any"))
	assert.Nil(t, nilValues.Map("any"))
}
