package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	"github.com/viant/mcp-relay/bridge"
)

// sseStream is a test-side reader over one open event stream.
type sseStream struct {
	response *http.Response
	scanner  *bufio.Scanner
}

func openStream(t *testing.T, baseURL string) *sseStream {
	t.Helper()
	response, err := http.Get(baseURL + "/sse")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, response.StatusCode)
	require.Equal(t, "text/event-stream", response.Header.Get("Content-Type"))
	return &sseStream{response: response, scanner: bufio.NewScanner(response.Body)}
}

func (s *sseStream) close() {
	_ = s.response.Body.Close()
}

// next reads one event, skipping comment keep-alives.
func (s *sseStream) next(t *testing.T) (name, data string) {
	t.Helper()
	for s.scanner.Scan() {
		line := s.scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
	t.Fatal("stream ended before a full event arrived")
	return "", ""
}

func postMessage(t *testing.T, endpoint string, message interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(message)
	require.NoError(t, err)
	response, err := http.Post(endpoint, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	_ = response.Body.Close()
	return response
}

func newTestServer(invoker bridge.Invoker, options ...Option) *httptest.Server {
	aBridge := bridge.New(invoker, bridge.NewDefaultDelegate(bridge.DelegateConfig{}))
	return httptest.NewServer(New(aBridge, options...).Handler())
}

func TestServer_StreamAnnouncesEndpoint(t *testing.T) {
	httpServer := newTestServer(&fakeInvoker{})
	defer httpServer.Close()

	stream := openStream(t, httpServer.URL)
	defer stream.close()

	name, data := stream.next(t)
	assert.Equal(t, "endpoint", name)
	assert.True(t, strings.HasPrefix(data, "/message?sessionId="), "got %q", data)

	parsed, err := url.Parse(data)
	require.NoError(t, err)
	assert.NotEmpty(t, parsed.Query().Get("sessionId"))
}

func TestServer_SearchRoundTrip(t *testing.T) {
	invoker := &fakeInvoker{
		result: &schema.CallToolResult{
			StructuredContent: map[string]interface{}{
				"results": []interface{}{map[string]interface{}{"id": "42", "title": "Answer"}},
			},
		},
	}
	httpServer := newTestServer(invoker)
	defer httpServer.Close()

	stream := openStream(t, httpServer.URL)
	defer stream.close()
	_, endpoint := stream.next(t)

	response := postMessage(t, httpServer.URL+endpoint, &jsonrpc.Request{
		Jsonrpc: jsonrpc.Version,
		Method:  schema.MethodToolsCall,
		Id:      7,
		Params:  mustMarshal(t, &schema.CallToolRequestParams{Name: "search", Arguments: map[string]interface{}{"query": "meaning"}}),
	})
	assert.Equal(t, http.StatusAccepted, response.StatusCode)

	name, data := stream.next(t)
	require.Equal(t, "message", name)
	rpcResponse := &jsonrpc.Response{}
	require.NoError(t, json.Unmarshal([]byte(data), rpcResponse))
	require.Nil(t, rpcResponse.Error)
	assert.EqualValues(t, 7, rpcResponse.Id)

	toolResult := &schema.CallToolResult{}
	require.NoError(t, json.Unmarshal(rpcResponse.Result, toolResult))
	searchResult := &bridge.SearchResult{}
	require.NoError(t, json.Unmarshal([]byte(toolResult.Content[0].Text), searchResult))
	require.Len(t, searchResult.Results, 1)
	assert.Equal(t, "42", searchResult.Results[0].ID)
}

func TestServer_MessageUnknownSession(t *testing.T) {
	httpServer := newTestServer(&fakeInvoker{})
	defer httpServer.Close()

	response := postMessage(t, httpServer.URL+"/message?sessionId=missing", &jsonrpc.Request{
		Jsonrpc: jsonrpc.Version,
		Method:  schema.MethodPing,
		Id:      1,
	})
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestServer_MessageRequiresSessionId(t *testing.T) {
	httpServer := newTestServer(&fakeInvoker{})
	defer httpServer.Close()

	response := postMessage(t, httpServer.URL+"/message", &jsonrpc.Request{
		Jsonrpc: jsonrpc.Version,
		Method:  schema.MethodPing,
		Id:      1,
	})
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestServer_SessionClosesWithStream(t *testing.T) {
	aBridge := bridge.New(&fakeInvoker{}, bridge.NewDefaultDelegate(bridge.DelegateConfig{}))
	relayServer := New(aBridge)
	inner := httptest.NewServer(relayServer.Handler())
	defer inner.Close()

	stream := openStream(t, inner.URL)
	_, endpoint := stream.next(t)
	require.Equal(t, 1, relayServer.Registry().Count())
	stream.close()

	require.Eventually(t, func() bool {
		return relayServer.Registry().Count() == 0
	}, time.Second, 5*time.Millisecond)

	response := postMessage(t, inner.URL+endpoint, &jsonrpc.Request{
		Jsonrpc: jsonrpc.Version,
		Method:  schema.MethodPing,
		Id:      2,
	})
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestServer_PrefixedEndpoint(t *testing.T) {
	httpServer := newTestServer(&fakeInvoker{})
	defer httpServer.Close()

	request, err := http.NewRequest(http.MethodGet, httpServer.URL+"/sse", nil)
	require.NoError(t, err)
	request.Header.Set("X-Forwarded-Prefix", "/relay/")
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer func() { _ = response.Body.Close() }()

	stream := &sseStream{response: response, scanner: bufio.NewScanner(response.Body)}
	name, data := stream.next(t)
	assert.Equal(t, "endpoint", name)
	assert.True(t, strings.HasPrefix(data, "/relay/message?sessionId="), "got %q", data)
}

func TestServer_Shutdown_UnblocksOpenStreams(t *testing.T) {
	aBridge := bridge.New(&fakeInvoker{}, bridge.NewDefaultDelegate(bridge.DelegateConfig{}))
	relayServer := New(aBridge)
	httpServer := httptest.NewServer(relayServer.Handler())
	defer httpServer.Close()

	stream := openStream(t, httpServer.URL)
	defer stream.close()
	name, _ := stream.next(t)
	require.Equal(t, "endpoint", name)
	require.Equal(t, 1, relayServer.Registry().Count())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, relayServer.Shutdown(ctx), "shutdown must not wait on open streams")
	assert.Equal(t, 0, relayServer.Registry().Count())

	// Closing the session unblocks the stream handler, so the body reaches EOF.
	ended := make(chan struct{})
	go func() {
		for stream.scanner.Scan() {
		}
		close(ended)
	}()
	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("stream did not end after shutdown")
	}
}

func TestStreamConduit_ClosedRejectsWrites(t *testing.T) {
	recorder := httptest.NewRecorder()
	conduit := newStreamConduit(recorder, recorder)
	ctx := context.Background()

	require.NoError(t, conduit.Push(ctx, []byte(`{}`)))
	require.NoError(t, conduit.Pulse(ctx))

	before := recorder.Body.Len()
	conduit.close()
	assert.Error(t, conduit.Push(ctx, []byte(`{}`)))
	assert.Error(t, conduit.Pulse(ctx))
	assert.Equal(t, before, recorder.Body.Len(), "a closed conduit never touches the writer")
}

func TestServer_Healthz(t *testing.T) {
	httpServer := newTestServer(&fakeInvoker{})
	defer httpServer.Close()

	response, err := http.Get(httpServer.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = response.Body.Close() }()
	assert.Equal(t, http.StatusOK, response.StatusCode)
}

func mustMarshal(t *testing.T, value interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(value)
	require.NoError(t, err)
	return data
}
