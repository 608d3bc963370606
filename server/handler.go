package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	"github.com/viant/mcp-relay/bridge"
)

const (
	searchToolName = "search"
	fetchToolName  = "fetch"
)

// Handler serves one session's JSON-RPC messages. The tool surface is fixed:
// every downstream client sees exactly search and fetch.
type Handler struct {
	bridge       *bridge.Bridge
	info         schema.Implementation
	instructions string
	logger       *log.Logger
}

// Serve handles incoming JSON-RPC requests
func (h *Handler) Serve(ctx context.Context, request *jsonrpc.Request, response *jsonrpc.Response) {
	if jsonrpc.Version != request.Jsonrpc {
		response.Error = jsonrpc.NewInvalidRequest("invalid JSON-RPC version", nil)
		return
	}
	switch request.Method {
	case schema.MethodInitialize:
		h.setResponse(response, h.initialize(request))
	case schema.MethodPing:
		h.setResponse(response, &schema.PingResult{}, nil)
	case schema.MethodToolsList:
		h.setResponse(response, h.listTools(), nil)
	case schema.MethodToolsCall:
		h.setResponse(response, h.callTool(ctx, request))
	default:
		response.Error = jsonrpc.NewMethodNotFound(fmt.Sprintf("method: %v not found", request.Method), request.Params)
	}
}

// OnNotification handles incoming JSON-RPC notifications. The relay keeps no
// per-client notification state; notifications/initialized is accepted and
// dropped.
func (h *Handler) OnNotification(ctx context.Context, notification *jsonrpc.Notification) {
}

func (h *Handler) initialize(request *jsonrpc.Request) (*schema.InitializeResult, *jsonrpc.Error) {
	params := &schema.InitializeRequestParams{}
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, params); err != nil {
			return nil, jsonrpc.NewInvalidParamsError(err.Error(), request.Params)
		}
	}
	result := &schema.InitializeResult{
		ProtocolVersion: schema.LatestProtocolVersion,
		ServerInfo:      h.info,
		Capabilities: schema.ServerCapabilities{
			Tools: &schema.ServerCapabilitiesTools{},
		},
	}
	if h.instructions != "" {
		result.Instructions = &h.instructions
	}
	return result, nil
}

func (h *Handler) listTools() *schema.ListToolsResult {
	searchDescription := "Search for documents matching a query"
	fetchDescription := "Fetch the full contents of a document by id"
	return &schema.ListToolsResult{
		Tools: []schema.Tool{
			{
				Name:        searchToolName,
				Description: &searchDescription,
				InputSchema: schema.ToolInputSchema{
					Type: "object",
					Properties: schema.ToolInputSchemaProperties{
						"query": map[string]interface{}{
							"type":        "string",
							"description": "Search query",
						},
					},
					Required: []string{"query"},
				},
			},
			{
				Name:        fetchToolName,
				Description: &fetchDescription,
				InputSchema: schema.ToolInputSchema{
					Type: "object",
					Properties: schema.ToolInputSchemaProperties{
						"id": map[string]interface{}{
							"type":        "string",
							"description": "Document identifier from a search result",
						},
					},
					Required: []string{"id"},
				},
			},
		},
	}
}

func (h *Handler) callTool(ctx context.Context, request *jsonrpc.Request) (*schema.CallToolResult, *jsonrpc.Error) {
	params := &schema.CallToolRequestParams{}
	if err := json.Unmarshal(request.Params, params); err != nil {
		return nil, jsonrpc.NewInvalidParamsError(err.Error(), request.Params)
	}
	switch params.Name {
	case searchToolName:
		query, _ := params.Arguments["query"].(string)
		if query == "" {
			return nil, jsonrpc.NewInvalidParamsError("query was empty", request.Params)
		}
		result, err := h.bridge.Search(ctx, query)
		if err != nil {
			h.logger.Printf("[server] search failed: %v", err)
			return errorResult(err), nil
		}
		return toolResult(result)
	case fetchToolName:
		id, _ := params.Arguments["id"].(string)
		if id == "" {
			return nil, jsonrpc.NewInvalidParamsError("id was empty", request.Params)
		}
		document, err := h.bridge.Fetch(ctx, id)
		if err != nil {
			h.logger.Printf("[server] fetch failed: %v", err)
			return errorResult(err), nil
		}
		return toolResult(document)
	}
	return nil, jsonrpc.NewInvalidParamsError(fmt.Sprintf("unknown tool: %v", params.Name), request.Params)
}

// toolResult renders a normalized payload as both text and structured content.
func toolResult(payload interface{}) (*schema.CallToolResult, *jsonrpc.Error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, jsonrpc.NewInternalError(err.Error(), nil)
	}
	structured := map[string]interface{}{}
	if err := json.Unmarshal(data, &structured); err != nil {
		structured = nil
	}
	return &schema.CallToolResult{
		Content: []schema.CallToolResultContentElem{
			{Type: "text", Text: string(data)},
		},
		StructuredContent: structured,
	}, nil
}

func errorResult(err error) *schema.CallToolResult {
	isError := true
	return &schema.CallToolResult{
		Content: []schema.CallToolResultContentElem{
			{Type: "text", Text: err.Error()},
		},
		IsError: &isError,
	}
}

func (h *Handler) setResponse(response *jsonrpc.Response, result interface{}, rpcError *jsonrpc.Error) {
	if rpcError != nil {
		response.Error = rpcError
		return
	}
	var err error
	response.Result, err = json.Marshal(result)
	if err != nil {
		response.Error = jsonrpc.NewInternalError(err.Error(), []byte{})
	}
}
