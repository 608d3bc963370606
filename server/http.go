package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-relay/session"
)

// HTTP creates an HTTP server exposing the stream, message and health
// endpoints.
func (s *Server) HTTP(_ context.Context, addr string) *http.Server {
	if addr == "" {
		addr = s.addr
	}
	if addr == "" {
		addr = "127.0.0.1:5000"
	}
	return &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
}

// Handler returns the HTTP handler with all endpoints mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.sseURI, s.handleStream)
	mux.HandleFunc(s.messageURI, s.handleMessage)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// handleStream opens a session: it announces the message endpoint, then holds
// the stream open pushing responses and keep-alives until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	conduit := newStreamConduit(w, flusher)
	defer conduit.close()
	aSession := s.registry.Open(conduit, r.RemoteAddr, s.prefix(r))
	defer s.registry.Close(aSession.ID)

	endpoint := fmt.Sprintf("%s%s?sessionId=%s", aSession.Prefix, s.messageURI, aSession.ID)
	if err := conduit.event("endpoint", endpoint); err != nil {
		return
	}
	select {
	case <-r.Context().Done():
	case <-aSession.Done():
	}
}

// handleMessage accepts one JSON-RPC message addressed to a session. The
// message is acknowledged with 202; the result arrives on the session stream.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("sessionId")
	if id == "" {
		id = r.URL.Query().Get("session_id")
	}
	if id == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	request := &jsonrpc.Request{}
	if err := json.Unmarshal(data, request); err != nil {
		http.Error(w, "invalid JSON-RPC payload", http.StatusBadRequest)
		return
	}
	if request.Id == nil {
		err = s.registry.Notify(r.Context(), id, &jsonrpc.Notification{
			Method: request.Method,
			Params: request.Params,
		})
	} else {
		err = s.registry.Route(r.Context(), id, request)
	}
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
