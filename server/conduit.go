package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

var errStreamClosed = errors.New("stream is closed")

// streamConduit writes server-sent events to one client stream. Writes are
// serialized so responses and keep-alives never interleave mid-event; once
// closed, writes fail without touching the underlying ResponseWriter, which
// must not be used after its handler returns.
type streamConduit struct {
	mux     sync.Mutex
	writer  http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

func newStreamConduit(writer http.ResponseWriter, flusher http.Flusher) *streamConduit {
	return &streamConduit{writer: writer, flusher: flusher}
}

func (c *streamConduit) close() {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.closed = true
}

func (c *streamConduit) Push(_ context.Context, payload []byte) error {
	return c.event("message", string(payload))
}

func (c *streamConduit) Pulse(_ context.Context) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.closed {
		return errStreamClosed
	}
	if _, err := fmt.Fprint(c.writer, ": keep-alive\n\n"); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

func (c *streamConduit) event(name, data string) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.closed {
		return errStreamClosed
	}
	if _, err := fmt.Fprintf(c.writer, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}
