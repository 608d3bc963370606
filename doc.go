// Package relay multiplexes many short-lived downstream MCP sessions over a
// single resilient upstream connection per product. Downstream clients talk
// SSE and see a fixed search/fetch tool surface; upstream calls are mapped
// per product by a pluggable delegate.
package relay
