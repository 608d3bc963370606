package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/viant/jsonrpc/transport"
	"github.com/viant/jsonrpc/transport/client/http/sse"
	"github.com/viant/jsonrpc/transport/client/http/streamable"
)

// Flavor selects the upstream transport: a long-lived SSE push stream with a
// companion message endpoint, or streamable HTTP.
type Flavor string

const (
	// FlavorAuto detects the flavor from the endpoint URL, trying SSE first
	// when the URL is ambiguous.
	FlavorAuto       Flavor = ""
	FlavorSSE        Flavor = "sse"
	FlavorStreamable Flavor = "streamable"
)

type dialer struct {
	url    string
	flavor Flavor
	client *http.Client
}

// DialOption configures the upstream dialer.
type DialOption func(d *dialer)

// WithFlavor pins the transport flavor instead of URL detection.
func WithFlavor(flavor Flavor) DialOption {
	return func(d *dialer) {
		d.flavor = flavor
	}
}

// WithHTTPClient sets the HTTP client used by both transport flavors.
func WithHTTPClient(client *http.Client) DialOption {
	return func(d *dialer) {
		d.client = client
	}
}

// WithAuthorizationHeader injects a static Authorization header on every
// upstream request. Token acquisition itself happens outside the relay.
func WithAuthorizationHeader(value string) DialOption {
	return func(d *dialer) {
		base := http.RoundTripper(http.DefaultTransport)
		if d.client != nil && d.client.Transport != nil {
			base = d.client.Transport
		}
		d.client = &http.Client{Transport: &headerRoundTripper{base: base, header: "Authorization", value: value}}
	}
}

type headerRoundTripper struct {
	base   http.RoundTripper
	header string
	value  string
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set(h.header, h.value)
	return h.base.RoundTrip(clone)
}

// NewDialer builds a DialFunc for the endpoint URL. With FlavorAuto the
// flavor is detected from the URL path; an ambiguous URL dials SSE first and
// falls back to streamable HTTP.
func NewDialer(endpointURL string, options ...DialOption) DialFunc {
	d := &dialer{url: endpointURL}
	for _, option := range options {
		option(d)
	}
	if d.flavor == FlavorAuto {
		d.flavor = detectFlavor(endpointURL)
	}
	return d.dial
}

func detectFlavor(endpoint string) Flavor {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return FlavorAuto
	}
	path := strings.ToLower(parsed.Path)
	switch {
	case strings.Contains(path, "sse"):
		return FlavorSSE
	case strings.HasSuffix(path, "/mcp") || strings.Contains(path, "stream"):
		return FlavorStreamable
	}
	return FlavorAuto
}

func (d *dialer) dial(ctx context.Context) (transport.Transport, error) {
	switch d.flavor {
	case FlavorSSE:
		return d.dialSSE(ctx)
	case FlavorStreamable:
		return d.dialStreamable(ctx)
	}
	t, err := d.dialSSE(ctx)
	if err == nil {
		return t, nil
	}
	return d.dialStreamable(ctx)
}

func (d *dialer) dialSSE(ctx context.Context) (transport.Transport, error) {
	var options []sse.Option
	if d.client != nil {
		options = append(options, sse.WithHttpClient(d.client), sse.WithMessageHttpClient(d.client))
	}
	return sse.New(ctx, d.url, options...)
}

func (d *dialer) dialStreamable(ctx context.Context) (transport.Transport, error) {
	var options []streamable.Option
	if d.client != nil {
		options = append(options, streamable.WithHTTPClient(d.client))
	}
	return streamable.New(ctx, d.url, options...)
}
