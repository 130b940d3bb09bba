// Package transport sends request envelopes over HTTP. One-shot calls and
// streaming subscriptions use separate HTTP clients: the streaming client
// has no overall timeout, since its responses stay open for minutes.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"

	ews "github.com/meszmate/ews-go"
)

// ContentType is the media type of request and response envelopes.
const ContentType = "text/xml; charset=utf-8"

// Request is one outgoing call.
type Request struct {
	// Action names the operation, e.g. "GetItem". It is used in logs and
	// metrics.
	Action string
	// Body is the complete envelope.
	Body []byte
	// Header holds extra HTTP headers.
	Header http.Header
	// Stream selects the streaming HTTP client.
	Stream bool
}

// Response is the server's answer. The caller must close Body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Transport sends a request and returns the response without reading its
// body. Transports never retry.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Send calls f.
func (f Func) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// RequestModifier changes an HTTP request before it is sent.
type RequestModifier func(req *http.Request)

// SetHeader returns a modifier setting an HTTP header.
func SetHeader(key, value string) RequestModifier {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// NewHTTPClient returns an HTTP client with the given overall timeout. A
// zero timeout also disables the idle and response header timeouts, as
// needed by streaming responses.
func NewHTTPClient(timeout time.Duration, insecureSkipVerifyTLS bool) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: insecureSkipVerifyTLS},
	}

	if timeout == 0 {
		transport.IdleConnTimeout = 0
		transport.ResponseHeaderTimeout = 0
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	// Endpoint is the service URL.
	Endpoint string
	// Client sends one-shot calls. Defaults to NewHTTPClient(100s).
	Client *http.Client
	// StreamingClient sends streaming calls. Defaults to NewHTTPClient(0).
	StreamingClient *http.Client
	// Credentials decorate every request. Optional.
	Credentials Credentials
	// UserAgent is sent in the User-Agent header.
	UserAgent string
	// Modifiers run on every request after the credentials.
	Modifiers []RequestModifier
}

// HTTPTransport posts envelopes to a service endpoint.
type HTTPTransport struct {
	cfg HTTPConfig
}

// NewHTTPTransport creates a transport from cfg.
func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	if cfg.Client == nil {
		cfg.Client = NewHTTPClient(100*time.Second, false)
	}
	if cfg.StreamingClient == nil {
		cfg.StreamingClient = NewHTTPClient(0, false)
	}
	return &HTTPTransport{cfg: cfg}
}

// Endpoint returns the service URL.
func (t *HTTPTransport) Endpoint() string {
	return t.cfg.Endpoint
}

// Send implements Transport. Network failures are returned as
// *ews.ConnectionError; HTTP statuses are left to the caller.
func (t *HTTPTransport) Send(ctx context.Context, r *Request) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, bytes.NewReader(r.Body))
	if err != nil {
		return nil, &ews.ConnectionError{Op: r.Action, Err: errors.WithStack(err)}
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("Accept", "text/xml")
	if t.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", t.cfg.UserAgent)
	}
	if r.Stream {
		req.Header.Set("Keep-Alive", "300")
	}

	if t.cfg.Credentials != nil {
		if err := t.cfg.Credentials.Apply(req); err != nil {
			return nil, &ews.ConnectionError{Op: r.Action, Err: errors.Wrap(err, "credentials")}
		}
	}
	for _, mod := range t.cfg.Modifiers {
		if mod != nil {
			mod(req)
		}
	}

	client := t.cfg.Client
	if r.Stream {
		client = t.cfg.StreamingClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &ews.ConnectionError{Op: r.Action, Err: errors.WithStack(err)}
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}
