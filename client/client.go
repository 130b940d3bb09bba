// Package client implements the request driver and the operations of the
// mailbox web service.
//
// A call carries one or more targets (items to fetch, folders to delete)
// in a single envelope and the response is matched back to the targets by
// position. Every target is validated before anything is sent.
package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/middleware"
	"github.com/meszmate/ews-go/soap"
	"github.com/meszmate/ews-go/transport"
	"github.com/meszmate/ews-go/wire"
)

// Client is a service client. It is safe for concurrent use; the objects
// it returns are not.
type Client struct {
	options   *Options
	transport transport.Transport

	mu            sync.Mutex
	serverVersion *ews.ServerVersionInfo
}

// New creates a new Client.
func New(opts ...Option) (*Client, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if _, err := ews.ParseVersion(string(options.Version)); err != nil {
		return nil, errors.WithStack(err)
	}

	base := options.Transport
	if base == nil {
		if options.Endpoint == "" {
			return nil, errors.New("ews: endpoint is required")
		}
		hc := options.HTTPClient
		if hc == nil {
			hc = transport.NewHTTPClient(options.Timeout, options.InsecureSkipVerify)
		}
		sc := options.StreamingHTTPClient
		if sc == nil {
			sc = transport.NewHTTPClient(0, options.InsecureSkipVerify)
		}
		base = transport.NewHTTPTransport(transport.HTTPConfig{
			Endpoint:        options.Endpoint,
			Client:          hc,
			StreamingClient: sc,
			Credentials:     options.Credentials,
			UserAgent:       options.UserAgent,
		})
	}

	chain := []middleware.Middleware{
		middleware.Recovery(options.Logger),
		middleware.Logging(options.Logger),
	}
	if options.ClientRequestID {
		chain = append(chain, middleware.RequestID())
	}
	chain = append(chain, options.Middleware...)
	chain = append(chain, middleware.Timeout(options.Timeout))

	return &Client{
		options:   options,
		transport: middleware.Apply(base, chain...),
	}, nil
}

// Version returns the protocol version the client requests.
func (c *Client) Version() ews.Version {
	return c.options.Version
}

// Logger returns the client's logger.
func (c *Client) Logger() *zap.Logger {
	return c.options.Logger
}

// ServerVersion returns the version reported by the last response that
// carried one, or nil.
func (c *Client) ServerVersion() *ews.ServerVersionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.serverVersion == nil {
		return nil
	}
	info := *c.serverVersion
	return &info
}

// RecordServerVersion stores info as the server version. Nil is ignored.
func (c *Client) RecordServerVersion(info *ews.ServerVersionInfo) {
	if info == nil {
		return
	}
	c.mu.Lock()
	c.serverVersion = info
	c.mu.Unlock()
}

// Send writes an envelope around body, posts it and checks the status. On
// success the caller owns the returned body. A SOAP fault is returned as
// a *ews.RemoteOperationError; any other non-200 status or a non-XML
// response is a *ews.ConnectionError.
func (c *Client) Send(ctx context.Context, action string, stream bool, body soap.BodyWriter) (*transport.Response, error) {
	data, err := soap.Encode(soap.Header{
		Version:          c.options.Version,
		ImpersonatedUser: c.options.ImpersonatedUser,
		TimeZone:         c.options.TimeZone,
	}, body)
	if err != nil {
		return nil, err
	}
	if c.options.TraceEnabled {
		c.options.Logger.Debug("request envelope",
			zap.String("action", action),
			zap.ByteString("body", data),
		)
	}

	resp, err := c.transport.Send(ctx, &transport.Request{
		Action: action,
		Body:   data,
		Stream: stream,
	})
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "xml") {
			resp.Body.Close()
			return nil, &ews.ConnectionError{
				Op:         action,
				StatusCode: resp.StatusCode,
				Err:        errors.Errorf("unexpected content type %q", ct),
			}
		}
		return resp, nil
	case http.StatusInternalServerError:
		defer resp.Body.Close()
		if _, err := soap.ReadEnvelope(wire.NewDecoder(resp.Body)); err != nil {
			var remote *ews.RemoteOperationError
			if errors.As(err, &remote) {
				return nil, remote
			}
		}
	default:
		resp.Body.Close()
	}
	return nil, &ews.ConnectionError{
		Op:         action,
		StatusCode: resp.StatusCode,
		Err:        errors.Errorf("unexpected status %q", http.StatusText(resp.StatusCode)),
	}
}

// roundTrip sends a one-shot call and returns a decoder positioned before
// the response envelope.
func (c *Client) roundTrip(ctx context.Context, action string, body soap.BodyWriter) (*wire.Decoder, error) {
	resp, err := c.Send(ctx, action, false, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ews.ConnectionError{Op: action, StatusCode: resp.StatusCode, Err: errors.WithStack(err)}
	}
	if c.options.TraceEnabled {
		c.options.Logger.Debug("response envelope",
			zap.String("action", action),
			zap.ByteString("body", data),
		)
	}
	return wire.NewDecoder(bytes.NewReader(data)), nil
}
