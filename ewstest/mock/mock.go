// Package mock provides mock implementations for testing.
package mock

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/transport"
)

// Transport is a mock implementation of transport.Transport.
// Sent requests are recorded in Calls.
type Transport struct {
	SendFunc func(ctx context.Context, req *transport.Request) (*transport.Response, error)

	mu    sync.Mutex
	calls []*transport.Request
}

// Ensure Transport implements transport.Transport.
var _ transport.Transport = (*Transport)(nil)

func (t *Transport) Send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	t.mu.Lock()
	t.calls = append(t.calls, req)
	t.mu.Unlock()
	if t.SendFunc != nil {
		return t.SendFunc(ctx, req)
	}
	return nil, &ews.ConnectionError{Op: req.Action, Err: errors.New("send not implemented")}
}

// Calls returns the requests sent so far.
func (t *Transport) Calls() []*transport.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*transport.Request(nil), t.calls...)
}

// XMLResponse returns a 200 response carrying body.
func XMLResponse(body string) *transport.Response {
	return &transport.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{transport.ContentType}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// PipeResponse returns a 200 response whose body is fed through the
// returned writer. Closing the writer ends the body.
func PipeResponse() (*transport.Response, *io.PipeWriter) {
	pr, pw := io.Pipe()
	return &transport.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{transport.ContentType}},
		Body:       pr,
	}, pw
}

// Service is a mock stream opener with the method set of the streaming
// service.
type Service struct {
	OpenStreamFunc          func(ctx context.Context, ids []string, timeoutMinutes int) (*transport.Response, error)
	RecordServerVersionFunc func(info *ews.ServerVersionInfo)
}

func (s *Service) OpenStream(ctx context.Context, ids []string, timeoutMinutes int) (*transport.Response, error) {
	if s.OpenStreamFunc != nil {
		return s.OpenStreamFunc(ctx, ids, timeoutMinutes)
	}
	return nil, &ews.ConnectionError{Op: "GetStreamingEvents", Err: errors.New("open stream not implemented")}
}

func (s *Service) RecordServerVersion(info *ews.ServerVersionInfo) {
	if s.RecordServerVersionFunc != nil {
		s.RecordServerVersionFunc(info)
	}
}
