// Package ewstest provides an in-process fake service for client and
// streaming tests.
package ewstest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/meszmate/ews-go/client"
	"github.com/meszmate/ews-go/soap"
	"github.com/meszmate/ews-go/wire"
)

// Request is a request received by the server.
type Request struct {
	// Action is the local name of the request element, e.g. "GetItem".
	Action string
	// Body is the raw envelope.
	Body string
	// HTTP is the underlying request. Its body has been consumed.
	HTTP *http.Request
}

// Handler answers one action.
type Handler func(w http.ResponseWriter, r *Request)

// Server is an httptest server answering envelopes by action.
type Server struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	requests []*Request
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		t:        t,
		handlers: make(map[string]Handler),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// URL returns the service endpoint.
func (s *Server) URL() string {
	return s.srv.URL + "/EWS/Exchange.asmx"
}

// Handle registers the handler of action, replacing any previous one.
func (s *Server) Handle(action string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[action] = h
}

// Reply registers a handler that always answers action with body.
func (s *Server) Reply(action, body string) {
	s.Handle(action, func(w http.ResponseWriter, r *Request) {
		WriteXML(w, http.StatusOK, body)
	})
}

// Requests returns the requests received so far.
func (s *Server) Requests() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Request(nil), s.requests...)
}

// Client creates a client talking to the server.
func (s *Server) Client(opts ...client.Option) *client.Client {
	s.t.Helper()

	base := []client.Option{
		client.WithEndpoint(s.URL()),
		client.WithHTTPClient(s.srv.Client()),
	}
	c, err := client.New(append(base, opts...)...)
	if err != nil {
		s.t.Fatalf("client: %v", err)
	}
	return c
}

// Close shuts down the server. Open streams are cut.
func (s *Server) Close() {
	s.srv.CloseClientConnections()
	s.srv.Close()
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	env, err := soap.ReadEnvelope(wire.NewDecoder(bytes.NewReader(data)))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := &Request{Action: env.Payload.Name.Local, Body: string(data), HTTP: r}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	h, ok := s.handlers[req.Action]
	s.mu.Unlock()

	if !ok {
		WriteXML(w, http.StatusInternalServerError, Fault("ErrorInvalidRequest", fmt.Sprintf("no handler for %s", req.Action)))
		return
	}
	h(w, req)
}

// WriteXML writes an XML response.
func WriteXML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
