package ewstest

import (
	"io"
	"net/http"
	"sync"
)

// Stream is a streaming response driven by the test. Register its Handler
// for GetStreamingEvents, then push envelopes with Send.
type Stream struct {
	envelopes chan string
	end       chan struct{}
	endOnce   sync.Once
	opened    chan struct{}
	openOnce  sync.Once
	gone      chan struct{}
	goneOnce  sync.Once
}

// NewStream creates a stream.
func NewStream() *Stream {
	return &Stream{
		envelopes: make(chan string),
		end:       make(chan struct{}),
		opened:    make(chan struct{}),
		gone:      make(chan struct{}),
	}
}

// Handler serves the stream. Only one request is served; the stream's
// handler returns when End is called or the client goes away.
func (s *Stream) Handler(w http.ResponseWriter, r *Request) {
	defer s.goneOnce.Do(func() { close(s.gone) })

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}
	s.openOnce.Do(func() { close(s.opened) })

	for {
		select {
		case env := <-s.envelopes:
			if _, err := io.WriteString(w, env); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-s.end:
			return
		case <-r.HTTP.Context().Done():
			return
		}
	}
}

// Opened is closed once the response headers were sent.
func (s *Stream) Opened() <-chan struct{} {
	return s.opened
}

// Gone is closed once the handler returned.
func (s *Stream) Gone() <-chan struct{} {
	return s.gone
}

// Send writes an envelope to the open response. It reports false if the
// handler is no longer serving.
func (s *Stream) Send(env string) bool {
	select {
	case s.envelopes <- env:
		return true
	case <-s.gone:
		return false
	}
}

// End ends the response without a closing envelope.
func (s *Stream) End() {
	s.endOnce.Do(func() { close(s.end) })
}
