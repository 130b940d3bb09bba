package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/meszmate/ews-go/transport"
)

// Request id headers understood by the service.
const (
	HeaderClientRequestID       = "client-request-id"
	HeaderReturnClientRequestID = "return-client-request-id"
)

// RequestID returns a middleware that tags each request with a fresh
// client-request-id so it can be correlated with server logs. An id
// already present on the request is kept.
func RequestID() Middleware {
	return func(next transport.Transport) transport.Transport {
		return transport.Func(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if req.Header == nil {
				req.Header = make(http.Header)
			}
			if req.Header.Get(HeaderClientRequestID) == "" {
				req.Header.Set(HeaderClientRequestID, uuid.NewString())
			}
			req.Header.Set(HeaderReturnClientRequestID, "true")
			return next.Send(ctx, req)
		})
	}
}
