package middleware

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/meszmate/ews-go/transport"
)

// Timeout returns a middleware that bounds a one-shot request, including
// the reading of its response body, by d. Streaming requests are passed
// through untouched: their lifetime is bounded by the heartbeat instead.
func Timeout(d time.Duration) Middleware {
	return func(next transport.Transport) transport.Transport {
		return transport.Func(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if req.Stream || d <= 0 {
				return next.Send(ctx, req)
			}

			timeoutCtx, cancel := context.WithTimeout(ctx, d)
			resp, err := next.Send(timeoutCtx, req)
			if err != nil {
				cancel()
				return nil, err
			}
			resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		})
	}
}

// cancelBody releases the request context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.cancel)
	return err
}
