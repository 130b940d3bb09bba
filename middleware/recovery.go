package middleware

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/transport"
)

// Recovery returns a middleware that turns a panic in the wrapped transport
// into a *ews.ConnectionError.
func Recovery(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next transport.Transport) transport.Transport {
		return transport.Func(func(ctx context.Context, req *transport.Request) (resp *transport.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic in transport",
						zap.String("action", req.Action),
						zap.String("panic", fmt.Sprintf("%v", r)),
						zap.ByteString("stack", debug.Stack()),
					)
					resp = nil
					err = &ews.ConnectionError{Op: req.Action, Err: errors.Errorf("panic: %v", r)}
				}
			}()

			return next.Send(ctx, req)
		})
	}
}
