package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/meszmate/ews-go/transport"
)

// Logging returns a middleware that logs every request.
func Logging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next transport.Transport) transport.Transport {
		return transport.Func(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			start := time.Now()

			logger.Debug("request start",
				zap.String("action", req.Action),
				zap.Int("size", len(req.Body)),
				zap.Bool("stream", req.Stream),
			)

			resp, err := next.Send(ctx, req)
			duration := time.Since(start)

			if err != nil {
				logger.Warn("request error",
					zap.String("action", req.Action),
					zap.Duration("duration", duration),
					zap.Error(err),
				)
				return nil, err
			}

			logger.Debug("request done",
				zap.String("action", req.Action),
				zap.Int("status", resp.StatusCode),
				zap.Duration("duration", duration),
			)
			return resp, nil
		})
	}
}
