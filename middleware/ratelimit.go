package middleware

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/transport"
)

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	// MaxRequestsPerSecond is the sustained request rate.
	MaxRequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// RateLimit returns a middleware that throttles outgoing requests with a
// token bucket. A request that finds the bucket empty waits for a token
// until its context is done. Streaming requests are not throttled.
func RateLimit(config RateLimitConfig) Middleware {
	if config.MaxRequestsPerSecond <= 0 {
		config.MaxRequestsPerSecond = 100
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 10
	}
	limiter := rate.NewLimiter(rate.Limit(config.MaxRequestsPerSecond), config.BurstSize)

	return func(next transport.Transport) transport.Transport {
		return transport.Func(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if req.Stream {
				return next.Send(ctx, req)
			}
			if err := limiter.Wait(ctx); err != nil {
				return nil, &ews.ConnectionError{Op: req.Action, Err: errors.Wrap(err, "rate limit")}
			}
			return next.Send(ctx, req)
		})
	}
}
