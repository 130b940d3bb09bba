package middleware_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/middleware"
	"github.com/meszmate/ews-go/transport"
)

type trackedBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackedBody) Close() error {
	b.closed.Store(true)
	return nil
}

func reply(status int, body string) transport.Transport {
	return transport.Func(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		return &transport.Response{
			StatusCode: status,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	})
}

func fail(err error) transport.Transport {
	return transport.Func(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		return nil, err
	})
}

// --- Chain ---

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) middleware.Middleware {
		return func(next transport.Transport) transport.Transport {
			return transport.Func(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
				order = append(order, name+" before")
				resp, err := next.Send(ctx, req)
				order = append(order, name+" after")
				return resp, err
			})
		}
	}

	tr := middleware.Apply(reply(200, ""), mark("outer"), nil, mark("inner"))
	_, err := tr.Send(context.Background(), &transport.Request{Action: "GetItem"})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer before", "inner before", "inner after", "outer after"}, order)
}

func TestChain_Empty(t *testing.T) {
	tr := middleware.Chain()(reply(204, ""))
	resp, err := tr.Send(context.Background(), &transport.Request{})
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
}

// --- Logging ---

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	tr := middleware.Logging(logger)(reply(200, "<ok/>"))
	_, err := tr.Send(context.Background(), &transport.Request{Action: "GetItem", Body: []byte("<x/>")})
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "request start", entries[0].Message)
	assert.Equal(t, "GetItem", entries[0].ContextMap()["action"])
	assert.Equal(t, int64(4), entries[0].ContextMap()["size"])
	assert.Equal(t, "request done", entries[1].Message)
	assert.Equal(t, int64(200), entries[1].ContextMap()["status"])
}

func TestLogging_Error(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	tr := middleware.Logging(zap.New(core))(fail(errors.New("refused")))
	_, err := tr.Send(context.Background(), &transport.Request{Action: "FindItem"})
	require.Error(t, err)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "request error", warnings[0].Message)
	assert.Equal(t, "refused", warnings[0].ContextMap()["error"])
}

func TestLogging_NilLogger(t *testing.T) {
	tr := middleware.Logging(nil)(reply(200, ""))
	_, err := tr.Send(context.Background(), &transport.Request{})
	assert.NoError(t, err)
}

// --- RequestID ---

func TestRequestID(t *testing.T) {
	var seen []string
	capture := transport.Func(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		seen = append(seen, req.Header.Get(middleware.HeaderClientRequestID))
		assert.Equal(t, "true", req.Header.Get(middleware.HeaderReturnClientRequestID))
		return reply(200, "").Send(ctx, req)
	})

	tr := middleware.RequestID()(capture)
	for i := 0; i < 2; i++ {
		_, err := tr.Send(context.Background(), &transport.Request{Action: "GetItem"})
		require.NoError(t, err)
	}
	require.Len(t, seen, 2)
	assert.Len(t, seen[0], 36)
	assert.NotEqual(t, seen[0], seen[1])

	req := &transport.Request{Header: http.Header{}}
	req.Header.Set(middleware.HeaderClientRequestID, "fixed")
	_, err := tr.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "fixed", seen[2])
}

// --- Recovery ---

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	panicking := transport.Func(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		panic("boom")
	})

	tr := middleware.Recovery(zap.New(core))(panicking)
	resp, err := tr.Send(context.Background(), &transport.Request{Action: "CreateItem"})
	assert.Nil(t, resp)

	var cerr *ews.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "CreateItem", cerr.Op)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, logs.Len())
}

func TestRecovery_NoPanic(t *testing.T) {
	tr := middleware.Recovery(nil)(reply(200, ""))
	resp, err := tr.Send(context.Background(), &transport.Request{})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

// --- Timeout ---

func TestTimeout_ContextCancelledOnClose(t *testing.T) {
	var reqCtx context.Context
	body := &trackedBody{Reader: strings.NewReader("<ok/>")}
	inner := transport.Func(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		reqCtx = ctx
		return &transport.Response{StatusCode: 200, Body: body}, nil
	})

	tr := middleware.Timeout(time.Minute)(inner)
	resp, err := tr.Send(context.Background(), &transport.Request{Action: "GetItem"})
	require.NoError(t, err)

	_, hasDeadline := reqCtx.Deadline()
	assert.True(t, hasDeadline)
	assert.NoError(t, reqCtx.Err(), "context stays live while the body is open")

	require.NoError(t, resp.Body.Close())
	assert.True(t, body.closed.Load())
	assert.ErrorIs(t, reqCtx.Err(), context.Canceled)
	assert.NoError(t, resp.Body.Close())
}

func TestTimeout_Expires(t *testing.T) {
	inner := transport.Func(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	tr := middleware.Timeout(20 * time.Millisecond)(inner)
	_, err := tr.Send(context.Background(), &transport.Request{Action: "FindItem"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimeout_SkipsStreams(t *testing.T) {
	inner := transport.Func(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		_, hasDeadline := ctx.Deadline()
		assert.False(t, hasDeadline)
		return reply(200, "").Send(ctx, req)
	})

	tr := middleware.Timeout(time.Millisecond)(inner)
	_, err := tr.Send(context.Background(), &transport.Request{Action: "GetStreamingEvents", Stream: true})
	assert.NoError(t, err)
}

// --- RateLimit ---

func TestRateLimit_AllowsBurst(t *testing.T) {
	tr := middleware.RateLimit(middleware.RateLimitConfig{
		MaxRequestsPerSecond: 1,
		BurstSize:            3,
	})(reply(200, ""))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := tr.Send(context.Background(), &transport.Request{})
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRateLimit_WaitsForToken(t *testing.T) {
	tr := middleware.RateLimit(middleware.RateLimitConfig{
		MaxRequestsPerSecond: 20,
		BurstSize:            1,
	})(reply(200, ""))

	_, err := tr.Send(context.Background(), &transport.Request{})
	require.NoError(t, err)

	start := time.Now()
	_, err = tr.Send(context.Background(), &transport.Request{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRateLimit_ContextDone(t *testing.T) {
	tr := middleware.RateLimit(middleware.RateLimitConfig{
		MaxRequestsPerSecond: 0.001,
		BurstSize:            1,
	})(reply(200, ""))

	_, err := tr.Send(context.Background(), &transport.Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Send(ctx, &transport.Request{Action: "GetItem"})

	var cerr *ews.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "GetItem", cerr.Op)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimit_DeadlineTooShort(t *testing.T) {
	tr := middleware.RateLimit(middleware.RateLimitConfig{
		MaxRequestsPerSecond: 0.001,
		BurstSize:            1,
	})(reply(200, ""))

	_, err := tr.Send(context.Background(), &transport.Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	_, err = tr.Send(ctx, &transport.Request{Action: "GetItem"})

	var cerr *ews.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRateLimit_SkipsStreams(t *testing.T) {
	tr := middleware.RateLimit(middleware.RateLimitConfig{
		MaxRequestsPerSecond: 0.001,
		BurstSize:            1,
	})(reply(200, ""))

	for i := 0; i < 3; i++ {
		_, err := tr.Send(context.Background(), &transport.Request{Stream: true})
		require.NoError(t, err)
	}
}
