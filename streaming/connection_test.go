package streaming

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/client"
	"github.com/meszmate/ews-go/ewstest"
	"github.com/meszmate/ews-go/ewstest/mock"
	"github.com/meszmate/ews-go/transport"
)

const waitTimeout = 5 * time.Second

// pipeService opens one pipe-backed stream per call.
type pipeService struct {
	mock.Service
	opens   atomic.Int32
	writers chan *io.PipeWriter
}

func newPipeService() *pipeService {
	s := &pipeService{writers: make(chan *io.PipeWriter, 4)}
	s.OpenStreamFunc = func(ctx context.Context, ids []string, timeoutMinutes int) (*transport.Response, error) {
		s.opens.Add(1)
		resp, pw := mock.PipeResponse()
		s.writers <- pw
		return resp, nil
	}
	return s
}

func (s *pipeService) writer(t *testing.T) *io.PipeWriter {
	t.Helper()
	select {
	case pw := <-s.writers:
		return pw
	case <-time.After(waitTimeout):
		t.Fatal("stream was not opened")
		return nil
	}
}

func write(t *testing.T, pw *io.PipeWriter, env string) {
	t.Helper()
	_, err := io.WriteString(pw, env)
	require.NoError(t, err)
}

func waitEvent(t *testing.T, ch <-chan DisconnectEvent) DisconnectEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("no disconnect event")
		return DisconnectEvent{}
	}
}

func waitDone(t *testing.T, c *Connection) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(waitTimeout):
		t.Fatal("worker did not exit")
	}
}

func newConnection(t *testing.T, svc Service, opts ...Option) (*Connection, chan DisconnectEvent) {
	t.Helper()
	events := make(chan DisconnectEvent, 4)
	base := []Option{
		WithLogger(zaptest.NewLogger(t)),
		WithDisconnectHandler(func(ev DisconnectEvent) { events <- ev }),
	}
	c, err := New(svc, []string{"s1", "s2"}, append(base, opts...)...)
	require.NoError(t, err)
	return c, events
}

// --- Construction ---

func TestNewValidation(t *testing.T) {
	svc := &mock.Service{}
	tests := []struct {
		name string
		ids  []string
		opts []Option
	}{
		{"zero heartbeat", []string{"s1"}, []Option{WithHeartbeat(0)}},
		{"timeout too long", []string{"s1"}, []Option{WithConnectionTimeout(31)}},
		{"timeout too short", []string{"s1"}, []Option{WithConnectionTimeout(0)}},
		{"empty id", []string{""}, nil},
		{"duplicate id", []string{"s1", "s1"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(svc, tt.ids, tt.opts...)
			var verr *ews.ValidationError
			require.True(t, errors.As(err, &verr))
		})
	}
}

func TestDefaults(t *testing.T) {
	c, err := New(&mock.Service{}, []string{"s1"})
	require.NoError(t, err)
	assert.Equal(t, ews.DefaultHeartbeat, c.options.Heartbeat)
	assert.Equal(t, client.DefaultStreamingTimeout, c.options.ConnectionTimeout)
	assert.Equal(t, ews.ConnStateDisconnected, c.State())
	assert.False(t, c.IsConnected())
	assert.NotEmpty(t, c.ID())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done must be closed before Connect")
	}
}

func TestConnectWithoutSubscriptions(t *testing.T) {
	c, err := New(&mock.Service{}, nil)
	require.NoError(t, err)
	err = c.Connect(context.Background())
	var verr *ews.ValidationError
	require.True(t, errors.As(err, &verr))
}

// --- Lifecycle ---

func TestConnectAndUserDisconnect(t *testing.T) {
	svc := newPipeService()
	notifications := make(chan *client.Notification, 4)
	c, events := newConnection(t, svc, WithNotificationHandler(func(n *client.Notification) {
		notifications <- n
	}))

	var second atomic.Int32
	c.OnDisconnect(func(ev DisconnectEvent) { second.Add(1) })

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())
	pw := svc.writer(t)

	err := c.Connect(context.Background())
	var ierr *ews.InvalidOperationError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, int32(1), svc.opens.Load())

	write(t, pw, ewstest.NewMail("s1", "m1"))
	select {
	case n := <-notifications:
		assert.Equal(t, "s1", n.SubscriptionID)
		require.Len(t, n.Events, 1)
		assert.Equal(t, "m1", n.Events[0].ItemID.ID)
	case <-time.After(waitTimeout):
		t.Fatal("no notification")
	}

	c.Disconnect()
	assert.False(t, c.IsConnected())
	ev := waitEvent(t, events)
	assert.Equal(t, ews.DisconnectUserInitiated, ev.Reason)
	assert.NoError(t, ev.Err)
	waitDone(t, c)

	c.Disconnect()
	assert.Equal(t, int32(1), second.Load())
	select {
	case ev := <-events:
		t.Fatalf("unexpected second event %v", ev.Reason)
	default:
	}

	err = c.Connect(context.Background())
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, int32(1), svc.opens.Load())
}

func TestDisconnectWhenNotConnectedIsNoop(t *testing.T) {
	c, events := newConnection(t, newPipeService())
	c.Disconnect()
	select {
	case <-events:
		t.Fatal("observer called")
	default:
	}
}

func TestHeartbeatTimeout(t *testing.T) {
	svc := newPipeService()
	c, events := newConnection(t, svc, WithHeartbeat(50*time.Millisecond))

	require.NoError(t, c.Connect(context.Background()))
	svc.writer(t)

	ev := waitEvent(t, events)
	assert.Equal(t, ews.DisconnectTimeout, ev.Reason)
	assert.True(t, errors.Is(ev.Err, transport.ErrReadTimeout))
	assert.False(t, c.IsConnected())
	waitDone(t, c)
}

func TestKeepAliveResetsHeartbeat(t *testing.T) {
	svc := newPipeService()
	responses := make(chan *client.StreamingEnvelope, 8)
	c, events := newConnection(t, svc,
		WithHeartbeat(200*time.Millisecond),
		WithResponseHandler(func(env *client.StreamingEnvelope) { responses <- env }),
	)

	require.NoError(t, c.Connect(context.Background()))
	pw := svc.writer(t)
	for i := 0; i < 4; i++ {
		time.Sleep(100 * time.Millisecond)
		write(t, pw, ewstest.KeepAlive())
		select {
		case env := <-responses:
			assert.False(t, env.Closed())
		case <-time.After(waitTimeout):
			t.Fatal("no response")
		}
	}
	assert.True(t, c.IsConnected())

	c.Disconnect()
	assert.Equal(t, ews.DisconnectUserInitiated, waitEvent(t, events).Reason)
}

func TestServerClosesStream(t *testing.T) {
	svc := newPipeService()
	c, events := newConnection(t, svc)

	require.NoError(t, c.Connect(context.Background()))
	write(t, svc.writer(t), ewstest.StreamClosed())

	ev := waitEvent(t, events)
	assert.Equal(t, ews.DisconnectException, ev.Reason)
	assert.True(t, errors.Is(ev.Err, ews.ErrStreamClosed))
	waitDone(t, c)
}

func TestStreamEnds(t *testing.T) {
	svc := newPipeService()
	c, events := newConnection(t, svc)

	require.NoError(t, c.Connect(context.Background()))
	pw := svc.writer(t)
	write(t, pw, ewstest.KeepAlive())
	require.NoError(t, pw.Close())

	ev := waitEvent(t, events)
	assert.Equal(t, ews.DisconnectException, ev.Reason)
	assert.True(t, errors.Is(ev.Err, ews.ErrStreamClosed))
}

func TestStreamFails(t *testing.T) {
	svc := newPipeService()
	c, events := newConnection(t, svc)

	require.NoError(t, c.Connect(context.Background()))
	pw := svc.writer(t)
	require.NoError(t, pw.CloseWithError(errors.New("connection reset")))

	ev := waitEvent(t, events)
	assert.Equal(t, ews.DisconnectException, ev.Reason)
	var cerr *ews.ConnectionError
	require.True(t, errors.As(ev.Err, &cerr))
	assert.Contains(t, cerr.Error(), "connection reset")
}

func TestMalformedEnvelope(t *testing.T) {
	svc := newPipeService()
	c, events := newConnection(t, svc)

	require.NoError(t, c.Connect(context.Background()))
	write(t, svc.writer(t), `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body></s:Nope>`)

	ev := waitEvent(t, events)
	assert.Equal(t, ews.DisconnectException, ev.Reason)
	var serr *ews.SerializationError
	assert.True(t, errors.As(ev.Err, &serr))
}

func TestSubscriptionError(t *testing.T) {
	svc := newPipeService()
	type failure struct {
		id  string
		err error
	}
	failures := make(chan failure, 4)
	c, _ := newConnection(t, svc, WithSubscriptionErrorHandler(func(id string, err error) {
		failures <- failure{id, err}
	}))

	require.NoError(t, c.Connect(context.Background()))
	write(t, svc.writer(t), ewstest.SubscriptionFailed(ews.ResponseCodeErrorExpiredSubscription, "s2"))

	select {
	case f := <-failures:
		assert.Equal(t, "s2", f.id)
		var remote *ews.RemoteOperationError
		require.True(t, errors.As(f.err, &remote))
		assert.Equal(t, ews.ResponseCodeErrorExpiredSubscription, remote.Code)
	case <-time.After(waitTimeout):
		t.Fatal("no subscription error")
	}
	assert.Equal(t, []string{"s1"}, c.Subscriptions())
	assert.True(t, c.IsConnected())
	c.Disconnect()
}

func TestServerVersionRecorded(t *testing.T) {
	svc := newPipeService()
	versions := make(chan *ews.ServerVersionInfo, 1)
	svc.RecordServerVersionFunc = func(info *ews.ServerVersionInfo) { versions <- info }
	c, _ := newConnection(t, svc)

	require.NoError(t, c.Connect(context.Background()))
	write(t, svc.writer(t), ewstest.KeepAlive())

	select {
	case info := <-versions:
		require.NotNil(t, info)
		assert.Equal(t, 15, info.MajorVersion)
	case <-time.After(waitTimeout):
		t.Fatal("version not recorded")
	}
	c.Disconnect()
}

func TestConnectFailureLeavesDisconnected(t *testing.T) {
	svc := newPipeService()
	open := svc.OpenStreamFunc
	fail := true
	svc.OpenStreamFunc = func(ctx context.Context, ids []string, timeoutMinutes int) (*transport.Response, error) {
		if fail {
			return nil, &ews.ConnectionError{Op: "GetStreamingEvents", StatusCode: 503, Err: errors.New("busy")}
		}
		return open(ctx, ids, timeoutMinutes)
	}
	c, events := newConnection(t, svc)

	err := c.Connect(context.Background())
	var cerr *ews.ConnectionError
	require.True(t, errors.As(err, &cerr))
	assert.False(t, c.IsConnected())
	select {
	case <-events:
		t.Fatal("observer called for a failed connect")
	default:
	}

	fail = false
	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())
	c.Disconnect()
}

func TestConnectContextCancelled(t *testing.T) {
	svc := &mock.Service{
		OpenStreamFunc: func(ctx context.Context, ids []string, timeoutMinutes int) (*transport.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	c, err := New(svc, []string{"s1"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = c.Connect(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, c.IsConnected())
}

func TestOpenStreamArguments(t *testing.T) {
	var gotIDs []string
	var gotTimeout int
	svc := &mock.Service{
		OpenStreamFunc: func(ctx context.Context, ids []string, timeoutMinutes int) (*transport.Response, error) {
			gotIDs, gotTimeout = ids, timeoutMinutes
			resp, _ := mock.PipeResponse()
			return resp, nil
		},
	}
	c, err := New(svc, []string{"a", "b"}, WithConnectionTimeout(5))
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	assert.Equal(t, []string{"a", "b"}, gotIDs)
	assert.Equal(t, 5, gotTimeout)
}

func TestConcurrentConnectStartsOneWorker(t *testing.T) {
	for round := 0; round < 20; round++ {
		svc := newPipeService()
		var observed atomic.Int32
		c, err := New(svc, []string{"s1"},
			WithLogger(zaptest.NewLogger(t)),
			WithHeartbeat(20*time.Millisecond),
			WithDisconnectHandler(func(DisconnectEvent) { observed.Add(1) }),
		)
		require.NoError(t, err)

		const callers = 8
		errs := make(chan error, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- c.Connect(context.Background())
			}()
		}
		wg.Wait()
		close(errs)

		succeeded := 0
		for err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			var ierr *ews.InvalidOperationError
			assert.True(t, errors.As(err, &ierr), "round %d: %v", round, err)
		}
		assert.Equal(t, 1, succeeded, "round %d", round)

		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Disconnect()
			}()
		}
		wg.Wait()
		waitDone(t, c)

		assert.Equal(t, int32(1), svc.opens.Load(), "round %d", round)
		assert.Equal(t, int32(1), observed.Load(), "round %d", round)
		assert.Equal(t, ews.ConnStateDisconnected, c.State())
	}
}

func TestStateChangesLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	svc := newPipeService()
	c, _ := newConnection(t, svc, WithLogger(zap.New(core)))

	require.NoError(t, c.Connect(context.Background()))
	svc.writer(t)
	c.Disconnect()
	waitDone(t, c)

	changes := logs.FilterMessage("state changed").All()
	require.Len(t, changes, 2)
	assert.Equal(t, "disconnected", changes[0].ContextMap()["from"])
	assert.Equal(t, "connected", changes[0].ContextMap()["to"])
	assert.Equal(t, "connected", changes[1].ContextMap()["from"])
	assert.Equal(t, "disconnected", changes[1].ContextMap()["to"])
	assert.Equal(t, c.ID(), changes[0].ContextMap()["connection_id"])
}

// --- Subscriptions ---

func TestSubscriptionsOnlyChangeWhileDisconnected(t *testing.T) {
	svc := newPipeService()
	c, _ := newConnection(t, svc)

	require.NoError(t, c.AddSubscription("s3"))
	require.NoError(t, c.RemoveSubscription("s1"))
	assert.Equal(t, []string{"s2", "s3"}, c.Subscriptions())

	err := c.RemoveSubscription("missing")
	var verr *ews.ValidationError
	require.True(t, errors.As(err, &verr))

	require.NoError(t, c.Connect(context.Background()))
	var ierr *ews.InvalidOperationError
	require.True(t, errors.As(c.AddSubscription("s4"), &ierr))
	require.True(t, errors.As(c.RemoveSubscription("s2"), &ierr))
	c.Disconnect()
}

// --- End to end ---

func TestStreamOverHTTP(t *testing.T) {
	srv := ewstest.NewServer(t)
	stream := ewstest.NewStream()
	srv.Handle("GetStreamingEvents", stream.Handler)
	svc := srv.Client(client.WithLogger(zaptest.NewLogger(t)))

	notifications := make(chan *client.Notification, 1)
	c, events := newConnection(t, svc, WithNotificationHandler(func(n *client.Notification) {
		notifications <- n
	}))

	require.NoError(t, c.Connect(context.Background()))
	<-stream.Opened()
	require.True(t, stream.Send(ewstest.NewMail("s2", "item-7")))

	select {
	case n := <-notifications:
		assert.Equal(t, "s2", n.SubscriptionID)
		assert.Equal(t, ews.EventNewMail, n.Events[0].Type)
	case <-time.After(waitTimeout):
		t.Fatal("no notification")
	}
	require.NotNil(t, svc.ServerVersion())

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "300", reqs[0].HTTP.Header.Get("Keep-Alive"))
	assert.Contains(t, reqs[0].Body, `<t:SubscriptionId>s1</t:SubscriptionId><t:SubscriptionId>s2</t:SubscriptionId>`)

	c.Disconnect()
	assert.Equal(t, ews.DisconnectUserInitiated, waitEvent(t, events).Reason)
	select {
	case <-stream.Gone():
	case <-time.After(waitTimeout):
		t.Fatal("server still streaming")
	}
}

func TestStreamOverHTTPServerEnds(t *testing.T) {
	srv := ewstest.NewServer(t)
	stream := ewstest.NewStream()
	srv.Handle("GetStreamingEvents", stream.Handler)

	c, events := newConnection(t, srv.Client())
	require.NoError(t, c.Connect(context.Background()))
	<-stream.Opened()
	require.True(t, stream.Send(ewstest.KeepAlive()))
	stream.End()

	ev := waitEvent(t, events)
	assert.Equal(t, ews.DisconnectException, ev.Reason)
	assert.True(t, errors.Is(ev.Err, ews.ErrStreamClosed))
}

func TestConnectFaultOverHTTP(t *testing.T) {
	srv := ewstest.NewServer(t)
	srv.Handle("GetStreamingEvents", func(w http.ResponseWriter, r *ewstest.Request) {
		ewstest.WriteXML(w, http.StatusInternalServerError, ewstest.Fault(ews.ResponseCodeErrorInvalidSubscription, "unknown subscription"))
	})

	c, _ := newConnection(t, srv.Client())
	err := c.Connect(context.Background())
	var remote *ews.RemoteOperationError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, ews.ResponseCodeErrorInvalidSubscription, remote.Code)
	assert.False(t, c.IsConnected())
}
