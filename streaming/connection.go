// Package streaming reads notifications from a long-lived streaming
// response.
//
// A Connection holds a set of subscription ids. Connect sends one
// streaming request and starts a single worker that reads envelopes from
// the open response until the caller disconnects, the server ends the
// stream, the stream fails or no data arrives within the heartbeat
// interval. Every way out of the connected state is reported to the
// disconnect observers exactly once.
package streaming

import (
	"context"
	"io"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/tevino/abool"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/client"
	"github.com/meszmate/ews-go/state"
	"github.com/meszmate/ews-go/transport"
)

// Service opens streaming responses. *client.Client implements it.
type Service interface {
	OpenStream(ctx context.Context, ids []string, timeoutMinutes int) (*transport.Response, error)
	RecordServerVersion(info *ews.ServerVersionInfo)
}

var _ Service = (*client.Client)(nil)

// DisconnectEvent tells observers why a connection left the connected
// state.
type DisconnectEvent struct {
	Reason ews.DisconnectReason
	// Err is the failure behind a timeout or exception, nil for user
	// initiated disconnects.
	Err error
}

// Connection is a streaming connection. It is safe for concurrent use.
type Connection struct {
	id      ulid.ULID
	svc     Service
	options *Options
	logger  *zap.Logger

	// mu guards the fields below together with the state transitions.
	mu            sync.Mutex
	machine       *state.Machine
	subscriptions []string
	observers     []func(DisconnectEvent)
	used          bool
	body          *transport.TimeoutReader
	cancel        context.CancelFunc
	done          chan struct{}

	stopping *abool.AtomicBool
}

// New creates a disconnected connection for the given subscriptions.
func New(svc Service, subscriptionIDs []string, opts ...Option) (*Connection, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Heartbeat <= 0 {
		return nil, ews.NewValidationError("heartbeat", "must be positive, got %s", options.Heartbeat)
	}
	if options.ConnectionTimeout < client.MinStreamingTimeout || options.ConnectionTimeout > client.MaxStreamingTimeout {
		return nil, ews.NewValidationError("connection timeout", "%d minutes out of range [%d, %d]",
			options.ConnectionTimeout, client.MinStreamingTimeout, client.MaxStreamingTimeout)
	}

	c := &Connection{
		id:       ulid.Make(),
		svc:      svc,
		options:  options,
		machine:  state.New(ews.ConnStateDisconnected),
		stopping: abool.New(),
		done:     make(chan struct{}),
	}
	close(c.done)
	c.logger = options.Logger.With(zap.String("connection_id", c.id.String()))
	c.machine.OnAfter(func(from, to ews.ConnState) error {
		c.logger.Debug("state changed", zap.Stringer("from", from), zap.Stringer("to", to))
		return nil
	})
	for _, id := range subscriptionIDs {
		if err := c.addSubscription(id); err != nil {
			return nil, err
		}
	}
	if options.OnDisconnect != nil {
		c.observers = append(c.observers, options.OnDisconnect)
	}
	return c, nil
}

// ID returns the connection id used in logs.
func (c *Connection) ID() string {
	return c.id.String()
}

// State returns the connection state.
func (c *Connection) State() ews.ConnState {
	return c.machine.State()
}

// IsConnected reports whether the worker is reading the stream.
func (c *Connection) IsConnected() bool {
	return c.machine.State() == ews.ConnStateConnected
}

// Done returns a channel that is closed once no worker is running.
func (c *Connection) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Subscriptions returns the subscription ids of the connection.
func (c *Connection) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.subscriptions)
}

// OnDisconnect registers an observer called once for every transition
// out of the connected state.
func (c *Connection) OnDisconnect(fn func(ev DisconnectEvent)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// AddSubscription adds a subscription id. Subscriptions can only change
// while disconnected.
func (c *Connection) AddSubscription(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.machine.RequireState(state.OpAddSubscription, state.OperationAllowedStates(state.OpAddSubscription)...); err != nil {
		return err
	}
	return c.addSubscription(id)
}

func (c *Connection) addSubscription(id string) error {
	if id == "" {
		return ews.NewValidationError("subscription id", "must not be empty")
	}
	if slices.Contains(c.subscriptions, id) {
		return ews.NewValidationError("subscription id", "%q already added", id)
	}
	c.subscriptions = append(c.subscriptions, id)
	return nil
}

// RemoveSubscription removes a subscription id. Subscriptions can only
// change while disconnected.
func (c *Connection) RemoveSubscription(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.machine.RequireState(state.OpRemoveSubscription, state.OperationAllowedStates(state.OpRemoveSubscription)...); err != nil {
		return err
	}
	i := slices.Index(c.subscriptions, id)
	if i < 0 {
		return ews.NewValidationError("subscription id", "%q not found", id)
	}
	c.subscriptions = slices.Delete(c.subscriptions, i, i+1)
	return nil
}

// Connect opens the stream and starts the worker. ctx bounds the opening
// request only; the stream stays open until Disconnect or a failure. A
// connection that has been closed cannot be reopened.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.machine.RequireState(state.OpConnect, state.OperationAllowedStates(state.OpConnect)...); err != nil {
		return err
	}
	if c.used {
		return &ews.InvalidOperationError{Op: state.OpConnect, Reason: "connection was closed and cannot be reopened"}
	}
	if len(c.subscriptions) == 0 {
		return ews.NewValidationError("connection", "no subscriptions")
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	resp, err := c.svc.OpenStream(streamCtx, slices.Clone(c.subscriptions), c.options.ConnectionTimeout)
	stop()
	if err != nil {
		cancel()
		c.logger.Warn("connect failed", zap.Error(err))
		return err
	}

	if err := c.machine.Transition(ews.ConnStateConnected); err != nil {
		resp.Body.Close()
		cancel()
		return err
	}
	c.used = true
	c.stopping.UnSet()
	c.body = transport.ReadTimeout(resp.Body, c.options.Heartbeat)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(c.body, c.done)

	c.logger.Info("connected",
		zap.Strings("subscription_ids", c.subscriptions),
		zap.Duration("heartbeat", c.options.Heartbeat),
	)
	return nil
}

// Disconnect closes the stream and notifies the observers with
// DisconnectUserInitiated. It does nothing when not connected. It does
// not wait for the worker; use Done for that.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	if c.machine.RequireState(state.OpDisconnect, state.OperationAllowedStates(state.OpDisconnect)...) != nil {
		c.mu.Unlock()
		return
	}
	c.stopping.Set()
	observers := c.close()
	c.mu.Unlock()

	c.logger.Info("disconnected", zap.Stringer("reason", ews.DisconnectUserInitiated))
	notify(observers, DisconnectEvent{Reason: ews.DisconnectUserInitiated})
}

// close closes the stream and moves to Disconnected. It must be called
// with mu held and returns the observers to notify.
func (c *Connection) close() []func(DisconnectEvent) {
	if c.body != nil {
		_ = c.body.Close()
	}
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.machine.Transition(ews.ConnStateDisconnected); err != nil {
		c.logger.Error("state transition failed", zap.Error(err))
	}
	return slices.Clone(c.observers)
}

func notify(observers []func(DisconnectEvent), ev DisconnectEvent) {
	for _, fn := range observers {
		fn(ev)
	}
}

// run is the worker. It reads envelopes until the stream ends or fails.
func (c *Connection) run(body *transport.TimeoutReader, done chan struct{}) {
	defer close(done)

	reader := client.NewStreamReader(body)
	for {
		env, err := reader.Next()
		if err != nil {
			c.fail(body, err)
			return
		}
		c.svc.RecordServerVersion(env.ServerVersion)
		c.dispatch(env)
		if env.Closed() {
			c.finish(ews.DisconnectException, ews.ErrStreamClosed)
			return
		}
	}
}

func (c *Connection) fail(body *transport.TimeoutReader, err error) {
	switch {
	case c.stopping.IsSet():
		return
	case body.TimedOut():
		c.finish(ews.DisconnectTimeout, &ews.ConnectionError{Op: "stream", Err: transport.ErrReadTimeout})
	case err == io.EOF:
		c.finish(ews.DisconnectException, ews.ErrStreamClosed)
	default:
		c.finish(ews.DisconnectException, &ews.ConnectionError{Op: "stream", Err: errors.WithStack(err)})
	}
}

// finish ends a connection from the worker side. A Disconnect that got
// there first wins.
func (c *Connection) finish(reason ews.DisconnectReason, err error) {
	c.mu.Lock()
	if c.stopping.IsSet() || c.machine.State() != ews.ConnStateConnected {
		c.mu.Unlock()
		return
	}
	c.stopping.Set()
	observers := c.close()
	c.mu.Unlock()

	c.logger.Warn("disconnected", zap.Stringer("reason", reason), zap.Error(err))
	notify(observers, DisconnectEvent{Reason: reason, Err: err})
}

func (c *Connection) dispatch(env *client.StreamingEnvelope) {
	if c.options.OnResponse != nil {
		c.options.OnResponse(env)
	}
	for i, res := range env.Results {
		if !res.Succeeded() {
			c.subscriptionFailed(res, res.Err(i))
			continue
		}
		if c.options.OnNotification == nil {
			continue
		}
		for _, n := range res.Notifications {
			c.options.OnNotification(n)
		}
	}
}

// subscriptionFailed drops the failed subscriptions from the connection
// and reports them.
func (c *Connection) subscriptionFailed(res *client.StreamingEventsResult, err error) {
	if len(res.ErrorSubscriptionIDs) == 0 {
		c.logger.Warn("stream error", zap.Error(err))
		if c.options.OnSubscriptionError != nil {
			c.options.OnSubscriptionError("", err)
		}
		return
	}

	c.mu.Lock()
	c.subscriptions = slices.DeleteFunc(c.subscriptions, func(id string) bool {
		return slices.Contains(res.ErrorSubscriptionIDs, id)
	})
	c.mu.Unlock()

	for _, id := range res.ErrorSubscriptionIDs {
		c.logger.Warn("subscription failed", zap.String("subscription_id", id), zap.Error(err))
		if c.options.OnSubscriptionError != nil {
			c.options.OnSubscriptionError(id, err)
		}
	}
}
