package streaming

import (
	"time"

	"go.uber.org/zap"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/client"
)

// Option is a functional option for configuring a connection.
type Option func(*Options)

// Options holds all connection configuration.
type Options struct {
	// Heartbeat is the longest the worker waits for data before it gives
	// up with DisconnectTimeout. The server sends keep-alive envelopes
	// well within the default.
	Heartbeat time.Duration

	// ConnectionTimeout is how long, in minutes, the server keeps the
	// response open. Between 1 and 30.
	ConnectionTimeout int

	// Logger is the structured logger.
	Logger *zap.Logger

	// OnResponse receives every envelope read from the stream.
	OnResponse func(env *client.StreamingEnvelope)

	// OnNotification receives the events of one subscription.
	OnNotification func(n *client.Notification)

	// OnSubscriptionError receives per-subscription failures reported
	// inside the stream. id is empty when the server named none.
	OnSubscriptionError func(id string, err error)

	// OnDisconnect is registered as the first disconnect observer.
	OnDisconnect func(ev DisconnectEvent)
}

// DefaultOptions returns the default connection options.
func DefaultOptions() *Options {
	return &Options{
		Heartbeat:         ews.DefaultHeartbeat,
		ConnectionTimeout: client.DefaultStreamingTimeout,
		Logger:            zap.NewNop(),
	}
}

// WithHeartbeat sets the heartbeat interval.
func WithHeartbeat(d time.Duration) Option {
	return func(o *Options) {
		o.Heartbeat = d
	}
}

// WithConnectionTimeout sets the server-side lifetime of the stream in
// minutes.
func WithConnectionTimeout(minutes int) Option {
	return func(o *Options) {
		o.ConnectionTimeout = minutes
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithResponseHandler sets the envelope callback.
func WithResponseHandler(fn func(env *client.StreamingEnvelope)) Option {
	return func(o *Options) {
		o.OnResponse = fn
	}
}

// WithNotificationHandler sets the notification callback.
func WithNotificationHandler(fn func(n *client.Notification)) Option {
	return func(o *Options) {
		o.OnNotification = fn
	}
}

// WithSubscriptionErrorHandler sets the subscription error callback.
func WithSubscriptionErrorHandler(fn func(id string, err error)) Option {
	return func(o *Options) {
		o.OnSubscriptionError = fn
	}
}

// WithDisconnectHandler sets the first disconnect observer.
func WithDisconnectHandler(fn func(ev DisconnectEvent)) Option {
	return func(o *Options) {
		o.OnDisconnect = fn
	}
}
