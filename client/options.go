package client

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/middleware"
	"github.com/meszmate/ews-go/transport"
)

// Option is a functional option for configuring the client.
type Option func(*Options)

// Options holds all client configuration.
type Options struct {
	// Endpoint is the service URL, e.g. https://host/EWS/Exchange.asmx.
	Endpoint string

	// Version is sent as RequestServerVersion and gates requests and
	// properties that need a newer server.
	Version ews.Version

	// Logger is the structured logger.
	Logger *zap.Logger

	// Credentials authenticate every request.
	Credentials transport.Credentials

	// HTTPClient sends one-shot calls. Defaults to a client with Timeout.
	HTTPClient *http.Client

	// StreamingHTTPClient sends streaming calls. Defaults to a client
	// without timeout.
	StreamingHTTPClient *http.Client

	// Transport replaces the HTTP transport entirely. The middleware
	// chain is still applied on top of it.
	Transport transport.Transport

	// Timeout bounds one-shot calls.
	Timeout time.Duration

	// UserAgent is sent in the User-Agent header.
	UserAgent string

	// InsecureSkipVerify disables TLS certificate checks on the default
	// HTTP clients.
	InsecureSkipVerify bool

	// TraceEnabled logs request and response envelopes at debug level.
	TraceEnabled bool

	// ClientRequestID tags each request with a client-request-id header.
	ClientRequestID bool

	// ImpersonatedUser, when set, is the SMTP address every call acts as.
	ImpersonatedUser string

	// TimeZone is the id of the time zone sent with every call.
	TimeZone string

	// Middleware wraps the transport, outermost first.
	Middleware []middleware.Middleware
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		Version:         ews.Exchange2013SP1,
		Logger:          zap.NewNop(),
		Timeout:         100 * time.Second,
		UserAgent:       "ews-go",
		ClientRequestID: true,
	}
}

// WithEndpoint sets the service URL.
func WithEndpoint(url string) Option {
	return func(o *Options) {
		o.Endpoint = url
	}
}

// WithVersion sets the requested protocol version.
func WithVersion(v ews.Version) Option {
	return func(o *Options) {
		o.Version = v
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithCredentials sets the request credentials.
func WithCredentials(creds transport.Credentials) Option {
	return func(o *Options) {
		o.Credentials = creds
	}
}

// WithHTTPClient sets the HTTP client used for one-shot calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = hc
	}
}

// WithStreamingHTTPClient sets the HTTP client used for streaming calls.
func WithStreamingHTTPClient(hc *http.Client) Option {
	return func(o *Options) {
		o.StreamingHTTPClient = hc
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(t transport.Transport) Option {
	return func(o *Options) {
		o.Transport = t
	}
}

// WithTimeout sets the one-shot call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *Options) {
		o.UserAgent = ua
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
func WithInsecureSkipVerify(skip bool) Option {
	return func(o *Options) {
		o.InsecureSkipVerify = skip
	}
}

// WithTraceEnabled enables envelope logging.
func WithTraceEnabled(enable bool) Option {
	return func(o *Options) {
		o.TraceEnabled = enable
	}
}

// WithClientRequestID toggles the client-request-id header.
func WithClientRequestID(enable bool) Option {
	return func(o *Options) {
		o.ClientRequestID = enable
	}
}

// WithImpersonation makes every call act as the given mailbox.
func WithImpersonation(smtpAddress string) Option {
	return func(o *Options) {
		o.ImpersonatedUser = smtpAddress
	}
}

// WithTimeZone sets the time zone context sent with every call.
func WithTimeZone(id string) Option {
	return func(o *Options) {
		o.TimeZone = id
	}
}

// WithMiddleware appends transport middleware.
func WithMiddleware(mw ...middleware.Middleware) Option {
	return func(o *Options) {
		o.Middleware = append(o.Middleware, mw...)
	}
}

// WithMetrics records request metrics into m.
func WithMetrics(m *middleware.Metrics) Option {
	return WithMiddleware(middleware.MetricsMiddleware(m))
}

// WithRateLimit throttles one-shot calls.
func WithRateLimit(cfg middleware.RateLimitConfig) Option {
	return WithMiddleware(middleware.RateLimit(cfg))
}
