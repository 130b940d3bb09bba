package middleware

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"

	"github.com/meszmate/ews-go/transport"
)

// DefaultMetricsNamespace prefixes the measure and view names.
const DefaultMetricsNamespace = "ews"

// TagAction tags every measurement with the request's action name.
var TagAction = tag.MustNewKey("action")

// latencyBounds are the histogram buckets of the latency view, in
// milliseconds.
var latencyBounds = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}

// Metrics records transport metrics as opencensus measures. Views are
// registered globally under the namespace and can be exported with any
// opencensus exporter.
type Metrics struct {
	requests *stats.Int64Measure
	errors   *stats.Int64Measure
	active   *stats.Int64Measure
	latency  *stats.Float64Measure

	requestsView *view.View
	errorsView   *view.View
	activeView   *view.View
	latencyView  *view.View

	inFlight atomic.Int64
}

// NewMetrics creates the measures of namespace and registers their views.
// An empty namespace means DefaultMetricsNamespace.
func NewMetrics(namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}
	m := &Metrics{
		requests: stats.Int64(namespace+"/requests", "number of requests sent", stats.UnitDimensionless),
		errors:   stats.Int64(namespace+"/errors", "number of requests that failed or got a non-200 status", stats.UnitDimensionless),
		active:   stats.Int64(namespace+"/active", "number of requests waiting for a response", stats.UnitDimensionless),
		latency:  stats.Float64(namespace+"/latency", "time to response headers", stats.UnitMilliseconds),
	}
	m.requestsView = newCountView(m.requests)
	m.errorsView = newCountView(m.errors)
	m.activeView = &view.View{
		Name:        m.active.Name(),
		Description: m.active.Description(),
		Measure:     m.active,
		Aggregation: view.LastValue(),
	}
	m.latencyView = &view.View{
		Name:        m.latency.Name(),
		Description: m.latency.Description(),
		TagKeys:     []tag.Key{TagAction},
		Measure:     m.latency,
		Aggregation: view.Distribution(latencyBounds...),
	}
	if err := view.Register(m.Views()...); err != nil {
		return nil, errors.Wrapf(err, "register %s views", namespace)
	}
	return m, nil
}

func newCountView(s *stats.Int64Measure) *view.View {
	return &view.View{
		Name:        s.Name(),
		Description: s.Description(),
		TagKeys:     []tag.Key{TagAction},
		Measure:     s,
		Aggregation: view.Count(),
	}
}

// Views returns the registered views.
func (m *Metrics) Views() []*view.View {
	return []*view.View{m.requestsView, m.errorsView, m.activeView, m.latencyView}
}

// Unregister stops collecting data for the views.
func (m *Metrics) Unregister() {
	view.Unregister(m.Views()...)
}

// RequestsTotal returns the number of requests sent.
func (m *Metrics) RequestsTotal() int64 {
	return m.count(m.requestsView, "")
}

// RequestErrors returns the number of requests that failed or got a non-200
// status.
func (m *Metrics) RequestErrors() int64 {
	return m.count(m.errorsView, "")
}

// ActiveRequests returns the last recorded number of requests in flight.
func (m *Metrics) ActiveRequests() int64 {
	rows, err := view.RetrieveData(m.activeView.Name)
	if err != nil || len(rows) == 0 {
		return 0
	}
	if data, ok := rows[0].Data.(*view.LastValueData); ok {
		return int64(data.Value)
	}
	return 0
}

// ActionCount returns the total count for a specific action.
func (m *Metrics) ActionCount(action string) int64 {
	return m.count(m.requestsView, action)
}

// ActionDuration returns the total time spent waiting for responses to a
// specific action.
func (m *Metrics) ActionDuration(action string) time.Duration {
	rows, err := view.RetrieveData(m.latencyView.Name)
	if err != nil {
		return 0
	}
	for _, row := range rows {
		if !hasAction(row, action) {
			continue
		}
		if data, ok := row.Data.(*view.DistributionData); ok {
			return time.Duration(data.Mean * float64(data.Count) * float64(time.Millisecond))
		}
	}
	return 0
}

// count sums the count view rows of action, or of every action when action
// is empty.
func (m *Metrics) count(v *view.View, action string) int64 {
	rows, err := view.RetrieveData(v.Name)
	if err != nil {
		return 0
	}
	var total int64
	for _, row := range rows {
		if action != "" && !hasAction(row, action) {
			continue
		}
		if data, ok := row.Data.(*view.CountData); ok {
			total += data.Value
		}
	}
	return total
}

func hasAction(row *view.Row, action string) bool {
	for _, t := range row.Tags {
		if t.Key == TagAction {
			return t.Value == action
		}
	}
	return false
}

func (m *Metrics) record(ctx context.Context, action string, ms ...stats.Measurement) {
	_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(TagAction, action)}, ms...)
}

// MetricsMiddleware returns a middleware that records request metrics.
func MetricsMiddleware(metrics *Metrics) Middleware {
	return func(next transport.Transport) transport.Transport {
		return transport.Func(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			metrics.record(ctx, req.Action,
				metrics.requests.M(1),
				metrics.active.M(metrics.inFlight.Add(1)),
			)

			start := time.Now()
			resp, err := next.Send(ctx, req)
			elapsed := float64(time.Since(start)) / float64(time.Millisecond)

			ms := []stats.Measurement{
				metrics.active.M(metrics.inFlight.Add(-1)),
				metrics.latency.M(elapsed),
			}
			if err != nil || resp.StatusCode != http.StatusOK {
				ms = append(ms, metrics.errors.M(1))
			}
			metrics.record(ctx, req.Action, ms...)

			return resp, err
		})
	}
}
