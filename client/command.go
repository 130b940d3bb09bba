package client

import (
	"context"
	"encoding/xml"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/soap"
	"github.com/meszmate/ews-go/wire"
)

// Result is one sub-result of a multi-result response.
type Result interface {
	Result() *ews.ServiceResult
	// readElement consumes a payload child of the response message and
	// reports whether it was recognized.
	readElement(d *wire.Decoder, start xml.StartElement) (bool, error)
}

// request is one call carrying count() targets.
type request[R Result] interface {
	// action is the request element, e.g. "GetItem".
	action() string
	// minVersion is the oldest protocol version supporting the call.
	minVersion() ews.Version
	// count is the number of results expected, one per target.
	count() int
	// validate checks every target against the client's version.
	validate(v ews.Version) error
	// writeBody writes the request element.
	writeBody(e *wire.Encoder) error
	// newResult creates the result for the target at index.
	newResult(index int) R
}

// Responses is the ordered list of results of a call. Results[i] answers
// the i-th target.
type Responses[R Result] struct {
	Results []R
}

// Len returns the number of results.
func (r *Responses[R]) Len() int {
	return len(r.Results)
}

// At returns the i-th result.
func (r *Responses[R]) At(i int) R {
	return r.Results[i]
}

// OverallResult returns Error if any result failed, else Warning if any
// result warned, else Success.
func (r *Responses[R]) OverallResult() ews.ResponseClass {
	class := ews.ResponseClassSuccess
	for _, res := range r.Results {
		switch res.Result().Class {
		case ews.ResponseClassError:
			return ews.ResponseClassError
		case ews.ResponseClassWarning:
			class = ews.ResponseClassWarning
		}
	}
	return class
}

// Errors returns the error of every failed result, in order.
func (r *Responses[R]) Errors() []error {
	var errs []error
	for i, res := range r.Results {
		if err := res.Result().Err(i); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// execute runs req and applies policy to the results.
//
// Every target is validated before anything is sent; one invalid target
// fails the whole call with its *ews.ValidationError. Under
// ews.ThrowOnFirstError the first failed result is returned as a
// *ews.RemoteOperationError and no results are returned. Under
// ews.ReturnErrors every result is returned, failed ones included.
func execute[R Result](ctx context.Context, c *Client, req request[R], policy ews.ErrorPolicy) (*Responses[R], error) {
	action := req.action()
	if err := req.validate(c.options.Version); err != nil {
		return nil, err
	}
	if err := ews.CheckVersion(action, req.minVersion(), c.options.Version); err != nil {
		return nil, err
	}

	d, err := c.roundTrip(ctx, action, soap.BodyWriter(req.writeBody))
	if err != nil {
		return nil, err
	}

	env, err := soap.ReadEnvelope(d)
	if err != nil {
		return nil, err
	}
	c.RecordServerVersion(env.ServerVersion)

	if !wire.Is(env.Payload.Name, wire.NamespaceMessages, action+"Response") {
		return nil, &ews.SerializationError{
			Element: env.Payload.Name.Local,
			Err:     errors.Errorf("expected %sResponse", action),
		}
	}
	results, err := readResponseMessages(d, env.Payload, req.newResult)
	if err != nil {
		return nil, err
	}
	if len(results) != req.count() {
		return nil, &ews.SerializationError{
			Element: "ResponseMessages",
			Err:     errors.Errorf("got %d results for %d targets", len(results), req.count()),
		}
	}
	if err := env.End(d); err != nil {
		return nil, err
	}

	if comp, ok := any(req).(completer[R]); ok {
		comp.complete(results)
	}

	resp := &Responses[R]{Results: results}
	if policy == ews.ThrowOnFirstError {
		for i, res := range results {
			if err := res.Result().Err(i); err != nil {
				c.options.Logger.Debug("call failed",
					zap.String("action", action),
					zap.Int("index", i),
					zap.Error(err),
				)
				return nil, err
			}
		}
	}
	return resp, nil
}

// validateTargets wraps the first failing target's error with its index.
func validateTargets(n int, kind string, fn func(i int) error) error {
	for i := 0; i < n; i++ {
		if err := fn(i); err != nil {
			var verr *ews.ValidationError
			if errors.As(err, &verr) {
				return &ews.ValidationError{Target: kind + " " + strconv.Itoa(i), Reason: verr.Reason, Err: verr}
			}
			return err
		}
	}
	return nil
}
