package ews

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrPropertyNotFound is wrapped by PropertyAccessError when a property
	// was never loaded or assigned for the object.
	ErrPropertyNotFound = errors.New("ews: property not loaded")
	// ErrPropertyReadOnly is wrapped by PropertyAccessError when a property
	// cannot be set in the object's current lifecycle state.
	ErrPropertyReadOnly = errors.New("ews: property is read-only")
	// ErrStreamClosed reports that the server ended a streaming response.
	ErrStreamClosed = errors.New("ews: stream closed by server")
	// ErrNotConnected reports an operation that needs an open stream.
	ErrNotConnected = errors.New("ews: not connected")
)

// ValidationError reports a target that failed local validation. Targets
// that fail validation are never sent.
type ValidationError struct {
	// Target names what was validated (a node kind, a request, a property).
	Target string
	// Reason is the human-readable failure.
	Reason string
	// Err is an optional underlying cause.
	Err error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("ews: invalid %s: %s", e.Target, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError creates a ValidationError without a cause.
func NewValidationError(target, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Target: target, Reason: fmt.Sprintf(format, args...)}
}

// SerializationError reports malformed markup on read or an attempt to
// write an invalid structure.
type SerializationError struct {
	// Element is the element being processed when the failure happened.
	Element string
	Err     error
}

func (e *SerializationError) Error() string {
	if e.Element == "" {
		return fmt.Sprintf("ews: serialization: %v", e.Err)
	}
	return fmt.Sprintf("ews: serialization of %s: %v", e.Element, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// PropertyAccessError reports a read of a property that is not available or
// a write of a property that cannot be set.
type PropertyAccessError struct {
	Property string
	Err      error
}

func (e *PropertyAccessError) Error() string {
	return fmt.Sprintf("ews: property %s: %v", e.Property, e.Err)
}

func (e *PropertyAccessError) Unwrap() error { return e.Err }

// ProtocolVersionError reports a request or property that needs a newer
// protocol version than the client is configured for.
type ProtocolVersionError struct {
	Feature  string
	Required Version
	Actual   Version
}

func (e *ProtocolVersionError) Error() string {
	return fmt.Sprintf("ews: %s requires %s or later, client uses %s", e.Feature, e.Required, e.Actual)
}

// CheckVersion returns a *ProtocolVersionError when actual is older than
// required.
func CheckVersion(feature string, required, actual Version) error {
	if actual.AtLeast(required) {
		return nil
	}
	return &ProtocolVersionError{Feature: feature, Required: required, Actual: actual}
}

// RemoteOperationError is a sub-result or SOAP fault the server reported as
// failed.
type RemoteOperationError struct {
	// Index is the position of the failed sub-result, or -1 for a fault
	// that failed the whole call.
	Index   int
	Class   ResponseClass
	Code    ResponseCode
	Message string
	Details map[string]string
}

func (e *RemoteOperationError) Error() string {
	var b strings.Builder
	b.WriteString("ews: ")
	if e.Index >= 0 {
		fmt.Fprintf(&b, "result %d: ", e.Index)
	}
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Details[k])
		}
		b.WriteString(")")
	}
	return b.String()
}

// ConnectionError reports a transport failure: network errors, unexpected
// HTTP statuses, and streaming timeouts or disconnects.
type ConnectionError struct {
	// Op is the operation that failed (an action name or "stream").
	Op string
	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int
	Err        error
}

func (e *ConnectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ews: %s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ews: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// InvalidOperationError reports an operation that is not allowed in the
// current lifecycle state of an object or connection.
type InvalidOperationError struct {
	Op     string
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("ews: %s: %s", e.Op, e.Reason)
}
