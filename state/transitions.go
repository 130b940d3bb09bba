package state

import (
	ews "github.com/meszmate/ews-go"
)

// Operations gated by OperationAllowedStates.
const (
	OpConnect            = "connect"
	OpDisconnect         = "disconnect"
	OpAddSubscription    = "add subscription"
	OpRemoveSubscription = "remove subscription"
)

// DefaultTransitions returns the streaming connection transition rules.
//
// The allowed transitions are:
//   - Disconnected -> Connected (initial request accepted)
//   - Connected -> Disconnected (user, timeout or failure)
func DefaultTransitions() map[ews.ConnState][]ews.ConnState {
	return map[ews.ConnState][]ews.ConnState{
		ews.ConnStateDisconnected: {ews.ConnStateConnected},
		ews.ConnStateConnected:    {ews.ConnStateDisconnected},
	}
}

// OperationAllowedStates returns the states in which a connection
// operation is allowed.
func OperationAllowedStates(op string) []ews.ConnState {
	switch op {
	case OpConnect, OpAddSubscription, OpRemoveSubscription:
		return []ews.ConnState{ews.ConnStateDisconnected}
	case OpDisconnect:
		return []ews.ConnState{ews.ConnStateConnected}
	default:
		return nil
	}
}
