// Package ews implements a client for the Exchange Web Services SOAP protocol.
//
// This package provides the types shared by the wire codec, the property
// store, the request driver and the streaming notification reader. The
// concrete protocol machinery lives in subpackages:
//
//   - wire: namespace-aware XML reader and writer
//   - complex: self-serializing structured values (ids, bodies, filters)
//   - schema: property definitions and object schemas
//   - property: change-tracked property store
//   - client: request driver, operations and service objects
//   - streaming: long-lived streaming subscription reader
package ews

import (
	"fmt"
	"time"
)

// ConnState represents the state of a streaming connection.
type ConnState int

const (
	// ConnStateDisconnected is the initial and terminal state.
	ConnStateDisconnected ConnState = iota
	// ConnStateConnected is the state while the stream is open and a
	// worker is reading envelopes from it.
	ConnStateConnected
)

// String returns the string representation of the connection state.
func (s ConnState) String() string {
	switch s {
	case ConnStateDisconnected:
		return "disconnected"
	case ConnStateConnected:
		return "connected"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// DisconnectReason tells why a streaming connection left the connected state.
type DisconnectReason int

const (
	// DisconnectUserInitiated means the caller asked to disconnect.
	DisconnectUserInitiated DisconnectReason = iota
	// DisconnectTimeout means no data arrived within the heartbeat interval.
	DisconnectTimeout
	// DisconnectException means the stream failed or ended.
	DisconnectException
)

// String returns the string representation of the disconnect reason.
func (r DisconnectReason) String() string {
	switch r {
	case DisconnectUserInitiated:
		return "user initiated"
	case DisconnectTimeout:
		return "timeout"
	case DisconnectException:
		return "exception"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// ErrorPolicy selects how a multi-result call reports failed sub-results.
type ErrorPolicy int

const (
	// ThrowOnFirstError fails the whole call with the first failing
	// sub-result and returns no results.
	ThrowOnFirstError ErrorPolicy = iota
	// ReturnErrors returns every sub-result, failed ones included.
	ReturnErrors
)

// String returns the string representation of the error policy.
func (p ErrorPolicy) String() string {
	switch p {
	case ThrowOnFirstError:
		return "throw on first error"
	case ReturnErrors:
		return "return errors"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// DefaultHeartbeat is the default heartbeat interval of a streaming
// connection.
const DefaultHeartbeat = 45 * time.Second

// DateTimeLayout is the layout used for xs:dateTime values on the wire.
const DateTimeLayout = "2006-01-02T15:04:05Z07:00"

// EventType is a notification event kind.
type EventType string

// Notification event kinds.
const (
	EventNewMail         EventType = "NewMailEvent"
	EventCreated         EventType = "CreatedEvent"
	EventDeleted         EventType = "DeletedEvent"
	EventModified        EventType = "ModifiedEvent"
	EventMoved           EventType = "MovedEvent"
	EventCopied          EventType = "CopiedEvent"
	EventFreeBusyChanged EventType = "FreeBusyChangedEvent"
	EventStatus          EventType = "StatusEvent"
)

// WellKnownFolder names a distinguished folder.
type WellKnownFolder string

// Distinguished folders.
const (
	FolderInbox         WellKnownFolder = "inbox"
	FolderCalendar      WellKnownFolder = "calendar"
	FolderContacts      WellKnownFolder = "contacts"
	FolderDeletedItems  WellKnownFolder = "deleteditems"
	FolderDrafts        WellKnownFolder = "drafts"
	FolderJunkEmail     WellKnownFolder = "junkemail"
	FolderMsgFolderRoot WellKnownFolder = "msgfolderroot"
	FolderNotes         WellKnownFolder = "notes"
	FolderOutbox        WellKnownFolder = "outbox"
	FolderRoot          WellKnownFolder = "root"
	FolderSentItems     WellKnownFolder = "sentitems"
	FolderTasks         WellKnownFolder = "tasks"
)
