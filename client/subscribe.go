package client

import (
	"context"
	"encoding/xml"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/complex"
	"github.com/meszmate/ews-go/soap"
	"github.com/meszmate/ews-go/transport"
	"github.com/meszmate/ews-go/wire"
)

// Connection timeout bounds of a streaming request, in minutes.
const (
	MinStreamingTimeout     = 1
	MaxStreamingTimeout     = 30
	DefaultStreamingTimeout = 30
)

var subscribableEvents = map[ews.EventType]bool{
	ews.EventNewMail:         true,
	ews.EventCreated:         true,
	ews.EventDeleted:         true,
	ews.EventModified:        true,
	ews.EventMoved:           true,
	ews.EventCopied:          true,
	ews.EventFreeBusyChanged: true,
}

// SubscribeResult is the result of a subscribe call.
type SubscribeResult struct {
	ews.ServiceResult
	SubscriptionID string
}

func (r *SubscribeResult) readElement(d *wire.Decoder, start xml.StartElement) (bool, error) {
	if !wire.Is(start.Name, wire.NamespaceMessages, "SubscriptionId") {
		return false, nil
	}
	s, err := d.ReadText(start)
	r.SubscriptionID = strings.TrimSpace(s)
	return true, err
}

type subscribeRequest struct {
	folders []FolderID
	events  []ews.EventType
}

func (r *subscribeRequest) action() string          { return "Subscribe" }
func (r *subscribeRequest) minVersion() ews.Version { return ews.Exchange2010SP1 }
func (r *subscribeRequest) count() int              { return 1 }

func (r *subscribeRequest) validate(v ews.Version) error {
	if len(r.events) == 0 {
		return ews.NewValidationError("subscription", "at least one event type is required")
	}
	for _, ev := range r.events {
		if !subscribableEvents[ev] {
			return ews.NewValidationError("subscription", "cannot subscribe to %q", ev)
		}
	}
	return validateTargets(len(r.folders), "folder", func(i int) error {
		return r.folders[i].validate()
	})
}

func (r *subscribeRequest) writeBody(e *wire.Encoder) error {
	e.StartElement(wire.NamespaceMessages, "Subscribe")
	e.StartElement(wire.NamespaceMessages, "StreamingSubscriptionRequest")
	if len(r.folders) == 0 {
		e.Attr("SubscribeToAllFolders", "true")
	} else {
		writeFolderIDs(e, wire.NamespaceTypes, "FolderIds", r.folders)
	}
	e.StartElement(wire.NamespaceTypes, "EventTypes")
	for _, ev := range r.events {
		e.Element(wire.NamespaceTypes, "EventType", string(ev))
	}
	e.EndElement()
	e.EndElement()
	e.EndElement()
	return e.Err()
}

func (r *subscribeRequest) newResult(int) *SubscribeResult {
	return &SubscribeResult{}
}

// Subscription is a streaming subscription held on the server.
type Subscription struct {
	ID     string
	client *Client
}

// Unsubscribe ends the subscription on the server.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	return s.client.Unsubscribe(ctx, s.ID)
}

// SubscribeToStreamingNotifications creates a streaming subscription for
// events in folders. No folders subscribes to every folder of the mailbox.
func (c *Client) SubscribeToStreamingNotifications(ctx context.Context, folders []FolderID, events ...ews.EventType) (*Subscription, error) {
	resp, err := execute[*SubscribeResult](ctx, c, &subscribeRequest{folders: folders, events: events}, ews.ThrowOnFirstError)
	if err != nil {
		return nil, err
	}
	id := resp.At(0).SubscriptionID
	if id == "" {
		return nil, &ews.SerializationError{Element: "SubscriptionId", Err: errors.New("empty subscription id")}
	}
	return &Subscription{ID: id, client: c}, nil
}

type unsubscribeRequest struct {
	id string
}

func (r *unsubscribeRequest) action() string          { return "Unsubscribe" }
func (r *unsubscribeRequest) minVersion() ews.Version { return ews.Exchange2007SP1 }
func (r *unsubscribeRequest) count() int              { return 1 }

func (r *unsubscribeRequest) validate(ews.Version) error {
	if r.id == "" {
		return ews.NewValidationError("subscription id", "must not be empty")
	}
	return nil
}

func (r *unsubscribeRequest) writeBody(e *wire.Encoder) error {
	e.StartElement(wire.NamespaceMessages, "Unsubscribe")
	e.Element(wire.NamespaceMessages, "SubscriptionId", r.id)
	e.EndElement()
	return e.Err()
}

func (r *unsubscribeRequest) newResult(int) *StatusResult {
	return &StatusResult{}
}

// Unsubscribe ends the subscription with the given id.
func (c *Client) Unsubscribe(ctx context.Context, id string) error {
	_, err := execute[*StatusResult](ctx, c, &unsubscribeRequest{id: id}, ews.ThrowOnFirstError)
	return err
}

// GetStreamingEventsBody returns the body of a streaming events request
// for the given subscriptions, held open by the server for at most
// timeoutMinutes.
func GetStreamingEventsBody(ids []string, timeoutMinutes int) soap.BodyWriter {
	return func(e *wire.Encoder) error {
		e.StartElement(wire.NamespaceMessages, "GetStreamingEvents")
		e.StartElement(wire.NamespaceMessages, "SubscriptionIds")
		for _, id := range ids {
			e.Element(wire.NamespaceTypes, "SubscriptionId", id)
		}
		e.EndElement()
		e.Int(wire.NamespaceMessages, "ConnectionTimeout", timeoutMinutes)
		e.EndElement()
		return e.Err()
	}
}

// OpenStream sends a streaming events request and returns the open
// response. The caller reads it with NewStreamReader and must close its
// body.
func (c *Client) OpenStream(ctx context.Context, ids []string, timeoutMinutes int) (*transport.Response, error) {
	const action = "GetStreamingEvents"
	if len(ids) == 0 {
		return nil, ews.NewValidationError(action, "at least one subscription id is required")
	}
	for _, id := range ids {
		if id == "" {
			return nil, ews.NewValidationError(action, "empty subscription id")
		}
	}
	if timeoutMinutes < MinStreamingTimeout || timeoutMinutes > MaxStreamingTimeout {
		return nil, ews.NewValidationError(action, "connection timeout %d out of range [%d, %d]",
			timeoutMinutes, MinStreamingTimeout, MaxStreamingTimeout)
	}
	if err := ews.CheckVersion(action, ews.Exchange2010SP1, c.options.Version); err != nil {
		return nil, err
	}
	return c.Send(ctx, action, true, GetStreamingEventsBody(ids, timeoutMinutes))
}

// ConnectionStatus is the state of a streaming response reported by the
// server.
type ConnectionStatus string

const (
	ConnectionOK     ConnectionStatus = "OK"
	ConnectionClosed ConnectionStatus = "Closed"
)

// Event is one notification event.
type Event struct {
	Type      ews.EventType
	TimeStamp time.Time
	Watermark string

	ItemID            *complex.ID
	FolderID          *complex.ID
	ParentFolderID    *complex.ID
	OldItemID         *complex.ID
	OldFolderID       *complex.ID
	OldParentFolderID *complex.ID
	// UnreadCount is set for folder modifications only.
	UnreadCount int
}

// Notification groups the events of one subscription.
type Notification struct {
	SubscriptionID    string
	PreviousWatermark string
	MoreEvents        bool
	Events            []*Event
}

// StreamingEventsResult is one message of a streaming envelope.
type StreamingEventsResult struct {
	ews.ServiceResult
	ConnectionStatus ConnectionStatus
	Notifications    []*Notification
	// ErrorSubscriptionIDs lists the subscriptions a failed message
	// applies to.
	ErrorSubscriptionIDs []string
}

func (r *StreamingEventsResult) readElement(d *wire.Decoder, start xml.StartElement) (bool, error) {
	if start.Name.Space != wire.MessagesURI {
		return false, nil
	}
	switch start.Name.Local {
	case "ConnectionStatus":
		s, err := d.ReadText(start)
		r.ConnectionStatus = ConnectionStatus(strings.TrimSpace(s))
		return true, err
	case "Notifications":
		return true, readList(d, start, func(child xml.StartElement) error {
			if !wire.Is(child.Name, wire.NamespaceMessages, "Notification") {
				return d.Skip(child)
			}
			n, err := readNotification(d, child)
			if err != nil {
				return err
			}
			r.Notifications = append(r.Notifications, n)
			return nil
		})
	case "ErrorSubscriptionIds":
		return true, readList(d, start, func(child xml.StartElement) error {
			s, err := d.ReadText(child)
			if err != nil {
				return err
			}
			r.ErrorSubscriptionIDs = append(r.ErrorSubscriptionIDs, strings.TrimSpace(s))
			return nil
		})
	}
	return false, nil
}

func readNotification(d *wire.Decoder, start xml.StartElement) (*Notification, error) {
	n := &Notification{}
	err := readList(d, start, func(child xml.StartElement) error {
		if child.Name.Space != wire.TypesURI {
			return d.Skip(child)
		}
		switch child.Name.Local {
		case "SubscriptionId":
			s, err := d.ReadText(child)
			n.SubscriptionID = strings.TrimSpace(s)
			return err
		case "PreviousWatermark":
			s, err := d.ReadText(child)
			n.PreviousWatermark = strings.TrimSpace(s)
			return err
		case "MoreEvents":
			v, err := d.ReadBool(child)
			n.MoreEvents = v
			return err
		}
		if strings.HasSuffix(child.Name.Local, "Event") {
			ev, err := readEvent(d, child)
			if err != nil {
				return err
			}
			n.Events = append(n.Events, ev)
			return nil
		}
		return d.Skip(child)
	})
	return n, err
}

func readEvent(d *wire.Decoder, start xml.StartElement) (*Event, error) {
	ev := &Event{Type: ews.EventType(start.Name.Local)}
	err := readList(d, start, func(child xml.StartElement) error {
		if child.Name.Space != wire.TypesURI {
			return d.Skip(child)
		}
		var target **complex.ID
		switch child.Name.Local {
		case "TimeStamp":
			t, err := d.ReadDateTime(child)
			ev.TimeStamp = t
			return err
		case "Watermark":
			s, err := d.ReadText(child)
			ev.Watermark = strings.TrimSpace(s)
			return err
		case "UnreadCount":
			n, err := d.ReadInt(child)
			ev.UnreadCount = n
			return err
		case "ItemId":
			target = &ev.ItemID
		case "FolderId":
			target = &ev.FolderID
		case "ParentFolderId":
			target = &ev.ParentFolderID
		case "OldItemId":
			target = &ev.OldItemID
		case "OldFolderId":
			target = &ev.OldFolderID
		case "OldParentFolderId":
			target = &ev.OldParentFolderID
		default:
			return d.Skip(child)
		}
		node := complex.NewID("", "")
		if err := node.LoadFromXML(d, child); err != nil {
			return err
		}
		id := node.Get()
		*target = &id
		return nil
	})
	return ev, err
}

// StreamingEnvelope is one envelope of a streaming response.
type StreamingEnvelope struct {
	ServerVersion *ews.ServerVersionInfo
	Results       []*StreamingEventsResult
}

// Closed reports whether the server announced the end of the stream.
func (env *StreamingEnvelope) Closed() bool {
	for _, r := range env.Results {
		if r.ConnectionStatus == ConnectionClosed {
			return true
		}
	}
	return false
}

// StreamReader reads the envelopes of a streaming response one at a
// time. It is not safe for concurrent use.
type StreamReader struct {
	d *wire.Decoder
}

// NewStreamReader creates a reader over a streaming response body.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{d: wire.NewDecoder(r)}
}

// Next reads the next envelope. It returns io.EOF when the stream ends
// between envelopes. A fault envelope is returned as a
// *ews.RemoteOperationError.
func (s *StreamReader) Next() (*StreamingEnvelope, error) {
	if _, err := s.d.Peek(); err != nil {
		return nil, err
	}
	env, err := soap.ReadEnvelope(s.d)
	if err != nil {
		return nil, err
	}
	if !wire.Is(env.Payload.Name, wire.NamespaceMessages, "GetStreamingEventsResponse") {
		return nil, &ews.SerializationError{
			Element: env.Payload.Name.Local,
			Err:     errors.New("expected GetStreamingEventsResponse"),
		}
	}
	results, err := readResponseMessages(s.d, env.Payload, func(int) *StreamingEventsResult {
		return &StreamingEventsResult{}
	})
	if err != nil {
		return nil, err
	}
	if err := env.End(s.d); err != nil {
		return nil, err
	}
	return &StreamingEnvelope{ServerVersion: env.ServerVersion, Results: results}, nil
}
