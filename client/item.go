package client

import (
	"context"
	"time"

	"github.com/pkg/errors"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/complex"
	"github.com/meszmate/ews-go/schema"
)

// Item is a mailbox item: a message, a calendar item or any other kind,
// depending on its schema.
type Item struct {
	*object
}

func newItem(c *Client, sc *schema.Schema) *Item {
	it := &Item{object: newObject(c, sc, schema.ItemID)}
	it.loader = it.load
	it.mutation = it.checkMutation
	return it
}

// NewItem creates a new generic item.
func NewItem(c *Client) *Item {
	return newItem(c, schema.ItemSchema)
}

// itemSchemaFor returns the schema of the item element local.
func itemSchemaFor(local string) *schema.Schema {
	switch local {
	case "Message", "MeetingMessage", "MeetingRequest", "MeetingResponse", "MeetingCancellation":
		return schema.MessageSchema
	case "CalendarItem":
		return schema.CalendarItemSchema
	default:
		return schema.ItemSchema
	}
}

// BindToItem fetches the item with the given id.
func BindToItem(ctx context.Context, c *Client, id complex.ID, ps PropertySet) (*Item, error) {
	resp, err := c.GetItems(ctx, []complex.ID{id}, ps, ews.ThrowOnFirstError)
	if err != nil {
		return nil, err
	}
	items := resp.At(0).Items
	if len(items) == 0 {
		return nil, &ews.SerializationError{Element: "Items", Err: errors.New("no item returned")}
	}
	return items[0], nil
}

// ID returns the item's server id.
func (it *Item) ID() (complex.ID, bool) {
	return it.id()
}

// Kind returns the wire element of the item's kind, e.g. "Message".
func (it *Item) Kind() string {
	return it.schema.Kind().Element
}

// Message returns the item as a message if it is one.
func (it *Item) Message() (*Message, bool) {
	if it.schema != schema.MessageSchema {
		return nil, false
	}
	return &Message{Item: it}, true
}

// CalendarItem returns the item as a calendar item if it is one.
func (it *Item) CalendarItem() (*CalendarItem, bool) {
	if it.schema != schema.CalendarItemSchema {
		return nil, false
	}
	return &CalendarItem{Item: it}, true
}

func (it *Item) load(ctx context.Context, defs ...*schema.PropertyDefinition) error {
	id, _ := it.ID()
	req := &getItemRequest{
		client: it.client,
		ids:    []complex.ID{id},
		shape:  NewPropertySet(IDOnly, defs...),
		into:   []*Item{it},
	}
	_, err := execute[*ItemResult](ctx, it.client, req, ews.ThrowOnFirstError)
	return err
}

// checkMutation forbids changing the class of a saved item.
func (it *Item) checkMutation(def *schema.PropertyDefinition) error {
	if def == schema.ItemClass && !it.IsNew() {
		return &ews.InvalidOperationError{Op: "set " + def.Name, Reason: "item class is fixed once saved"}
	}
	return nil
}

// validate checks the item before it is written.
func (it *Item) validate() error {
	if err := it.bag.Validate(); err != nil {
		return err
	}
	if it.schema != schema.CalendarItemSchema || !it.bag.Has(schema.Start) || !it.bag.Has(schema.End) {
		return nil
	}
	start, _ := it.bag.Get(context.Background(), schema.Start)
	end, _ := it.bag.Get(context.Background(), schema.End)
	s, sok := start.(time.Time)
	e, eok := end.(time.Time)
	if sok && eok && s.After(e) {
		return ews.NewValidationError("calendar item", "start %s is after end %s",
			s.Format(ews.DateTimeLayout), e.Format(ews.DateTimeLayout))
	}
	return nil
}

// Subject returns the item's subject.
func (it *Item) Subject(ctx context.Context) (string, error) {
	return it.getString(ctx, schema.Subject)
}

// SetSubject sets the item's subject.
func (it *Item) SetSubject(s string) error {
	return it.Set(schema.Subject, s)
}

// Body returns the item's body, or nil.
func (it *Item) Body(ctx context.Context) (*complex.Node[complex.Body], error) {
	v, err := it.Get(ctx, schema.Body)
	if err != nil || v == nil {
		return nil, err
	}
	b, _ := v.(*complex.Node[complex.Body])
	return b, nil
}

// SetBody sets the item's body.
func (it *Item) SetBody(t complex.BodyType, text string) error {
	return it.Set(schema.Body, complex.NewBody(t, text))
}

// Categories returns the item's category list, created empty for a new
// item.
func (it *Item) Categories(ctx context.Context) (*complex.Node[complex.StringList], error) {
	v, err := it.Get(ctx, schema.Categories)
	if err != nil || v == nil {
		return nil, err
	}
	l, _ := v.(*complex.Node[complex.StringList])
	return l, nil
}

// Save creates the item in parent. A zero parent saves to the server's
// default folder for the item kind.
func (it *Item) Save(ctx context.Context, parent FolderID) error {
	_, err := it.client.CreateItems(ctx, []*Item{it}, parent, ews.ThrowOnFirstError)
	return err
}

// Update sends the modified properties of a saved item. It does nothing
// when no property was modified.
func (it *Item) Update(ctx context.Context, conflict ConflictResolution) error {
	if it.IsNew() {
		return &ews.InvalidOperationError{Op: "update", Reason: "item has not been saved"}
	}
	if !it.IsDirty() {
		return nil
	}
	_, err := it.client.UpdateItems(ctx, []*Item{it}, conflict, ews.ThrowOnFirstError)
	return err
}

// Delete deletes a saved item.
func (it *Item) Delete(ctx context.Context, mode DeleteMode) error {
	id, ok := it.ID()
	if !ok {
		return &ews.InvalidOperationError{Op: "delete", Reason: "item has not been saved"}
	}
	_, err := it.client.DeleteItems(ctx, []complex.ID{id}, mode, ews.ThrowOnFirstError)
	return err
}

// Message is a mail message.
type Message struct {
	*Item
}

// NewMessage creates a new message.
func NewMessage(c *Client) *Message {
	return &Message{Item: newItem(c, schema.MessageSchema)}
}

func (m *Message) recipients(ctx context.Context, def *schema.PropertyDefinition) (*complex.Node[complex.Collection], error) {
	v, err := m.Get(ctx, def)
	if err != nil || v == nil {
		return nil, err
	}
	c, _ := v.(*complex.Node[complex.Collection])
	return c, nil
}

// ToRecipients returns the To list, created empty for a new message.
func (m *Message) ToRecipients(ctx context.Context) (*complex.Node[complex.Collection], error) {
	return m.recipients(ctx, schema.ToRecipients)
}

// CcRecipients returns the Cc list, created empty for a new message.
func (m *Message) CcRecipients(ctx context.Context) (*complex.Node[complex.Collection], error) {
	return m.recipients(ctx, schema.CcRecipients)
}

// AddTo appends a recipient to the To list.
func (m *Message) AddTo(ctx context.Context, name, address string) error {
	to, err := m.ToRecipients(ctx)
	if err != nil {
		return err
	}
	if to == nil {
		to = complex.NewMailboxCollection()
		if err := m.Set(schema.ToRecipients, to); err != nil {
			return err
		}
	}
	complex.Append(to, complex.NewEmailAddress(name, address))
	return nil
}

// IsRead reports whether the message was read.
func (m *Message) IsRead(ctx context.Context) (bool, error) {
	return m.getBool(ctx, schema.IsRead)
}

// SetIsRead marks the message read or unread.
func (m *Message) SetIsRead(read bool) error {
	return m.Set(schema.IsRead, read)
}

// SaveAs creates the message with the given disposition, e.g. to send it.
func (m *Message) SaveAs(ctx context.Context, parent FolderID, disposition MessageDisposition) error {
	req := &createItemRequest{
		client:      m.client,
		items:       []*Item{m.Item},
		parent:      parent,
		disposition: disposition,
	}
	_, err := execute[*ItemResult](ctx, m.client, req, ews.ThrowOnFirstError)
	return err
}

// CalendarItem is an appointment or meeting.
type CalendarItem struct {
	*Item
}

// NewCalendarItem creates a new calendar item.
func NewCalendarItem(c *Client) *CalendarItem {
	return &CalendarItem{Item: newItem(c, schema.CalendarItemSchema)}
}

func (ci *CalendarItem) getTime(ctx context.Context, def *schema.PropertyDefinition) (time.Time, error) {
	v, err := ci.Get(ctx, def)
	if err != nil || v == nil {
		return time.Time{}, err
	}
	t, _ := v.(time.Time)
	return t, nil
}

// Start returns the start time.
func (ci *CalendarItem) Start(ctx context.Context) (time.Time, error) {
	return ci.getTime(ctx, schema.Start)
}

// End returns the end time.
func (ci *CalendarItem) End(ctx context.Context) (time.Time, error) {
	return ci.getTime(ctx, schema.End)
}

// SetTimes sets the start and end time.
func (ci *CalendarItem) SetTimes(start, end time.Time) error {
	if err := ci.Set(schema.Start, start); err != nil {
		return err
	}
	return ci.Set(schema.End, end)
}

// Location returns the location.
func (ci *CalendarItem) Location(ctx context.Context) (string, error) {
	return ci.getString(ctx, schema.Location)
}

// SetLocation sets the location.
func (ci *CalendarItem) SetLocation(s string) error {
	return ci.Set(schema.Location, s)
}

// SetRecurrence sets or, with nil, removes the recurrence.
func (ci *CalendarItem) SetRecurrence(r *complex.Node[complex.Recurrence]) error {
	if r == nil {
		return ci.Set(schema.Recurrence, nil)
	}
	return ci.Set(schema.Recurrence, r)
}

// RequiredAttendees returns the required attendee list, created empty for
// a new item.
func (ci *CalendarItem) RequiredAttendees(ctx context.Context) (*complex.Node[complex.Collection], error) {
	v, err := ci.Get(ctx, schema.RequiredAttendees)
	if err != nil || v == nil {
		return nil, err
	}
	c, _ := v.(*complex.Node[complex.Collection])
	return c, nil
}

// AddRequiredAttendee appends a required attendee.
func (ci *CalendarItem) AddRequiredAttendee(ctx context.Context, name, address string) error {
	list, err := ci.RequiredAttendees(ctx)
	if err != nil {
		return err
	}
	if list == nil {
		list = complex.NewAttendeeCollection()
		if err := ci.Set(schema.RequiredAttendees, list); err != nil {
			return err
		}
	}
	complex.Append(list, complex.NewAttendee(name, address))
	return nil
}
