package complex

import (
	"encoding/xml"

	"github.com/meszmate/ews-go/wire"
)

// Collection is an ordered list of child values of one kind.
type Collection struct {
	Items []Value

	// next is the index the following patch read updates.
	next int
}

// NewCollection creates an empty collection whose items are written as
// item elements and read through factory. A full load replaces the items;
// a patch load updates them by position and appends extra ones.
func NewCollection(item string, factory Factory) *Node[Collection] {
	return NewNode(collectionBehavior(item, factory), Collection{})
}

func collectionBehavior(item string, factory Factory) *Behavior[Collection] {
	return &Behavior[Collection]{
		Reset: func(v *Collection, patch bool) {
			v.next = 0
			if !patch {
				v.Items = nil
			}
		},
		TryReadElement: func(n *Node[Collection], d *wire.Decoder, start xml.StartElement) (bool, error) {
			if start.Name.Local != item {
				return false, nil
			}
			child := factory()
			if err := child.LoadFromXML(d, start); err != nil {
				return false, err
			}
			n.value.Items = append(n.value.Items, child)
			return true, nil
		},
		TryReadElementToPatch: func(n *Node[Collection], d *wire.Decoder, start xml.StartElement) (bool, error) {
			if start.Name.Local != item {
				return false, nil
			}
			v := &n.value
			if v.next < len(v.Items) {
				if err := v.Items[v.next].LoadFromXMLToPatch(d, start); err != nil {
					return false, err
				}
				v.next++
				return true, nil
			}
			child := factory()
			if err := child.LoadFromXML(d, start); err != nil {
				return false, err
			}
			v.Items = append(v.Items, child)
			v.next++
			return true, nil
		},
		WriteElements: func(v *Collection, e *wire.Encoder) error {
			for _, child := range v.Items {
				if err := child.WriteToXML(e, wire.NamespaceTypes, item); err != nil {
					return err
				}
			}
			return nil
		},
		Children: func(v *Collection) []Value {
			return v.Items
		},
	}
}

// Append adds items to the collection.
func Append(c *Node[Collection], items ...Value) {
	c.Update(func(v *Collection) {
		v.Items = append(v.Items, items...)
	})
}

// RemoveAt removes the item at index i.
func RemoveAt(c *Node[Collection], i int) {
	c.Update(func(v *Collection) {
		if i < 0 || i >= len(v.Items) {
			return
		}
		v.Items = append(v.Items[:i:i], v.Items[i+1:]...)
	})
}

// Len returns the number of items in the collection.
func Len(c *Node[Collection]) int {
	return len(c.value.Items)
}

// NewMailboxCollection creates a recipient list of Mailbox elements.
func NewMailboxCollection(mailboxes ...*Node[EmailAddress]) *Node[Collection] {
	c := NewCollection("Mailbox", func() Value { return NewEmailAddress("", "") })
	for _, mb := range mailboxes {
		c.value.Items = append(c.value.Items, mb)
	}
	c.adoptChildren()
	return c
}

// NewAttendeeCollection creates an attendee list.
func NewAttendeeCollection(attendees ...*Node[Attendee]) *Node[Collection] {
	c := NewCollection("Attendee", func() Value { return NewAttendee("", "") })
	for _, a := range attendees {
		c.value.Items = append(c.value.Items, a)
	}
	c.adoptChildren()
	return c
}
