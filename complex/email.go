package complex

import (
	"encoding/xml"
	"time"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/wire"
)

// MailboxType classifies the address held by an EmailAddress.
type MailboxType string

const (
	MailboxTypeMailbox      MailboxType = "Mailbox"
	MailboxTypePublicDL     MailboxType = "PublicDL"
	MailboxTypePrivateDL    MailboxType = "PrivateDL"
	MailboxTypeContact      MailboxType = "Contact"
	MailboxTypePublicFolder MailboxType = "PublicFolder"
	MailboxTypeUnknown      MailboxType = "Unknown"
	MailboxTypeOneOff       MailboxType = "OneOff"
)

// EmailAddress is a mailbox: a display name, an address and, for
// contacts and private lists, the id of the backing item.
type EmailAddress struct {
	Name        string
	Address     string
	RoutingType string
	MailboxType MailboxType
	// ItemID is set by the server. Patch reads never touch it.
	ItemID *Node[ID]
}

// EmailAddressBehavior reads and writes a Mailbox element.
var EmailAddressBehavior = &Behavior[EmailAddress]{
	Reset: func(v *EmailAddress, patch bool) {
		if !patch {
			*v = EmailAddress{}
		}
	},
	TryReadElement: func(n *Node[EmailAddress], d *wire.Decoder, start xml.StartElement) (bool, error) {
		if start.Name.Local == "ItemId" {
			id := NewID("", "")
			if err := id.LoadFromXML(d, start); err != nil {
				return false, err
			}
			n.value.ItemID = id
			return true, nil
		}
		return readEmailField(&n.value, d, start)
	},
	TryReadElementToPatch: func(n *Node[EmailAddress], d *wire.Decoder, start xml.StartElement) (bool, error) {
		return readEmailField(&n.value, d, start)
	},
	WriteElements: func(v *EmailAddress, e *wire.Encoder) error {
		writeOptional(e, "Name", v.Name)
		writeOptional(e, "EmailAddress", v.Address)
		writeOptional(e, "RoutingType", v.RoutingType)
		writeOptional(e, "MailboxType", string(v.MailboxType))
		if v.ItemID != nil {
			return v.ItemID.WriteToXML(e, wire.NamespaceTypes, "ItemId")
		}
		return nil
	},
	Validate: func(v *EmailAddress) error {
		if v.Address == "" && v.ItemID == nil {
			return ews.NewValidationError("mailbox", "address or item id is required")
		}
		return nil
	},
	Children: func(v *EmailAddress) []Value {
		if v.ItemID == nil {
			return nil
		}
		return []Value{v.ItemID}
	},
}

func readEmailField(v *EmailAddress, d *wire.Decoder, start xml.StartElement) (bool, error) {
	var dst *string
	switch start.Name.Local {
	case "Name":
		dst = &v.Name
	case "EmailAddress":
		dst = &v.Address
	case "RoutingType":
		dst = &v.RoutingType
	case "MailboxType":
		s, err := d.ReadText(start)
		if err != nil {
			return false, err
		}
		v.MailboxType = MailboxType(s)
		return true, nil
	default:
		return false, nil
	}
	s, err := d.ReadText(start)
	if err != nil {
		return false, err
	}
	*dst = s
	return true, nil
}

func writeOptional(e *wire.Encoder, local, value string) {
	if value != "" {
		e.Element(wire.NamespaceTypes, local, value)
	}
}

// NewEmailAddress creates a mailbox node with routing type SMTP.
func NewEmailAddress(name, address string) *Node[EmailAddress] {
	v := EmailAddress{Name: name, Address: address}
	if address != "" {
		v.RoutingType = "SMTP"
	}
	return NewNode(EmailAddressBehavior, v)
}

// Recipient wraps a mailbox, as in the From and Sender properties.
type Recipient struct {
	Mailbox *Node[EmailAddress]
}

// RecipientBehavior reads and writes an element holding one Mailbox.
var RecipientBehavior = &Behavior[Recipient]{
	Reset: func(v *Recipient, patch bool) {
		if !patch {
			*v = Recipient{}
		}
	},
	TryReadElement: func(n *Node[Recipient], d *wire.Decoder, start xml.StartElement) (bool, error) {
		return readMailbox(&n.value.Mailbox, d, start, false)
	},
	TryReadElementToPatch: func(n *Node[Recipient], d *wire.Decoder, start xml.StartElement) (bool, error) {
		return readMailbox(&n.value.Mailbox, d, start, true)
	},
	WriteElements: func(v *Recipient, e *wire.Encoder) error {
		if v.Mailbox == nil {
			return nil
		}
		return v.Mailbox.WriteToXML(e, wire.NamespaceTypes, "Mailbox")
	},
	Validate: func(v *Recipient) error {
		if v.Mailbox == nil {
			return ews.NewValidationError("recipient", "mailbox is required")
		}
		return nil
	},
	Children: func(v *Recipient) []Value {
		if v.Mailbox == nil {
			return nil
		}
		return []Value{v.Mailbox}
	},
}

// NewRecipient creates an empty recipient node.
func NewRecipient() *Node[Recipient] {
	return NewNode(RecipientBehavior, Recipient{})
}

// NewRecipientFor creates a recipient node wrapping the given mailbox.
func NewRecipientFor(name, address string) *Node[Recipient] {
	return NewNode(RecipientBehavior, Recipient{Mailbox: NewEmailAddress(name, address)})
}

func readMailbox(dst **Node[EmailAddress], d *wire.Decoder, start xml.StartElement, patch bool) (bool, error) {
	if start.Name.Local != "Mailbox" {
		return false, nil
	}
	if patch && *dst != nil {
		return true, (*dst).LoadFromXMLToPatch(d, start)
	}
	mb := NewEmailAddress("", "")
	if err := mb.LoadFromXML(d, start); err != nil {
		return false, err
	}
	*dst = mb
	return true, nil
}

// ResponseType is an attendee's answer to a meeting request.
type ResponseType string

const (
	ResponseTypeUnknown            ResponseType = "Unknown"
	ResponseTypeOrganizer          ResponseType = "Organizer"
	ResponseTypeTentative          ResponseType = "Tentative"
	ResponseTypeAccept             ResponseType = "Accept"
	ResponseTypeDecline            ResponseType = "Decline"
	ResponseTypeNoResponseReceived ResponseType = "NoResponseReceived"
)

// Attendee is a meeting participant.
type Attendee struct {
	Mailbox          *Node[EmailAddress]
	ResponseType     ResponseType
	LastResponseTime time.Time
}

// AttendeeBehavior reads and writes an Attendee element.
var AttendeeBehavior = &Behavior[Attendee]{
	Reset: func(v *Attendee, patch bool) {
		if !patch {
			*v = Attendee{}
		}
	},
	TryReadElement: func(n *Node[Attendee], d *wire.Decoder, start xml.StartElement) (bool, error) {
		return readAttendeeField(n, d, start, false)
	},
	TryReadElementToPatch: func(n *Node[Attendee], d *wire.Decoder, start xml.StartElement) (bool, error) {
		return readAttendeeField(n, d, start, true)
	},
	WriteElements: func(v *Attendee, e *wire.Encoder) error {
		if v.Mailbox != nil {
			if err := v.Mailbox.WriteToXML(e, wire.NamespaceTypes, "Mailbox"); err != nil {
				return err
			}
		}
		writeOptional(e, "ResponseType", string(v.ResponseType))
		if !v.LastResponseTime.IsZero() {
			e.DateTime(wire.NamespaceTypes, "LastResponseTime", v.LastResponseTime)
		}
		return e.Err()
	},
	Validate: func(v *Attendee) error {
		if v.Mailbox == nil {
			return ews.NewValidationError("attendee", "mailbox is required")
		}
		return nil
	},
	Children: func(v *Attendee) []Value {
		if v.Mailbox == nil {
			return nil
		}
		return []Value{v.Mailbox}
	},
}

func readAttendeeField(n *Node[Attendee], d *wire.Decoder, start xml.StartElement, patch bool) (bool, error) {
	switch start.Name.Local {
	case "Mailbox":
		return readMailbox(&n.value.Mailbox, d, start, patch)
	case "ResponseType":
		s, err := d.ReadText(start)
		if err != nil {
			return false, err
		}
		n.value.ResponseType = ResponseType(s)
		return true, nil
	case "LastResponseTime":
		t, err := d.ReadDateTime(start)
		if err != nil {
			return false, err
		}
		n.value.LastResponseTime = t
		return true, nil
	}
	return false, nil
}

// NewAttendee creates an attendee node for the given mailbox.
func NewAttendee(name, address string) *Node[Attendee] {
	v := Attendee{}
	if name != "" || address != "" {
		v.Mailbox = NewEmailAddress(name, address)
	}
	return NewNode(AttendeeBehavior, v)
}
