package client

import (
	"strconv"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/complex"
	"github.com/meszmate/ews-go/schema"
	"github.com/meszmate/ews-go/wire"
)

// BaseShape selects the base set of properties returned for an object.
type BaseShape string

const (
	IDOnly        BaseShape = "IdOnly"
	Default       BaseShape = "Default"
	AllProperties BaseShape = "AllProperties"
)

// PropertySet shapes the objects returned by a call: a base shape plus
// additional properties.
type PropertySet struct {
	BaseShape  BaseShape
	Additional []*schema.PropertyDefinition
	// BodyType, when set, asks for bodies in this format.
	BodyType complex.BodyType
}

// NewPropertySet creates a property set.
func NewPropertySet(base BaseShape, additional ...*schema.PropertyDefinition) PropertySet {
	return PropertySet{BaseShape: base, Additional: additional}
}

// validate checks that every additional property exists in v.
func (ps PropertySet) validate(v ews.Version) error {
	switch ps.BaseShape {
	case IDOnly, Default, AllProperties:
	default:
		return ews.NewValidationError("property set", "unknown base shape %q", ps.BaseShape)
	}
	for _, def := range ps.Additional {
		if err := def.CheckVersion(v); err != nil {
			return err
		}
	}
	return nil
}

// write writes the shape element local ("ItemShape" or "FolderShape").
func (ps PropertySet) write(e *wire.Encoder, local string) {
	e.StartElement(wire.NamespaceMessages, local)
	e.Element(wire.NamespaceTypes, "BaseShape", string(ps.BaseShape))
	if ps.BodyType != "" {
		e.Element(wire.NamespaceTypes, "BodyType", string(ps.BodyType))
	}
	if len(ps.Additional) > 0 {
		e.StartElement(wire.NamespaceTypes, "AdditionalProperties")
		for _, def := range ps.Additional {
			e.StartElement(wire.NamespaceTypes, "FieldURI").Attr("FieldURI", def.URI).EndElement()
		}
		e.EndElement()
	}
	e.EndElement()
}

// FolderID names a folder either by server id or as a distinguished
// folder, optionally in another mailbox.
type FolderID struct {
	ID            string
	ChangeKey     string
	Distinguished ews.WellKnownFolder
	// Mailbox is the SMTP address owning a distinguished folder.
	Mailbox string
}

// WellKnown returns the id of a distinguished folder.
func WellKnown(f ews.WellKnownFolder) FolderID {
	return FolderID{Distinguished: f}
}

// FolderIDFrom converts a server id.
func FolderIDFrom(id complex.ID) FolderID {
	return FolderID{ID: id.ID, ChangeKey: id.ChangeKey}
}

func (f FolderID) validate() error {
	if f.ID == "" && f.Distinguished == "" {
		return ews.NewValidationError("folder id", "Id or distinguished name required")
	}
	if f.ID != "" && f.Distinguished != "" {
		return ews.NewValidationError("folder id", "Id and distinguished name are exclusive")
	}
	return nil
}

func (f FolderID) write(e *wire.Encoder) {
	if f.Distinguished != "" {
		e.StartElement(wire.NamespaceTypes, "DistinguishedFolderId").Attr("Id", string(f.Distinguished))
		if f.Mailbox != "" {
			e.StartElement(wire.NamespaceTypes, "Mailbox")
			e.Element(wire.NamespaceTypes, "EmailAddress", f.Mailbox)
			e.EndElement()
		}
		e.EndElement()
		return
	}
	e.StartElement(wire.NamespaceTypes, "FolderId").Attr("Id", f.ID)
	if f.ChangeKey != "" {
		e.Attr("ChangeKey", f.ChangeKey)
	}
	e.EndElement()
}

func writeFolderIDs(e *wire.Encoder, ns wire.Namespace, local string, ids []FolderID) {
	e.StartElement(ns, local)
	for _, id := range ids {
		id.write(e)
	}
	e.EndElement()
}

// MessageDisposition tells the server what to do with a created or
// updated message.
type MessageDisposition string

const (
	SaveOnly        MessageDisposition = "SaveOnly"
	SendOnly        MessageDisposition = "SendOnly"
	SendAndSaveCopy MessageDisposition = "SendAndSaveCopy"
)

// SendInvitations tells the server whether to send meeting invitations
// or updates for calendar items.
type SendInvitations string

const (
	SendToNone               SendInvitations = "SendToNone"
	SendOnlyToAll            SendInvitations = "SendOnlyToAll"
	SendToAllAndSaveCopy     SendInvitations = "SendToAllAndSaveCopy"
	SendOnlyToChanged        SendInvitations = "SendOnlyToChanged"
	SendToChangedAndSaveCopy SendInvitations = "SendToChangedAndSaveCopy"
)

// ConflictResolution selects how an update resolves concurrent changes.
type ConflictResolution string

const (
	NeverOverwrite  ConflictResolution = "NeverOverwrite"
	AutoResolve     ConflictResolution = "AutoResolve"
	AlwaysOverwrite ConflictResolution = "AlwaysOverwrite"
)

// DeleteMode selects how objects are deleted.
type DeleteMode string

const (
	HardDelete         DeleteMode = "HardDelete"
	SoftDelete         DeleteMode = "SoftDelete"
	MoveToDeletedItems DeleteMode = "MoveToDeletedItems"
)

// Traversal selects the depth of a search.
type Traversal string

const (
	Shallow Traversal = "Shallow"
	Deep    Traversal = "Deep"
)

// ItemView pages the results of FindItems.
type ItemView struct {
	// PageSize is the maximum number of items returned. Zero means no limit.
	PageSize int
	// Offset is the index of the first item returned.
	Offset int
	// Traversal defaults to Shallow.
	Traversal Traversal
	// Shape defaults to IdOnly.
	Shape PropertySet
}

// NewItemView creates a view returning up to pageSize items.
func NewItemView(pageSize int) ItemView {
	return ItemView{PageSize: pageSize, Shape: NewPropertySet(IDOnly)}
}

func (v ItemView) validate(ver ews.Version) error {
	if v.PageSize < 0 {
		return ews.NewValidationError("item view", "page size must not be negative")
	}
	if v.Offset < 0 {
		return ews.NewValidationError("item view", "offset must not be negative")
	}
	switch v.Traversal {
	case "", Shallow, Deep:
	default:
		return ews.NewValidationError("item view", "unknown traversal %q", v.Traversal)
	}
	return v.shape().validate(ver)
}

func (v ItemView) shape() PropertySet {
	if v.Shape.BaseShape == "" {
		s := v.Shape
		s.BaseShape = IDOnly
		return s
	}
	return v.Shape
}

func (v ItemView) traversal() Traversal {
	if v.Traversal == "" {
		return Shallow
	}
	return v.Traversal
}

func (v ItemView) write(e *wire.Encoder) {
	e.StartElement(wire.NamespaceMessages, "IndexedPageItemView")
	if v.PageSize > 0 {
		e.Attr("MaxEntriesReturned", strconv.Itoa(v.PageSize))
	}
	e.Attr("Offset", strconv.Itoa(v.Offset)).Attr("BasePoint", "Beginning")
	e.EndElement()
}

func writeIDs(e *wire.Encoder, local string, ids []complex.ID) error {
	e.StartElement(wire.NamespaceMessages, local)
	for _, id := range ids {
		if err := complex.NewID(id.ID, id.ChangeKey).WriteToXML(e, wire.NamespaceTypes, "ItemId"); err != nil {
			return err
		}
	}
	e.EndElement()
	return e.Err()
}

func validateIDs(kind string, ids []complex.ID) error {
	if len(ids) == 0 {
		return ews.NewValidationError(kind, "at least one id is required")
	}
	return validateTargets(len(ids), kind, func(i int) error {
		return complex.NewID(ids[i].ID, ids[i].ChangeKey).Validate()
	})
}
