package complex

import (
	"encoding/xml"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/wire"
)

// ID identifies an item, folder or attachment on the server. It is written
// as ItemId, FolderId, ParentFolderId and similar elements.
type ID struct {
	ID        string
	ChangeKey string
}

// IDBehavior reads and writes the Id and ChangeKey attributes.
var IDBehavior = &Behavior[ID]{
	ReadAttributes: func(v *ID, start xml.StartElement) error {
		v.ID, _ = wire.Attr(start, "Id")
		v.ChangeKey, _ = wire.Attr(start, "ChangeKey")
		return nil
	},
	WriteAttributes: func(v *ID, e *wire.Encoder) {
		e.Attr("Id", v.ID)
		if v.ChangeKey != "" {
			e.Attr("ChangeKey", v.ChangeKey)
		}
	},
	Validate: func(v *ID) error {
		if v.ID == "" {
			return ews.NewValidationError("id", "Id must not be empty")
		}
		return nil
	},
}

// NewID creates an id node.
func NewID(id, changeKey string) *Node[ID] {
	return NewNode(IDBehavior, ID{ID: id, ChangeKey: changeKey})
}

// IDOf returns the id value held by v, or false if v is not an id node.
func IDOf(v Value) (ID, bool) {
	n, ok := v.(*Node[ID])
	if !ok || n == nil {
		return ID{}, false
	}
	return n.Get(), true
}
