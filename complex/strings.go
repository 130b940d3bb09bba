package complex

import (
	"encoding/xml"

	"github.com/meszmate/ews-go/wire"
)

// StringList is an ordered list of strings written as String children,
// as in the Categories property.
type StringList struct {
	Items []string
}

// StringListBehavior reads and writes a list of String elements. Every
// load replaces the list.
var StringListBehavior = &Behavior[StringList]{
	Reset: func(v *StringList, _ bool) {
		v.Items = nil
	},
	TryReadElement: func(n *Node[StringList], d *wire.Decoder, start xml.StartElement) (bool, error) {
		if start.Name.Local != "String" {
			return false, nil
		}
		s, err := d.ReadText(start)
		if err != nil {
			return false, err
		}
		n.value.Items = append(n.value.Items, s)
		return true, nil
	},
	WriteElements: func(v *StringList, e *wire.Encoder) error {
		for _, s := range v.Items {
			e.Element(wire.NamespaceTypes, "String", s)
		}
		return e.Err()
	},
}

// NewStringList creates a string list node.
func NewStringList(items ...string) *Node[StringList] {
	return NewNode(StringListBehavior, StringList{Items: items})
}
