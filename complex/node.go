// Package complex implements structured values that read themselves from
// and write themselves to the wire: ids, bodies, recipients, recurrences,
// collections, dictionaries and search filters.
//
// Every kind is a Node configured by a Behavior. The traversal that walks
// an element's attributes, text and children is written once in Node; a
// kind only supplies the hooks it needs.
package complex

import (
	"bytes"
	"encoding/xml"
	"io"

	"github.com/pkg/errors"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/wire"
)

// Value is a structured value held by a property store or a parent node.
type Value interface {
	// LoadFromXML replaces the value with the element opened by start.
	LoadFromXML(d *wire.Decoder, start xml.StartElement) error
	// LoadFromXMLToPatch merges the element opened by start into the
	// current value, leaving fields a patch must not touch unchanged.
	LoadFromXMLToPatch(d *wire.Decoder, start xml.StartElement) error
	// WriteToXML writes the value as element local in namespace ns.
	WriteToXML(e *wire.Encoder, ns wire.Namespace, local string) error
	// Validate checks the value's own invariants and those of its children.
	Validate() error
	// SetChangeHandler registers the single callback invoked when the value
	// changes. Passing nil detaches the value from its owner.
	SetChangeHandler(fn func())
}

// Behavior holds the hooks that make up one kind of node. Nil hooks are
// skipped: a nil TryReadElement skips every child element, and a nil
// TryReadElementToPatch falls back to TryReadElement.
type Behavior[T any] struct {
	// Reset prepares the value for a load. patch is true for patch loads.
	Reset func(v *T, patch bool)
	// ReadAttributes reads the attributes of the node's start element.
	ReadAttributes func(v *T, start xml.StartElement) error
	// ReadText receives each run of character data inside the element.
	ReadText func(v *T, text string) error
	// TryReadElement consumes the child element opened by start and reports
	// whether it was recognized. Unrecognized children are skipped.
	TryReadElement func(n *Node[T], d *wire.Decoder, start xml.StartElement) (bool, error)
	// TryReadElementToPatch is TryReadElement for patch loads.
	TryReadElementToPatch func(n *Node[T], d *wire.Decoder, start xml.StartElement) (bool, error)
	// WriteAttributes writes attributes on the node's start element.
	WriteAttributes func(v *T, e *wire.Encoder)
	// WriteElements writes text and child elements.
	WriteElements func(v *T, e *wire.Encoder) error
	// Validate enforces node-local invariants before a write.
	Validate func(v *T) error
	// Children lists the nested values held by v. They are validated with
	// the node and their change notifications are forwarded to it.
	Children func(v *T) []Value
}

// Node is a structured value of kind T.
type Node[T any] struct {
	value    T
	behavior *Behavior[T]
	onChange func()
}

// NewNode creates a node with the given behavior and initial value.
func NewNode[T any](b *Behavior[T], v T) *Node[T] {
	n := &Node[T]{value: v, behavior: b}
	n.adoptChildren()
	return n
}

// Get returns a copy of the node's value.
func (n *Node[T]) Get() T {
	return n.value
}

// Set replaces the value. The change handler runs only if the new value
// encodes differently from the old one.
func (n *Node[T]) Set(v T) {
	before := n.encoded()
	n.value = v
	n.adoptChildren()
	if !bytes.Equal(before, n.encoded()) {
		n.changed()
	}
}

// Update mutates the value in place through fn and raises the change
// handler when the encoded value differs afterwards.
func (n *Node[T]) Update(fn func(v *T)) {
	before := n.encoded()
	fn(&n.value)
	n.adoptChildren()
	if !bytes.Equal(before, n.encoded()) {
		n.changed()
	}
}

// SetChangeHandler implements Value.
func (n *Node[T]) SetChangeHandler(fn func()) {
	n.onChange = fn
}

func (n *Node[T]) changed() {
	if n.onChange != nil {
		n.onChange()
	}
}

func (n *Node[T]) adoptChildren() {
	if n.behavior.Children == nil {
		return
	}
	for _, child := range n.behavior.Children(&n.value) {
		child.SetChangeHandler(n.changed)
	}
}

// LoadFromXML implements Value.
func (n *Node[T]) LoadFromXML(d *wire.Decoder, start xml.StartElement) error {
	return n.load(d, start, false)
}

// LoadFromXMLToPatch implements Value.
func (n *Node[T]) LoadFromXMLToPatch(d *wire.Decoder, start xml.StartElement) error {
	return n.load(d, start, true)
}

func (n *Node[T]) load(d *wire.Decoder, start xml.StartElement, patch bool) error {
	b := n.behavior
	if b.Reset != nil {
		b.Reset(&n.value, patch)
	}
	if b.ReadAttributes != nil {
		if err := b.ReadAttributes(&n.value, start); err != nil {
			return wrapRead(start, err)
		}
	}

	tryRead := b.TryReadElement
	if patch && b.TryReadElementToPatch != nil {
		tryRead = b.TryReadElementToPatch
	}

	for {
		tok, err := d.Read()
		if err != nil {
			if err == io.EOF {
				return &ews.SerializationError{Element: start.Name.Local, Err: io.ErrUnexpectedEOF}
			}
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			handled := false
			if tryRead != nil {
				handled, err = tryRead(n, d, t)
				if err != nil {
					return wrapRead(t, err)
				}
			}
			if !handled {
				if err := d.Skip(t); err != nil {
					return err
				}
			}
		case xml.CharData:
			if b.ReadText != nil {
				if err := b.ReadText(&n.value, string(t)); err != nil {
					return wrapRead(start, err)
				}
			}
		case xml.EndElement:
			if t.Name != start.Name {
				return &ews.SerializationError{
					Element: start.Name.Local,
					Err:     errors.Errorf("unexpected end of %s", t.Name.Local),
				}
			}
			n.adoptChildren()
			return nil
		}
	}
}

// WriteToXML implements Value.
func (n *Node[T]) WriteToXML(e *wire.Encoder, ns wire.Namespace, local string) error {
	b := n.behavior
	e.StartElement(ns, local)
	if b.WriteAttributes != nil {
		b.WriteAttributes(&n.value, e)
	}
	if b.WriteElements != nil {
		if err := b.WriteElements(&n.value, e); err != nil {
			return err
		}
	}
	e.EndElement()
	return e.Err()
}

// Validate implements Value.
func (n *Node[T]) Validate() error {
	b := n.behavior
	if b.Validate != nil {
		if err := b.Validate(&n.value); err != nil {
			return err
		}
	}
	if b.Children != nil {
		for _, child := range b.Children(&n.value) {
			if err := child.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// encoded returns the canonical encoding used to detect changes.
func (n *Node[T]) encoded() []byte {
	b, _ := encode(n)
	return b
}

// Equal reports whether a and b encode to the same markup. Two nil values
// are equal; a nil and a non-nil value are not.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}
	ea, ok := encode(a)
	if !ok {
		return false
	}
	eb, ok := encode(b)
	if !ok {
		return false
	}
	return bytes.Equal(ea, eb)
}

func encode(v Value) ([]byte, bool) {
	var buf bytes.Buffer
	e := wire.NewEncoder(&buf)
	if err := v.WriteToXML(e, wire.NamespaceNone, "v"); err != nil {
		return nil, false
	}
	if err := e.Flush(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func wrapRead(start xml.StartElement, err error) error {
	var serr *ews.SerializationError
	if errors.As(err, &serr) {
		return err
	}
	return &ews.SerializationError{Element: start.Name.Local, Err: err}
}
