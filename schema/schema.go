// Package schema describes the properties of each object kind: their
// wire names, minimum versions, capabilities and value codecs.
package schema

import (
	"fmt"
)

// Kind names the wire elements of one object kind.
type Kind struct {
	// Element wraps the object's properties, e.g. "Message".
	Element string
	// SetField and DeleteField are the update entries, e.g. "SetItemField".
	SetField    string
	DeleteField string
}

// Schema is the ordered set of property definitions of an object kind,
// inherited ones first. A Schema is immutable once built.
type Schema struct {
	kind      Kind
	defs      []*PropertyDefinition
	index     map[*PropertyDefinition]int
	byName    map[string]*PropertyDefinition
	byElement map[string]*PropertyDefinition
}

// New builds a schema. It panics on duplicate names or elements.
func New(kind Kind, defs ...*PropertyDefinition) *Schema {
	s := &Schema{
		kind:      kind,
		index:     make(map[*PropertyDefinition]int),
		byName:    make(map[string]*PropertyDefinition),
		byElement: make(map[string]*PropertyDefinition),
	}
	for _, d := range defs {
		s.add(d)
	}
	return s
}

// Extend builds a schema holding every property of parent followed by defs.
func Extend(parent *Schema, kind Kind, defs ...*PropertyDefinition) *Schema {
	all := make([]*PropertyDefinition, 0, len(parent.defs)+len(defs))
	all = append(all, parent.defs...)
	all = append(all, defs...)
	return New(kind, all...)
}

func (s *Schema) add(d *PropertyDefinition) {
	if _, dup := s.byName[d.Name]; dup {
		panic(fmt.Sprintf("schema: duplicate property %q in %s", d.Name, s.kind.Element))
	}
	if _, dup := s.byElement[d.Element]; dup {
		panic(fmt.Sprintf("schema: duplicate element %q in %s", d.Element, s.kind.Element))
	}
	s.index[d] = len(s.defs)
	s.defs = append(s.defs, d)
	s.byName[d.Name] = d
	s.byElement[d.Element] = d
}

// Kind returns the schema's wire element names.
func (s *Schema) Kind() Kind {
	return s.kind
}

// Definitions returns the definitions in schema order.
func (s *Schema) Definitions() []*PropertyDefinition {
	out := make([]*PropertyDefinition, len(s.defs))
	copy(out, s.defs)
	return out
}

// Len returns the number of definitions.
func (s *Schema) Len() int {
	return len(s.defs)
}

// ByName finds a definition by property name.
func (s *Schema) ByName(name string) (*PropertyDefinition, bool) {
	d, ok := s.byName[name]
	return d, ok
}

// ByElement finds a definition by wire element name.
func (s *Schema) ByElement(local string) (*PropertyDefinition, bool) {
	d, ok := s.byElement[local]
	return d, ok
}

// Contains reports whether d belongs to the schema.
func (s *Schema) Contains(d *PropertyDefinition) bool {
	_, ok := s.index[d]
	return ok
}

// Index returns the position of d in schema order, or -1.
func (s *Schema) Index(d *PropertyDefinition) int {
	if i, ok := s.index[d]; ok {
		return i
	}
	return -1
}
