// Package property implements the change-tracked store that holds the
// property values of one object and serializes them for create, update
// and load.
//
// Loading never marks a property modified; setting marks it modified only
// when the new value differs from the current one. A loaded object that
// is saved without changes therefore sends nothing, and an update sends
// exactly the properties the caller touched.
package property

import (
	"context"
	"encoding/xml"
	"io"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/complex"
	"github.com/meszmate/ews-go/schema"
	"github.com/meszmate/ews-go/wire"
)

// Owner is the object a Bag belongs to.
type Owner interface {
	// Schema returns the object's schema.
	Schema() *schema.Schema
	// IsNew reports whether the object has never been saved.
	IsNew() bool
	// Version returns the protocol version the object is used with.
	Version() ews.Version
}

// Loader is implemented by owners that can fetch a property from the
// server on first access.
type Loader interface {
	Load(ctx context.Context, defs ...*schema.PropertyDefinition) error
}

// Mutator is implemented by owners that forbid some changes depending on
// their lifecycle state. A non-nil error vetoes the change.
type Mutator interface {
	CheckMutation(def *schema.PropertyDefinition) error
}

// WriteMode selects what WriteToXML emits.
type WriteMode int

const (
	// WriteFullCreate writes every settable property with a value.
	WriteFullCreate WriteMode = iota
	// WriteFullUpdate writes every updatable property with a value, and
	// nothing at all when no property was modified.
	WriteFullUpdate
	// WritePatch writes one set or delete entry per modified property.
	WritePatch
)

func (m WriteMode) String() string {
	switch m {
	case WriteFullCreate:
		return "FullCreate"
	case WriteFullUpdate:
		return "FullUpdate"
	case WritePatch:
		return "Patch"
	default:
		return "Unknown"
	}
}

type set map[*schema.PropertyDefinition]struct{}

// Bag holds the property values of one object together with the sets of
// loaded and locally modified properties. A Bag is not safe for
// concurrent use.
type Bag struct {
	owner    Owner
	onChange func(def *schema.PropertyDefinition)

	values    map[*schema.PropertyDefinition]any
	loaded    set
	modified  set
	requested set
}

// New creates an empty Bag for owner. onChange, if not nil, is called
// each time a property becomes or stays modified through a real change.
func New(owner Owner, onChange func(def *schema.PropertyDefinition)) *Bag {
	return &Bag{
		owner:     owner,
		onChange:  onChange,
		values:    make(map[*schema.PropertyDefinition]any),
		loaded:    make(set),
		modified:  make(set),
		requested: make(set),
	}
}

func (b *Bag) check(def *schema.PropertyDefinition) error {
	if !b.owner.Schema().Contains(def) {
		return &ews.PropertyAccessError{
			Property: def.Name,
			Err:      errors.Wrapf(ews.ErrPropertyNotFound, "not part of %s", b.owner.Schema().Kind().Element),
		}
	}
	return def.CheckVersion(b.owner.Version())
}

// Get returns the value of def.
//
// A new object returns nil for unset properties, except structured
// properties flagged AutoInstantiateOnRead which are created empty. A
// bound object whose owner is a Loader fetches a missing property once;
// if it is still missing the result is a *ews.PropertyAccessError
// wrapping ews.ErrPropertyNotFound.
func (b *Bag) Get(ctx context.Context, def *schema.PropertyDefinition) (any, error) {
	if err := b.check(def); err != nil {
		return nil, err
	}
	if v, ok := b.values[def]; ok {
		return v, nil
	}

	if b.owner.IsNew() {
		if inst, ok := def.Codec.(schema.Instantiator); ok && def.Has(schema.AutoInstantiateOnRead) {
			v := inst.New()
			b.store(def, v)
			return v, nil
		}
		return nil, nil
	}

	if _, ok := b.loaded[def]; ok {
		return nil, nil
	}
	if loader, ok := b.owner.(Loader); ok {
		if _, tried := b.requested[def]; !tried {
			b.requested[def] = struct{}{}
			if err := loader.Load(ctx, def); err != nil {
				return nil, err
			}
			if v, ok := b.values[def]; ok {
				return v, nil
			}
			if _, ok := b.loaded[def]; ok {
				return nil, nil
			}
		}
	}
	return nil, &ews.PropertyAccessError{Property: def.Name, Err: ews.ErrPropertyNotFound}
}

func (b *Bag) writable(def *schema.PropertyDefinition) bool {
	if b.owner.IsNew() {
		return def.Has(schema.CanSet)
	}
	return def.Has(schema.CanUpdate)
}

// Set assigns value to def. A nil value removes the property. When value
// equals the current value nothing is stored or notified; otherwise def
// is marked modified.
func (b *Bag) Set(def *schema.PropertyDefinition, value any) error {
	if err := b.check(def); err != nil {
		return err
	}
	if !b.writable(def) {
		return &ews.PropertyAccessError{Property: def.Name, Err: ews.ErrPropertyReadOnly}
	}
	if value == nil && !b.owner.IsNew() && !def.Has(schema.CanDelete) {
		return &ews.PropertyAccessError{
			Property: def.Name,
			Err:      errors.Wrap(ews.ErrPropertyReadOnly, "cannot be deleted"),
		}
	}
	if m, ok := b.owner.(Mutator); ok {
		if err := m.CheckMutation(def); err != nil {
			return err
		}
	}

	current, has := b.values[def]
	if has && def.Codec.Equal(current, value) {
		return nil
	}
	if !has && value == nil {
		return nil
	}

	b.store(def, value)
	b.markModified(def)
	return nil
}

func (b *Bag) store(def *schema.PropertyDefinition, value any) {
	if old, ok := b.values[def].(complex.Value); ok && old != nil {
		old.SetChangeHandler(nil)
	}
	b.values[def] = value
	if cv, ok := value.(complex.Value); ok && cv != nil {
		cv.SetChangeHandler(func() {
			if b.writable(def) {
				b.markModified(def)
			}
		})
	}
}

func (b *Bag) markModified(def *schema.PropertyDefinition) {
	b.modified[def] = struct{}{}
	if b.onChange != nil {
		b.onChange(def)
	}
}

// Has reports whether def holds a value.
func (b *Bag) Has(def *schema.PropertyDefinition) bool {
	_, ok := b.values[def]
	return ok
}

// IsPropertyUpdated reports whether def was modified since the last load
// or save.
func (b *Bag) IsPropertyUpdated(def *schema.PropertyDefinition) bool {
	_, ok := b.modified[def]
	return ok
}

// IsPropertyLoaded reports whether def was returned by the server.
func (b *Bag) IsPropertyLoaded(def *schema.PropertyDefinition) bool {
	_, ok := b.loaded[def]
	return ok
}

// IsDirty reports whether any property was modified.
func (b *Bag) IsDirty() bool {
	return len(b.modified) > 0
}

// Modified returns the modified properties in schema order.
func (b *Bag) Modified() []*schema.PropertyDefinition {
	return b.ordered(b.modified)
}

// Loaded returns the loaded properties in schema order.
func (b *Bag) Loaded() []*schema.PropertyDefinition {
	return b.ordered(b.loaded)
}

func (b *Bag) ordered(s set) []*schema.PropertyDefinition {
	defs := maps.Keys(s)
	sc := b.owner.Schema()
	sort.Slice(defs, func(i, j int) bool {
		return sc.Index(defs[i]) < sc.Index(defs[j])
	})
	return defs
}

// ClearChangeLog empties the modified set, typically after a save.
func (b *Bag) ClearChangeLog() {
	maps.Clear(b.modified)
}

// Validate checks every value that would be written.
func (b *Bag) Validate() error {
	for _, def := range b.owner.Schema().Definitions() {
		v, ok := b.values[def]
		if !ok || v == nil {
			continue
		}
		if err := def.Codec.Validate(v); err != nil {
			return &ews.ValidationError{Target: "property " + def.Name, Reason: "invalid value", Err: err}
		}
	}
	return nil
}

// WriteToXML writes the bag in the given mode. Full modes write the
// object element with its properties; WritePatch writes the bare list of
// set and delete entries that goes inside an Updates element.
func (b *Bag) WriteToXML(e *wire.Encoder, mode WriteMode) error {
	kind := b.owner.Schema().Kind()
	switch mode {
	case WriteFullCreate, WriteFullUpdate:
		if mode == WriteFullUpdate && !b.IsDirty() {
			return nil
		}
		need := schema.CanSet
		if mode == WriteFullUpdate {
			need = schema.CanUpdate
		}
		e.StartElement(wire.NamespaceTypes, kind.Element)
		for _, def := range b.owner.Schema().Definitions() {
			v, ok := b.values[def]
			if !ok || v == nil || !def.Has(need) {
				continue
			}
			if def.Has(schema.MustBeExplicitlySet) && !b.IsPropertyUpdated(def) {
				continue
			}
			if err := def.Codec.Write(e, def.Element, v); err != nil {
				return err
			}
		}
		e.EndElement()
	case WritePatch:
		for _, def := range b.Modified() {
			v := b.values[def]
			switch {
			case v != nil && def.Has(schema.CanUpdate):
				e.StartElement(wire.NamespaceTypes, kind.SetField)
				writeFieldURI(e, def)
				e.StartElement(wire.NamespaceTypes, kind.Element)
				if err := def.Codec.Write(e, def.Element, v); err != nil {
					return err
				}
				e.EndElement()
				e.EndElement()
			case v == nil && def.Has(schema.CanDelete):
				e.StartElement(wire.NamespaceTypes, kind.DeleteField)
				writeFieldURI(e, def)
				e.EndElement()
			}
		}
	default:
		return &ews.SerializationError{Element: kind.Element, Err: errors.Errorf("unknown write mode %d", mode)}
	}
	return e.Err()
}

func writeFieldURI(e *wire.Encoder, def *schema.PropertyDefinition) {
	e.StartElement(wire.NamespaceTypes, "FieldURI").Attr("FieldURI", def.URI).EndElement()
}

// LoadFromXML reads the properties inside the object element opened by
// start. Values are stored directly and never marked modified. When
// clearExisting is true the bag is emptied first; otherwise existing
// structured values are patched in place. Unknown elements are skipped.
func (b *Bag) LoadFromXML(d *wire.Decoder, start xml.StartElement, clearExisting bool) error {
	if clearExisting {
		for _, v := range b.values {
			if cv, ok := v.(complex.Value); ok && cv != nil {
				cv.SetChangeHandler(nil)
			}
		}
		maps.Clear(b.values)
		maps.Clear(b.loaded)
		maps.Clear(b.modified)
	}

	sc := b.owner.Schema()
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
			def, ok := sc.ByElement(t.Name.Local)
			if !ok {
				if err := d.Skip(t); err != nil {
					return err
				}
				continue
			}
			if err := b.loadProperty(d, t, def, clearExisting); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (b *Bag) loadProperty(d *wire.Decoder, start xml.StartElement, def *schema.PropertyDefinition, clearExisting bool) error {
	if cv, ok := b.values[def].(complex.Value); ok && cv != nil && !clearExisting {
		if err := cv.LoadFromXMLToPatch(d, start); err != nil {
			return err
		}
	} else {
		v, err := def.Codec.Read(d, start)
		if err != nil {
			return err
		}
		b.store(def, v)
	}
	b.loaded[def] = struct{}{}
	delete(b.modified, def)
	return nil
}
