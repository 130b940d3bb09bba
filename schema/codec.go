package schema

import (
	"encoding/xml"
	"strconv"
	"time"

	"github.com/pkg/errors"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/complex"
	"github.com/meszmate/ews-go/wire"
)

// Codec converts one property's values to and from the wire.
type Codec interface {
	// Read decodes the element opened by start.
	Read(d *wire.Decoder, start xml.StartElement) (any, error)
	// Write encodes v as element local in the types namespace.
	Write(e *wire.Encoder, local string, v any) error
	// Equal reports whether a and b hold the same value.
	Equal(a, b any) bool
	// Validate checks v before it is written.
	Validate(v any) error
}

// Instantiator is implemented by codecs of structured values that can be
// created empty.
type Instantiator interface {
	New() complex.Value
}

func typeError(local string, want string, v any) error {
	return &ews.SerializationError{Element: local, Err: errors.Errorf("expected %s, got %T", want, v)}
}

type stringCodec struct{}

// String is the codec of xs:string properties.
var String Codec = stringCodec{}

func (stringCodec) Read(d *wire.Decoder, start xml.StartElement) (any, error) {
	return d.ReadText(start)
}

func (stringCodec) Write(e *wire.Encoder, local string, v any) error {
	s, ok := v.(string)
	if !ok {
		return typeError(local, "string", v)
	}
	return e.Element(wire.NamespaceTypes, local, s).Err()
}

func (stringCodec) Equal(a, b any) bool { return a == b }

func (stringCodec) Validate(v any) error {
	if _, ok := v.(string); !ok {
		return ews.NewValidationError("property", "expected string, got %T", v)
	}
	return nil
}

type intCodec struct{}

// Int is the codec of integer properties.
var Int Codec = intCodec{}

func (intCodec) Read(d *wire.Decoder, start xml.StartElement) (any, error) {
	return d.ReadInt(start)
}

func (intCodec) Write(e *wire.Encoder, local string, v any) error {
	n, ok := v.(int)
	if !ok {
		return typeError(local, "int", v)
	}
	return e.Int(wire.NamespaceTypes, local, n).Err()
}

func (intCodec) Equal(a, b any) bool { return a == b }

func (intCodec) Validate(v any) error {
	if _, ok := v.(int); !ok {
		return ews.NewValidationError("property", "expected int, got %T", v)
	}
	return nil
}

type boolCodec struct{}

// Bool is the codec of xs:boolean properties.
var Bool Codec = boolCodec{}

func (boolCodec) Read(d *wire.Decoder, start xml.StartElement) (any, error) {
	return d.ReadBool(start)
}

func (boolCodec) Write(e *wire.Encoder, local string, v any) error {
	b, ok := v.(bool)
	if !ok {
		return typeError(local, "bool", v)
	}
	return e.Bool(wire.NamespaceTypes, local, b).Err()
}

func (boolCodec) Equal(a, b any) bool { return a == b }

func (boolCodec) Validate(v any) error {
	if _, ok := v.(bool); !ok {
		return ews.NewValidationError("property", "expected bool, got %T", v)
	}
	return nil
}

type dateTimeCodec struct{}

// DateTime is the codec of xs:dateTime properties. Values compare equal
// when they denote the same instant.
var DateTime Codec = dateTimeCodec{}

func (dateTimeCodec) Read(d *wire.Decoder, start xml.StartElement) (any, error) {
	return d.ReadDateTime(start)
}

func (dateTimeCodec) Write(e *wire.Encoder, local string, v any) error {
	t, ok := v.(time.Time)
	if !ok {
		return typeError(local, "time.Time", v)
	}
	return e.DateTime(wire.NamespaceTypes, local, t).Err()
}

func (dateTimeCodec) Equal(a, b any) bool {
	ta, ok := a.(time.Time)
	if !ok {
		return a == b
	}
	tb, ok := b.(time.Time)
	return ok && ta.Equal(tb)
}

func (dateTimeCodec) Validate(v any) error {
	if _, ok := v.(time.Time); !ok {
		return ews.NewValidationError("property", "expected time.Time, got %T", v)
	}
	return nil
}

type enumCodec struct {
	values map[string]struct{}
}

// Enum returns a string codec restricted to the given values.
func Enum(values ...string) Codec {
	c := enumCodec{values: make(map[string]struct{}, len(values))}
	for _, v := range values {
		c.values[v] = struct{}{}
	}
	return c
}

func (enumCodec) Read(d *wire.Decoder, start xml.StartElement) (any, error) {
	return d.ReadText(start)
}

func (c enumCodec) Write(e *wire.Encoder, local string, v any) error {
	return stringCodec{}.Write(e, local, v)
}

func (enumCodec) Equal(a, b any) bool { return a == b }

func (c enumCodec) Validate(v any) error {
	s, ok := v.(string)
	if !ok {
		return ews.NewValidationError("property", "expected string, got %T", v)
	}
	if _, ok := c.values[s]; !ok {
		return ews.NewValidationError("property", "%q is not an allowed value", s)
	}
	return nil
}

type complexCodec struct {
	kind    string
	factory complex.Factory
}

// Complex returns the codec of structured values of the given registered
// kind. It panics if the kind is unknown, as schemas are static.
func Complex(kind string) Codec {
	f, ok := complex.Lookup(kind)
	if !ok {
		panic("schema: unknown complex kind " + strconv.Quote(kind))
	}
	return complexCodec{kind: kind, factory: f}
}

func (c complexCodec) New() complex.Value {
	return c.factory()
}

func (c complexCodec) Read(d *wire.Decoder, start xml.StartElement) (any, error) {
	v := c.factory()
	if err := v.LoadFromXML(d, start); err != nil {
		return nil, err
	}
	return v, nil
}

func (c complexCodec) Write(e *wire.Encoder, local string, v any) error {
	cv, ok := v.(complex.Value)
	if !ok {
		return typeError(local, c.kind, v)
	}
	return cv.WriteToXML(e, wire.NamespaceTypes, local)
}

func (complexCodec) Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ca, ok := a.(complex.Value)
	if !ok {
		return false
	}
	cb, ok := b.(complex.Value)
	if !ok {
		return false
	}
	return complex.Equal(ca, cb)
}

func (c complexCodec) Validate(v any) error {
	cv, ok := v.(complex.Value)
	if !ok {
		return ews.NewValidationError(c.kind, "expected structured value, got %T", v)
	}
	return cv.Validate()
}
