package wire

import (
	"bufio"
	"encoding/base64"
	"encoding/xml"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"

	ews "github.com/meszmate/ews-go"
)

// Encoder writes namespace-prefixed XML to an io.Writer.
// It provides a fluent API for building request envelopes; the first error
// sticks and is reported by Flush and Err.
type Encoder struct {
	w       *bufio.Writer
	stack   []string
	inStart bool
	err     error
}

// NewEncoder creates a new Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriterSize(w, 4096)
	}
	return &Encoder{w: bw}
}

// Err returns the first error encountered while encoding.
func (e *Encoder) Err() error {
	return e.err
}

// Depth returns the number of open elements.
func (e *Encoder) Depth() int {
	return len(e.stack)
}

// Flush closes a pending start tag and flushes buffered data. It fails if
// elements are still open.
func (e *Encoder) Flush() error {
	e.closeStart()
	if e.err != nil {
		return e.err
	}
	if len(e.stack) > 0 {
		return &ews.SerializationError{
			Element: e.stack[len(e.stack)-1],
			Err:     errors.Errorf("%d element(s) left open", len(e.stack)),
		}
	}
	return errors.WithStack(e.w.Flush())
}

func (e *Encoder) fail(element string, err error) {
	if e.err == nil {
		e.err = &ews.SerializationError{Element: element, Err: err}
	}
}

func (e *Encoder) closeStart() {
	if e.inStart {
		_ = e.w.WriteByte('>')
		e.inStart = false
	}
}

func qualify(ns Namespace, local string) string {
	if p := ns.Prefix(); p != "" {
		return p + ":" + local
	}
	return local
}

// StartElement opens an element.
func (e *Encoder) StartElement(ns Namespace, local string) *Encoder {
	if e.err != nil {
		return e
	}
	if local == "" {
		e.fail("", errors.New("empty element name"))
		return e
	}
	e.closeStart()
	name := qualify(ns, local)
	_ = e.w.WriteByte('<')
	_, _ = e.w.WriteString(name)
	e.stack = append(e.stack, name)
	e.inStart = true
	return e
}

// Attr writes an attribute on the element that was just opened.
func (e *Encoder) Attr(name, value string) *Encoder {
	if e.err != nil {
		return e
	}
	if !e.inStart {
		e.fail(name, errors.New("attribute written outside a start tag"))
		return e
	}
	_ = e.w.WriteByte(' ')
	_, _ = e.w.WriteString(name)
	_, _ = e.w.WriteString(`="`)
	e.escape(value)
	_ = e.w.WriteByte('"')
	return e
}

// DeclareNamespaces writes xmlns declarations for the given namespaces on
// the element that was just opened.
func (e *Encoder) DeclareNamespaces(nss ...Namespace) *Encoder {
	for _, ns := range nss {
		e.Attr("xmlns:"+ns.Prefix(), ns.URI())
	}
	return e
}

// Text writes escaped character data.
func (e *Encoder) Text(s string) *Encoder {
	if e.err != nil {
		return e
	}
	if len(e.stack) == 0 {
		e.fail("", errors.New("text written outside an element"))
		return e
	}
	e.closeStart()
	e.escape(s)
	return e
}

// Base64 writes data as base64 character data.
func (e *Encoder) Base64(data []byte) *Encoder {
	return e.Text(base64.StdEncoding.EncodeToString(data))
}

// EndElement closes the innermost open element. An element without
// content is written as an empty tag.
func (e *Encoder) EndElement() *Encoder {
	if e.err != nil {
		return e
	}
	if len(e.stack) == 0 {
		e.fail("", errors.New("end element without matching start"))
		return e
	}
	name := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	if e.inStart {
		_, _ = e.w.WriteString("/>")
		e.inStart = false
		return e
	}
	_, _ = e.w.WriteString("</")
	_, _ = e.w.WriteString(name)
	_ = e.w.WriteByte('>')
	return e
}

// Element writes a complete element with text content.
func (e *Encoder) Element(ns Namespace, local, value string) *Encoder {
	return e.StartElement(ns, local).Text(value).EndElement()
}

// Bool writes an element holding an xs:boolean.
func (e *Encoder) Bool(ns Namespace, local string, v bool) *Encoder {
	return e.Element(ns, local, strconv.FormatBool(v))
}

// Int writes an element holding an integer.
func (e *Encoder) Int(ns Namespace, local string, v int) *Encoder {
	return e.Element(ns, local, strconv.Itoa(v))
}

// DateTime writes an element holding an xs:dateTime in UTC.
func (e *Encoder) DateTime(ns Namespace, local string, t time.Time) *Encoder {
	return e.Element(ns, local, t.UTC().Format(ews.DateTimeLayout))
}

// Raw writes pre-encoded markup.
func (e *Encoder) Raw(data []byte) *Encoder {
	if e.err != nil {
		return e
	}
	e.closeStart()
	_, _ = e.w.Write(data)
	return e
}

func (e *Encoder) escape(s string) {
	if err := xml.EscapeText(e.w, []byte(s)); err != nil {
		e.fail("", errors.Wrap(err, "escape"))
	}
}
