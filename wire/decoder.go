// Package wire provides the XML markup cursor used by every serializable
// value: a buffered, namespace-prefixed Encoder and a forward-only,
// namespace-aware Decoder.
package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"

	ews "github.com/meszmate/ews-go"
)

// Decoder reads XML tokens from an io.Reader. Comments, processing
// instructions, directives and whitespace-only character data between
// elements are skipped by Read.
type Decoder struct {
	d      *xml.Decoder
	peeked xml.Token
}

// NewDecoder creates a new Decoder reading from r. Documents declaring a
// non UTF-8 encoding are transcoded.
func NewDecoder(r io.Reader) *Decoder {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	return &Decoder{d: d}
}

// InputOffset returns the input stream byte offset of the decoder position.
func (d *Decoder) InputOffset() int64 {
	return d.d.InputOffset()
}

func (d *Decoder) next() (xml.Token, error) {
	if d.peeked != nil {
		tok := d.peeked
		d.peeked = nil
		return tok, nil
	}
	for {
		tok, err := d.d.Token()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, &ews.SerializationError{Err: errors.WithStack(err)}
		}
		switch t := tok.(type) {
		case xml.StartElement, xml.EndElement:
			return xml.CopyToken(t), nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) == 0 {
				continue
			}
			return t.Copy(), nil
		}
	}
}

// Read returns the next start element, end element or non-blank character
// data. It returns io.EOF at the end of the input.
func (d *Decoder) Read() (xml.Token, error) {
	return d.next()
}

// Peek returns the next token without consuming it.
func (d *Decoder) Peek() (xml.Token, error) {
	if d.peeked != nil {
		return d.peeked, nil
	}
	tok, err := d.next()
	if err != nil {
		return nil, err
	}
	d.peeked = tok
	return tok, nil
}

// ReadStartElement reads the next token and fails unless it opens the
// named element.
func (d *Decoder) ReadStartElement(ns Namespace, local string) (xml.StartElement, error) {
	tok, err := d.Read()
	if err != nil {
		return xml.StartElement{}, unexpectedEOF(local, err)
	}
	start, ok := tok.(xml.StartElement)
	if !ok || !Is(start.Name, ns, local) {
		return xml.StartElement{}, &ews.SerializationError{
			Element: local,
			Err:     errors.Errorf("expected start of %s, got %s", qualify(ns, local), describe(tok)),
		}
	}
	return start, nil
}

// ReadEndElement reads the next token and fails unless it closes start.
func (d *Decoder) ReadEndElement(start xml.StartElement) error {
	tok, err := d.Read()
	if err != nil {
		return unexpectedEOF(start.Name.Local, err)
	}
	end, ok := tok.(xml.EndElement)
	if !ok || end.Name != start.Name {
		return &ews.SerializationError{
			Element: start.Name.Local,
			Err:     errors.Errorf("expected end of %s, got %s", start.Name.Local, describe(tok)),
		}
	}
	return nil
}

// ReadText reads the character data of start up to its end element.
// Whitespace is preserved. Nested elements are an error.
func (d *Decoder) ReadText(start xml.StartElement) (string, error) {
	var b strings.Builder
	if d.peeked != nil {
		tok := d.peeked
		d.peeked = nil
		switch t := tok.(type) {
		case xml.EndElement:
			return "", nil
		case xml.CharData:
			b.Write(t)
		default:
			return "", &ews.SerializationError{
				Element: start.Name.Local,
				Err:     errors.Errorf("unexpected %s in text element", describe(tok)),
			}
		}
	}
	for {
		tok, err := d.d.Token()
		if err != nil {
			return "", unexpectedEOF(start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			return b.String(), nil
		case xml.StartElement:
			return "", &ews.SerializationError{
				Element: start.Name.Local,
				Err:     errors.Errorf("unexpected element %s in text element", t.Name.Local),
			}
		}
	}
}

// ReadInt reads the element text as an integer.
func (d *Decoder) ReadInt(start xml.StartElement) (int, error) {
	s, err := d.ReadText(start)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &ews.SerializationError{Element: start.Name.Local, Err: errors.WithStack(err)}
	}
	return n, nil
}

// ReadBool reads the element text as an xs:boolean.
func (d *Decoder) ReadBool(start xml.StartElement) (bool, error) {
	s, err := d.ReadText(start)
	if err != nil {
		return false, err
	}
	v, err := ParseBool(s)
	if err != nil {
		return false, &ews.SerializationError{Element: start.Name.Local, Err: err}
	}
	return v, nil
}

// ReadDateTime reads the element text as an xs:dateTime.
func (d *Decoder) ReadDateTime(start xml.StartElement) (time.Time, error) {
	s, err := d.ReadText(start)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &ews.SerializationError{Element: start.Name.Local, Err: errors.WithStack(err)}
	}
	return t, nil
}

// ReadBase64 reads the element text as base64 data.
func (d *Decoder) ReadBase64(start xml.StartElement) ([]byte, error) {
	s, err := d.ReadText(start)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, &ews.SerializationError{Element: start.Name.Local, Err: errors.WithStack(err)}
	}
	return data, nil
}

// Skip consumes tokens up to and including the end element matching start,
// which must be the most recently read start element.
func (d *Decoder) Skip(start xml.StartElement) error {
	depth := 1
	for depth > 0 {
		tok, err := d.Read()
		if err != nil {
			return unexpectedEOF(start.Name.Local, err)
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return nil
}

// ReadToDescendant reads forward until it opens the named element. It fails
// if the end of parent is reached first.
func (d *Decoder) ReadToDescendant(parent xml.StartElement, ns Namespace, local string) (xml.StartElement, error) {
	depth := 1
	for {
		tok, err := d.Read()
		if err != nil {
			return xml.StartElement{}, unexpectedEOF(local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if Is(t.Name, ns, local) {
				return t, nil
			}
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				return xml.StartElement{}, &ews.SerializationError{
					Element: parent.Name.Local,
					Err:     errors.Errorf("element %s not found", qualify(ns, local)),
				}
			}
		}
	}
}

// Is reports whether name is the element local in namespace ns.
func Is(name xml.Name, ns Namespace, local string) bool {
	return name.Local == local && name.Space == ns.URI()
}

// Attr returns the value of the unqualified attribute name on start.
func Attr(start xml.StartElement, name string) (string, bool) {
	for _, a := range start.Attr {
		if a.Name.Local == name && a.Name.Space == "" {
			return a.Value, true
		}
	}
	return "", false
}

// ParseBool parses an xs:boolean lexical value.
func ParseBool(s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, errors.Errorf("invalid boolean %q", s)
	}
}

func unexpectedEOF(element string, err error) error {
	if err == io.EOF {
		return &ews.SerializationError{Element: element, Err: io.ErrUnexpectedEOF}
	}
	var serr *ews.SerializationError
	if errors.As(err, &serr) {
		return err
	}
	return &ews.SerializationError{Element: element, Err: errors.WithStack(err)}
}

func describe(tok xml.Token) string {
	switch t := tok.(type) {
	case xml.StartElement:
		return "start of " + t.Name.Local
	case xml.EndElement:
		return "end of " + t.Name.Local
	case xml.CharData:
		return "text " + strconv.Quote(string(t))
	default:
		return "unexpected token"
	}
}
