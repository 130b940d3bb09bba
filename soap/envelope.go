// Package soap writes request envelopes and reads response envelopes,
// including the server version header and SOAP faults.
package soap

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"

	"github.com/pkg/errors"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/wire"
)

// Header holds the values written into a request's SOAP header.
type Header struct {
	// Version is sent as RequestServerVersion.
	Version ews.Version
	// ImpersonatedUser, when set, is the SMTP address of the mailbox the
	// call acts as.
	ImpersonatedUser string
	// TimeZone, when set, is the id of the time zone the server should
	// use to interpret date values.
	TimeZone string
}

// BodyWriter writes the content of the SOAP body.
type BodyWriter func(e *wire.Encoder) error

// Write writes a complete request envelope to w.
func Write(w io.Writer, h Header, body BodyWriter) error {
	e := wire.NewEncoder(w)
	e.Raw([]byte(xml.Header))
	e.StartElement(wire.NamespaceSoap, "Envelope").
		DeclareNamespaces(wire.NamespaceSoap, wire.NamespaceTypes, wire.NamespaceMessages)

	e.StartElement(wire.NamespaceSoap, "Header")
	e.StartElement(wire.NamespaceTypes, "RequestServerVersion").Attr("Version", string(h.Version)).EndElement()
	if h.ImpersonatedUser != "" {
		e.StartElement(wire.NamespaceTypes, "ExchangeImpersonation")
		e.StartElement(wire.NamespaceTypes, "ConnectingSID")
		e.Element(wire.NamespaceTypes, "PrimarySmtpAddress", h.ImpersonatedUser)
		e.EndElement()
		e.EndElement()
	}
	if h.TimeZone != "" {
		e.StartElement(wire.NamespaceTypes, "TimeZoneContext")
		e.StartElement(wire.NamespaceTypes, "TimeZoneDefinition").Attr("Id", h.TimeZone).EndElement()
		e.EndElement()
	}
	e.EndElement()

	e.StartElement(wire.NamespaceSoap, "Body")
	if err := body(e); err != nil {
		return err
	}
	e.EndElement()
	e.EndElement()
	return e.Flush()
}

// Encode returns a complete request envelope.
func Encode(h Header, body BodyWriter) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, h, body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Envelope is the part of a response envelope read before its payload.
type Envelope struct {
	// ServerVersion is the version header, nil if the server sent none.
	ServerVersion *ews.ServerVersionInfo
	// Payload is the first element inside the SOAP body.
	Payload xml.StartElement

	envelope xml.StartElement
	body     xml.StartElement
}

// ReadEnvelope reads a response envelope up to the start of its payload.
// A SOAP fault is returned as a *ews.RemoteOperationError with Index -1.
func ReadEnvelope(d *wire.Decoder) (*Envelope, error) {
	start, err := d.ReadStartElement(wire.NamespaceSoap, "Envelope")
	if err != nil {
		return nil, err
	}
	env := &Envelope{envelope: start}

	for {
		tok, err := d.Read()
		if err != nil {
			return nil, eof("Envelope", err)
		}
		child, ok := tok.(xml.StartElement)
		if !ok {
			return nil, &ews.SerializationError{Element: "Envelope", Err: errors.New("missing Body")}
		}
		switch {
		case wire.Is(child.Name, wire.NamespaceSoap, "Header"):
			if err := env.readHeader(d, child); err != nil {
				return nil, err
			}
		case wire.Is(child.Name, wire.NamespaceSoap, "Body"):
			env.body = child
			tok, err := d.Read()
			if err != nil {
				return nil, eof("Body", err)
			}
			payload, ok := tok.(xml.StartElement)
			if !ok {
				return nil, &ews.SerializationError{Element: "Body", Err: errors.New("empty body")}
			}
			if wire.Is(payload.Name, wire.NamespaceSoap, "Fault") {
				return nil, ReadFault(d, payload)
			}
			env.Payload = payload
			return env, nil
		default:
			if err := d.Skip(child); err != nil {
				return nil, err
			}
		}
	}
}

func (env *Envelope) readHeader(d *wire.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Read()
		if err != nil {
			return eof("Header", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if wire.Is(t.Name, wire.NamespaceTypes, "ServerVersionInfo") {
				info, err := parseServerVersion(t)
				if err != nil {
					return err
				}
				env.ServerVersion = info
			}
			if err := d.Skip(t); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func parseServerVersion(start xml.StartElement) (*ews.ServerVersionInfo, error) {
	info := &ews.ServerVersionInfo{}
	fields := []struct {
		name string
		dst  *int
	}{
		{"MajorVersion", &info.MajorVersion},
		{"MinorVersion", &info.MinorVersion},
		{"MajorBuildNumber", &info.MajorBuildNumber},
		{"MinorBuildNumber", &info.MinorBuildNumber},
	}
	for _, f := range fields {
		s, ok := wire.Attr(start, f.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, &ews.SerializationError{Element: "ServerVersionInfo", Err: errors.Wrap(err, f.name)}
		}
		*f.dst = n
	}
	if v, ok := wire.Attr(start, "Version"); ok {
		info.Version = ews.Version(v)
	}
	return info, nil
}

// End consumes the rest of the envelope after the payload was read.
func (env *Envelope) End(d *wire.Decoder) error {
	if err := d.Skip(env.body); err != nil {
		return err
	}
	return d.Skip(env.envelope)
}

func eof(element string, err error) error {
	if err == io.EOF {
		return &ews.SerializationError{Element: element, Err: io.ErrUnexpectedEOF}
	}
	return err
}
