package client

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/soap"
	"github.com/meszmate/ews-go/wire"
)

// readResponseMessages reads the ResponseMessages list inside payload up
// to the end of payload. The i-th message is parsed into newResult(i).
func readResponseMessages[R Result](d *wire.Decoder, payload xml.StartElement, newResult func(int) R) ([]R, error) {
	var results []R
	found := false
	for {
		tok, err := d.Read()
		if err != nil {
			return nil, eof(payload.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !wire.Is(t.Name, wire.NamespaceMessages, "ResponseMessages") {
				if err := d.Skip(t); err != nil {
					return nil, err
				}
				continue
			}
			found = true
			if results, err = readMessages(d, t, results, newResult); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if !found {
				return nil, &ews.SerializationError{Element: payload.Name.Local, Err: errors.New("missing ResponseMessages")}
			}
			return results, nil
		}
	}
}

func readMessages[R Result](d *wire.Decoder, list xml.StartElement, results []R, newResult func(int) R) ([]R, error) {
	for {
		tok, err := d.Read()
		if err != nil {
			return nil, eof(list.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			res := newResult(len(results))
			if err := readMessage(d, t, res); err != nil {
				return nil, err
			}
			results = append(results, res)
		case xml.EndElement:
			return results, nil
		}
	}
}

// readMessage reads one response message: its class, the status fields
// shared by every message and the payload elements of res.
func readMessage(d *wire.Decoder, start xml.StartElement, res Result) error {
	sr := res.Result()
	class, _ := wire.Attr(start, "ResponseClass")
	switch ews.ResponseClass(class) {
	case ews.ResponseClassSuccess, ews.ResponseClassWarning, ews.ResponseClassError:
		sr.Class = ews.ResponseClass(class)
	default:
		return &ews.SerializationError{
			Element: start.Name.Local,
			Err:     errors.Errorf("invalid ResponseClass %q", class),
		}
	}

	for {
		tok, err := d.Read()
		if err != nil {
			return eof(start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := readMessageField(d, t, res); err != nil {
				return err
			}
		case xml.EndElement:
			if sr.Code == "" && sr.Class == ews.ResponseClassSuccess {
				sr.Code = ews.ResponseCodeNoError
			}
			return nil
		}
	}
}

func readMessageField(d *wire.Decoder, start xml.StartElement, res Result) error {
	sr := res.Result()
	if start.Name.Space == wire.MessagesURI {
		switch start.Name.Local {
		case "MessageText":
			s, err := d.ReadText(start)
			sr.Message = s
			return err
		case "ResponseCode":
			s, err := d.ReadText(start)
			sr.Code = ews.ResponseCode(strings.TrimSpace(s))
			return err
		case "DescriptiveLinkKey":
			n, err := d.ReadInt(start)
			sr.DescriptiveLinkKey = n
			return err
		case "MessageXml":
			details, err := soap.ReadMessageXML(d, start)
			sr.Details = details
			return err
		}
	}
	ok, err := res.readElement(d, start)
	if err != nil {
		return err
	}
	if !ok {
		return d.Skip(start)
	}
	return nil
}

// readList calls fn for each child element of start.
func readList(d *wire.Decoder, start xml.StartElement, fn func(child xml.StartElement) error) error {
	for {
		tok, err := d.Read()
		if err != nil {
			return eof(start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := fn(t); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func eof(element string, err error) error {
	if err == io.EOF {
		return &ews.SerializationError{Element: element, Err: io.ErrUnexpectedEOF}
	}
	return err
}

func intAttr(start xml.StartElement, name string) (int, error) {
	s, ok := wire.Attr(start, name)
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ews.SerializationError{Element: start.Name.Local, Err: errors.Wrap(err, name)}
	}
	return n, nil
}

func boolAttr(start xml.StartElement, name string) (bool, error) {
	s, ok := wire.Attr(start, name)
	if !ok {
		return false, nil
	}
	v, err := wire.ParseBool(s)
	if err != nil {
		return false, &ews.SerializationError{Element: start.Name.Local, Err: errors.Wrap(err, name)}
	}
	return v, nil
}
