package soap

import (
	"encoding/xml"
	"strings"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/wire"
)

// ReadFault reads the soap:Fault element opened by start. The response
// code is taken from the fault detail, or from faultcode when the detail
// carries none.
func ReadFault(d *wire.Decoder, start xml.StartElement) error {
	fault := &ews.RemoteOperationError{Index: -1, Class: ews.ResponseClassError}
	for {
		tok, err := d.Read()
		if err != nil {
			return eof("Fault", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := readFaultField(d, t, fault); err != nil {
				return err
			}
		case xml.EndElement:
			return fault
		}
	}
}

func readFaultField(d *wire.Decoder, start xml.StartElement, fault *ews.RemoteOperationError) error {
	switch start.Name.Local {
	case "faultcode":
		s, err := d.ReadText(start)
		if err != nil {
			return err
		}
		if fault.Code == "" {
			code := strings.TrimSpace(s)
			if i := strings.LastIndexByte(code, ':'); i >= 0 {
				code = code[i+1:]
			}
			fault.Code = ews.ResponseCode(code)
		}
	case "faultstring":
		s, err := d.ReadText(start)
		if err != nil {
			return err
		}
		if fault.Message == "" {
			fault.Message = strings.TrimSpace(s)
		}
	case "detail":
		for {
			tok, err := d.Read()
			if err != nil {
				return eof("detail", err)
			}
			switch t := tok.(type) {
			case xml.StartElement:
				if err := readFaultDetail(d, t, fault); err != nil {
					return err
				}
			case xml.EndElement:
				return nil
			}
		}
	default:
		return d.Skip(start)
	}
	return nil
}

func readFaultDetail(d *wire.Decoder, start xml.StartElement, fault *ews.RemoteOperationError) error {
	switch start.Name.Local {
	case "ResponseCode":
		s, err := d.ReadText(start)
		if err != nil {
			return err
		}
		fault.Code = ews.ResponseCode(strings.TrimSpace(s))
	case "Message":
		s, err := d.ReadText(start)
		if err != nil {
			return err
		}
		fault.Message = strings.TrimSpace(s)
	case "MessageXml":
		details, err := ReadMessageXML(d, start)
		if err != nil {
			return err
		}
		fault.Details = details
	default:
		return d.Skip(start)
	}
	return nil
}

// ReadMessageXML reads the name/value pairs of a MessageXml element. A
// child's key is its Name attribute, or its element name if it has none.
// Children with nested markup are skipped.
func ReadMessageXML(d *wire.Decoder, start xml.StartElement) (map[string]string, error) {
	details := make(map[string]string)
	for {
		tok, err := d.Read()
		if err != nil {
			return nil, eof(start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			key, ok := wire.Attr(t, "Name")
			if !ok {
				key = t.Name.Local
			}
			next, err := d.Peek()
			if err != nil {
				return nil, eof(t.Name.Local, err)
			}
			if _, nested := next.(xml.StartElement); nested {
				if err := d.Skip(t); err != nil {
					return nil, err
				}
				continue
			}
			s, err := d.ReadText(t)
			if err != nil {
				return nil, err
			}
			details[key] = s
		case xml.EndElement:
			return details, nil
		}
	}
}
