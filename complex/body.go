package complex

import (
	"encoding/xml"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/wire"
)

// BodyType is the format of a message body.
type BodyType string

const (
	BodyTypeHTML BodyType = "HTML"
	BodyTypeText BodyType = "Text"
)

// Body is a message or item body.
type Body struct {
	Type BodyType
	Text string
	// Truncated is reported by the server when the body was cut short.
	Truncated bool
}

// BodyBehavior reads and writes a Body element. The text is replaced on
// every load, patch loads included.
var BodyBehavior = &Behavior[Body]{
	Reset: func(v *Body, patch bool) {
		v.Text = ""
		if !patch {
			*v = Body{}
		}
	},
	ReadAttributes: func(v *Body, start xml.StartElement) error {
		if s, ok := wire.Attr(start, "BodyType"); ok {
			v.Type = BodyType(s)
		}
		if s, ok := wire.Attr(start, "IsTruncated"); ok {
			t, err := wire.ParseBool(s)
			if err != nil {
				return err
			}
			v.Truncated = t
		}
		return nil
	},
	ReadText: func(v *Body, text string) error {
		v.Text += text
		return nil
	},
	WriteAttributes: func(v *Body, e *wire.Encoder) {
		e.Attr("BodyType", string(v.Type))
	},
	WriteElements: func(v *Body, e *wire.Encoder) error {
		if v.Text != "" {
			e.Text(v.Text)
		}
		return nil
	},
	Validate: func(v *Body) error {
		switch v.Type {
		case BodyTypeHTML, BodyTypeText:
			return nil
		}
		return ews.NewValidationError("body", "unknown body type %q", v.Type)
	},
}

// NewBody creates a body node.
func NewBody(t BodyType, text string) *Node[Body] {
	return NewNode(BodyBehavior, Body{Type: t, Text: text})
}
