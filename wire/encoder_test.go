package wire

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ews "github.com/meszmate/ews-go"
)

func encoderOutput(t *testing.T, fn func(e *Encoder)) string {
	t.Helper()
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	fn(e)
	require.NoError(t, e.Flush())
	return buf.String()
}

func TestEncoderElement(t *testing.T) {
	tests := []struct {
		name string
		fn   func(e *Encoder)
		want string
	}{
		{
			"text element",
			func(e *Encoder) { e.Element(NamespaceTypes, "Subject", "hello") },
			"<t:Subject>hello</t:Subject>",
		},
		{
			"escaped text",
			func(e *Encoder) { e.Element(NamespaceTypes, "Subject", "a < b & c") },
			"<t:Subject>a &lt; b &amp; c</t:Subject>",
		},
		{
			"empty element",
			func(e *Encoder) { e.StartElement(NamespaceTypes, "ItemId").Attr("Id", "x\"y").EndElement() },
			`<t:ItemId Id="x&#34;y"/>`,
		},
		{
			"nested",
			func(e *Encoder) {
				e.StartElement(NamespaceMessages, "ItemIds").
					StartElement(NamespaceTypes, "ItemId").Attr("Id", "1").EndElement().
					EndElement()
			},
			`<m:ItemIds><t:ItemId Id="1"/></m:ItemIds>`,
		},
		{
			"unqualified",
			func(e *Encoder) { e.Element(NamespaceNone, "Value", "v") },
			"<Value>v</Value>",
		},
		{
			"bool and int",
			func(e *Encoder) {
				e.Bool(NamespaceTypes, "IsRead", true).Int(NamespaceTypes, "Size", 42)
			},
			"<t:IsRead>true</t:IsRead><t:Size>42</t:Size>",
		},
		{
			"date time in UTC",
			func(e *Encoder) {
				loc := time.FixedZone("x", 2*3600)
				e.DateTime(NamespaceTypes, "Start", time.Date(2024, 3, 1, 10, 0, 0, 0, loc))
			},
			"<t:Start>2024-03-01T08:00:00Z</t:Start>",
		},
		{
			"base64",
			func(e *Encoder) { e.StartElement(NamespaceTypes, "Content").Base64([]byte("hi")).EndElement() },
			"<t:Content>aGk=</t:Content>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encoderOutput(t, tt.fn))
		})
	}
}

func TestEncoderDeclareNamespaces(t *testing.T) {
	got := encoderOutput(t, func(e *Encoder) {
		e.StartElement(NamespaceSoap, "Envelope").DeclareNamespaces(NamespaceSoap, NamespaceTypes).EndElement()
	})
	assert.Equal(t, `<soap:Envelope xmlns:soap="`+SoapURI+`" xmlns:t="`+TypesURI+`"/>`, got)
}

func TestEncoderErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   func(e *Encoder)
	}{
		{"unbalanced", func(e *Encoder) { e.StartElement(NamespaceTypes, "Open") }},
		{"attr after content", func(e *Encoder) { e.StartElement(NamespaceTypes, "A").Text("x").Attr("b", "c").EndElement() }},
		{"end without start", func(e *Encoder) { e.EndElement() }},
		{"text at root", func(e *Encoder) { e.Text("x") }},
		{"empty name", func(e *Encoder) { e.StartElement(NamespaceTypes, "") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			e := NewEncoder(&buf)
			tt.fn(e)
			err := e.Flush()
			require.Error(t, err)
			var serr *ews.SerializationError
			assert.True(t, errors.As(err, &serr), "error %v is not a SerializationError", err)
		})
	}
}

func TestEncoderFirstErrorSticks(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.EndElement()
	first := e.Err()
	require.Error(t, first)
	e.StartElement(NamespaceTypes, "Ignored").EndElement()
	assert.Same(t, first, e.Err())
}
