package wire

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ews "github.com/meszmate/ews-go"
)

const sampleDoc = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <!-- comment -->
  <s:Body>
    <m:GetItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages"
        xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types">
      <t:Subject>  padded  </t:Subject>
      <t:Size>12</t:Size>
      <t:IsRead>1</t:IsRead>
      <t:DateTimeCreated>2024-01-02T03:04:05Z</t:DateTimeCreated>
      <t:Unknown><t:Deep>x</t:Deep></t:Unknown>
      <t:ItemId Id="abc" ChangeKey="ck"/>
    </m:GetItemResponse>
  </s:Body>
</s:Envelope>`

func TestDecoderWalk(t *testing.T) {
	d := NewDecoder(strings.NewReader(sampleDoc))

	env, err := d.ReadStartElement(NamespaceSoap, "Envelope")
	require.NoError(t, err)

	resp, err := d.ReadToDescendant(env, NamespaceMessages, "GetItemResponse")
	require.NoError(t, err)
	assert.Equal(t, "GetItemResponse", resp.Name.Local)

	subject, err := d.ReadStartElement(NamespaceTypes, "Subject")
	require.NoError(t, err)
	text, err := d.ReadText(subject)
	require.NoError(t, err)
	assert.Equal(t, "  padded  ", text)

	size, err := d.ReadStartElement(NamespaceTypes, "Size")
	require.NoError(t, err)
	n, err := d.ReadInt(size)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	isRead, err := d.ReadStartElement(NamespaceTypes, "IsRead")
	require.NoError(t, err)
	b, err := d.ReadBool(isRead)
	require.NoError(t, err)
	assert.True(t, b)

	created, err := d.ReadStartElement(NamespaceTypes, "DateTimeCreated")
	require.NoError(t, err)
	ts, err := d.ReadDateTime(created)
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))

	unknown, err := d.ReadStartElement(NamespaceTypes, "Unknown")
	require.NoError(t, err)
	require.NoError(t, d.Skip(unknown))

	tok, err := d.Peek()
	require.NoError(t, err)
	id, ok := tok.(xml.StartElement)
	require.True(t, ok)
	v, ok := Attr(id, "Id")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
	_, ok = Attr(id, "Missing")
	assert.False(t, ok)

	_, err = d.ReadStartElement(NamespaceTypes, "ItemId")
	require.NoError(t, err)
	require.NoError(t, d.ReadEndElement(id))
	require.NoError(t, d.ReadEndElement(resp))
}

func TestDecoderMultipleDocuments(t *testing.T) {
	d := NewDecoder(strings.NewReader(`<a>1</a><a>2</a>`))
	for _, want := range []string{"1", "2"} {
		start, err := d.ReadStartElement(NamespaceNone, "a")
		require.NoError(t, err)
		got, err := d.ReadText(start)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := d.Read()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		fn   func(d *Decoder) error
	}{
		{
			"wrong element",
			`<a/>`,
			func(d *Decoder) error { _, err := d.ReadStartElement(NamespaceNone, "b"); return err },
		},
		{
			"unmatched tag",
			`<a><b></a>`,
			func(d *Decoder) error {
				start, err := d.ReadStartElement(NamespaceNone, "a")
				if err != nil {
					return err
				}
				return d.Skip(start)
			},
		},
		{
			"truncated",
			`<a><b>`,
			func(d *Decoder) error {
				start, err := d.ReadStartElement(NamespaceNone, "a")
				if err != nil {
					return err
				}
				return d.Skip(start)
			},
		},
		{
			"nested element in text",
			`<a><b/></a>`,
			func(d *Decoder) error {
				start, err := d.ReadStartElement(NamespaceNone, "a")
				if err != nil {
					return err
				}
				_, err = d.ReadText(start)
				return err
			},
		},
		{
			"bad integer",
			`<a>x</a>`,
			func(d *Decoder) error {
				start, err := d.ReadStartElement(NamespaceNone, "a")
				if err != nil {
					return err
				}
				_, err = d.ReadInt(start)
				return err
			},
		},
		{
			"descendant missing",
			`<a><b/></a>`,
			func(d *Decoder) error {
				start, err := d.ReadStartElement(NamespaceNone, "a")
				if err != nil {
					return err
				}
				_, err = d.ReadToDescendant(start, NamespaceNone, "c")
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn(NewDecoder(strings.NewReader(tt.doc)))
			require.Error(t, err)
			var serr *ews.SerializationError
			assert.True(t, errors.As(err, &serr), "error %v is not a SerializationError", err)
		})
	}
}

func TestDecoderCharset(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><a>caf\xe9</a>"
	d := NewDecoder(strings.NewReader(doc))
	start, err := d.ReadStartElement(NamespaceNone, "a")
	require.NoError(t, err)
	text, err := d.ReadText(start)
	require.NoError(t, err)
	assert.Equal(t, "café", text)
}

func TestParseBool(t *testing.T) {
	for in, want := range map[string]bool{"true": true, "1": true, "false": false, "0": false} {
		got, err := ParseBool(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseBool("yes")
	assert.Error(t, err)
}
