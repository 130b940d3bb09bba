package property

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/complex"
	"github.com/meszmate/ews-go/schema"
	"github.com/meszmate/ews-go/wire"
)

var (
	p1 = schema.Define("P1", "test:P1", schema.Writable, schema.String)
	p2 = schema.Define("P2", "test:P2", schema.Writable, schema.Int)
	p3 = schema.Define("P3", "test:P3", schema.Writable, schema.String)
	p4 = schema.Define("P4", "test:P4", schema.Writable, schema.DateTime)
	p5 = schema.Define("P5", "test:P5", schema.Writable, schema.Complex("Body"))

	id       = schema.Define("ItemId", "test:ItemId", schema.ReadOnly, schema.Complex("ItemId"))
	once     = schema.Define("Once", "test:Once", schema.CanFind|schema.CanSet, schema.String)
	kept     = schema.Define("Kept", "test:Kept", schema.CanFind|schema.CanSet|schema.CanUpdate, schema.String)
	tags     = schema.Define("Tags", "test:Tags", schema.Writable|schema.AutoInstantiateOnRead|schema.MustBeExplicitlySet, schema.Complex("Categories"))
	newer    = schema.Define("Newer", "test:Newer", schema.Writable, schema.String).Since(ews.Exchange2013)
	outsider = schema.Define("Outsider", "test:Outsider", schema.Writable, schema.String)

	testSchema = schema.New(schema.MessageKind, id, p1, p2, p3, p4, p5, once, kept, tags, newer)
)

const loadedDoc = `<t:Message xmlns:t="` + wire.TypesURI + `">` +
	`<t:ItemId Id="item-1" ChangeKey="ck"/>` +
	`<t:P1>one</t:P1>` +
	`<t:P2>2</t:P2>` +
	`<t:P3>three</t:P3>` +
	`<t:P4>2024-01-02T03:04:05Z</t:P4>` +
	`<t:P5 BodyType="Text">five</t:P5>` +
	`</t:Message>`

type testOwner struct {
	isNew   bool
	version ews.Version
	veto    error
	loads   int
	loadDoc string
	bag     *Bag
}

func (o *testOwner) Schema() *schema.Schema { return testSchema }
func (o *testOwner) IsNew() bool             { return o.isNew }
func (o *testOwner) Version() ews.Version {
	if o.version == "" {
		return ews.Exchange2013SP1
	}
	return o.version
}

func (o *testOwner) CheckMutation(def *schema.PropertyDefinition) error {
	return o.veto
}

type loadingOwner struct {
	testOwner
}

func (o *loadingOwner) Load(ctx context.Context, defs ...*schema.PropertyDefinition) error {
	o.loads++
	return load(o.bag, o.loadDoc, false)
}

func load(b *Bag, doc string, clear bool) error {
	d := wire.NewDecoder(strings.NewReader(doc))
	start, err := d.ReadStartElement(wire.NamespaceTypes, "Message")
	if err != nil {
		return err
	}
	return b.LoadFromXML(d, start, clear)
}

func write(t *testing.T, b *Bag, mode WriteMode) string {
	t.Helper()
	var buf bytes.Buffer
	e := wire.NewEncoder(&buf)
	require.NoError(t, b.WriteToXML(e, mode))
	require.NoError(t, e.Flush())
	return buf.String()
}

var fieldURIPattern = regexp.MustCompile(`<t:(SetItemField|DeleteItemField)><t:FieldURI FieldURI="([^"]+)"/>`)

func patchedFields(patch string) []string {
	var uris []string
	for _, m := range fieldURIPattern.FindAllStringSubmatch(patch, -1) {
		uris = append(uris, m[2])
	}
	return uris
}

func loadedBag(t *testing.T) (*Bag, *[]string) {
	t.Helper()
	var notified []string
	b := New(&testOwner{}, func(def *schema.PropertyDefinition) {
		notified = append(notified, def.Name)
	})
	require.NoError(t, load(b, loadedDoc, true))
	return b, &notified
}

func TestFivePropertyScenario(t *testing.T) {
	b, notified := loadedBag(t)

	assert.Equal(t, []*schema.PropertyDefinition{id, p1, p2, p3, p4, p5}, b.Loaded())
	assert.Empty(t, b.Modified())
	assert.Empty(t, write(t, b, WritePatch))

	require.NoError(t, b.Set(p3, "changed"))
	assert.Equal(t, []*schema.PropertyDefinition{p3}, b.Modified())
	patch := write(t, b, WritePatch)
	assert.Equal(t, []string{"test:P3"}, patchedFields(patch))
	assert.Contains(t, patch, "<t:Message><t:P3>changed</t:P3></t:Message>")

	// Changes are compared against the current value, not the loaded one:
	// restoring the loaded value is itself a change and P3 stays modified.
	require.NoError(t, b.Set(p3, "three"))
	assert.True(t, b.IsPropertyUpdated(p3))
	assert.Equal(t, []string{"P3", "P3"}, *notified)
	patch = write(t, b, WritePatch)
	assert.Equal(t, []string{"test:P3"}, patchedFields(patch))
	assert.Contains(t, patch, "<t:P3>three</t:P3>")

	b.ClearChangeLog()
	assert.Empty(t, b.Modified())
	assert.Empty(t, write(t, b, WritePatch))
	assert.Len(t, b.Loaded(), 6, "clearing the change log keeps loaded state")
}

func TestPatchMinimality(t *testing.T) {
	values := map[*schema.PropertyDefinition]any{
		p1: "new one",
		p2: 20,
		p3: "new three",
		p4: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		p5: complex.NewBody(complex.BodyTypeHTML, "<p>new</p>"),
	}

	tests := []struct {
		name string
		set  []*schema.PropertyDefinition
		want []string
	}{
		{"none", nil, nil},
		{"one", []*schema.PropertyDefinition{p4}, []string{"test:P4"}},
		{"two reversed", []*schema.PropertyDefinition{p5, p1}, []string{"test:P1", "test:P5"}},
		{"shuffled", []*schema.PropertyDefinition{p3, p1, p5, p2}, []string{"test:P1", "test:P2", "test:P3", "test:P5"}},
		{"all", []*schema.PropertyDefinition{p5, p4, p3, p2, p1}, []string{"test:P1", "test:P2", "test:P3", "test:P4", "test:P5"}},
		{"same one twice", []*schema.PropertyDefinition{p2, p2}, []string{"test:P2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := loadedBag(t)
			for _, def := range tt.set {
				require.NoError(t, b.Set(def, values[def]))
			}
			assert.Equal(t, tt.want, patchedFields(write(t, b, WritePatch)))
		})
	}
}

func TestSetEqualValueIsNoop(t *testing.T) {
	b, notified := loadedBag(t)

	require.NoError(t, b.Set(p1, "one"))
	require.NoError(t, b.Set(p2, 2))
	require.NoError(t, b.Set(p4, time.Date(2024, 1, 2, 4, 4, 5, 0, time.FixedZone("CET", 3600))))
	require.NoError(t, b.Set(p5, complex.NewBody(complex.BodyTypeText, "five")))

	assert.Empty(t, b.Modified())
	assert.Empty(t, *notified)

	require.NoError(t, b.Set(p1, "uno"))
	require.NoError(t, b.Set(p1, "uno"))
	assert.Equal(t, []string{"P1"}, *notified)
}

func TestUnknownElementsAreSkipped(t *testing.T) {
	b := New(&testOwner{}, nil)
	doc := `<t:Message xmlns:t="` + wire.TypesURI + `">` +
		`<t:Unknown><t:P1>nested, not a property</t:P1></t:Unknown>` +
		`<t:P1>real</t:P1>` +
		`<t:AlsoUnknown attr="x"/>` +
		`</t:Message>`
	require.NoError(t, load(b, doc, true))

	assert.Equal(t, []*schema.PropertyDefinition{p1}, b.Loaded())
	v, err := b.Get(context.Background(), p1)
	require.NoError(t, err)
	assert.Equal(t, "real", v)
}

func TestLoadErrors(t *testing.T) {
	b := New(&testOwner{}, nil)
	err := load(b, `<t:Message xmlns:t="`+wire.TypesURI+`"><t:P2>two</t:P2></t:Message>`, true)
	var serr *ews.SerializationError
	require.ErrorAs(t, err, &serr)

	err = load(b, `<t:Message xmlns:t="`+wire.TypesURI+`"><t:P1>x</t:P1>`, true)
	require.ErrorAs(t, err, &serr)
}

func TestLoadMergesIntoStructuredValues(t *testing.T) {
	b, _ := loadedBag(t)
	v, err := b.Get(context.Background(), p5)
	require.NoError(t, err)
	body := v.(*complex.Node[complex.Body])

	doc := `<t:Message xmlns:t="` + wire.TypesURI + `"><t:P5 BodyType="HTML">patched</t:P5></t:Message>`
	require.NoError(t, load(b, doc, false))
	v, _ = b.Get(context.Background(), p5)
	assert.Same(t, body, v, "merge patches the existing node")
	assert.Equal(t, "patched", body.Get().Text)
	assert.Empty(t, b.Modified())
	assert.True(t, b.Has(p1), "merge keeps other values")

	require.NoError(t, load(b, doc, true))
	v, _ = b.Get(context.Background(), p5)
	assert.NotSame(t, body, v, "clearing load replaces the node")
	assert.False(t, b.Has(p1))

	body.Update(func(v *complex.Body) { v.Text = "detached" })
	assert.Empty(t, b.Modified(), "replaced node no longer reports to the bag")
}

func TestStructuredValueChangesMarkModified(t *testing.T) {
	b, notified := loadedBag(t)
	v, err := b.Get(context.Background(), p5)
	require.NoError(t, err)

	v.(*complex.Node[complex.Body]).Update(func(body *complex.Body) { body.Text = "edited" })
	assert.Equal(t, []*schema.PropertyDefinition{p5}, b.Modified())
	assert.Equal(t, []string{"P5"}, *notified)
	assert.Contains(t, write(t, b, WritePatch), `<t:P5 BodyType="Text">edited</t:P5>`)

	idv, err := b.Get(context.Background(), id)
	require.NoError(t, err)
	idv.(*complex.Node[complex.ID]).Set(complex.ID{ID: "other"})
	assert.False(t, b.IsPropertyUpdated(id), "read-only values are never modified")
}

func TestDeleteWritesDeleteField(t *testing.T) {
	b, _ := loadedBag(t)
	require.NoError(t, b.Set(p1, nil))
	require.NoError(t, b.Set(p2, 3))

	patch := write(t, b, WritePatch)
	assert.Equal(t, []string{"test:P1", "test:P2"}, patchedFields(patch))
	assert.Contains(t, patch, `<t:DeleteItemField><t:FieldURI FieldURI="test:P1"/></t:DeleteItemField>`)

	v, err := b.Get(context.Background(), p1)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSetAccessRules(t *testing.T) {
	newBag := New(&testOwner{isNew: true}, nil)
	boundBag, _ := loadedBag(t)

	var perr *ews.PropertyAccessError

	err := newBag.Set(id, complex.NewID("x", ""))
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, ews.ErrPropertyReadOnly)

	require.NoError(t, newBag.Set(once, "first"))
	err = boundBag.Set(once, "again")
	assert.ErrorIs(t, err, ews.ErrPropertyReadOnly, "set-only property is fixed once bound")

	require.NoError(t, boundBag.Set(kept, "x"))
	err = boundBag.Set(kept, nil)
	assert.ErrorIs(t, err, ews.ErrPropertyReadOnly, "property without CanDelete cannot be removed")

	err = boundBag.Set(outsider, "x")
	assert.ErrorIs(t, err, ews.ErrPropertyNotFound)

	veto := &ews.InvalidOperationError{Op: "set", Reason: "locked"}
	locked := New(&testOwner{veto: veto}, nil)
	assert.Same(t, veto, locked.Set(p1, "x"))
	assert.False(t, locked.IsPropertyUpdated(p1))
}

func TestVersionGate(t *testing.T) {
	b := New(&testOwner{isNew: true, version: ews.Exchange2010SP2}, nil)
	var verr *ews.ProtocolVersionError

	assert.ErrorAs(t, b.Set(newer, "x"), &verr)
	_, err := b.Get(context.Background(), newer)
	assert.ErrorAs(t, err, &verr)

	modern := New(&testOwner{isNew: true, version: ews.Exchange2016}, nil)
	assert.NoError(t, modern.Set(newer, "x"))
}

func TestGetOnNewObject(t *testing.T) {
	b := New(&testOwner{isNew: true}, nil)

	v, err := b.Get(context.Background(), p1)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = b.Get(context.Background(), tags)
	require.NoError(t, err)
	list, ok := v.(*complex.Node[complex.StringList])
	require.True(t, ok)
	assert.Empty(t, b.Modified(), "auto-instantiation is not a change")

	again, _ := b.Get(context.Background(), tags)
	assert.Same(t, list, again)

	assert.Equal(t, `<t:Message/>`, write(t, b, WriteFullCreate), "untouched explicit-set property is not written")

	list.Update(func(l *complex.StringList) { l.Items = append(l.Items, "red") })
	assert.True(t, b.IsPropertyUpdated(tags))
	require.NoError(t, b.Set(p1, "subject"))
	assert.Equal(t,
		`<t:Message><t:P1>subject</t:P1><t:Tags><t:String>red</t:String></t:Tags></t:Message>`,
		write(t, b, WriteFullCreate))
}

func TestGetLoadsOnDemand(t *testing.T) {
	owner := &loadingOwner{}
	owner.loadDoc = `<t:Message xmlns:t="` + wire.TypesURI + `"><t:P2>7</t:P2></t:Message>`
	b := New(owner, nil)
	owner.bag = b

	v, err := b.Get(context.Background(), p2)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, owner.loads)

	_, err = b.Get(context.Background(), p2)
	require.NoError(t, err)
	assert.Equal(t, 1, owner.loads)

	_, err = b.Get(context.Background(), p3)
	assert.ErrorIs(t, err, ews.ErrPropertyNotFound)
	assert.Equal(t, 2, owner.loads)
	_, err = b.Get(context.Background(), p3)
	assert.ErrorIs(t, err, ews.ErrPropertyNotFound)
	assert.Equal(t, 2, owner.loads, "a property is fetched at most once")
}

func TestGetWithoutLoader(t *testing.T) {
	b := New(&testOwner{}, nil)
	_, err := b.Get(context.Background(), p1)
	var perr *ews.PropertyAccessError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "P1", perr.Property)
}

func TestFullUpdate(t *testing.T) {
	b, _ := loadedBag(t)
	assert.Empty(t, write(t, b, WriteFullUpdate))

	require.NoError(t, b.Set(p2, 5))
	out := write(t, b, WriteFullUpdate)
	assert.True(t, strings.HasPrefix(out, "<t:Message><t:P1>one</t:P1><t:P2>5</t:P2>"), out)
	assert.NotContains(t, out, "ItemId", "read-only values are not written")
}

func TestValidate(t *testing.T) {
	b := New(&testOwner{isNew: true}, nil)
	require.NoError(t, b.Set(p5, complex.NewBody("RTF", "x")))

	err := b.Validate()
	var verr *ews.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "property P5", verr.Target)

	require.NoError(t, b.Set(p5, complex.NewBody(complex.BodyTypeText, "x")))
	assert.NoError(t, b.Validate())
}

func TestWriteModeString(t *testing.T) {
	assert.Equal(t, "Patch", WritePatch.String())
	assert.Equal(t, "Unknown", WriteMode(9).String())
}
