package client

import (
	"context"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/complex"
	"github.com/meszmate/ews-go/property"
	"github.com/meszmate/ews-go/schema"
)

// object is the part shared by items and folders: a property bag bound
// to a client, identified by the value of idDef.
type object struct {
	client   *Client
	schema   *schema.Schema
	idDef    *schema.PropertyDefinition
	bag      *property.Bag
	loader   func(ctx context.Context, defs ...*schema.PropertyDefinition) error
	mutation func(def *schema.PropertyDefinition) error
	handlers []func(def *schema.PropertyDefinition)
}

func newObject(c *Client, sc *schema.Schema, idDef *schema.PropertyDefinition) *object {
	o := &object{client: c, schema: sc, idDef: idDef}
	o.bag = property.New(o, o.notify)
	return o
}

func (o *object) notify(def *schema.PropertyDefinition) {
	for _, h := range o.handlers {
		h(def)
	}
}

// Schema returns the object's schema.
func (o *object) Schema() *schema.Schema {
	return o.schema
}

// IsNew reports whether the object has no server id yet.
func (o *object) IsNew() bool {
	return !o.bag.Has(o.idDef)
}

// Version returns the protocol version of the client.
func (o *object) Version() ews.Version {
	return o.client.Version()
}

// Load fetches defs from the server into the object. It implements
// property.Loader, which makes Get load missing properties on demand.
func (o *object) Load(ctx context.Context, defs ...*schema.PropertyDefinition) error {
	if o.IsNew() {
		return &ews.InvalidOperationError{Op: "load", Reason: "object has not been saved"}
	}
	return o.loader(ctx, defs...)
}

// CheckMutation implements property.Mutator.
func (o *object) CheckMutation(def *schema.PropertyDefinition) error {
	if o.mutation == nil {
		return nil
	}
	return o.mutation(def)
}

// OnChange registers fn to be called each time a property is modified.
func (o *object) OnChange(fn func(def *schema.PropertyDefinition)) {
	o.handlers = append(o.handlers, fn)
}

// Get returns the value of def, loading it first if needed.
func (o *object) Get(ctx context.Context, def *schema.PropertyDefinition) (any, error) {
	return o.bag.Get(ctx, def)
}

// Set assigns value to def. A nil value deletes the property.
func (o *object) Set(def *schema.PropertyDefinition, value any) error {
	return o.bag.Set(def, value)
}

// IsPropertyUpdated reports whether def was modified since the last load
// or save.
func (o *object) IsPropertyUpdated(def *schema.PropertyDefinition) bool {
	return o.bag.IsPropertyUpdated(def)
}

// IsDirty reports whether any property was modified.
func (o *object) IsDirty() bool {
	return o.bag.IsDirty()
}

// Properties returns the underlying property store.
func (o *object) Properties() *property.Bag {
	return o.bag
}

func (o *object) id() (complex.ID, bool) {
	if !o.bag.Has(o.idDef) {
		return complex.ID{}, false
	}
	v, err := o.bag.Get(context.Background(), o.idDef)
	if err != nil {
		return complex.ID{}, false
	}
	cv, ok := v.(complex.Value)
	if !ok {
		return complex.ID{}, false
	}
	return complex.IDOf(cv)
}

func (o *object) getString(ctx context.Context, def *schema.PropertyDefinition) (string, error) {
	v, err := o.bag.Get(ctx, def)
	if err != nil || v == nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (o *object) getInt(ctx context.Context, def *schema.PropertyDefinition) (int, error) {
	v, err := o.bag.Get(ctx, def)
	if err != nil || v == nil {
		return 0, err
	}
	n, _ := v.(int)
	return n, nil
}

func (o *object) getBool(ctx context.Context, def *schema.PropertyDefinition) (bool, error) {
	v, err := o.bag.Get(ctx, def)
	if err != nil || v == nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}
