package complex

import (
	"encoding/xml"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/wire"
)

// Entry is one keyed value of a Dictionary.
type Entry struct {
	Key   string
	Value string
}

// Dictionary is an ordered set of keyed string entries written as
// <entry key="...">value</entry> children.
type Dictionary struct {
	Entries []Entry
}

// Get returns the value stored under key.
func (v Dictionary) Get(key string) (string, bool) {
	for _, e := range v.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

func (v *Dictionary) put(key, value string) {
	for i := range v.Entries {
		if v.Entries[i].Key == key {
			v.Entries[i].Value = value
			return
		}
	}
	v.Entries = append(v.Entries, Entry{Key: key, Value: value})
}

// NewDictionary creates an empty dictionary with the given entry element
// and key attribute names. A patch load merges entries by key.
func NewDictionary(entry, keyAttr string) *Node[Dictionary] {
	return NewNode(dictionaryBehavior(entry, keyAttr), Dictionary{})
}

func dictionaryBehavior(entry, keyAttr string) *Behavior[Dictionary] {
	return &Behavior[Dictionary]{
		Reset: func(v *Dictionary, patch bool) {
			if !patch {
				v.Entries = nil
			}
		},
		TryReadElement: func(n *Node[Dictionary], d *wire.Decoder, start xml.StartElement) (bool, error) {
			if start.Name.Local != entry {
				return false, nil
			}
			key, ok := wire.Attr(start, keyAttr)
			if !ok {
				if err := d.Skip(start); err != nil {
					return false, err
				}
				return true, nil
			}
			value, err := d.ReadText(start)
			if err != nil {
				return false, err
			}
			n.value.put(key, value)
			return true, nil
		},
		WriteElements: func(v *Dictionary, e *wire.Encoder) error {
			for _, ent := range v.Entries {
				e.StartElement(wire.NamespaceTypes, entry).Attr(keyAttr, ent.Key).Text(ent.Value).EndElement()
			}
			return e.Err()
		},
		Validate: func(v *Dictionary) error {
			seen := make(map[string]struct{}, len(v.Entries))
			for _, ent := range v.Entries {
				if ent.Key == "" {
					return ews.NewValidationError(entry, "empty %s", keyAttr)
				}
				if _, dup := seen[ent.Key]; dup {
					return ews.NewValidationError(entry, "duplicate %s %q", keyAttr, ent.Key)
				}
				seen[ent.Key] = struct{}{}
			}
			return nil
		},
	}
}

// Put stores value under key, raising a change only if it differs.
func Put(dict *Node[Dictionary], key, value string) {
	dict.Update(func(v *Dictionary) {
		v.put(key, value)
	})
}

// Delete removes the entry stored under key.
func Delete(dict *Node[Dictionary], key string) {
	dict.Update(func(v *Dictionary) {
		for i, e := range v.Entries {
			if e.Key == key {
				v.Entries = append(v.Entries[:i:i], v.Entries[i+1:]...)
				return
			}
		}
	})
}

// NewInternetMessageHeaders creates the dictionary of a message's
// internet headers.
func NewInternetMessageHeaders() *Node[Dictionary] {
	return NewDictionary("InternetMessageHeader", "HeaderName")
}
