package schema

import "strings"

// Flags describe what can be done with a property.
type Flags uint8

const (
	// CanFind marks properties that can be requested and used in filters.
	CanFind Flags = 1 << iota
	// CanSet marks properties that can be set on a new object.
	CanSet
	// CanUpdate marks properties that can be changed on a bound object.
	CanUpdate
	// CanDelete marks properties that can be removed from a bound object.
	CanDelete
	// MustBeExplicitlySet marks properties written on create only when the
	// caller assigned them.
	MustBeExplicitlySet
	// AutoInstantiateOnRead marks structured properties that are created
	// empty when read on a new object.
	AutoInstantiateOnRead
)

// ReadOnly is the flag set of server-computed properties.
const ReadOnly = CanFind

// Writable is the common flag set of properties callers manage.
const Writable = CanFind | CanSet | CanUpdate | CanDelete

var flagNames = []struct {
	flag Flags
	name string
}{
	{CanFind, "CanFind"},
	{CanSet, "CanSet"},
	{CanUpdate, "CanUpdate"},
	{CanDelete, "CanDelete"},
	{MustBeExplicitlySet, "MustBeExplicitlySet"},
	{AutoInstantiateOnRead, "AutoInstantiateOnRead"},
}

// Has reports whether every flag in x is set.
func (f Flags) Has(x Flags) bool {
	return f&x == x
}

// String returns the set flags joined with "|".
func (f Flags) String() string {
	if f == 0 {
		return "None"
	}
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}
