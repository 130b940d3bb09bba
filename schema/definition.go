package schema

import (
	ews "github.com/meszmate/ews-go"
)

// PropertyDefinition describes one property of an object kind: its name,
// wire element, field URI, minimum protocol version and capabilities.
// Definitions are created once and shared by all objects of a kind.
type PropertyDefinition struct {
	// Name is the stable property name.
	Name string
	// Element is the wire element holding the value.
	Element string
	// URI is the field URI used in shapes, filters and updates.
	URI string
	// Version is the minimum protocol version. Empty means any version.
	Version ews.Version
	Flags   Flags
	Codec   Codec
}

// Define creates a definition whose element name equals its name.
func Define(name, uri string, flags Flags, codec Codec) *PropertyDefinition {
	return &PropertyDefinition{
		Name:    name,
		Element: name,
		URI:     uri,
		Flags:   flags,
		Codec:   codec,
	}
}

// Since returns d with a minimum protocol version.
func (d *PropertyDefinition) Since(v ews.Version) *PropertyDefinition {
	d.Version = v
	return d
}

// Has reports whether the definition carries every flag in f.
func (d *PropertyDefinition) Has(f Flags) bool {
	return d.Flags.Has(f)
}

// CheckVersion returns a *ews.ProtocolVersionError when the property is
// not available at version v.
func (d *PropertyDefinition) CheckVersion(v ews.Version) error {
	return ews.CheckVersion("property "+d.Name, d.Version, v)
}

func (d *PropertyDefinition) String() string {
	return d.Name
}
