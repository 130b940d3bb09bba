package complex

import (
	"encoding/xml"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/wire"
)

// FilterOp is the element name of a search filter node.
type FilterOp string

const (
	OpIsEqualTo     FilterOp = "IsEqualTo"
	OpIsNotEqualTo  FilterOp = "IsNotEqualTo"
	OpIsGreaterThan FilterOp = "IsGreaterThan"
	OpIsLessThan    FilterOp = "IsLessThan"
	OpContains      FilterOp = "Contains"
	OpExists        FilterOp = "Exists"
	OpAnd           FilterOp = "And"
	OpOr            FilterOp = "Or"
	OpNot           FilterOp = "Not"
)

var filterOps = []FilterOp{
	OpIsEqualTo, OpIsNotEqualTo, OpIsGreaterThan, OpIsLessThan,
	OpContains, OpExists, OpAnd, OpOr, OpNot,
}

func (op FilterOp) comparison() bool {
	switch op {
	case OpIsEqualTo, OpIsNotEqualTo, OpIsGreaterThan, OpIsLessThan:
		return true
	}
	return false
}

func (op FilterOp) logical() bool {
	return op == OpAnd || op == OpOr || op == OpNot
}

// Containment modes and comparisons for Contains filters.
const (
	ContainmentFullString = "FullString"
	ContainmentPrefixed   = "Prefixed"
	ContainmentSubstring  = "Substring"

	ComparisonExact      = "Exact"
	ComparisonIgnoreCase = "IgnoreCase"
)

// Filter is one node of a search restriction tree. Leaf filters compare a
// property (FieldURI) with a constant; And, Or and Not combine children.
type Filter struct {
	Op       FilterOp
	FieldURI string
	Value    string

	ContainmentMode       string
	ContainmentComparison string

	Children []*Node[Filter]
}

// FilterBehavior reads and writes every filter kind. Child filters are
// created through the default registry by element name.
var FilterBehavior = &Behavior[Filter]{
	Reset: func(v *Filter, _ bool) {
		*v = Filter{Op: v.Op}
	},
	ReadAttributes: func(v *Filter, start xml.StartElement) error {
		v.Op = FilterOp(start.Name.Local)
		if v.Op == OpContains {
			v.ContainmentMode, _ = wire.Attr(start, "ContainmentMode")
			v.ContainmentComparison, _ = wire.Attr(start, "ContainmentComparison")
		}
		return nil
	},
	TryReadElement: func(n *Node[Filter], d *wire.Decoder, start xml.StartElement) (bool, error) {
		v := &n.value
		switch start.Name.Local {
		case "FieldURI":
			v.FieldURI, _ = wire.Attr(start, "FieldURI")
			return true, d.Skip(start)
		case "Constant":
			v.Value, _ = wire.Attr(start, "Value")
			return true, d.Skip(start)
		case "FieldURIOrConstant":
			return true, readChildren(d, start, func(child xml.StartElement) (bool, error) {
				if child.Name.Local != "Constant" {
					return false, nil
				}
				v.Value, _ = wire.Attr(child, "Value")
				return true, d.Skip(child)
			})
		}
		if !v.Op.logical() {
			return false, nil
		}
		child, ok := defaultRegistry.New(start.Name.Local)
		if !ok {
			return false, nil
		}
		f, ok := child.(*Node[Filter])
		if !ok {
			return false, nil
		}
		if err := f.LoadFromXML(d, start); err != nil {
			return false, err
		}
		v.Children = append(v.Children, f)
		return true, nil
	},
	WriteAttributes: func(v *Filter, e *wire.Encoder) {
		if v.Op != OpContains {
			return
		}
		if v.ContainmentMode != "" {
			e.Attr("ContainmentMode", v.ContainmentMode)
		}
		if v.ContainmentComparison != "" {
			e.Attr("ContainmentComparison", v.ContainmentComparison)
		}
	},
	WriteElements: func(v *Filter, e *wire.Encoder) error {
		switch {
		case v.Op.logical():
			for _, c := range v.Children {
				if err := c.WriteToXML(e, wire.NamespaceTypes, string(c.value.Op)); err != nil {
					return err
				}
			}
			return nil
		case v.Op == OpContains:
			writeFieldURI(e, v.FieldURI)
			e.StartElement(wire.NamespaceTypes, "Constant").Attr("Value", v.Value).EndElement()
		case v.Op == OpExists:
			writeFieldURI(e, v.FieldURI)
		default:
			writeFieldURI(e, v.FieldURI)
			e.StartElement(wire.NamespaceTypes, "FieldURIOrConstant")
			e.StartElement(wire.NamespaceTypes, "Constant").Attr("Value", v.Value).EndElement()
			e.EndElement()
		}
		return e.Err()
	},
	Validate: func(v *Filter) error {
		target := "filter " + string(v.Op)
		switch {
		case v.Op.comparison(), v.Op == OpExists:
			if v.FieldURI == "" {
				return ews.NewValidationError(target, "field is required")
			}
		case v.Op == OpContains:
			if v.FieldURI == "" {
				return ews.NewValidationError(target, "field is required")
			}
			if v.Value == "" {
				return ews.NewValidationError(target, "value is required")
			}
		case v.Op == OpNot:
			if len(v.Children) != 1 {
				return ews.NewValidationError(target, "needs exactly one child, got %d", len(v.Children))
			}
		case v.Op.logical():
			if len(v.Children) == 0 {
				return ews.NewValidationError(target, "needs at least one child")
			}
		default:
			return ews.NewValidationError("filter", "unknown operator %q", v.Op)
		}
		for _, c := range v.Children {
			if c == nil {
				return ews.NewValidationError(target, "nil child")
			}
		}
		return nil
	},
	Children: func(v *Filter) []Value {
		children := make([]Value, 0, len(v.Children))
		for _, c := range v.Children {
			if c != nil {
				children = append(children, c)
			}
		}
		return children
	},
}

func writeFieldURI(e *wire.Encoder, uri string) {
	e.StartElement(wire.NamespaceTypes, "FieldURI").Attr("FieldURI", uri).EndElement()
}

func leaf(op FilterOp, fieldURI, value string) *Node[Filter] {
	return NewNode(FilterBehavior, Filter{Op: op, FieldURI: fieldURI, Value: value})
}

func logical(op FilterOp, children []*Node[Filter]) *Node[Filter] {
	return NewNode(FilterBehavior, Filter{Op: op, Children: children})
}

// IsEqualTo matches items whose property equals value.
func IsEqualTo(fieldURI, value string) *Node[Filter] { return leaf(OpIsEqualTo, fieldURI, value) }

// IsNotEqualTo matches items whose property differs from value.
func IsNotEqualTo(fieldURI, value string) *Node[Filter] { return leaf(OpIsNotEqualTo, fieldURI, value) }

// IsGreaterThan matches items whose property is greater than value.
func IsGreaterThan(fieldURI, value string) *Node[Filter] {
	return leaf(OpIsGreaterThan, fieldURI, value)
}

// IsLessThan matches items whose property is less than value.
func IsLessThan(fieldURI, value string) *Node[Filter] { return leaf(OpIsLessThan, fieldURI, value) }

// Exists matches items that have the property set.
func Exists(fieldURI string) *Node[Filter] { return leaf(OpExists, fieldURI, "") }

// Contains matches string properties containing value.
func Contains(fieldURI, value, mode, comparison string) *Node[Filter] {
	f := leaf(OpContains, fieldURI, value)
	f.value.ContainmentMode = mode
	f.value.ContainmentComparison = comparison
	return f
}

// And matches items matching every child.
func And(children ...*Node[Filter]) *Node[Filter] { return logical(OpAnd, children) }

// Or matches items matching any child.
func Or(children ...*Node[Filter]) *Node[Filter] { return logical(OpOr, children) }

// Not negates child.
func Not(child *Node[Filter]) *Node[Filter] { return logical(OpNot, []*Node[Filter]{child}) }

// WriteFilter writes f under its own operator element.
func WriteFilter(e *wire.Encoder, f *Node[Filter]) error {
	return f.WriteToXML(e, wire.NamespaceTypes, string(f.value.Op))
}
