package complex

import (
	"encoding/xml"
	"time"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/wire"
)

// TimeWindow is a closed range of time.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// TimeWindowBehavior reads and writes StartTime and EndTime children.
var TimeWindowBehavior = &Behavior[TimeWindow]{
	Reset: func(v *TimeWindow, patch bool) {
		if !patch {
			*v = TimeWindow{}
		}
	},
	TryReadElement: func(n *Node[TimeWindow], d *wire.Decoder, start xml.StartElement) (bool, error) {
		var dst *time.Time
		switch start.Name.Local {
		case "StartTime":
			dst = &n.value.Start
		case "EndTime":
			dst = &n.value.End
		default:
			return false, nil
		}
		t, err := d.ReadDateTime(start)
		if err != nil {
			return false, err
		}
		*dst = t
		return true, nil
	},
	WriteElements: func(v *TimeWindow, e *wire.Encoder) error {
		e.DateTime(wire.NamespaceTypes, "StartTime", v.Start)
		e.DateTime(wire.NamespaceTypes, "EndTime", v.End)
		return e.Err()
	},
	Validate: func(v *TimeWindow) error {
		if v.Start.After(v.End) {
			return ews.NewValidationError("time window", "start %s is after end %s",
				v.Start.Format(ews.DateTimeLayout), v.End.Format(ews.DateTimeLayout))
		}
		return nil
	},
}

// NewTimeWindow creates a time window node.
func NewTimeWindow(start, end time.Time) *Node[TimeWindow] {
	return NewNode(TimeWindowBehavior, TimeWindow{Start: start, End: end})
}
