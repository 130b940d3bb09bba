package complex

import (
	"encoding/xml"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	ews "github.com/meszmate/ews-go"
	"github.com/meszmate/ews-go/wire"
)

// DateLayout is the xs:date layout used by recurrence ranges.
const DateLayout = "2006-01-02"

// PatternKind names a recurrence pattern element.
type PatternKind string

const (
	PatternDaily  PatternKind = "DailyRecurrence"
	PatternWeekly PatternKind = "WeeklyRecurrence"
)

// RangeKind names a recurrence range element.
type RangeKind string

const (
	RangeNoEnd    RangeKind = "NoEndRecurrence"
	RangeEndDate  RangeKind = "EndDateRecurrence"
	RangeNumbered RangeKind = "NumberedRecurrence"
)

// Recurrence is the repetition rule of a calendar item: a pattern saying
// how often it repeats and a range saying for how long.
type Recurrence struct {
	Pattern    PatternKind
	Interval   int
	DaysOfWeek []time.Weekday

	Range               RangeKind
	StartDate           time.Time
	EndDate             time.Time
	NumberOfOccurrences int
}

// RecurrenceBehavior reads and writes a Recurrence element.
var RecurrenceBehavior = &Behavior[Recurrence]{
	Reset: func(v *Recurrence, _ bool) {
		*v = Recurrence{}
	},
	TryReadElement: func(n *Node[Recurrence], d *wire.Decoder, start xml.StartElement) (bool, error) {
		v := &n.value
		switch name := start.Name.Local; name {
		case string(PatternDaily), string(PatternWeekly):
			v.Pattern = PatternKind(name)
			return true, readChildren(d, start, func(child xml.StartElement) (bool, error) {
				return readPatternField(v, d, child)
			})
		case string(RangeNoEnd), string(RangeEndDate), string(RangeNumbered):
			v.Range = RangeKind(name)
			return true, readChildren(d, start, func(child xml.StartElement) (bool, error) {
				return readRangeField(v, d, child)
			})
		}
		return false, nil
	},
	WriteElements: func(v *Recurrence, e *wire.Encoder) error {
		e.StartElement(wire.NamespaceTypes, string(v.Pattern))
		e.Int(wire.NamespaceTypes, "Interval", v.Interval)
		if v.Pattern == PatternWeekly {
			e.Element(wire.NamespaceTypes, "DaysOfWeek", formatDays(v.DaysOfWeek))
		}
		e.EndElement()

		e.StartElement(wire.NamespaceTypes, string(v.Range))
		e.Element(wire.NamespaceTypes, "StartDate", v.StartDate.Format(DateLayout))
		switch v.Range {
		case RangeEndDate:
			e.Element(wire.NamespaceTypes, "EndDate", v.EndDate.Format(DateLayout))
		case RangeNumbered:
			e.Int(wire.NamespaceTypes, "NumberOfOccurrences", v.NumberOfOccurrences)
		}
		e.EndElement()
		return e.Err()
	},
	Validate: validateRecurrence,
}

func validateRecurrence(v *Recurrence) error {
	switch v.Pattern {
	case PatternDaily:
	case PatternWeekly:
		if len(v.DaysOfWeek) == 0 {
			return ews.NewValidationError("recurrence", "weekly pattern needs at least one day")
		}
	default:
		return ews.NewValidationError("recurrence", "unknown pattern %q", v.Pattern)
	}
	if v.Interval < 1 {
		return ews.NewValidationError("recurrence", "interval must be at least 1, got %d", v.Interval)
	}
	if v.StartDate.IsZero() {
		return ews.NewValidationError("recurrence", "start date is required")
	}
	switch v.Range {
	case RangeNoEnd:
	case RangeEndDate:
		if v.EndDate.Before(v.StartDate) {
			return ews.NewValidationError("recurrence", "end date %s is before start date %s",
				v.EndDate.Format(DateLayout), v.StartDate.Format(DateLayout))
		}
	case RangeNumbered:
		if v.NumberOfOccurrences < 1 {
			return ews.NewValidationError("recurrence", "number of occurrences must be at least 1")
		}
	default:
		return ews.NewValidationError("recurrence", "unknown range %q", v.Range)
	}
	return nil
}

func readPatternField(v *Recurrence, d *wire.Decoder, start xml.StartElement) (bool, error) {
	switch start.Name.Local {
	case "Interval":
		i, err := d.ReadInt(start)
		if err != nil {
			return false, err
		}
		v.Interval = i
		return true, nil
	case "DaysOfWeek":
		s, err := d.ReadText(start)
		if err != nil {
			return false, err
		}
		days, err := parseDays(s)
		if err != nil {
			return false, &ews.SerializationError{Element: "DaysOfWeek", Err: err}
		}
		v.DaysOfWeek = days
		return true, nil
	}
	return false, nil
}

func readRangeField(v *Recurrence, d *wire.Decoder, start xml.StartElement) (bool, error) {
	switch start.Name.Local {
	case "StartDate", "EndDate":
		s, err := d.ReadText(start)
		if err != nil {
			return false, err
		}
		t, err := parseDate(s)
		if err != nil {
			return false, &ews.SerializationError{Element: start.Name.Local, Err: err}
		}
		if start.Name.Local == "StartDate" {
			v.StartDate = t
		} else {
			v.EndDate = t
		}
		return true, nil
	case "NumberOfOccurrences":
		i, err := d.ReadInt(start)
		if err != nil {
			return false, err
		}
		v.NumberOfOccurrences = i
		return true, nil
	}
	return false, nil
}

// parseDate reads an xs:date, ignoring any zone suffix the server appends.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	return t, errors.WithStack(err)
}

func parseDays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, f := range strings.Fields(s) {
		day, ok := weekdays[f]
		if !ok {
			return nil, errors.Errorf("unknown day %q", f)
		}
		days = append(days, day)
	}
	return days, nil
}

func formatDays(days []time.Weekday) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()
	}
	return strings.Join(names, " ")
}

var weekdays = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

// NewRecurrence creates an empty recurrence node.
func NewRecurrence() *Node[Recurrence] {
	return NewNode(RecurrenceBehavior, Recurrence{})
}

// Daily creates a daily recurrence with no end.
func Daily(interval int, start time.Time) *Node[Recurrence] {
	return NewNode(RecurrenceBehavior, Recurrence{
		Pattern:   PatternDaily,
		Interval:  interval,
		Range:     RangeNoEnd,
		StartDate: start,
	})
}

// Weekly creates a weekly recurrence on the given days with no end.
func Weekly(interval int, start time.Time, days ...time.Weekday) *Node[Recurrence] {
	return NewNode(RecurrenceBehavior, Recurrence{
		Pattern:    PatternWeekly,
		Interval:   interval,
		DaysOfWeek: days,
		Range:      RangeNoEnd,
		StartDate:  start,
	})
}

// readChildren walks the children of start, passing each to fn. Children
// fn does not recognize are skipped. It consumes the end of start.
func readChildren(d *wire.Decoder, start xml.StartElement, fn func(child xml.StartElement) (bool, error)) error {
	for {
		tok, err := d.Read()
		if err != nil {
			if err == io.EOF {
				return &ews.SerializationError{Element: start.Name.Local, Err: io.ErrUnexpectedEOF}
			}
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			ok, err := fn(t)
			if err != nil {
				return err
			}
			if !ok {
				if err := d.Skip(t); err != nil {
					return err
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}
