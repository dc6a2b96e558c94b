package eventlog

import (
	"fmt"
	"time"
)

// Column names produced by the warehouse query.
const (
	SourceCaseID    = "case_id"
	SourceActivity  = "activity"
	SourceTimestamp = "ts"
)

// SourceRenames maps query columns to the log convention.
var SourceRenames = map[string]string{
	SourceCaseID:    ColumnCaseID,
	SourceActivity:  ColumnActivity,
	SourceTimestamp: ColumnTimestamp,
}

// Frame is a tabular query result: named columns and positional rows.
type Frame struct {
	Columns []string
	Rows    [][]interface{}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool {
	return f == nil || len(f.Rows) == 0
}

// Rename returns a frame sharing f's rows with columns renamed by mapping.
// Columns absent from mapping keep their names.
func (f *Frame) Rename(mapping map[string]string) *Frame {
	cols := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		if to, ok := mapping[c]; ok {
			cols[i] = to
		} else {
			cols[i] = c
		}
	}
	return &Frame{Columns: cols, Rows: f.Rows}
}

func (f *Frame) index(name string) (int, error) {
	for i, c := range f.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("required column %q not found (have %v)", name, f.Columns)
}

// ToLog converts a frame already in log convention into a Log,
// normalising the timestamp column to UTC time.Time.
func (f *Frame) ToLog() (*Log, error) {
	caseIdx, err := f.index(ColumnCaseID)
	if err != nil {
		return nil, err
	}
	actIdx, err := f.index(ColumnActivity)
	if err != nil {
		return nil, err
	}
	tsIdx, err := f.index(ColumnTimestamp)
	if err != nil {
		return nil, err
	}

	b := NewBuilder()
	for rowNum, row := range f.Rows {
		if len(row) != len(f.Columns) {
			return nil, fmt.Errorf("row %d: %d values for %d columns", rowNum, len(row), len(f.Columns))
		}
		ts, err := ConvertTimestamp(row[tsIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		b.Add(Event{
			CaseID:    stringValue(row[caseIdx]),
			Activity:  stringValue(row[actIdx]),
			Timestamp: ts,
		})
	}
	return b.Build(), nil
}

// FromSourceFrame renames query columns and builds the log.
func FromSourceFrame(f *Frame) (*Log, error) {
	return f.Rename(SourceRenames).ToLog()
}

// timestampLayouts are tried in order for string timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ConvertTimestamp normalises a warehouse timestamp value to UTC.
// Integers are nanoseconds since the Unix epoch.
func ConvertTimestamp(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case *time.Time:
		if t == nil {
			return time.Time{}, fmt.Errorf("null timestamp")
		}
		return t.UTC(), nil
	case int64:
		return time.Unix(0, t).UTC(), nil
	case string:
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", t)
	case nil:
		return time.Time{}, fmt.Errorf("null timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case *string:
		if s == nil {
			return ""
		}
		return *s
	default:
		return fmt.Sprint(s)
	}
}
