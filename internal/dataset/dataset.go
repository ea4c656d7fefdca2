// Package dataset defines the in-memory table model produced by ingestion and
// consumed by the filter and aggregation engines.
package dataset

import (
	"strconv"
	"strings"
	"time"
)

// Record is one row: a mapping from field name to the raw cell text. Values
// keep their string form; numeric coercion happens at use sites so that
// unparsable values stay visible in the grid and coerce to zero elsewhere.
type Record map[string]string

// Field describes one column: its name and whether its values look numeric.
type Field struct {
	Name    string `json:"name"`
	Numeric bool   `json:"numeric"`
}

// Dataset is the full in-memory table: ordered field descriptors plus ordered
// records with a uniform field set. It is replaced wholesale on each upload;
// Version increases monotonically with every replacement and is used to
// invalidate grid cursors issued against earlier uploads.
type Dataset struct {
	Fields  []Field
	Records []Record
	Version int64
}

// FieldNames returns the ordered column names.
func (d *Dataset) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// Len returns the record count; safe on a nil dataset.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// inferFields builds descriptors from header names, marking a column numeric
// when its first non-empty value parses as a float.
func inferFields(headers []string, records []Record) []Field {
	fields := make([]Field, len(headers))
	for i, name := range headers {
		fields[i] = Field{Name: name}
		for _, rec := range records {
			v := strings.TrimSpace(rec[name])
			if v == "" {
				continue
			}
			if _, err := strconv.ParseFloat(v, 64); err == nil {
				fields[i].Numeric = true
			}
			break
		}
	}
	return fields
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"2006-01-02 15:04:05",
}

// ParseDate attempts the known date layouts against a cell value.
func ParseDate(s string) (time.Time, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if parsed, err := time.Parse(l, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
