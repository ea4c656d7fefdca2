// Package filter implements the compound row filter: free-text search, date
// range, and per-field numeric bounds, AND-combined. Apply is pure and total;
// rows lacking the data a predicate needs are passed through rather than
// excluded.
package filter

import (
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/insightdeck/insightdeck/internal/dataset"
)

// Bound constrains one field's coerced numeric value. Nil ends are open.
type Bound struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// Config is the combined filter state. The zero value is the neutral config
// that passes every record.
type Config struct {
	Query    string           `json:"query"`
	DateFrom *time.Time       `json:"dateFrom"`
	DateTo   *time.Time       `json:"dateTo"`
	Bounds   map[string]Bound `json:"bounds"`
}

// IsZero reports whether no filter axis is active.
func (c Config) IsZero() bool {
	if strings.TrimSpace(c.Query) != "" || c.DateFrom != nil || c.DateTo != nil {
		return false
	}
	for _, b := range c.Bounds {
		if b.Min != nil || b.Max != nil {
			return false
		}
	}
	return true
}

// Apply returns the order-preserving subsequence of records passing every
// active predicate. Evaluation short-circuits per record.
func Apply(ds *dataset.Dataset, cfg Config) []dataset.Record {
	if ds == nil {
		return nil
	}
	if cfg.IsZero() {
		out := make([]dataset.Record, len(ds.Records))
		copy(out, ds.Records)
		return out
	}

	query := strings.ToLower(strings.TrimSpace(cfg.Query))
	dateField := dateFieldName(ds.Fields)

	out := make([]dataset.Record, 0, len(ds.Records))
	for _, rec := range ds.Records {
		if !matchesQuery(rec, ds.Fields, query) {
			continue
		}
		if !matchesDates(rec, dateField, cfg.DateFrom, cfg.DateTo) {
			continue
		}
		if !matchesBounds(rec, cfg.Bounds) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// dateFieldName picks the field the date range applies to: a column literally
// named "Date", else "date"; first match wins. No other spellings qualify.
func dateFieldName(fields []dataset.Field) string {
	for _, want := range []string{"Date", "date"} {
		for _, f := range fields {
			if f.Name == want {
				return want
			}
		}
	}
	return ""
}

func matchesQuery(rec dataset.Record, fields []dataset.Field, query string) bool {
	if query == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(rec[f.Name]), query) {
			return true
		}
	}
	return false
}

// matchesDates excludes a record only when it carries a parsable date outside
// the configured range. Records with no usable date always pass this axis.
func matchesDates(rec dataset.Record, dateField string, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	if dateField == "" {
		return true
	}
	d, ok := dataset.ParseDate(rec[dateField])
	if !ok {
		return true
	}
	if from != nil && d.Before(*from) {
		return false
	}
	if to != nil && d.After(*to) {
		return false
	}
	return true
}

// matchesBounds checks every bounded field independently. The record's value
// is coerced; unparsable cells compare as 0 rather than being rejected.
func matchesBounds(rec dataset.Record, bounds map[string]Bound) bool {
	for field, b := range bounds {
		if b.Min == nil && b.Max == nil {
			continue
		}
		raw, ok := rec[field]
		if !ok {
			continue
		}
		v := cast.ToFloat64(strings.TrimSpace(raw))
		if b.Min != nil && v < *b.Min {
			return false
		}
		if b.Max != nil && v > *b.Max {
			return false
		}
	}
	return true
}
