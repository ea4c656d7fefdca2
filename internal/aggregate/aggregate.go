// Package aggregate derives the dashboard's render-ready views from the
// filtered record set: scalar KPIs, a categorical grouping for bar/pie
// charts, and a time series for line/area charts.
//
// The column heuristics here (sales/revenue substring detection, grouping on
// the first field, the literal "Date" time column, the second field as the
// series value) mirror the dashboard's established behavior and are relied
// upon by scenario tests. They are knowingly fragile defaults, not contracts
// worth generalizing without a migration plan.
package aggregate

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/insightdeck/insightdeck/config"
	"github.com/insightdeck/insightdeck/internal/dataset"
)

// UnknownLabel buckets records whose grouping value is missing or blank.
const UnknownLabel = "Unknown"

// timeField is the exact column name the time series reads dates from.
const timeField = "Date"

// fallbackValueField is used for the time-series value when the dataset has
// fewer than two columns.
const fallbackValueField = "Sales"

// displayDateLayout renders parsed dates the way the grid shows them.
const displayDateLayout = "1/2/2006"

// Summary holds the scalar KPIs for the filtered dataset.
type Summary struct {
	TotalRows  int     `json:"totalRows"`
	TotalSales float64 `json:"totalSales"`
	AvgSales   float64 `json:"avgSales"`
}

// CategoryCount is one categorical series entry with its assigned color.
type CategoryCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

// TimePoint is one time-series entry: a display date and a coerced value.
type TimePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// SalesField returns the first field whose name contains "sales" or
// "revenue", case-insensitively.
func SalesField(fields []dataset.Field) (string, bool) {
	for _, f := range fields {
		low := strings.ToLower(f.Name)
		if strings.Contains(low, "sales") || strings.Contains(low, "revenue") {
			return f.Name, true
		}
	}
	return "", false
}

// Summarize computes the KPI scalars. Unparsable sales cells coerce to 0;
// with no sales-like column the totals stay 0.
func Summarize(records []dataset.Record, fields []dataset.Field) Summary {
	s := Summary{TotalRows: len(records)}

	field, ok := SalesField(fields)
	if ok {
		for _, rec := range records {
			s.TotalSales += cast.ToFloat64(strings.TrimSpace(rec[field]))
		}
	}
	if s.TotalRows > 0 {
		s.AvgSales = s.TotalSales / float64(s.TotalRows)
	}
	return s
}

// ByCategory groups records by the value of the first field, in first-seen
// order, cycling colors through the fixed palette. Blank values land in the
// Unknown bucket. Counts always sum to len(records).
func ByCategory(records []dataset.Record, fields []dataset.Field) []CategoryCount {
	if len(fields) == 0 {
		return nil
	}
	groupField := fields[0].Name

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, rec := range records {
		key := strings.TrimSpace(rec[groupField])
		if key == "" {
			key = UnknownLabel
		}
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	out := make([]CategoryCount, 0, len(order))
	for i, key := range order {
		out = append(out, CategoryCount{
			Label: key,
			Count: counts[key],
			Color: config.ChartPalette[i%len(config.ChartPalette)],
		})
	}
	return out
}

// OverTime emits one point per record with a non-empty Date cell, in record
// order. The value column is the second field, or the fallback when the
// dataset is narrower. Records without a date are dropped, not zero-filled.
func OverTime(records []dataset.Record, fields []dataset.Field) []TimePoint {
	valueField := fallbackValueField
	if len(fields) > 1 {
		valueField = fields[1].Name
	}

	out := make([]TimePoint, 0, len(records))
	for _, rec := range records {
		raw := strings.TrimSpace(rec[timeField])
		if raw == "" {
			continue
		}
		display := raw
		if d, ok := dataset.ParseDate(raw); ok {
			display = d.Format(displayDateLayout)
		}
		out = append(out, TimePoint{
			Date:  display,
			Value: cast.ToFloat64(strings.TrimSpace(rec[valueField])),
		})
	}
	return out
}
