package dataset

import (
	"encoding/csv"
	"io"
)

// WriteCSV writes the given records as delimited text: a header row of the
// field names followed by one row per record in the current column order.
func WriteCSV(w io.Writer, fields []Field, records []Record) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(fields))
	for _, rec := range records {
		for i, f := range fields {
			row[i] = rec[f.Name]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
