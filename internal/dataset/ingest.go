package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat indicates the uploaded file extension is not recognized.
var ErrUnsupportedFormat = errors.New("dataset: unsupported file format")

// ErrParseFailure indicates the underlying parser could not produce records.
var ErrParseFailure = errors.New("dataset: parse failure")

// Parse converts an uploaded file into a Dataset, dispatching on the file
// extension. Delimited text goes through encoding/csv; spreadsheets through
// excelize, reading the first sheet only. Field names come from the header
// row for both formats and rows are padded so every record carries the full
// field set.
func Parse(name string, r io.Reader) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return parseCSV(r)
	case ".xlsx", ".xls":
		return parseWorkbook(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

func parseCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1 // ragged rows are padded below

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	return fromRows(rows)
}

func parseWorkbook(r io.Reader) (*Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrParseFailure)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	return fromRows(rows)
}

// fromRows builds a Dataset from raw rows, treating the first row as the
// header. A missing or all-blank header row is rejected rather than inferring
// columns from later rows.
func fromRows(rows [][]string) (*Dataset, error) {
	headers, rest := headerRow(rows)
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrParseFailure)
	}

	records := make([]Record, 0, len(rest))
	for _, row := range rest {
		if blankRow(row) {
			continue
		}
		rec := make(Record, len(headers))
		for i, name := range headers {
			if i < len(row) {
				rec[name] = row[i]
			} else {
				rec[name] = ""
			}
		}
		records = append(records, rec)
	}

	return &Dataset{
		Fields:  inferFields(headers, records),
		Records: records,
	}, nil
}

// headerRow extracts trimmed header names from the first row, dropping
// trailing unnamed columns, and returns the remaining data rows.
func headerRow(rows [][]string) ([]string, [][]string) {
	if len(rows) == 0 {
		return nil, nil
	}
	raw := rows[0]
	end := len(raw)
	for end > 0 && strings.TrimSpace(raw[end-1]) == "" {
		end--
	}
	headers := make([]string, 0, end)
	for _, h := range raw[:end] {
		headers = append(headers, strings.TrimSpace(h))
	}
	if len(headers) == 0 {
		return nil, nil
	}
	return headers, rows[1:]
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
