package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/koustreak/ingest/internal/errs"
	"github.com/koustreak/ingest/internal/table"
)

// naValues are cell texts read as missing (nil).
var naValues = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true,
	"-1.#QNAN": true, "-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true,
	"<NA>": true, "N/A": true, "NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

var (
	trueValues  = map[string]bool{"true": true, "True": true, "TRUE": true}
	falseValues = map[string]bool{"false": true, "False": true, "FALSE": true}
)

// Parse reads a CSV document whose first record is the header. Cell values
// are typed per column (see inferColumn).
//
// An empty document, one with no header, or malformed CSV is an error of
// kind ErrKindInvalidSource. A header-only document yields a table with
// columns and no rows. Read errors from r are ErrKindFetchFailed.
func Parse(r io.Reader) (*table.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errs.New(errs.ErrKindInvalidSource, "no columns to parse from source")
	}
	if err != nil {
		return nil, readError(err)
	}
	columns := headerNames(header)

	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, readError(err)
		}
		if len(rec) > len(columns) {
			line, _ := cr.FieldPos(0)
			return nil, errs.New(errs.ErrKindInvalidSource,
				fmt.Sprintf("line %d: expected %d fields, saw %d", line, len(columns), len(rec)))
		}
		records = append(records, rec)
	}

	typed := make([][]any, len(columns))
	for c := range columns {
		cells := make([]string, len(records))
		for i, rec := range records {
			if c < len(rec) {
				cells[i] = rec[c]
			}
		}
		typed[c] = inferColumn(cells)
	}

	tbl := table.New(columns)
	row := make([]any, len(columns))
	for i := range records {
		for c := range columns {
			row[c] = typed[c][i]
		}
		tbl.Append(row...)
	}
	return tbl, nil
}

func readError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return errs.Wrap(errs.ErrKindInvalidSource, "malformed CSV", err)
	}
	return errs.Wrap(errs.ErrKindFetchFailed, "failed to read CSV content", err)
}

// headerNames strips a UTF-8 BOM, names blank headers "Unnamed: N" and
// suffixes duplicates with ".1", ".2", ….
func headerNames(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	dupes := make(map[string]int)

	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		name := h
		for used[name] {
			dupes[h]++
			name = fmt.Sprintf("%s.%d", h, dupes[h])
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// inferColumn converts a column's cells to the narrowest type that fits all
// non-missing cells: int64, then float64, then bool, then string. Missing
// cells are nil whatever the column type.
func inferColumn(cells []string) []any {
	out := make([]any, len(cells))

	switch {
	case allCells(cells, isInt):
		for i, s := range cells {
			if !isNA(s) {
				out[i], _ = strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			}
		}
	case allCells(cells, isFloat):
		for i, s := range cells {
			if !isNA(s) {
				out[i], _ = strconv.ParseFloat(strings.TrimSpace(s), 64)
			}
		}
	case allCells(cells, isBool):
		for i, s := range cells {
			if !isNA(s) {
				out[i] = trueValues[strings.TrimSpace(s)]
			}
		}
	default:
		for i, s := range cells {
			if !isNA(s) {
				out[i] = s
			}
		}
	}
	return out
}

// allCells reports whether every non-missing cell satisfies ok. A column
// with no values at all does not match any typed kind.
func allCells(cells []string, ok func(string) bool) bool {
	found := false
	for _, s := range cells {
		if isNA(s) {
			continue
		}
		if !ok(strings.TrimSpace(s)) {
			return false
		}
		found = true
	}
	return found
}

func isNA(s string) bool { return naValues[s] }

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// isFloat accepts finite numbers only; "inf", "Infinity" and "NAN" stay
// text so every parsed table can be encoded as JSON.
func isFloat(s string) bool {
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func isBool(s string) bool { return trueValues[s] || falseValues[s] }
