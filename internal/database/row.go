package database

import (
	"github.com/koustreak/ingest/internal/errs"
	"github.com/koustreak/ingest/internal/table"
)

// ScanRows reads all rows from the result set into a table, keeping the
// driver's column order. Byte-slice values (MySQL text columns, for one)
// are converted to strings.
//
// The returned table is always non-nil on success (zero rows is a valid
// result here; Query decides what an empty result means).
// ScanRows always closes the Rows; callers do not need to call Close().
func ScanRows(rows Rows) (*table.Table, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read column names", err)
	}

	result := table.New(columns)

	for rows.Next() {
		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan row", err)
		}

		for i, v := range dest {
			if b, ok := v.([]byte); ok {
				dest[i] = string(b)
			}
		}
		result.Append(dest...)
	}

	if err := rows.Err(); err != nil {
		return nil, asQueryFailure(err, "error during row iteration")
	}

	return result, nil
}
