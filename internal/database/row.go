package database

import (
	"github.com/koustreak/pgdescribe/internal/errs"
)

// CollectRows reads every row with scan and returns the results in order.
//
// The returned slice is always non-nil (empty slice on zero rows).
// CollectRows always closes the Rows, so callers do not need to call Close().
func CollectRows[T any](rows Rows, scan func(Row) (T, error)) ([]T, error) {
	defer rows.Close()

	result := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, wrapScan(err)
		}
		result = append(result, v)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapScan(err)
	}
	return result, nil
}

// wrapScan keeps already-classified errors as they are.
func wrapScan(err error) error {
	if errs.KindOf(err) != errs.ErrKindUnknown {
		return err
	}
	return errs.Wrap(errs.ErrKindQueryFailed, "failed to scan row", err)
}
