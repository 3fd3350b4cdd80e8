package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/pgdescribe/internal/database"
	"github.com/koustreak/pgdescribe/internal/errs"
)

// valuesBuilder constructs the bulk attnotnull lookup: one VALUES row per
// result column, left-joined against pg_attribute so computed columns still
// produce a (NULL) row and the output lines up with the input.
// Values are never interpolated into the SQL string; they are always passed as args.
type valuesBuilder struct {
	refs []ColumnRef
}

// Build produces the SQL string and argument slice.
func (b *valuesBuilder) Build() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT NOT pg_attribute.attnotnull FROM (VALUES ")

	args := make([]any, 0, 3*len(b.refs))
	argIdx := 1
	for i, ref := range b.refs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "(%s::int4, %s::oid, %s::int2)",
			placeholder(argIdx), placeholder(argIdx+1), placeholder(argIdx+2))
		argIdx += 3

		var relid any // computed columns join nothing
		if ref.RelationID != 0 {
			relid = ref.RelationID
		}
		args = append(args, int32(ref.Index), relid, ref.AttributeNumber)
	}

	sb.WriteString(") AS col(idx, table_id, col_idx)" +
		" LEFT JOIN pg_catalog.pg_attribute" +
		" ON table_id IS NOT NULL AND attrelid = table_id AND attnum = col_idx" +
		" ORDER BY col.idx")
	return sb.String(), args
}

// ColumnNullability reports for each ref whether the referenced table column
// admits NULL. Entries are nil where the catalog cannot say: computed
// columns and unknown relations. The result has one entry per ref, in order.
func (c *Catalog) ColumnNullability(ctx context.Context, refs []ColumnRef) ([]*bool, error) {
	if len(refs) == 0 {
		return []*bool{}, nil
	}

	q, args := (&valuesBuilder{refs: refs}).Build()
	rows, err := c.db.Query(ctx, q, args...)
	if err != nil {
		return nil, notFoundOr(err, errs.ErrKindQueryFailed, "column nullability lookup")
	}
	out, err := database.CollectRows(rows, func(r database.Row) (*bool, error) {
		var nullable *bool
		err := r.Scan(&nullable)
		return nullable, err
	})
	if err != nil {
		return nil, err
	}
	if len(out) != len(refs) {
		return nil, errs.Newf(errs.ErrKindProtocol,
			"column nullability lookup returned %d rows for %d columns", len(out), len(refs))
	}
	return out, nil
}

// placeholder returns the Postgres parameter placeholder for idx.
func placeholder(idx int) string {
	return fmt.Sprintf("$%d", idx)
}

// quoteIdent wraps a SQL identifier in double-quotes (ANSI standard).
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
