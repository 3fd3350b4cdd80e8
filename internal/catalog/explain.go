package catalog

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/koustreak/pgdescribe/internal/errs"
)

// ExplainStatement returns the JSON plan of the prepared statement stmt,
// executed with every one of its nparams parameters bound to NULL. The
// statement is planned but not run.
func (c *Catalog) ExplainStatement(ctx context.Context, stmt string, nparams int) ([]byte, error) {
	q := explainSQL(stmt, nparams)

	// The text names a per-describe statement; run it unprepared so pgx's
	// statement cache does not fill with one entry per describe.
	var plan []byte
	if err := c.db.QueryRow(ctx, q, pgx.QueryExecModeSimpleProtocol).Scan(&plan); err != nil {
		return nil, notFoundOr(err, errs.ErrKindQueryFailed, "explain "+stmt)
	}
	return plan, nil
}

func explainSQL(stmt string, nparams int) string {
	var sb strings.Builder
	sb.WriteString("EXPLAIN (VERBOSE, FORMAT JSON) EXECUTE ")
	sb.WriteString(quoteIdent(stmt))
	if nparams > 0 {
		sb.WriteString("(")
		sb.WriteString(strings.Repeat("NULL, ", nparams-1))
		sb.WriteString("NULL)")
	}
	return sb.String()
}
