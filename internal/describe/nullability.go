package describe

import (
	"context"

	"github.com/koustreak/pgdescribe/internal/catalog"
	"github.com/koustreak/pgdescribe/internal/logger"
)

// Inferrer decides per column whether NULL is possible: first from
// pg_attribute.attnotnull for columns read straight from a table, then,
// for whatever is still unknown, from the statement's EXPLAIN plan.
type Inferrer struct {
	cat      Catalog
	log      *logger.Logger
	fallback bool
}

// NewInferrer returns an Inferrer. With fallback false the EXPLAIN step is
// skipped.
func NewInferrer(cat Catalog, log *logger.Logger, fallback bool) *Inferrer {
	if log == nil {
		log = logger.Nop()
	}
	return &Inferrer{cat: cat, log: log, fallback: fallback}
}

// Infer returns one verdict per column, in column order. stmt names the
// prepared statement the columns came from and nparams is its parameter
// count. A failed catalog lookup is returned as an error; a failed EXPLAIN
// only leaves verdicts Unknown, unless ctx has ended.
func (in *Inferrer) Infer(ctx context.Context, stmt string, nparams int, cols []Column) ([]Nullability, error) {
	verdicts := make([]Nullability, len(cols))
	if len(cols) == 0 {
		return verdicts, nil
	}

	refs := make([]catalog.ColumnRef, len(cols))
	for i, c := range cols {
		refs[i] = catalog.ColumnRef{Index: i, RelationID: c.RelationID, AttributeNumber: c.AttributeNumber}
	}
	attnull, err := in.cat.ColumnNullability(ctx, refs)
	if err != nil {
		return nil, err
	}

	unknown := 0
	for i, n := range attnull {
		verdicts[i] = nullabilityOf(n)
		if !verdicts[i].Known() {
			unknown++
		}
	}
	if unknown == 0 || !in.fallback {
		return verdicts, nil
	}

	log := in.log.With().Str("statement", stmt).Int("unknown", unknown).Logger()

	raw, err := in.cat.ExplainStatement(ctx, stmt, nparams)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		log.WarnWith("EXPLAIN fallback failed, nullability left unknown", err, nil)
		return verdicts, nil
	}

	planned, err := planNullability(raw, len(cols))
	if err != nil {
		log.WarnWith("could not read EXPLAIN plan, nullability left unknown", err, nil)
		return verdicts, nil
	}

	for i, v := range planned {
		if !verdicts[i].Known() {
			verdicts[i] = v
		}
	}
	log.Debug("applied EXPLAIN nullability fallback")
	return verdicts, nil
}
