// Package describe turns the Parse/Describe response for a SQL statement into
// typed column and parameter descriptors for one connection.
//
// A Conn owns a type cache, a resolver that fills it from pg_catalog, a
// builder holding the last published result, and the nullability inferrer.
// All catalog lookups are issued over the same connection the statement was
// prepared on, strictly one at a time.
package describe

import (
	"context"

	"github.com/koustreak/pgdescribe/internal/catalog"
)

// Catalog is the set of catalog queries describe issues. *catalog.Catalog
// implements it over a live connection.
type Catalog interface {
	TypeByOID(ctx context.Context, oid uint32) (*catalog.TypeRow, error)
	TypeOIDByName(ctx context.Context, name string) (uint32, error)
	RangeSubtype(ctx context.Context, oid uint32) (uint32, error)
	EnumLabels(ctx context.Context, oid uint32) ([]string, error)
	CompositeAttributes(ctx context.Context, relid uint32) ([]catalog.Attribute, error)
	ColumnNullability(ctx context.Context, refs []catalog.ColumnRef) ([]*bool, error)
	ExplainStatement(ctx context.Context, stmt string, nparams int) ([]byte, error)
}

var _ Catalog = (*catalog.Catalog)(nil)
