// Package catalog issues the pg_catalog and EXPLAIN queries a describe needs.
// It owns the SQL and the row shapes; interpreting them is left to describe.
package catalog

import (
	"github.com/koustreak/pgdescribe/internal/database"
	"github.com/koustreak/pgdescribe/internal/errs"
)

// Type categories from pg_type.typcategory that change how a type is described.
// See https://www.postgresql.org/docs/current/catalog-pg-type.html#CATALOG-TYPCATEGORY-TABLE
const (
	CategoryArray     byte = 'A'
	CategoryComposite byte = 'C'
	CategoryEnum      byte = 'E'
	CategoryPseudo    byte = 'P'
	CategoryRange     byte = 'R'
)

// TypeRow is the pg_type row for one oid.
type TypeRow struct {
	OID        uint32
	Name       string
	Category   byte
	RelationID uint32 // typrelid, set for composites
	ElementOID uint32 // typelem, set for arrays
}

// Attribute is one live attribute of a composite type's relation.
type Attribute struct {
	Name    string
	TypeOID uint32
}

// ColumnRef identifies the table column a result column was read from.
// RelationID is 0 when the column is computed.
type ColumnRef struct {
	Index           int
	RelationID      uint32
	AttributeNumber int16
}

// Catalog runs catalog queries through an Executor. It holds no state of its
// own and is as safe for concurrent use as the Executor it wraps.
type Catalog struct {
	db database.Executor
}

// New returns a Catalog reading through db.
func New(db database.Executor) *Catalog {
	return &Catalog{db: db}
}

// notFoundOr rewrites a missing-row error as a NotFound with msg and wraps
// everything else as kind.
func notFoundOr(err error, kind errs.ErrKind, msg string) error {
	if errs.IsNotFound(err) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}
	if errs.KindOf(err) != errs.ErrKindUnknown {
		return err
	}
	return errs.Wrap(kind, msg, err)
}
