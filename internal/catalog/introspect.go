package catalog

import (
	"context"
	"fmt"

	"github.com/koustreak/pgdescribe/internal/database"
	"github.com/koustreak/pgdescribe/internal/errs"
)

// TypeByOID returns the pg_type row for oid.
func (c *Catalog) TypeByOID(ctx context.Context, oid uint32) (*TypeRow, error) {
	const q = `
		SELECT typname,
		       typcategory::text,
		       typrelid,
		       typelem
		FROM pg_catalog.pg_type
		WHERE oid = $1`

	row := &TypeRow{OID: oid}
	var category string
	err := c.db.QueryRow(ctx, q, oid).Scan(&row.Name, &category, &row.RelationID, &row.ElementOID)
	if err != nil {
		return nil, notFoundOr(err, errs.ErrKindQueryFailed, fmt.Sprintf("type oid %d", oid))
	}
	if len(category) != 1 {
		return nil, errs.Newf(errs.ErrKindProtocol, "type oid %d: malformed typcategory %q", oid, category)
	}
	row.Category = category[0]
	return row, nil
}

// TypeOIDByName returns the oid of the type called name, compared
// case-insensitively. Types visible on the search path win over others.
func (c *Catalog) TypeOIDByName(ctx context.Context, name string) (uint32, error) {
	const q = `
		SELECT oid
		FROM pg_catalog.pg_type
		WHERE lower(typname) = lower($1)
		ORDER BY pg_catalog.pg_type_is_visible(oid) DESC, oid
		LIMIT 1`

	var oid uint32
	if err := c.db.QueryRow(ctx, q, name).Scan(&oid); err != nil {
		return 0, notFoundOr(err, errs.ErrKindQueryFailed, fmt.Sprintf("type %q", name))
	}
	return oid, nil
}

// RangeSubtype returns the element type of the range type oid.
func (c *Catalog) RangeSubtype(ctx context.Context, oid uint32) (uint32, error) {
	const q = `
		SELECT rngsubtype
		FROM pg_catalog.pg_range
		WHERE rngtypid = $1`

	var sub uint32
	if err := c.db.QueryRow(ctx, q, oid).Scan(&sub); err != nil {
		return 0, notFoundOr(err, errs.ErrKindQueryFailed, fmt.Sprintf("range subtype of oid %d", oid))
	}
	return sub, nil
}

// EnumLabels returns the labels of the enum type oid in declaration order.
func (c *Catalog) EnumLabels(ctx context.Context, oid uint32) ([]string, error) {
	const q = `
		SELECT enumlabel
		FROM pg_catalog.pg_enum
		WHERE enumtypid = $1
		ORDER BY enumsortorder`

	rows, err := c.db.Query(ctx, q, oid)
	if err != nil {
		return nil, notFoundOr(err, errs.ErrKindQueryFailed, fmt.Sprintf("enum labels of oid %d", oid))
	}
	return database.CollectRows(rows, func(r database.Row) (string, error) {
		var label string
		err := r.Scan(&label)
		return label, err
	})
}

// CompositeAttributes returns the live attributes of relation relid in
// attnum order. Dropped and system attributes are skipped.
func (c *Catalog) CompositeAttributes(ctx context.Context, relid uint32) ([]Attribute, error) {
	const q = `
		SELECT attname, atttypid
		FROM pg_catalog.pg_attribute
		WHERE attrelid = $1
		  AND NOT attisdropped
		  AND attnum > 0
		ORDER BY attnum`

	rows, err := c.db.Query(ctx, q, relid)
	if err != nil {
		return nil, notFoundOr(err, errs.ErrKindQueryFailed, fmt.Sprintf("attributes of relation %d", relid))
	}
	return database.CollectRows(rows, func(r database.Row) (Attribute, error) {
		var a Attribute
		err := r.Scan(&a.Name, &a.TypeOID)
		return a, err
	})
}
