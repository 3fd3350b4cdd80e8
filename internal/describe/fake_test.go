package describe

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/koustreak/pgdescribe/internal/catalog"
	"github.com/koustreak/pgdescribe/internal/errs"
)

// fakeCatalog serves catalog rows from maps and counts every call.
type fakeCatalog struct {
	types  map[uint32]*catalog.TypeRow
	ranges map[uint32]uint32
	enums  map[uint32][]string
	attrs  map[uint32][]catalog.Attribute

	// attnotnull keyed by relation id and attribute number
	attnotnull map[[2]int64]bool

	plan       []byte
	planErr    error
	nullErr    error
	explained  []string
	nullLookup [][]catalog.ColumnRef

	calls map[string]int
}

const tweetRelID = 16390

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		types:  map[uint32]*catalog.TypeRow{},
		ranges: map[uint32]uint32{},
		enums:  map[uint32][]string{},
		attrs:  map[uint32][]catalog.Attribute{},
		attnotnull: map[[2]int64]bool{
			{tweetRelID, 1}: true,  // id
			{tweetRelID, 2}: true,  // created_at
			{tweetRelID, 3}: true,  // text
			{tweetRelID, 4}: false, // owner_id
		},
		calls: map[string]int{},
	}
}

func (f *fakeCatalog) total() int {
	n := 0
	for k, v := range f.calls {
		if k != "ColumnNullability" && k != "ExplainStatement" {
			n += v
		}
	}
	return n
}

func (f *fakeCatalog) TypeByOID(_ context.Context, oid uint32) (*catalog.TypeRow, error) {
	f.calls["TypeByOID"]++
	row, ok := f.types[oid]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "type oid %d", oid)
	}
	cp := *row
	cp.OID = oid
	return &cp, nil
}

func (f *fakeCatalog) TypeOIDByName(_ context.Context, name string) (uint32, error) {
	f.calls["TypeOIDByName"]++
	for oid, row := range f.types {
		if strings.EqualFold(row.Name, name) {
			return oid, nil
		}
	}
	return 0, errs.Newf(errs.ErrKindNotFound, "type %q", name)
}

func (f *fakeCatalog) RangeSubtype(_ context.Context, oid uint32) (uint32, error) {
	f.calls["RangeSubtype"]++
	sub, ok := f.ranges[oid]
	if !ok {
		return 0, errs.Newf(errs.ErrKindNotFound, "range subtype of oid %d", oid)
	}
	return sub, nil
}

func (f *fakeCatalog) EnumLabels(_ context.Context, oid uint32) ([]string, error) {
	f.calls["EnumLabels"]++
	return append([]string{}, f.enums[oid]...), nil
}

func (f *fakeCatalog) CompositeAttributes(_ context.Context, relid uint32) ([]catalog.Attribute, error) {
	f.calls["CompositeAttributes"]++
	return append([]catalog.Attribute{}, f.attrs[relid]...), nil
}

func (f *fakeCatalog) ColumnNullability(_ context.Context, refs []catalog.ColumnRef) ([]*bool, error) {
	f.calls["ColumnNullability"]++
	f.nullLookup = append(f.nullLookup, refs)
	if f.nullErr != nil {
		return nil, f.nullErr
	}
	out := make([]*bool, len(refs))
	for i, r := range refs {
		if r.RelationID == 0 {
			continue
		}
		if notNull, ok := f.attnotnull[[2]int64{int64(r.RelationID), int64(r.AttributeNumber)}]; ok {
			nullable := !notNull
			out[i] = &nullable
		}
	}
	return out, nil
}

func (f *fakeCatalog) ExplainStatement(_ context.Context, stmt string, _ int) ([]byte, error) {
	f.calls["ExplainStatement"]++
	f.explained = append(f.explained, stmt)
	if f.planErr != nil {
		return nil, f.planErr
	}
	return f.plan, nil
}

// fakePreparer answers Prepare from a map of SQL to statement description.
type fakePreparer struct {
	stmts       map[string]*pgconn.StatementDescription
	prepareErr  error
	prepared    []string
	deallocated []string

	// when set, Prepare signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (p *fakePreparer) Prepare(_ context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	if p.entered != nil {
		close(p.entered)
		<-p.release
	}
	p.prepared = append(p.prepared, name)
	if p.prepareErr != nil {
		return nil, p.prepareErr
	}
	sd, ok := p.stmts[sql]
	if !ok {
		return nil, errs.Newf(errs.ErrKindQueryFailed, "prepare failed: unknown statement %q", sql)
	}
	cp := *sd
	cp.Name = name
	cp.SQL = sql
	return &cp, nil
}

func (p *fakePreparer) Deallocate(_ context.Context, name string) error {
	p.deallocated = append(p.deallocated, name)
	return nil
}

func field(name string, oid uint32, relid uint32, attnum uint16) pgconn.FieldDescription {
	return pgconn.FieldDescription{Name: name, DataTypeOID: oid, TableOID: relid, TableAttributeNumber: attnum}
}

// tweetStatements covers the statements the Conn tests describe.
func tweetStatements() map[string]*pgconn.StatementDescription {
	return map[string]*pgconn.StatementDescription{
		"SELECT * FROM tweet": {
			Fields: []pgconn.FieldDescription{
				field("id", pgtype.Int8OID, tweetRelID, 1),
				field("created_at", pgtype.TimestampOID, tweetRelID, 2),
				field("text", pgtype.TextOID, tweetRelID, 3),
				field("owner_id", pgtype.Int8OID, tweetRelID, 4),
			},
		},
		"SELECT text AS tweet_text FROM tweet": {
			Fields: []pgconn.FieldDescription{
				field("tweet_text", pgtype.TextOID, tweetRelID, 3),
			},
		},
		"INSERT INTO tweet (text, owner_id) VALUES ($1, $2)": {
			ParamOIDs: []uint32{pgtype.TextOID, pgtype.Int8OID},
		},
		"SELECT id, id FROM tweet": {
			Fields: []pgconn.FieldDescription{
				field("id", pgtype.Int8OID, tweetRelID, 1),
				field("id", pgtype.Int8OID, tweetRelID, 1),
			},
		},
		"SELECT 1 + $1": {
			ParamOIDs: []uint32{pgtype.Int4OID},
			Fields:    []pgconn.FieldDescription{field("?column?", pgtype.Int4OID, 0, 0)},
		},
	}
}
