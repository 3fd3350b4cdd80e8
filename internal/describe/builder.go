package describe

import (
	"context"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"
)

// Builder turns row and parameter descriptions into descriptors and holds
// the connection's current Result. Readers of Current never see a Result
// that is still being built: a new one is assembled separately and swapped
// in whole.
type Builder struct {
	res     *Resolver
	current atomic.Pointer[Result]
}

// NewBuilder returns a Builder resolving types through res.
func NewBuilder(res *Resolver) *Builder {
	return &Builder{res: res}
}

// Columns builds one Column per field in wire order together with the
// name index. Nullability is left Unknown.
func (b *Builder) Columns(ctx context.Context, fields []pgconn.FieldDescription, allowFetch bool) ([]Column, map[string]int, error) {
	cols := make([]Column, 0, len(fields))
	index := make(map[string]int, len(fields))

	for i, f := range fields {
		t, err := b.res.Resolve(ctx, f.DataTypeOID, allowFetch)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, Column{
			Ordinal:         i,
			Name:            f.Name,
			Type:            t,
			RelationID:      f.TableOID,
			AttributeNumber: int16(f.TableAttributeNumber),
		})
		index[f.Name] = i
	}
	return cols, index, nil
}

// Parameters builds one Parameter per oid. Parameter types are always
// fetched.
func (b *Builder) Parameters(ctx context.Context, oids []uint32) ([]Parameter, error) {
	params := make([]Parameter, 0, len(oids))
	for i, oid := range oids {
		t, err := b.res.Resolve(ctx, oid, true)
		if err != nil {
			return nil, err
		}
		params = append(params, Parameter{Ordinal: i, Type: t})
	}
	return params, nil
}

// Publish makes r the current result.
func (b *Builder) Publish(r *Result) {
	b.current.Store(r)
}

// Current returns the last published result, or nil.
func (b *Builder) Current() *Result {
	return b.current.Load()
}
