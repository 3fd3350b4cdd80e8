package describe

import (
	"context"
	"fmt"

	"github.com/koustreak/pgdescribe/internal/catalog"
	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/koustreak/pgdescribe/internal/logger"
	"github.com/koustreak/pgdescribe/internal/types"
)

// Resolver maps type oids to descriptors: builtins first, then the
// connection's cache, then pg_catalog.
//
// Not safe for concurrent use; it shares the connection's cache.
type Resolver struct {
	cat     Catalog
	cache   *types.Cache
	log     *logger.Logger
	fetches int
}

// NewResolver returns a Resolver reading through cat and filling cache.
func NewResolver(cat Catalog, cache *types.Cache, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{cat: cat, cache: cache, log: log}
}

// Fetches returns the number of catalog round trips issued so far.
func (r *Resolver) Fetches() int {
	return r.fetches
}

// Resolve returns the descriptor for oid. When allowFetch is false and the
// oid is neither builtin nor cached, Resolve returns an Unresolved
// placeholder without touching the catalog; the placeholder is not cached.
//
// Nested types (array elements, range subtypes, composite fields) are always
// fetched, whatever allowFetch says.
func (r *Resolver) Resolve(ctx context.Context, oid uint32, allowFetch bool) (*types.Type, error) {
	if t, ok := r.lookup(oid); ok {
		return t, nil
	}
	if !allowFetch {
		return types.Unresolved(oid), nil
	}
	return r.fetch(ctx, oid, make(map[uint32]struct{}))
}

// ResolveOIDByName returns the oid of the named type, case-insensitively.
func (r *Resolver) ResolveOIDByName(ctx context.Context, name string) (uint32, error) {
	if oid, ok := types.BuiltinOID(name); ok {
		return oid, nil
	}
	if oid, ok := r.cache.OID(name); ok {
		return oid, nil
	}

	r.fetches++
	oid, err := r.cat.TypeOIDByName(ctx, name)
	if err != nil {
		if errs.IsNotFound(err) {
			return 0, errs.Wrap(errs.ErrKindTypeResolution, fmt.Sprintf("unknown type %q", name), err)
		}
		return 0, err
	}
	r.cache.InsertName(name, oid)
	return oid, nil
}

func (r *Resolver) lookup(oid uint32) (*types.Type, bool) {
	if t, ok := types.Builtin(oid); ok {
		return t, true
	}
	return r.cache.Get(oid)
}

func (r *Resolver) nested(ctx context.Context, oid uint32, inProgress map[uint32]struct{}) (*types.Type, error) {
	if t, ok := r.lookup(oid); ok {
		return t, nil
	}
	return r.fetch(ctx, oid, inProgress)
}

// fetch describes oid from pg_catalog. inProgress holds the oids being
// fetched further up the current call chain.
func (r *Resolver) fetch(ctx context.Context, oid uint32, inProgress map[uint32]struct{}) (*types.Type, error) {
	if _, ok := inProgress[oid]; ok {
		return nil, errs.Newf(errs.ErrKindTypeResolution, "recursive type definition involving oid %d", oid)
	}
	inProgress[oid] = struct{}{}
	defer delete(inProgress, oid)

	r.fetches++
	row, err := r.cat.TypeByOID(ctx, oid)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.Wrap(errs.ErrKindTypeResolution, fmt.Sprintf("no pg_type row for oid %d", oid), err)
		}
		return nil, err
	}

	t := &types.Type{OID: oid, Name: row.Name, Kind: types.KindSimple}

	switch row.Category {
	case catalog.CategoryArray:
		// Domains over arrays share the category but carry no element.
		if row.ElementOID != 0 {
			if t.Elem, err = r.nested(ctx, row.ElementOID, inProgress); err != nil {
				return nil, err
			}
			t.Kind = types.KindArray
		}

	case catalog.CategoryPseudo:
		t.Kind = types.KindPseudo

	case catalog.CategoryRange:
		r.fetches++
		sub, err := r.cat.RangeSubtype(ctx, oid)
		switch {
		case errs.IsNotFound(err):
			// multiranges are category R without a pg_range row of their own
		case err != nil:
			return nil, err
		default:
			if t.Elem, err = r.nested(ctx, sub, inProgress); err != nil {
				return nil, err
			}
			t.Kind = types.KindRange
		}

	case catalog.CategoryEnum:
		r.fetches++
		if t.Variants, err = r.cat.EnumLabels(ctx, oid); err != nil {
			return nil, err
		}
		t.Kind = types.KindEnum

	case catalog.CategoryComposite:
		r.fetches++
		attrs, err := r.cat.CompositeAttributes(ctx, row.RelationID)
		if err != nil {
			return nil, err
		}
		t.Fields = make([]types.Field, 0, len(attrs))
		for _, a := range attrs {
			ft, err := r.nested(ctx, a.TypeOID, inProgress)
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, types.Field{Name: a.Name, Type: ft})
		}
		t.Kind = types.KindComposite
	}

	r.log.With().
		Uint32("oid", oid).
		Str("name", row.Name).
		Str("category", string(row.Category)).
		Str("kind", t.Kind.String()).
		Logger().Debug("resolved type from catalog")

	return r.cache.Insert(t), nil
}
