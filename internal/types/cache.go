package types

import "strings"

// Cache holds the custom types one connection has resolved. Entries are
// only ever added; a cached oid always resolves to the same *Type.
//
// A Cache is owned by a single connection and is not safe for concurrent use.
type Cache struct {
	byOID  map[uint32]*Type
	byName map[string]uint32
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		byOID:  make(map[uint32]*Type),
		byName: make(map[string]uint32),
	}
}

// Get returns the cached descriptor for oid.
func (c *Cache) Get(oid uint32) (*Type, bool) {
	t, ok := c.byOID[oid]
	return t, ok
}

// OID returns the cached oid for a type name, case-insensitively.
func (c *Cache) OID(name string) (uint32, bool) {
	oid, ok := c.byName[strings.ToLower(name)]
	return oid, ok
}

// Insert records t under its oid and name. Placeholders are ignored and an
// existing entry is never replaced. Insert returns the cached value.
func (c *Cache) Insert(t *Type) *Type {
	if t.Kind == KindUnresolved {
		return t
	}
	if prev, ok := c.byOID[t.OID]; ok {
		return prev
	}
	c.byOID[t.OID] = t
	c.InsertName(t.Name, t.OID)
	return t
}

// InsertName records name -> oid unless the name is already mapped.
func (c *Cache) InsertName(name string, oid uint32) {
	key := strings.ToLower(name)
	if key == "" {
		return
	}
	if _, ok := c.byName[key]; !ok {
		c.byName[key] = oid
	}
}

// Len returns the number of cached types.
func (c *Cache) Len() int {
	return len(c.byOID)
}
