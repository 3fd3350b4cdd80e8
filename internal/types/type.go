// Package types models Postgres types as seen by one connection: a fixed
// builtin table resolved without I/O, and custom types described from
// pg_catalog.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind is the variant tag of a Type.
type Kind uint8

const (
	KindBuiltin    Kind = iota // fixed set known in-process
	KindSimple                 // custom base or unrecognised category
	KindPseudo                 // typcategory 'P'
	KindArray                  // typcategory 'A', Elem set
	KindRange                  // typcategory 'R', Elem set
	KindEnum                   // typcategory 'E', Variants set
	KindComposite              // typcategory 'C', Fields set
	KindUnresolved             // fetch was not permitted; provisional
)

var kindNames = [...]string{
	KindBuiltin:    "builtin",
	KindSimple:     "simple",
	KindPseudo:     "pseudo",
	KindArray:      "array",
	KindRange:      "range",
	KindEnum:       "enum",
	KindComposite:  "composite",
	KindUnresolved: "unresolved",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown type kind %q", b)
}

// Type describes a Postgres type. Values are immutable once handed out and
// are shared between the cache and every descriptor that references them.
type Type struct {
	OID  uint32 `json:"oid"`
	Name string `json:"name"` // pg_type.typname; empty when unresolved
	Kind Kind   `json:"kind"`

	Elem     *Type    `json:"elem,omitempty"`     // array element or range subtype
	Variants []string `json:"variants,omitempty"` // enum labels in enumsortorder
	Fields   []Field  `json:"fields,omitempty"`   // composite attributes in attnum order
}

// Field is one attribute of a composite type.
type Field struct {
	Name string `json:"name"`
	Type *Type  `json:"type"`
}

// Unresolved returns a placeholder for oid. It is never cached.
func Unresolved(oid uint32) *Type {
	return &Type{OID: oid, Kind: KindUnresolved}
}

// Provisional reports whether t or anything it references is a placeholder.
func (t *Type) Provisional() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindUnresolved:
		return true
	case KindArray, KindRange:
		return t.Elem.Provisional()
	case KindComposite:
		for _, f := range t.Fields {
			if f.Type.Provisional() {
				return true
			}
		}
	}
	return false
}

// String returns the display name: the SQL spelling for builtins, the
// catalog name for custom types and "oid:<N>" for placeholders.
func (t *Type) String() string {
	switch t.Kind {
	case KindBuiltin:
		if b, ok := builtinByOID[t.OID]; ok {
			return b.display
		}
		return t.Name
	case KindUnresolved:
		return "oid:" + strconv.FormatUint(uint64(t.OID), 10)
	default:
		return t.Name
	}
}

// MarshalJSON adds the display name alongside the stored fields.
func (t *Type) MarshalJSON() ([]byte, error) {
	type plain Type
	return json.Marshal(struct {
		*plain
		Display string `json:"display"`
	}{(*plain)(t), t.String()})
}
