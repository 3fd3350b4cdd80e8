package describe

import (
	"encoding/json"
	"fmt"

	"github.com/koustreak/pgdescribe/internal/types"
)

// Nullability is the verdict on whether a column can be NULL.
type Nullability int8

const (
	NullabilityUnknown Nullability = iota
	NotNull
	Nullable
)

func (n Nullability) String() string {
	switch n {
	case NotNull:
		return "not null"
	case Nullable:
		return "nullable"
	default:
		return "unknown"
	}
}

// Known reports whether a verdict was reached.
func (n Nullability) Known() bool {
	return n == NotNull || n == Nullable
}

// nullabilityOf converts an attnotnull lookup into a verdict.
func nullabilityOf(nullable *bool) Nullability {
	switch {
	case nullable == nil:
		return NullabilityUnknown
	case *nullable:
		return Nullable
	default:
		return NotNull
	}
}

// MarshalJSON encodes the verdict as true (nullable), false or null.
func (n Nullability) MarshalJSON() ([]byte, error) {
	switch n {
	case NotNull:
		return []byte("false"), nil
	case Nullable:
		return []byte("true"), nil
	default:
		return []byte("null"), nil
	}
}

func (n *Nullability) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "false":
		*n = NotNull
	case "true":
		*n = Nullable
	case "null":
		*n = NullabilityUnknown
	default:
		return fmt.Errorf("invalid nullability %s", b)
	}
	return nil
}

// Column describes one output column.
type Column struct {
	Ordinal int         `json:"ordinal"`
	Name    string      `json:"name"`
	Type    *types.Type `json:"type"`

	// Source table column; both zero for computed columns.
	RelationID      uint32 `json:"relation_id,omitempty"`
	AttributeNumber int16  `json:"attribute_number,omitempty"`

	Nullable Nullability `json:"nullable"`
}

// Parameter describes one input parameter.
type Parameter struct {
	Ordinal int         `json:"ordinal"`
	Type    *types.Type `json:"type"`
}

// Result is a complete describe of one statement. A published Result is
// never modified.
type Result struct {
	Columns    []Column    `json:"columns"`
	Parameters []Parameter `json:"parameters"`

	index map[string]int
}

func newResult(cols []Column, params []Parameter, index map[string]int) *Result {
	if cols == nil {
		cols = []Column{}
	}
	if params == nil {
		params = []Parameter{}
	}
	return &Result{Columns: cols, Parameters: params, index: index}
}

// ColumnIndex returns the ordinal of the column called name. With duplicate
// names the last one wins.
func (r *Result) ColumnIndex(name string) (int, bool) {
	i, ok := r.index[name]
	return i, ok
}

// Nullable returns the verdict for column i.
func (r *Result) Nullable(i int) Nullability {
	if i < 0 || i >= len(r.Columns) {
		return NullabilityUnknown
	}
	return r.Columns[i].Nullable
}

func (r *Result) UnmarshalJSON(b []byte) error {
	type plain Result
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = Result(p)
	r.index = columnIndex(r.Columns)
	if r.Columns == nil {
		r.Columns = []Column{}
	}
	if r.Parameters == nil {
		r.Parameters = []Parameter{}
	}
	return nil
}

func columnIndex(cols []Column) map[string]int {
	index := make(map[string]int, len(cols))
	for _, c := range cols {
		index[c.Name] = c.Ordinal
	}
	return index
}
