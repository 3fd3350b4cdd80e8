package types

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// oids pgtype does not name.
const (
	xmlOID       = 142
	moneyOID     = 790
	moneyArrOID  = 791
	voidOID      = 2278
	jsonpathOID  = 4072
	timetzArrOID = 1270
)

type builtin struct {
	oid     uint32
	name    string // pg_type.typname
	display string // SQL spelling
}

// builtins covers the types a typical application sees on every query.
// Anything not listed here goes through the catalog once per connection.
var builtins = []builtin{
	{pgtype.BoolOID, "bool", "BOOLEAN"},
	{pgtype.ByteaOID, "bytea", "BYTEA"},
	{pgtype.QCharOID, "char", `"CHAR"`},
	{pgtype.NameOID, "name", "NAME"},
	{pgtype.Int8OID, "int8", "BIGINT"},
	{pgtype.Int2OID, "int2", "SMALLINT"},
	{pgtype.Int4OID, "int4", "INTEGER"},
	{pgtype.TextOID, "text", "TEXT"},
	{pgtype.OIDOID, "oid", "OID"},
	{pgtype.TIDOID, "tid", "TID"},
	{pgtype.XIDOID, "xid", "XID"},
	{pgtype.CIDOID, "cid", "CID"},
	{pgtype.JSONOID, "json", "JSON"},
	{xmlOID, "xml", "XML"},
	{pgtype.PointOID, "point", "POINT"},
	{pgtype.LsegOID, "lseg", "LSEG"},
	{pgtype.PathOID, "path", "PATH"},
	{pgtype.BoxOID, "box", "BOX"},
	{pgtype.PolygonOID, "polygon", "POLYGON"},
	{pgtype.LineOID, "line", "LINE"},
	{pgtype.CIDROID, "cidr", "CIDR"},
	{pgtype.Float4OID, "float4", "REAL"},
	{pgtype.Float8OID, "float8", "DOUBLE PRECISION"},
	{pgtype.UnknownOID, "unknown", "UNKNOWN"},
	{pgtype.CircleOID, "circle", "CIRCLE"},
	{moneyOID, "money", "MONEY"},
	{pgtype.MacaddrOID, "macaddr", "MACADDR"},
	{pgtype.InetOID, "inet", "INET"},
	{pgtype.ACLItemOID, "aclitem", "ACLITEM"},
	{pgtype.BPCharOID, "bpchar", "CHARACTER"},
	{pgtype.VarcharOID, "varchar", "VARCHAR"},
	{pgtype.DateOID, "date", "DATE"},
	{pgtype.TimeOID, "time", "TIME"},
	{pgtype.TimestampOID, "timestamp", "TIMESTAMP"},
	{pgtype.TimestamptzOID, "timestamptz", "TIMESTAMPTZ"},
	{pgtype.IntervalOID, "interval", "INTERVAL"},
	{pgtype.TimetzOID, "timetz", "TIMETZ"},
	{pgtype.BitOID, "bit", "BIT"},
	{pgtype.VarbitOID, "varbit", "VARBIT"},
	{pgtype.NumericOID, "numeric", "NUMERIC"},
	{pgtype.RecordOID, "record", "RECORD"},
	{voidOID, "void", "VOID"},
	{pgtype.UUIDOID, "uuid", "UUID"},
	{pgtype.JSONBOID, "jsonb", "JSONB"},
	{jsonpathOID, "jsonpath", "JSONPATH"},
	{pgtype.Int4rangeOID, "int4range", "INT4RANGE"},
	{pgtype.NumrangeOID, "numrange", "NUMRANGE"},
	{pgtype.TsrangeOID, "tsrange", "TSRANGE"},
	{pgtype.TstzrangeOID, "tstzrange", "TSTZRANGE"},
	{pgtype.DaterangeOID, "daterange", "DATERANGE"},
	{pgtype.Int8rangeOID, "int8range", "INT8RANGE"},

	{pgtype.BoolArrayOID, "_bool", "BOOLEAN[]"},
	{pgtype.ByteaArrayOID, "_bytea", "BYTEA[]"},
	{pgtype.Int2ArrayOID, "_int2", "SMALLINT[]"},
	{pgtype.Int4ArrayOID, "_int4", "INTEGER[]"},
	{pgtype.TextArrayOID, "_text", "TEXT[]"},
	{pgtype.BPCharArrayOID, "_bpchar", "CHARACTER[]"},
	{pgtype.VarcharArrayOID, "_varchar", "VARCHAR[]"},
	{pgtype.Int8ArrayOID, "_int8", "BIGINT[]"},
	{pgtype.Float4ArrayOID, "_float4", "REAL[]"},
	{pgtype.Float8ArrayOID, "_float8", "DOUBLE PRECISION[]"},
	{pgtype.ACLItemArrayOID, "_aclitem", "ACLITEM[]"},
	{pgtype.InetArrayOID, "_inet", "INET[]"},
	{pgtype.CIDRArrayOID, "_cidr", "CIDR[]"},
	{moneyArrOID, "_money", "MONEY[]"},
	{pgtype.TimestampArrayOID, "_timestamp", "TIMESTAMP[]"},
	{pgtype.DateArrayOID, "_date", "DATE[]"},
	{pgtype.TimestamptzArrayOID, "_timestamptz", "TIMESTAMPTZ[]"},
	{timetzArrOID, "_timetz", "TIMETZ[]"},
	{pgtype.NumericArrayOID, "_numeric", "NUMERIC[]"},
	{pgtype.UUIDArrayOID, "_uuid", "UUID[]"},
	{pgtype.JSONArrayOID, "_json", "JSON[]"},
	{pgtype.JSONBArrayOID, "_jsonb", "JSONB[]"},
}

var (
	builtinByOID  = make(map[uint32]builtin, len(builtins))
	builtinByName = make(map[string]uint32, len(builtins))
	builtinTypes  = make(map[uint32]*Type, len(builtins))
)

func init() {
	for _, b := range builtins {
		builtinByOID[b.oid] = b
		builtinByName[b.name] = b.oid
		builtinTypes[b.oid] = &Type{OID: b.oid, Name: b.name, Kind: KindBuiltin}
	}
}

// Builtin returns the shared descriptor for a builtin oid.
func Builtin(oid uint32) (*Type, bool) {
	t, ok := builtinTypes[oid]
	return t, ok
}

// BuiltinOID looks up a builtin by catalog name, case-insensitively.
func BuiltinOID(name string) (uint32, bool) {
	oid, ok := builtinByName[strings.ToLower(name)]
	return oid, ok
}
