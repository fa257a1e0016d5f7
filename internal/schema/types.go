package schema

// ColumnType is a driver-agnostic logical column type. Dialect translation
// beyond this vocabulary is the execution collaborator's concern.
type ColumnType string

const (
	TypeTinyInt   ColumnType = "tinyInteger"
	TypeSmallInt  ColumnType = "smallInteger"
	TypeMediumInt ColumnType = "mediumInteger"
	TypeInt       ColumnType = "integer"
	TypeBigInt    ColumnType = "bigInteger"

	TypeDecimal ColumnType = "decimal"
	TypeFloat   ColumnType = "float"
	TypeDouble  ColumnType = "double"

	TypeChar   ColumnType = "char"
	TypeString ColumnType = "string"

	TypeTinyText   ColumnType = "tinyText"
	TypeText       ColumnType = "text"
	TypeMediumText ColumnType = "mediumText"
	TypeLongText   ColumnType = "longText"

	TypeDate      ColumnType = "date"
	TypeDateTime  ColumnType = "dateTime"
	TypeTime      ColumnType = "time"
	TypeTimestamp ColumnType = "timestamp"
	TypeYear      ColumnType = "year"

	TypeEnum ColumnType = "enum"
	TypeSet  ColumnType = "set"

	TypeBinary     ColumnType = "binary"
	TypeVarBinary  ColumnType = "varBinary"
	TypeTinyBlob   ColumnType = "tinyBlob"
	TypeBlob       ColumnType = "blob"
	TypeMediumBlob ColumnType = "mediumBlob"
	TypeLongBlob   ColumnType = "longBlob"

	TypeGeometry   ColumnType = "geometry"
	TypePoint      ColumnType = "point"
	TypeLineString ColumnType = "lineString"
	TypePolygon    ColumnType = "polygon"

	TypeJSON ColumnType = "json"
)

// sqlKeywords maps logical types to the SQL keyword used in rendered DDL.
var sqlKeywords = map[ColumnType]string{
	TypeTinyInt:    "TINYINT",
	TypeSmallInt:   "SMALLINT",
	TypeMediumInt:  "MEDIUMINT",
	TypeInt:        "INT",
	TypeBigInt:     "BIGINT",
	TypeDecimal:    "DECIMAL",
	TypeFloat:      "FLOAT",
	TypeDouble:     "DOUBLE",
	TypeChar:       "CHAR",
	TypeString:     "VARCHAR",
	TypeTinyText:   "TINYTEXT",
	TypeText:       "TEXT",
	TypeMediumText: "MEDIUMTEXT",
	TypeLongText:   "LONGTEXT",
	TypeDate:       "DATE",
	TypeDateTime:   "DATETIME",
	TypeTime:       "TIME",
	TypeTimestamp:  "TIMESTAMP",
	TypeYear:       "YEAR",
	TypeEnum:       "ENUM",
	TypeSet:        "SET",
	TypeBinary:     "BINARY",
	TypeVarBinary:  "VARBINARY",
	TypeTinyBlob:   "TINYBLOB",
	TypeBlob:       "BLOB",
	TypeMediumBlob: "MEDIUMBLOB",
	TypeLongBlob:   "LONGBLOB",
	TypeGeometry:   "GEOMETRY",
	TypePoint:      "POINT",
	TypeLineString: "LINESTRING",
	TypePolygon:    "POLYGON",
	TypeJSON:       "JSON",
}

// DefaultLengths holds per-type fallback lengths applied when a declaration
// carries no explicit length.
var DefaultLengths = map[ColumnType]string{
	TypeTinyInt:   "4",
	TypeSmallInt:  "6",
	TypeMediumInt: "9",
	TypeInt:       "11",
	TypeBigInt:    "20",
	TypeDecimal:   "10,2",
	TypeChar:      "255",
	TypeString:    "255",
	TypeBinary:    "255",
	TypeVarBinary: "255",
}

var integerTypes = map[ColumnType]bool{
	TypeTinyInt:   true,
	TypeSmallInt:  true,
	TypeMediumInt: true,
	TypeInt:       true,
	TypeBigInt:    true,
}

// IsNumeric reports whether t belongs to the numeric family, the only types
// that may carry the unsigned modifier.
func (t ColumnType) IsNumeric() bool {
	if integerTypes[t] {
		return true
	}
	return t == TypeDecimal || t == TypeFloat || t == TypeDouble
}

// IsInteger reports whether t is one of the integer variants.
func (t ColumnType) IsInteger() bool { return integerTypes[t] }

// IsValueList reports whether t takes an enumerated value list instead of a
// numeric length.
func (t ColumnType) IsValueList() bool { return t == TypeEnum || t == TypeSet }

// Known reports whether t is part of the logical type vocabulary.
func (t ColumnType) Known() bool {
	_, ok := sqlKeywords[t]
	return ok
}
