package db

import (
	"fmt"
	"regexp"
	"strings"

	"entitymigrate/internal/schema"
)

var columnTypePattern = regexp.MustCompile(`^([a-z ]+?)\s*(?:\(([^)]*)\))?\s*(unsigned)?$`)

// keywordTypes maps SQL type keywords (mysql column_type, sqlite declared
// type) back to the logical vocabulary.
var keywordTypes = map[string]schema.ColumnType{
	"tinyint":    schema.TypeTinyInt,
	"smallint":   schema.TypeSmallInt,
	"mediumint":  schema.TypeMediumInt,
	"int":        schema.TypeInt,
	"integer":    schema.TypeInt,
	"bigint":     schema.TypeBigInt,
	"decimal":    schema.TypeDecimal,
	"numeric":    schema.TypeDecimal,
	"float":      schema.TypeFloat,
	"double":     schema.TypeDouble,
	"real":       schema.TypeFloat,
	"char":       schema.TypeChar,
	"varchar":    schema.TypeString,
	"tinytext":   schema.TypeTinyText,
	"text":       schema.TypeText,
	"mediumtext": schema.TypeMediumText,
	"longtext":   schema.TypeLongText,
	"date":       schema.TypeDate,
	"datetime":   schema.TypeDateTime,
	"time":       schema.TypeTime,
	"timestamp":  schema.TypeTimestamp,
	"year":       schema.TypeYear,
	"enum":       schema.TypeEnum,
	"set":        schema.TypeSet,
	"binary":     schema.TypeBinary,
	"varbinary":  schema.TypeVarBinary,
	"tinyblob":   schema.TypeTinyBlob,
	"blob":       schema.TypeBlob,
	"mediumblob": schema.TypeMediumBlob,
	"longblob":   schema.TypeLongBlob,
	"geometry":   schema.TypeGeometry,
	"point":      schema.TypePoint,
	"linestring": schema.TypeLineString,
	"polygon":    schema.TypePolygon,
	"json":       schema.TypeJSON,
}

// parseColumnType maps a raw type expression such as "int(10) unsigned",
// "varchar(255)" or "enum('a','b')" onto logical type, length and the
// unsigned flag. Unrecognized keywords degrade to text.
func parseColumnType(raw string) (schema.ColumnType, string, bool) {
	m := columnTypePattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if m == nil {
		return schema.TypeText, "", false
	}
	keyword := strings.TrimSpace(m[1])
	length := strings.TrimSpace(m[2])
	unsigned := m[3] != ""

	typ, ok := keywordTypes[keyword]
	if !ok {
		return schema.TypeText, "", false
	}
	if typ.IsValueList() {
		length = unquoteValueList(length)
	}
	return typ, length, unsigned
}

// unquoteValueList turns "'admin','editor'" into "admin,editor".
func unquoteValueList(list string) string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		v = strings.TrimPrefix(v, "'")
		v = strings.TrimSuffix(v, "'")
		v = strings.ReplaceAll(v, "''", "'")
		if v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, ",")
}

// pgColumnType maps information_schema data_type plus length/precision
// metadata to the logical vocabulary.
func pgColumnType(dataType string, charLen, numPrecision, numScale int64) (schema.ColumnType, string) {
	switch strings.ToLower(dataType) {
	case "smallint":
		return schema.TypeSmallInt, ""
	case "integer":
		return schema.TypeInt, ""
	case "bigint":
		return schema.TypeBigInt, ""
	case "numeric", "decimal":
		if numPrecision > 0 {
			return schema.TypeDecimal, fmt.Sprintf("%d,%d", numPrecision, numScale)
		}
		return schema.TypeDecimal, ""
	case "real":
		return schema.TypeFloat, ""
	case "double precision":
		return schema.TypeDouble, ""
	case "character varying":
		if charLen > 0 {
			return schema.TypeString, fmt.Sprintf("%d", charLen)
		}
		return schema.TypeString, ""
	case "character":
		if charLen > 0 {
			return schema.TypeChar, fmt.Sprintf("%d", charLen)
		}
		return schema.TypeChar, ""
	case "text":
		return schema.TypeText, ""
	case "boolean":
		return schema.TypeTinyInt, "1"
	case "date":
		return schema.TypeDate, ""
	case "time without time zone", "time with time zone":
		return schema.TypeTime, ""
	case "timestamp without time zone", "timestamp with time zone":
		return schema.TypeTimestamp, ""
	case "bytea":
		return schema.TypeBlob, ""
	case "json", "jsonb":
		return schema.TypeJSON, ""
	case "uuid":
		return schema.TypeChar, "36"
	default:
		return schema.TypeText, ""
	}
}
