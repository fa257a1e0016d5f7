package schema

import (
	"fmt"
	"regexp"
	"strings"
)

var numericLiteral = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// QuoteIdent quotes a table or column identifier for rendered DDL.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// TypeSQL renders the column's SQL type including its length, precision-scale
// pair or enumerated value list.
func (c ColumnSpec) TypeSQL() string {
	keyword := sqlKeywords[c.Type]
	if keyword == "" {
		keyword = strings.ToUpper(string(c.Type))
	}
	length := c.Length
	if length == "" {
		length = DefaultLengths[c.Type]
	}
	if length == "" {
		return keyword
	}
	if c.Type.IsValueList() {
		return fmt.Sprintf("%s(%s)", keyword, quoteValueList(length))
	}
	return fmt.Sprintf("%s(%s)", keyword, length)
}

// Definition renders the full column definition used in CREATE TABLE, ADD
// COLUMN and MODIFY COLUMN statements.
func (c ColumnSpec) Definition() string {
	parts := []string{QuoteIdent(c.Name), c.TypeSQL()}
	if c.Unsigned && c.Type.IsNumeric() {
		parts = append(parts, "UNSIGNED")
	}
	if c.Nullable {
		parts = append(parts, "NULL")
	} else {
		parts = append(parts, "NOT NULL")
	}
	if c.Default != nil {
		parts = append(parts, "DEFAULT "+defaultLiteral(*c.Default))
	}
	if c.AutoIncrement {
		parts = append(parts, "AUTO_INCREMENT")
	}
	if c.Unique {
		parts = append(parts, "UNIQUE")
	}
	return strings.Join(parts, " ")
}

// CreateTableSQL renders the full CREATE TABLE statement for a schema,
// including the primary key clause and secondary indexes.
func CreateTableSQL(s Schema) string {
	lines := make([]string, 0, len(s.Columns)+2)
	var primary string
	for _, c := range s.Columns {
		if c.Drop {
			continue
		}
		lines = append(lines, "  "+c.Definition())
		if c.PrimaryKey {
			primary = c.Name
		}
	}
	if primary != "" {
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", QuoteIdent(primary)))
	}
	for _, c := range s.Columns {
		if c.Indexed && !c.Drop {
			lines = append(lines, fmt.Sprintf("  KEY %s (%s)",
				QuoteIdent(s.Table+"_"+c.Name+"_idx"), QuoteIdent(c.Name)))
		}
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", QuoteIdent(s.Table), strings.Join(lines, ",\n"))
}

// DropTableSQL renders the DROP TABLE statement for a table name.
func DropTableSQL(table string) string {
	return "DROP TABLE " + QuoteIdent(table)
}

func defaultLiteral(value string) string {
	upper := strings.ToUpper(value)
	if numericLiteral.MatchString(value) || upper == "NULL" ||
		upper == "CURRENT_TIMESTAMP" || upper == "CURRENT_TIMESTAMP()" {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func quoteValueList(list string) string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v == "" {
			continue
		}
		out = append(out, "'"+strings.ReplaceAll(v, "'", "''")+"'")
	}
	return strings.Join(out, ",")
}
