package metadata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"entitymigrate/internal/schema"
)

const (
	tagColumn     = "column"
	tagIncrements = "increments"
	tagUUID       = "uuid"
	tagBoolean    = "boolean"
	tagPrimary    = "primary"
	tagUnique     = "unique"
	tagNullable   = "nullable"
	tagUnsigned   = "unsigned"
	tagIndex      = "index"
	tagDefault    = "default"
	tagDrop       = "drop"
	tagRenameFrom = "renamefrom"
)

// typeTags maps lowercased type tag names to logical column types. The two
// convenience pseudo-types (increments, uuid) and boolean resolve through
// their own branches in parseColumn.
var typeTags = map[string]schema.ColumnType{
	"tinyinteger":   schema.TypeTinyInt,
	"smallinteger":  schema.TypeSmallInt,
	"mediuminteger": schema.TypeMediumInt,
	"integer":       schema.TypeInt,
	"biginteger":    schema.TypeBigInt,
	"decimal":       schema.TypeDecimal,
	"float":         schema.TypeFloat,
	"double":        schema.TypeDouble,
	"char":          schema.TypeChar,
	"string":        schema.TypeString,
	"tinytext":      schema.TypeTinyText,
	"text":          schema.TypeText,
	"mediumtext":    schema.TypeMediumText,
	"longtext":      schema.TypeLongText,
	"date":          schema.TypeDate,
	"datetime":      schema.TypeDateTime,
	"time":          schema.TypeTime,
	"timestamp":     schema.TypeTimestamp,
	"year":          schema.TypeYear,
	"enum":          schema.TypeEnum,
	"set":           schema.TypeSet,
	"binary":        schema.TypeBinary,
	"varbinary":     schema.TypeVarBinary,
	"tinyblob":      schema.TypeTinyBlob,
	"blob":          schema.TypeBlob,
	"mediumblob":    schema.TypeMediumBlob,
	"longblob":      schema.TypeLongBlob,
	"geometry":      schema.TypeGeometry,
	"point":         schema.TypePoint,
	"linestring":    schema.TypeLineString,
	"polygon":       schema.TypePolygon,
	"json":          schema.TypeJSON,
}

var (
	identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	decimalPattern    = regexp.MustCompile(`^\d+\s*,\s*\d+$`)
)

// Parse turns one entity definition into a table schema, applying the full
// tag grammar and whole-schema validation. It fails with a *ValidationError
// on the first violated invariant.
func Parse(def EntityDefinition) (schema.Schema, error) {
	if def.Table == "" {
		return schema.Schema{}, validationErr(def.Name, "", ErrBadIdentifier,
			"entity has no table name", `table: users`)
	}

	out := schema.Schema{Table: def.Table, Timestamps: def.Timestamps}
	for _, field := range def.Fields {
		if field.Static {
			continue
		}
		tags := parseTags(field.Tags)
		if !hasTag(tags, tagColumn) {
			continue
		}
		col, err := parseColumn(def.Name, field.Name, tags)
		if err != nil {
			return schema.Schema{}, err
		}
		out.Columns = append(out.Columns, col)
	}

	if err := validate(def.Name, out); err != nil {
		return schema.Schema{}, err
	}
	return out, nil
}

// ParseAll parses every definition into a catalog, rejecting duplicate table
// names.
func ParseAll(defs []EntityDefinition) (schema.Catalog, error) {
	var cat schema.Catalog
	seen := map[string]string{}
	for _, def := range defs {
		s, err := Parse(def)
		if err != nil {
			return schema.Catalog{}, err
		}
		if prev, ok := seen[s.Table]; ok {
			return schema.Catalog{}, validationErr(def.Name, "", ErrDuplicateTable,
				fmt.Sprintf("table %q already declared by entity %s", s.Table, prev),
				"give each entity its own table name")
		}
		seen[s.Table] = def.Name
		cat.Tables = append(cat.Tables, s)
	}
	return cat, nil
}

func parseColumn(entity, field string, tags []Tag) (schema.ColumnSpec, error) {
	col := schema.ColumnSpec{Name: field}

	typeTag, err := resolveTypeTag(entity, field, tags)
	if err != nil {
		return schema.ColumnSpec{}, err
	}

	// Convenience pseudo-types resolve before generic modifiers.
	switch typeTag.Name {
	case tagIncrements:
		col.Type = schema.TypeInt
		col.Unsigned = true
		col.AutoIncrement = true
		col.PrimaryKey = true
	case tagUUID:
		col.Type = schema.TypeChar
		col.Length = "36"
		col.PrimaryKey = true
	case tagBoolean:
		col.Type = schema.TypeTinyInt
		col.Length = "1"
		zero := "0"
		col.Default = &zero
	default:
		col.Type = typeTags[typeTag.Name]
		if col.Type.IsValueList() {
			if typeTag.Value == "" {
				return schema.ColumnSpec{}, validationErr(entity, field, ErrEnumValues,
					typeTag.Name+" column declares no values", typeTag.Name+":admin,editor")
			}
			col.Length = typeTag.Value
		} else if typeTag.Value != "" {
			col.Length = typeTag.Value
		}
	}
	if col.Length == "" {
		col.Length = schema.DefaultLengths[col.Type]
	}

	for _, t := range tags {
		switch t.Name {
		case tagPrimary:
			col.PrimaryKey = true
		case tagUnique:
			col.Unique = true
		case tagNullable:
			col.Nullable = true
		case tagUnsigned:
			// Recorded as declared; rejected for non-numeric types during
			// whole-schema validation.
			col.Unsigned = true
		case tagIndex:
			col.Indexed = true
		case tagDefault:
			value := t.Value
			col.Default = &value
		case tagRenameFrom:
			col.RenameFrom = t.Value
		case tagDrop:
			// Removal short-circuits the rest of the field's tags.
			col.Drop = true
			return col, nil
		}
	}
	return col, nil
}

func resolveTypeTag(entity, field string, tags []Tag) (Tag, error) {
	var found []Tag
	for _, t := range tags {
		if _, ok := typeTags[t.Name]; ok {
			found = append(found, t)
			continue
		}
		switch t.Name {
		case tagIncrements, tagUUID, tagBoolean:
			found = append(found, t)
		}
	}
	switch len(found) {
	case 0:
		return Tag{}, validationErr(entity, field, ErrMissingType,
			"column has no type tag", "tags: [column, string:120]")
	case 1:
		return found[0], nil
	default:
		names := make([]string, 0, len(found))
		for _, t := range found {
			names = append(names, t.Name)
		}
		return Tag{}, validationErr(entity, field, ErrAmbiguousType,
			"column declares multiple types: "+strings.Join(names, ", "),
			"keep exactly one type tag per field")
	}
}

func validate(entity string, s schema.Schema) error {
	if len(s.Columns) == 0 {
		return validationErr(entity, "", ErrNoColumns,
			"no fields carry the column tag", "tags: [column, string]")
	}
	if !identifierPattern.MatchString(s.Table) {
		return validationErr(entity, "", ErrBadIdentifier,
			fmt.Sprintf("table name %q is not a valid identifier", s.Table),
			"use letters, digits and underscores only")
	}

	seen := map[string]bool{}
	primaries := 0
	for _, c := range s.Columns {
		if !identifierPattern.MatchString(c.Name) {
			return validationErr(entity, c.Name, ErrBadIdentifier,
				fmt.Sprintf("column name %q is not a valid identifier", c.Name),
				"use letters, digits and underscores only")
		}
		if seen[c.Name] {
			return validationErr(entity, c.Name, ErrDuplicateColumn,
				"column declared more than once", "rename one of the fields")
		}
		seen[c.Name] = true
		if c.Drop {
			continue
		}
		if c.PrimaryKey {
			primaries++
		}
		if err := validateColumn(entity, c); err != nil {
			return err
		}
	}

	if primaries == 0 {
		return validationErr(entity, "", ErrNoPrimaryKey,
			"no column is marked as primary key", "tags: [column, increments]")
	}
	if primaries > 1 {
		return validationErr(entity, "", ErrMultiplePrimary,
			fmt.Sprintf("%d columns are marked primary", primaries),
			"keep a single primary key column")
	}

	if s.Timestamps {
		for _, want := range []string{"created_at", "updated_at"} {
			if !seen[want] {
				return validationErr(entity, want, ErrTimestampsMissing,
					"timestamps are enabled but the tracking column is not declared",
					"add {name: "+want+", tags: [column, timestamp, nullable]} or set timestamps: false")
			}
		}
	}
	return nil
}

func validateColumn(entity string, c schema.ColumnSpec) error {
	if c.Unsigned && !c.Type.IsNumeric() {
		return validationErr(entity, c.Name, ErrUnsignedNonNumeric,
			fmt.Sprintf("unsigned is not valid for type %s", c.Type),
			"drop the unsigned tag or use a numeric type")
	}
	switch {
	case c.Type.IsValueList():
		if strings.TrimSpace(strings.Trim(c.Length, ",")) == "" {
			return validationErr(entity, c.Name, ErrEnumValues,
				string(c.Type)+" column declares no values", string(c.Type)+":admin,editor")
		}
	case c.Type == schema.TypeDecimal, c.Type == schema.TypeFloat, c.Type == schema.TypeDouble:
		if c.Length != "" && !decimalPattern.MatchString(c.Length) {
			return validationErr(entity, c.Name, ErrBadLength,
				fmt.Sprintf("%s length %q does not match precision,scale", c.Type, c.Length),
				"decimal:10,2")
		}
	case c.Length != "":
		n, err := strconv.Atoi(c.Length)
		if err != nil || n <= 0 {
			return validationErr(entity, c.Name, ErrBadLength,
				fmt.Sprintf("length %q must be a positive integer", c.Length),
				"string:255")
		}
	}
	return nil
}
