package metadata

import (
	"errors"
	"strings"
	"testing"

	"entitymigrate/internal/schema"
)

func userDef(fields ...FieldDefinition) EntityDefinition {
	return EntityDefinition{Name: "User", Table: "users", Fields: fields}
}

func field(name string, tags ...string) FieldDefinition {
	return FieldDefinition{Name: name, Tags: tags}
}

func TestParseBasicEntity(t *testing.T) {
	s, err := Parse(userDef(
		field("id", "column", "increments"),
		field("username", "column", "string"),
	))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Table != "users" {
		t.Errorf("table = %q", s.Table)
	}

	id, ok := s.Column("id")
	if !ok {
		t.Fatal("id column missing")
	}
	if id.Type != schema.TypeInt || !id.Unsigned || !id.AutoIncrement || !id.PrimaryKey {
		t.Errorf("increments expansion wrong: %+v", id)
	}
	if id.Length != "11" {
		t.Errorf("id length = %q, want default 11", id.Length)
	}

	username, ok := s.Column("username")
	if !ok {
		t.Fatal("username column missing")
	}
	if username.Type != schema.TypeString || username.Length != "255" {
		t.Errorf("string default length wrong: %+v", username)
	}
	if username.Nullable || username.PrimaryKey {
		t.Errorf("unexpected modifiers: %+v", username)
	}
}

func TestParseUUIDPrimary(t *testing.T) {
	s, err := Parse(userDef(field("id", "column", "uuid")))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	id, _ := s.Column("id")
	if id.Type != schema.TypeChar || id.Length != "36" || !id.PrimaryKey {
		t.Errorf("uuid expansion wrong: %+v", id)
	}
}

func TestParseBooleanDefaultsToZero(t *testing.T) {
	s, err := Parse(userDef(
		field("id", "column", "increments"),
		field("active", "column", "boolean"),
	))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	active, _ := s.Column("active")
	if active.Type != schema.TypeTinyInt || active.Length != "1" {
		t.Errorf("boolean expansion wrong: %+v", active)
	}
	if active.Default == nil || *active.Default != "0" {
		t.Errorf("boolean default = %v, want 0", active.Default)
	}
}

func TestParseModifiers(t *testing.T) {
	s, err := Parse(userDef(
		field("id", "column", "increments"),
		field("email", "column", "string:120", "unique", "nullable", "index", "default:none"),
	))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	email, _ := s.Column("email")
	if email.Length != "120" || !email.Unique || !email.Nullable || !email.Indexed {
		t.Errorf("modifiers lost: %+v", email)
	}
	if email.Default == nil || *email.Default != "none" {
		t.Errorf("default = %v", email.Default)
	}
}

func TestParseEnumRequiresValues(t *testing.T) {
	_, err := Parse(userDef(
		field("id", "column", "increments"),
		field("role", "column", "enum"),
	))
	if !errors.Is(err, ErrEnumValues) {
		t.Fatalf("err = %v, want ErrEnumValues", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "enum") || !strings.Contains(msg, "role") {
		t.Errorf("message lacks context: %q", msg)
	}
	if !strings.Contains(msg, "e.g.") {
		t.Errorf("message lacks fix-it hint: %q", msg)
	}
}

func TestParseEnumKeepsValueList(t *testing.T) {
	s, err := Parse(userDef(
		field("id", "column", "increments"),
		field("role", "column", "enum:admin,editor,viewer"),
	))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	role, _ := s.Column("role")
	if role.Type != schema.TypeEnum || role.Length != "admin,editor,viewer" {
		t.Errorf("enum values lost: %+v", role)
	}
}

func TestParseRejectsUnsignedOnNonNumeric(t *testing.T) {
	_, err := Parse(userDef(
		field("id", "column", "increments"),
		field("name", "column", "string", "unsigned"),
	))
	if !errors.Is(err, ErrUnsignedNonNumeric) {
		t.Fatalf("err = %v, want ErrUnsignedNonNumeric", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("not a *ValidationError")
	}
	if verr.Entity != "User" || verr.Field != "name" {
		t.Errorf("error location wrong: %+v", verr)
	}
}

func TestParseRequiresSinglePrimary(t *testing.T) {
	_, err := Parse(userDef(field("name", "column", "string")))
	if !errors.Is(err, ErrNoPrimaryKey) {
		t.Fatalf("err = %v, want ErrNoPrimaryKey", err)
	}

	_, err = Parse(userDef(
		field("id", "column", "increments"),
		field("code", "column", "string", "primary"),
	))
	if !errors.Is(err, ErrMultiplePrimary) {
		t.Fatalf("err = %v, want ErrMultiplePrimary", err)
	}
}

func TestParseRejectsAmbiguousType(t *testing.T) {
	_, err := Parse(userDef(field("id", "column", "increments", "string")))
	if !errors.Is(err, ErrAmbiguousType) {
		t.Fatalf("err = %v, want ErrAmbiguousType", err)
	}
}

func TestParseRejectsMissingType(t *testing.T) {
	_, err := Parse(userDef(field("id", "column", "unique")))
	if !errors.Is(err, ErrMissingType) {
		t.Fatalf("err = %v, want ErrMissingType", err)
	}
}

func TestParseSkipsStaticAndUntaggedFields(t *testing.T) {
	s, err := Parse(userDef(
		field("id", "column", "increments"),
		FieldDefinition{Name: "cache", Tags: []string{"column", "string"}, Static: true},
		field("helper"),
	))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(s.Columns) != 1 {
		t.Errorf("columns = %d, want 1", len(s.Columns))
	}
}

func TestParseIgnoresUnknownTags(t *testing.T) {
	s, err := Parse(userDef(field("id", "column", "increments", "frobnicate", "searchable:yes")))
	if err != nil {
		t.Fatalf("unknown tags must be ignored: %v", err)
	}
	if len(s.Columns) != 1 {
		t.Errorf("columns = %d", len(s.Columns))
	}
}

func TestParseTimestampsRequireTrackingColumns(t *testing.T) {
	def := userDef(field("id", "column", "increments"))
	def.Timestamps = true
	_, err := Parse(def)
	if !errors.Is(err, ErrTimestampsMissing) {
		t.Fatalf("err = %v, want ErrTimestampsMissing", err)
	}

	def.Fields = append(def.Fields,
		field("created_at", "column", "timestamp", "nullable"),
		field("updated_at", "column", "timestamp", "nullable"),
	)
	if _, err := Parse(def); err != nil {
		t.Fatalf("Parse with tracking columns: %v", err)
	}
}

func TestParseDropShortCircuits(t *testing.T) {
	s, err := Parse(userDef(
		field("id", "column", "increments"),
		field("legacy", "column", "string", "drop", "unique"),
	))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	legacy, _ := s.Column("legacy")
	if !legacy.Drop {
		t.Error("drop marker lost")
	}
	if legacy.Unique {
		t.Error("tags after drop must be ignored")
	}
}

func TestParseRenameFrom(t *testing.T) {
	s, err := Parse(userDef(
		field("id", "column", "increments"),
		field("email", "column", "string", "renameFrom:mail"),
	))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	email, _ := s.Column("email")
	if email.RenameFrom != "mail" {
		t.Errorf("RenameFrom = %q", email.RenameFrom)
	}
}

func TestParseBadLength(t *testing.T) {
	_, err := Parse(userDef(
		field("id", "column", "increments"),
		field("name", "column", "string:abc"),
	))
	if !errors.Is(err, ErrBadLength) {
		t.Fatalf("err = %v, want ErrBadLength", err)
	}

	_, err = Parse(userDef(
		field("id", "column", "increments"),
		field("price", "column", "decimal:banana"),
	))
	if !errors.Is(err, ErrBadLength) {
		t.Fatalf("err = %v, want ErrBadLength", err)
	}

	if _, err := Parse(userDef(
		field("id", "column", "increments"),
		field("price", "column", "decimal:8,3"),
	)); err != nil {
		t.Fatalf("precision,scale must be accepted: %v", err)
	}
}

func TestParseDuplicateColumn(t *testing.T) {
	_, err := Parse(userDef(
		field("id", "column", "increments"),
		field("name", "column", "string"),
		field("name", "column", "text"),
	))
	if !errors.Is(err, ErrDuplicateColumn) {
		t.Fatalf("err = %v, want ErrDuplicateColumn", err)
	}
}

func TestParseAllRejectsDuplicateTables(t *testing.T) {
	a := userDef(field("id", "column", "increments"))
	b := a
	b.Name = "Account"
	_, err := ParseAll([]EntityDefinition{a, b})
	if !errors.Is(err, ErrDuplicateTable) {
		t.Fatalf("err = %v, want ErrDuplicateTable", err)
	}
}

func TestParseTagsAreCaseInsensitive(t *testing.T) {
	s, err := Parse(userDef(field("id", "Column", "Increments")))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	id, _ := s.Column("id")
	if !id.PrimaryKey {
		t.Errorf("case-insensitive tags not honored: %+v", id)
	}
}
