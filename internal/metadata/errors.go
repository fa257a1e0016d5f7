package metadata

import (
	"errors"
	"fmt"
)

// Sentinel kinds carried by ValidationError so callers can branch with
// errors.Is while the message keeps the remediation hint.
var (
	ErrMissingType        = errors.New("missing column type tag")
	ErrAmbiguousType      = errors.New("conflicting column type tags")
	ErrNoColumns          = errors.New("entity declares no persisted columns")
	ErrNoPrimaryKey       = errors.New("entity declares no primary key")
	ErrMultiplePrimary    = errors.New("entity declares more than one primary key")
	ErrEnumValues         = errors.New("enum/set requires a value list")
	ErrBadIdentifier      = errors.New("invalid identifier")
	ErrBadLength          = errors.New("invalid length")
	ErrTimestampsMissing  = errors.New("timestamp tracking columns missing")
	ErrUnsignedNonNumeric = errors.New("unsigned modifier on non-numeric type")
	ErrDuplicateColumn    = errors.New("duplicate column name")
	ErrDuplicateTable     = errors.New("duplicate table name")
)

// ValidationError reports malformed or incomplete entity metadata. Every
// instance carries a concrete fix-it hint; parsing never silently defaults
// around a violation.
type ValidationError struct {
	Entity string
	Field  string
	Kind   error
	Msg    string
	Hint   string
}

func (e *ValidationError) Error() string {
	where := "entity " + e.Entity
	if e.Field != "" {
		where += " field " + e.Field
	}
	msg := fmt.Sprintf("%s: %s", where, e.Msg)
	if e.Hint != "" {
		msg += " (e.g. " + e.Hint + ")"
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Kind }

func validationErr(entity, field string, kind error, msg, hint string) error {
	return &ValidationError{Entity: entity, Field: field, Kind: kind, Msg: msg, Hint: hint}
}
