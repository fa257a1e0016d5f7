package schema

import (
	"encoding/json"
	"fmt"
)

// ColumnSpec describes one persisted column.
type ColumnSpec struct {
	Name          string     `json:"name"`
	Type          ColumnType `json:"type"`
	Length        string     `json:"length,omitempty"`
	Nullable      bool       `json:"nullable,omitempty"`
	Unique        bool       `json:"unique,omitempty"`
	PrimaryKey    bool       `json:"primary_key,omitempty"`
	Unsigned      bool       `json:"unsigned,omitempty"`
	AutoIncrement bool       `json:"auto_increment,omitempty"`
	Default       *string    `json:"default,omitempty"`
	Indexed       bool       `json:"indexed,omitempty"`
	RenameFrom    string     `json:"rename_from,omitempty"`
	Drop          bool       `json:"drop,omitempty"`
}

// Equal compares the attributes that matter for diffing. Transient markers
// (RenameFrom, Drop) are excluded.
func (c ColumnSpec) Equal(other ColumnSpec) bool {
	if c.Type != other.Type || c.Length != other.Length {
		return false
	}
	if c.Nullable != other.Nullable || c.Unique != other.Unique ||
		c.PrimaryKey != other.PrimaryKey || c.Unsigned != other.Unsigned ||
		c.AutoIncrement != other.AutoIncrement || c.Indexed != other.Indexed {
		return false
	}
	if (c.Default == nil) != (other.Default == nil) {
		return false
	}
	if c.Default != nil && *c.Default != *other.Default {
		return false
	}
	return true
}

// Schema describes one table: its name, ordered columns and whether the
// created_at/updated_at tracking pair is expected.
type Schema struct {
	Table      string       `json:"table"`
	Columns    []ColumnSpec `json:"columns"`
	Timestamps bool         `json:"timestamps,omitempty"`
}

// Column returns the column with the given name.
func (s Schema) Column(name string) (ColumnSpec, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// Catalog is an ordered set of table schemas, the unit the diff engine and
// snapshot store operate on.
type Catalog struct {
	Tables []Schema `json:"tables"`
}

// Table returns the schema for the named table.
func (c Catalog) Table(name string) (Schema, bool) {
	for _, t := range c.Tables {
		if t.Table == name {
			return t, true
		}
	}
	return Schema{}, false
}

// TableNames returns table names in declaration order.
func (c Catalog) TableNames() []string {
	names := make([]string, 0, len(c.Tables))
	for _, t := range c.Tables {
		names = append(names, t.Table)
	}
	return names
}

// Marshal serializes the catalog in the snapshot format.
func (c Catalog) Marshal() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// UnmarshalCatalog parses a serialized snapshot.
func UnmarshalCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	return c, nil
}
