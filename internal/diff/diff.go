package diff

import (
	"fmt"
	"strings"

	"entitymigrate/internal/schema"
)

// Script holds the ordered forward and inverse statements for one schema
// transition. Statements carry no trailing semicolon; UpSQL/DownSQL render
// the executable script form.
type Script struct {
	Up   []string
	Down []string
}

// Empty reports whether the transition contains no work. Both sides are
// always empty together: every forward statement has an inverse.
func (s Script) Empty() bool {
	return len(s.Up) == 0 && len(s.Down) == 0
}

// UpSQL renders the forward script.
func (s Script) UpSQL() string { return renderScript(s.Up) }

// DownSQL renders the inverse script.
func (s Script) DownSQL() string { return renderScript(s.Down) }

func renderScript(stmts []string) string {
	if len(stmts) == 0 {
		return ""
	}
	return strings.Join(stmts, ";\n\n") + ";\n"
}

// Compare computes the structural changes between two catalogs and renders
// both directions. An empty previous catalog yields a create-everything
// forward script; identical catalogs yield an empty Script. Compare never
// fails.
func Compare(previous, current schema.Catalog) Script {
	var out Script

	for _, table := range current.Tables {
		if _, ok := previous.Table(table.Table); !ok {
			out.Up = append(out.Up, schema.CreateTableSQL(table))
			out.Down = append(out.Down, schema.DropTableSQL(table.Table))
		}
	}
	for _, table := range previous.Tables {
		if _, ok := current.Table(table.Table); !ok {
			out.Up = append(out.Up, schema.DropTableSQL(table.Table))
			out.Down = append(out.Down, schema.CreateTableSQL(table))
		}
	}
	for _, table := range current.Tables {
		prev, ok := previous.Table(table.Table)
		if !ok {
			continue
		}
		up, down := compareTable(prev, table)
		out.Up = append(out.Up, up...)
		out.Down = append(out.Down, down...)
	}
	return out
}

// compareTable emits per-table statements ordered drops, renames, modifies,
// adds; that order avoids transient name collisions (renaming a->b while
// adding a new column named a). The down list mirrors the order so it undoes
// the up list group by group.
func compareTable(prev, cur schema.Schema) (up, down []string) {
	table := cur.Table

	// renameFrom acts as an alias: old name -> renamed current column.
	renamedFrom := map[string]schema.ColumnSpec{}
	for _, c := range cur.Columns {
		if c.Drop || c.RenameFrom == "" {
			continue
		}
		if _, stillThere := cur.Column(c.RenameFrom); stillThere {
			continue
		}
		if _, existed := prev.Column(c.RenameFrom); existed {
			renamedFrom[c.RenameFrom] = c
		}
	}

	var dropUp, dropDown []string
	for _, c := range prev.Columns {
		if _, renamed := renamedFrom[c.Name]; renamed {
			continue
		}
		if curCol, ok := cur.Column(c.Name); ok && !curCol.Drop {
			continue
		}
		dropUp = append(dropUp, dropColumn(table, c.Name))
		dropDown = append(dropDown, addColumn(table, c))
	}
	// Columns marked for removal that the baseline never knew about: re-add
	// from their own declaration.
	for _, c := range cur.Columns {
		if !c.Drop {
			continue
		}
		if _, existed := prev.Column(c.Name); existed {
			continue
		}
		restored := c
		restored.Drop = false
		dropUp = append(dropUp, dropColumn(table, c.Name))
		dropDown = append(dropDown, addColumn(table, restored))
	}

	var renameUp, renameDown []string
	var modifyUp, modifyDown []string
	var addUp, addDown []string
	for _, c := range cur.Columns {
		if c.Drop {
			continue
		}
		prevCol, existed := prev.Column(c.Name)
		if !existed {
			if old, ok := prev.Column(c.RenameFrom); ok && renamedFrom[c.RenameFrom].Name == c.Name {
				renameUp = append(renameUp, renameColumn(table, old.Name, c.Name))
				renameDown = append(renameDown, renameColumn(table, c.Name, old.Name))
				prevCol = old
				prevCol.Name = c.Name
				existed = true
			}
		}
		if existed {
			if !prevCol.Equal(c) {
				modifyUp = append(modifyUp, modifyColumn(table, c))
				modifyDown = append(modifyDown, modifyColumn(table, prevCol))
			}
			continue
		}
		addUp = append(addUp, addColumn(table, c))
		addDown = append(addDown, dropColumn(table, c.Name))
	}

	up = append(up, dropUp...)
	up = append(up, renameUp...)
	up = append(up, modifyUp...)
	up = append(up, addUp...)

	down = append(down, addDown...)
	down = append(down, modifyDown...)
	down = append(down, renameDown...)
	down = append(down, dropDown...)
	return up, down
}

func addColumn(table string, c schema.ColumnSpec) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", schema.QuoteIdent(table), c.Definition())
}

func dropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", schema.QuoteIdent(table), schema.QuoteIdent(column))
}

func renameColumn(table, from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		schema.QuoteIdent(table), schema.QuoteIdent(from), schema.QuoteIdent(to))
}

func modifyColumn(table string, c schema.ColumnSpec) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", schema.QuoteIdent(table), c.Definition())
}
