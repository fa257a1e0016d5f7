package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"entitymigrate/internal/schema"
)

type MySQLAdapter struct {
	conn
}

func (m *MySQLAdapter) Provider() string { return "mysql" }

func (m *MySQLAdapter) EnsureLedgerTable(ctx context.Context, table string) error {
	tableName := backquote(table)
	stmt := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id bigint AUTO_INCREMENT PRIMARY KEY,
	version varchar(255) NOT NULL,
	batch int NOT NULL,
	run_id varchar(64) NOT NULL,
	applied_at timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE KEY %s_version_uq (version),
	INDEX %s_batch_idx (batch)
) ENGINE=InnoDB;
`, tableName, table, table)
	_, err := m.db.ExecContext(ctx, stmt)
	return err
}

func (m *MySQLAdapter) InsertLedgerRecord(ctx context.Context, table string, rec LedgerRecord) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (version, batch, run_id, applied_at) VALUES (?,?,?,?)`, backquote(table))
	_, err := m.db.ExecContext(ctx, stmt, rec.Version, rec.Batch, rec.RunID, rec.AppliedAt)
	return err
}

func (m *MySQLAdapter) DeleteLedgerRecord(ctx context.Context, table, version string) (int64, error) {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE version=?`, backquote(table))
	res, err := m.db.ExecContext(ctx, stmt, version)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (m *MySQLAdapter) FetchLedgerRecords(ctx context.Context, table string) ([]LedgerRecord, error) {
	stmt := fmt.Sprintf(`SELECT id, version, batch, run_id, applied_at FROM %s ORDER BY id ASC`, backquote(table))
	rows, err := m.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return scanLedgerRecords(rows)
}

func (m *MySQLAdapter) MaxBatch(ctx context.Context, table string) (int, error) {
	stmt := fmt.Sprintf(`SELECT COALESCE(MAX(batch), 0) FROM %s`, backquote(table))
	var batch int
	if err := m.db.QueryRowContext(ctx, stmt).Scan(&batch); err != nil {
		return 0, err
	}
	return batch, nil
}

func (m *MySQLAdapter) FetchSchema(ctx context.Context, schemaName string) (schema.Catalog, error) {
	name := strings.TrimSpace(schemaName)
	if name == "" {
		if err := m.db.QueryRowContext(ctx, `SELECT DATABASE()`).Scan(&name); err != nil {
			return schema.Catalog{}, err
		}
	}

	rows, err := m.db.QueryContext(ctx, `
SELECT c.table_name, c.column_name, c.column_type, c.is_nullable, c.column_default, c.extra, c.column_key
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema=? AND t.table_type='BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`, name)
	if err != nil {
		return schema.Catalog{}, err
	}
	defer rows.Close()

	var cat schema.Catalog
	index := map[string]int{}
	for rows.Next() {
		var tbl, col, colType, nullable, extra, key string
		var def sql.NullString
		if err := rows.Scan(&tbl, &col, &colType, &nullable, &def, &extra, &key); err != nil {
			return schema.Catalog{}, err
		}

		typ, length, unsigned := parseColumnType(colType)
		spec := schema.ColumnSpec{
			Name:          col,
			Type:          typ,
			Length:        length,
			Nullable:      strings.EqualFold(nullable, "YES"),
			Unsigned:      unsigned,
			AutoIncrement: strings.Contains(strings.ToLower(extra), "auto_increment"),
			PrimaryKey:    key == "PRI",
			Unique:        key == "UNI",
			Indexed:       key == "MUL",
		}
		if def.Valid {
			value := def.String
			spec.Default = &value
		}

		i, ok := index[tbl]
		if !ok {
			cat.Tables = append(cat.Tables, schema.Schema{Table: tbl})
			i = len(cat.Tables) - 1
			index[tbl] = i
		}
		cat.Tables[i].Columns = append(cat.Tables[i].Columns, spec)
	}
	return cat, rows.Err()
}

func backquote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
