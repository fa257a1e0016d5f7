package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"entitymigrate/internal/schema"
)

// SQLiteAdapter targets local and development databases through the pure-Go
// driver; the same logical vocabulary applies, with SQLite's loose typing
// mapped on a best-effort basis.
type SQLiteAdapter struct {
	conn
}

func (s *SQLiteAdapter) Provider() string { return "sqlite" }

func (s *SQLiteAdapter) EnsureLedgerTable(ctx context.Context, table string) error {
	stmt := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	version TEXT NOT NULL UNIQUE,
	batch INTEGER NOT NULL,
	run_id TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL
)`, quoteIdent(table))
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *SQLiteAdapter) InsertLedgerRecord(ctx context.Context, table string, rec LedgerRecord) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (version, batch, run_id, applied_at) VALUES (?,?,?,?)`, quoteIdent(table))
	_, err := s.db.ExecContext(ctx, stmt, rec.Version, rec.Batch, rec.RunID, rec.AppliedAt)
	return err
}

func (s *SQLiteAdapter) DeleteLedgerRecord(ctx context.Context, table, version string) (int64, error) {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE version=?`, quoteIdent(table))
	res, err := s.db.ExecContext(ctx, stmt, version)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteAdapter) FetchLedgerRecords(ctx context.Context, table string) ([]LedgerRecord, error) {
	stmt := fmt.Sprintf(`SELECT id, version, batch, run_id, applied_at FROM %s ORDER BY id ASC`, quoteIdent(table))
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return scanLedgerRecords(rows)
}

func (s *SQLiteAdapter) MaxBatch(ctx context.Context, table string) (int, error) {
	stmt := fmt.Sprintf(`SELECT COALESCE(MAX(batch), 0) FROM %s`, quoteIdent(table))
	var batch int
	if err := s.db.QueryRowContext(ctx, stmt).Scan(&batch); err != nil {
		return 0, err
	}
	return batch, nil
}

func (s *SQLiteAdapter) FetchSchema(ctx context.Context, _ string) (schema.Catalog, error) {
	tableRows, err := s.db.QueryContext(ctx, `
SELECT name FROM sqlite_master
WHERE type='table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`)
	if err != nil {
		return schema.Catalog{}, err
	}
	defer tableRows.Close()

	var tables []string
	for tableRows.Next() {
		var name string
		if err := tableRows.Scan(&name); err != nil {
			return schema.Catalog{}, err
		}
		tables = append(tables, name)
	}
	if err := tableRows.Err(); err != nil {
		return schema.Catalog{}, err
	}

	var cat schema.Catalog
	for _, table := range tables {
		t, err := s.tableInfo(ctx, table)
		if err != nil {
			return schema.Catalog{}, err
		}
		cat.Tables = append(cat.Tables, t)
	}
	return cat, nil
}

func (s *SQLiteAdapter) tableInfo(ctx context.Context, table string) (schema.Schema, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(table)))
	if err != nil {
		return schema.Schema{}, err
	}
	defer rows.Close()

	out := schema.Schema{Table: table}
	for rows.Next() {
		var (
			cid      int
			name     string
			declType string
			notNull  int
			def      sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &def, &pk); err != nil {
			return schema.Schema{}, err
		}

		typ, length, unsigned := parseColumnType(declType)
		spec := schema.ColumnSpec{
			Name:       name,
			Type:       typ,
			Length:     length,
			Nullable:   notNull == 0,
			Unsigned:   unsigned,
			PrimaryKey: pk > 0,
		}
		if spec.PrimaryKey && typ.IsInteger() {
			// SQLite integer primary keys are rowid aliases.
			spec.AutoIncrement = true
			spec.Nullable = false
		}
		if def.Valid {
			value := strings.Trim(def.String, "'")
			spec.Default = &value
		}
		out.Columns = append(out.Columns, spec)
	}
	return out, rows.Err()
}
