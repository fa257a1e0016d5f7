package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"entitymigrate/internal/schema"
)

type PostgresAdapter struct {
	conn
}

func (p *PostgresAdapter) Provider() string { return "postgres" }

func (p *PostgresAdapter) EnsureLedgerTable(ctx context.Context, table string) error {
	tableName := quoteIdent(table)
	indexName := quoteIdent(table + "_batch_idx")
	stmt := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id bigserial PRIMARY KEY,
	version varchar(255) NOT NULL UNIQUE,
	batch int NOT NULL,
	run_id varchar(64) NOT NULL,
	applied_at timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS %s ON %s(batch);
`, tableName, indexName, tableName)
	_, err := p.db.ExecContext(ctx, stmt)
	return err
}

func (p *PostgresAdapter) InsertLedgerRecord(ctx context.Context, table string, rec LedgerRecord) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (version, batch, run_id, applied_at) VALUES ($1,$2,$3,$4)`, quoteIdent(table))
	_, err := p.db.ExecContext(ctx, stmt, rec.Version, rec.Batch, rec.RunID, rec.AppliedAt)
	return err
}

func (p *PostgresAdapter) DeleteLedgerRecord(ctx context.Context, table, version string) (int64, error) {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE version=$1`, quoteIdent(table))
	res, err := p.db.ExecContext(ctx, stmt, version)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (p *PostgresAdapter) FetchLedgerRecords(ctx context.Context, table string) ([]LedgerRecord, error) {
	stmt := fmt.Sprintf(`SELECT id, version, batch, run_id, applied_at FROM %s ORDER BY id ASC`, quoteIdent(table))
	rows, err := p.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return scanLedgerRecords(rows)
}

func (p *PostgresAdapter) MaxBatch(ctx context.Context, table string) (int, error) {
	stmt := fmt.Sprintf(`SELECT COALESCE(MAX(batch), 0) FROM %s`, quoteIdent(table))
	var batch int
	if err := p.db.QueryRowContext(ctx, stmt).Scan(&batch); err != nil {
		return 0, err
	}
	return batch, nil
}

func (p *PostgresAdapter) FetchSchema(ctx context.Context, schemaName string) (schema.Catalog, error) {
	name := strings.TrimSpace(schemaName)
	if name == "" {
		name = "public"
	}

	rows, err := p.db.QueryContext(ctx, `
SELECT c.table_name, c.column_name, c.data_type, c.is_nullable, c.column_default,
       COALESCE(c.character_maximum_length, 0),
       COALESCE(c.numeric_precision, 0),
       COALESCE(c.numeric_scale, 0)
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema=$1 AND t.table_type='BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`, name)
	if err != nil {
		return schema.Catalog{}, err
	}
	defer rows.Close()

	var cat schema.Catalog
	index := map[string]int{}
	for rows.Next() {
		var tbl, col, dataType, nullable string
		var def sql.NullString
		var charLen, precision, scale int64
		if err := rows.Scan(&tbl, &col, &dataType, &nullable, &def, &charLen, &precision, &scale); err != nil {
			return schema.Catalog{}, err
		}

		typ, length := pgColumnType(dataType, charLen, precision, scale)
		spec := schema.ColumnSpec{
			Name:     col,
			Type:     typ,
			Length:   length,
			Nullable: strings.EqualFold(nullable, "YES"),
		}
		if def.Valid {
			if strings.Contains(def.String, "nextval(") {
				spec.AutoIncrement = true
			} else {
				value := def.String
				spec.Default = &value
			}
		}

		i, ok := index[tbl]
		if !ok {
			cat.Tables = append(cat.Tables, schema.Schema{Table: tbl})
			i = len(cat.Tables) - 1
			index[tbl] = i
		}
		cat.Tables[i].Columns = append(cat.Tables[i].Columns, spec)
	}
	if err := rows.Err(); err != nil {
		return schema.Catalog{}, err
	}

	pkRows, err := p.db.QueryContext(ctx, `
SELECT tc.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
 AND tc.table_name = kcu.table_name
WHERE tc.table_schema=$1 AND tc.constraint_type='PRIMARY KEY'
ORDER BY kcu.ordinal_position`, name)
	if err != nil {
		return cat, err
	}
	defer pkRows.Close()

	for pkRows.Next() {
		var tbl, col string
		if err := pkRows.Scan(&tbl, &col); err != nil {
			return cat, err
		}
		i, ok := index[tbl]
		if !ok {
			continue
		}
		for j := range cat.Tables[i].Columns {
			if cat.Tables[i].Columns[j].Name == col {
				cat.Tables[i].Columns[j].PrimaryKey = true
			}
		}
	}
	return cat, pkRows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
