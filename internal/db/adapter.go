package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"entitymigrate/internal/schema"
)

// LedgerRecord is one row of the migration tracking table.
type LedgerRecord struct {
	ID        int64     `json:"id"`
	Version   string    `json:"version"`
	Batch     int       `json:"batch"`
	RunID     string    `json:"run_id"`
	AppliedAt time.Time `json:"applied_at"`
}

// Adapter abstracts provider-specific behavior: script execution, the ledger
// tracking table and live-schema introspection.
type Adapter interface {
	Provider() string
	Close() error
	Execute(ctx context.Context, stmt string, args ...any) (int64, error)
	Query(ctx context.Context, stmt string, args ...any) (*sql.Rows, error)
	ExecScript(ctx context.Context, script string) error
	EnsureLedgerTable(ctx context.Context, table string) error
	InsertLedgerRecord(ctx context.Context, table string, rec LedgerRecord) error
	DeleteLedgerRecord(ctx context.Context, table, version string) (int64, error)
	FetchLedgerRecords(ctx context.Context, table string) ([]LedgerRecord, error)
	MaxBatch(ctx context.Context, table string) (int, error)
	FetchSchema(ctx context.Context, schemaName string) (schema.Catalog, error)
}

// Open builds an adapter for the given provider and DSN.
func Open(provider, dsn string) (Adapter, error) {
	switch strings.ToLower(provider) {
	case "postgres":
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		tune(db)
		return &PostgresAdapter{conn: conn{db: db}}, nil
	case "mysql":
		// Validate DSN early to provide actionable errors.
		if _, err := mysql.ParseDSN(dsn); err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, err
		}
		tune(db)
		return &MySQLAdapter{conn: conn{db: db}}, nil
	case "sqlite":
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		return &SQLiteAdapter{conn: conn{db: db}}, nil
	default:
		return nil, fmt.Errorf("unsupported provider %s", provider)
	}
}

func tune(db *sql.DB) {
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetMaxOpenConns(5)
}

// conn carries the behavior shared by all providers.
type conn struct {
	db *sql.DB
}

func (c *conn) Close() error { return c.db.Close() }

func (c *conn) Execute(ctx context.Context, stmt string, args ...any) (int64, error) {
	res, err := c.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // drivers without RowsAffected support
	}
	return affected, nil
}

func (c *conn) Query(ctx context.Context, stmt string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, stmt, args...)
}

func (c *conn) ExecScript(ctx context.Context, script string) error {
	for _, stmt := range splitStatements(script) {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// splitStatements breaks a script into single statements to avoid driver
// differences around multi-statements. Quote-aware so literals may contain
// semicolons.
func splitStatements(sqlText string) []string {
	var (
		out      []string
		current  strings.Builder
		inSingle bool
		inDouble bool
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			out = append(out, stmt)
		}
		current.Reset()
	}

	for _, r := range sqlText {
		switch r {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case ';':
			if !inSingle && !inDouble {
				flush()
				continue
			}
		}
		current.WriteRune(r)
	}
	flush()
	return out
}

func scanLedgerRecords(rows *sql.Rows) ([]LedgerRecord, error) {
	defer rows.Close()
	var out []LedgerRecord
	for rows.Next() {
		var rec LedgerRecord
		if err := rows.Scan(&rec.ID, &rec.Version, &rec.Batch, &rec.RunID, &rec.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
