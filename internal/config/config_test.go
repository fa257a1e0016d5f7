package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  provider: mysql
  dsn: user:pw@tcp(localhost:3306)/app
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "schema_migrations", cfg.LedgerTable)
	require.Equal(t, "./migrations", cfg.MigrationsDir)
	require.Equal(t, "./snapshots", cfg.SnapshotsDir)
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  provider: postgres
  dsn: postgres://u:p@localhost:5432/app
  schema: public
ledger_table: migration_ledger
migrations_dir: ./db/migrations
snapshots_dir: ./db/snapshots
entities_file: ./entities.yaml
http_address: :9090
log_level: debug
log_format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Database.Provider)
	require.Equal(t, "public", cfg.Database.Schema)
	require.Equal(t, "migration_ledger", cfg.LedgerTable)
	require.Equal(t, "./entities.yaml", cfg.EntitiesFile)
	require.Equal(t, ":9090", cfg.HTTPAddress)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestLoadEnvOverridesDSN(t *testing.T) {
	t.Setenv("ENTITYMIGRATE_DB_DSN", "override:pw@tcp(db:3306)/real")
	path := writeConfig(t, `
database:
  provider: mysql
  dsn: checked-in-dsn
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "override:pw@tcp(db:3306)/real", cfg.Database.DSN)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `
database:
  provider: oracle
  dsn: something
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "unsupported database.provider")
}

func TestLoadRequiresProviderAndDSN(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: something
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "provider is required")

	path = writeConfig(t, `
database:
  provider: sqlite
`)
	_, err = Load(path)
	require.ErrorContains(t, err, "dsn is required")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestSampleParses(t *testing.T) {
	path := writeConfig(t, Sample())
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "mysql", cfg.Database.Provider)
}
