package migrate

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"entitymigrate/internal/db"
	"entitymigrate/internal/ledger"
	"entitymigrate/internal/schema"
	"entitymigrate/internal/snapshot"
	"entitymigrate/internal/storage"
)

// fakeAdapter is a full in-memory db.Adapter. Scripts containing failOn make
// ExecScript fail, which is how the containment tests inject a broken unit.
type fakeAdapter struct {
	mu       sync.Mutex
	executed []string
	failOn   string
	records  []db.LedgerRecord
	nextID   int64
}

func (f *fakeAdapter) Provider() string { return "fake" }
func (f *fakeAdapter) Close() error     { return nil }

func (f *fakeAdapter) Execute(context.Context, string, ...any) (int64, error) { return 0, nil }

func (f *fakeAdapter) Query(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAdapter) ExecScript(_ context.Context, script string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && strings.Contains(script, f.failOn) {
		return errors.New("syntax error near " + f.failOn)
	}
	f.executed = append(f.executed, script)
	return nil
}

func (f *fakeAdapter) EnsureLedgerTable(context.Context, string) error { return nil }

func (f *fakeAdapter) InsertLedgerRecord(_ context.Context, _ string, rec db.LedgerRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	rec.ID = f.nextID
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeAdapter) DeleteLedgerRecord(_ context.Context, _ string, version string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []db.LedgerRecord
	var deleted int64
	for _, rec := range f.records {
		if rec.Version == version {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	f.records = kept
	return deleted, nil
}

func (f *fakeAdapter) FetchLedgerRecords(context.Context, string) ([]db.LedgerRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]db.LedgerRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeAdapter) MaxBatch(context.Context, string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, rec := range f.records {
		if rec.Batch > max {
			max = rec.Batch
		}
	}
	return max, nil
}

func (f *fakeAdapter) FetchSchema(context.Context, string) (schema.Catalog, error) {
	return schema.Catalog{}, nil
}

func (f *fakeAdapter) appliedVersions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec.Version)
	}
	return out
}

type fixture struct {
	adapter *fakeAdapter
	runner  *Runner
	units   *storage.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	adapter := &fakeAdapter{}
	units := storage.New(t.TempDir())
	snapshots := snapshot.New(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := New(adapter, ledger.New(adapter, "schema_migrations"), units, snapshots, logger)
	return &fixture{adapter: adapter, runner: runner, units: units}
}

func (f *fixture) addUnit(t *testing.T, name, forward, rollback string, at time.Time) string {
	t.Helper()
	require.NoError(t, f.units.EnsureBase())
	unit, err := f.units.CreateUnit(name, forward, rollback, at)
	require.NoError(t, err)
	return unit.Version
}

func at(minute int) time.Time {
	return time.Date(2024, 3, 1, 12, minute, 0, 0, time.UTC)
}

func TestApplyRunsPendingAsOneBatch(t *testing.T) {
	f := newFixture(t)
	v1 := f.addUnit(t, "create_users", "CREATE TABLE `users` (`id` INT(11) NOT NULL);\n", "DROP TABLE `users`;\n", at(0))
	v2 := f.addUnit(t, "create_posts", "CREATE TABLE `posts` (`id` INT(11) NOT NULL);\n", "DROP TABLE `posts`;\n", at(1))
	v3 := f.addUnit(t, "add_email", "ALTER TABLE `users` ADD COLUMN `email` VARCHAR(255) NOT NULL;\n", "ALTER TABLE `users` DROP COLUMN `email`;\n", at(2))

	result, err := f.runner.Apply(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Batch)
	require.Equal(t, []string{v1, v2, v3}, result.Applied)
	require.Equal(t, []string{v1, v2, v3}, f.adapter.appliedVersions())
	require.Len(t, f.adapter.executed, 3)

	// Same batch number and run id on every record of the invocation.
	for _, rec := range f.adapter.records {
		require.Equal(t, 1, rec.Batch)
		require.Equal(t, f.adapter.records[0].RunID, rec.RunID)
	}
	require.NotEmpty(t, f.adapter.records[0].RunID)
}

func TestApplyNothingPending(t *testing.T) {
	f := newFixture(t)
	result, err := f.runner.Apply(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.Batch)
	require.Empty(t, result.Applied)
}

func TestApplyHaltsOnFirstFailure(t *testing.T) {
	f := newFixture(t)
	v1 := f.addUnit(t, "one", "CREATE TABLE `a` (`id` INT(11) NOT NULL);\n", "DROP TABLE `a`;\n", at(0))
	v2 := f.addUnit(t, "two", "BROKEN_STATEMENT;\n", "SELECT 1;\n", at(1))
	v3 := f.addUnit(t, "three", "CREATE TABLE `c` (`id` INT(11) NOT NULL);\n", "DROP TABLE `c`;\n", at(2))
	f.adapter.failOn = "BROKEN_STATEMENT"

	result, err := f.runner.Apply(context.Background())
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, v2, execErr.Version)

	// Work before the failure stays committed; the failing unit and everything
	// after it stay pending.
	require.Equal(t, []string{v1}, result.Applied)
	require.Equal(t, []string{v1}, f.adapter.appliedVersions())

	status, err := f.runner.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{v2, v3}, status.Pending)
}

func TestApplyRetryAfterFix(t *testing.T) {
	f := newFixture(t)
	v1 := f.addUnit(t, "one", "CREATE TABLE `a` (`id` INT(11) NOT NULL);\n", "DROP TABLE `a`;\n", at(0))
	v2 := f.addUnit(t, "two", "BROKEN_STATEMENT;\n", "SELECT 1;\n", at(1))
	f.adapter.failOn = "BROKEN_STATEMENT"

	_, err := f.runner.Apply(context.Background())
	require.Error(t, err)

	// Operator fixes the script out of band; the retry starts a new batch and
	// processes only the remaining unit.
	f.adapter.failOn = ""
	result, err := f.runner.Apply(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Batch)
	require.Equal(t, []string{v2}, result.Applied)
	require.Equal(t, []string{v1, v2}, f.adapter.appliedVersions())
}

func TestRollbackLastBatchReverseOrder(t *testing.T) {
	f := newFixture(t)
	v1 := f.addUnit(t, "one", "CREATE TABLE `a` (`id` INT(11) NOT NULL);\n", "DROP TABLE `a`;\n", at(0))
	v2 := f.addUnit(t, "two", "CREATE TABLE `b` (`id` INT(11) NOT NULL);\n", "DROP TABLE `b`;\n", at(1))

	_, err := f.runner.Apply(context.Background())
	require.NoError(t, err)

	result, err := f.runner.Rollback(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []string{v2, v1}, result.RolledBack)
	require.Empty(t, f.adapter.appliedVersions())

	// The rollback scripts ran, most recent unit first.
	executed := f.adapter.executed
	require.Equal(t, "DROP TABLE `b`;\n", executed[len(executed)-2])
	require.Equal(t, "DROP TABLE `a`;\n", executed[len(executed)-1])
}

func TestRollbackMultipleBatches(t *testing.T) {
	f := newFixture(t)
	v1 := f.addUnit(t, "one", "CREATE TABLE `a` (`id` INT(11) NOT NULL);\n", "DROP TABLE `a`;\n", at(0))
	_, err := f.runner.Apply(context.Background())
	require.NoError(t, err)

	v2 := f.addUnit(t, "two", "CREATE TABLE `b` (`id` INT(11) NOT NULL);\n", "DROP TABLE `b`;\n", at(1))
	_, err = f.runner.Apply(context.Background())
	require.NoError(t, err)

	result, err := f.runner.Rollback(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, []string{v2, v1}, result.RolledBack)
	require.Empty(t, f.adapter.appliedVersions())
}

func TestRollbackDefaultsToOneBatch(t *testing.T) {
	f := newFixture(t)
	v1 := f.addUnit(t, "one", "CREATE TABLE `a` (`id` INT(11) NOT NULL);\n", "DROP TABLE `a`;\n", at(0))
	_, err := f.runner.Apply(context.Background())
	require.NoError(t, err)

	v2 := f.addUnit(t, "two", "CREATE TABLE `b` (`id` INT(11) NOT NULL);\n", "DROP TABLE `b`;\n", at(1))
	_, err = f.runner.Apply(context.Background())
	require.NoError(t, err)

	result, err := f.runner.Rollback(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, []string{v2}, result.RolledBack)
	require.Equal(t, []string{v1}, f.adapter.appliedVersions())
}

func TestRollbackHaltsOnFailure(t *testing.T) {
	f := newFixture(t)
	v1 := f.addUnit(t, "one", "CREATE TABLE `a` (`id` INT(11) NOT NULL);\n", "BROKEN_ROLLBACK;\n", at(0))
	v2 := f.addUnit(t, "two", "CREATE TABLE `b` (`id` INT(11) NOT NULL);\n", "DROP TABLE `b`;\n", at(1))

	_, err := f.runner.Apply(context.Background())
	require.NoError(t, err)

	f.adapter.failOn = "BROKEN_ROLLBACK"
	result, err := f.runner.Rollback(context.Background(), 1)
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, v1, execErr.Version)

	// v2 rolled back before the failure; v1 stays in the ledger.
	require.Equal(t, []string{v2}, result.RolledBack)
	require.Equal(t, []string{v1}, f.adapter.appliedVersions())
}

func TestGenerateCreatesUnitAndSnapshot(t *testing.T) {
	f := newFixture(t)
	f.runner.now = func() time.Time { return at(0) }

	cat := schema.Catalog{Tables: []schema.Schema{{
		Table: "users",
		Columns: []schema.ColumnSpec{
			{Name: "id", Type: schema.TypeInt, Length: "11", Unsigned: true, AutoIncrement: true, PrimaryKey: true},
		},
	}}}

	unit, err := f.runner.Generate(context.Background(), "create users", cat)
	require.NoError(t, err)
	require.Equal(t, "2024_03_01_120000_create_users", unit.Version)
	require.NotEmpty(t, unit.Checksum)

	forward, rollback, err := f.units.LoadScripts(unit.Version)
	require.NoError(t, err)
	require.Contains(t, forward, "CREATE TABLE `users`")
	require.Contains(t, rollback, "DROP TABLE `users`")

	// The same catalog again diffs clean against the fresh snapshot.
	f.runner.now = func() time.Time { return at(1) }
	_, err = f.runner.Generate(context.Background(), "noop", cat)
	require.ErrorIs(t, err, ErrNoChanges)
}

func TestGenerateIncrementalDiff(t *testing.T) {
	f := newFixture(t)
	f.runner.now = func() time.Time { return at(0) }

	base := schema.Catalog{Tables: []schema.Schema{{
		Table: "users",
		Columns: []schema.ColumnSpec{
			{Name: "id", Type: schema.TypeInt, Length: "11", Unsigned: true, AutoIncrement: true, PrimaryKey: true},
		},
	}}}
	_, err := f.runner.Generate(context.Background(), "create users", base)
	require.NoError(t, err)

	next := base
	next.Tables = []schema.Schema{{
		Table: "users",
		Columns: append(append([]schema.ColumnSpec{}, base.Tables[0].Columns...),
			schema.ColumnSpec{Name: "email", Type: schema.TypeString, Length: "255"}),
	}}

	f.runner.now = func() time.Time { return at(1) }
	unit, err := f.runner.Generate(context.Background(), "add email", next)
	require.NoError(t, err)

	forward, rollback, err := f.units.LoadScripts(unit.Version)
	require.NoError(t, err)
	require.Contains(t, forward, "ADD COLUMN `email`")
	require.NotContains(t, forward, "CREATE TABLE")
	require.Contains(t, rollback, "DROP COLUMN `email`")
}

func TestStatusListsAppliedAndPending(t *testing.T) {
	f := newFixture(t)
	v1 := f.addUnit(t, "one", "CREATE TABLE `a` (`id` INT(11) NOT NULL);\n", "DROP TABLE `a`;\n", at(0))
	_, err := f.runner.Apply(context.Background())
	require.NoError(t, err)

	v2 := f.addUnit(t, "two", "CREATE TABLE `b` (`id` INT(11) NOT NULL);\n", "DROP TABLE `b`;\n", at(1))

	status, err := f.runner.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, status.Applied, 1)
	require.Equal(t, v1, status.Applied[0].Version)
	require.Equal(t, []string{v2}, status.Pending)
}
