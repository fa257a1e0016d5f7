package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"entitymigrate/internal/db"
)

// ErrDuplicateRecord reports a version that is already present in the ledger.
// Callers filter through Pending first, so hitting it means the invariant was
// violated upstream.
var ErrDuplicateRecord = errors.New("migration version already recorded")

// Ledger tracks which migration versions have been applied, in which batch
// and in what order, on top of the provider adapter's tracking table.
type Ledger struct {
	adapter db.Adapter
	table   string
}

func New(adapter db.Adapter, table string) *Ledger {
	return &Ledger{adapter: adapter, table: table}
}

// EnsureStore creates the tracking table when missing. Idempotent; safe to
// call before every other operation.
func (l *Ledger) EnsureStore(ctx context.Context) error {
	if err := l.adapter.EnsureLedgerTable(ctx, l.table); err != nil {
		return fmt.Errorf("ensure ledger table %s: %w", l.table, err)
	}
	return nil
}

// Records returns all ledger rows in application order.
func (l *Ledger) Records(ctx context.Context) ([]db.LedgerRecord, error) {
	return l.adapter.FetchLedgerRecords(ctx, l.table)
}

// Applied returns applied versions, ascending by application order.
func (l *Ledger) Applied(ctx context.Context) ([]string, error) {
	records, err := l.Records(ctx)
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(records))
	for _, rec := range records {
		versions = append(versions, rec.Version)
	}
	return versions, nil
}

// Pending returns the known versions that have not been applied yet,
// preserving the chronological order of known.
func (l *Ledger) Pending(ctx context.Context, known []string) ([]string, error) {
	applied, err := l.Applied(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(applied))
	for _, v := range applied {
		seen[v] = struct{}{}
	}
	var out []string
	for _, v := range known {
		if _, ok := seen[v]; !ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// RecordApplied inserts a ledger row for the version. The duplicate check is
// defensive: the normal path filters through Pending first.
func (l *Ledger) RecordApplied(ctx context.Context, version string, batch int, runID string) error {
	applied, err := l.Applied(ctx)
	if err != nil {
		return err
	}
	for _, v := range applied {
		if v == version {
			return fmt.Errorf("%w: %s", ErrDuplicateRecord, version)
		}
	}
	return l.adapter.InsertLedgerRecord(ctx, l.table, db.LedgerRecord{
		Version:   version,
		Batch:     batch,
		RunID:     runID,
		AppliedAt: time.Now().UTC(),
	})
}

// RecordRolledBack removes the version's ledger row. Absence is a no-op, not
// an error.
func (l *Ledger) RecordRolledBack(ctx context.Context, version string) error {
	_, err := l.adapter.DeleteLedgerRecord(ctx, l.table, version)
	return err
}

// LastBatches returns the records of up to the n most recent batches,
// most-recently-applied first.
func (l *Ledger) LastBatches(ctx context.Context, n int) ([]db.LedgerRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	records, err := l.Records(ctx)
	if err != nil {
		return nil, err
	}

	batches := map[int]bool{}
	for _, rec := range records {
		batches[rec.Batch] = true
	}
	ids := make([]int, 0, len(batches))
	for b := range batches {
		ids = append(ids, b)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))
	if len(ids) > n {
		ids = ids[:n]
	}
	keep := make(map[int]bool, len(ids))
	for _, b := range ids {
		keep[b] = true
	}

	var out []db.LedgerRecord
	for i := len(records) - 1; i >= 0; i-- {
		if keep[records[i].Batch] {
			out = append(out, records[i])
		}
	}
	return out, nil
}

// NextBatch returns the batch number the next apply invocation should use.
func (l *Ledger) NextBatch(ctx context.Context) (int, error) {
	max, err := l.adapter.MaxBatch(ctx, l.table)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}
