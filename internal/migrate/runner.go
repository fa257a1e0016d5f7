package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"entitymigrate/internal/db"
	"entitymigrate/internal/diff"
	"entitymigrate/internal/ledger"
	"entitymigrate/internal/schema"
	"entitymigrate/internal/snapshot"
	"entitymigrate/internal/storage"
)

// ErrNoChanges means the diff between baseline and current schema produced
// empty scripts; generation is refused rather than creating an empty unit.
var ErrNoChanges = errors.New("no schema changes detected")

// ExecutionError wraps a script failure with the identifying unit version so
// the operator can fix and retry without reprocessing earlier units.
type ExecutionError struct {
	Version string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("migration %s: %v", e.Version, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Runner ties the ledger, unit store, snapshot store and database adapter
// together for the apply, rollback, generate and status workflows.
type Runner struct {
	adapter   db.Adapter
	ledger    *ledger.Ledger
	units     *storage.Store
	snapshots *snapshot.Store
	logger    Logger
	now       func() time.Time
}

func New(adapter db.Adapter, lg *ledger.Ledger, units *storage.Store, snapshots *snapshot.Store, logger Logger) *Runner {
	return &Runner{
		adapter:   adapter,
		ledger:    lg,
		units:     units,
		snapshots: snapshots,
		logger:    logger,
		now:       time.Now,
	}
}

// ApplyResult reports what one apply invocation committed.
type ApplyResult struct {
	Batch   int      `json:"batch"`
	Applied []string `json:"applied"`
}

// Apply runs every pending unit in chronological order as one batch. The
// first failure halts the loop: units already processed stay recorded, the
// failing unit is not recorded, so a fixed version can be retried without
// re-processing earlier work.
func (r *Runner) Apply(ctx context.Context) (ApplyResult, error) {
	if err := r.ledger.EnsureStore(ctx); err != nil {
		return ApplyResult{}, err
	}
	known, err := r.units.Versions()
	if err != nil {
		return ApplyResult{}, fmt.Errorf("list migration units: %w", err)
	}
	pending, err := r.ledger.Pending(ctx, known)
	if err != nil {
		return ApplyResult{}, err
	}
	if len(pending) == 0 {
		r.logger.Info("nothing to apply")
		return ApplyResult{}, nil
	}

	batch, err := r.ledger.NextBatch(ctx)
	if err != nil {
		return ApplyResult{}, err
	}
	runID := uuid.NewString()

	result := ApplyResult{Batch: batch}
	for _, version := range pending {
		forward, _, err := r.units.LoadScripts(version)
		if err != nil {
			return result, &ExecutionError{Version: version, Err: err}
		}
		if err := r.adapter.ExecScript(ctx, forward); err != nil {
			r.logger.Error("migration failed", "version", version, "error", err)
			return result, &ExecutionError{Version: version, Err: err}
		}
		if err := r.ledger.RecordApplied(ctx, version, batch, runID); err != nil {
			return result, &ExecutionError{Version: version, Err: err}
		}
		result.Applied = append(result.Applied, version)
		r.logger.Info("migration applied", "version", version, "batch", batch)
	}
	return result, nil
}

// RollbackResult reports what one rollback invocation undid.
type RollbackResult struct {
	RolledBack []string `json:"rolled_back"`
}

// Rollback undoes up to the n most recent batches, most recently applied
// unit first. Failure semantics mirror Apply: the failing unit stays in the
// ledger, already rolled-back units stay removed.
func (r *Runner) Rollback(ctx context.Context, batches int) (RollbackResult, error) {
	if batches <= 0 {
		batches = 1
	}
	if err := r.ledger.EnsureStore(ctx); err != nil {
		return RollbackResult{}, err
	}
	records, err := r.ledger.LastBatches(ctx, batches)
	if err != nil {
		return RollbackResult{}, err
	}
	if len(records) == 0 {
		r.logger.Info("nothing to roll back")
		return RollbackResult{}, nil
	}

	var result RollbackResult
	for _, rec := range records {
		_, rollback, err := r.units.LoadScripts(rec.Version)
		if err != nil {
			return result, &ExecutionError{Version: rec.Version, Err: err}
		}
		if err := r.adapter.ExecScript(ctx, rollback); err != nil {
			r.logger.Error("rollback failed", "version", rec.Version, "error", err)
			return result, &ExecutionError{Version: rec.Version, Err: err}
		}
		if err := r.ledger.RecordRolledBack(ctx, rec.Version); err != nil {
			return result, &ExecutionError{Version: rec.Version, Err: err}
		}
		result.RolledBack = append(result.RolledBack, rec.Version)
		r.logger.Info("migration rolled back", "version", rec.Version, "batch", rec.Batch)
	}
	return result, nil
}

// Generate diffs the current catalog against the latest snapshot and
// materializes a new reversible unit plus a fresh snapshot. Fails with
// ErrNoChanges when the schemas already match.
func (r *Runner) Generate(ctx context.Context, name string, current schema.Catalog) (storage.Unit, error) {
	_ = ctx
	previous, _, _, err := r.snapshots.Latest()
	if err != nil {
		return storage.Unit{}, err
	}

	script := diff.Compare(previous, current)
	if script.Empty() {
		return storage.Unit{}, ErrNoChanges
	}

	if err := r.units.EnsureBase(); err != nil {
		return storage.Unit{}, err
	}
	if err := r.snapshots.EnsureBase(); err != nil {
		return storage.Unit{}, err
	}

	now := r.now().UTC()
	unit, err := r.units.CreateUnit(name, script.UpSQL(), script.DownSQL(), now)
	if err != nil {
		return storage.Unit{}, err
	}
	if _, err := r.snapshots.Save(current, now); err != nil {
		return unit, fmt.Errorf("persist snapshot: %w", err)
	}
	r.logger.Info("migration generated", "version", unit.Version, "statements", len(script.Up))
	return unit, nil
}

// Status describes the ledger state against the known unit set.
type Status struct {
	Applied []db.LedgerRecord `json:"applied"`
	Pending []string          `json:"pending"`
}

// Status reports applied records and pending versions without mutating
// anything beyond ensuring the tracking table exists.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	if err := r.ledger.EnsureStore(ctx); err != nil {
		return Status{}, err
	}
	records, err := r.ledger.Records(ctx)
	if err != nil {
		return Status{}, err
	}
	known, err := r.units.Versions()
	if err != nil {
		return Status{}, fmt.Errorf("list migration units: %w", err)
	}
	pending, err := r.ledger.Pending(ctx, known)
	if err != nil {
		return Status{}, err
	}
	return Status{Applied: records, Pending: pending}, nil
}
