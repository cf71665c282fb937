package tweak

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"offsettweak/internal/chart"
	"offsettweak/internal/ledger"
	"offsettweak/internal/locator"
	"offsettweak/internal/logging"
)

// ErrLedgerCommit marks failures writing or removing a ledger after the pack's
// charts were already patched.
var ErrLedgerCommit = errors.New("ledger commit failed")

// Confirmer decides whether a pack's pending changes may be applied.
type Confirmer interface {
	Confirm(ctx context.Context, batch *Batch) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, batch *Batch) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, batch *Batch) (bool, error) {
	return f(ctx, batch)
}

// LedgerAction is what happened to a pack's ledger on commit.
type LedgerAction string

const (
	LedgerSaved   LedgerAction = "saved"
	LedgerCleared LedgerAction = "cleared"
)

// Commit describes one applied pack.
type Commit struct {
	RunID   string
	Root    string
	Batch   *Batch
	Patched []chart.PatchResult
	Ledger  LedgerAction
}

// Recorder persists committed packs. Recording failures never undo a commit.
type Recorder interface {
	Record(ctx context.Context, commit Commit) error
}

// Outcome summarizes what happened to one pack.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDeclined  Outcome = "declined"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeReset     Outcome = "reset"
	OutcomeDryRun    Outcome = "dry-run"
	OutcomeFailed    Outcome = "failed"
)

// PackResult is the per-pack result of a run.
type PackResult struct {
	Label   string
	Dir     string
	Outcome Outcome
	Changes int
	Err     error
}

// Report is the result of a run.
type Report struct {
	RunID string
	Root  string
	Delta float64
	Packs []PackResult
}

// Options configures an Engine.
type Options struct {
	Extensions      []string
	ContinueOnError bool
}

// RunOptions configures one run.
type RunOptions struct {
	RunID  string
	Delta  float64
	DryRun bool
}

// Engine drives a run over a library root.
type Engine struct {
	opts     Options
	ledgers  *ledger.Store
	planner  *Planner
	patcher  *chart.Patcher
	confirm  Confirmer
	recorder Recorder
	notices  io.Writer
	logger   *slog.Logger
}

// NewEngine wires an engine. recorder may be nil; notices receives one line
// per chart that had to be re-encoded and may be nil.
func NewEngine(opts Options, store *ledger.Store, patcher *chart.Patcher, confirm Confirmer, recorder Recorder, notices io.Writer, logger *slog.Logger) *Engine {
	if notices == nil {
		notices = io.Discard
	}
	return &Engine{
		opts:     opts,
		ledgers:  store,
		planner:  NewPlanner(store, logger),
		patcher:  patcher,
		confirm:  confirm,
		recorder: recorder,
		notices:  notices,
		logger:   logging.NewComponentLogger(logger, "tweak"),
	}
}

// Run locates every chart under root, plans the delta, and processes packs in
// order. Planning errors abort before any pack is touched. A pack failure
// stops the run unless ContinueOnError is set, in which case the failure is
// reported in its PackResult and included in the returned error.
func (e *Engine) Run(ctx context.Context, root string, opts RunOptions) (Report, error) {
	if opts.RunID != "" {
		ctx = logging.WithRunID(ctx, opts.RunID)
	}
	logger := logging.WithContext(ctx, e.logger)
	report := Report{RunID: opts.RunID, Root: root, Delta: opts.Delta}

	files, err := locator.Locate(root, e.opts.Extensions)
	if err != nil {
		return report, err
	}
	batches, err := e.planner.Plan(files, opts.Delta)
	if err != nil {
		return report, err
	}
	logger.Info("planned run",
		logging.String(logging.FieldPath, root),
		logging.Int("chart_count", len(files)),
		logging.Int("pack_count", len(batches)),
		logging.Float64("delta", opts.Delta),
		logging.Bool("dry_run", opts.DryRun))

	var failures []error
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result, err := e.processPack(ctx, logger, root, batch, opts)
		report.Packs = append(report.Packs, result)
		if err == nil {
			continue
		}
		logger.Error("pack failed",
			logging.String(logging.FieldPack, batch.Label),
			logging.Error(err))
		if !e.opts.ContinueOnError {
			return report, err
		}
		failures = append(failures, err)
	}
	return report, errors.Join(failures...)
}

func (e *Engine) processPack(ctx context.Context, logger *slog.Logger, root string, batch *Batch, opts RunOptions) (PackResult, error) {
	logger = logger.With(logging.String(logging.FieldPack, batch.Label))
	changes := batch.Changes()
	result := PackResult{Label: batch.Label, Dir: batch.Dir, Changes: len(changes)}

	if len(changes) == 0 {
		result.Outcome = OutcomeUnchanged
		if opts.Delta != 0 || !batch.LedgerExists || opts.DryRun {
			return result, nil
		}
		if _, err := e.ledgers.Clear(batch.Dir); err != nil {
			result.Outcome, result.Err = OutcomeFailed, err
			return result, fmt.Errorf("%w: pack %q: %w", ErrLedgerCommit, batch.Label, err)
		}
		logger.Info("cleared ledger; charts already at baseline", logging.String(logging.FieldPath, e.ledgers.Path(batch.Dir)))
		result.Outcome = OutcomeReset
		e.record(ctx, logger, Commit{RunID: opts.RunID, Root: root, Batch: batch, Ledger: LedgerCleared})
		return result, nil
	}

	approved, err := e.confirm.Confirm(ctx, batch)
	if err != nil {
		result.Outcome, result.Err = OutcomeFailed, err
		return result, fmt.Errorf("confirm pack %q: %w", batch.Label, err)
	}
	if opts.DryRun {
		result.Outcome = OutcomeDryRun
		return result, nil
	}
	if !approved {
		logger.Info("pack declined", logging.Int("change_count", len(changes)))
		result.Outcome = OutcomeDeclined
		return result, nil
	}

	// An approval that raced with cancellation is not acted on.
	if err := ctx.Err(); err != nil {
		result.Outcome, result.Err = OutcomeFailed, err
		return result, fmt.Errorf("pack %q not applied: %w", batch.Label, err)
	}

	commit, err := e.apply(batch, changes)
	if err != nil {
		result.Outcome, result.Err = OutcomeFailed, err
		return result, err
	}
	commit.RunID, commit.Root = opts.RunID, root

	logger.Info("pack applied",
		logging.Int("change_count", len(changes)),
		logging.String("ledger", string(commit.Ledger)),
		logging.Int("precision", batch.Precision()))
	result.Outcome = OutcomeApplied
	if commit.Ledger == LedgerCleared {
		result.Outcome = OutcomeReset
	}
	e.record(ctx, logger, commit)
	return result, nil
}

// apply patches every changed chart and then commits the ledger. A patch
// failure leaves the ledger untouched.
func (e *Engine) apply(batch *Batch, changes []Record) (Commit, error) {
	commit := Commit{Batch: batch}
	precision := batch.Precision()
	for _, rec := range changes {
		res, err := e.patcher.Patch(rec.File.Path, rec.Final, precision)
		if err != nil {
			return commit, fmt.Errorf("patch pack %q: %w", batch.Label, err)
		}
		if res.Reencoded {
			fmt.Fprintf(e.notices, "Detected %s encoding for %s, re-encoded as UTF-8\n", res.Encoding, res.Path)
		}
		commit.Patched = append(commit.Patched, res)
	}

	if batch.Delta == 0 {
		if _, err := e.ledgers.Clear(batch.Dir); err != nil {
			return commit, fmt.Errorf("%w: pack %q: %w", ErrLedgerCommit, batch.Label, err)
		}
		commit.Ledger = LedgerCleared
		return commit, nil
	}
	if err := e.ledgers.Save(batch.Dir, batch.Entries()); err != nil {
		return commit, fmt.Errorf("%w: pack %q: %w", ErrLedgerCommit, batch.Label, err)
	}
	commit.Ledger = LedgerSaved
	return commit, nil
}

func (e *Engine) record(ctx context.Context, logger *slog.Logger, commit Commit) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, commit); err != nil {
		logging.WarnWithContext(logger, "failed to record history", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "charts and ledger were updated; history is missing this pack"))
	}
}
