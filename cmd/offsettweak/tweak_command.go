package main

import (
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"offsettweak/internal/approval"
	"offsettweak/internal/chart"
	"offsettweak/internal/config"
	"offsettweak/internal/history"
	"offsettweak/internal/ledger"
	"offsettweak/internal/logging"
	"offsettweak/internal/runlock"
	"offsettweak/internal/tweak"
)

type tweakFlags struct {
	toITG  bool
	toNull bool
	reset  bool
	custom float64
	yes    bool
	dryRun bool
}

// delta resolves the selected flag. No delta flag means zero, which restores
// baselines exactly like --reset.
func (f tweakFlags) delta(cmd *cobra.Command, cfg *config.Config) (float64, error) {
	switch {
	case f.toITG:
		return cfg.Tweak.ITGDelta, nil
	case f.toNull:
		return -cfg.Tweak.ITGDelta, nil
	case f.reset:
		return 0, nil
	case cmd.Flags().Changed("custom"):
		if math.IsNaN(f.custom) || math.IsInf(f.custom, 0) {
			return 0, fmt.Errorf("--custom must be a finite number, got %v", f.custom)
		}
		return f.custom, nil
	default:
		return 0, nil
	}
}

func (f tweakFlags) mode() approval.Mode {
	switch {
	case f.dryRun:
		return approval.ModePreview
	case f.yes:
		return approval.ModeApprove
	default:
		return approval.ModePrompt
	}
}

func runTweak(cmd *cobra.Command, ctx *commandContext, root string, flags tweakFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	delta, err := flags.delta(cmd, cfg)
	if err != nil {
		return err
	}
	codecs, err := chart.LookupCodecs(cfg.Tweak.Encodings)
	if err != nil {
		return fmt.Errorf("tweak.encodings: %w", err)
	}

	lock, err := runlock.Acquire(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logging.WarnWithContext(logger, "failed to release run lock", "run_lock_release_failed",
				logging.Error(err),
				logging.String(logging.FieldPath, lock.Path()))
		}
	}()

	var recorder tweak.Recorder
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			logging.WarnWithContext(logger, "history journal unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldPath, cfg.History.Path),
				logging.String(logging.FieldImpact, "this run will not be journaled"))
		} else {
			defer store.Close()
			recorder = history.NewRecorder(store)
		}
	}

	in, out := cmd.InOrStdin(), cmd.OutOrStdout()
	mode := flags.mode()
	if mode == approval.ModePrompt && !approval.Interactive(in) {
		logger.Info("standard input is not a terminal; reading approvals from it")
	}

	ledgers := ledger.NewStore(cfg.Tweak.LedgerName, logger)
	engine := tweak.NewEngine(
		tweak.Options{Extensions: cfg.Tweak.Extensions, ContinueOnError: cfg.Tweak.ContinueOnError},
		ledgers,
		chart.NewPatcher(codecs, logger),
		approval.NewConsole(in, out, mode),
		recorder,
		out,
		logger,
	)

	report, runErr := engine.Run(cmd.Context(), root, tweak.RunOptions{
		RunID:  ctx.runID,
		Delta:  delta,
		DryRun: flags.dryRun,
	})
	if len(report.Packs) > 0 {
		fmt.Fprintln(out, renderReport(report))
	}
	return runErr
}

func renderReport(report tweak.Report) string {
	rows := make([][]string, 0, len(report.Packs))
	for _, pack := range report.Packs {
		rows = append(rows, []string{
			pack.Label,
			string(pack.Outcome),
			strconv.Itoa(pack.Changes),
			pack.Dir,
		})
	}
	return renderTable(
		[]string{"Pack", "Outcome", "Changes", "Ledger Dir"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	)
}
