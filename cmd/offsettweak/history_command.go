package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"offsettweak/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var showChanges bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently committed packs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.History.Enabled {
				fmt.Fprintln(out, "History is disabled ([history] enabled = false)")
				return nil
			}

			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			commits, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(commits) == 0 {
				fmt.Fprintln(out, "No committed packs recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistory(commits))
			if showChanges {
				for _, commit := range commits {
					if len(commit.Changes) == 0 {
						continue
					}
					fmt.Fprintf(out, "\n%s (%s)\n", commit.Pack, formatCommitTime(commit.CommittedAt))
					fmt.Fprintln(out, renderHistoryChanges(commit.Changes))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of commits to list (0 for all)")
	cmd.Flags().BoolVar(&showChanges, "changes", false, "Also list every rewritten chart")
	return cmd
}

func renderHistory(commits []history.Commit) string {
	rows := make([][]string, 0, len(commits))
	for _, commit := range commits {
		rows = append(rows, []string{
			formatCommitTime(commit.CommittedAt),
			commit.Pack,
			strconv.FormatFloat(commit.Delta, 'f', -1, 64),
			commit.LedgerAction,
			strconv.Itoa(len(commit.Changes)),
			shortRunID(commit.RunID),
		})
	}
	return renderTable(
		[]string{"Committed", "Pack", "Delta", "Ledger", "Files", "Run"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
	)
}

func renderHistoryChanges(changes []history.Change) string {
	rows := make([][]string, 0, len(changes))
	for _, change := range changes {
		encoding := change.Encoding
		if change.Reencoded {
			encoding += " -> UTF-8"
		}
		rows = append(rows, []string{change.Song, change.File, change.Previous, change.Current, encoding})
	}
	return renderTable(
		[]string{"Song", "File", "Before", "After", "Encoding"},
		rows,
		nil,
	)
}

func formatCommitTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
