package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var flags tweakFlags

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:   "offsettweak [flags] <root>",
		Short: "Shift chart #OFFSET fields pack by pack",
		Long: "offsettweak walks a library of .ssc/.sm charts, applies one delta to every\n" +
			"chart's #OFFSET field, and asks for approval once per pack before writing.\n" +
			"Each pack records the offsets it last wrote in a ledger file, and the next\n" +
			"run starts from those values. --reset forgets the ledger.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTweak(cmd, ctx, args[0], flags)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.Flags().BoolVar(&flags.toITG, "toitg", false, "Add the ITG offset (+itg_delta) to every chart")
	rootCmd.Flags().BoolVar(&flags.toNull, "tonull", false, "Remove the ITG offset (-itg_delta) from every chart")
	rootCmd.Flags().BoolVar(&flags.reset, "reset", false, "Rewrite charts to their recorded offsets and drop each pack's ledger")
	rootCmd.Flags().Float64Var(&flags.custom, "custom", 0, "Apply an arbitrary delta in seconds")
	rootCmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "Approve every pack without prompting")
	rootCmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Show pending changes without writing anything")
	rootCmd.MarkFlagsMutuallyExclusive("toitg", "tonull", "reset", "custom")
	rootCmd.MarkFlagsMutuallyExclusive("yes", "dry-run")

	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
