package main

import (
	"github.com/spf13/cobra"

	"hackreview/internal/state"
)

const defaultOutputDir = "./output"

func newRootCommand() *cobra.Command {
	var configFlag string
	var outputFlag string
	var logLevelFlag string

	ctx := newCommandContext(&configFlag, &outputFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "hackreview",
		Short:         "Review hackathon submissions: clone, download, analyze, report",
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
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (TOML or YAML)")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", defaultOutputDir, "Output directory holding state and reports")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newParseCommand(ctx))
	rootCmd.AddCommand(newStageCommand(ctx, state.StageClone, "Clone every submission repository"))
	rootCmd.AddCommand(newStageCommand(ctx, state.StageDownload, "Download every demo video"))
	rootCmd.AddCommand(newStageCommand(ctx, state.StageAnalyze, "Run code review, video analysis, and scoring"))
	rootCmd.AddCommand(newStageCommand(ctx, state.StageReport, "Render project reports, flags, summary, and leaderboard"))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
