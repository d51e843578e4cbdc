package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"hackreview/internal/state"
	"hackreview/internal/workflow"
)

type pipelineFunc func(ctx context.Context, manager *workflow.Manager) (workflow.RunSummary, error)

// runPipeline opens a session, runs fn under a signal-aware context, and
// prints the summary. A FATAL run returns its error so the process exits 1.
func runPipeline(cmd *cobra.Command, ctx *commandContext, fn pipelineFunc) error {
	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := ctx.openSession(sigCtx)
	if err != nil {
		return err
	}
	defer sess.Close()

	summary, runErr := fn(sigCtx, sess.manager)
	out := cmd.OutOrStdout()
	if len(summary.Stages) > 0 || summary.Outcome != "" {
		fmt.Fprintln(out, strings.Join(renderRunSummary(summary, shouldColorize(out)), "\n"))
	}
	return runErr
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var csvPath string
	var resume bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full review pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := workflow.RunOptions{Resume: resume, CSVPath: strings.TrimSpace(csvPath)}
			return runPipeline(cmd, ctx, func(runCtx context.Context, manager *workflow.Manager) (workflow.RunSummary, error) {
				return manager.Run(runCtx, opts)
			})
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to the submissions CSV")
	cmd.Flags().BoolVar(&resume, "resume", true, "Reuse completed work (--resume=false reprocesses everything)")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func newParseCommand(ctx *commandContext) *cobra.Command {
	var csvPath string
	var resume bool

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse the submissions CSV into the state store",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := workflow.RunOptions{Resume: resume, CSVPath: strings.TrimSpace(csvPath)}
			return runPipeline(cmd, ctx, func(runCtx context.Context, manager *workflow.Manager) (workflow.RunSummary, error) {
				return manager.RunStage(runCtx, state.StageParse, opts)
			})
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to the submissions CSV")
	cmd.Flags().BoolVar(&resume, "resume", true, "Keep unchanged rows and guard against reordered CSVs")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

// newStageCommand runs one per-item stage against the persisted upstream records.
func newStageCommand(ctx *commandContext, name state.Stage, short string) *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   name.Lower(),
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := workflow.RunOptions{Resume: resume}
			return runPipeline(cmd, ctx, func(runCtx context.Context, manager *workflow.Manager) (workflow.RunSummary, error) {
				return manager.RunStage(runCtx, name, opts)
			})
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", true, "Reuse completed work (--resume=false reprocesses every eligible submission)")
	return cmd
}
