package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"hackreview/internal/flags"
	"hackreview/internal/logging"
	"hackreview/internal/preflight"
	"hackreview/internal/state"
	"hackreview/internal/workflow"
)

type statusStageJSON struct {
	Stage   string `json:"stage"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}

type statusHealthJSON struct {
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

type statusJSON struct {
	OutputDir   string                      `json:"output_dir"`
	LastRunID   string                      `json:"last_run_id,omitempty"`
	Stages      []statusStageJSON           `json:"stages"`
	Flags       []flags.Flag                `json:"flags"`
	StageHealth map[string]statusHealthJSON `json:"stage_health"`
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newStatusCommand reads the state store without taking the run lock, so it
// can report progress while a run is active.
func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-stage progress and flags for the output directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir, err := ctx.runDir()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !stateExists(dir) {
				if asJSON {
					return writeJSON(cmd, statusJSON{OutputDir: dir.Root, Stages: []statusStageJSON{}, Flags: []flags.Flag{}})
				}
				fmt.Fprintf(out, "No runs recorded in %s\n", dir.Root)
				return nil
			}

			store, err := state.OpenSQLite(cmd.Context(), dir.StatePath())
			if err != nil {
				return err
			}
			defer store.Close()

			logger := logging.NewNop()
			manager := workflow.NewManager(cfg, store, dir, logger)
			manager.ConfigureStages(buildStages(cfg, dir, logger))
			status, err := manager.Status(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, statusToJSON(dir.Root, status))
			}
			colorize := shouldColorize(out)
			lines := renderStatus(dir.Root, status, colorize)
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Providers", colorize)...)
			lines = append(lines, preflightLines(preflight.CheckProvidersFromConfig(cfg), colorize)...)
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

func statusToJSON(root string, status workflow.StatusSummary) statusJSON {
	payload := statusJSON{
		OutputDir:   root,
		LastRunID:   status.LastRunID,
		Stages:      make([]statusStageJSON, 0, len(status.Stages)),
		Flags:       status.Flags.Flags,
		StageHealth: make(map[string]statusHealthJSON, len(status.StageHealth)),
	}
	if payload.Flags == nil {
		payload.Flags = []flags.Flag{}
	}
	for _, st := range status.Stages {
		payload.Stages = append(payload.Stages, statusStageJSON{
			Stage:   string(st.Stage),
			Success: st.Counts.Success,
			Failed:  st.Counts.Failed,
			Skipped: st.Counts.Skipped,
		})
	}
	for name, health := range status.StageHealth {
		payload.StageHealth[name] = statusHealthJSON{Ready: health.Ready, Detail: health.Detail}
	}
	return payload
}

func renderStatus(root string, status workflow.StatusSummary, colorize bool) []string {
	lines := renderSectionHeader("Status", colorize)
	lines = append(lines, renderStatusLine("Output", statusInfo, root, colorize))
	if status.LastRunID != "" {
		lines = append(lines, renderStatusLine("Last run", statusInfo, status.LastRunID, colorize))
	}

	rows := make([][]string, 0, len(status.Stages))
	for _, st := range status.Stages {
		rows = append(rows, append([]string{string(st.Stage)}, countCells(st.Counts)...))
	}
	lines = append(lines, "", renderTable(
		[]string{"Stage", "Success", "Failed", "Skipped"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	), "")
	lines = append(lines, flagLines(status.Flags, colorize)...)

	if len(status.StageHealth) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Stage Health", colorize)...)
		names := make([]string, 0, len(status.StageHealth))
		for name := range status.StageHealth {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			return stageOrder(names[i]) < stageOrder(names[j])
		})
		for _, name := range names {
			health := status.StageHealth[name]
			kind := statusOK
			message := "ready"
			if !health.Ready {
				kind = statusWarn
				message = health.Detail
				if message == "" {
					message = "not ready"
				}
			}
			lines = append(lines, renderStatusLine(name, kind, message, colorize))
		}
	}
	return lines
}

func stageOrder(name string) int {
	for i, st := range state.Stages {
		if st.Lower() == name {
			return i
		}
	}
	return len(state.Stages)
}
