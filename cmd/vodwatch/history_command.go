package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vodwatch/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent compression results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ledger.OpenFromConfig(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			jobs, err := store.RecentCompressions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, jobs)
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No compression history")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				ratio := "-"
				if r := job.Ratio(); r > 0 {
					ratio = fmt.Sprintf("%.0f%%", r*100)
				}
				rows = append(rows, []string{
					formatTimestamp(job.FinishedAt),
					filepath.Base(job.Source),
					string(job.Status),
					strconv.Itoa(job.CRF) + "/" + job.Preset,
					formatBytes(job.SourceBytes),
					formatBytes(job.TargetBytes),
					ratio,
					yesNo(job.SourceDeleted),
					strings.Join(job.Reasons, ", "),
				})
			}
			newPrinter(cmd).table(
				[]string{"Finished", "Source", "Status", "CRF/Preset", "Source Size", "Output Size", "Ratio", "Deleted", "Reasons"},
				rows, 4, 5, 6,
			)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of jobs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
