package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vodwatch/internal/config"
	"vodwatch/internal/daemonrun"
	"vodwatch/internal/monitor"
	"vodwatch/internal/status"
)

// checkRow is the JSON shape of one probe result.
type checkRow struct {
	Channel  string `json:"channel"`
	Live     bool   `json:"live"`
	Attempts int    `json:"attempts"`
	Failure  string `json:"failure,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check [channels...]",
		Short: "Probe channels once and report which are live",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results, err := probeChannels(cmd, ctx, cfg, args)
			if err != nil {
				return err
			}
			if jsonOutput {
				rows := make([]checkRow, 0, len(results))
				for _, r := range results {
					rows = append(rows, toCheckRow(r))
				}
				return writeJSON(cmd, rows)
			}
			renderCheckResults(cmd, results)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// probeChannels checks args, or the configured watch list when args is empty.
func probeChannels(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, args []string) ([]status.Result, error) {
	channels, err := normalizeChannels(args)
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		channels = cfg.Channels.Watch
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("no channels to check; pass some or add them with `vodwatch channels add`")
	}
	logger, err := ctx.logger()
	if err != nil {
		return nil, err
	}
	components, err := daemonrun.NewComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	return monitor.CheckOnce(cmd.Context(), components.Checker, channels, cfg.Monitor.ProbeParallelism), nil
}

func toCheckRow(r status.Result) checkRow {
	row := checkRow{Channel: r.Channel, Live: r.Live, Attempts: r.Attempts}
	if r.Err != nil {
		row.Failure = string(r.Kind)
		row.Error = r.Err.Error()
	}
	return row
}

func renderCheckResults(cmd *cobra.Command, results []status.Result) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		state := "offline"
		note := ""
		switch {
		case r.Err != nil:
			state = "unknown"
			note = fmt.Sprintf("%s: %v", r.Kind, r.Err)
		case r.Live:
			state = "live"
		}
		rows = append(rows, []string{r.Channel, state, strconv.Itoa(r.Attempts), note})
	}
	newPrinter(cmd).table([]string{"Channel", "Status", "Attempts", "Note"}, rows, 2)
}
