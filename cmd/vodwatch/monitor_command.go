package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vodwatch/internal/config"
	"vodwatch/internal/daemonrun"
	"vodwatch/internal/ipc"
)

func newMonitorCommand(ctx *commandContext) *cobra.Command {
	var interval int

	cmd := &cobra.Command{
		Use:   "monitor [channels...]",
		Short: "Watch channels in the foreground and record them when they go live",
		Long: "Watch channels in the foreground and record them when they go live.\n\n" +
			"The first Ctrl+C stops probing and waits for active recordings to end;\n" +
			"a second Ctrl+C stops the recordings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			channels, err := normalizeChannels(args)
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:        ctx.logLevel(),
				Channels:        channels,
				IntervalMinutes: interval,
			})
		},
	}
	cmd.Flags().IntVarP(&interval, "interval", "i", 0, "Minutes between checks (overrides monitor.check_interval_minutes)")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running monitor's channels, sessions, and recent outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				renderStatus(cmd, status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderStatus(cmd *cobra.Command, status *ipc.StatusResponse) {
	p := newPrinter(cmd)

	p.section("Monitor")
	monitorKind, monitorText := statusOK, "probing"
	if !status.Monitoring {
		monitorKind, monitorText = statusWarn, "stopped; waiting for recordings"
	}
	p.status("State", monitorKind, monitorText)
	p.status("PID", statusInfo, strconv.Itoa(status.PID))
	p.status("Started", statusInfo, formatTimestamp(status.StartedAt))
	p.status("Cycles", statusInfo, strconv.Itoa(status.Cycles))
	p.status("Sessions", statusInfo, fmt.Sprintf("%d of %d", len(status.Sessions), status.MaxConcurrent))
	p.blank()

	rows := make([][]string, 0, len(status.Channels))
	for _, ch := range status.Channels {
		state := "offline"
		switch {
		case ch.Recording:
			state = "recording"
		case ch.LastError != "":
			state = "check failed"
		case ch.Live:
			state = "live"
		case ch.LastChecked.IsZero():
			state = "pending"
		}
		rows = append(rows, []string{ch.Channel, state, formatTimestamp(ch.LastChecked), formatTimestamp(ch.CooldownUntil)})
	}
	p.table([]string{"Channel", "State", "Last Check", "Cooldown Until"}, rows)

	if len(status.Recent) > 0 {
		p.blank()
		recent := make([][]string, 0, len(status.Recent))
		for _, o := range status.Recent {
			recent = append(recent, []string{o.Channel, string(o.State), formatElapsed(o.EndedAt.Sub(o.StartedAt)), o.OutputPath, o.Error})
		}
		p.table([]string{"Channel", "Result", "Duration", "File", "Error"}, recent, 2)
	}
}

func normalizeChannels(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	seen := map[string]bool{}
	for _, arg := range args {
		ch, err := config.NormalizeChannel(arg)
		if err != nil {
			return nil, err
		}
		if seen[ch] {
			continue
		}
		seen[ch] = true
		out = append(out, ch)
	}
	return out, nil
}
