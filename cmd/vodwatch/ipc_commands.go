package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vodwatch/internal/config"
	"vodwatch/internal/ipc"
	"vodwatch/internal/logging"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recordings in progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				sessions, err := client.Sessions()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, sessions)
				}
				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No active recordings")
					return nil
				}
				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					rows = append(rows, []string{s.Channel, string(s.State), formatElapsed(s.Elapsed), s.OutputPath})
				}
				newPrinter(cmd).table([]string{"Channel", "State", "Elapsed", "File"}, rows, 2)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "stop [channel]",
		Short: "Stop a recording on the running monitor",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("pass a channel or --all, not both")
			}
			if !all && len(args) != 1 {
				return errors.New("pass exactly one channel, or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				if all {
					n, err := client.StopAll()
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Stop requested for %d recordings\n", n)
					return nil
				}
				channel, err := config.NormalizeChannel(args[0])
				if err != nil {
					return err
				}
				if err := client.StopRecording(channel); err != nil {
					return fmt.Errorf("%s: %s", channel, refusalText(err))
				}
				fmt.Fprintf(out, "Stop requested for %s\n", channel)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Stop every active recording")
	return cmd
}

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var since uint64
	var limit int
	var channel string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent monitor events",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := ""
			if strings.TrimSpace(channel) != "" {
				normalized, err := config.NormalizeChannel(channel)
				if err != nil {
					return err
				}
				filter = normalized
			}
			return ctx.withClient(func(client *ipc.Client) error {
				cursor := since
				for {
					resp, err := client.Events(ipc.EventsRequest{
						Since:      cursor,
						Limit:      limit,
						Follow:     follow,
						WaitMillis: 1000,
					})
					if err != nil {
						return err
					}
					for _, evt := range resp.Events {
						if filter != "" && evt.Channel != filter {
							continue
						}
						fmt.Fprintln(cmd.OutOrStdout(), formatEvent(evt))
					}
					if resp.Next > cursor {
						cursor = resp.Next
					}
					if !follow {
						return nil
					}
					select {
					case <-cmd.Context().Done():
						return nil
					default:
					}
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new events")
	cmd.Flags().Uint64Var(&since, "since", 0, "Only show events after this sequence number")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum events per fetch")
	cmd.Flags().StringVar(&channel, "channel", "", "Only show events for this channel")
	return cmd
}

func formatEvent(evt logging.LogEvent) string {
	var b strings.Builder
	b.WriteString(evt.Timestamp.Local().Format("15:04:05"))
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(evt.Level))
	if evt.Component != "" {
		b.WriteString(" [" + evt.Component + "]")
	}
	if evt.Channel != "" {
		b.WriteString(" " + evt.Channel + ":")
	}
	b.WriteString(" " + evt.Message)
	if evt.EventType != "" {
		b.WriteString(" (" + evt.EventType + ")")
	}
	return b.String()
}
