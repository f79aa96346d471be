package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vodwatch/internal/config"
	"vodwatch/internal/daemonrun"
	"vodwatch/internal/ipc"
	"vodwatch/internal/monitor"
	"vodwatch/internal/preflight"
	"vodwatch/internal/recording"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var allLive bool

	cmd := &cobra.Command{
		Use:   "record [channels...]",
		Short: "Record live channels now without waiting for the monitor",
		Long: "Probe the given channels (or the watch list) and record the live ones.\n\n" +
			"When a monitor is running the recordings are handed to it; otherwise they\n" +
			"run in this process until they end or Ctrl+C stops them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results, err := probeChannels(cmd, ctx, cfg, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(out, "%s: status unknown (%v)\n", r.Channel, r.Err)
				}
			}
			live := monitor.LiveChannels(results)
			if len(live) == 0 {
				fmt.Fprintln(out, "No live channels to record")
				return nil
			}

			selected := live
			if len(args) == 0 && !allLive {
				selected, err = selectChannels(cmd, live)
				if err != nil {
					return err
				}
				if len(selected) == 0 {
					fmt.Fprintln(out, "Nothing selected")
					return nil
				}
			}

			running, err := preflight.MonitorRunning(cfg)
			if err != nil {
				return err
			}
			if running {
				return ctx.withClient(func(client *ipc.Client) error {
					return delegateRecordings(cmd, client, selected)
				})
			}
			return recordLocally(cmd, ctx, cfg, selected)
		},
	}
	cmd.Flags().BoolVarP(&allLive, "all-live", "a", false, "Record every live channel on the watch list without asking")
	return cmd
}

// selectChannels asks which live channels to record.
func selectChannels(cmd *cobra.Command, live []string) ([]string, error) {
	in := cmd.InOrStdin()
	if !isInteractive(in) {
		return nil, errors.New("no terminal to choose channels on; pass channel names or --all-live")
	}
	out := cmd.OutOrStdout()
	for i, ch := range live {
		fmt.Fprintf(out, "  %d) %s\n", i+1, ch)
	}
	fmt.Fprint(out, "Record which channels? [all, or numbers separated by spaces]: ")
	return parseSelection(in, live)
}

func parseSelection(in io.Reader, live []string) ([]string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	line = strings.TrimSpace(strings.ToLower(line))
	if line == "" || line == "all" || line == "a" {
		return live, nil
	}
	var picked []string
	seen := map[int]bool{}
	for _, field := range strings.FieldsFunc(line, func(r rune) bool { return r == ' ' || r == ',' }) {
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 || n > len(live) {
			return nil, fmt.Errorf("invalid selection %q", field)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		picked = append(picked, live[n-1])
	}
	return picked, nil
}

func delegateRecordings(cmd *cobra.Command, client *ipc.Client, channels []string) error {
	out := cmd.OutOrStdout()
	var failed int
	for _, ch := range channels {
		session, err := client.Record(ch)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s: %s\n", ch, refusalText(err))
			continue
		}
		fmt.Fprintf(out, "%s: recording to %s (monitor)\n", ch, session.OutputPath)
	}
	if failed == len(channels) {
		return errors.New("no recordings started")
	}
	return nil
}

func recordLocally(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, channels []string) error {
	logger, err := ctx.logger()
	if err != nil {
		return err
	}
	components, err := daemonrun.NewComponents(cfg, logger)
	if err != nil {
		return err
	}
	manager := recording.NewManager(components.Runner, components.Client, recording.Options{
		MaxConcurrent: cfg.Monitor.MaxConcurrent,
		OutputDir:     cfg.Paths.OutputDir,
		Extension:     cfg.Capture.Extension,
		StopGrace:     cfg.StopGrace(),
		Logger:        logger,
	})
	out := cmd.OutOrStdout()
	manager.OnTerminal(func(o recording.Outcome) {
		fmt.Fprintf(out, "%s: %s after %s (%s)\n", o.Channel, o.State, formatElapsed(o.Duration), o.OutputPath)
	})

	admitted := 0
	for _, ch := range channels {
		info, err := manager.Admit(cmd.Context(), ch)
		if err != nil {
			fmt.Fprintf(out, "%s: %s\n", ch, refusalText(err))
			continue
		}
		admitted++
		fmt.Fprintf(out, "%s: recording to %s\n", ch, info.OutputPath)
	}
	if admitted == 0 {
		return errors.New("no recordings started")
	}
	fmt.Fprintln(out, "Press Ctrl+C to stop recording")

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	return waitForRecordings(cmd.Context(), manager, signals, cfg.StopGrace()+5*time.Second)
}

// waitForRecordings blocks until every session ends. A signal or a canceled
// context stops the sessions and bounds the remaining wait by grace.
func waitForRecordings(ctx context.Context, manager *recording.Manager, signals <-chan os.Signal, grace time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- manager.Wait(context.Background()) }()

	select {
	case err := <-done:
		return err
	case <-signals:
	case <-ctx.Done():
	}
	manager.StopAll()
	select {
	case err := <-done:
		return err
	case <-time.After(grace):
		return fmt.Errorf("%d recordings did not stop within %s", manager.Count(), grace)
	}
}

func refusalText(err error) string {
	switch {
	case errors.Is(err, recording.ErrAlreadyActive):
		return "already recording"
	case errors.Is(err, recording.ErrAtCapacity):
		return "at the concurrent recording limit"
	case errors.Is(err, recording.ErrNotFound):
		return "not recording"
	default:
		return err.Error()
	}
}

