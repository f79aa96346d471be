package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vodwatch/internal/compress"
	"vodwatch/internal/config"
	"vodwatch/internal/ledger"
	"vodwatch/internal/logging"
	"vodwatch/internal/media/ffprobe"
	"vodwatch/internal/notifications"
	"vodwatch/internal/procrun"
)

func newCompressCommand(ctx *commandContext) *cobra.Command {
	var (
		recursive      bool
		crf            int
		preset         string
		deleteYes      bool
		keep           bool
		allowVideoOnly bool
		tolerance      float64
		dryRun         bool
		targetDir      string
	)

	cmd := &cobra.Command{
		Use:   "compress [directory]",
		Short: "Re-encode recordings to HEVC and verify them",
		Long: "Re-encode recordings to HEVC, verify each result against its source,\n" +
			"and optionally delete originals that verified cleanly.\n\n" +
			"Without a directory the recording output directory is used.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if deleteYes && keep {
				return errors.New("--yes and --keep are mutually exclusive")
			}
			dir := ""
			if len(args) == 1 {
				dir, err = config.ExpandPath(args[0])
				if err != nil {
					return err
				}
			}
			opts := compress.OptionsFromConfig(cfg, dir)
			opts.Recursive = recursive
			opts.DryRun = dryRun
			flags := cmd.Flags()
			if flags.Changed("crf") {
				opts.CRF = crf
			}
			if flags.Changed("preset") {
				opts.Preset = preset
			}
			if flags.Changed("allow-video-only") {
				opts.AllowVideoOnly = allowVideoOnly
			}
			if flags.Changed("tolerance") {
				opts.Tolerance = time.Duration(tolerance * float64(time.Second))
			}
			if flags.Changed("target-dir") {
				opts.TargetDir, err = config.ExpandPath(targetDir)
				if err != nil {
					return err
				}
			}
			switch {
			case deleteYes:
				opts.DeleteMode = config.DeleteYes
			case keep:
				opts.DeleteMode = config.DeleteNo
			}
			if opts.DeleteMode == config.DeletePrompt && !dryRun && !isInteractive(cmd.InOrStdin()) {
				return errors.New("delete mode is prompt but stdin is not a terminal; pass --yes or --keep")
			}

			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			store, err := ledger.OpenFromConfig(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runner := procrun.New()
			pipeline := compress.New(compress.Deps{
				FFmpegBinary: cfg.Compression.FFmpegBinary,
				Starter:      runner,
				Inspector:    ffprobe.New(cfg.Compression.FFprobeBinary, cfg.ProbeTimeout(), runner),
				Confirmer:    newPromptConfirmer(cmd.InOrStdin(), cmd.OutOrStdout()),
				Ledger:       store,
				Logger:       logger,
				StopGrace:    cfg.StopGrace(),
			})

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			summary, runErr := pipeline.Run(runCtx, opts)
			renderSummary(cmd, summary, opts.DryRun)
			if runErr == nil && !opts.DryRun && summary.Processed > 0 {
				notifier := notifications.NewService(cfg)
				if err := notifier.Publish(cmd.Context(), notifications.EventCompressionCompleted, notifications.Payload{
					"succeeded": summary.Succeeded,
					"failed":    summary.Failed,
					"skipped":   summary.Skipped,
					"deleted":   summary.Deleted,
				}); err != nil {
					logger.Warn("compression notification failed", logging.Error(err))
				}
			}
			if errors.Is(runErr, context.Canceled) {
				return errors.New("compression interrupted")
			}
			if runErr != nil {
				return runErr
			}
			return failureError(summary)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories")
	flags.IntVar(&crf, "crf", 0, "x265 constant rate factor (0-51)")
	flags.StringVar(&preset, "preset", "", "x265 preset")
	flags.BoolVarP(&deleteYes, "yes", "y", false, "Delete originals that verified without asking")
	flags.BoolVar(&keep, "keep", false, "Never delete originals")
	flags.BoolVar(&allowVideoOnly, "allow-video-only", false, "Accept sources without an audio stream")
	flags.Float64Var(&tolerance, "tolerance", 0, "Allowed duration difference in seconds")
	flags.BoolVar(&dryRun, "dry-run", false, "Show what would be compressed without encoding")
	flags.StringVar(&targetDir, "target-dir", "", "Write compressed files here instead of next to the source")
	return cmd
}

// promptConfirmer asks on the terminal before each deletion. Answering "a"
// approves the rest of the run.
type promptConfirmer struct {
	mu     sync.Mutex
	in     *bufio.Reader
	out    io.Writer
	always bool
}

func newPromptConfirmer(in io.Reader, out io.Writer) *promptConfirmer {
	return &promptConfirmer{in: bufio.NewReader(in), out: out}
}

func (p *promptConfirmer) ConfirmDelete(ctx context.Context, source string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.always {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "Delete original %s? [y/N/a] ", source)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	case "a", "all":
		p.always = true
		return true, nil
	default:
		return false, nil
	}
}

func renderSummary(cmd *cobra.Command, s compress.Summary, dryRun bool) {
	p := newPrinter(cmd)
	title := "Compression"
	if dryRun {
		title = "Compression (dry run)"
	}
	p.section(title)
	rows := [][]string{
		{"Found", strconv.Itoa(s.Found)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Processed", strconv.Itoa(s.Processed)},
		{"Succeeded", strconv.Itoa(s.Succeeded)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Originals deleted", strconv.Itoa(s.Deleted)},
	}
	p.table([]string{"Result", "Files"}, rows, 1)
	if len(s.Failures) == 0 {
		return
	}
	failures := make([][]string, 0, len(s.Failures))
	for _, f := range s.Failures {
		detail := ""
		if f.Err != nil {
			detail = f.Err.Error()
		}
		failures = append(failures, []string{f.Source, strings.Join(f.Reasons, ", "), detail})
	}
	p.table([]string{"File", "Reasons", "Error"}, failures)
}

// failureError reports failed files against every file that was attempted.
func failureError(summary compress.Summary) error {
	if summary.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d files failed", summary.Failed, summary.Found-summary.Skipped)
}
