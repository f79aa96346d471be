package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vodwatch/internal/preflight"
	"vodwatch/internal/procrun"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check dependencies, directories, and the watch list",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p := newPrinter(cmd)

			p.section("Environment")
			p.status("Config", statusInfo, ctx.configPath)

			results := preflight.RunAll(cmd.Context(), cfg, procrun.New())
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				p.status(r.Name, kind, r.Detail)
			}

			if topic := cfg.Notifications.NtfyTopic; topic != "" {
				p.status("Notifications", statusInfo, topic)
			} else {
				p.status("Notifications", statusInfo, "disabled")
			}

			running, err := preflight.MonitorRunning(cfg)
			switch {
			case err != nil:
				p.status("Monitor", statusWarn, err.Error())
			case running:
				p.status("Monitor", statusOK, "running")
			default:
				p.status("Monitor", statusInfo, "not running")
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d checks failed", len(failed))
			}
			return nil
		},
	}
}
