package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newChannelsCommand(ctx *commandContext) *cobra.Command {
	channelsCmd := &cobra.Command{
		Use:     "channels",
		Aliases: []string{"channel"},
		Short:   "Manage the watch list",
	}
	channelsCmd.AddCommand(newChannelsListCommand(ctx))
	channelsCmd.AddCommand(newChannelsAddCommand(ctx))
	channelsCmd.AddCommand(newChannelsRemoveCommand(ctx))
	return channelsCmd
}

func newChannelsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show watched channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, cfg.Channels.Watch)
			}
			p := newPrinter(cmd)
			if len(cfg.Channels.Watch) == 0 {
				p.line("No channels watched; add one with `vodwatch channels add <name>`")
				return nil
			}
			rows := make([][]string, 0, len(cfg.Channels.Watch))
			for _, ch := range cfg.Channels.Watch {
				rows = append(rows, []string{ch, cfg.ChannelURL(ch)})
			}
			p.table([]string{"Channel", "URL"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newChannelsAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <channel>...",
		Short: "Add channels to the watch list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			changed := false
			for _, name := range args {
				added, err := cfg.AddChannel(name)
				if err != nil {
					return err
				}
				if !added {
					fmt.Fprintf(out, "%s is already watched\n", name)
					continue
				}
				changed = true
				fmt.Fprintf(out, "Added %s\n", name)
			}
			if !changed {
				return nil
			}
			return saveConfig(ctx)
		},
	}
}

func newChannelsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <channel>...",
		Aliases: []string{"rm"},
		Short:   "Remove channels from the watch list",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			changed := false
			for _, name := range args {
				removed, err := cfg.RemoveChannel(name)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(out, "%s is not watched\n", name)
					continue
				}
				changed = true
				fmt.Fprintf(out, "Removed %s\n", name)
			}
			if !changed {
				return nil
			}
			return saveConfig(ctx)
		},
	}
}

func saveConfig(ctx *commandContext) error {
	if ctx.configPath == "" {
		return errors.New("no configuration path resolved")
	}
	if err := ctx.config.Save(ctx.configPath); err != nil {
		return err
	}
	return nil
}
