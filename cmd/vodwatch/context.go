package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"vodwatch/internal/config"
	"vodwatch/internal/ipc"
	"vodwatch/internal/logging"
)

type commandContext struct {
	socketFlag   *string
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(socketFlag, configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		socketFlag:   socketFlag,
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) logLevel() string {
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		return strings.TrimSpace(*c.logLevelFlag)
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Logging.Level
	}
	return "info"
}

// logger builds a stderr logger for one-shot commands.
func (c *commandContext) logger() (*slog.Logger, error) {
	return logging.NewFromConfig(c.configValue(), c.logLevel(), "", nil)
}

func (c *commandContext) socketPath() string {
	if c.socketFlag != nil && strings.TrimSpace(*c.socketFlag) != "" {
		return strings.TrimSpace(*c.socketFlag)
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.SocketPath()
	}
	return defaultSocketPath()
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (c *commandContext) dialClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(err, socket)
	}
	return client, nil
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("connect to monitor: socket %s not found; start one with `vodwatch monitor`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to monitor: socket %s refused the connection; verify the monitor is running", socket)
	default:
		return fmt.Errorf("connect to monitor: %w", err)
	}
}

func defaultSocketPath() string {
	cfg := config.Default()
	stateDir, err := config.ExpandPath(cfg.Paths.StateDir)
	if err != nil {
		return "vodwatch.sock"
	}
	cfg.Paths.StateDir = stateDir
	return cfg.SocketPath()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
