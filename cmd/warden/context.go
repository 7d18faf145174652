package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"warden/internal/config"
	"warden/internal/lifecycle"
	"warden/internal/listener"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
	})
	return c.config, c.configErr
}

// controller builds a lifecycle controller wired to the bundled listener
// worker. The run arguments re-invoke this binary's hidden run subcommand
// with the same config flag, so every ladder stage sees the same settings.
func (c *commandContext) controller() (*lifecycle.Controller, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	runArgs := []string{"run"}
	if c.configFlag != nil {
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			runArgs = append(runArgs, "--config", path)
		}
	}

	return lifecycle.NewController(lifecycle.Options{
		Config:     cfg,
		Worker:     listener.New(cfg.Listener),
		ConfigPath: c.configPath,
		RunArgs:    runArgs,
	})
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
