package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"warden/internal/preflight"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the warden daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			ctrl, err := ctx.controller()
			if err != nil {
				return err
			}

			if pid := ctrl.Status(); pid != 0 {
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", pid)
				return nil
			}
			if err := ctrl.Start(); err != nil {
				return err
			}
			if pid := ctrl.Status(); pid != 0 {
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", pid)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon launch requested; run `warden status` to confirm")
			return nil
		},
	}

	var stopAttempts int
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the warden daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			ctrl, err := ctx.controller()
			if err != nil {
				return err
			}

			if ctrl.Status() == 0 {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if pid := ctrl.Stop(stopAttempts); pid != 0 {
				fmt.Fprintf(stdout, "Daemon did not stop (pid %d); inspect the process before escalating\n", pid)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}
	stopCmd.Flags().IntVar(&stopAttempts, "attempts", 0, "Number of stop attempts before giving up (0 uses the configured value)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and preflight status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := ctx.controller()
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader(titleLabel(cfg.Daemon.Name)+" Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			pid := ctrl.Status()
			if pid != 0 {
				fmt.Fprintln(stdout, renderStatusLine("Running", statusOK, fmt.Sprintf("yes (pid %d)", pid), colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Running", statusInfo, "no", colorize))
			}
			fmt.Fprintln(stdout, renderStatusLine("Identity", statusInfo, ctrl.Identity().Username, colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, result := range preflight.RunAll(ctrl.Paths(), ctrl.Identity()) {
				kind := statusError
				if result.Passed {
					kind = statusOK
				}
				fmt.Fprintln(stdout, renderStatusLine(titleLabel(result.Name), kind, result.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Paths", colorize) {
				fmt.Fprintln(stdout, line)
			}
			p := ctrl.Paths()
			rows := [][]string{
				{"Base directory", p.BaseDir},
				{"Log directory", p.LogDir},
				{"Var directory", p.VarDir},
				{"Log file", p.LogFile},
				{"Error file", p.ErrFile},
				{"Pid file", p.PidFile},
			}
			fmt.Fprintln(stdout, renderTable([]string{"Location", "Path"}, rows, []columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the warden daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			ctrl, err := ctx.controller()
			if err != nil {
				return err
			}

			if ctrl.Status() != 0 {
				if pid := ctrl.Stop(0); pid != 0 {
					return fmt.Errorf("daemon did not stop (pid %d); restart aborted", pid)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			if err := ctrl.Start(); err != nil {
				return err
			}
			if pid := ctrl.Status(); pid != 0 {
				fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", pid)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon launch requested; run `warden status` to confirm")
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}
