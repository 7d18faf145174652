package main

import (
	"github.com/spf13/cobra"
)

// newRunCommand is the hidden re-exec target. Each process in the detach
// ladder invokes `warden run`; the controller reads the stage marker from the
// environment and performs only its own step.
func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:    "run",
		Short:  "Run one stage of the detach ladder",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := ctx.controller()
			if err != nil {
				return err
			}
			return ctrl.RunDetached(cmd.Context())
		},
	}
}
