package main

import (
	"fmt"

	"github.com/odvcencio/mdv/pkg/repo"
	"github.com/spf13/cobra"
)

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull [remote|path]",
		Short: "Replace this repository's history with another's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from := remoteArg(args)
			return openLocked(cmd.Context(), func(r *repo.Repo) error {
				if err := r.Pull(from); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pulled from %s\n", from)
				return nil
			})
		},
	}
}

// remoteArg returns the remote named on the command line, or "origin".
func remoteArg(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return "origin"
}
