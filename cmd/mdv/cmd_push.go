package main

import (
	"fmt"

	"github.com/odvcencio/mdv/pkg/repo"
	"github.com/spf13/cobra"
)

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push [remote|path]",
		Short: "Replace another repository's history with this one's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			to := remoteArg(args)
			return openLocked(cmd.Context(), func(r *repo.Repo) error {
				if err := r.Push(to); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pushed to %s\n", to)
				return nil
			})
		},
	}
}
