package main

import (
	"github.com/odvcencio/mdv/pkg/repo"
	"github.com/spf13/cobra"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <paths...>",
		Short: "Stage files for the next commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			return openLocked(cmd.Context(), func(r *repo.Repo) error {
				return r.Add(paths...)
			})
		},
	}
}
