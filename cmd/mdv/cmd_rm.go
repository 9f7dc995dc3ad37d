package main

import (
	"github.com/odvcencio/mdv/pkg/repo"
	"github.com/spf13/cobra"
)

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <paths...>",
		Short: "Unstage files; working copies are left untouched",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			return openLocked(cmd.Context(), func(r *repo.Repo) error {
				return r.Remove(paths...)
			})
		},
	}
}
