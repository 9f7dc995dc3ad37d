package main

import (
	"fmt"

	"github.com/odvcencio/mdv/pkg/repo"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <revision> <revision>",
		Short: "List files that differ between two revisions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			changes, err := r.Diff(args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range changes {
				fmt.Fprintf(out, "%s\t%s\n", changeLetter(c.Kind), c.Path)
			}
			return nil
		},
	}
}

func changeLetter(k repo.ChangeKind) string {
	switch k {
	case repo.ChangeAdded:
		return "A"
	case repo.ChangeRemoved:
		return "D"
	default:
		return "M"
	}
}
