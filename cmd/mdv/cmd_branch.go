package main

import (
	"fmt"

	"github.com/odvcencio/mdv/pkg/repo"
	"github.com/spf13/cobra"
)

func newBranchCmd() *cobra.Command {
	var deleteBranch string
	var at string

	cmd := &cobra.Command{
		Use:   "branch [name]",
		Short: "List, create, or delete branches",
		Long: "With no arguments, list branches. With a name, create the branch at HEAD\n" +
			"and switch to it; with --at, create it at that revision and stay put.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if deleteBranch != "" {
				return openLocked(cmd.Context(), func(r *repo.Repo) error {
					if err := r.DeleteBranch(deleteBranch); err != nil {
						return err
					}
					fmt.Fprintf(out, "deleted branch '%s'\n", deleteBranch)
					return nil
				})
			}

			if len(args) == 1 {
				name := args[0]
				return openLocked(cmd.Context(), func(r *repo.Repo) error {
					if at != "" {
						target, err := r.Resolve(at)
						if err != nil {
							return err
						}
						if err := r.CreateBranchAt(name, target); err != nil {
							return err
						}
						fmt.Fprintf(out, "created branch '%s' at %s\n", name, target.Short())
						return nil
					}
					if err := r.CreateBranch(name); err != nil {
						return err
					}
					fmt.Fprintf(out, "switched to new branch '%s'\n", name)
					return nil
				})
			}

			r, err := openRepo()
			if err != nil {
				return err
			}
			branches, err := r.ListBranches()
			if err != nil {
				return err
			}
			current, err := r.CurrentBranch()
			if err != nil {
				return err
			}
			for _, b := range branches {
				if b == current {
					fmt.Fprintf(out, "* %s\n", b)
				} else {
					fmt.Fprintf(out, "  %s\n", b)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deleteBranch, "delete", "d", "", "delete the named branch")
	cmd.Flags().StringVar(&at, "at", "", "create the branch at this revision without switching")

	return cmd
}
