package main

import (
	"fmt"

	"github.com/odvcencio/mdv/pkg/repo"
	"github.com/spf13/cobra"
)

func newCheckoutCmd() *cobra.Command {
	var createBranch bool

	cmd := &cobra.Command{
		Use:   "checkout <branch|revision>",
		Short: "Switch the working tree to a branch or revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]
			out := cmd.OutOrStdout()

			return openLocked(cmd.Context(), func(r *repo.Repo) error {
				if createBranch {
					if err := r.CreateBranch(target); err != nil {
						return err
					}
					fmt.Fprintf(out, "switched to new branch '%s'\n", target)
					return nil
				}

				if err := r.Checkout(target); err != nil {
					return err
				}
				state, err := r.HeadState()
				if err != nil {
					return err
				}
				if state.Detached() {
					fmt.Fprintf(out, "HEAD is now at %s\n", state.Revision.Short())
				} else {
					fmt.Fprintf(out, "switched to branch '%s'\n", state.Branch)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&createBranch, "branch", "b", false, "create a branch at HEAD and switch to it")

	return cmd
}
