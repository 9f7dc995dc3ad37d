package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/odvcencio/mdv/pkg/repo"
	"github.com/spf13/cobra"
)

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <source> [target]",
		Short: "Merge branch source into target (default: the current branch)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			out := cmd.OutOrStdout()

			return openLocked(cmd.Context(), func(r *repo.Repo) error {
				target := ""
				if len(args) == 2 {
					target = args[1]
				} else {
					current, err := r.CurrentBranch()
					if err != nil {
						return err
					}
					if current == "" {
						return fmt.Errorf("merge: HEAD is detached; name a target branch")
					}
					target = current
				}

				fmt.Fprintf(out, "merging %s into %s...\n", source, target)
				result, err := r.Merge(source, target)
				var conflictErr *repo.MergeConflictError
				if errors.As(err, &conflictErr) {
					printConflicts(out, conflictErr)
				}
				if err != nil {
					return err
				}

				if result.UpToDate {
					fmt.Fprintln(out, "already up to date")
					return nil
				}
				fmt.Fprintf(out, "merge base %s\n", result.Base.Short())
				fmt.Fprintf(out, "[%s %s] Merge branch '%s'\n", target, result.Revision.Short(), source)
				return nil
			})
		},
	}
}

func printConflicts(out io.Writer, e *repo.MergeConflictError) {
	for _, c := range e.Conflicts {
		switch {
		case c.SourceHash == "":
			fmt.Fprintf(out, "  %s: CONFLICT (deleted in source, modified in target)\n", c.Path)
		case c.TargetHash == "":
			fmt.Fprintf(out, "  %s: CONFLICT (modified in source, deleted in target)\n", c.Path)
		default:
			fmt.Fprintf(out, "  %s: CONFLICT (changed on both sides)\n", c.Path)
		}
	}
	fmt.Fprintf(out, "merge aborted with %d conflict", len(e.Conflicts))
	if len(e.Conflicts) != 1 {
		fmt.Fprint(out, "s")
	}
	fmt.Fprintln(out)
}
