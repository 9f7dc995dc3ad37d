package main

import (
	"fmt"
	"io"

	"github.com/odvcencio/mdv/pkg/repo"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show staged and working tree changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			state, err := r.HeadState()
			if err != nil {
				return err
			}
			entries, err := r.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case state.Detached():
				fmt.Fprintf(out, "HEAD detached at %s\n", state.Revision.Short())
			case state.Revision == "":
				fmt.Fprintf(out, "on %s (no commits yet)\n", state.Branch)
			default:
				fmt.Fprintf(out, "on %s\n", state.Branch)
			}

			var staged, unstaged, untracked []string
			for _, e := range entries {
				if e.Staged {
					staged = append(staged, statusLine(e))
					continue
				}
				switch e.WorkStatus {
				case repo.StatusUntracked:
					untracked = append(untracked, "  "+e.Path)
				case repo.StatusModified, repo.StatusDeleted:
					unstaged = append(unstaged, statusLine(e))
				}
			}

			printSection(out, "staged:", staged)
			printSection(out, "unstaged:", unstaged)
			printSection(out, "untracked:", untracked)
			return nil
		},
	}
}

func statusLine(e repo.StatusEntry) string {
	switch e.WorkStatus {
	case repo.StatusUntracked:
		return "  + " + e.Path
	case repo.StatusModified:
		return "  ~ " + e.Path
	case repo.StatusDeleted:
		return "  - " + e.Path
	default:
		return "  = " + e.Path
	}
}

func printSection(out io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, title)
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
}
