package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/odvcencio/mdv/pkg/object"
	"github.com/odvcencio/mdv/pkg/repo"
	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var oneline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log [revision]",
		Short: "Show revision history along main parents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			state, err := r.HeadState()
			if err != nil {
				return err
			}
			start := state.Revision
			if len(args) == 1 {
				if start, err = r.Resolve(args[0]); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			if start == "" {
				fmt.Fprintln(out, "no commits yet")
				return nil
			}

			entries, err := r.Log(start, limit)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				decoration := buildDecoration(entry.Hash, state)
				if oneline {
					printOneline(out, entry, decoration)
				} else {
					printLogEntry(out, entry, decoration)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of revisions to show (0 for all)")

	return cmd
}

func printOneline(out io.Writer, entry repo.LogEntry, decoration string) {
	if decoration != "" {
		fmt.Fprintf(out, "%s %s %s\n", entry.Hash.Short(), decoration, firstLine(entry.Commit.Message))
		return
	}
	fmt.Fprintf(out, "%s %s\n", entry.Hash.Short(), firstLine(entry.Commit.Message))
}

func printLogEntry(out io.Writer, entry repo.LogEntry, decoration string) {
	c := entry.Commit
	if decoration != "" {
		fmt.Fprintf(out, "commit %s %s\n", entry.Hash, decoration)
	} else {
		fmt.Fprintf(out, "commit %s\n", entry.Hash)
	}
	if len(c.Parents) > 1 {
		shorts := make([]string, len(c.Parents))
		for i, p := range c.Parents {
			shorts[i] = p.Short()
		}
		fmt.Fprintf(out, "Merge:  %s\n", strings.Join(shorts, " "))
	}
	fmt.Fprintf(out, "Author: %s\n", c.Author)
	fmt.Fprintf(out, "Date:   %s\n", time.Unix(c.Timestamp, 0).Format("2006-01-02 15:04:05"))
	fmt.Fprintln(out)
	for _, line := range strings.Split(c.Message, "\n") {
		fmt.Fprintf(out, "    %s\n", line)
	}
	fmt.Fprintln(out)
}

// buildDecoration returns "(HEAD -> main)" or "(HEAD)" for the revision HEAD
// points at, and "" for any other.
func buildDecoration(h object.Hash, state repo.HeadState) string {
	if h != state.Revision {
		return ""
	}
	if !state.Detached() {
		return "(HEAD -> " + state.Branch + ")"
	}
	return "(HEAD)"
}
