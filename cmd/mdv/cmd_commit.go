package main

import (
	"fmt"
	"strings"

	"github.com/odvcencio/mdv/pkg/object"
	"github.com/odvcencio/mdv/pkg/repo"
	"github.com/spf13/cobra"
)

func newCommitCmd() *cobra.Command {
	var message string
	var author string

	cmd := &cobra.Command{
		Use:   "commit [paths...]",
		Short: "Record staged changes as a new revision",
		Long: "Record staged changes as a new revision. With paths, only those staged\n" +
			"paths are committed and the rest stay staged.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}
			paths, err := absPaths(args)
			if err != nil {
				return err
			}

			return openLocked(cmd.Context(), func(r *repo.Repo) error {
				var h object.Hash
				var err error
				if len(paths) > 0 {
					h, err = r.CommitPaths(paths, message, author)
				} else {
					h, err = r.Commit(message, author)
				}
				if err != nil {
					return err
				}

				state, err := r.HeadState()
				if err != nil {
					return err
				}
				branch := state.Branch
				if state.Detached() {
					branch = "detached HEAD"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branch, h.Short(), firstLine(message))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&author, "author", "", "override author (default: user.name from config, then $USER)")

	return cmd
}

func firstLine(msg string) string {
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
