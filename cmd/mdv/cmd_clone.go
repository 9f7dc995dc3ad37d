package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/odvcencio/mdv/pkg/repo"
	"github.com/spf13/cobra"
)

func newCloneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clone <source> [directory]",
		Short: "Copy a repository into a new directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			dst := ""
			if len(args) == 2 {
				dst = args[1]
			} else {
				dst = filepath.Base(strings.TrimRight(filepath.Clean(src), string(filepath.Separator)))
			}
			if dst == "" || dst == "." || dst == string(filepath.Separator) {
				return fmt.Errorf("cannot infer clone directory from %q", src)
			}

			r, err := repo.Clone(src, dst, repo.WithLogger(newLogger()))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "cloned %s into %s\n", src, r.RootDir)
			return nil
		},
	}
}
