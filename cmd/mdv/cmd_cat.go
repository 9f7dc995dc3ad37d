package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newCatCmd() *cobra.Command {
	var rawObject bool

	cmd := &cobra.Command{
		Use:   "cat <path> [revision]",
		Short: "Print a file as recorded in a revision (default HEAD)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if rawObject {
				if len(args) != 1 {
					return fmt.Errorf("--object takes a single object id")
				}
				info, err := r.CatObject(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s %d\n", info.Hash, info.Type, info.Size)
				_, err = out.Write(info.Data)
				return err
			}

			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path %q: %w", args[0], err)
			}
			rev := ""
			if len(args) == 2 {
				rev = args[1]
			}
			data, err := r.Cat(path, rev)
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&rawObject, "object", false, "print the raw object named by an id or unique prefix")
	return cmd
}
