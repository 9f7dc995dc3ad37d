package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newHeadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "heads",
		Short: "Print every branch with its tip revision and subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			heads, err := r.Heads()
			if err != nil {
				return err
			}

			names := make([]string, 0, len(heads))
			for name := range heads {
				names = append(names, name)
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			for _, name := range names {
				_, c, err := r.ReadRevision(string(heads[name]))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s\t%s\n", heads[name], name, firstLine(c.Message))
			}
			return nil
		},
	}
}
