package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every reachable object is present",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			missing, err := r.Verify()
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				out := cmd.OutOrStdout()
				for _, h := range missing {
					fmt.Fprintf(out, "missing %s\n", h)
				}
				return fmt.Errorf("verify: %d object(s) missing", len(missing))
			}

			fmt.Fprintln(cmd.OutOrStdout(), "ok: all reachable objects present")
			return nil
		},
	}
}
