package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/odvcencio/mdv/pkg/repo"
	"github.com/spf13/cobra"
)

func newRemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage named remote repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			cfg, err := r.ReadConfig()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(cfg.Remotes))
			for name := range cfg.Remotes {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, cfg.Remotes[name])
			}
			return nil
		},
	}

	cmd.AddCommand(newRemoteSetCmd("add <name> <path>", "Add a named remote", "added"))
	cmd.AddCommand(newRemoteSetCmd("set-url <name> <path>", "Update a named remote", "updated"))

	return cmd
}

func newRemoteSetCmd(use, short, verb string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			location, err := filepath.Abs(args[1])
			if err != nil {
				return fmt.Errorf("invalid remote path %q: %w", args[1], err)
			}
			return openLocked(cmd.Context(), func(r *repo.Repo) error {
				if err := r.SetRemote(args[0], location); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s remote %q -> %s\n", verb, args[0], location)
				return nil
			})
		},
	}
}
