package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"eventstore/internal/store"
)

func newStoresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stores",
		Short: "Manage multiple independently-rotating stores under one base directory",
	}
	cmd.AddCommand(newStoresCreateCmd(), newStoresListCmd())
	return cmd
}

func newStoresCreateCmd() *cobra.Command {
	var alias string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new store with a fresh identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, _ := cmd.Flags().GetString("base")
			r, err := store.New(base, nil, logger(), nil)
			if err != nil {
				return err
			}
			defer r.Close()

			entry, err := r.Create(alias)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", entry.ID, entry.Alias)
			return nil
		},
	}
	cmd.Flags().StringVar(&alias, "alias", "", "human-readable alias for the new store")
	return cmd
}

func newStoresListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every store found under the base directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, _ := cmd.Flags().GetString("base")
			discovered, err := store.DiscoverWithAliases(base)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range discovered {
				fmt.Fprintf(out, "%s\t%s\n", d.ID, d.Alias)
			}
			return nil
		},
	}
}
