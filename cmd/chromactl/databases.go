package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chromaffi"
)

func newDatabasesCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "databases",
		Aliases: []string{"db"},
		Short:   "Manage databases",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withClient(cmd, func(c *chromaffi.Client) error {
				return c.CreateDatabase(cmd.Context(), args[0], flags.Tenant)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get NAME",
		Short: "Print the id of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withClient(cmd, func(c *chromaffi.Client) error {
				id, err := c.GetDatabase(cmd.Context(), args[0], flags.Tenant)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a database with its collections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withClient(cmd, func(c *chromaffi.Client) error {
				return c.DeleteDatabase(cmd.Context(), args[0], flags.Tenant)
			})
		},
	})

	return cmd
}
